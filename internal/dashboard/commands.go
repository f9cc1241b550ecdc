package dashboard

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/logging"
	"github.com/muurk/espfw/internal/manager"
	"go.uber.org/zap"
)

// opDoneMsg reports a finished manager operation.
type opDoneMsg struct {
	status string // Shown on success, e.g. "Saved ./export.xlsx"
	err    error
}

// eventMsg carries one change feed event.
type eventMsg backend.Event

// watchEndedMsg is sent when the change feed stops for good.
type watchEndedMsg struct{ err error }

func refreshOp(full bool) func(context.Context, *manager.Manager) opDoneMsg {
	return func(ctx context.Context, mgr *manager.Manager) opDoneMsg {
		if full {
			return opDoneMsg{err: mgr.Refresh(ctx)}
		}
		return opDoneMsg{err: mgr.RefreshFirmwares(ctx)}
	}
}

// watchCmd runs the change feed until ctx is done, forwarding events.
func watchCmd(ctx context.Context, w Watcher, events chan<- backend.Event) tea.Cmd {
	return func() tea.Msg {
		err := w.Watch(ctx, func(ev backend.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		if err != nil && ctx.Err() == nil {
			logging.Warn("Change feed stopped", zap.Error(err))
		}
		return watchEndedMsg{err: err}
	}
}

// waitEvent blocks for the next change event.
func waitEvent(ctx context.Context, events <-chan backend.Event) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-events:
			return eventMsg(ev)
		case <-ctx.Done():
			return nil
		}
	}
}

// Run starts the dashboard on the terminal and returns the final model.
func Run(opts Options) (Model, error) {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Model{}, err
	}
	return final.(Model), nil
}
