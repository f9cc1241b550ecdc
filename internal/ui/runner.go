package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muurk/espfw/internal/bulk"
)

// RunnerConfig holds configuration for a bulk command execution
type RunnerConfig struct {
	Title   string  // e.g., "Bulk Download"
	Command string  // e.g., "espfw download"
	Params  []Param // Shown in the header
	IDs     []string
	Names   map[string]string // Display name per id; the id is used when absent
	Output  io.Writer         // default: os.Stdout

	// Hints returns troubleshooting tips for a failure.
	Hints func(error) []string
}

// Runner orchestrates the header, per-item progress and result of a bulk
// command.
type Runner struct {
	config    RunnerConfig
	header    *Header
	progress  *Progress
	index     map[string]int
	output    io.Writer
	startTime time.Time
	width     int

	mu sync.Mutex
}

// NewRunner creates a runner for the given items
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()

	names := make([]string, len(config.IDs))
	index := make(map[string]int, len(config.IDs))
	for i, id := range config.IDs {
		names[i] = id
		if n := config.Names[id]; n != "" {
			names[i] = n
		}
		index[id] = i + 1
	}

	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params...).SetWidth(width),
		progress: NewProgress("", names).SetWidth(width),
		index:    index,
		output:   config.Output,
		width:    width,
	}
}

// Operation performs the bulk work, reporting each settled item through
// the runner's OnItem.
type Operation func(ctx context.Context) (*bulk.Report, error)

// Run prints the header, executes op and prints the result box.
func (r *Runner) Run(ctx context.Context, op Operation) (*bulk.Report, error) {
	r.startTime = time.Now()
	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	report, err := op(ctx)
	duration := time.Since(r.startTime).Round(time.Millisecond)

	// Items never reported were skipped.
	for i, it := range r.progress.Items {
		if it.Status == ItemPending {
			r.progress.Update(i+1, ItemSkipped, "")
			_, _ = fmt.Fprintln(r.output, r.progress.RenderItem(r.progress.Items[i]))
		}
	}

	_, _ = fmt.Fprintln(r.output)
	_, _ = fmt.Fprintln(r.output, r.progress.RenderBar())
	_, _ = fmt.Fprintln(r.output)

	if err != nil {
		var hints []string
		if r.config.Hints != nil {
			hints = r.config.Hints(err)
		}
		res := NewFailureResult(r.config.Title+" failed", err, hints)
		_, _ = fmt.Fprintln(r.output, res.SetWidth(r.width).Render())
		return report, err
	}

	res := NewSuccessResult(r.config.Title+" complete",
		Param{"Items", fmt.Sprintf("%d", len(r.config.IDs))},
		Param{"Duration", duration.String()},
	)
	_, _ = fmt.Fprintln(r.output, res.SetWidth(r.width).Render())
	return report, nil
}

// OnItem records a settled item and prints its line. It matches the
// manager's per-item hook.
func (r *Runner) OnItem(_ string, res bulk.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.index[res.ID]
	if !ok {
		return
	}
	switch {
	case res.Skipped:
		r.progress.Update(n, ItemSkipped, "")
	case res.Err != nil:
		r.progress.Update(n, ItemFailed, res.Err.Error())
	default:
		r.progress.Update(n, ItemComplete, "")
	}
	_, _ = fmt.Fprintln(r.output, r.progress.RenderItem(r.progress.Items[n-1]))
}
