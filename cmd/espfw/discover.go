package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/muurk/espfw/internal/config"
	"github.com/muurk/espfw/internal/discovery"
	"github.com/muurk/espfw/internal/ui"
)

func init() {
	rootCmd.AddCommand(discoverCmd)
}

var (
	discoverTimeout  time.Duration
	discoverFirst    bool
	discoverSave     bool
	discoverUse      string
	discoverNickname string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find firmware backends on the local network",
	Long: `Browse mDNS for firmware backends (` + discovery.ServiceType + `).

--save records every backend found in the config file. --use makes the
named backend (instance or nickname) the default backend_url.`,
	Example: `  # List backends
  espfw discover

  # Remember them and switch to one
  espfw discover --save --use lab --nickname "Lab bench"`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "wait", discovery.DefaultScanTimeout, "How long to listen for answers")
	discoverCmd.Flags().BoolVar(&discoverFirst, "first", false, "Stop at the first backend that answers")
	discoverCmd.Flags().BoolVar(&discoverSave, "save", false, "Record the backends in the config file")
	discoverCmd.Flags().StringVar(&discoverUse, "use", "", "Set backend_url to this backend")
	discoverCmd.Flags().StringVar(&discoverNickname, "nickname", "", "Nickname for the --use backend")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if discoverNickname != "" && discoverUse == "" {
		return fmt.Errorf("--nickname requires --use")
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	p := ui.NewPrinter(a.out)
	p.PrintPleaseWait(fmt.Sprintf("Browsing for %s (%s)", discovery.ServiceType, discoverTimeout))

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout
	var found []*discovery.Backend
	if discoverFirst {
		b, err := scanner.First(cmd.Context())
		if err != nil {
			return err
		}
		found = append(found, b)
	} else if found, err = scanner.Scan(cmd.Context()); err != nil {
		return err
	}
	p.Newline()

	if len(found) == 0 {
		p.PrintWarning("No backends found",
			ui.Param{Key: "Service", Value: discovery.ServiceType},
			ui.Param{Key: "Waited", Value: discoverTimeout.String()},
		)
		return nil
	}

	for _, b := range found {
		params := []ui.Param{
			{Key: "URL", Value: b.URL()},
			{Key: "Host", Value: b.Hostname},
			{Key: "Version", Value: orDash(b.Version())},
		}
		if known := a.registry.GetBackend(b.Instance); known != nil {
			if known.Nickname != "" {
				params = append(params, ui.Param{Key: "Nickname", Value: known.Nickname})
			}
			if !known.LastSeen.IsZero() {
				params = append(params, ui.Param{Key: "Last seen", Value: humanize.Time(known.LastSeen)})
			}
		}
		p.PrintSuccess(b.Instance, params...)
	}

	changed := false
	if discoverSave {
		for _, b := range found {
			a.registry.UpdateBackendSeen(b.Instance, b.URL())
		}
		changed = true
	}
	if discoverUse != "" {
		name, b := pickBackend(found, a.registry.Backends, discoverUse)
		if b == nil {
			return fmt.Errorf("backend %q not found", discoverUse)
		}
		a.registry.UpdateBackendSeen(name, b.URL())
		if discoverNickname != "" {
			a.registry.SetBackendNickname(name, discoverNickname)
		}
		a.registry.BackendURL = b.URL()
		changed = true
		p.PrintSuccess("Default backend updated", ui.Param{Key: "backend_url", Value: b.URL()})
	}
	if changed {
		if err := a.registry.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}
	return nil
}

// pickBackend matches ref against instance names, then saved nicknames.
func pickBackend(found []*discovery.Backend, known map[string]*config.Backend, ref string) (string, *discovery.Backend) {
	for _, b := range found {
		if strings.EqualFold(b.Instance, ref) {
			return b.Instance, b
		}
	}
	for _, b := range found {
		if k := known[b.Instance]; k != nil && k.Nickname != "" && strings.EqualFold(k.Nickname, ref) {
			return b.Instance, b
		}
	}
	return "", nil
}
