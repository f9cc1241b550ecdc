// Espfw manages ESP firmware binaries stored on a firmware backend.
//
// Running without arguments opens the interactive dashboard: a searchable,
// paginated firmware table with project and device filters, bulk download
// and delete, upload and spreadsheet export. Every dashboard action is also
// available as a one-shot command for scripting.
//
// Usage:
//
//	espfw [command] [flags]
//
// See 'espfw --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/espfw/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var shown reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// reportedError marks a failure whose result box was already printed.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "espfw",
	Short: "ESP Firmware Manager",
	Long: `Manage ESP firmware binaries on a firmware backend.

Lists, uploads, downloads and deletes firmware, filters by project and
device, and exports the firmware inventory to a spreadsheet.

If no command is specified, the interactive dashboard launches.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

// Global flags; unset flags fall back to the config file.
var (
	flagBackendURL  string
	flagLocale      string
	flagTimezone    string
	flagLogLevel    string
	flagTimeout     int
	flagConcurrency int
	flagDownloadDir string
	flagExportDir   string
)

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBackendURL, "backend-url", "", "Backend API base URL (e.g. http://localhost:5000/api)")
	pf.StringVar(&flagLocale, "locale", "", "Date locale: BCP 47 tag or 'iso'")
	pf.StringVar(&flagTimezone, "timezone", "", "IANA time zone for dates (default local)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error); default $ESPFW_LOG_LEVEL or silent")
	pf.IntVar(&flagTimeout, "timeout", 0, "Request timeout in seconds (0 = none)")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "Parallel bulk downloads/deletes")
	pf.StringVar(&flagDownloadDir, "download-dir", "", "Directory downloads are saved to")
	pf.StringVar(&flagExportDir, "export-dir", "", "Directory exports are saved to")

	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("espfw %s\n", version.Full())
	},
}
