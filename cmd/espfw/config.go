package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/muurk/espfw/internal/config"
	"github.com/muurk/espfw/internal/ui"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change saved settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved settings and known backends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, key := range config.Keys() {
			value, _ := registry.Settings.Get(key)
			_, _ = fmt.Fprintf(out, "%-18s %s\n", key, orDash(value))
		}

		if len(registry.Backends) == 0 {
			return nil
		}
		names := make([]string, 0, len(registry.Backends))
		for name := range registry.Backends {
			names = append(names, name)
		}
		sort.Strings(names)
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, ui.MutedStyle.Render("backends:"))
		for _, name := range names {
			b := registry.Backends[name]
			label := name
			if b.Nickname != "" {
				label = fmt.Sprintf("%s (%s)", name, b.Nickname)
			}
			_, _ = fmt.Fprintf(out, "  %-28s %s\n", label, b.URL)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change a saved setting",
	Example: `  espfw config set backend_url http://10.0.0.5:5000/api
  espfw config set locale de-DE
  espfw config set bulk_concurrency 4`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := registry.Settings.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := registry.Settings.Validate(); err != nil {
			return err
		}
		if err := registry.Save(); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Setting saved",
			ui.Param{Key: args[0], Value: args[1]})
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}
