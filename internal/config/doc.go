// Package config manages the espfw configuration file.
//
// The file holds client settings (backend URL, locale and time zone for
// rendered dates, output directories, bulk concurrency, timeout and retry
// counts) and the firmware backends found by discovery. It is YAML and lives
// in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/espfw/config.yaml or $HOME/.config/espfw/config.yaml
//   - macOS: $HOME/.config/espfw/config.yaml
//   - Windows: %LOCALAPPDATA%\espfw\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := registry.Set("locale", "en-GB"); err != nil {
//	    log.Fatal(err)
//	}
//	registry.UpdateBackendSeen("espfw-lab", "http://10.0.0.5:5000/api")
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes go through WriteFileAtomic, which serialises writers and
// replaces files by rename.
package config
