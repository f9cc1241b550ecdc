// Espfw-server is a development firmware backend.
//
// It serves the REST API and change feed the espfw client talks to,
// storing metadata in sqlite and binaries on disk. It is meant for local
// development, demos and integration testing.
//
// Usage:
//
//	espfw-server serve [flags]
//
// See 'espfw-server serve --help' for available options.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/espfw/internal/server"
	"github.com/muurk/espfw/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "espfw-server",
	Short: "ESP firmware development backend",
	Long: `A self-contained firmware backend for development and testing.

It implements login, firmware upload/download/delete/list, device and
project listings and a websocket change feed. Use 'espfw' to manage it.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	host      string
	port      int
	basePath  string
	dataDir   string
	seedPath  string
	jwtSecret string
	tokenTTL  time.Duration
	certPath  string
	keyPath   string
	advertise bool
	instance  string
	logLevel  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the firmware backend",
	Long: `Start the firmware backend.

Users, projects and devices are loaded from a YAML seed file. Firmware
binaries are stored under <data-dir>/firmware. With --advertise the
backend registers itself via mDNS so 'espfw discover' can find it.`,
	Example: `  # Start on :5000 with a seed file
  espfw-server serve --seed seed.yaml

  # Advertise on the local network under a custom name
  espfw-server serve --seed seed.yaml --advertise --instance lab-backend

  # Serve HTTPS
  espfw-server serve --cert cert.pem --key key.pem --port 8443`,
	RunE: runServe,
}

func init() {
	defaults := server.DefaultConfig()
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", defaults.Port, "Listen port")
	serveCmd.Flags().StringVar(&basePath, "base-path", defaults.BasePath, "Prefix of every API route")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", defaults.DataDir, "Directory for the database and firmware binaries")
	serveCmd.Flags().StringVar(&seedPath, "seed", "", "YAML file with users, projects and devices")
	serveCmd.Flags().StringVar(&jwtSecret, "jwt-secret", os.Getenv("ESPFW_JWT_SECRET"), "Token signing secret (default $ESPFW_JWT_SECRET, random if unset)")
	serveCmd.Flags().DurationVar(&tokenTTL, "token-ttl", defaults.TokenTTL, "Session token lifetime")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Advertise the backend via mDNS")
	serveCmd.Flags().StringVar(&instance, "instance", defaults.Instance, "mDNS instance name")
	serveCmd.Flags().StringVar(&logLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if (certPath == "") != (keyPath == "") {
		return fmt.Errorf("both --cert and --key must be provided together")
	}
	if seedPath != "" {
		if _, err := os.Stat(seedPath); os.IsNotExist(err) {
			return fmt.Errorf("seed file not found: %s", seedPath)
		}
	}

	srv, err := server.New(&server.Config{
		Host:      host,
		Port:      port,
		BasePath:  basePath,
		DataDir:   dataDir,
		SeedPath:  seedPath,
		JWTSecret: jwtSecret,
		TokenTTL:  tokenTTL,
		CertPath:  certPath,
		KeyPath:   keyPath,
		Advertise: advertise,
		Instance:  instance,
		LogLevel:  logLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("espfw-server %s\n", version.Full())
	},
}
