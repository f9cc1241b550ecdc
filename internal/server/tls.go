package server

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/espfw/internal/logging"
)

// NewTLSConfig loads a certificate pair for serving HTTPS.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// GetTLSInfo returns human-readable TLS configuration information
func GetTLSInfo(config *tls.Config) map[string]interface{} {
	if config == nil {
		return map[string]interface{}{"enabled": false}
	}
	minVersion := "TLS 1.2"
	if config.MinVersion == tls.VersionTLS13 {
		minVersion = "TLS 1.3"
	}
	return map[string]interface{}{
		"enabled":     true,
		"min_version": minVersion,
		"num_certs":   len(config.Certificates),
	}
}
