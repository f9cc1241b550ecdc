// Package logging provides structured logging for espfw.
//
// This package wraps zap with package-level helpers. Logging is silent unless
// a level is passed to Initialize or set in ESPFW_LOG_LEVEL, so CLI output
// and the dashboard stay clean by default. Logs go to stderr.
//
// # Log Levels
//
//   - Debug: backend requests and responses
//   - Info: bulk item outcomes, change-feed connections, served requests
//   - Warn: failed bulk items, dropped change-feed connections
//   - Error: startup failures
//
// # Structured Logging
//
//	logging.Info("Firmware uploaded",
//	    zap.String("firmware_id", fw.ID),
//	    zap.String("esp_id", fw.EspID),
//	)
//
// Helpers for recurring events:
//
//	logging.LogRequest("GET", url)
//	logging.LogResponse("GET", url, resp.StatusCode, time.Since(start))
//	logging.LogBulkItem("delete", id, err)
//	logging.LogHTTPRequest(c.ClientIP(), method, path, status, elapsed)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// are meant to be called once at startup.
package logging
