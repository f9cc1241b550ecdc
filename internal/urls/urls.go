package urls

import (
	"net/url"
	"strings"
)

// REST paths of the firmware backend, relative to the deployment base URL.
const (
	FirmwareList   = "/firmware/firmwares-details"
	FirmwareUpload = "/firmware/upload"
	FirmwareEvents = "/firmware/events"
	Devices        = "/devices"
	Projects       = "/projects"
	Login          = "/auth/login"

	firmwareDownload = "/firmware/download/"
	firmwareDelete   = "/firmware/delete/"
)

// DefaultBackendURL is the base URL used when nothing is configured.
const DefaultBackendURL = "http://localhost:5000/api"

// FirmwareDownload returns the download path for a firmware id.
func FirmwareDownload(id string) string {
	return firmwareDownload + url.PathEscape(id)
}

// FirmwareDelete returns the delete path for a firmware id.
func FirmwareDelete(id string) string {
	return firmwareDelete + url.PathEscape(id)
}

// Join appends path to base without doubling slashes.
func Join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// DownloadURL is the absolute download link written into exports.
func DownloadURL(base, id string) string {
	return Join(base, FirmwareDownload(id))
}

// WebSocket converts an http(s) URL into its ws(s) equivalent.
func WebSocket(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}
