package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultFileName is used when a firmware record carries no file name at all.
const DefaultFileName = "firmware.bin"

// Firmware is the metadata record describing one uploaded binary.
type Firmware struct {
	ID               string     `json:"_id"`
	Version          string     `json:"version"`
	Description      string     `json:"description,omitempty"`
	EspID            string     `json:"esp_id"`                     // Device.DeviceID of the target device
	FileName         string     `json:"fileName,omitempty"`         // Stored name on the server
	OriginalFileName string     `json:"originalFileName,omitempty"` // Name the file was uploaded with
	FileSize         *int64     `json:"fileSize,omitempty"`
	UploadedDate     *time.Time `json:"uploadedDate,omitempty"`
}

// SaveName returns the file name bulk downloads are saved under.
func (f *Firmware) SaveName() string {
	if f.FileName != "" {
		return f.FileName
	}
	return DefaultFileName
}

// DisplayFileName returns the name a single download is saved under and the
// name used in failure notices.
func (f *Firmware) DisplayFileName() string {
	switch {
	case f.OriginalFileName != "":
		return f.OriginalFileName
	case f.FileName != "":
		return f.FileName
	default:
		return DefaultFileName
	}
}

// UnmarshalJSON accepts absent/empty timestamps and string or numeric sizes.
// A size or timestamp that cannot be parsed decodes as absent.
func (f *Firmware) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID               string          `json:"_id"`
		Version          string          `json:"version"`
		Description      *string         `json:"description"`
		EspID            string          `json:"esp_id"`
		FileName         string          `json:"fileName"`
		OriginalFileName string          `json:"originalFileName"`
		FileSize         json.RawMessage `json:"fileSize"`
		UploadedDate     json.RawMessage `json:"uploadedDate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	size, err := parseSize(raw.FileSize)
	if err != nil {
		size = nil
	}
	uploaded, err := parseTimestamp(raw.UploadedDate)
	if err != nil {
		uploaded = nil
	}

	*f = Firmware{
		ID:               raw.ID,
		Version:          raw.Version,
		EspID:            raw.EspID,
		FileName:         raw.FileName,
		OriginalFileName: raw.OriginalFileName,
		FileSize:         size,
		UploadedDate:     uploaded,
	}
	if raw.Description != nil {
		f.Description = *raw.Description
	}
	return nil
}

// Device is a networked ESP device as reported by the device service.
type Device struct {
	ID          string     `json:"_id,omitempty"` // Database id, never used as a foreign key here
	DeviceID    string     `json:"deviceId"`
	Name        string     `json:"name"`
	Project     string     `json:"project,omitempty"` // Project.ID
	Status      string     `json:"status,omitempty"`
	DateCreated *time.Time `json:"dateCreated,omitempty"`
}

// Label renders the device the way pickers show it: "name (deviceId)".
func (d *Device) Label() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.DeviceID)
}

// UnmarshalJSON accepts an absent, empty or unparseable creation date.
func (d *Device) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string          `json:"_id"`
		DeviceID    string          `json:"deviceId"`
		Name        string          `json:"name"`
		Project     string          `json:"project"`
		Status      string          `json:"status"`
		DateCreated json.RawMessage `json:"dateCreated"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	created, err := parseTimestamp(raw.DateCreated)
	if err != nil {
		created = nil
	}
	*d = Device{
		ID:          raw.ID,
		DeviceID:    raw.DeviceID,
		Name:        raw.Name,
		Project:     raw.Project,
		Status:      raw.Status,
		DateCreated: created,
	}
	return nil
}

// Project groups devices.
type Project struct {
	ID          string `json:"_id"`
	ProjectName string `json:"projectName"`
}

// User is the logged-in identity stored alongside the session token.
type User struct {
	ID    string `json:"_id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
}

// DecodeDevices decodes a device list. Payloads that are not JSON arrays
// (for example an error object) decode to an empty list.
func DecodeDevices(data []byte) ([]Device, error) {
	if !isArray(data) {
		return []Device{}, nil
	}
	var devices []Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// DecodeProjects decodes a project list with the same leniency as DecodeDevices.
func DecodeProjects(data []byte) ([]Project, error) {
	if !isArray(data) {
		return []Project{}, nil
	}
	var projects []Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// DecodeFirmwares decodes the firmware list. Unlike devices, a non-array
// payload is an error.
func DecodeFirmwares(data []byte) ([]Firmware, error) {
	var firmwares []Firmware
	if err := json.Unmarshal(data, &firmwares); err != nil {
		return nil, err
	}
	if firmwares == nil {
		firmwares = []Firmware{}
	}
	return firmwares, nil
}

// FindDevice returns the device with the given device identifier, or nil.
func FindDevice(devices []Device, deviceID string) *Device {
	for i := range devices {
		if devices[i].DeviceID == deviceID {
			return &devices[i]
		}
	}
	return nil
}

// FindProject returns the project with the given id, or nil.
func FindProject(projects []Project, id string) *Project {
	for i := range projects {
		if projects[i].ID == id {
			return &projects[i]
		}
	}
	return nil
}

// FindFirmware returns the firmware with the given id, or nil.
func FindFirmware(firmwares []Firmware, id string) *Firmware {
	for i := range firmwares {
		if firmwares[i].ID == id {
			return &firmwares[i]
		}
	}
	return nil
}

// DevicesInProject returns the devices owned by projectID, in received order.
func DevicesInProject(devices []Device, projectID string) []Device {
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.Project == projectID {
			out = append(out, d)
		}
	}
	return out
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func parseTimestamp(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseSize(raw json.RawMessage) (*int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if n == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(n.String(), 64)
		if ferr != nil {
			return nil, err
		}
		v = int64(f)
	}
	return &v, nil
}
