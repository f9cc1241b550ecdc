// Package models defines the firmware, device, project and user records
// exchanged with the firmware backend.
//
// Records are decoded leniently: optional timestamps may be absent, null or
// empty, and file sizes may arrive as JSON numbers or numeric strings. A
// record that cannot be decoded fails the whole list, matching how the
// backend is consumed elsewhere.
//
// # Relationships
//
//   - Firmware.EspID references Device.DeviceID (not Device.ID)
//   - Device.Project references Project.ID
//
// Missing references are never errors. Lookups return nil and callers render
// fallback values such as "Unknown" or "N/A".
package models
