package listing

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/muurk/espfw/internal/locale"
	"github.com/muurk/espfw/internal/models"
)

// Matcher reports whether a firmware matches a free-text search term.
//
// A record matches when the term is a case-insensitive substring of its
// version, its device's display name, or its upload date as rendered by the
// locale. An empty term matches everything.
type Matcher struct {
	term    string
	devices []models.Device
	locale  locale.Locale
	fold    cases.Caser
}

// NewMatcher prepares a matcher for term over the given device collection.
func NewMatcher(term string, devices []models.Device, loc locale.Locale) *Matcher {
	fold := cases.Fold()
	return &Matcher{
		term:    fold.String(term),
		devices: devices,
		locale:  loc,
		fold:    fold,
	}
}

// Match applies the search predicate to fw.
func (m *Matcher) Match(fw *models.Firmware) bool {
	if m.term == "" {
		return true
	}
	if m.contains(fw.Version) {
		return true
	}
	if fw.UploadedDate != nil && m.contains(m.locale.Date(*fw.UploadedDate)) {
		return true
	}
	deviceName := ""
	if d := models.FindDevice(m.devices, fw.EspID); d != nil {
		deviceName = d.Name
	}
	return m.contains(deviceName)
}

func (m *Matcher) contains(field string) bool {
	return strings.Contains(m.fold.String(field), m.term)
}

// Filter returns the firmwares matching search and, when deviceFilter is
// non-empty, targeting that device. Received order is preserved.
func Filter(firmwares []models.Firmware, devices []models.Device, search, deviceFilter string, loc locale.Locale) []models.Firmware {
	m := NewMatcher(search, devices, loc)
	out := make([]models.Firmware, 0, len(firmwares))
	for i := range firmwares {
		fw := &firmwares[i]
		if !m.Match(fw) {
			continue
		}
		if deviceFilter != "" && fw.EspID != deviceFilter {
			continue
		}
		out = append(out, *fw)
	}
	return out
}
