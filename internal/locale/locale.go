// Package locale renders dates and times the way a browser locale does, so
// that the search box and spreadsheet exports show identical date strings.
package locale

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// DefaultTag is used when no locale is configured.
const DefaultTag = "en-US"

// Locale is a date/time rendering profile.
type Locale struct {
	Tag        string
	DateLayout string
	TimeLayout string
	Location   *time.Location
}

type profile struct {
	tag        language.Tag
	dateLayout string
	timeLayout string
}

// Order matters: index 0 is the fallback the matcher picks on no match.
var profiles = []profile{
	{language.AmericanEnglish, "1/2/2006", "3:04:05 PM"},
	{language.BritishEnglish, "02/01/2006", "15:04:05"},
	{language.German, "2.1.2006", "15:04:05"},
	{language.French, "02/01/2006", "15:04:05"},
}

var matcher = func() language.Matcher {
	tags := make([]language.Tag, len(profiles))
	for i, p := range profiles {
		tags[i] = p.tag
	}
	return language.NewMatcher(tags)
}()

// Default returns the en-US profile in the local time zone.
func Default() Locale {
	p := profiles[0]
	return Locale{
		Tag:        DefaultTag,
		DateLayout: p.dateLayout,
		TimeLayout: p.timeLayout,
		Location:   time.Local,
	}
}

// Lookup resolves a BCP 47 tag (or "iso") and an IANA zone name into a
// Locale. Empty values fall back to en-US and the local zone.
func Lookup(tag, zone string) (Locale, error) {
	loc := time.Local
	if zone != "" && !strings.EqualFold(zone, "local") {
		l, err := time.LoadLocation(zone)
		if err != nil {
			return Locale{}, fmt.Errorf("unknown timezone %q: %w", zone, err)
		}
		loc = l
	}

	if strings.EqualFold(tag, "iso") {
		return Locale{Tag: "iso", DateLayout: "2006-01-02", TimeLayout: "15:04:05", Location: loc}, nil
	}
	if tag == "" {
		tag = DefaultTag
	}

	parsed, err := language.Parse(tag)
	if err != nil {
		return Locale{}, fmt.Errorf("invalid locale %q: %w", tag, err)
	}
	_, index, _ := matcher.Match(parsed)
	p := profiles[index]

	return Locale{
		Tag:        parsed.String(),
		DateLayout: p.dateLayout,
		TimeLayout: p.timeLayout,
		Location:   loc,
	}, nil
}

// Date renders the short date, e.g. "1/15/2024" for en-US.
func (l Locale) Date(t time.Time) string {
	return t.In(l.location()).Format(l.DateLayout)
}

// Time renders the time of day, e.g. "10:30:00 AM" for en-US.
func (l Locale) Time(t time.Time) string {
	return t.In(l.location()).Format(l.TimeLayout)
}

func (l Locale) location() *time.Location {
	if l.Location == nil {
		return time.Local
	}
	return l.Location
}
