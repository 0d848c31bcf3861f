// Package scancode decodes the payload printed on ecoponto site markers.
//
// A marker carries exactly three "::"-separated segments:
//
//	ecoponto+::<site id>::<trailer>
package scancode

import (
	"errors"
	"strings"
)

const (
	Prefix    = "ecoponto+::"
	Delimiter = "::"

	segments = 3
)

var (
	ErrInvalidFormat = errors.New("scancode: not an ecoponto marker")
	ErrMalformed     = errors.New("scancode: malformed ecoponto marker")
)

// Code is a decoded site marker.
type Code struct {
	SiteID string `json:"site_id"`
}

func (c Code) IsZero() bool { return c.SiteID == "" }

// Parse validates raw and returns the site id segment verbatim.
// The id itself is not validated here; the store owns that.
func Parse(raw string) (Code, error) {
	if raw == "" || !strings.HasPrefix(raw, Prefix) {
		return Code{}, ErrInvalidFormat
	}
	parts := strings.Split(raw, Delimiter)
	if len(parts) != segments {
		return Code{}, ErrMalformed
	}
	return Code{SiteID: parts[1]}, nil
}

// Format builds the marker payload for a site.
func Format(siteID, trailer string) string {
	return Prefix + siteID + Delimiter + trailer
}
