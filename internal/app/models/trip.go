package models

import (
	"fmt"
	"time"
)

// TripDateLayout is the wire and form layout of a trip date.
const TripDateLayout = "2006-01-02"

// Location is the starting location chosen in the earlier wizard step. It is
// compared by value.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
}

func (l Location) String() string {
	if l.Label != "" {
		return l.Label
	}
	return fmt.Sprintf("%.5f,%.5f", l.Latitude, l.Longitude)
}

// TripContext carries the read-only upstream inputs of the planner step.
type TripContext struct {
	TripDate         *time.Time
	StartingPoint    string
	StartingLocation *Location
	InputLocation    string
}

// FormatTripDate renders the date for display and for requests; an absent
// date renders as the empty string.
func FormatTripDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(TripDateLayout)
}

// SameLocation reports whether two optional locations hold the same value.
func SameLocation(a, b *Location) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
