package countdown

import (
	"fmt"
	"strings"
	"time"
)

// Reading is a point-in-time view of the timer for presentation.
type Reading struct {
	Enabled   bool          `json:"enabled"`
	Running   bool          `json:"running"`
	Remaining time.Duration `json:"remaining"`
	Total     time.Duration `json:"total"`
}

// Fraction returns remaining/total in [0, 1]. An empty pool reads as 0.
func (r Reading) Fraction() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Remaining) / float64(r.Total)
}

// Hue maps the remaining fraction onto a red (0) to green (120) hue for
// progress colouring.
func (r Reading) Hue() float64 {
	return r.Fraction() * 120
}

// Text returns the countdown label, see FormatClock.
func (r Reading) Text() string {
	return FormatClock(r.Remaining)
}

// FormatClock renders d rounded up to whole seconds as MM:SS, or HH:MM:SS
// once it reaches an hour. Rounding up keeps "00:00" for the instant the
// pool is actually empty.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)

	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%02d", hours))
	}
	parts = append(parts, fmt.Sprintf("%02d", minutes), fmt.Sprintf("%02d", seconds))
	return strings.Join(parts, ":")
}
