// Package expiry derives display timing for invitations from an expiry instant
// and an explicitly supplied current time. It never decides whether an
// invitation may be accepted; that is the server's can_be_accepted flag.
package expiry

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	Day = 24 * time.Hour

	// SoonWindow is how close to expiry an invitation is flagged as urgent.
	SoonWindow = 2 * Day

	Expired  = "expired"
	UnderDay = "<1 day"
)

// Remaining returns the time left before expiresAt, never negative.
func Remaining(expiresAt, now time.Time) time.Duration {
	if !expiresAt.After(now) {
		return 0
	}
	return expiresAt.Sub(now)
}

func IsExpired(expiresAt, now time.Time) bool {
	return !expiresAt.After(now)
}

// IsExpiringSoon is true when the invitation expires within SoonWindow but has not expired yet.
func IsExpiringSoon(expiresAt, now time.Time) bool {
	remaining := expiresAt.Sub(now)
	return remaining > 0 && remaining <= SoonWindow
}

// TimeUntilExpiry renders the remaining time at day granularity: "expired",
// "<1 day", or the remaining days rounded up.
func TimeUntilExpiry(expiresAt, now time.Time) string {
	remaining := Remaining(expiresAt, now)
	if remaining == 0 {
		return Expired
	}
	if remaining < Day {
		return UnderDay
	}
	days := int64(remaining / Day)
	if remaining%Day != 0 {
		days++
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// Relative renders expiresAt relative to now, e.g. "3 days from now" or "2 hours ago".
func Relative(expiresAt, now time.Time) string {
	return humanize.RelTime(expiresAt, now, "ago", "from now")
}
