// Package trial computes trial window state from a start date and a duration
// in calendar days. Day arithmetic ignores the time-of-day within a day, so a
// trial started at 23:59 still counts that whole calendar day as day zero.
package trial

import (
	"time"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

type Option func(*Calculator)

// WithClock replaces the wall clock, mainly for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// Calculator evaluates trial windows against a wall clock.
type Calculator struct {
	now func() time.Time
}

func New(opts ...Option) *Calculator {
	c := &Calculator{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RemainingDays returns the trial days left for a feature. The result may be
// negative, meaning the trial expired that many days ago.
func (c *Calculator) RemainingDays(featureID string, start time.Time, durationDays int) (int, error) {
	if featureID == "" {
		return 0, purchase.NewInvalidInput("Feature ID must not be empty")
	}
	if err := c.validateWindow(start, durationDays); err != nil {
		return 0, err
	}
	return durationDays - elapsedDays(start, c.now()), nil
}

// IsExpired reports whether the trial window has run out. A zero-day trial is
// expired from the start.
func (c *Calculator) IsExpired(start time.Time, durationDays int) (bool, error) {
	if err := c.validateWindow(start, durationDays); err != nil {
		return false, err
	}
	return durationDays-elapsedDays(start, c.now()) <= 0, nil
}

// EndDate returns the instant the trial ends, durationDays calendar days after
// start with the time-of-day preserved.
func (c *Calculator) EndDate(start time.Time, durationDays int) (time.Time, error) {
	if err := c.validateWindow(start, durationDays); err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 0, durationDays), nil
}

func (c *Calculator) validateWindow(start time.Time, durationDays int) error {
	if durationDays < 0 {
		return purchase.NewInvalidInput("duration must be non-negative")
	}
	if start.After(c.now()) {
		return purchase.NewInvalidInput("start date cannot be in the future")
	}
	return nil
}

// elapsedDays counts whole calendar days between the two instants. Both are
// collapsed to UTC midnights of their own calendar dates first, which keeps
// the subtraction an exact multiple of 24h regardless of DST in the inputs'
// locations.
func elapsedDays(start, now time.Time) int {
	return int(midnightUTC(now.In(start.Location())).Sub(midnightUTC(start)) / (24 * time.Hour))
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
