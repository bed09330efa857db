// Package system provides the wall clock used for crawl timing.
package system

import "time"

// Clock implements crawler.Clock. Timestamps are in UTC and advance with the
// process monotonic clock, so the difference between two readings is not
// affected by wall-clock steps. Use New; the zero value is not usable.
type Clock struct {
	origin time.Time // carries the monotonic reading
	wall   time.Time // origin in UTC
}

// New anchors a Clock at the current instant.
func New() *Clock {
	now := time.Now()
	return &Clock{origin: now, wall: now.UTC()}
}

// Now returns the current time in UTC.
func (c *Clock) Now() time.Time {
	return c.wall.Add(time.Since(c.origin))
}
