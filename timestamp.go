// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "time"

// Timestamp is a wall-clock reading, used only to annotate "readiness
// observed at" when a Multiplexer returns from poll.
type Timestamp struct {
	t time.Time
}

// Now returns the current wall-clock time, matching the original's
// Timestamp::now() semantics (a single clock read, not monotonic-adjusted).
func Now() Timestamp { return Timestamp{t: time.Now()} }

// IsZero reports whether this Timestamp was never set.
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// Before reports whether ts happened before other.
func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

// After reports whether ts happened after other.
func (ts Timestamp) After(other Timestamp) bool { return ts.t.After(other.t) }

// String renders the timestamp to microsecond precision.
func (ts Timestamp) String() string { return ts.t.Format("2006-01-02 15:04:05.000000") }

// Time exposes the underlying time.Time for callers that need to do
// arithmetic the Timestamp type itself doesn't provide.
func (ts Timestamp) Time() time.Time { return ts.t }
