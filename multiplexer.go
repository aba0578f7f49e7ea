// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "time"

// Multiplexer is a thin interface over the OS readiness facility. An
// EventLoop owns exactly one for its lifetime.
type Multiplexer interface {
	// Poll blocks up to timeout for readiness, returning the wall-clock
	// reading taken immediately after the kernel call (even on timeout)
	// and the channels that became ready during this call, in the order
	// the kernel reported them.
	Poll(timeout time.Duration) (Timestamp, []*Channel, error)

	// Update reconciles the multiplexer's view of channel with its
	// current requested mask and registration state. Must be called from
	// the owning loop.
	Update(channel *Channel)

	// Remove untracks channel; the caller guarantees it will not be
	// dispatched afterwards. Must be called from the owning loop.
	Remove(channel *Channel)

	// Has reports whether channel is currently tracked.
	Has(channel *Channel) bool
}

// newDefaultMultiplexer selects epollMultiplexer, unless MUDUO_USE_POLL
// (or WithBackend(BackendPoll)) asked for the poll(2) backend, matching
// Poller::newDefaultPoller's environment-variable switch.
func newDefaultMultiplexer(backend string) (Multiplexer, error) {
	if backend == BackendPoll {
		return newPollMultiplexer()
	}
	return newEpollMultiplexer()
}
