// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Event mask bits, modeled on poll(2)'s POLLIN/POLLOUT/POLLHUP/POLLERR.
const (
	EventNone     uint32 = 0
	EventReadable uint32 = unix.POLLIN | unix.POLLPRI
	EventWritable uint32 = unix.POLLOUT
	eventHangup   uint32 = unix.POLLHUP
	eventError    uint32 = unix.POLLERR
)

// registration state, mirroring the original's kNew/kAdded/kDeleted.
type channelIndex int32

const (
	channelNew channelIndex = iota - 1
	channelAdded
	channelDeleted
)

// ReadHandler, WriteHandler, CloseHandler and ErrorHandler are the four
// event handlers a Channel may carry. now is the Timestamp the Multiplexer
// observed readiness at.
type (
	ReadHandler  func(now Timestamp)
	WriteHandler func()
	CloseHandler func()
	ErrorHandler func()
)

// Channel binds one file descriptor, its requested event mask, and up to
// four handlers to exactly one owning EventLoop. A Channel never owns its
// descriptor; closing it is always the caller's (Acceptor's or
// TcpConnection's) responsibility.
type Channel struct {
	loop *EventLoop
	fd   int

	events  uint32
	revents uint32
	index   channelIndex

	readHandler  ReadHandler
	writeHandler WriteHandler
	closeHandler CloseHandler
	errorHandler ErrorHandler

	// tieMu guards tie; tie is a weak back-reference to the host object
	// (a TcpConnection), upgraded to strong for the duration of
	// handle_event's dispatch. A nil tie means the Channel doesn't need
	// the guard (e.g. the loop's own wakeup Channel).
	tieMu sync.Mutex
	tie   weakRef
}

// weakRef is the minimal "upgrade to strong or fail" contract the tie
// mechanism needs. Go has no native weak pointer, so the host stores an
// "alive" flag handle here instead of an arena index: closures over
// *TcpConnection already keep it reachable for as long as anything holds a
// strong reference, and tie's only job is to let the Channel refuse to
// dispatch once the host has marked itself no longer alive.
type weakRef interface {
	// upgrade reports whether the host is still alive; when it returns
	// false, dispatch must be skipped entirely.
	upgrade() (alive bool)
}

// NewChannel creates a Channel for fd, owned by loop. The Channel is not
// registered with the loop's Multiplexer until one of its mask mutators
// (EnableReading, EnableWriting, ...) is called.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{
		loop:  loop,
		fd:    fd,
		index: channelNew,
	}
}

// Fd returns the bound file descriptor.
func (c *Channel) Fd() int { return c.fd }

// Events returns the currently requested event mask.
func (c *Channel) Events() uint32 { return c.events }

// SetRevents is called by the Multiplexer before dispatch to record the
// kernel-observed readiness for this iteration.
func (c *Channel) SetRevents(revents uint32) { c.revents = revents }

// Index returns the registration state the Multiplexer uses to decide
// ADD/MOD/DEL.
func (c *Channel) Index() channelIndex { return c.index }

// SetIndex is called by the Multiplexer to record registration state.
func (c *Channel) SetIndex(idx channelIndex) { c.index = idx }

// SetReadHandler installs the readable-readiness callback.
func (c *Channel) SetReadHandler(h ReadHandler) { c.readHandler = h }

// SetWriteHandler installs the writable-readiness callback.
func (c *Channel) SetWriteHandler(h WriteHandler) { c.writeHandler = h }

// SetCloseHandler installs the close callback (fired on HUP without
// READABLE, i.e. the peer went away with nothing left to read).
func (c *Channel) SetCloseHandler(h CloseHandler) { c.closeHandler = h }

// SetErrorHandler installs the error callback.
func (c *Channel) SetErrorHandler(h ErrorHandler) { c.errorHandler = h }

// Tie attaches a weak back-reference to the host object. handle_event will
// attempt to upgrade it before dispatching; failure skips dispatch. This is
// what makes a concurrent TcpConnection teardown safe against an in-flight
// readiness notification.
func (c *Channel) Tie(ref weakRef) {
	c.tieMu.Lock()
	c.tie = ref
	c.tieMu.Unlock()
}

// EnableReading sets the readable bit and pushes the new mask to the loop.
func (c *Channel) EnableReading() {
	c.events |= EventReadable
	c.update()
}

// DisableReading clears the readable bit and pushes the new mask.
func (c *Channel) DisableReading() {
	c.events &^= EventReadable
	c.update()
}

// EnableWriting sets the writable bit and pushes the new mask.
func (c *Channel) EnableWriting() {
	c.events |= EventWritable
	c.update()
}

// DisableWriting clears the writable bit and pushes the new mask.
func (c *Channel) DisableWriting() {
	c.events &^= EventWritable
	c.update()
}

// DisableAll clears the entire requested mask.
func (c *Channel) DisableAll() {
	c.events = EventNone
	c.update()
}

// IsWriting reports whether the writable bit is currently requested.
func (c *Channel) IsWriting() bool { return c.events&EventWritable != 0 }

// IsReading reports whether the readable bit is currently requested.
func (c *Channel) IsReading() bool { return c.events&EventReadable != 0 }

// IsNoneEvent reports whether the requested mask is empty.
func (c *Channel) IsNoneEvent() bool { return c.events == EventNone }

func (c *Channel) update() { c.loop.updateChannel(c) }

// Remove untracks the Channel from its loop's Multiplexer. The caller
// guarantees it will not be dispatched afterwards.
func (c *Channel) Remove() { c.loop.removeChannel(c) }

// HandleEvent dispatches the last-observed revents in the fixed order the
// spec requires: close (HUP without READABLE), error, read, write. If a tie
// is attached and fails to upgrade, dispatch is skipped entirely.
func (c *Channel) HandleEvent(now Timestamp) {
	c.tieMu.Lock()
	tie := c.tie
	c.tieMu.Unlock()
	if tie != nil {
		if alive := tie.upgrade(); !alive {
			return
		}
	}
	c.handleEventWithGuard(now)
}

func (c *Channel) handleEventWithGuard(now Timestamp) {
	if c.revents&eventHangup != 0 && c.revents&EventReadable == 0 {
		if c.closeHandler != nil {
			c.closeHandler()
		}
	}
	if c.revents&eventError != 0 {
		if c.errorHandler != nil {
			c.errorHandler()
		}
	}
	if c.revents&EventReadable != 0 {
		if c.readHandler != nil {
			c.readHandler(now)
		}
	}
	if c.revents&EventWritable != 0 {
		if c.writeHandler != nil {
			c.writeHandler()
		}
	}
}
