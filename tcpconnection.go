// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ConnectionState is the TcpConnection lifecycle state.
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection-lifecycle callback signatures, all invoked on the owning
// worker loop.
type (
	ConnectionHandler    func(conn *TcpConnection)
	MessageHandler       func(conn *TcpConnection, buf *Buffer, receiveTime Timestamp)
	WriteCompleteHandler func(conn *TcpConnection)
	HighWaterMarkHandler func(conn *TcpConnection, currentOutputSize int)
)

// tieHandle is the weakRef a Channel upgrades at dispatch entry. Go has no
// native weak pointer; closures captured on the Channel already keep the
// TcpConnection reachable, so the only thing this needs to provide is "has
// Destroy already run" — checked with an atomic flag rather than an actual
// reclaim.
type tieHandle struct {
	alive atomic.Bool
}

func (t *tieHandle) upgrade() bool { return t.alive.Load() }

// TcpConnection is a per-connection state machine bound to exactly one
// worker EventLoop. It owns the connected socket, its Channel, and the
// input/output Buffers. TcpConnection values are constructed by the
// server (via a ThreadPool's loop), never directly by user code.
type TcpConnection struct {
	loop *EventLoop
	name string

	state     atomic.Int32
	destroyed atomic.Bool

	fd  int
	ch  *Channel
	tie *tieHandle

	localAddr Endpoint
	peerAddr  Endpoint

	input  *Buffer
	output *Buffer

	highWaterMark int
	logger        *Logger

	connectionHandler    ConnectionHandler
	messageHandler       MessageHandler
	writeCompleteHandler WriteCompleteHandler
	highWaterMarkHandler HighWaterMarkHandler
	closeHandler         ConnectionHandler
}

// NewTcpConnection constructs a CONNECTING TcpConnection bound to loop for
// an already-accepted, non-blocking fd. It installs the Channel's handlers
// and enables TCP keep-alive, but does not enable read interest or fire
// any callback until Establish runs on loop.
func NewTcpConnection(loop *EventLoop, name string, fd int, local, peer Endpoint, opts ...ConnectionOption) *TcpConnection {
	cfg := defaultConnectionOptions()
	cfg.logger = loop.Logger()
	for _, o := range opts {
		o.applyConnection(cfg)
	}

	c := &TcpConnection{
		loop:          loop,
		name:          name,
		fd:            fd,
		localAddr:     local,
		peerAddr:      peer,
		input:         NewBuffer(),
		output:        NewBuffer(),
		highWaterMark: cfg.highWaterMark,
		logger:        cfg.logger,
		tie:           &tieHandle{},
	}
	c.state.Store(int32(StateConnecting))

	_ = setKeepAlive(fd, true)

	c.ch = NewChannel(loop, fd)
	c.ch.SetReadHandler(c.handleRead)
	c.ch.SetWriteHandler(c.handleWrite)
	c.ch.SetCloseHandler(c.handleClose)
	c.ch.SetErrorHandler(c.handleError)

	return c
}

// Name returns the connection's stable, server-assigned name.
func (c *TcpConnection) Name() string { return c.name }

// LocalAddr returns the local Endpoint.
func (c *TcpConnection) LocalAddr() Endpoint { return c.localAddr }

// PeerAddr returns the peer's Endpoint.
func (c *TcpConnection) PeerAddr() Endpoint { return c.peerAddr }

// State returns the current lifecycle state. Safe to call from any
// thread; reflects the state as of the most recent owning-loop mutation.
func (c *TcpConnection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// SetConnectionHandler installs the connection-up/down callback.
func (c *TcpConnection) SetConnectionHandler(h ConnectionHandler) { c.connectionHandler = h }

// SetMessageHandler installs the message callback.
func (c *TcpConnection) SetMessageHandler(h MessageHandler) { c.messageHandler = h }

// SetWriteCompleteHandler installs the write-complete callback.
func (c *TcpConnection) SetWriteCompleteHandler(h WriteCompleteHandler) { c.writeCompleteHandler = h }

// SetHighWaterMarkHandler installs the high-water-mark callback.
func (c *TcpConnection) SetHighWaterMarkHandler(h HighWaterMarkHandler) { c.highWaterMarkHandler = h }

// SetCloseHandler installs the server's internal close callback (e.g. to
// remove the connection from its map and schedule Destroy).
func (c *TcpConnection) SetCloseHandler(h ConnectionHandler) { c.closeHandler = h }

// Establish transitions CONNECTING -> CONNECTED: ties the Channel, enables
// read interest, and fires the connection-up callback. Must run on the
// owning loop (the server schedules it there via RunInLoop right after
// construction).
func (c *TcpConnection) Establish() {
	c.state.Store(int32(StateConnected))
	c.tie.alive.Store(true)
	c.ch.Tie(c.tie)
	c.ch.EnableReading()
	if c.connectionHandler != nil {
		c.connectionHandler(c)
	}
}

// Destroy transitions any state to DISCONNECTED (firing the connection-down
// callback exactly once, if it hasn't already fired via handleClose) and
// releases the Channel and the underlying descriptor. It is the server's
// job to call this once, after its close callback has removed the
// connection from its map; safe to call more than once, subsequent calls
// are no-ops.
func (c *TcpConnection) Destroy() {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	c.fireDownOnce()
	c.ch.DisableAll()
	c.ch.Remove()
	_ = unix.Close(c.fd)
}

// fireDownOnce transitions to DISCONNECTED and fires the connection-down
// callback, unless a prior call (from handleClose or Destroy) already did.
func (c *TcpConnection) fireDownOnce() {
	if ConnectionState(c.state.Swap(int32(StateDisconnected))) == StateDisconnected {
		return
	}
	c.tie.alive.Store(false)
	if c.connectionHandler != nil {
		c.connectionHandler(c)
	}
}

func (c *TcpConnection) handleRead(now Timestamp) {
	n, err := c.input.ReadFromFD(c.fd)
	switch {
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		// Readable fired on POLLPRI alone, or the data raced us; nothing
		// to do until the next readiness notification.
	case err != nil:
		c.handleErrorErrno(err)
	case n > 0:
		if c.messageHandler != nil {
			c.messageHandler(c, c.input, now)
		}
	default:
		c.handleClose()
	}
}

func (c *TcpConnection) handleWrite() {
	if !c.ch.IsWriting() {
		return
	}
	n, err := c.output.WriteToFD(c.fd)
	if err != nil {
		logHandleError(c.logger, c.name, err)
		return
	}
	if n > 0 {
		c.output.Retrieve(n)
	}
	if c.output.ReadableBytes() == 0 {
		c.ch.DisableWriting()
		if c.writeCompleteHandler != nil {
			handler := c.writeCompleteHandler
			c.loop.QueueInLoop(func() { handler(c) })
		}
		if c.State() == StateDisconnecting {
			_ = shutdownWrite(c.fd)
		}
	}
}

func (c *TcpConnection) handleClose() {
	if c.State() == StateDisconnected {
		return
	}
	c.ch.DisableAll()
	c.fireDownOnce()
	if c.closeHandler != nil {
		c.closeHandler(c)
	}
}

func (c *TcpConnection) handleErrorErrno(err error) {
	logHandleError(c.logger, c.name, err)
}

func (c *TcpConnection) handleError() {
	logHandleError(c.logger, c.name, nil)
}

// Send queues bytes for delivery to the peer. Callable from any thread:
// on the owning loop it writes (or buffers) immediately; from a foreign
// thread the bytes are copied into a task, so the caller's slice need not
// outlive the call.
func (c *TcpConnection) Send(data []byte) {
	if c.loop.isOnLoopThread() {
		c.sendInLoop(data)
		return
	}
	owned := append([]byte(nil), data...)
	c.loop.QueueInLoop(func() { c.sendInLoop(owned) })
}

func (c *TcpConnection) sendInLoop(data []byte) {
	if c.State() == StateDisconnected {
		logSendOnClosed(c.logger, c.name)
		return
	}

	remaining := data
	wroteDirectly := false
	if !c.ch.IsWriting() && c.output.ReadableBytes() == 0 {
		n, err := unix.Write(c.fd, data)
		switch {
		case err != nil && (err == unix.EAGAIN || err == unix.EWOULDBLOCK):
			n = 0
		case err != nil:
			logHandleError(c.logger, c.name, err)
			n = 0
		default:
			if n >= len(data) {
				wroteDirectly = true
				if c.writeCompleteHandler != nil {
					handler := c.writeCompleteHandler
					c.loop.QueueInLoop(func() { handler(c) })
				}
			}
		}
		if n > 0 && n < len(data) {
			remaining = data[n:]
		} else if wroteDirectly {
			remaining = nil
		}
	}

	if len(remaining) == 0 {
		return
	}

	before := c.output.ReadableBytes()
	c.output.Append(remaining)
	after := c.output.ReadableBytes()
	if before < c.highWaterMark && after >= c.highWaterMark && c.highWaterMarkHandler != nil {
		handler := c.highWaterMarkHandler
		size := after
		c.loop.QueueInLoop(func() { handler(c, size) })
	}
	if !c.ch.IsWriting() {
		c.ch.EnableWriting()
	}
}

// Shutdown half-closes the connection once the output buffer has drained.
// Callable from any thread.
func (c *TcpConnection) Shutdown() {
	if c.loop.isOnLoopThread() {
		c.shutdownInLoop()
		return
	}
	c.loop.QueueInLoop(c.shutdownInLoop)
}

func (c *TcpConnection) shutdownInLoop() {
	if c.State() != StateConnected {
		return
	}
	c.state.Store(int32(StateDisconnecting))
	if !c.ch.IsWriting() {
		_ = shutdownWrite(c.fd)
	}
}
