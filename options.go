// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"os"
	"time"
)

// defaultPollTimeout matches the original's kPollTimeMs = 10000.
const defaultPollTimeout = 10 * time.Second

// backend names accepted by WithBackend.
const (
	BackendEpoll = "epoll"
	BackendPoll  = "poll"
)

// eventLoopOptions holds configuration resolved from EventLoopOption values.
type eventLoopOptions struct {
	pollTimeout time.Duration
	backend     string
	logger      *Logger
}

func defaultEventLoopOptions() *eventLoopOptions {
	backend := BackendEpoll
	if _, ok := os.LookupEnv("MUDUO_USE_POLL"); ok {
		backend = BackendPoll
	}
	return &eventLoopOptions{
		pollTimeout: defaultPollTimeout,
		backend:     backend,
		logger:      defaultLogger,
	}
}

// EventLoopOption configures an EventLoop at construction.
type EventLoopOption interface {
	applyEventLoop(*eventLoopOptions)
}

type eventLoopOptionFunc func(*eventLoopOptions)

func (f eventLoopOptionFunc) applyEventLoop(o *eventLoopOptions) { f(o) }

// WithPollTimeout overrides the Multiplexer's blocking poll timeout.
// Default is 10 seconds, matching the original's kPollTimeMs.
func WithPollTimeout(d time.Duration) EventLoopOption {
	return eventLoopOptionFunc(func(o *eventLoopOptions) { o.pollTimeout = d })
}

// WithBackend selects "epoll" or "poll", overriding the MUDUO_USE_POLL
// environment variable programmatically.
func WithBackend(name string) EventLoopOption {
	return eventLoopOptionFunc(func(o *eventLoopOptions) { o.backend = name })
}

// WithLogger installs a logiface-backed logger on the EventLoop and
// anything constructed from it (Acceptor, TcpConnection) that doesn't
// receive its own via SetLogger.
func WithLogger(l *Logger) EventLoopOption {
	return eventLoopOptionFunc(func(o *eventLoopOptions) {
		if l != nil {
			o.logger = l
		}
	})
}

// acceptorOptions holds configuration resolved from AcceptorOption values.
type acceptorOptions struct {
	reusePort bool
}

// AcceptorOption configures an Acceptor at construction.
type AcceptorOption interface {
	applyAcceptor(*acceptorOptions)
}

type acceptorOptionFunc func(*acceptorOptions)

func (f acceptorOptionFunc) applyAcceptor(o *acceptorOptions) { f(o) }

// WithReusePort enables SO_REUSEPORT on the listening socket.
func WithReusePort(enabled bool) AcceptorOption {
	return acceptorOptionFunc(func(o *acceptorOptions) { o.reusePort = enabled })
}

// connectionOptions holds configuration resolved from ConnectionOption
// values, applied when a server wraps a newly-accepted descriptor in a
// TcpConnection.
type connectionOptions struct {
	highWaterMark int
	logger        *Logger
}

func defaultConnectionOptions() *connectionOptions {
	return &connectionOptions{
		highWaterMark: 64 * 1024 * 1024,
		logger:        defaultLogger,
	}
}

// ConnectionOption configures a TcpConnection at construction.
type ConnectionOption interface {
	applyConnection(*connectionOptions)
}

type connectionOptionFunc func(*connectionOptions)

func (f connectionOptionFunc) applyConnection(o *connectionOptions) { f(o) }

// WithHighWaterMark sets the output-buffer size threshold, in bytes; the
// high-water-mark callback fires once each time the buffered size goes from
// below the threshold to at or above it.
func WithHighWaterMark(bytes int) ConnectionOption {
	return connectionOptionFunc(func(o *connectionOptions) { o.highWaterMark = bytes })
}

// SetLogger installs a logiface-backed logger on a TcpConnection.
func SetLogger(l *Logger) ConnectionOption {
	return connectionOptionFunc(func(o *connectionOptions) {
		if l != nil {
			o.logger = l
		}
	})
}
