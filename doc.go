// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor implements a small, event-driven TCP server core built on
// the "one loop per thread" reactor pattern: a Multiplexer wraps the OS
// readiness facility, an EventLoop dispatches Channel callbacks on a single
// owning thread, an Acceptor distributes new connections across a
// ThreadPool of worker loops, and a TcpConnection owns the per-connection
// buffering and state machine.
//
// # Layering
//
//   - Multiplexer: epoll-equivalent readiness backend (poller_epoll_linux.go)
//     with an optional poll(2) fallback (poller_poll_linux.go).
//   - Channel: binds one file descriptor, its requested event mask and up
//     to four handlers to exactly one owning EventLoop.
//   - EventLoop: a single-threaded cooperative scheduler with a cross-thread
//     task queue and a self-pipe wakeup descriptor.
//   - EventLoopThread / ThreadPool: spawn workers, each running one loop,
//     and hand out loops round-robin.
//   - Acceptor: owns the listening socket on the main loop.
//   - TcpConnection: per-connection state machine bound to a worker loop.
//
// # Scope
//
// This package is transport only: timers, DNS, TLS, HTTP and any
// application framing are the host's responsibility. Its own diagnostics go
// through a pluggable Logger (a stderr text logger by default; see
// WithLogger and SetLogger). See cmd/echo and
// cmd/discard for worked examples of wiring a host server on top of the
// core.
package reactor
