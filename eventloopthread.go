// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "sync"

// ThreadInitCallback runs on a worker's own goroutine, just before its
// EventLoop starts running.
type ThreadInitCallback func(*EventLoop)

// EventLoopThread spawns one worker goroutine that constructs and runs
// exactly one EventLoop. StartLoop blocks until the worker has published
// its loop, matching the original's condition-variable handshake.
type EventLoopThread struct {
	opts []EventLoopOption
	init ThreadInitCallback

	mu   sync.Mutex
	cond *sync.Cond
	loop *EventLoop
	done chan struct{}
}

// NewEventLoopThread constructs a thread wrapper; the worker isn't started
// until StartLoop is called.
func NewEventLoopThread(init ThreadInitCallback, opts ...EventLoopOption) *EventLoopThread {
	t := &EventLoopThread{opts: opts, init: init, done: make(chan struct{})}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// StartLoop spawns the worker goroutine and blocks until its EventLoop is
// constructed and about to run, returning that loop.
func (t *EventLoopThread) StartLoop() (*EventLoop, error) {
	constructErr := make(chan error, 1)
	go func() {
		loop, err := NewEventLoop(t.opts...)
		if err != nil {
			constructErr <- err
			return
		}

		t.mu.Lock()
		t.loop = loop
		t.cond.Signal()
		t.mu.Unlock()
		constructErr <- nil

		if t.init != nil {
			t.init(loop)
		}
		_ = loop.Run()

		t.mu.Lock()
		t.loop = nil
		t.mu.Unlock()
		close(t.done)
	}()

	if err := <-constructErr; err != nil {
		return nil, err
	}

	t.mu.Lock()
	for t.loop == nil {
		t.cond.Wait()
	}
	loop := t.loop
	t.mu.Unlock()
	return loop, nil
}

// Wait blocks until the worker's EventLoop has returned from Run.
func (t *EventLoopThread) Wait() { <-t.done }
