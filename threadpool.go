// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "sync/atomic"

// ThreadPool spawns N EventLoopThreads and hands out their loops
// round-robin. With N == 0, GetNextLoop always returns the base loop,
// meaning every connection runs on the main loop instead.
type ThreadPool struct {
	baseLoop *EventLoop
	name     string

	opts    []EventLoopOption
	threads []*EventLoopThread
	loops   []*EventLoop

	next atomic.Uint64
}

// NewThreadPool constructs a pool bound to baseLoop (the loop that will
// own the Acceptor). name is used only for diagnostics.
func NewThreadPool(baseLoop *EventLoop, name string) *ThreadPool {
	return &ThreadPool{baseLoop: baseLoop, name: name}
}

// Name returns the pool's diagnostic name.
func (p *ThreadPool) Name() string { return p.name }

// Start spawns n worker threads, each running its own EventLoop, applying
// opts to each and invoking init (if non-nil) on each worker just before
// its loop runs. Start must be called once, before GetNextLoop.
func (p *ThreadPool) Start(n int, init ThreadInitCallback, opts ...EventLoopOption) error {
	p.opts = opts
	for i := 0; i < n; i++ {
		t := NewEventLoopThread(init, opts...)
		loop, err := t.StartLoop()
		if err != nil {
			return err
		}
		p.threads = append(p.threads, t)
		p.loops = append(p.loops, loop)
	}
	return nil
}

// GetNextLoop returns the next loop in round-robin order, or the base loop
// if the pool has zero worker threads.
func (p *ThreadPool) GetNextLoop() *EventLoop {
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	idx := p.next.Add(1) - 1
	return p.loops[idx%uint64(len(p.loops))]
}

// GetAllLoops returns every worker loop in the pool, or a single-element
// slice containing the base loop with zero workers.
func (p *ThreadPool) GetAllLoops() []*EventLoop {
	if len(p.loops) == 0 {
		return []*EventLoop{p.baseLoop}
	}
	out := make([]*EventLoop, len(p.loops))
	copy(out, p.loops)
	return out
}
