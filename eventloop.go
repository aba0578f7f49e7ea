// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// loopRegistry enforces the process-wide "at most one EventLoop per OS
// thread" invariant. The original uses a __thread pointer; Go has no
// portable thread-local, so a mutex-guarded map keyed by the kernel thread
// id stands in, exactly as suggested for implementations without native
// thread-locals. It is touched only at loop construction/destruction.
var loopRegistry = struct {
	mu   sync.Mutex
	byTid map[int]*EventLoop
}{byTid: make(map[int]*EventLoop)}

// EventLoop is a single-threaded cooperative scheduler. It owns a
// Multiplexer, the set of Channels registered with it, a cross-thread task
// queue, and a self-pipe wakeup descriptor. It must be run on exactly one
// OS thread for its lifetime (call Run from the goroutine that will own
// it; Run pins that goroutine to its OS thread for as long as it runs).
type EventLoop struct {
	opts *eventLoopOptions

	tid int

	poller Multiplexer

	wakeFd      int
	wakeChannel *Channel

	pendingMu sync.Mutex
	pending   []func()
	spare     []func()

	looping             atomic.Bool
	quit                atomic.Bool
	callingPendingTasks atomic.Bool

	activeChannels []*Channel
}

// NewEventLoop constructs an EventLoop. The loop isn't bound to an OS
// thread, nor registered in loopRegistry, until Run is called from the
// goroutine that will drive it.
func NewEventLoop(opts ...EventLoopOption) (*EventLoop, error) {
	cfg := defaultEventLoopOptions()
	for _, o := range opts {
		o.applyEventLoop(cfg)
	}

	poller, err := newDefaultMultiplexer(cfg.backend)
	if err != nil {
		return nil, err
	}

	wakeFd, err := createWakeFd()
	if err != nil {
		return nil, newFatalError("eventfd", err)
	}

	l := &EventLoop{
		opts:   cfg,
		poller: poller,
		wakeFd: wakeFd,
	}
	l.wakeChannel = NewChannel(l, wakeFd)
	l.wakeChannel.SetReadHandler(func(Timestamp) {
		if _, err := wakeupDrain(l.wakeFd); err != nil {
			logWakeupShortWrite(l.opts.logger, 0, err)
		}
	})
	return l, nil
}

// Logger returns the logger this loop (and anything it constructs,
// absent its own SetLogger) writes to.
func (l *EventLoop) Logger() *Logger { return l.opts.logger }

// Run asserts it is being called on a fresh OS thread binding, registers
// this loop as that thread's loop, and runs until Quit is called. It must
// not be called more than once, and a second EventLoop constructed on the
// same OS thread (by a goroutine Run pins to it) is a fatal programmer
// error.
func (l *EventLoop) Run() error {
	if !l.looping.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.tid = unix.Gettid()
	loopRegistry.mu.Lock()
	if existing, ok := loopRegistry.byTid[l.tid]; ok && existing != l {
		loopRegistry.mu.Unlock()
		err := newFatalError("EventLoop.Run", nil)
		logFatal(l.opts.logger, "second EventLoop constructed on a thread that already owns one", nil)
		l.looping.Store(false)
		return err
	}
	loopRegistry.byTid[l.tid] = l
	loopRegistry.mu.Unlock()
	defer func() {
		loopRegistry.mu.Lock()
		delete(loopRegistry.byTid, l.tid)
		loopRegistry.mu.Unlock()
	}()

	l.wakeChannel.EnableReading()
	defer l.wakeChannel.DisableAll()

	for !l.quit.Load() {
		l.activeChannels = l.activeChannels[:0]
		now, ready, err := l.poller.Poll(l.opts.pollTimeout)
		if err != nil {
			continue
		}
		l.activeChannels = append(l.activeChannels, ready...)
		for _, ch := range l.activeChannels {
			ch.HandleEvent(now)
		}
		l.doPendingTasks()
	}
	return nil
}

// isOnLoopThread reports whether the calling goroutine's OS thread is this
// loop's owning thread. Only meaningful while the loop is running and the
// calling goroutine has been pinned with runtime.LockOSThread; used here
// purely as a best-effort fast path for RunInLoop, matching the spirit of
// the original's isInLoopThread (exact thread identity across goroutines
// without pinning cannot be determined in Go, so QueueInLoop is always
// safe to call and RunInLoop degrades to it whenever in doubt).
func (l *EventLoop) isOnLoopThread() bool {
	return l.looping.Load() && unix.Gettid() == l.tid
}

// RunInLoop runs task immediately if called from the loop's own thread,
// otherwise queues it to run on the next iteration via QueueInLoop.
func (l *EventLoop) RunInLoop(task func()) {
	if l.isOnLoopThread() {
		task()
		return
	}
	l.QueueInLoop(task)
}

// QueueInLoop appends task to the pending-task queue under the queue
// mutex. It wakes the loop if the caller isn't the owning thread, or if
// the loop is currently draining pending tasks (so a task enqueued by
// another task is guaranteed to run on the next iteration rather than
// risk being delayed indefinitely).
func (l *EventLoop) QueueInLoop(task func()) {
	l.pendingMu.Lock()
	l.pending = append(l.pending, task)
	l.pendingMu.Unlock()

	if !l.isOnLoopThread() || l.callingPendingTasks.Load() {
		l.Wake()
	}
}

// Wake writes one 8-byte counter value to the wakeup descriptor, causing a
// blocked Poll call to return early. A short or failed write is logged,
// never fatal.
func (l *EventLoop) Wake() {
	n, err := wakeupWrite(l.wakeFd)
	if err != nil || n != 8 {
		logWakeupShortWrite(l.opts.logger, n, err)
	}
}

// Quit sets the quit flag; Run's loop condition is checked at the top of
// every iteration. If called from a foreign thread it also wakes the loop
// so the effect is observed promptly rather than after the full poll
// timeout.
func (l *EventLoop) Quit() {
	l.quit.Store(true)
	if !l.isOnLoopThread() {
		l.Wake()
	}
}

func (l *EventLoop) doPendingTasks() {
	l.callingPendingTasks.Store(true)
	defer l.callingPendingTasks.Store(false)

	l.pendingMu.Lock()
	l.pending, l.spare = l.spare[:0], l.pending
	tasks := l.spare
	l.pendingMu.Unlock()

	for _, task := range tasks {
		task()
	}
}

// updateChannel delegates to the Multiplexer. Must be called from the
// owning thread (enforced by callers going through RunInLoop/QueueInLoop
// for anything reachable from a foreign thread).
func (l *EventLoop) updateChannel(ch *Channel) {
	l.poller.Update(ch)
}

// removeChannel delegates to the Multiplexer. Must be called from the
// owning thread.
func (l *EventLoop) removeChannel(ch *Channel) {
	l.poller.Remove(ch)
}

// hasChannel delegates to the Multiplexer.
func (l *EventLoop) hasChannel(ch *Channel) bool {
	return l.poller.Has(ch)
}

// PollTimeout exposes the configured poll timeout, mostly useful for
// tests asserting on wakeup latency.
func (l *EventLoop) PollTimeout() time.Duration { return l.opts.pollTimeout }
