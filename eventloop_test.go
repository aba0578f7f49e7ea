// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newRunningLoop(t *testing.T, opts ...EventLoopOption) (*EventLoop, func()) {
	t.Helper()
	loop, err := NewEventLoop(opts...)
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run() }()

	// give the goroutine a moment to register and enter Poll.
	time.Sleep(10 * time.Millisecond)

	return loop, func() {
		loop.Quit()
		select {
		case err := <-runDone:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("loop did not exit after Quit")
		}
	}
}

func TestEventLoop_QueueInLoopRunsExactlyOnce(t *testing.T) {
	loop, stop := newRunningLoop(t)
	defer stop()

	var calls atomic.Int32
	done := make(chan struct{})
	loop.QueueInLoop(func() {
		calls.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 1, calls.Load())
}

func TestEventLoop_ForeignQuitWakesPromptly(t *testing.T) {
	loop, err := NewEventLoop(WithPollTimeout(10 * time.Second))
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run() }()
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	loop.Quit()

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("quit() from foreign thread did not wake the loop promptly")
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestEventLoop_ForeignQueueInLoopWakesWhileBlockedInPoll(t *testing.T) {
	loop, err := NewEventLoop(WithPollTimeout(10 * time.Second))
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run() }()
	time.Sleep(10 * time.Millisecond)

	ran := make(chan time.Time, 1)
	start := time.Now()
	loop.QueueInLoop(func() { ran <- time.Now() })

	select {
	case at := <-ran:
		require.Less(t, at.Sub(start), time.Second) // well under the 10s timeout
	case <-time.After(time.Second):
		t.Fatal("queued task did not run within a second of a 10s poll timeout")
	}

	loop.Quit()
	require.NoError(t, <-runDone)
}

func TestEventLoop_RunTwiceReturnsErrAlreadyRunning(t *testing.T) {
	loop, stop := newRunningLoop(t)
	defer stop()

	err := loop.Run()
	require.ErrorIs(t, err, ErrLoopAlreadyRunning)
}
