// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTie struct{ alive bool }

func (f *fakeTie) upgrade() bool { return f.alive }

func TestChannel_HandleEventDispatchOrder(t *testing.T) {
	ch := NewChannel(nil, 7)

	var order []string
	ch.SetCloseHandler(func() { order = append(order, "close") })
	ch.SetErrorHandler(func() { order = append(order, "error") })
	ch.SetReadHandler(func(Timestamp) { order = append(order, "read") })
	ch.SetWriteHandler(func() { order = append(order, "write") })

	// HUP without READABLE: only close fires.
	ch.SetRevents(eventHangup)
	ch.HandleEvent(Now())
	require.Equal(t, []string{"close"}, order)

	order = nil
	ch.SetRevents(eventError | EventReadable | EventWritable)
	ch.HandleEvent(Now())
	require.Equal(t, []string{"error", "read", "write"}, order)
}

func TestChannel_TieSkipsDispatchWhenNotAlive(t *testing.T) {
	ch := NewChannel(nil, 7)
	called := false
	ch.SetReadHandler(func(Timestamp) { called = true })
	ch.SetRevents(EventReadable)

	tie := &fakeTie{alive: false}
	ch.Tie(tie)
	ch.HandleEvent(Now())
	require.False(t, called)

	tie.alive = true
	ch.HandleEvent(Now())
	require.True(t, called)
}

func TestChannel_MutatorsSetMask(t *testing.T) {
	loop := &EventLoop{}
	loop.poller = &noopMultiplexer{}
	ch := NewChannel(loop, 7)

	ch.EnableReading()
	require.True(t, ch.IsReading())
	ch.EnableWriting()
	require.True(t, ch.IsWriting())
	ch.DisableWriting()
	require.False(t, ch.IsWriting())
	ch.DisableAll()
	require.True(t, ch.IsNoneEvent())
}

// noopMultiplexer satisfies Multiplexer for tests that only exercise
// Channel mutators, without a real epoll fd.
type noopMultiplexer struct{}

func (noopMultiplexer) Poll(time.Duration) (Timestamp, []*Channel, error) { return Now(), nil, nil }
func (noopMultiplexer) Update(*Channel)                                  {}
func (noopMultiplexer) Remove(*Channel)                                  {}
func (noopMultiplexer) Has(*Channel) bool                                { return false }
