// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// initEventListSize matches EPollPoller::EPollPoller's initial capacity;
// the list doubles whenever a Wait call fills it completely.
const initEventListSize = 16

// epollMultiplexer is the level-triggered epoll-equivalent backend,
// grounded on the original's EPollPoller.
type epollMultiplexer struct {
	epfd     int
	events   []unix.EpollEvent
	channels map[int]*Channel
}

func newEpollMultiplexer() (*epollMultiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, newFatalError("epoll_create1", err)
	}
	return &epollMultiplexer{
		epfd:     epfd,
		events:   make([]unix.EpollEvent, initEventListSize),
		channels: make(map[int]*Channel),
	}, nil
}

func (p *epollMultiplexer) Poll(timeout time.Duration) (Timestamp, []*Channel, error) {
	timeoutMs := int(timeout / time.Millisecond)
	if timeout < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	now := Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil, nil
		}
		return now, nil, err
	}
	ready := make([]*Channel, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		ch, ok := p.channels[int(ev.Fd)]
		if !ok {
			continue
		}
		ch.SetRevents(ev.Events)
		ready = append(ready, ch)
	}
	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return now, ready, nil
}

func (p *epollMultiplexer) Update(channel *Channel) {
	switch channel.Index() {
	case channelNew, channelDeleted:
		fd := channel.Fd()
		if channel.Index() == channelNew {
			if _, exists := p.channels[fd]; exists {
				panic(fmt.Sprintf("reactor: fd %d already registered with multiplexer", fd))
			}
			p.channels[fd] = channel
		}
		channel.SetIndex(channelAdded)
		p.epollCtl(unix.EPOLL_CTL_ADD, channel)
	case channelAdded:
		fd := channel.Fd()
		if channel.IsNoneEvent() {
			p.epollCtl(unix.EPOLL_CTL_DEL, channel)
			channel.SetIndex(channelDeleted)
		} else {
			p.epollCtl(unix.EPOLL_CTL_MOD, channel)
		}
		_ = fd
	}
}

func (p *epollMultiplexer) Remove(channel *Channel) {
	fd := channel.Fd()
	if channel.Index() == channelAdded {
		p.epollCtl(unix.EPOLL_CTL_DEL, channel)
	}
	delete(p.channels, fd)
	channel.SetIndex(channelNew)
}

func (p *epollMultiplexer) Has(channel *Channel) bool {
	_, ok := p.channels[channel.Fd()]
	return ok
}

func (p *epollMultiplexer) epollCtl(op int, channel *Channel) {
	ev := unix.EpollEvent{
		Events: channel.Events(),
		Fd:     int32(channel.Fd()),
	}
	if err := unix.EpollCtl(p.epfd, op, channel.Fd(), &ev); err != nil {
		if op == unix.EPOLL_CTL_DEL {
			// best-effort: the fd may already be gone from the kernel's
			// set if it was closed before the Remove call landed.
			return
		}
		panic(newFatalError(fmt.Sprintf("epoll_ctl(op=%d, fd=%d)", op, channel.Fd()), err))
	}
}
