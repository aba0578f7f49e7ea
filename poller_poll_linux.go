// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollMultiplexer is the poll(2)-equivalent backend, selected when
// MUDUO_USE_POLL is set or WithBackend(BackendPoll) is used. It exists for
// parity with environments where epoll isn't appropriate; functionally it
// is equivalent to epollMultiplexer, just O(n) per Poll call.
type pollMultiplexer struct {
	pollfds  []unix.PollFd
	channels map[int]*Channel
}

func newPollMultiplexer() (*pollMultiplexer, error) {
	return &pollMultiplexer{
		channels: make(map[int]*Channel),
	}, nil
}

func (p *pollMultiplexer) Poll(timeout time.Duration) (Timestamp, []*Channel, error) {
	timeoutMs := int(timeout / time.Millisecond)
	if timeout < 0 {
		timeoutMs = -1
	}
	n, err := unix.Poll(p.pollfds, timeoutMs)
	now := Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil, nil
		}
		return now, nil, err
	}
	ready := make([]*Channel, 0, n)
	if n > 0 {
		for i := range p.pollfds {
			pfd := &p.pollfds[i]
			if pfd.Revents == 0 {
				continue
			}
			ch, ok := p.channels[int(pfd.Fd)]
			if !ok {
				continue
			}
			ch.SetRevents(uint32(pfd.Revents))
			ready = append(ready, ch)
			pfd.Revents = 0
		}
	}
	return now, ready, nil
}

func (p *pollMultiplexer) Update(channel *Channel) {
	fd := channel.Fd()
	switch channel.Index() {
	case channelNew:
		p.channels[fd] = channel
		p.pollfds = append(p.pollfds, unix.PollFd{Fd: int32(fd), Events: int16(channel.Events())})
		channel.SetIndex(channelAdded)
	case channelAdded:
		if channel.IsNoneEvent() {
			p.removePollFd(fd)
			channel.SetIndex(channelDeleted)
		} else {
			p.setPollFdEvents(fd, channel.Events())
		}
	case channelDeleted:
		p.channels[fd] = channel
		p.pollfds = append(p.pollfds, unix.PollFd{Fd: int32(fd), Events: int16(channel.Events())})
		channel.SetIndex(channelAdded)
	}
}

func (p *pollMultiplexer) Remove(channel *Channel) {
	fd := channel.Fd()
	if channel.Index() == channelAdded {
		p.removePollFd(fd)
	}
	delete(p.channels, fd)
	channel.SetIndex(channelNew)
}

func (p *pollMultiplexer) Has(channel *Channel) bool {
	_, ok := p.channels[channel.Fd()]
	return ok
}

func (p *pollMultiplexer) setPollFdEvents(fd int, events uint32) {
	for i := range p.pollfds {
		if int(p.pollfds[i].Fd) == fd {
			p.pollfds[i].Events = int16(events)
			return
		}
	}
}

func (p *pollMultiplexer) removePollFd(fd int) {
	for i := range p.pollfds {
		if int(p.pollfds[i].Fd) == fd {
			p.pollfds = append(p.pollfds[:i], p.pollfds[i+1:]...)
			return
		}
	}
}
