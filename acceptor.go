// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"golang.org/x/sys/unix"
)

// NewConnectionHandler receives ownership of a freshly-accepted descriptor
// and the peer's Endpoint. If unset, the descriptor is closed immediately.
type NewConnectionHandler func(fd int, peer Endpoint)

// Acceptor owns a non-blocking, close-on-exec listening socket and its
// Channel on the main loop. It is the only component permitted to call
// listen(2); everything downstream is handed a connected descriptor.
type Acceptor struct {
	loop   *EventLoop
	fd     int
	ch     *Channel
	logger *Logger

	listening bool

	newConnectionHandler NewConnectionHandler
}

// NewAcceptor creates the listening socket bound to listenAddr and its
// Channel on loop, which must be the main loop. The socket isn't put into
// the listening state until Listen is called.
func NewAcceptor(loop *EventLoop, listenAddr Endpoint, opts ...AcceptorOption) (*Acceptor, error) {
	cfg := &acceptorOptions{}
	for _, o := range opts {
		o.applyAcceptor(cfg)
	}

	fd, err := newBindSocket(listenAddr, cfg.reusePort)
	if err != nil {
		return nil, err
	}

	a := &Acceptor{
		loop:   loop,
		fd:     fd,
		logger: loop.Logger(),
	}
	a.ch = NewChannel(loop, fd)
	a.ch.SetReadHandler(a.handleRead)
	return a, nil
}

// SetNewConnectionHandler installs the callback invoked with ownership of
// each freshly-accepted descriptor.
func (a *Acceptor) SetNewConnectionHandler(h NewConnectionHandler) {
	a.newConnectionHandler = h
}

// IsListening reports whether Listen has been called.
func (a *Acceptor) IsListening() bool { return a.listening }

// Listen performs the OS listen(2) and enables the Channel's read interest;
// it must run on the main loop.
func (a *Acceptor) Listen() error {
	if a.listening {
		return ErrAcceptorAlreadyListening
	}
	if err := listenSocket(a.fd); err != nil {
		return err
	}
	a.listening = true
	a.ch.EnableReading()
	return nil
}

// handleRead accepts in a loop once per readiness notification: the
// listening socket is level-triggered, so a connection arriving after this
// loop exits simply re-triggers readiness on the next Poll.
func (a *Acceptor) handleRead(now Timestamp) {
	for {
		connFd, peer, err := acceptConn(a.fd)
		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EWOULDBLOCK:
				return
			case unix.EMFILE, unix.ENFILE:
				logEMFILE(a.logger)
				return
			case unix.EINTR:
				continue
			default:
				return
			}
		}
		if a.newConnectionHandler != nil {
			a.newConnectionHandler(connFd, peer)
		} else {
			_ = unix.Close(connFd)
		}
	}
}
