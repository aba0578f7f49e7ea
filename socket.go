// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"golang.org/x/sys/unix"
)

// newBindSocket creates a non-blocking, close-on-exec IPv4 TCP socket, sets
// SO_REUSEADDR (and SO_REUSEPORT if reusePort), and binds it to addr,
// mirroring Socket::bindAddress in the original. The socket is left in the
// bound-but-not-listening state; listenSocket performs the actual listen(2)
// when the Acceptor is told to start accepting.
func newBindSocket(addr Endpoint, reusePort bool) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			_ = unix.Close(fd)
			return -1, err
		}
	}
	if err := unix.Bind(fd, addr.sockaddr()); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// listenSocket puts fd into the listening state with a kernel backlog
// matching SOMAXCONN, mirroring Acceptor::listen in the original.
func listenSocket(fd int) error {
	return unix.Listen(fd, unix.SOMAXCONN)
}

// acceptConn accepts one pending connection off a listening socket,
// returning a non-blocking, close-on-exec connected descriptor and the
// peer's Endpoint.
func acceptConn(listenFd int) (int, Endpoint, error) {
	connFd, sa, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, Endpoint{}, err
	}
	peer, err := EndpointFromSockaddr(sa)
	if err != nil {
		_ = unix.Close(connFd)
		return -1, Endpoint{}, err
	}
	return connFd, peer, nil
}

// localEndpoint reads back the local address a socket is bound to.
func localEndpoint(fd int) (Endpoint, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return Endpoint{}, err
	}
	return EndpointFromSockaddr(sa)
}

// setKeepAlive enables SO_KEEPALIVE, matching Socket::setKeepAlive.
func setKeepAlive(fd int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v)
}

// setTCPNoDelay enables/disables Nagle's algorithm, matching
// Socket::setTcpNoDelay.
func setTCPNoDelay(fd int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// shutdownWrite half-closes the write side of a connected socket,
// matching Socket::shutdownWrite.
func shutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}

// readvScratch performs a scatter read into buf and an extra scratch
// buffer, returning the total bytes read across both.
func readvScratch(fd int, buf []byte, scratch []byte) (int, error) {
	iov := [][]byte{buf, scratch}
	n, err := unix.Readv(fd, iov)
	return n, err
}
