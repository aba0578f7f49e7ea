// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Endpoint is an IPv4 socket address value type: a 32-bit address and a
// 16-bit port, both held in host byte order. It is comparable and has no
// behavior beyond formatting and conversion to/from the kernel's sockaddr
// representation.
type Endpoint struct {
	addr uint32
	port uint16
}

// NewEndpoint builds an Endpoint for ip:port. An empty ip defaults to
// "127.0.0.1", matching the original's default-to-loopback constructor.
func NewEndpoint(port uint16, ip string) Endpoint {
	if ip == "" {
		ip = "127.0.0.1"
	}
	var addr uint32
	if v4 := net.ParseIP(ip).To4(); v4 != nil {
		addr = uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
	}
	return Endpoint{addr: addr, port: port}
}

// EndpointFromSockaddr converts a raw IPv4 sockaddr, as returned by accept4
// or getpeername, into an Endpoint.
func EndpointFromSockaddr(sa unix.Sockaddr) (Endpoint, error) {
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return Endpoint{}, fmt.Errorf("reactor: unsupported sockaddr type %T", sa)
	}
	ip := sa4.Addr
	addr := uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
	return Endpoint{addr: addr, port: uint16(sa4.Port)}, nil
}

// sockaddr returns the kernel sockaddr equivalent to this Endpoint, for use
// with bind/connect.
func (e Endpoint) sockaddr() *unix.SockaddrInet4 {
	sa := &unix.SockaddrInet4{Port: int(e.port)}
	sa.Addr[0] = byte(e.addr >> 24)
	sa.Addr[1] = byte(e.addr >> 16)
	sa.Addr[2] = byte(e.addr >> 8)
	sa.Addr[3] = byte(e.addr)
	return sa
}

// ToIP renders the address octets as dotted decimal, without the port.
func (e Endpoint) ToIP() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(e.addr>>24), byte(e.addr>>16), byte(e.addr>>8), byte(e.addr))
}

// ToIPPort renders "ip:port".
func (e Endpoint) ToIPPort() string {
	return fmt.Sprintf("%s:%d", e.ToIP(), e.port)
}

// ToPort returns the port in host byte order.
func (e Endpoint) ToPort() uint16 { return e.port }

// String implements fmt.Stringer and is equivalent to ToIPPort.
func (e Endpoint) String() string { return e.ToIPPort() }
