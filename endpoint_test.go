// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndpoint_Formatting(t *testing.T) {
	e := NewEndpoint(8080, "192.168.1.2")
	require.Equal(t, "192.168.1.2", e.ToIP())
	require.Equal(t, "192.168.1.2:8080", e.ToIPPort())
	require.Equal(t, "192.168.1.2:8080", e.String())
	require.EqualValues(t, 8080, e.ToPort())
}

func TestEndpoint_DefaultsToLoopback(t *testing.T) {
	e := NewEndpoint(1234, "")
	require.Equal(t, "127.0.0.1", e.ToIP())
}

func TestEndpoint_SockaddrRoundTrip(t *testing.T) {
	e := NewEndpoint(9999, "10.0.0.5")
	sa := e.sockaddr()
	back, err := EndpointFromSockaddr(sa)
	require.NoError(t, err)
	require.Equal(t, e, back)
}
