// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestBuffer_AppendRetrieveRoundTrip(t *testing.T) {
	b := NewBuffer()
	require.Equal(t, prependSize, b.PrependableBytes())

	b.Append([]byte("hello"))
	require.Equal(t, "hello", b.RetrieveAsString(5))

	b.Append([]byte("foo"))
	b.Append([]byte("bar"))
	require.Equal(t, "foobar", b.RetrieveAsString(6))
}

func TestBuffer_InvariantHoldsAcrossOps(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 1000; i++ {
		b.Append(make([]byte, 37))
		require.GreaterOrEqual(t, b.reader, prependSize)
		require.LessOrEqual(t, b.reader, b.writer)
		require.LessOrEqual(t, b.writer, len(b.data))
		if i%3 == 0 {
			b.Retrieve(20)
		}
	}
}

func TestBuffer_RetrieveAllResetsToPrependReserve(t *testing.T) {
	b := NewBuffer()
	b.Append([]byte("xyz"))
	b.Retrieve(3)
	require.Equal(t, prependSize, b.reader)
	require.Equal(t, prependSize, b.writer)
}

func TestBuffer_ReadFromFDAbsorbsLargeBurst(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	payload := make([]byte, 100*1024)
	for i := range payload {
		payload[i] = byte(i)
	}

	done := make(chan error, 1)
	go func() {
		_, werr := unix.Write(fds[1], payload)
		done <- werr
	}()

	b := NewBuffer()
	total := 0
	for total < len(payload) {
		n, err := b.ReadFromFD(fds[0])
		require.NoError(t, err)
		total += n
		if n == 0 {
			break
		}
	}
	require.NoError(t, <-done)
	require.Equal(t, len(payload), b.ReadableBytes())
	require.Equal(t, payload, []byte(b.Peek()))
}

func TestBuffer_EnsureWritableCompactsBeforeGrowing(t *testing.T) {
	b := NewBuffer()
	b.Append(make([]byte, 10))
	b.Retrieve(9)
	capBefore := len(b.data)
	b.EnsureWritable(capBefore - prependSize - 1)
	require.Equal(t, capBefore, len(b.data), "should have compacted, not grown")
}
