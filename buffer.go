// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"golang.org/x/sys/unix"
)

const (
	// prependSize is the fixed-size prefix reserved so callers can
	// cheaply prepend a length header later, matching kCheapPrepend.
	prependSize = 8
	// initialBufferSize matches kInitialSize.
	initialBufferSize = 1024
	// scratchBufferSize is the stack scratch used by ReadFromFD to absorb
	// a burst larger than the current writable region in one syscall.
	scratchBufferSize = 65536
)

// Buffer is a growable byte buffer with a fixed prepend reserve, a
// readable region [reader, writer), and a writable suffix [writer, cap).
type Buffer struct {
	data   []byte
	reader int
	writer int
}

// NewBuffer constructs an empty Buffer with the default initial capacity.
func NewBuffer() *Buffer {
	return &Buffer{
		data:   make([]byte, prependSize+initialBufferSize),
		reader: prependSize,
		writer: prependSize,
	}
}

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.writer - b.reader }

// WritableBytes returns the number of bytes that can be appended without
// growing.
func (b *Buffer) WritableBytes() int { return len(b.data) - b.writer }

// PrependableBytes returns the number of bytes available before reader,
// including the fixed prepend reserve.
func (b *Buffer) PrependableBytes() int { return b.reader }

// Peek returns the readable region without consuming it. The returned
// slice aliases the Buffer's storage and is only valid until the next
// mutating call.
func (b *Buffer) Peek() []byte { return b.data[b.reader:b.writer] }

// Retrieve advances the reader by n bytes. If the readable region becomes
// empty, both reader and writer reset to the prepend reserve so
// subsequent appends don't need to grow.
func (b *Buffer) Retrieve(n int) {
	if n < b.ReadableBytes() {
		b.reader += n
		return
	}
	b.RetrieveAll()
}

// RetrieveAll discards the entire readable region.
func (b *Buffer) RetrieveAll() {
	b.reader = prependSize
	b.writer = prependSize
}

// RetrieveAsString copies out n readable bytes and consumes them.
func (b *Buffer) RetrieveAsString(n int) string {
	s := string(b.data[b.reader : b.reader+n])
	b.Retrieve(n)
	return s
}

// RetrieveAllAsString copies out and consumes the entire readable region.
func (b *Buffer) RetrieveAllAsString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// Append copies bytes onto the writable suffix, growing or compacting the
// buffer first if necessary.
func (b *Buffer) Append(bytes []byte) {
	b.EnsureWritable(len(bytes))
	n := copy(b.data[b.writer:], bytes)
	b.writer += n
}

// EnsureWritable guarantees at least n writable bytes are available,
// either by compacting the readable region back to the prepend reserve
// (when the combined prependable + writable space already suffices) or by
// growing the underlying storage.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	if b.WritableBytes()+(b.PrependableBytes()-prependSize) >= n {
		b.compact()
		return
	}
	newData := make([]byte, b.writer+n)
	copy(newData, b.data[:b.writer])
	b.data = newData
}

func (b *Buffer) compact() {
	readable := b.ReadableBytes()
	copy(b.data[prependSize:], b.data[b.reader:b.writer])
	b.reader = prependSize
	b.writer = prependSize + readable
}

// ReadFromFD performs a scatter read: the current writable region plus a
// 64 KiB stack scratch buffer, in a single syscall regardless of how much
// the peer sent. If the kernel filled more than the writable region, the
// overflow is appended, triggering the grow policy; otherwise just the
// writer index advances. Returns the total bytes read (0 on EOF); EAGAIN
// and EWOULDBLOCK are returned as-is rather than folded into n==0, so the
// caller can tell "nothing to read yet" apart from "peer closed".
func (b *Buffer) ReadFromFD(fd int) (int, error) {
	var scratch [scratchBufferSize]byte
	writable := b.WritableBytes()

	n, err := readvScratch(fd, b.data[b.writer:len(b.data)], scratch[:])
	if err != nil {
		return 0, err
	}
	if n <= writable {
		b.writer += n
	} else {
		b.writer = len(b.data)
		b.Append(scratch[:n-writable])
	}
	return n, nil
}

// WriteToFD writes once from the readable region; short writes are the
// caller's problem to track (TcpConnection does, via the output buffer's
// remaining readable bytes).
func (b *Buffer) WriteToFD(fd int) (int, error) {
	n, err := unix.Write(fd, b.data[b.reader:b.writer])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
