// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFd creates an eventfd used as the loop's self-pipe: any thread
// can make the owning thread's blocking Poll return early by writing one
// 8-byte counter value to it.
func createWakeFd() (int, error) {
	return unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
}

// wakeupWrite writes a single 8-byte counter value of 1 to fd. A short
// write is the caller's problem to log; it is never fatal.
func wakeupWrite(fd int) (int, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	return unix.Write(fd, buf[:])
}

// wakeupDrain reads (and discards) the pending counter value so the
// wakeup Channel's readable condition clears until the next write.
func wakeupDrain(fd int) (int, error) {
	var buf [8]byte
	return unix.Read(fd, buf[:])
}
