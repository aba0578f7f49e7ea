// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Logger is the structured-logging facade used throughout this package. It
// is a thin alias over logiface.Logger so a host can either accept the
// default (a text logger over stderr) or install its own sink wired to
// whatever backend it already uses.
type Logger = logiface.Logger[*islog.Event]

// defaultLogger backs every EventLoop not constructed with WithLogger, and
// the Acceptors and TcpConnections bound to such a loop (absent SetLogger).
var defaultLogger = newDefaultLogger()

func newDefaultLogger() *Logger {
	return logiface.New[*islog.Event](
		islog.NewLogger(slog.NewTextHandler(os.Stderr, nil)),
	)
}

// logWakeupShortWrite logs a short/failed write to the wakeup descriptor.
// Per the error-handling design this is logged, not fatal.
func logWakeupShortWrite(l *Logger, n int, err error) {
	b := l.Err()
	if b == nil {
		return
	}
	if err != nil {
		b = b.Err(err)
	}
	b.Int("wrote", n).Log("reactor: short or failed write to wakeup descriptor")
}

// logEMFILE logs descriptor exhaustion observed by the Acceptor.
func logEMFILE(l *Logger) {
	if b := l.Err(); b != nil {
		b.Log("reactor: accept4 failed with EMFILE, dropping this readiness event")
	}
}

// logSendOnClosed logs a dropped send on an already-disconnected connection.
func logSendOnClosed(l *Logger, name string) {
	if b := l.Warning(); b != nil {
		b.Str("connection", name).Log("reactor: send on disconnected connection, dropping")
	}
}

// logHandleError logs a non-fatal errno observed on a Channel's error path.
func logHandleError(l *Logger, name string, err error) {
	b := l.Err()
	if b == nil {
		return
	}
	if err != nil {
		b = b.Err(err)
	}
	b.Str("connection", name).Log("reactor: channel reported an error")
}

// logFatal logs a process-wide fatal condition before the caller panics or
// returns a FatalError; this package never calls os.Exit itself.
func logFatal(l *Logger, op string, err error) {
	b := l.Emerg()
	if b == nil {
		return
	}
	if err != nil {
		b = b.Err(err)
	}
	b.Str("op", op).Log("reactor: fatal condition")
}
