// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command discard wires a reactor.Acceptor and a single-worker
// reactor.ThreadPool into a server that throws away everything it
// receives, while logging whenever a connection's output buffer crosses
// its high-water-mark — a demonstration of the backpressure knobs rather
// than a useful server on its own.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/nexio-labs/reactor"
)

func main() {
	addr := flag.String("addr", "0.0.0.0:9982", "listen address (ip:port)")
	hwm := flag.Int("hwm", 64*1024, "high-water-mark threshold, in bytes")
	flag.Parse()

	host, portStr, err := net.SplitHostPort(*addr)
	if err != nil {
		slog.Error("invalid -addr", "err", err)
		os.Exit(1)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		slog.Error("invalid -addr", "err", err)
		os.Exit(1)
	}

	main_, err := reactor.NewEventLoop()
	if err != nil {
		slog.Error("failed to construct main loop", "err", err)
		os.Exit(1)
	}

	pool := reactor.NewThreadPool(main_, "discard")
	if err := pool.Start(1, nil); err != nil {
		slog.Error("failed to start thread pool", "err", err)
		os.Exit(1)
	}

	acc, err := reactor.NewAcceptor(main_, reactor.NewEndpoint(uint16(port), host))
	if err != nil {
		slog.Error("failed to construct acceptor", "err", err)
		os.Exit(1)
	}

	var (
		mu      sync.Mutex
		counter int64
	)

	acc.SetNewConnectionHandler(func(fd int, peer reactor.Endpoint) {
		mu.Lock()
		counter++
		name := fmt.Sprintf("discard-%d", counter)
		mu.Unlock()

		worker := pool.GetNextLoop()
		conn := reactor.NewTcpConnection(worker, name, fd, reactor.Endpoint{}, peer, reactor.WithHighWaterMark(*hwm))
		conn.SetMessageHandler(func(c *reactor.TcpConnection, buf *reactor.Buffer, _ reactor.Timestamp) {
			buf.RetrieveAll()
		})
		conn.SetHighWaterMarkHandler(func(c *reactor.TcpConnection, size int) {
			slog.Warn("connection crossed the high-water-mark", "connection", c.Name(), "bytes", size)
		})
		conn.SetCloseHandler(func(c *reactor.TcpConnection) { c.Destroy() })

		worker.RunInLoop(conn.Establish)
	})

	main_.RunInLoop(func() {
		if err := acc.Listen(); err != nil {
			slog.Error("failed to listen", "err", err)
			os.Exit(1)
		}
		slog.Info("discard server listening", "addr", *addr, "hwm", *hwm)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		main_.Quit()
	}()

	if err := main_.Run(); err != nil {
		slog.Error("main loop exited with error", "err", err)
		os.Exit(1)
	}
}
