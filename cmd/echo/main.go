// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command echo wires a reactor.Acceptor and a reactor.ThreadPool into a
// minimal echo server: every message received is written straight back.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nexio-labs/reactor"
)

func main() {
	addr := flag.String("addr", "0.0.0.0:9981", "listen address (ip:port)")
	workers := flag.Int("workers", 4, "worker loop count")
	flag.Parse()

	host, port, err := splitHostPort(*addr)
	if err != nil {
		slog.Error("invalid -addr", "err", err)
		os.Exit(1)
	}

	main_, err := reactor.NewEventLoop()
	if err != nil {
		slog.Error("failed to construct main loop", "err", err)
		os.Exit(1)
	}

	pool := reactor.NewThreadPool(main_, "echo")
	if err := pool.Start(*workers, nil); err != nil {
		slog.Error("failed to start thread pool", "err", err)
		os.Exit(1)
	}

	acc, err := reactor.NewAcceptor(main_, reactor.NewEndpoint(port, host))
	if err != nil {
		slog.Error("failed to construct acceptor", "err", err)
		os.Exit(1)
	}

	var (
		mu      sync.Mutex
		conns   = make(map[string]*reactor.TcpConnection)
		counter int64
	)

	acc.SetNewConnectionHandler(func(fd int, peer reactor.Endpoint) {
		mu.Lock()
		counter++
		name := fmt.Sprintf("echo-%d", counter)
		mu.Unlock()

		worker := pool.GetNextLoop()
		conn := reactor.NewTcpConnection(worker, name, fd, reactor.Endpoint{}, peer)
		conn.SetMessageHandler(func(c *reactor.TcpConnection, buf *reactor.Buffer, _ reactor.Timestamp) {
			c.Send([]byte(buf.RetrieveAllAsString()))
		})
		conn.SetCloseHandler(func(c *reactor.TcpConnection) {
			mu.Lock()
			delete(conns, c.Name())
			mu.Unlock()
			c.Destroy()
		})

		mu.Lock()
		conns[name] = conn
		mu.Unlock()

		worker.RunInLoop(conn.Establish)
	})

	main_.RunInLoop(func() {
		if err := acc.Listen(); err != nil {
			slog.Error("failed to listen", "err", err)
			os.Exit(1)
		}
		slog.Info("echo server listening", "addr", *addr, "workers", *workers)
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
