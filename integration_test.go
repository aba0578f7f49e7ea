// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// testServer is the minimal host-level wiring an integration test needs:
// an Acceptor on a main loop, a ThreadPool of workers, and a connection
// map. It plays the same role cmd/echo's server does, trimmed to what
// each test asserts on.
type testServer struct {
	main *EventLoop
	pool *ThreadPool
	acc  *Acceptor

	mu    sync.Mutex
	conns map[string]*TcpConnection

	onMessage func(*TcpConnection, *Buffer, Timestamp)
	onUp      func(*TcpConnection)
	onDown    func(*TcpConnection)

	nextID atomic.Int64
}

func newTestServer(t *testing.T, workers int) (*testServer, string, func()) {
	t.Helper()
	main, err := NewEventLoop()
	require.NoError(t, err)

	s := &testServer{main: main, conns: make(map[string]*TcpConnection)}
	s.pool = NewThreadPool(main, "test")
	require.NoError(t, s.pool.Start(workers, nil))

	acc, err := NewAcceptor(main, NewEndpoint(0, "127.0.0.1"))
	require.NoError(t, err)
	s.acc = acc
	acc.SetNewConnectionHandler(s.handleNewConnection)

	runDone := make(chan error, 1)
	go func() { runDone <- main.Run() }()
	time.Sleep(10 * time.Millisecond)

	main.RunInLoop(func() { require.NoError(t, acc.Listen()) })
	time.Sleep(10 * time.Millisecond)

	addr, err := localEndpoint(acc.fd)
	require.NoError(t, err)

	stop := func() {
		main.Quit()
		select {
		case <-runDone:
		case <-time.After(5 * time.Second):
			t.Fatal("main loop did not stop")
		}
	}
	return s, addr.ToIPPort(), stop
}

func (s *testServer) handleNewConnection(fd int, peer Endpoint) {
	id := s.nextID.Add(1)
	worker := s.pool.GetNextLoop()
	name := fmt.Sprintf("conn-%d", id)

	conn := NewTcpConnection(worker, name, fd, Endpoint{}, peer)
	conn.SetMessageHandler(func(c *TcpConnection, buf *Buffer, now Timestamp) {
		if s.onMessage != nil {
			s.onMessage(c, buf, now)
		}
	})
	conn.SetConnectionHandler(func(c *TcpConnection) {
		if c.State() == StateConnected && s.onUp != nil {
			s.onUp(c)
		}
	})
	conn.SetCloseHandler(func(c *TcpConnection) {
		s.mu.Lock()
		delete(s.conns, c.Name())
		s.mu.Unlock()
		if s.onDown != nil {
			s.onDown(c)
		}
		c.Destroy()
	})

	s.mu.Lock()
	s.conns[name] = conn
	s.mu.Unlock()

	worker.RunInLoop(conn.Establish)
}

func (s *testServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func TestIntegration_EchoSingleWorker(t *testing.T) {
	s, addr, stop := newTestServer(t, 1)
	defer stop()

	s.onMessage = func(c *TcpConnection, buf *Buffer, _ Timestamp) {
		c.Send([]byte(buf.RetrieveAllAsString()))
	}

	var downCount atomic.Int32
	s.onDown = func(*TcpConnection) { downCount.Add(1) }

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	_, err = conn.Write([]byte("ping\n"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping\n", string(buf[:n]))

	require.NoError(t, conn.Close())
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, downCount.Load())
}

func TestIntegration_RoundRobinDispatch(t *testing.T) {
	s, addr, stop := newTestServer(t, 3)
	defer stop()

	var conns []net.Conn
	for i := 0; i < 6; i++ {
		c, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		conns = append(conns, c)
		time.Sleep(5 * time.Millisecond)
	}
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 6, s.connCount())

	counts := make(map[*EventLoop]int)
	s.mu.Lock()
	for _, c := range s.conns {
		counts[c.loop]++
	}
	s.mu.Unlock()
	for _, loop := range s.pool.GetAllLoops() {
		require.Equal(t, 2, counts[loop])
	}
}

func TestIntegration_Backpressure(t *testing.T) {
	s, addr, stop := newTestServer(t, 1)
	defer stop()

	const hwm = 4096
	var hwmFires atomic.Int32
	connReady := make(chan *TcpConnection, 1)
	s.onUp = func(c *TcpConnection) {
		c.highWaterMark = hwm
		c.SetHighWaterMarkHandler(func(*TcpConnection, int) { hwmFires.Add(1) })
		// Shrink the kernel send buffer so the payloads below can't just
		// vanish into it unbuffered; the client also never reads until
		// after both sends, forcing the rest into the output Buffer.
		_ = unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 2048)
		connReady <- c
	}

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	serverConn := <-connReady

	payload := make([]byte, 8*1024)
	serverConn.Send(payload)
	serverConn.Send(payload)
	time.Sleep(50 * time.Millisecond)

	require.EqualValues(t, 1, hwmFires.Load())

	total := 0
	buf := make([]byte, 16*1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for total < 2*len(payload) {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		total += n
	}
	require.Equal(t, 2*len(payload), total)
}

func TestIntegration_GracefulShutdown(t *testing.T) {
	s, addr, stop := newTestServer(t, 1)
	defer stop()

	connReady := make(chan *TcpConnection, 1)
	s.onUp = func(c *TcpConnection) { connReady <- c }

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	serverConn := <-connReady

	payload := make([]byte, 8*1024)
	serverConn.Send(payload)
	serverConn.Shutdown()

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Equal(t, len(payload), len(got))
	require.Equal(t, StateDisconnecting, serverConn.State())

	// Closing the client's side sends the FIN the server is waiting for;
	// only then does the server's handleRead see EOF and complete the
	// DISCONNECTING -> DISCONNECTED transition.
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return serverConn.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)
}

func TestIntegration_ForeignThreadSendPreservesOrder(t *testing.T) {
	s, addr, stop := newTestServer(t, 1)
	defer stop()

	connReady := make(chan *TcpConnection, 1)
	s.onUp = func(c *TcpConnection) { connReady <- c }

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	serverConn := <-connReady

	const n = 50
	go func() {
		for i := 0; i < n; i++ {
			serverConn.Send([]byte(fmt.Sprintf("tick-%03d;", i)))
			time.Sleep(time.Millisecond)
		}
	}()

	want := ""
	for i := 0; i < n; i++ {
		want += fmt.Sprintf("tick-%03d;", i)
	}

	got := make([]byte, 0, len(want))
	buf := make([]byte, 256)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(got) < len(want) {
		nr, err := conn.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:nr]...)
	}
	require.Equal(t, want, string(got))
}
