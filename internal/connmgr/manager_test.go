package connmgr

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/hactazia/quiznet/internal/wire"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	disconnected chan uint64
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{disconnected: make(chan uint64, 4)}
}

func (f *fakeDispatcher) Dispatch(c *Client, req wire.Request) wire.Response {
	return wire.Response{Action: req.Method + " " + req.Endpoint, Statut: "200", Message: "ok"}
}

func (f *fakeDispatcher) HandleDisconnect(c *Client) {
	f.disconnected <- c.ID
}

func startTestManager(t *testing.T) (*Manager, *fakeDispatcher, string) {
	disp := newFakeDispatcher()
	mgr := New(2, 4, disp)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go mgr.ListenAndServe(ctx, addr)
	time.Sleep(50 * time.Millisecond)

	return mgr, disp, addr
}

func TestManagerRoundTripsRequest(t *testing.T) {
	_, _, addr := startTestManager(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET sessions/list\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, `"statut":"200"`)
}

func TestManagerRejectsBeyondCapacity(t *testing.T) {
	_, _, addr := startTestManager(t)

	a, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer a.Close()
	b, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer b.Close()

	time.Sleep(50 * time.Millisecond)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()

	c.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	buf := make([]byte, 16)
	_, err = c.Read(buf)
	require.Error(t, err, "connection beyond capacity should be closed by the server")
}

func TestManagerHandleDisconnectCalledOnClose(t *testing.T) {
	mgr, disp, addr := startTestManager(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	_, err = conn.Write([]byte("GET sessions/list\n"))
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _ = bufio.NewReader(conn).ReadString('\n')

	require.Eventually(t, func() bool { return mgr.Count() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()

	select {
	case <-disp.disconnected:
	case <-time.After(time.Second):
		t.Fatal("HandleDisconnect was not called")
	}
}

func TestSendDisconnectsOnFullQueue(t *testing.T) {
	mgr, _, addr := startTestManager(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return mgr.Count() == 1 }, time.Second, 10*time.Millisecond)

	var id uint64
	mgr.mu.RLock()
	for cid := range mgr.clients {
		id = cid
	}
	mgr.mu.RUnlock()

	for i := 0; i < 10; i++ {
		mgr.Send(id, []byte("filler\n"))
	}

	require.Eventually(t, func() bool { return mgr.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSendToUnknownClientReturnsFalse(t *testing.T) {
	mgr, _, _ := startTestManager(t)
	require.False(t, mgr.Send(999, []byte("x\n")))
}
