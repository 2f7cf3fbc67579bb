package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResponderAnswersExactProbe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &Responder{ServerName: "test-server", TCPPort: 5556}
	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.LocalAddr().String()
	ln.Close()

	go r.ListenAndServe(ctx, addr)
	time.Sleep(50 * time.Millisecond)

	client, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("looking for quiznet servers"))
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 512)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello i'm a quiznet server:test-server:5556", string(buf[:n]))
}

func TestResponderIgnoresUnrelatedDatagram(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &Responder{ServerName: "test-server", TCPPort: 5556}
	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.LocalAddr().String()
	ln.Close()

	go r.ListenAndServe(ctx, addr)
	time.Sleep(50 * time.Millisecond)

	client, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("not a real probe"))
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 512)
	_, err = client.Read(buf)
	require.Error(t, err, "no response expected for a non-matching datagram")
}
