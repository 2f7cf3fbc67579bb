// Package discovery implements the UDP LAN-discovery responder:
// SPEC_FULL.md §4.7's exact-match probe/response pair, grounded on the
// teacher's listener-loop shape (connection manager's own Accept loop)
// but over a connectionless socket.
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
)

const probe = "looking for quiznet servers"

// Responder answers LAN-discovery probes with the server's TCP address.
type Responder struct {
	ServerName string
	TCPPort    int
}

// ListenAndServe binds addr and answers probes until ctx is cancelled.
func (r *Responder) ListenAndServe(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("discovery: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("discovery: listen %s: %w", addr, err)
	}
	log.Printf("[Discovery] listening for LAN probes on %s", addr)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 512)
	response := []byte(fmt.Sprintf("hello i'm a quiznet server:%s:%d", r.ServerName, r.TCPPort))

	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Printf("[Discovery] read error: %v", err)
			return err
		}
		if string(buf[:n]) != probe {
			continue
		}
		if _, err := conn.WriteToUDP(response, src); err != nil {
			log.Printf("[Discovery] write error to %s: %v", src, err)
		}
	}
}
