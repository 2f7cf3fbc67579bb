// Package connmgr owns the TCP listener, the bounded client table and the
// per-connection read/write pumps. It is grounded on the teacher's
// internal/websocket Client/Shard pair (internal/websocket/client.go,
// internal/websocket/shard.go): one goroutine blocks on reads and feeds a
// dispatcher, a second goroutine drains a bounded per-connection channel
// and owns all writes, and a full send queue triggers disconnect rather
// than a blocking write that could stall the whole session.
package connmgr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hactazia/quiznet/internal/wire"
)

// Dispatcher is the request-handling collaborator a Manager feeds parsed
// requests to. It is implemented by the dispatcher package; connmgr only
// depends on this narrow interface to avoid an import cycle with the
// session engine and account/question stores the dispatcher wires
// together.
type Dispatcher interface {
	Dispatch(c *Client, req wire.Request) wire.Response
	HandleDisconnect(c *Client)
}

// Client is one accepted TCP connection. ID is the monotonic, nonzero,
// protocol-visible identity from SPEC_FULL.md's data model; ConnectionID
// is an opaque UUID used only for log correlation, following the
// teacher's ConnectionID/UserID split.
type Client struct {
	ID           uint64
	ConnectionID string
	RemoteAddr   string

	conn net.Conn
	send chan []byte

	mu        sync.RWMutex
	pseudo    string
	sessionID int // 0 means "not in a session"

	closed atomic.Bool

	// sendMu serializes enqueue against closeSend so a send can never
	// race a close of the same channel: enqueue holds the read side
	// while it writes to send, closeSend takes the write side before
	// closing it, so the two can never interleave.
	sendMu     sync.RWMutex
	sendClosed bool
}

// Pseudo returns the authenticated display name, or "" before login.
func (c *Client) Pseudo() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pseudo
}

// SetPseudo records the authenticated display name after a successful login.
func (c *Client) SetPseudo(pseudo string) {
	c.mu.Lock()
	c.pseudo = pseudo
	c.mu.Unlock()
}

// SessionID returns the joined session id, or 0 if the client is not a
// member of any session.
func (c *Client) SessionID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// SetSessionID records the client's current session membership.
func (c *Client) SetSessionID(id int) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// IsAuthenticated reports whether the client has completed player/login.
func (c *Client) IsAuthenticated() bool {
	return c.Pseudo() != ""
}

const (
	defaultSendQueueSize = 32
	writeWait            = 10 * time.Second
)

var errQueueFull = errors.New("connmgr: send queue full")

// Metrics is the narrow set of observability hooks the connection
// manager records against. Implemented by an adapter over
// *admin.Metrics; connmgr depends only on this interface so it never
// imports the admin package.
type Metrics interface {
	ConnectionAccepted()
	ConnectionClosed()
	BroadcastDropped()
}

type noopMetrics struct{}

func (noopMetrics) ConnectionAccepted() {}
func (noopMetrics) ConnectionClosed()   {}
func (noopMetrics) BroadcastDropped()   {}

// Manager accepts connections, maintains the bounded client table and
// runs each client's read/write pumps.
type Manager struct {
	capacity      int
	sendQueueSize int
	dispatcher    Dispatcher
	metrics       Metrics

	mu      sync.RWMutex
	clients map[uint64]*Client
	nextID  uint64

	listener net.Listener
}

// New builds a Manager with the given client-table capacity (mirroring
// SPEC_FULL.md §4.2's "bounded table, capacity 100") and per-connection
// send queue depth.
func New(capacity, sendQueueSize int, dispatcher Dispatcher) *Manager {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	return &Manager{
		capacity:      capacity,
		sendQueueSize: sendQueueSize,
		dispatcher:    dispatcher,
		metrics:       noopMetrics{},
		clients:       make(map[uint64]*Client),
	}
}

// SetMetrics wires metrics in place of the no-op default. Must be called
// before ListenAndServe starts accepting connections.
func (m *Manager) SetMetrics(metrics Metrics) {
	m.metrics = metrics
}

// ListenAndServe binds addr and accepts connections until ctx is
// cancelled or the listener is closed.
func (m *Manager) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("connmgr: listen %s: %w", addr, err)
	}
	m.listener = ln
	log.Printf("[ConnMgr] listening for game connections on %s", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Printf("[ConnMgr] accept error: %v", err)
			return err
		}
		client, err := m.register(conn)
		if err != nil {
			log.Printf("[ConnMgr] rejecting connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}
		go client.writePump()
		go client.readPump(m)
	}
}

func (m *Manager) register(conn net.Conn) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.clients) >= m.capacity {
		return nil, errors.New("client table at capacity")
	}
	m.nextID++
	c := &Client{
		ID:           m.nextID,
		ConnectionID: uuid.NewString(),
		RemoteAddr:   conn.RemoteAddr().String(),
		conn:         conn,
		send:         make(chan []byte, m.sendQueueSize),
	}
	m.clients[c.ID] = c
	log.Printf("[ConnMgr] client %d connected from %s (conn=%s)", c.ID, c.RemoteAddr, c.ConnectionID)
	m.metrics.ConnectionAccepted()
	return c, nil
}

func (m *Manager) unregister(c *Client) {
	m.mu.Lock()
	delete(m.clients, c.ID)
	m.mu.Unlock()
	log.Printf("[ConnMgr] client %d disconnected (conn=%s)", c.ID, c.ConnectionID)
	m.metrics.ConnectionClosed()
}

// Lookup returns the live Client for id, used by the session engine's
// broadcast path after it has dropped its own lock.
func (m *Manager) Lookup(id uint64) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	return c, ok
}

// Count returns the number of currently connected clients.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Send enqueues payload for delivery to client id without blocking. A
// full queue disconnects the client and returns false, matching
// SPEC_FULL.md §5's "disconnect on overflow" backpressure policy; an
// unknown id just returns false.
func (m *Manager) Send(id uint64, payload []byte) bool {
	c, ok := m.Lookup(id)
	if !ok {
		return false
	}
	if err := c.enqueue(payload); err != nil {
		log.Printf("[ConnMgr] client %d send queue full, disconnecting", c.ID)
		m.metrics.BroadcastDropped()
		c.Close()
		return false
	}
	return true
}

// ClearSession resets a client's session membership once its session has
// finished, implementing sessionengine.Broadcaster so a finished slot can
// safely be reused by the registry without routing a stale client into a
// session it no longer belongs to. A no-op if the client has since
// disconnected.
func (m *Manager) ClearSession(clientID uint64) {
	if c, ok := m.Lookup(clientID); ok {
		c.SetSessionID(0)
	}
}

func (c *Client) enqueue(payload []byte) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return errQueueFull
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errQueueFull
	}
}

// closeSend closes the send channel exactly once, holding sendMu's write
// side so no enqueue can be sitting inside its own select on send at the
// same time — that ordering is what makes this safe against the "send on
// closed channel" panic a bare atomic flag can only narrow, not close.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// Close closes the underlying connection exactly once; the read pump's
// deferred cleanup does the rest.
func (c *Client) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.conn.Close()
	}
}

func (c *Client) readPump(m *Manager) {
	defer func() {
		m.dispatcher.HandleDisconnect(c)
		m.unregister(c)
		c.Close()
		c.closeSend()
	}()

	reader := bufio.NewReader(c.conn)
	scanner := wire.NewScanner(reader)

	for {
		req, err := wire.ReadRequest(scanner)
		if err != nil {
			if !errors.Is(err, wire.ErrConnClosed) {
				log.Printf("[ConnMgr] client %d read error: %v", c.ID, err)
			}
			return
		}

		resp := m.dispatcher.Dispatch(c, req)
		line, err := wire.Encode(resp)
		if err != nil {
			log.Printf("[ConnMgr] client %d encode error: %v", c.ID, err)
			return
		}
		if err := c.enqueue(line); err != nil {
			log.Printf("[ConnMgr] client %d send queue full on response, disconnecting", c.ID)
			return
		}
	}
}

func (c *Client) writePump() {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if _, err := c.conn.Write(payload); err != nil {
			log.Printf("[ConnMgr] client %d write error: %v", c.ID, err)
			c.Close()
			return
		}
	}
}
