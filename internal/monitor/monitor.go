// Package monitor broadcasts scan progress to any number of connected
// WebSocket clients. Broadcasting never blocks the scan: each client
// gets a small buffered channel, and an event is dropped for a client
// that has fallen behind rather than stalling the driver goroutine.
package monitor

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

const clientSendBuffer = 8

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one connected WebSocket observer. send is drained by a
// dedicated writer goroutine so a slow client never blocks Broadcast.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	closed bool
}

// Server hosts the /ws endpoint the CLI's --monitor flag starts.
type Server struct {
	addr   string
	http   *http.Server
	mu     sync.RWMutex
	client map[*client]struct{}
}

// NewServer builds a monitor bound to addr (e.g. ":9999"); it does not
// start listening until Serve is called.
func NewServer(addr string) *Server {
	s := &Server{addr: addr, client: make(map[*client]struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}

	s.mu.Lock()
	s.client[c] = struct{}{}
	s.mu.Unlock()

	go s.writePump(c)
	go s.readPump(c)
}

// readPump's only job is to notice the client going away: progress
// events are one-directional, so anything the client sends is dropped.
func (s *Server) readPump(c *client) {
	defer s.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.removeClient(c)
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if _, ok := s.client[c]; ok {
		delete(s.client, c)
		close(c.send)
	}
	s.mu.Unlock()
}

// Serve blocks, running the HTTP server until Close is called.
func (s *Server) Serve() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts down the HTTP server and every client connection.
func (s *Server) Close() error {
	s.mu.Lock()
	for c := range s.client {
		close(c.send)
		delete(s.client, c)
	}
	s.mu.Unlock()
	return s.http.Close()
}

// Broadcast marshals event to JSON and fans it out to every currently
// connected client, dropping it for any client whose send buffer is
// already full instead of waiting on them.
func (s *Server) Broadcast(event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("monitor: marshal event: %w", err)
	}

	s.mu.RLock()
	sends := make([]chan []byte, 0, len(s.client))
	for c := range s.client {
		sends = append(sends, c.send)
	}
	s.mu.RUnlock()

	broadcastToChannels(sends, payload)
	return nil
}

// broadcastToChannels is the non-blocking fan-out at the core of
// Broadcast, split out so it can be exercised without a real
// WebSocket connection: a full channel is skipped, never waited on.
func broadcastToChannels(sends []chan []byte, payload []byte) (delivered, dropped int) {
	for _, ch := range sends {
		select {
		case ch <- payload:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}
