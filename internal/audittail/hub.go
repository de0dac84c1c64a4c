// Package audittail provides the operator-facing live audit-record tail:
// GET /admin/audit/stream upgrades to a websocket and rebroadcasts every
// record the audit worker consumes, so an operator can watch the proxy's
// traffic without polling an event store.
//
// Architecture:
//   - Hub: manages active websocket connections and broadcasts
//   - Client: one operator's websocket connection
//
// Message flow:
//  1. Operator's browser establishes a websocket connection.
//  2. Client registers with Hub.
//  3. The audit worker calls Hub.Broadcast for every record it drains.
//  4. Hub fans the message out to all connected clients.
//  5. Each client's writePump sends it to the browser.
//
// Concurrency:
//   - Hub.Run() runs in its own goroutine and owns all mutable state;
//     register/unregister/broadcast all go through channels.
//   - Each Client has its own readPump/writePump goroutine pair.
package audittail

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/unionsquare/unionsquare/internal/logger"
)

// Hub maintains the set of connected operator clients and fans out
// broadcast messages to all of them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	countQuery chan chan int
}

// Client is one operator's websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// NewHub constructs an empty Hub. Call Run in its own goroutine before
// accepting connections.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		countQuery: make(chan chan int),
		clients:    make(map[*Client]bool),
	}
}

// Run is the hub's single-goroutine event loop; all client-map mutation
// happens here, so no lock is needed.
func (h *Hub) Run() {
	log := logger.WebSocket()
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Str("client_id", client.id).Int("total", len(h.clients)).Msg("audit-tail client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Debug().Str("client_id", client.id).Int("total", len(h.clients)).Msg("audit-tail client unregistered")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than block the broadcast
					// loop for everyone else.
					close(client.send)
					delete(h.clients, client)
				}
			}

		case reply := <-h.countQuery:
			reply <- len(h.clients)
		}
	}
}

// Broadcast fans message out to every connected operator client. Intended
// to be called once per audit record the worker drains; a full client
// buffer results in that client being dropped, never in Broadcast
// blocking.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ClientCount returns the number of currently connected clients, queried
// through the Run loop so it never races with client-map mutation.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	h.countQuery <- reply
	return <-reply
}

// ServeClient registers a new websocket connection with the hub and starts
// its read/write pumps.
func (h *Hub) ServeClient(conn *websocket.Conn, clientID string) {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   clientID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		// Operators only consume this stream; any inbound frame just
		// resets the read deadline so the connection stays alive.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}
