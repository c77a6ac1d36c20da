package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client represents a single WebSocket connection.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// helloMessage tells a new client the revision it starts from.
func helloMessage(revision uint64) []byte {
	data, _ := json.Marshal(Message{Type: "hello", Revision: revision})
	return data
}

// syncRequest is the only message clients send: after a reconnect a tab
// asks for the current revision and refetches when it moved past Since.
type syncRequest struct {
	Type  string `json:"type"`
	Since uint64 `json:"since"`
}

// syncReply answers a sync request. ok is false for anything else.
func syncReply(data []byte, revision uint64) (reply []byte, ok bool) {
	var req syncRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Type != "sync" {
		return nil, false
	}
	reply, _ = json.Marshal(Message{
		Type:     "sync",
		Revision: revision,
		Extra:    map[string]any{"stale": revision > req.Since},
	})
	return reply, true
}

// Run queues the hello message, registers the client, starts the write
// pump and runs the read pump. It blocks until the connection is closed.
func (c *Client) Run(ctx context.Context) {
	c.start()
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// start queues the hello before the client becomes visible to Broadcast,
// so it is always the first message and the send cannot block.
func (c *Client) start() {
	c.send <- helloMessage(c.hub.Revision())
	c.hub.Register(c)
}

// readPump answers sync requests and ignores everything else until the
// connection closes.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		reply, ok := syncReply(data, c.hub.Revision())
		if !ok {
			continue
		}
		select {
		case c.send <- reply:
		default:
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
