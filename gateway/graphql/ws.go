package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/arnellebalane/instagram-graphql/feed"
	"github.com/arnellebalane/instagram-graphql/hub"
)

// graphql-ws protocol message types (subscriptions-transport-ws)
const (
	wsConnectionInit      = "connection_init"
	wsConnectionAck       = "connection_ack"
	wsConnectionTerminate = "connection_terminate"
	wsStart               = "start"
	wsStop                = "stop"
	wsData                = "data"
	wsError               = "error"
	wsComplete            = "complete"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// wsMessage is the graphql-ws protocol envelope
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsClient tracks one websocket connection and its live streams
type wsClient struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex

	streamsMu sync.Mutex
	streams   map[string]*hub.Subscription[*feed.PostView]
	closed    bool

	done      chan struct{}
	closeOnce sync.Once
}

// handleSubscription upgrades the connection and runs the graphql-ws
// protocol until the client disconnects
func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"graphql-ws"},
		CheckOrigin: func(*http.Request) bool {
			return s.config.EnableCORS || len(s.config.CORSOrigins) == 0
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		server:  s,
		conn:    conn,
		streams: make(map[string]*hub.Subscription[*feed.PostView]),
		done:    make(chan struct{}),
	}

	s.logger.Debug("websocket client connected", "remote", conn.RemoteAddr())

	go client.pingLoop()
	client.readLoop(r.Context())
}

// readLoop processes protocol messages until disconnect. Stream cleanup
// happens exactly once on every exit path.
func (c *wsClient) readLoop(ctx context.Context) {
	defer c.shutdown()

	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			// Connection closed or protocol violation
			return
		}

		switch msg.Type {
		case wsConnectionInit:
			c.write(wsMessage{Type: wsConnectionAck})

		case wsStart:
			c.handleStart(ctx, msg)

		case wsStop:
			c.stopStream(msg.ID, true)

		case wsConnectionTerminate:
			return

		default:
			// Unknown message type, ignore
		}
	}
}

// handleStart validates the requested operation and begins streaming
// announced posts to the client
func (c *wsClient) handleStart(ctx context.Context, msg wsMessage) {
	var req graphqlRequest
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			c.writeError(msg.ID, &graphqlResponse{Errors: gqlerror.List{{
				Message: "Invalid start payload: expected a GraphQL request body",
				Extensions: map[string]interface{}{
					"code": "BAD_REQUEST",
				},
			}}})
			return
		}
	}

	op, errResp := c.server.executor.prepareSubscription(ctx, req)
	if errResp != nil {
		c.writeError(msg.ID, errResp)
		return
	}

	sub, err := c.server.resolver.SubscribeLatestPost()
	if err != nil {
		c.writeError(msg.ID, &graphqlResponse{Errors: gqlerror.List{mapError(err, "latestPost")}})
		return
	}

	c.streamsMu.Lock()
	if c.closed {
		c.streamsMu.Unlock()
		c.server.resolver.ReleaseSubscription(sub)
		return
	}
	if _, exists := c.streams[msg.ID]; exists {
		c.streamsMu.Unlock()
		c.server.resolver.ReleaseSubscription(sub)
		c.writeError(msg.ID, &graphqlResponse{Errors: gqlerror.List{{
			Message: fmt.Sprintf("Subscription %q already started on this connection", msg.ID),
			Extensions: map[string]interface{}{
				"code": "BAD_REQUEST",
			},
		}}})
		return
	}
	c.streams[msg.ID] = sub
	c.streamsMu.Unlock()

	go c.streamEvents(ctx, msg.ID, op, sub)
}

// streamEvents forwards announced posts to the client until the stream
// or the connection ends
func (c *wsClient) streamEvents(ctx context.Context, id string, op *subscriptionOp, sub *hub.Subscription[*feed.PostView]) {
	for {
		select {
		case view, ok := <-sub.C():
			if !ok {
				// Hub shut down; tell the client the stream is over
				c.write(wsMessage{ID: id, Type: wsComplete})
				c.stopStream(id, false)
				return
			}

			resp := c.server.executor.executeEvent(ctx, op, view)
			payload, err := json.Marshal(resp)
			if err != nil {
				c.server.logger.Error("event encoding failed", "error", err)
				continue
			}
			c.write(wsMessage{ID: id, Type: wsData, Payload: payload})

		case <-c.done:
			return
		}
	}
}

// stopStream releases one stream. Idempotent: stopping an unknown or
// already-stopped stream is a no-op.
func (c *wsClient) stopStream(id string, notify bool) {
	c.streamsMu.Lock()
	sub, ok := c.streams[id]
	if ok {
		delete(c.streams, id)
	}
	c.streamsMu.Unlock()

	if !ok {
		return
	}

	c.server.resolver.ReleaseSubscription(sub)
	if notify {
		c.write(wsMessage{ID: id, Type: wsComplete})
	}
}

// shutdown releases every stream and closes the connection. Runs once.
func (c *wsClient) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.streamsMu.Lock()
		c.closed = true
		streams := c.streams
		c.streams = make(map[string]*hub.Subscription[*feed.PostView])
		c.streamsMu.Unlock()

		for _, sub := range streams {
			c.server.resolver.ReleaseSubscription(sub)
		}

		_ = c.conn.Close()
		c.server.logger.Debug("websocket client disconnected", "remote", c.conn.RemoteAddr())
	})
}

// pingLoop keeps the connection alive; the pong handler extends the
// read deadline
func (c *wsClient) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// write sends one protocol message; gorilla connections allow a single
// concurrent writer
func (c *wsClient) write(msg wsMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.server.logger.Debug("websocket write failed", "error", err)
	}
}

// writeError sends the error payload for a failed start
func (c *wsClient) writeError(id string, resp *graphqlResponse) {
	payload, err := json.Marshal(resp.Errors)
	if err != nil {
		return
	}
	c.write(wsMessage{ID: id, Type: wsError, Payload: payload})
}
