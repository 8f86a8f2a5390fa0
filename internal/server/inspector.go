package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/conneroisu/paramtrail/internal/capture"
	"github.com/conneroisu/paramtrail/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Messages buffered per client before it is dropped as too slow.
	clientBuffer = 64
)

// InspectMessage is one capture event as streamed to inspector clients.
type InspectMessage struct {
	Type        string    `json:"type"`
	Parameter   string    `json:"parameter"`
	IncomingKey string    `json:"incoming_key"`
	Value       string    `json:"value"`
	Decoded     bool      `json:"decoded"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
}

type inspectClient struct {
	conn *websocket.Conn
	send chan InspectMessage
}

// Inspector streams capture events to websocket clients. It is a
// development aid and is mounted only when enabled in configuration.
type Inspector struct {
	mu             sync.RWMutex
	clients        map[*inspectClient]struct{}
	allowedOrigins []string
	logger         logging.Logger
	closed         bool
}

// NewInspector creates an Inspector accepting the given origin patterns.
func NewInspector(allowedOrigins []string, logger logging.Logger) *Inspector {
	return &Inspector{
		clients:        make(map[*inspectClient]struct{}),
		allowedOrigins: allowedOrigins,
		logger:         logger.WithComponent("inspector"),
	}
}

// Observe is a capture.Observer that publishes each event.
func (in *Inspector) Observe(_ context.Context, event capture.Event) {
	in.Publish(InspectMessage{
		Type:        "capture",
		Parameter:   event.Parameter,
		IncomingKey: event.IncomingKey,
		Value:       logging.SanitizeForLog(event.Value),
		Decoded:     event.Decoded,
		Source:      event.Source,
		Timestamp:   event.Time,
	})
}

// Publish sends msg to every client. Clients whose buffer is full are
// dropped at once and their connections closed in the background, so a
// stalled client never holds up the caller.
func (in *Inspector) Publish(msg InspectMessage) {
	in.mu.RLock()
	var slow []*inspectClient
	for c := range in.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	in.mu.RUnlock()

	for _, c := range slow {
		if in.detach(c) {
			go c.conn.Close(websocket.StatusPolicyViolation, "client too slow")
		}
	}
}

// ClientCount returns the number of connected clients.
func (in *Inspector) ClientCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.clients)
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (in *Inspector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: in.allowedOrigins,
	})
	if err != nil {
		in.logger.Warn(r.Context(), err, "WebSocket upgrade failed",
			"origin", r.Header.Get("Origin"))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &inspectClient{conn: conn, send: make(chan InspectMessage, clientBuffer)}
	if !in.add(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	in.logger.Info(r.Context(), "Inspector client connected", "clients", in.ClientCount())

	// CloseRead handles pings and close frames; its context ends when the
	// peer goes away.
	ctx := conn.CloseRead(context.Background())
	in.writePump(ctx, client)
	in.remove(client, websocket.StatusNormalClosure, "")
	in.logger.Info(r.Context(), "Inspector client disconnected", "clients", in.ClientCount())
}

func (in *Inspector) writePump(ctx context.Context, c *inspectClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				in.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (in *Inspector) add(c *inspectClient) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return false
	}
	in.clients[c] = struct{}{}
	return true
}

// detach unregisters c and reports whether it was still registered.
func (in *Inspector) detach(c *inspectClient) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.clients[c]; !ok {
		return false
	}
	delete(in.clients, c)
	close(c.send)
	return true
}

func (in *Inspector) remove(c *inspectClient, code websocket.StatusCode, reason string) {
	if in.detach(c) {
		c.conn.Close(code, reason)
	}
}

// Close disconnects every client and refuses new ones.
func (in *Inspector) Close() {
	in.mu.Lock()
	in.closed = true
	clients := make([]*inspectClient, 0, len(in.clients))
	for c := range in.clients {
		clients = append(clients, c)
	}
	in.mu.Unlock()

	for _, c := range clients {
		in.remove(c, websocket.StatusGoingAway, "server shutting down")
	}
}
