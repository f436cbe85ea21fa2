package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/toolexecutor"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const writeWait = 10 * time.Second

// ExecuteResponse is a websocket reply frame
type ExecuteResponse struct {
	RequestID string `json:"requestId,omitempty"`
	toolexecutor.ToolResult
}

// Client is one websocket connection
type Client struct {
	ID          string
	IPAddress   string
	ConnectedAt time.Time
	RateLimiter *ClientRateLimiter

	conn    *websocket.Conn
	writeMu sync.Mutex
	pending sync.WaitGroup
}

// Send writes a reply frame. Writes are serialized per connection.
func (c *Client) Send(resp ExecuteResponse) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(resp)
}

// Close closes the underlying connection
func (c *Client) Close() {
	c.conn.Close()
}

// ClientRegistry tracks connected websocket clients
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry creates an empty registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client)}
}

// Add registers a client
func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ID] = client
}

// Remove forgets a client
func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
}

// GetAll returns every connected client
func (r *ClientRegistry) GetAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// handleWebSocket upgrades the connection and serves execute frames until the
// peer goes away. Executions run concurrently; replies carry the frame's requestId.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	conn.SetReadLimit(s.maxFrameBytes)

	clientID, _ := gonanoid.New()
	client := &Client{
		ID:          clientID,
		IPAddress:   r.RemoteAddr,
		ConnectedAt: time.Now(),
		RateLimiter: NewClientRateLimiter(s.requestsPerMinute, s.maxConcurrent),
		conn:        conn,
	}
	s.clients.Add(client)

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		client.pending.Wait()
		client.Close()
		s.clients.Remove(clientID)
		s.logger.Info().Str("clientId", clientID).Msg("Client disconnected")
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("clientId", clientID).Msg("WebSocket error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleFrame(ctx, client, message)
	}
}

// handleFrame parses one frame and starts its execution
func (s *Server) handleFrame(ctx context.Context, client *Client, message []byte) {
	var req ExecuteRequest
	if err := json.Unmarshal(message, &req); err != nil {
		s.reject(client, "", fmt.Sprintf("invalid request frame: %v", err))
		return
	}

	if reqErr := s.checkRequest(req); reqErr != nil {
		s.reject(client, req.RequestID, reqErr.message)
		return
	}

	if ok, reason := client.RateLimiter.Acquire(); !ok {
		s.reject(client, req.RequestID, reason)
		return
	}

	if !s.beginRequest() {
		client.RateLimiter.Release()
		s.reject(client, req.RequestID, "server is shutting down")
		return
	}

	client.pending.Add(1)
	go func() {
		defer s.inFlightReqs.Done()
		defer client.pending.Done()
		defer client.RateLimiter.Release()

		execCtx := ctx
		if req.RequestID != "" {
			execCtx = tracing.WithRequestID(ctx, req.RequestID)
		}

		result := s.dispatcher.Execute(execCtx, req.Request)
		if err := client.Send(ExecuteResponse{RequestID: req.RequestID, ToolResult: result}); err != nil {
			s.logger.Warn().Err(err).Str("clientId", client.ID).Str("tool", req.ToolID).Msg("Failed to send tool result")
		}
	}()
}

// reject answers a frame that was never executed with a failed tool result
func (s *Server) reject(client *Client, requestID, message string) {
	resp := ExecuteResponse{
		RequestID: requestID,
		ToolResult: toolexecutor.ToolResult{
			Success: false,
			Output:  map[string]interface{}{},
			Error:   message,
		},
	}
	if err := client.Send(resp); err != nil {
		s.logger.Warn().Err(err).Str("clientId", client.ID).Msg("Failed to send rejection")
	}
}
