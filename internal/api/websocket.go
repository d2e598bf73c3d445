package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/statement-parser/client/internal/logger"
	"github.com/statement-parser/client/internal/models"
	"github.com/statement-parser/client/internal/session"
	"go.uber.org/zap"
)

// WebSocket message types for the state stream
const (
	// Client -> Server messages
	MsgTypeSubmit = "submit"
	MsgTypePing   = "ping"

	// Server -> Client messages
	MsgTypeState = "state"
	MsgTypeError = "error"
	MsgTypePong  = "pong"
)

const (
	// snapshotBuffer is how many undelivered snapshots a client may lag
	// behind before the oldest are dropped.
	snapshotBuffer = 32
	writeWait      = 10 * time.Second
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler streams controller snapshots to connected clients
type WebSocketHandler struct {
	controller Controller
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	mu      sync.Mutex
	clients int
}

// NewWebSocketHandler creates a new state stream handler
func NewWebSocketHandler(controller Controller, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		controller: controller,
		logger:     logger.OrNop(log),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// wsClient is one connection. All writes go through its writer goroutine.
type wsClient struct {
	updates chan models.Snapshot
	control chan WSMessage
	done    chan struct{}
}

// push queues s without blocking the controller. When the client lags,
// the oldest queued snapshot is dropped; every snapshot carries its version.
func (cl *wsClient) push(s models.Snapshot) {
	for {
		select {
		case cl.updates <- s:
			return
		default:
		}
		select {
		case <-cl.updates:
		default:
		}
	}
}

func (cl *wsClient) send(msg WSMessage) {
	select {
	case cl.control <- msg:
	case <-cl.done:
	}
}

// HandleWebSocket upgrades the connection and streams snapshots. The first
// message is the snapshot current at connection time.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	cl := &wsClient{
		updates: make(chan models.Snapshot, snapshotBuffer),
		control: make(chan WSMessage, 4),
		done:    make(chan struct{}),
	}

	initial, unsubscribe := wsh.controller.Subscribe(cl.push)
	defer unsubscribe()

	wsh.mu.Lock()
	wsh.clients++
	count := wsh.clients
	wsh.mu.Unlock()
	wsh.logger.Info("state stream client connected", zap.Int("clients", count))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		wsh.writeLoop(ws, cl, initial)
	}()

	wsh.readLoop(c, ws, cl)

	close(cl.done)
	wg.Wait()

	wsh.mu.Lock()
	wsh.clients--
	count = wsh.clients
	wsh.mu.Unlock()
	wsh.logger.Info("state stream client disconnected", zap.Int("clients", count))
	return nil
}

func (wsh *WebSocketHandler) readLoop(c echo.Context, ws *websocket.Conn, cl *wsClient) {
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsh.logger.Warn("state stream read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case MsgTypePing:
			// Respond with pong to keep connection alive
			cl.send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case MsgTypeSubmit:
			// The resulting snapshots arrive through the subscription.
			if _, err := wsh.controller.SubmitAsync(c.Request().Context()); err != nil {
				if errors.Is(err, session.ErrSubmitInFlight) {
					cl.send(errorMessage("an extraction request is already in flight", "SUBMIT_IN_FLIGHT"))
				}
			}
		default:
			cl.send(errorMessage("Unknown message type: "+msg.Type, "INVALID_TYPE"))
		}
	}
}

// writeLoop sends initial first, then every newer snapshot in version order.
func (wsh *WebSocketHandler) writeLoop(ws *websocket.Conn, cl *wsClient, initial models.Snapshot) {
	sent := initial.Version
	if !wsh.write(ws, cl, stateMessage(initial)) {
		return
	}

	for {
		var msg WSMessage
		select {
		case s := <-cl.updates:
			if s.Version <= sent {
				continue
			}
			sent = s.Version
			msg = stateMessage(s)
		case msg = <-cl.control:
		case <-cl.done:
			return
		}

		if !wsh.write(ws, cl, msg) {
			return
		}
	}
}

func (wsh *WebSocketHandler) write(ws *websocket.Conn, cl *wsClient, msg WSMessage) bool {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(msg); err != nil {
		wsh.logger.Warn("state stream write error", zap.Error(err))
		// Unblock the reader so the handler can return.
		_ = ws.Close()
		<-cl.done
		return false
	}
	return true
}

func stateMessage(s models.Snapshot) WSMessage {
	return WSMessage{Type: MsgTypeState, Payload: mustJSON(s), Timestamp: time.Now().UnixMilli()}
}

func errorMessage(message, code string) WSMessage {
	return WSMessage{
		Type:      MsgTypeError,
		Payload:   mustJSON(WSErrorResponse{Message: message, Code: code}),
		Timestamp: time.Now().UnixMilli(),
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
