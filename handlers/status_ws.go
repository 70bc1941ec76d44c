package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	wsWriteWait = 10 * time.Second
	// A client silent for this long is considered gone.
	wsIdleTimeout = 2 * time.Minute
)

const (
	MsgConnected    = "connected"
	MsgStatusUpdate = "status_update"
	MsgPong         = "pong"
	MsgError        = "error"
)

type StatusMessage struct {
	Type      string                `json:"type"`
	Data      []models.RouterStatus `json:"data,omitempty"`
	Message   string                `json:"message,omitempty"`
	Error     string                `json:"error,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// wsConn serialises writes; gorilla connections allow one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	open bool
}

func (w *wsConn) send(msg StatusMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return websocket.ErrCloseSent
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := w.conn.WriteJSON(msg); err != nil {
		w.open = false
		return err
	}
	return nil
}

func (w *wsConn) close() {
	w.mu.Lock()
	w.open = false
	w.mu.Unlock()
}

// StatusWS - WebSocket /ws/status. Push setiap hasil poll ke client.
func StatusWS(poller *services.StatusPoller, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("remote", c.Request.RemoteAddr).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		clientLog := log.With().Str("remote", c.Request.RemoteAddr).Logger()
		clientLog.Info().Msg("WebSocket client connected")

		ws := &wsConn{conn: conn, open: true}
		updates, unsubscribe := poller.Subscribe()
		defer unsubscribe()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		go readLoop(ctx, cancel, ws, clientLog)

		if err := ws.send(StatusMessage{
			Type:      MsgConnected,
			Message:   "Status stream started",
			Data:      poller.Statuses(),
			Timestamp: time.Now(),
		}); err != nil {
			clientLog.Debug().Err(err).Msg("WebSocket write failed")
			return
		}

		sent := 0
		for {
			select {
			case <-ctx.Done():
				ws.close()
				clientLog.Info().Int("updates", sent).Msg("WebSocket client disconnected")
				return
			case statuses := <-updates:
				if err := ws.send(StatusMessage{
					Type:      MsgStatusUpdate,
					Data:      statuses,
					Timestamp: time.Now(),
				}); err != nil {
					clientLog.Debug().Err(err).Msg("WebSocket write failed")
					return
				}
				sent++
			}
		}
	}
}

// readLoop answers pings and cancels the stream once the client goes away.
func readLoop(ctx context.Context, cancel context.CancelFunc, ws *wsConn, log zerolog.Logger) {
	defer cancel()

	conn := ws.conn
	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("WebSocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))

		if messageType != websocket.TextMessage {
			continue
		}
		var cmd struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			_ = ws.send(StatusMessage{Type: MsgError, Error: "invalid message", Timestamp: time.Now()})
			continue
		}
		if cmd.Type == "ping" {
			if err := ws.send(StatusMessage{Type: MsgPong, Timestamp: time.Now()}); err != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// WsHealthCheck - GET /ws/health
func WsHealthCheck(c *gin.Context) {
	ok(c, "WebSocket server is healthy", gin.H{
		"timestamp": time.Now(),
		"status":    "ok",
	})
}
