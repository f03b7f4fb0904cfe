package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/middleware"
	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/response"
)

// FeedSnapshot is the first message a dashboard receives.
const FeedSnapshot = "snapshot"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware guards the HTTP surface
	},
}

// Message is the WebSocket message envelope.
type Message struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

type eventGetter interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// Client is one dashboard connection watching an event.
type Client struct {
	ID      string
	EventID string
	UserID  uuid.UUID
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	logger  *zap.Logger
}

// ServeWs upgrades GET /ws/gate?event_id= and streams the event's gate feed
// until the connection closes. It runs behind the JWT and role middleware.
func ServeWs(hub *Hub, events eventGetter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		eventID := c.Query("event_id")
		if eventID == "" {
			response.BadRequest(c, "event_id required")
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		event, err := events.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			response.Error(c, err, "failed to load event")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:      uuid.New().String(),
			EventID: event.ID,
			UserID:  userID,
			hub:     hub,
			conn:    conn,
			send:    make(chan Message, 256),
			logger:  logger,
		}
		if data, err := json.Marshal(event); err == nil {
			client.send <- Message{Kind: FeedSnapshot, Data: data}
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump only services control frames; dashboards do not send commands.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
