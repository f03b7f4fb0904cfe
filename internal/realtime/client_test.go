package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/auth"
	"github.com/harbor-academy/backend/internal/middleware"
	"github.com/harbor-academy/backend/internal/models"
)

type memEvents map[string]*models.Event

func (m memEvents) GetEvent(_ context.Context, id string) (*models.Event, error) {
	e, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("event not found")
	}
	return e, nil
}

func newGateServer(t *testing.T, h *Hub, jwtSvc *auth.JWTService) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	events := memEvents{"EVT00001": {ID: "EVT00001", Title: "Campus Tech Day", Tickets: models.TicketCounters{Available: 10, Remaining: 10}}}
	r := gin.New()
	api := r.Group("", middleware.JWT(jwtSvc))
	api.GET("/ws/gate", middleware.RequireRole(models.RoleAdmin, models.RoleStaff), ServeWs(h, events, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestServeWsQueryToken(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	h := NewHub(nil, nil, nil)
	base := newGateServer(t, h, jwtSvc)

	staff, err := jwtSvc.Generate(&models.User{ID: uuid.New(), Email: "gate@example.com", Role: models.RoleStaff})
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/gate?event_id=EVT00001&token="+staff, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, FeedSnapshot, msg.Kind)
	var e models.Event
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, "EVT00001", e.ID)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, FeedWatchers, msg.Kind)
	assert.Equal(t, 1, h.Watchers("EVT00001"))
}

func TestServeWsRejects(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	base := newGateServer(t, NewHub(nil, nil, nil), jwtSvc)

	student, err := jwtSvc.Generate(&models.User{ID: uuid.New(), Email: "s@example.com", Role: models.RoleStudent})
	require.NoError(t, err)
	staff, err := jwtSvc.Generate(&models.User{ID: uuid.New(), Email: "gate@example.com", Role: models.RoleStaff})
	require.NoError(t, err)

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"no token", "?event_id=EVT00001", http.StatusUnauthorized},
		{"bad token", "?event_id=EVT00001&token=garbage", http.StatusUnauthorized},
		{"student", "?event_id=EVT00001&token=" + student, http.StatusForbidden},
		{"unknown event", "?event_id=NOPE&token=" + staff, http.StatusNotFound},
		{"missing event", "?token=" + staff, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/gate"+tc.query, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
