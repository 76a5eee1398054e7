package server

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsWebsocket_DeliversUserEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ts := newTestServer(t, rdb)
	u, token := ts.user("applicant@city.gov", models.RoleApplicant)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.app.Listener(ln) }()
	t.Cleanup(func() { _ = ts.app.Shutdown() })

	url := "ws://" + ln.Addr().String() + "/api/ws/events?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		return ts.srv.hub.Connections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	ev := notifications.NewEvent(notifications.EventRequestDecided, map[string]any{"requestId": 7, "status": "APPROVED"})
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	// Admin-channel events must not reach an applicant.
	ts.srv.hub.Dispatch(notifications.AdminChannel, `{"type":"approval_needed","payload":{}}`)
	ts.srv.hub.Dispatch(notifications.UserChannel(u.ID), string(payload))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got notifications.Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, notifications.EventRequestDecided, got.Type)
}
