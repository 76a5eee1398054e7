package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/rockymount114/City-Workflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func principal(id uint, role models.Role) models.Principal {
	return models.Principal{UserID: id, Role: role}
}

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case m, ok := <-c.Send:
			if !ok {
				return out
			}
			out = append(out, string(m))
		default:
			return out
		}
	}
}

func TestHub_RegisterLimits(t *testing.T) {
	t.Parallel()
	hub := NewHub()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(principal(1, models.RoleApplicant), nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(principal(1, models.RoleApplicant), nil)
	assert.ErrorIs(t, err, ErrUserFull)
	assert.Equal(t, maxConnsPerUser, hub.Connections())

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.Connections())
	_, err = hub.Register(principal(2, models.RoleApplicant), nil)
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	c, err := hub.Register(principal(3, models.RoleApplicant), nil)
	require.NoError(t, err)

	hub.UnregisterClient(c)
	hub.UnregisterClient(c)
	assert.Zero(t, hub.Connections())
	_, open := <-c.Send
	assert.False(t, open)
}

func TestHub_DispatchRoutesByChannel(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	applicant, err := hub.Register(principal(10, models.RoleApplicant), nil)
	require.NoError(t, err)
	admin, err := hub.Register(principal(11, models.RoleAdmin), nil)
	require.NoError(t, err)
	approver, err := hub.Register(principal(12, models.RoleApproverL1), nil)
	require.NoError(t, err)

	userEvent := `{"type":"request_decided","payload":{"requestId":1},"timestamp":"2026-01-01T00:00:00Z"}`
	adminEvent := `{"type":"application_changed","payload":null,"timestamp":"2026-01-01T00:00:00Z"}`

	hub.Dispatch(UserChannel(10), userEvent)
	hub.Dispatch(AdminChannel, adminEvent)
	hub.Dispatch(UserChannel(99), userEvent)
	hub.Dispatch("other:channel", userEvent)
	hub.Dispatch(UserChannel(12), "not json")

	assert.Equal(t, []string{userEvent}, drain(applicant))
	assert.Equal(t, []string{adminEvent}, drain(admin))
	assert.Empty(t, drain(approver))

	require.NoError(t, hub.Shutdown(context.Background()))
}

func TestHub_TrySendDropsWhenFull(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	c, err := hub.Register(principal(20, models.RoleApplicant), nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.TrySend([]byte("x")))
	}
	assert.False(t, c.TrySend([]byte("overflow")))
	assert.Len(t, drain(c), sendBuffer)

	hub.UnregisterClient(c)
	assert.False(t, c.TrySend([]byte("after close")))
}

func TestHub_StartWiringDeliversPublishedEvents(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := hub.Register(principal(30, models.RoleApproverL2), nil)
	require.NoError(t, err)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishUser(ctx, 30, NewEvent(EventApprovalNeeded, map[string]any{"requestId": 5})))

	select {
	case msg := <-c.Send:
		assert.Contains(t, string(msg), `"type":"approval_needed"`)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
	require.NoError(t, hub.Shutdown(context.Background()))
}
