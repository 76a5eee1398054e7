package server

import (
	"encoding/json"
	"log/slog"

	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// EventsWebsocket streams workflow events to the authenticated user.
// Admins also receive admin-channel events. Clients may only send control
// frames; requests without an upgrade header get 426.
func (s *Server) EventsWebsocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		p, ok := conn.Locals("principal").(models.Principal)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"realtime events unavailable"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(p, conn)
		if err != nil {
			middleware.Logger.Warn("event stream registration refused",
				slog.Uint64("user_id", uint64(p.UserID)),
				slog.String("error", err.Error()))
			msg, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}

		middleware.Logger.Info("event stream connected",
			slog.Uint64("user_id", uint64(p.UserID)),
			slog.String("role", string(p.Role)))

		go client.WritePump()
		client.ReadPump()
	})
}
