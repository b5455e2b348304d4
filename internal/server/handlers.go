package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/printworks/voicedesk/pkg/hub"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns a service-level summary.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"uptime_seconds":        int(time.Since(s.startedAt).Seconds()),
		"live_sessions":         s.sessions.Len(),
		"dashboard_subscribers": s.feed.ClientCount(),
		"turns":                 s.pipeline.Metrics().Summarize(),
	})
}

// handleSessions returns a snapshot of live sessions.
func (s *Server) handleSessions(c *fiber.Ctx) error {
	return c.JSON(s.sessions.Snapshot())
}

// handleConversation returns the recent conversation log.
func (s *Server) handleConversation(c *fiber.Ctx) error {
	s.conversationMu.RLock()
	defer s.conversationMu.RUnlock()
	return c.JSON(s.conversation)
}

// handleMetrics returns recent per-turn latency metrics.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"summary": s.pipeline.Metrics().Summarize(),
		"recent":  s.pipeline.Metrics().Recent(),
	})
}

// handleDashboardWS subscribes a dashboard client to the live feed.
func (s *Server) handleDashboardWS(c *websocket.Conn) {
	client := hub.NewClient(s.feed, c)
	client.Run()
}
