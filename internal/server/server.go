// Package server is the HTTP and websocket front of the voice desk: the
// client-facing /ws/voice endpoint plus a small dashboard API with a live
// feed.
package server

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/printworks/voicedesk/internal/log"
	"github.com/printworks/voicedesk/pkg/dialogue"
	"github.com/printworks/voicedesk/pkg/hub"
	"github.com/printworks/voicedesk/pkg/session"
	"github.com/printworks/voicedesk/pkg/voice"
)

// Config holds server wiring.
type Config struct {
	Bind string
	Port int

	IdleTimeout   time.Duration
	MaxAudioChunks int

	Pipeline *voice.Pipeline
	Sessions *session.Store

	// NewOrchestrator builds the per-session dialogue state.
	NewOrchestrator func() *dialogue.Orchestrator
}

// ConversationEntry is one line of the dashboard conversation log.
type ConversationEntry struct {
	Time      string `json:"time"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Message   string `json:"message"`
}

// Server hosts the voice endpoint and the dashboard.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	sessions *session.Store
	pipeline *voice.Pipeline
	feed     *hub.Hub

	conversationMu sync.RWMutex
	conversation   []ConversationEntry

	startedAt time.Time
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	s := &Server{
		cfg:          cfg,
		logger:       log.With("component", "server"),
		sessions:     cfg.Sessions,
		pipeline:     cfg.Pipeline,
		feed:         hub.New("dashboard"),
		conversation: make([]ConversationEntry, 0, 200),
		startedAt:    time.Now(),
	}

	// Completed turns go to the dashboard log and the live feed.
	s.pipeline.OnExchange = s.recordExchange

	app := fiber.New(fiber.Config{
		AppName:               "voicedesk",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/sessions", s.handleSessions)
	api.Get("/conversation", s.handleConversation)
	api.Get("/metrics", s.handleMetrics)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/voice", websocket.New(s.handleVoiceWS))
	app.Get("/ws/dashboard", websocket.New(s.handleDashboardWS))

	s.app = app
	return s
}

// Start runs the feed hub and listens. It blocks.
func (s *Server) Start() error {
	go s.feed.Run()

	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and drains handlers.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) recordExchange(sessionID, transcript, reply string) {
	now := time.Now().Format("15:04:05")

	s.conversationMu.Lock()
	s.conversation = append(s.conversation,
		ConversationEntry{Time: now, SessionID: sessionID, Role: "user", Message: transcript},
		ConversationEntry{Time: now, SessionID: sessionID, Role: "assistant", Message: reply},
	)
	if len(s.conversation) > 200 {
		s.conversation = s.conversation[len(s.conversation)-200:]
	}
	s.conversationMu.Unlock()

	s.feed.Publish(hub.NewExchange(sessionID, transcript, reply))
}

func (s *Server) publishSessions() {
	s.feed.Publish(hub.NewSessionUpdate(s.sessions.Snapshot()))
}
