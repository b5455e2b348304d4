package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/printworks/voicedesk/pkg/dialogue"
	"github.com/printworks/voicedesk/pkg/llm"
	"github.com/printworks/voicedesk/pkg/session"
	"github.com/printworks/voicedesk/pkg/stt"
	"github.com/printworks/voicedesk/pkg/tts"
	"github.com/printworks/voicedesk/pkg/voice"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	pipeline := voice.NewPipeline(stt.NewMock(), tts.NewMock(), time.Second)
	return New(Config{
		Bind:           "127.0.0.1",
		Port:           0,
		IdleTimeout:    time.Minute,
		MaxAudioChunks: 10,
		Pipeline:       pipeline,
		Sessions:       session.NewStore(),
		NewOrchestrator: func() *dialogue.Orchestrator {
			return dialogue.New(llm.NewMock(), nil, dialogue.Config{})
		},
	})
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)
	resp, err := s.app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)
	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)

	var status map[string]interface{}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if _, ok := status["live_sessions"]; !ok {
		t.Errorf("status missing live_sessions: %s", body)
	}
	if _, ok := status["turns"]; !ok {
		t.Errorf("status missing turn summary: %s", body)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	s := testServer(t)

	resp, _ := s.app.Test(httptest.NewRequest("GET", "/api/sessions", nil))
	body, _ := io.ReadAll(resp.Body)
	var snapshot []session.Info
	if err := json.Unmarshal(body, &snapshot); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if len(snapshot) != 0 {
		t.Errorf("snapshot = %+v, want empty", snapshot)
	}
}

func TestConversationLog(t *testing.T) {
	s := testServer(t)
	s.recordExchange("sess-1", "quote fifty tees", "Done, quote created.")

	resp, _ := s.app.Test(httptest.NewRequest("GET", "/api/conversation", nil))
	body, _ := io.ReadAll(resp.Body)
	var entries []ConversationEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want user+assistant pair", entries)
	}
	if entries[0].Role != "user" || entries[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", entries[0].Role, entries[1].Role)
	}
	if entries[0].SessionID != "sess-1" {
		t.Errorf("session id = %q", entries[0].SessionID)
	}
}

func TestWebsocketRouteRequiresUpgrade(t *testing.T) {
	s := testServer(t)
	resp, err := s.app.Test(httptest.NewRequest("GET", "/ws/voice", nil))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("status = %d, want 426 Upgrade Required", resp.StatusCode)
	}
}
