package stt_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/printworks/voicedesk/pkg/stt"
)

func TestMockProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("default transcript", func(t *testing.T) {
		mock := stt.NewMock()
		result, err := mock.Transcribe(ctx, []byte("audio"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Text == "" {
			t.Error("expected a transcript")
		}
	})

	t.Run("fixed transcript", func(t *testing.T) {
		mock := stt.NewMockWithText("fifty tees")
		result, err := mock.Transcribe(ctx, []byte("audio"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Text != "fifty tees" {
			t.Errorf("Text = %q", result.Text)
		}
	})

	t.Run("empty audio rejected", func(t *testing.T) {
		mock := stt.NewMock()
		if _, err := mock.Transcribe(ctx, nil); !errors.Is(err, stt.ErrEmptyAudio) {
			t.Errorf("error = %v, want ErrEmptyAudio", err)
		}
	})

	t.Run("calls are tracked", func(t *testing.T) {
		mock := stt.NewMock()
		mock.Transcribe(ctx, []byte("12345"))
		calls := mock.Calls()
		if len(calls) != 1 || calls[0].Method != "Transcribe" || calls[0].AudioBytes != 5 {
			t.Errorf("calls = %+v", calls)
		}
	})
}

func TestOpenAITranscribe(t *testing.T) {
	t.Run("sends multipart form with auth", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/audio/transcriptions" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("Authorization = %q", got)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if got := r.FormValue("model"); got != "whisper-1" {
				t.Errorf("model = %q", got)
			}
			if got := r.FormValue("language"); got != "en" {
				t.Errorf("language = %q", got)
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				t.Fatalf("form file: %v", err)
			}
			file.Close()

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"text": "hello from whisper"}`))
		}))
		defer server.Close()

		provider, err := stt.NewOpenAI(
			stt.WithBaseURL(server.URL),
			stt.WithAPIKey("test-key"),
			stt.WithModel("whisper-1"),
			stt.WithLanguage("en"),
		)
		if err != nil {
			t.Fatalf("NewOpenAI() error = %v", err)
		}
		defer provider.Close()

		result, err := provider.Transcribe(context.Background(), []byte("pcm data"))
		if err != nil {
			t.Fatalf("Transcribe() error = %v", err)
		}
		if result.Text != "hello from whisper" {
			t.Errorf("Text = %q", result.Text)
		}
	})

	t.Run("retries on server errors", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"text": "eventually"}`))
		}))
		defer server.Close()

		provider, err := stt.NewOpenAI(
			stt.WithBaseURL(server.URL),
			stt.WithAPIKey("test-key"),
			stt.WithRetry(3, time.Millisecond),
		)
		if err != nil {
			t.Fatalf("NewOpenAI() error = %v", err)
		}

		result, err := provider.Transcribe(context.Background(), []byte("audio"))
		if err != nil {
			t.Fatalf("Transcribe() error = %v", err)
		}
		if result.Text != "eventually" {
			t.Errorf("Text = %q", result.Text)
		}
		if got := atomic.LoadInt32(&attempts); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("auth errors are not retried", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"message": "bad key"}}`))
		}))
		defer server.Close()

		provider, err := stt.NewOpenAI(
			stt.WithBaseURL(server.URL),
			stt.WithAPIKey("wrong"),
			stt.WithRetry(3, time.Millisecond),
		)
		if err != nil {
			t.Fatalf("NewOpenAI() error = %v", err)
		}

		_, err = provider.Transcribe(context.Background(), []byte("audio"))
		var apiErr *stt.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *APIError", err)
		}
		if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "bad key" {
			t.Errorf("apiErr = %+v", apiErr)
		}
		if got := atomic.LoadInt32(&attempts); got != 1 {
			t.Errorf("attempts = %d, want 1", got)
		}
	})

	t.Run("missing key rejected at construction", func(t *testing.T) {
		if _, err := stt.NewOpenAI(); !errors.Is(err, stt.ErrNoAPIKey) {
			t.Errorf("error = %v, want ErrNoAPIKey", err)
		}
	})
}

func TestOpenAIHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	provider, err := stt.NewOpenAI(stt.WithBaseURL(server.URL), stt.WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	if err := provider.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}
