package tts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/printworks/voicedesk/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.Format.SampleRate != 24000 {
			t.Errorf("expected 24000 sample rate, got %d", result.Format.SampleRate)
		}
	})

	t.Run("Stream drains to completion", func(t *testing.T) {
		stream, err := mock.Stream(ctx, "Test stream")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer stream.Close()

		total := 0
		for {
			chunk, err := stream.Read()
			if err != nil {
				t.Fatalf("read error: %v", err)
			}
			if chunk == nil {
				break
			}
			total += len(chunk)
		}
		if total == 0 {
			t.Error("expected audio from stream")
		}
	})

	t.Run("calls are tracked", func(t *testing.T) {
		if mock.CallCount("Synthesize") != 1 {
			t.Errorf("Synthesize calls = %d", mock.CallCount("Synthesize"))
		}
		if mock.CallCount("Stream") != 1 {
			t.Errorf("Stream calls = %d", mock.CallCount("Stream"))
		}
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("Reset did not clear calls")
		}
	})
}

func TestChainFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("first healthy provider wins", func(t *testing.T) {
		primary := tts.NewMock()
		backup := tts.NewMock()
		chain, err := tts.NewChain(primary, backup)
		if err != nil {
			t.Fatalf("NewChain() error = %v", err)
		}

		if _, err := chain.Synthesize(ctx, "hello"); err != nil {
			t.Fatalf("Synthesize() error = %v", err)
		}
		if primary.CallCount("Synthesize") != 1 {
			t.Error("primary not used")
		}
		if backup.CallCount("Synthesize") != 0 {
			t.Error("backup used despite healthy primary")
		}
	})

	t.Run("falls through on failure", func(t *testing.T) {
		primary := tts.WithError(errors.New("quota exceeded"))
		backup := tts.NewMock()
		chain, err := tts.NewChain(primary, backup)
		if err != nil {
			t.Fatalf("NewChain() error = %v", err)
		}

		stream, err := chain.Stream(ctx, "hello")
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		stream.Close()
		if backup.CallCount("Stream") != 1 {
			t.Error("backup not used after primary failure")
		}
	})

	t.Run("all providers failing aggregates errors", func(t *testing.T) {
		chain, err := tts.NewChain(
			tts.WithError(errors.New("down")),
			tts.WithError(errors.New("also down")),
		)
		if err != nil {
			t.Fatalf("NewChain() error = %v", err)
		}

		_, err = chain.Synthesize(ctx, "hello")
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("error = %v, want *ChainError", err)
		}
		if len(chainErr.Errors) != 2 {
			t.Errorf("aggregated %d errors, want 2", len(chainErr.Errors))
		}
	})

	t.Run("empty chain rejected", func(t *testing.T) {
		if _, err := tts.NewChain(); err == nil {
			t.Error("NewChain() accepted zero providers")
		}
	})
}

func TestResolveVoice(t *testing.T) {
	if got := tts.ResolveVoice("sarah"); got != "EXAVITQu4vr4xnSDxMaL" {
		t.Errorf("ResolveVoice(sarah) = %q", got)
	}
	// Raw IDs pass through untouched.
	if got := tts.ResolveVoice("customID123"); got != "customID123" {
		t.Errorf("ResolveVoice(customID123) = %q", got)
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := tts.NewElevenLabs(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("NewElevenLabs() error = %v, want ErrNoAPIKey", err)
	}
	if _, err := tts.NewElevenLabs(tts.WithAPIKey("key")); !errors.Is(err, tts.ErrNoVoiceID) {
		t.Errorf("NewElevenLabs(key) error = %v, want ErrNoVoiceID", err)
	}
	if _, err := tts.NewElevenLabsWS(tts.WithAPIKey("key")); !errors.Is(err, tts.ErrNoVoiceID) {
		t.Errorf("NewElevenLabsWS(key) error = %v, want ErrNoVoiceID", err)
	}
}
