// Package stt provides a unified interface for speech-to-text providers.
//
// A provider accepts a complete audio recording and returns its transcript.
// The OpenAI-compatible implementation works with any service exposing the
// /audio/transcriptions endpoint (OpenAI Whisper, local whisper servers).
//
// Example usage:
//
//	provider, _ := stt.NewOpenAI(
//	    stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Transcribe(ctx, audioBytes)
//	fmt.Println(result.Text)
package stt

import (
	"context"
	"log/slog"
	"time"
)

// Provider defines the speech-to-text provider interface.
type Provider interface {
	// Transcribe converts a complete audio recording to text.
	Transcribe(ctx context.Context, audio []byte) (*Result, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Result represents a completed transcription.
type Result struct {
	// Text is the transcribed speech.
	Text string

	// Language is the detected or configured language code.
	Language string

	// LatencyMs is the service round-trip time in milliseconds.
	LatencyMs int64
}

// Config holds provider configuration.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage sets the expected input language code.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults for OpenAI Whisper.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "whisper-1",
		Language:   "en",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 100 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
