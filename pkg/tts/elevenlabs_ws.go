package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/printworks/voicedesk/internal/httpc"
)

const (
	elevenLabsWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	providerElevenWS    = "elevenlabs_ws"
)

// ElevenLabsWS implements Provider using the ElevenLabs stream-input
// WebSocket. Each Stream call opens a dedicated connection, sends the full
// text, and yields audio chunks as the service produces them. Chunks arrive
// noticeably earlier than over the HTTP stream endpoint for long responses.
type ElevenLabsWS struct {
	config  *Config
	logger  *slog.Logger
	baseURL string
}

// NewElevenLabsWS creates a new WebSocket-based ElevenLabs TTS provider.
func NewElevenLabsWS(opts ...Option) (*ElevenLabsWS, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsWSBaseURL
	}

	return &ElevenLabsWS{
		config:  cfg,
		logger:  cfg.Logger.With("component", "tts.elevenlabs_ws"),
		baseURL: baseURL,
	}, nil
}

// Stream opens a WebSocket, submits the text, and returns a stream of
// decoded audio chunks in arrival order.
func (e *ElevenLabsWS) Stream(ctx context.Context, text string) (AudioStream, error) {
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		e.baseURL, e.config.VoiceID, e.config.ModelID, e.config.OutputFormat)

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, WrapError(providerElevenWS,
				fmt.Errorf("dial failed (status %d): %w", resp.StatusCode, err))
		}
		return nil, WrapError(providerElevenWS, fmt.Errorf("dial failed: %w", err))
	}

	// Begin-of-stream message carries the voice settings.
	bos := map[string]interface{}{
		"text": " ",
		"voice_settings": map[string]interface{}{
			"stability":        e.config.VoiceSettings.Stability,
			"similarity_boost": e.config.VoiceSettings.SimilarityBoost,
		},
		"generation_config": map[string]interface{}{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	}
	msg := map[string]interface{}{
		"text":                   text + " ",
		"try_trigger_generation": true,
	}
	eos := map[string]interface{}{"text": ""}

	for _, m := range []map[string]interface{}{bos, msg, eos} {
		if err := conn.WriteJSON(m); err != nil {
			conn.Close()
			return nil, WrapError(providerElevenWS, fmt.Errorf("send text: %w", err))
		}
	}

	s := &wsStream{
		conn:   conn,
		format: e.outputFormat(),
		logger: e.logger,
		done:   make(chan struct{}),
	}

	// Abort the read loop when the caller's context is cancelled.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

// Synthesize streams the full text and accumulates the audio.
func (e *ElevenLabsWS) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	stream, err := e.Stream(ctx, text)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var audio []byte
	for {
		chunk, err := stream.Read()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		audio = append(audio, chunk...)
	}

	return &AudioResult{
		Audio:     audio,
		Format:    e.outputFormat(),
		CharCount: len(text),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health checks API connectivity and API key validity over HTTP.
func (e *ElevenLabsWS) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", elevenLabsBaseURL+"/user", nil)
	if err != nil {
		return WrapError(providerElevenWS, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := httpc.NewClient(e.config.Timeout).Do(req)
	if err != nil {
		return WrapError(providerElevenWS, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			Provider:   providerElevenWS,
		}
	}
	return nil
}

// Close releases resources. Connections are per-stream, so there is
// nothing to tear down here.
func (e *ElevenLabsWS) Close() error {
	return nil
}

// outputFormat returns the audio format configuration.
func (e *ElevenLabsWS) outputFormat() AudioFormat {
	return AudioFormat{
		Encoding:   e.config.OutputFormat,
		SampleRate: SampleRateFromEncoding(e.config.OutputFormat),
		Channels:   1,
		BitDepth:   16,
	}
}

// wsStream reads audio frames from a stream-input WebSocket.
type wsStream struct {
	conn   *websocket.Conn
	format AudioFormat
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Read returns the next decoded audio chunk, or nil at end of stream.
func (s *wsStream) Read() ([]byte, error) {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil, ErrStreamClosed
			}
			return nil, WrapError(providerElevenWS, err)
		}

		var frame struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
		}
		if err := json.Unmarshal(message, &frame); err != nil {
			s.logger.Warn("unparseable stream frame", "error", err)
			continue
		}

		if frame.Audio != "" {
			audio, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				s.logger.Warn("undecodable audio frame", "error", err)
				continue
			}
			return audio, nil
		}

		if frame.IsFinal {
			return nil, nil
		}
	}
}

// Close terminates the stream connection.
func (s *wsStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Format returns the audio format.
func (s *wsStream) Format() AudioFormat {
	return s.format
}

// Verify ElevenLabsWS implements Provider at compile time.
var _ Provider = (*ElevenLabsWS)(nil)
