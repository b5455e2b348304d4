// Package voice is the conversation turn engine. It ties the session's
// buffered audio to the speech-to-text, dialogue and text-to-speech
// providers and streams the result back over the session transport.
package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/printworks/voicedesk/internal/log"
	"github.com/printworks/voicedesk/pkg/dialogue"
	"github.com/printworks/voicedesk/pkg/session"
	"github.com/printworks/voicedesk/pkg/stt"
	"github.com/printworks/voicedesk/pkg/tts"
)

// DefaultProcessingTimeout bounds one full turn, transcription through
// synthesis.
const DefaultProcessingTimeout = 60 * time.Second

// Client-facing error messages. These are spoken UI, not diagnostics.
const (
	msgBusy        = "still processing the previous request"
	msgNoAudio     = "no audio recorded"
	msgNoSpeech    = "no speech detected"
	msgNoResponse  = "no response generated"
	msgTimedOut    = "processing timed out"
	msgSTTFailed   = "transcription failed"
	msgChatFailed  = "assistant is unavailable right now"
	msgTTSFailed   = "speech synthesis failed"
)

// Pipeline runs conversation turns. One Pipeline serves all sessions; the
// per-session state lives in the Session and the dialogue Orchestrator.
type Pipeline struct {
	stt     stt.Provider
	tts     tts.Provider
	timeout time.Duration
	metrics *MetricsCollector
	logger  *slog.Logger

	// OnExchange, when set, is invoked after a completed turn with the
	// transcript and the assistant reply. Used for the dashboard feed.
	OnExchange func(sessionID, transcript, reply string)
}

// NewPipeline creates a Pipeline. timeout <= 0 uses
// DefaultProcessingTimeout.
func NewPipeline(sttProvider stt.Provider, ttsProvider tts.Provider, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultProcessingTimeout
	}
	return &Pipeline{
		stt:     sttProvider,
		tts:     ttsProvider,
		timeout: timeout,
		metrics: NewMetricsCollector(0),
		logger:  log.With("component", "pipeline"),
	}
}

// Metrics returns the pipeline's turn metrics collector.
func (p *Pipeline) Metrics() *MetricsCollector {
	return p.metrics
}

// RunTurn processes one conversation turn for the session: drain the audio
// buffer, transcribe, ask the model, stream synthesized speech back. At
// most one turn runs per session at a time; a second request while one is
// in flight is rejected with a busy error event. The turn is bounded by
// the processing timeout, and hitting it cancels in-flight provider calls
// but never kills the session.
func (p *Pipeline) RunTurn(sess *session.Session, convo *dialogue.Orchestrator) {
	if !sess.BeginProcessing() {
		p.logger.Debug("turn already in flight, rejecting", "session_id", sess.ID)
		p.send(sess, ErrorEvent(msgBusy))
		return
	}
	defer func() {
		sess.ClearAudio()
		sess.EndProcessing()
	}()

	logger := p.logger.With("session_id", sess.ID)
	m := TurnMetrics{SessionID: sess.ID, StartedAt: time.Now()}
	defer func() {
		m.TotalLatency = time.Since(m.StartedAt)
		p.metrics.Record(m)
	}()

	// An empty buffer is rejected outright; the pipeline never starts and
	// the client sees a lone error event.
	audio := sess.DrainAudio()
	if len(audio) == 0 {
		m.Failed = true
		p.send(sess, ErrorEvent(msgNoAudio))
		return
	}
	m.AudioBytesIn = len(audio)

	p.send(sess, Event{Type: EventProcessingStarted})

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	sttStart := time.Now()
	result, err := p.stt.Transcribe(ctx, audio)
	m.STTLatency = time.Since(sttStart)
	if err != nil {
		m.Failed = true
		m.TimedOut = timedOut(err)
		logger.Error("transcription failed", "error", err, "timed_out", m.TimedOut)
		p.send(sess, ErrorEvent(p.failureMessage(err, msgSTTFailed)))
		return
	}

	transcript := strings.TrimSpace(result.Text)
	m.TranscriptChars = len(transcript)
	if transcript == "" {
		m.Failed = true
		p.send(sess, ErrorEvent(msgNoSpeech))
		return
	}
	logger.Info("transcript ready", "chars", len(transcript), "latency_ms", m.STTLatency.Milliseconds())
	p.send(sess, Transcript(transcript))

	llmStart := time.Now()
	reply, err := convo.Respond(ctx, transcript)
	m.LLMLatency = time.Since(llmStart)
	if err != nil {
		m.Failed = true
		m.TimedOut = timedOut(err)
		logger.Error("dialogue failed", "error", err, "timed_out", m.TimedOut)
		p.send(sess, ErrorEvent(p.failureMessage(err, msgChatFailed)))
		return
	}
	if strings.TrimSpace(reply) == "" {
		m.Failed = true
		p.send(sess, ErrorEvent(msgNoResponse))
		return
	}
	p.send(sess, ResponseText(reply))

	p.streamSpeech(ctx, sess, reply, &m, logger)

	p.send(sess, Event{Type: EventProcessingComplete})

	if p.OnExchange != nil {
		p.OnExchange(sess.ID, transcript, reply)
	}
}

// streamSpeech synthesizes the reply and streams audio_chunk frames. A
// synthesis failure is reported to the client but does not fail the turn;
// the text response already went out.
func (p *Pipeline) streamSpeech(ctx context.Context, sess *session.Session, text string, m *TurnMetrics, logger *slog.Logger) {
	ttsStart := time.Now()
	stream, err := p.tts.Stream(ctx, text)
	if err != nil {
		err = turnError(ctx, err)
		m.TimedOut = m.TimedOut || timedOut(err)
		logger.Error("synthesis failed", "error", err)
		p.send(sess, ErrorEvent(p.failureMessage(err, msgTTSFailed)))
		return
	}
	defer stream.Close()

	for {
		chunk, err := stream.Read()
		if err != nil {
			err = turnError(ctx, err)
			m.TimedOut = m.TimedOut || timedOut(err)
			logger.Error("synthesis stream failed", "error", err, "chunks_sent", m.AudioChunksOut)
			p.send(sess, ErrorEvent(p.failureMessage(err, msgTTSFailed)))
			return
		}
		if chunk == nil {
			break
		}
		if m.AudioChunksOut == 0 {
			m.TTSFirstChunk = time.Since(ttsStart)
		}
		m.AudioChunksOut++
		if err := p.send(sess, AudioChunk(base64.StdEncoding.EncodeToString(chunk))); err != nil {
			logger.Warn("client write failed mid-stream", "error", err)
			return
		}
	}

	p.send(sess, Event{Type: EventAudioComplete})
}

// send writes an event, logging but otherwise ignoring transport errors; a
// client that vanished mid-turn is cleaned up by the read loop.
func (p *Pipeline) send(sess *session.Session, ev Event) error {
	err := sess.SendJSON(ev)
	if err != nil && !errors.Is(err, session.ErrClosed) {
		p.logger.Debug("event write failed", "session_id", sess.ID, "type", ev.Type, "error", err)
	}
	return err
}

func (p *Pipeline) failureMessage(err error, fallback string) string {
	if timedOut(err) {
		return msgTimedOut
	}
	return fallback
}

func timedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// turnError prefers the turn context's error over a provider error. A
// deadline that fires mid-stream tears the transport down, so the provider
// surfaces a generic network error that would otherwise mask the timeout.
func turnError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
