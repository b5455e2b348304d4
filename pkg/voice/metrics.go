package voice

import (
	"sync"
	"time"
)

// TurnMetrics tracks latency for one conversation turn, measured from the
// moment the client stops recording.
type TurnMetrics struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`

	STTLatency      time.Duration `json:"stt_latency"`
	LLMLatency      time.Duration `json:"llm_latency"`
	TTSFirstChunk   time.Duration `json:"tts_first_chunk"`
	TotalLatency    time.Duration `json:"total_latency"`
	AudioBytesIn    int           `json:"audio_bytes_in"`
	AudioChunksOut  int           `json:"audio_chunks_out"`
	TranscriptChars int           `json:"transcript_chars"`
	TimedOut        bool          `json:"timed_out"`
	Failed          bool          `json:"failed"`
}

// MetricsCollector keeps recent turn metrics for the dashboard. It is
// goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	history []TurnMetrics
	limit   int

	turns    int
	failures int
	timeouts int
}

// NewMetricsCollector creates a collector keeping the most recent limit
// turns. limit <= 0 keeps 100.
func NewMetricsCollector(limit int) *MetricsCollector {
	if limit <= 0 {
		limit = 100
	}
	return &MetricsCollector{limit: limit}
}

// Record stores one finished turn.
func (m *MetricsCollector) Record(t TurnMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns++
	if t.Failed {
		m.failures++
	}
	if t.TimedOut {
		m.timeouts++
	}
	m.history = append(m.history, t)
	if len(m.history) > m.limit {
		m.history = m.history[1:]
	}
}

// Summary is an aggregate view over recorded turns.
type Summary struct {
	Turns      int           `json:"turns"`
	Failures   int           `json:"failures"`
	Timeouts   int           `json:"timeouts"`
	AvgSTT     time.Duration `json:"avg_stt"`
	AvgLLM     time.Duration `json:"avg_llm"`
	AvgTotal   time.Duration `json:"avg_total"`
	WindowSize int           `json:"window_size"`
}

// Summarize aggregates the retained history.
func (m *MetricsCollector) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{Turns: m.turns, Failures: m.failures, Timeouts: m.timeouts, WindowSize: len(m.history)}
	if len(m.history) == 0 {
		return s
	}
	var stt, llm, total time.Duration
	for _, t := range m.history {
		stt += t.STTLatency
		llm += t.LLMLatency
		total += t.TotalLatency
	}
	n := time.Duration(len(m.history))
	s.AvgSTT = stt / n
	s.AvgLLM = llm / n
	s.AvgTotal = total / n
	return s
}

// Recent returns a copy of the retained turn history, oldest first.
func (m *MetricsCollector) Recent() []TurnMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TurnMetrics, len(m.history))
	copy(out, m.history)
	return out
}
