package hub

import "time"

// Feed event kinds pushed to the dashboard.
const (
	KindExchange = "exchange"
	KindSession  = "session"
	KindMetrics  = "metrics"
)

// FeedEvent is one dashboard update.
type FeedEvent struct {
	Kind      string      `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Exchange is the payload for a completed conversation turn.
type Exchange struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
}

// NewExchange builds an exchange feed event.
func NewExchange(sessionID, transcript, reply string) FeedEvent {
	return FeedEvent{
		Kind:      KindExchange,
		Timestamp: time.Now().UTC(),
		Payload:   Exchange{SessionID: sessionID, Transcript: transcript, Reply: reply},
	}
}

// NewSessionUpdate builds a session lifecycle feed event. The payload is
// whatever snapshot the caller wants the dashboard to render.
func NewSessionUpdate(payload interface{}) FeedEvent {
	return FeedEvent{Kind: KindSession, Timestamp: time.Now().UTC(), Payload: payload}
}

// NewMetrics builds a metrics feed event.
func NewMetrics(payload interface{}) FeedEvent {
	return FeedEvent{Kind: KindMetrics, Timestamp: time.Now().UTC(), Payload: payload}
}
