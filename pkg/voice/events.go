package voice

// Event types sent to the client over the websocket.
const (
	EventConnected          = "connected"
	EventRecordingStarted   = "recording_started"
	EventProcessingStarted  = "processing_started"
	EventTranscript         = "transcript"
	EventResponseText       = "response_text"
	EventAudioChunk         = "audio_chunk"
	EventAudioComplete      = "audio_complete"
	EventProcessingComplete = "processing_complete"
	EventResetComplete      = "reset_complete"
	EventError              = "error"
)

// Event is one JSON frame sent to the client.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Message   string `json:"message,omitempty"`
	// Data carries base64-encoded audio for audio_chunk events.
	Data string `json:"data,omitempty"`
}

// Connected builds the greeting frame sent right after the upgrade.
func Connected(sessionID string) Event {
	return Event{Type: EventConnected, SessionID: sessionID}
}

// Transcript builds a transcript frame.
func Transcript(text string) Event {
	return Event{Type: EventTranscript, Text: text}
}

// ResponseText builds a response_text frame.
func ResponseText(text string) Event {
	return Event{Type: EventResponseText, Text: text}
}

// AudioChunk builds an audio_chunk frame from already-encoded data.
func AudioChunk(b64 string) Event {
	return Event{Type: EventAudioChunk, Data: b64}
}

// ErrorEvent builds an error frame. Errors are informational; the
// connection stays open.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}
