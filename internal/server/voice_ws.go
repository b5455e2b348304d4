package server

import (
	"errors"

	"github.com/gofiber/websocket/v2"

	"github.com/printworks/voicedesk/pkg/session"
	"github.com/printworks/voicedesk/pkg/voice"
)

// handleVoiceWS owns one client connection for its whole life: the read
// loop classifies inbound frames, turns run on their own goroutine, and
// every exit path funnels through the deferred cleanup.
func (s *Server) handleVoiceWS(c *websocket.Conn) {
	sess := session.New(c, s.cfg.MaxAudioChunks)
	convo := s.cfg.NewOrchestrator()

	s.sessions.Add(sess)
	logger := s.logger.With("session_id", sess.ID)
	logger.Info("voice client connected")
	s.publishSessions()

	defer func() {
		sess.Close()
		s.sessions.Remove(sess.ID)
		logger.Info("voice client disconnected")
		s.publishSessions()
	}()

	if err := sess.SendJSON(voice.Connected(sess.ID)); err != nil {
		return
	}

	s.armIdle(sess)

	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		s.armIdle(sess)

		if messageType == websocket.BinaryMessage {
			sess.AppendAudio(data)
			continue
		}
		if messageType != websocket.TextMessage {
			continue
		}

		control, err := voice.ParseControl(data)
		if errors.Is(err, voice.ErrNotControl) {
			// Some clients send audio in text frames.
			sess.AppendAudio(data)
			continue
		}
		var unknown *voice.UnknownControlError
		if errors.As(err, &unknown) {
			logger.Warn("unknown control type", "type", unknown.Type)
			sess.SendJSON(voice.ErrorEvent("unknown message type: " + unknown.Type))
			continue
		}
		var malformed *voice.MalformedControlError
		if errors.As(err, &malformed) {
			logger.Warn("malformed control frame", "reason", malformed.Reason)
			sess.SendJSON(voice.ErrorEvent("invalid control message: " + malformed.Reason))
			continue
		}

		switch control {
		case voice.ControlStartRecording:
			sess.ClearAudio()
			sess.SetRecording(true)
			sess.SendJSON(voice.Event{Type: voice.EventRecordingStarted})

		case voice.ControlStopRecording:
			sess.SetRecording(false)
			go func() {
				s.pipeline.RunTurn(sess, convo)
				s.armIdle(sess)
				s.publishSessions()
			}()

		case voice.ControlReset:
			convo.Reset()
			sess.ClearAudio()
			sess.SetRecording(false)
			sess.SendJSON(voice.Event{Type: voice.EventResetComplete})
		}
	}
}

// armIdle re-arms the session's idle timer. The expiry path tells the
// client why it is going away, then closes the transport; the read loop
// unblocks on the closed connection and runs the normal cleanup.
func (s *Server) armIdle(sess *session.Session) {
	sess.ArmIdle(s.cfg.IdleTimeout, func() {
		s.logger.Info("session idle timeout", "session_id", sess.ID)
		sess.SendJSON(voice.ErrorEvent("session closed after inactivity"))
		sess.Close()
	})
}
