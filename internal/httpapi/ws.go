package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amaselli/lectern/internal/protocol"
	"github.com/amaselli/lectern/internal/reader"
	"github.com/amaselli/lectern/internal/session"
)

// handleSessionWS runs the bidirectional session channel: inbound client
// requests (ask, summarize, narrate, playback_complete) handled
// sequentially, outbound events written by a single writer goroutine.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if _, err := s.sessions.Get(sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := outboundTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	send := func(msg any) {
		select {
		case outbound <- msg:
		default:
			// Writes stay single-threaded; drop when saturated.
		}
	}

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Detail:    err.Error(),
			})
			continue
		}
		if t, ok := inboundTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		_ = s.sessions.Touch(sessionID)
		s.dispatch(ctx, sessionID, parsed, send)
	}

	cancel()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

// dispatch serves one inbound message. Requests within a connection run
// strictly in order; the client is expected to hold new input while a
// call is outstanding.
func (s *Server) dispatch(ctx context.Context, sessionID string, msg any, send func(any)) {
	sendTurn := func(turn session.Turn) {
		send(protocol.TurnEvent{
			Type:      protocol.TypeTurnEvent,
			SessionID: sessionID,
			TurnID:    turn.ID,
			Role:      string(turn.Role),
			Text:      turn.Text,
		})
	}
	sendErr := func(code string, err error) {
		send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			Code:      code,
			Detail:    err.Error(),
		})
	}

	switch m := msg.(type) {
	case protocol.AskRequest:
		turn, err := s.reader.Ask(ctx, sessionID, m.Question)
		if err != nil {
			sendErr("ask_failed", err)
			return
		}
		sendTurn(turn)
	case protocol.SummarizeRequest:
		turn, err := s.reader.Summarize(ctx, sessionID)
		if err != nil {
			sendErr("summarize_failed", err)
			return
		}
		sendTurn(turn)
	case protocol.NarrateRequest:
		onDone := func() {
			send(protocol.PlaybackEnded{Type: protocol.TypePlaybackEnded, SessionID: sessionID})
		}
		result, err := s.narrateFor(ctx, sessionID, m, onDone)
		if err != nil {
			sendErr("narrate_failed", err)
			return
		}
		if result.Fallback {
			send(protocol.NarrationFallback{
				Type:      protocol.TypeNarrationFallback,
				SessionID: sessionID,
				Detail:    "remote synthesis unavailable, local voice used",
			})
			return
		}
		send(protocol.NarrationAudio{
			Type:        protocol.TypeNarrationAudio,
			SessionID:   sessionID,
			Format:      "wav",
			SampleRate:  result.SampleRate,
			AudioBase64: encodeAudioBase64(result.WAV),
		})
	case protocol.PlaybackComplete:
		if err := s.reader.PlaybackComplete(sessionID); err != nil {
			sendErr("playback_complete_failed", err)
		}
	}
}

func (s *Server) narrateFor(ctx context.Context, sessionID string, m protocol.NarrateRequest, onDone func()) (reader.Narration, error) {
	if m.Page != nil {
		return s.reader.NarratePage(ctx, sessionID, *m.Page, onDone)
	}
	return s.reader.NarrateText(ctx, sessionID, m.Text, onDone)
}

func inboundTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.AskRequest:
		return m.Type, true
	case protocol.SummarizeRequest:
		return m.Type, true
	case protocol.NarrateRequest:
		return m.Type, true
	case protocol.PlaybackComplete:
		return m.Type, true
	default:
		return "", false
	}
}

func outboundTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.TurnEvent:
		return m.Type, true
	case protocol.NarrationAudio:
		return m.Type, true
	case protocol.NarrationFallback:
		return m.Type, true
	case protocol.PlaybackEnded:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
