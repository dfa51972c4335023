package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeAsk               MessageType = "ask"
	TypeSummarize         MessageType = "summarize"
	TypeNarrate           MessageType = "narrate"
	TypePlaybackComplete  MessageType = "playback_complete"
	TypeTurnEvent         MessageType = "turn"
	TypeNarrationAudio    MessageType = "narration_audio"
	TypeNarrationFallback MessageType = "narration_fallback"
	TypePlaybackEnded     MessageType = "playback_ended"
	TypeErrorEvent        MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Client → server messages.

type AskRequest struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Question  string      `json:"question"`
}

type SummarizeRequest struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// NarrateRequest reads either one page (Page set, Text empty) or an
// arbitrary passage (Text set).
type NarrateRequest struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Page      *int        `json:"page,omitempty"`
	Text      string      `json:"text,omitempty"`
}

type PlaybackComplete struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// Server → client messages.

type TurnEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Role      string      `json:"role"`
	Text      string      `json:"text"`
}

type NarrationAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Format      string      `json:"format"`
	SampleRate  int         `json:"sample_rate"`
	AudioBase64 string      `json:"audio_base64"`
}

type NarrationFallback struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Detail    string      `json:"detail,omitempty"`
}

type PlaybackEnded struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage validates and decodes an inbound client payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeAsk:
		var msg AskRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || strings.TrimSpace(msg.Question) == "" {
			return nil, errors.New("invalid ask")
		}
		return msg, nil
	case TypeSummarize:
		var msg SummarizeRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid summarize")
		}
		return msg, nil
	case TypeNarrate:
		var msg NarrateRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid narrate")
		}
		if msg.Page == nil && strings.TrimSpace(msg.Text) == "" {
			return nil, errors.New("narrate needs a page or a text passage")
		}
		return msg, nil
	case TypePlaybackComplete:
		var msg PlaybackComplete
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid playback_complete")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
