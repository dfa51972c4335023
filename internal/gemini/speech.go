package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/amaselli/lectern/internal/document"
)

// PrebuiltVoices is the fixed set of narration voices the speech model
// accepts. Exactly one voice is requested per call.
var PrebuiltVoices = []string{"Kore", "Puck", "Charon", "Fenrir", "Aoede"}

const DefaultVoice = "Kore"

// defaultSampleRate applies when the response MIME type carries no rate.
const defaultSampleRate = 24000

const narrationInstruction = "Read the following text aloud in a calm, clear, professional tone: "

// ErrSynthesisUnavailable tells the caller to use the local fallback voice.
// The remote path is never retried.
var ErrSynthesisUnavailable = errors.New("remote speech synthesis unavailable")

// IsKnownVoice reports whether name is one of the prebuilt voices.
func IsKnownVoice(name string) bool {
	for _, v := range PrebuiltVoices {
		if v == name {
			return true
		}
	}
	return false
}

// Synthesize requests narration audio for text with the configured prebuilt
// voice and returns the decoded PCM samples plus their sample rate. The
// text is windowed for narration before it is embedded in the instruction
// template. One attempt only: any transport error, non-ok status, missing
// audio payload, or undecodable payload yields ErrSynthesisUnavailable.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, int, error) {
	narration := document.Window(text, document.PurposeNarrationSelection)

	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: narrationInstruction + narration}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: c.cfg.Voice},
				},
			},
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: marshal request: %v", ErrSynthesisUnavailable, err)
	}

	body, err := c.post(ctx, c.cfg.SpeechModel, payload)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrSynthesisUnavailable, err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, fmt.Errorf("%w: parse response: %v", ErrSynthesisUnavailable, err)
	}
	blob := firstCandidateAudio(parsed)
	if blob == nil || blob.Data == "" {
		return nil, 0, fmt.Errorf("%w: response carries no audio payload", ErrSynthesisUnavailable)
	}

	pcm, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		// Fail closed: a corrupt payload is indistinguishable from a
		// failed synthesis as far as the caller is concerned.
		return nil, 0, fmt.Errorf("%w: decode audio payload: %v", ErrSynthesisUnavailable, err)
	}
	return pcm, sampleRateFromMIME(blob.MIMEType), nil
}

func firstCandidateAudio(resp generateResponse) *inlineData {
	if len(resp.Candidates) == 0 {
		return nil
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return nil
	}
	return parts[0].InlineData
}

// sampleRateFromMIME extracts the rate from MIME types such as
// "audio/L16;codec=pcm;rate=24000".
func sampleRateFromMIME(mime string) int {
	for _, field := range strings.Split(mime, ";") {
		field = strings.TrimSpace(field)
		if v, ok := strings.CutPrefix(field, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return defaultSampleRate
}
