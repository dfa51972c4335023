package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaselli/lectern/internal/reliability"
)

const (
	// maxAttempts bounds one GenerateText call; every non-ok response is
	// retried identically until the cap.
	maxAttempts    = 5
	initialBackoff = time.Second
)

// FallbackAnswer is rendered verbatim as the assistant turn when text
// generation fails terminally. It is user-facing content, not an error code.
const FallbackAnswer = "Sorry, I couldn't generate a response right now. Please try again in a moment."

// ErrExhausted reports that every generation attempt failed.
var ErrExhausted = errors.New("text generation failed after all attempts")

type Config struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	SpeechModel string
	Voice       string
}

// Client talks to the Gemini generateContent endpoints over plain HTTP.
// Calls share no mutable state; a Client is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client

	// sleep is swapped out in tests so backoff timing is observable
	// without waiting it out.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if strings.TrimSpace(cfg.TextModel) == "" {
		cfg.TextModel = "gemini-2.0-flash"
	}
	if strings.TrimSpace(cfg.SpeechModel) == "" {
		cfg.SpeechModel = "gemini-2.5-flash-preview-tts"
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = DefaultVoice
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		sleep: sleepCtx,
	}
}

// generateContent request/response wire shapes.

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateText sends the prompt, with an optional system instruction, and
// returns the generated text. Non-ok responses and transport errors are
// retried with doubling backoff starting at one second, up to five total
// attempts; no status is treated as more retryable than another. A
// status-ok response ends the call immediately even when the expected
// fields are absent: missing text is an empty valid answer, never an error.
func (c *Client) GenerateText(ctx context.Context, prompt, systemInstruction string) (string, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if systemInstruction != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemInstruction}}}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	backoff := reliability.NewBackoff(initialBackoff)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, backoff.Next()); err != nil {
				return "", err
			}
		}

		resp, err := c.post(ctx, c.cfg.TextModel, payload)
		if err != nil {
			lastErr = err
			continue
		}
		var parsed generateResponse
		if err := json.Unmarshal(resp, &parsed); err != nil {
			// Status was ok; treat unparseable bodies like missing fields.
			return "", nil
		}
		return firstCandidateText(parsed), nil
	}
	return "", fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

func firstCandidateText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}

// post issues one generateContent request and returns the body on a 2xx
// status. Exactly one outbound request per call.
func (c *Client) post(ctx context.Context, model string, payload []byte) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") +
		"/v1beta/models/" + url.PathEscape(model) + ":generateContent"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("gemini http status %d: %s", res.StatusCode, string(snippet))
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
