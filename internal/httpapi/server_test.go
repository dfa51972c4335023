package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amaselli/lectern/internal/audio"
	"github.com/amaselli/lectern/internal/config"
	"github.com/amaselli/lectern/internal/observability"
	"github.com/amaselli/lectern/internal/reader"
	"github.com/amaselli/lectern/internal/session"
)

// fakeReader satisfies Reader without any remote calls.
type fakeReader struct {
	sessions  *session.Manager
	narration reader.Narration
	completed []string
}

func (f *fakeReader) Ask(_ context.Context, sessionID, question string) (session.Turn, error) {
	if _, err := f.sessions.AppendTurn(sessionID, session.RoleUser, question); err != nil {
		return session.Turn{}, err
	}
	return f.sessions.AppendTurn(sessionID, session.RoleAssistant, "answer to: "+question)
}

func (f *fakeReader) Summarize(_ context.Context, sessionID string) (session.Turn, error) {
	return f.sessions.AppendTurn(sessionID, session.RoleAssistant, "a summary")
}

func (f *fakeReader) NarratePage(_ context.Context, sessionID string, page int, _ func()) (reader.Narration, error) {
	if _, err := f.sessions.Get(sessionID); err != nil {
		return reader.Narration{}, err
	}
	return f.narration, nil
}

func (f *fakeReader) NarrateText(_ context.Context, sessionID, _ string, _ func()) (reader.Narration, error) {
	if _, err := f.sessions.Get(sessionID); err != nil {
		return reader.Narration{}, err
	}
	return f.narration, nil
}

func (f *fakeReader) PlaybackComplete(sessionID string) error {
	f.completed = append(f.completed, sessionID)
	return f.sessions.SetPlaying(sessionID, false)
}

func (f *fakeReader) ForgetSession(string) {}

func newTestServer(t *testing.T, narration reader.Narration) (*httptest.Server, *fakeReader) {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		DefaultPlaybackRate:      1.0,
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", time.Now().UnixNano()))
	rdr := &fakeReader{sessions: sessions, narration: narration}
	ts := httptest.NewServer(New(cfg, sessions, rdr, metrics).Router())
	t.Cleanup(ts.Close)
	return ts, rdr
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"pages": []string{"page one. ", "page two."}})
	res, err := http.Post(ts.URL+"/v1/reader/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created map[string]any
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	id, _ := created["session_id"].(string)
	if id == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}
	return id
}

func TestCreateAskAndEndSession(t *testing.T) {
	ts, _ := newTestServer(t, reader.Narration{})
	id := createSession(t, ts)

	askBody, _ := json.Marshal(map[string]string{"question": "what is this?"})
	res, err := http.Post(ts.URL+"/v1/reader/session/"+id+"/ask", "application/json", bytes.NewReader(askBody))
	if err != nil {
		t.Fatalf("ask request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ask status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var turn session.Turn
	if err := json.NewDecoder(res.Body).Decode(&turn); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if turn.Role != session.RoleAssistant || turn.Text != "answer to: what is this?" {
		t.Fatalf("unexpected turn: %+v", turn)
	}

	trRes, err := http.Get(ts.URL + "/v1/reader/session/" + id + "/transcript")
	if err != nil {
		t.Fatalf("transcript request error = %v", err)
	}
	defer trRes.Body.Close()
	var tr struct {
		Turns []session.Turn `json:"turns"`
	}
	if err := json.NewDecoder(trRes.Body).Decode(&tr); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(tr.Turns) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(tr.Turns))
	}

	endRes, err := http.Post(ts.URL+"/v1/reader/session/"+id+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}
}

func TestCreateSessionRejectsEmptyDocument(t *testing.T) {
	ts, _ := newTestServer(t, reader.Narration{})
	body, _ := json.Marshal(map[string]any{"pages": []string{}})
	res, err := http.Post(ts.URL+"/v1/reader/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestAskUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t, reader.Narration{})
	body, _ := json.Marshal(map[string]string{"question": "q"})
	res, err := http.Post(ts.URL+"/v1/reader/session/nope/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestNarrateReturnsWAVBytes(t *testing.T) {
	wav := audio.EncodeWAV([]byte{1, 2, 3, 4}, 24000)
	ts, _ := newTestServer(t, reader.Narration{WAV: wav, SampleRate: 24000})
	id := createSession(t, ts)

	body, _ := json.Marshal(map[string]any{"page": 0})
	res, err := http.Post(ts.URL+"/v1/reader/session/"+id+"/narrate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("narrate request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("narrate status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("content type = %q, want audio/wav", ct)
	}
	got, _ := io.ReadAll(res.Body)
	f, err := audio.ProbeWAV(got)
	if err != nil {
		t.Fatalf("response is not a WAV container: %v", err)
	}
	if f.SampleRate != 24000 {
		t.Fatalf("sample rate = %d, want 24000", f.SampleRate)
	}
}

func TestNarrateFallbackIsJSON(t *testing.T) {
	ts, _ := newTestServer(t, reader.Narration{Fallback: true})
	id := createSession(t, ts)

	body, _ := json.Marshal(map[string]any{"text": "read me"})
	res, err := http.Post(ts.URL+"/v1/reader/session/"+id+"/narrate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("narrate request error = %v", err)
	}
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode fallback response: %v", err)
	}
	if out["fallback"] != true {
		t.Fatalf("fallback response = %+v", out)
	}
}

func TestNarrateRequiresPageOrText(t *testing.T) {
	ts, _ := newTestServer(t, reader.Narration{})
	id := createSession(t, ts)

	res, err := http.Post(ts.URL+"/v1/reader/session/"+id+"/narrate", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestPlaybackCompleteRoute(t *testing.T) {
	ts, rdr := newTestServer(t, reader.Narration{})
	id := createSession(t, ts)

	res, err := http.Post(ts.URL+"/v1/reader/session/"+id+"/playback/complete", "application/json", nil)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(rdr.completed) != 1 || rdr.completed[0] != id {
		t.Fatalf("playback complete not forwarded: %v", rdr.completed)
	}
}

func TestHealthRoutes(t *testing.T) {
	ts, _ := newTestServer(t, reader.Narration{})
	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, res.StatusCode)
		}
	}
}
