package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/amaselli/lectern/internal/config"
	"github.com/amaselli/lectern/internal/document"
	"github.com/amaselli/lectern/internal/observability"
	"github.com/amaselli/lectern/internal/reader"
	"github.com/amaselli/lectern/internal/session"
)

// Reader is the orchestration surface the API exposes.
type Reader interface {
	Ask(ctx context.Context, sessionID, question string) (session.Turn, error)
	Summarize(ctx context.Context, sessionID string) (session.Turn, error)
	NarratePage(ctx context.Context, sessionID string, page int, onDone func()) (reader.Narration, error)
	NarrateText(ctx context.Context, sessionID, text string, onDone func()) (reader.Narration, error)
	PlaybackComplete(sessionID string) error
	ForgetSession(sessionID string)
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	reader   Reader
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, rdr Reader, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		reader:   rdr,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections unless explicitly
				// opened up; non-browser clients omit Origin and pass.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/reader/session", s.handleCreateSession)
	r.Get("/v1/reader/session/ws", s.handleSessionWS)
	r.Get("/v1/reader/session/{id}", s.handleGetSession)
	r.Get("/v1/reader/session/{id}/transcript", s.handleTranscript)
	r.Post("/v1/reader/session/{id}/ask", s.handleAsk)
	r.Post("/v1/reader/session/{id}/summary", s.handleSummarize)
	r.Post("/v1/reader/session/{id}/narrate", s.handleNarrate)
	r.Post("/v1/reader/session/{id}/playback/complete", s.handlePlaybackComplete)
	r.Post("/v1/reader/session/{id}/end", s.handleEndSession)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type createSessionRequest struct {
	Pages        []string `json:"pages"`
	PlaybackRate float64  `json:"playback_rate"`
}

type sessionResponse struct {
	SessionID       string         `json:"session_id"`
	Status          session.Status `json:"status"`
	PageCount       int            `json:"page_count"`
	PlaybackRate    float64        `json:"playback_rate"`
	Playing         bool           `json:"playing"`
	StartedAt       time.Time      `json:"started_at"`
	InactivityTTLMS int64          `json:"inactivity_ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Pages) == 0 {
		respondError(w, http.StatusBadRequest, "empty_document", "at least one extracted page is required")
		return
	}
	if req.PlaybackRate == 0 {
		req.PlaybackRate = s.cfg.DefaultPlaybackRate
	}
	if req.PlaybackRate < 0.5 || req.PlaybackRate > 2.0 {
		respondError(w, http.StatusBadRequest, "invalid_playback_rate", "playback_rate must be between 0.5 and 2.0")
		return
	}

	sess := s.sessions.Create(document.NewContext(req.Pages), req.PlaybackRate)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, toSessionResponse(sess, s.cfg.SessionInactivityTimeout))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess, s.cfg.SessionInactivityTimeout))
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, err := s.sessions.Transcript(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session_id": id, "turns": turns})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "empty_question", "question is required")
		return
	}

	turn, err := s.reader.Ask(r.Context(), sess.ID, req.Question)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, turn)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	turn, err := s.reader.Summarize(r.Context(), sess.ID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, turn)
}

type narrateRequest struct {
	Page *int   `json:"page,omitempty"`
	Text string `json:"text,omitempty"`
}

func (s *Server) handleNarrate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req narrateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Page == nil && strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "a page number or a text passage is required")
		return
	}

	var (
		n   reader.Narration
		err error
	)
	if req.Page != nil {
		n, err = s.reader.NarratePage(r.Context(), sess.ID, *req.Page, nil)
	} else {
		n, err = s.reader.NarrateText(r.Context(), sess.ID, req.Text, nil)
	}
	if err != nil {
		if errors.Is(err, document.ErrPageOutOfRange) {
			respondError(w, http.StatusBadRequest, "page_out_of_range", err.Error())
			return
		}
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	if n.Fallback {
		respondJSON(w, http.StatusOK, map[string]any{"fallback": true})
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(n.WAV)
}

func (s *Server) handlePlaybackComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.reader.PlaybackComplete(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.reader.ForgetSession(id)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, toSessionResponse(sess, s.cfg.SessionInactivityTimeout))
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return nil, false
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return nil, false
	}
	return sess, true
}

func toSessionResponse(sess *session.Session, ttl time.Duration) sessionResponse {
	return sessionResponse{
		SessionID:       sess.ID,
		Status:          sess.Status,
		PageCount:       sess.PageCount,
		PlaybackRate:    sess.PlaybackRate,
		Playing:         sess.Playing,
		StartedAt:       sess.StartedAt,
		InactivityTTLMS: ttl.Milliseconds(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func encodeAudioBase64(wav []byte) string {
	return base64.StdEncoding.EncodeToString(wav)
}
