package app

import (
	"log"

	"github.com/amaselli/lectern/internal/config"
	"github.com/amaselli/lectern/internal/gemini"
	"github.com/amaselli/lectern/internal/httpapi"
	"github.com/amaselli/lectern/internal/observability"
	"github.com/amaselli/lectern/internal/reader"
	"github.com/amaselli/lectern/internal/session"
	"github.com/amaselli/lectern/internal/voice"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Reader   *reader.Service
	Metrics  *observability.Metrics
}

// Build assembles the service from configuration.
func Build(cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	client := gemini.NewClient(gemini.Config{
		APIKey:      cfg.GeminiAPIKey,
		BaseURL:     cfg.GeminiBaseURL,
		TextModel:   cfg.GeminiTextModel,
		SpeechModel: cfg.GeminiSpeechModel,
		Voice:       cfg.GeminiVoice,
	})

	var local voice.LocalSpeaker
	if cfg.LocalSpeechCommand != "" {
		speaker, err := voice.NewExecSpeaker(cfg.LocalSpeechCommand, cfg.LocalSpeechArgs...)
		if err != nil {
			// A missing local voice degrades narration failures to
			// silence; the service itself still runs.
			log.Printf("local speech disabled: %v", err)
		} else {
			local = speaker
			log.Printf("local speech fallback: %s", cfg.LocalSpeechCommand)
		}
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	svc := reader.NewService(sessions, client, client, local, metrics)
	sessions.SetExpireHook(func(s *session.Session) {
		svc.ForgetSession(s.ID)
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
		metrics.SessionEvents.WithLabelValues("expired").Inc()
	})

	api := httpapi.New(cfg, sessions, svc, metrics)

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Reader:   svc,
		Metrics:  metrics,
	}, nil
}
