package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amaselli/lectern/internal/gemini"
)

// Config contains all runtime settings for the reader service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	GeminiAPIKey      string
	GeminiBaseURL     string
	GeminiTextModel   string
	GeminiSpeechModel string
	GeminiVoice       string

	// LocalSpeechCommand is the platform speech binary used when remote
	// synthesis fails; empty disables the fallback voice.
	LocalSpeechCommand string
	LocalSpeechArgs    []string

	DefaultPlaybackRate float64
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "lectern"),
		AllowAnyOrigin:   false,
		GeminiAPIKey:     trimmedEnv("GEMINI_API_KEY"),
		GeminiBaseURL:    envOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiTextModel:  envOrDefault("GEMINI_TEXT_MODEL", "gemini-2.0-flash"),
		// The TTS-capable preview model; text models reject audio modality.
		GeminiSpeechModel:        envOrDefault("GEMINI_SPEECH_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiVoice:              envOrDefault("GEMINI_TTS_VOICE", gemini.DefaultVoice),
		LocalSpeechCommand:       trimmedEnv("LOCAL_SPEECH_COMMAND"),
		DefaultPlaybackRate:      1.0,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
	}

	if args := trimmedEnv("LOCAL_SPEECH_ARGS"); args != "" {
		cfg.LocalSpeechArgs = strings.Fields(args)
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.DefaultPlaybackRate, err = floatFromEnv("APP_PLAYBACK_RATE", cfg.DefaultPlaybackRate)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.DefaultPlaybackRate < 0.5 || cfg.DefaultPlaybackRate > 2.0 {
		return Config{}, fmt.Errorf("APP_PLAYBACK_RATE must be between 0.5 and 2.0")
	}
	if !gemini.IsKnownVoice(cfg.GeminiVoice) {
		return Config{}, fmt.Errorf("GEMINI_TTS_VOICE %q is not one of %s", cfg.GeminiVoice, strings.Join(gemini.PrebuiltVoices, ", "))
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
