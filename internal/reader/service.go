// Package reader orchestrates the document-grounded flows: question
// answering, summarization, and narration, all against one session's
// document context and conversation log.
package reader

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amaselli/lectern/internal/audio"
	"github.com/amaselli/lectern/internal/document"
	"github.com/amaselli/lectern/internal/gemini"
	"github.com/amaselli/lectern/internal/observability"
	"github.com/amaselli/lectern/internal/session"
	"github.com/amaselli/lectern/internal/voice"
)

// TextGenerator produces an answer for a prompt plus optional system
// instruction, or fails terminally after its own retry discipline.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, systemInstruction string) (string, error)
}

const answerPreamble = "You are a helpful reading assistant. Answer the user's question using only the document excerpt below. If the excerpt does not contain the answer, say that the document does not cover it."

const summaryRequestText = "Please summarize this document."

const summaryPreamble = "Provide a clear, concise summary of the following document excerpt:\n\n"

// Narration is the outcome of one narration request: either an encoded WAV
// container to hand to the playback subsystem, or a notice that the local
// fallback voice was used instead.
type Narration struct {
	WAV        []byte
	SampleRate int
	Fallback   bool
}

type Service struct {
	sessions  *session.Manager
	generator TextGenerator
	synth     voice.Synthesizer
	local     voice.LocalSpeaker
	metrics   *observability.Metrics

	mu     sync.Mutex
	onDone map[string]func()
}

func NewService(
	sessions *session.Manager,
	generator TextGenerator,
	synth voice.Synthesizer,
	local voice.LocalSpeaker,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		sessions:  sessions,
		generator: generator,
		synth:     synth,
		local:     local,
		metrics:   metrics,
		onDone:    make(map[string]func()),
	}
}

// Ask records the user's question, asks the generator with the windowed
// document as system context, and records the assistant's answer. Terminal
// generation failure is rendered as the fixed fallback answer; Ask itself
// fails only when the session is unknown.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (session.Turn, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return session.Turn{}, err
	}
	if _, err := s.sessions.AppendTurn(sessionID, session.RoleUser, question); err != nil {
		return session.Turn{}, err
	}

	system := answerPreamble + "\n\nDocument excerpt:\n" +
		document.Window(sess.Document.Text(), document.PurposeAnswering)

	answer := s.generate(ctx, question, system)
	return s.sessions.AppendTurn(sessionID, session.RoleAssistant, answer)
}

// Summarize appends a synthesized user-style request turn and the resulting
// assistant summary. Prior turns are untouched.
func (s *Service) Summarize(ctx context.Context, sessionID string) (session.Turn, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return session.Turn{}, err
	}
	if _, err := s.sessions.AppendTurn(sessionID, session.RoleUser, summaryRequestText); err != nil {
		return session.Turn{}, err
	}

	prompt := summaryPreamble +
		document.Window(sess.Document.Text(), document.PurposeSummarizing)

	summary := s.generate(ctx, prompt, "")
	return s.sessions.AppendTurn(sessionID, session.RoleAssistant, summary)
}

func (s *Service) generate(ctx context.Context, prompt, system string) string {
	start := time.Now()
	text, err := s.generator.GenerateText(ctx, prompt, system)
	if s.metrics != nil {
		s.metrics.ObserveInferenceLatency(time.Since(start))
	}
	if err != nil {
		log.Printf("text generation failed: %v", err)
		if s.metrics != nil {
			s.metrics.InferenceResults.WithLabelValues("failed").Inc()
		}
		return gemini.FallbackAnswer
	}
	if s.metrics != nil {
		s.metrics.InferenceResults.WithLabelValues("ok").Inc()
	}
	return text
}

// NarratePage reads one page aloud. onDone, when non-nil, fires once when
// the client reports playback complete; a newer narration supersedes it.
func (s *Service) NarratePage(ctx context.Context, sessionID string, page int, onDone func()) (Narration, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return Narration{}, err
	}
	text, err := sess.Document.PageText(page)
	if err != nil {
		return Narration{}, fmt.Errorf("narrate page %d: %w", page, err)
	}
	windowed := document.Window(text, document.PurposeNarrationPage)
	return s.narrate(ctx, sess, windowed, onDone)
}

// NarrateText reads an arbitrary passage aloud.
func (s *Service) NarrateText(ctx context.Context, sessionID, text string, onDone func()) (Narration, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return Narration{}, err
	}
	windowed := document.Window(text, document.PurposeNarrationSelection)
	return s.narrate(ctx, sess, windowed, onDone)
}

func (s *Service) narrate(ctx context.Context, sess *session.Session, text string, onDone func()) (Narration, error) {
	pcm, rate, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		log.Printf("remote synthesis failed, using local voice: %v", err)
		if s.metrics != nil {
			s.metrics.NarrationResults.WithLabelValues("fallback").Inc()
			s.metrics.NarrationFallbacks.Inc()
		}
		if s.local != nil {
			// Fire-and-forget, detached from the request lifetime; the
			// local facility's own failure is not surfaced further.
			if serr := s.local.Speak(context.WithoutCancel(ctx), text, sess.PlaybackRate); serr != nil {
				log.Printf("local speech failed: %v", serr)
			}
		}
		return Narration{Fallback: true}, nil
	}

	if s.metrics != nil {
		s.metrics.NarrationResults.WithLabelValues("remote").Inc()
	}
	if err := s.sessions.SetPlaying(sess.ID, true); err != nil {
		return Narration{}, err
	}
	s.subscribe(sess.ID, onDone)
	return Narration{
		WAV:        audio.EncodeWAV(pcm, rate),
		SampleRate: rate,
	}, nil
}

// PlaybackComplete is the single inbound playback signal: it clears the
// playing flag and fires the pending completion subscription, if any.
func (s *Service) PlaybackComplete(sessionID string) error {
	if err := s.sessions.SetPlaying(sessionID, false); err != nil {
		return err
	}
	s.mu.Lock()
	done := s.onDone[sessionID]
	delete(s.onDone, sessionID)
	s.mu.Unlock()
	if done != nil {
		done()
	}
	return nil
}

// ForgetSession drops any pending playback subscription. Wired to session
// end and expiry.
func (s *Service) ForgetSession(sessionID string) {
	s.mu.Lock()
	delete(s.onDone, sessionID)
	s.mu.Unlock()
}

// subscribe registers at most one completion callback per session; a new
// narration replaces whatever was pending.
func (s *Service) subscribe(sessionID string, onDone func()) {
	s.mu.Lock()
	if onDone == nil {
		delete(s.onDone, sessionID)
	} else {
		s.onDone[sessionID] = onDone
	}
	s.mu.Unlock()
}
