package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amaselli/lectern/internal/document"
)

func testDoc() *document.Context {
	return document.NewContext([]string{"page one. ", "page two."})
}

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create(testDoc(), 1.25)
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if s.PageCount != 2 {
		t.Fatalf("PageCount = %d, want 2", s.PageCount)
	}
	if s.PlaybackRate != 1.25 {
		t.Fatalf("PlaybackRate = %v, want 1.25", s.PlaybackRate)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusActive {
		t.Fatalf("Status = %q, want %q", got.Status, StatusActive)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
}

func TestAppendTurnIsAppendOnly(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create(testDoc(), 0)

	first, err := m.AppendTurn(s.ID, RoleUser, "what's on page two?")
	if err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if first.ID == "" {
		t.Fatalf("turn ID should not be empty")
	}
	if _, err := m.AppendTurn(s.ID, RoleAssistant, "page two."); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	turns, err := m.Transcript(s.ID)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Fatalf("turn order wrong: %+v", turns)
	}

	// Mutating the returned copy must not touch the stored log.
	turns[0].Text = "tampered"
	again, _ := m.Transcript(s.ID)
	if again[0].Text != "what's on page two?" {
		t.Fatalf("stored transcript was mutated through a copy")
	}
}

func TestAppendTurnUnknownSession(t *testing.T) {
	m := NewManager(time.Minute)
	if _, err := m.AppendTurn("nope", RoleUser, "hi"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AppendTurn() error = %v, want ErrNotFound", err)
	}
}

func TestSetPlayingAndEndClearsFlag(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create(testDoc(), 0)
	if err := m.SetPlaying(s.ID, true); err != nil {
		t.Fatalf("SetPlaying() error = %v", err)
	}
	got, _ := m.Get(s.ID)
	if !got.Playing {
		t.Fatalf("Playing = false, want true")
	}
	ended, _ := m.End(s.ID)
	if ended.Playing {
		t.Fatalf("End() should clear the playing flag")
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create(testDoc(), 0)

	var expiredID string
	m.SetExpireHook(func(sess *Session) { expiredID = sess.ID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	if expiredID != s.ID {
		t.Fatalf("expire hook saw %q, want %q", expiredID, s.ID)
	}
}
