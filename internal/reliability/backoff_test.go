package reliability

import (
	"testing"
	"time"
)

func TestBackoffDoubles(t *testing.T) {
	b := NewBackoff(time.Second)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("Next() #%d = %v, want %v", i, got, w)
		}
	}
}

func TestBackoffDefaultsInitial(t *testing.T) {
	b := NewBackoff(0)
	if got := b.Next(); got != time.Second {
		t.Fatalf("Next() = %v, want 1s default", got)
	}
}
