package document

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewContextConcatenatesInOrder(t *testing.T) {
	c := NewContext([]string{"one ", "two ", "three"})
	if c.Text() != "one two three" {
		t.Fatalf("Text() = %q", c.Text())
	}
	if c.PageCount() != 3 {
		t.Fatalf("PageCount() = %d, want 3", c.PageCount())
	}

	p, err := c.PageText(1)
	if err != nil {
		t.Fatalf("PageText(1) error = %v", err)
	}
	if p != "two " {
		t.Fatalf("PageText(1) = %q", p)
	}

	off, err := c.PageOffset(2)
	if err != nil {
		t.Fatalf("PageOffset(2) error = %v", err)
	}
	if off != len("one two ") {
		t.Fatalf("PageOffset(2) = %d", off)
	}
}

func TestNewContextCapsPages(t *testing.T) {
	pages := make([]string, MaxPages+7)
	for i := range pages {
		pages[i] = fmt.Sprintf("p%d.", i)
	}
	c := NewContext(pages)
	if c.PageCount() != MaxPages {
		t.Fatalf("PageCount() = %d, want %d", c.PageCount(), MaxPages)
	}
	if _, err := c.PageText(MaxPages); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("PageText(%d) error = %v, want ErrPageOutOfRange", MaxPages, err)
	}
	// The retained text must be a prefix of the full extraction order.
	last, _ := c.PageText(MaxPages - 1)
	if last != fmt.Sprintf("p%d.", MaxPages-1) {
		t.Fatalf("last retained page = %q", last)
	}
}

func TestPageLookupOutOfRange(t *testing.T) {
	c := NewContext([]string{"only"})
	if _, err := c.PageText(-1); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("PageText(-1) error = %v", err)
	}
	if _, err := c.PageOffset(1); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("PageOffset(1) error = %v", err)
	}
}
