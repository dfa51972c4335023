package document

import (
	"errors"
	"strings"
)

// MaxPages caps how many extracted pages are kept per document. Extraction
// upstream is expected to stop at the same bound; the cap here makes the
// context safe against over-long inputs regardless.
const MaxPages = 20

var ErrPageOutOfRange = errors.New("page out of range")

// Context holds the extracted text of one loaded document: the ordered
// per-page texts, their concatenation, and the offset each page starts at.
// A Context is immutable once built.
type Context struct {
	pages   []string
	offsets []int
	text    string
}

// NewContext builds a document context from extracted per-page plaintext,
// keeping at most MaxPages pages in extraction order.
func NewContext(pages []string) *Context {
	if len(pages) > MaxPages {
		pages = pages[:MaxPages]
	}

	c := &Context{
		pages:   make([]string, len(pages)),
		offsets: make([]int, len(pages)),
	}
	var b strings.Builder
	for i, p := range pages {
		c.pages[i] = p
		c.offsets[i] = b.Len()
		b.WriteString(p)
	}
	c.text = b.String()
	return c
}

// Text returns the concatenated page text.
func (c *Context) Text() string { return c.text }

// PageCount returns the number of retained pages.
func (c *Context) PageCount() int { return len(c.pages) }

// PageText returns the extracted text of the given zero-based page.
func (c *Context) PageText(page int) (string, error) {
	if page < 0 || page >= len(c.pages) {
		return "", ErrPageOutOfRange
	}
	return c.pages[page], nil
}

// PageOffset returns the byte offset at which the given page begins in Text.
func (c *Context) PageOffset(page int) (int, error) {
	if page < 0 || page >= len(c.offsets) {
		return 0, ErrPageOutOfRange
	}
	return c.offsets[page], nil
}
