package document

// Purpose selects the character budget applied before document text is
// embedded in a remote request.
type Purpose string

const (
	// PurposeAnswering bounds context for question answering.
	PurposeAnswering Purpose = "answering"
	// PurposeSummarizing bounds context for whole-document summaries.
	PurposeSummarizing Purpose = "summarizing"
	// PurposeNarrationPage bounds a single page read aloud.
	PurposeNarrationPage Purpose = "narration_page"
	// PurposeNarrationSelection bounds an arbitrary passage read aloud.
	PurposeNarrationSelection Purpose = "narration_selection"
)

const (
	answeringCap          = 5000
	summarizingCap        = 8000
	narrationPageCap      = 500
	narrationSelectionCap = 1000
)

// Cap returns the character budget for a purpose.
func Cap(purpose Purpose) int {
	switch purpose {
	case PurposeSummarizing:
		return summarizingCap
	case PurposeNarrationPage:
		return narrationPageCap
	case PurposeNarrationSelection:
		return narrationSelectionCap
	default:
		return answeringCap
	}
}

// Window truncates text to the character budget for the given purpose.
// Truncation is a hard cut at the budget, counted in runes so multi-byte
// text is never split mid-character. Text at or under the budget is
// returned unchanged.
func Window(text string, purpose Purpose) string {
	limit := Cap(purpose)
	if len(text) <= limit {
		// Byte length bounds rune length, so short inputs skip the scan.
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}
