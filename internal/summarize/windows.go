package summarize

import (
	"unicode"

	"github.com/joseph-ayodele/content-extractor/constants"
)

// splitWindows cuts text into windows of about windowTokens tokens that
// overlap by overlapTokens. Cuts move back to the nearest whitespace in the
// last tenth of a window.
func splitWindows(text string, windowTokens, overlapTokens int) []string {
	runes := []rune(text)
	size := windowTokens * constants.CharsPerTokenEstimate
	overlap := overlapTokens * constants.CharsPerTokenEstimate
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	if overlap >= size {
		overlap = 0
	}

	var out []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		floor := end - size/10
		for cut := end; cut > floor; cut-- {
			if unicode.IsSpace(runes[cut-1]) {
				end = cut
				break
			}
		}
		out = append(out, string(runes[start:end]))
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// truncateTokens keeps the first maxTokens tokens of text.
func truncateTokens(text string, maxTokens int) string {
	runes := []rune(text)
	limit := maxTokens * constants.CharsPerTokenEstimate
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
