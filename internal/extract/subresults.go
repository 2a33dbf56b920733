package extract

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/joseph-ayodele/content-extractor/constants"
)

// SortSubResults orders parts by start offset and trims any span that would
// overlap the previous span of the same modality.
func SortSubResults(parts []SubResult) []SubResult {
	if len(parts) == 0 {
		return parts
	}
	out := append([]SubResult(nil), parts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartOffset < out[j].StartOffset
	})
	lastEnd := make(map[Modality]float64)
	for i := range out {
		p := &out[i]
		if p.EndOffset < p.StartOffset {
			p.EndOffset = p.StartOffset
		}
		if end, ok := lastEnd[p.Modality]; ok && p.StartOffset < end {
			p.StartOffset = end
			if p.EndOffset < end {
				p.EndOffset = end
			}
		}
		lastEnd[p.Modality] = p.EndOffset
	}
	// clamping can move a start forward past a later item of another modality
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartOffset < out[j].StartOffset
	})
	return out
}

// EstimateTokens approximates the token count of text as ceil(runes/4).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(n) / constants.CharsPerTokenEstimate))
}
