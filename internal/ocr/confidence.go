package ocr

import (
	"strconv"
	"strings"
	"unicode"
)

// heuristicConfidence scores decoded text by how much of it looks like words.
func heuristicConfidence(txt string) float64 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	var visible, alnum int
	for _, r := range txt {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	score := 0.2 // base
	if visible > 0 && float64(alnum)/float64(visible) >= 0.8 {
		score += 0.3
	}
	words := strings.Fields(txt)
	if len(words) > 0 {
		avg := float64(visible) / float64(len(words))
		if avg >= 2 && avg <= 12 {
			score += 0.2
		}
	}
	if len(txt) > 120 {
		score += 0.2
	} // enough content
	if strings.Contains(strings.TrimSpace(txt), "\n") {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// parseTSVConfidence returns the mean word confidence of tesseract TSV
// output in 0..1, and false when no word carried a confidence.
func parseTSVConfidence(out string) (float64, bool) {
	var sum, n float64
	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := strings.TrimSpace(cols[10])
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / n / 100.0, true
}

// blendConfidence weights the engine's own score higher when present.
func blendConfidence(ocrConf float64, haveOCR bool, heur float64) float64 {
	conf := heur
	if haveOCR {
		conf = 0.7*ocrConf + 0.3*heur
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
