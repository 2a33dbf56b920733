// Package text implements the TextNative adapter: lossy UTF-8 decoding with
// character and line counts.
package text

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Adapter struct {
	maxBytes int64
	logger   *slog.Logger
}

var _ extract.Adapter = (*Adapter)(nil)

// New returns a TextNative adapter. maxBytes <= 0 uses the package default.
func New(maxBytes int64, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = constants.TextMaxBytes
	}
	return &Adapter{maxBytes: maxBytes, logger: logger}
}

func (a *Adapter) Strategy() constants.Strategy { return constants.TextNative }
func (a *Adapter) Name() string                 { return "text_native" }

// HealthCheck always succeeds; there are no external dependencies.
func (a *Adapter) HealthCheck(context.Context) bool { return true }

// Extract never fails.
func (a *Adapter) Extract(_ context.Context, in extract.Input) (*extract.Result, error) {
	maxBytes := int64(in.Options.Int("max_bytes", int(a.maxBytes)))
	if maxBytes <= 0 {
		maxBytes = a.maxBytes
	}
	res := Decode(in.Data, maxBytes)
	a.logger.Debug("text.extract.ok",
		"filename", in.Filename,
		"bytes", len(in.Data),
		"chars", res.Metadata["char_count"],
		"truncated", res.MetaBool("truncated"),
	)
	return res, nil
}

// Decode is the TextNative transformation, shared with adapters that
// degrade to plain text.
func Decode(data []byte, maxBytes int64) *extract.Result {
	original := len(data)
	slice := bytes.TrimPrefix(data, utf8BOM)

	truncated := maxBytes > 0 && int64(len(slice)) > maxBytes
	if truncated {
		cut := int(maxBytes)
		// back off to a rune boundary so a split sequence is not reported as corruption
		for back := 0; back < utf8.UTFMax && cut > 0 && !utf8.RuneStart(slice[cut]); back++ {
			cut--
		}
		slice = slice[:cut]
	}

	lossy := !utf8.Valid(slice)
	txt := string(slice)
	if lossy {
		txt = strings.ToValidUTF8(txt, string(utf8.RuneError))
	}

	res := extract.NewResult(txt)
	res.Set("char_count", utf8.RuneCountInString(txt))
	res.Set("line_count", CountLines(txt))
	if lossy {
		res.Set("encoding", "utf-8-lossy")
	} else {
		res.Set("encoding", "utf-8")
	}
	if truncated {
		res.Set("truncated", true)
		res.Set("original_size", original)
		res.Set("truncated_at", len(slice))
	}
	return res
}

// CountLines counts lines the way a line iterator does: a trailing newline
// does not start a new line.
func CountLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
