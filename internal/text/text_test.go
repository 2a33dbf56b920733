package text_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/text"
)

func TestExtractPlain(t *testing.T) {
	a := text.New(0, nil)
	res, err := a.Extract(context.Background(), extract.Input{
		Data:     []byte("Hello, world!\nLine two."),
		Filename: "test.txt",
		MIME:     "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!\nLine two.", res.ExtractedText)
	assert.Equal(t, 23, res.Metadata["char_count"])
	assert.Equal(t, 2, res.Metadata["line_count"])
	assert.Equal(t, "utf-8", res.Metadata["encoding"])
	assert.NotContains(t, res.Metadata, "truncated")
}

func TestExtractEmpty(t *testing.T) {
	res, err := text.New(0, nil).Extract(context.Background(), extract.Input{})
	require.NoError(t, err)
	assert.Equal(t, "", res.ExtractedText)
	assert.Equal(t, 0, res.Metadata["line_count"])
}

func TestExtractInvalidUTF8(t *testing.T) {
	res, err := text.New(0, nil).Extract(context.Background(), extract.Input{
		Data: []byte{'o', 'k', 0xff, 0xfe, '!'},
	})
	require.NoError(t, err)
	assert.Equal(t, "utf-8-lossy", res.Metadata["encoding"])
	assert.True(t, utf8.ValidString(res.ExtractedText))
	assert.Contains(t, res.ExtractedText, "�")
}

func TestExtractTruncatesOnRuneBoundary(t *testing.T) {
	a := text.New(0, nil)
	data := []byte("aé" + strings.Repeat("x", 10))
	res, err := a.Extract(context.Background(), extract.Input{
		Data:    data,
		Options: extract.Options{"max_bytes": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "a", res.ExtractedText)
	assert.Equal(t, "utf-8", res.Metadata["encoding"])
	assert.Equal(t, true, res.Metadata["truncated"])
	assert.Equal(t, len(data), res.Metadata["original_size"])
	assert.Equal(t, 1, res.Metadata["truncated_at"])
}

func TestExtractNeverFailsAndIsBounded(t *testing.T) {
	a := text.New(64, nil)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		data := make([]byte, rng.Intn(256))
		rng.Read(data)
		res, err := a.Extract(context.Background(), extract.Input{Data: data})
		require.NoError(t, err)
		assert.LessOrEqual(t, utf8.RuneCountInString(res.ExtractedText), len(data))
		assert.True(t, utf8.ValidString(res.ExtractedText))
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	a := text.New(0, nil)
	in := extract.Input{Data: []byte("same\ninput\n")}
	r1, _ := a.Extract(context.Background(), in)
	r2, _ := a.Extract(context.Background(), in)
	assert.Equal(t, r1.ExtractedText, r2.ExtractedText)
	assert.Equal(t, r1.Metadata, r2.Metadata)
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, text.CountLines(""))
	assert.Equal(t, 1, text.CountLines("a"))
	assert.Equal(t, 1, text.CountLines("a\n"))
	assert.Equal(t, 2, text.CountLines("a\nb"))
	assert.Equal(t, 2, text.CountLines("a\n\n"))
}
