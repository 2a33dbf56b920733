package vision

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/internal/backend/backendtest"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/ocr"
	"github.com/joseph-ayodele/content-extractor/internal/runner/runnertest"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newAdapter(vb *backendtest.Vision, fake *runnertest.Fake) *Adapter {
	var r = fake
	if r == nil {
		r = runnertest.New()
	}
	cfg := Config{MaxDimension: 64, HeicConverter: "magick", TempDir: os.TempDir()}
	if vb == nil {
		return New(cfg, nil, r, nil, nil)
	}
	return New(cfg, vb, r, nil, nil)
}

func TestExtractDescribesImage(t *testing.T) {
	vb := &backendtest.Vision{Description: "a gradient"}
	a := newAdapter(vb, nil)

	res, err := a.Extract(context.Background(), extract.Input{Data: pngImage(t, 40, 30), Filename: "g.png", MIME: "image/png"})
	require.NoError(t, err)
	assert.Empty(t, res.ExtractedText)
	assert.Equal(t, "a gradient", res.AIDescription)
	assert.Equal(t, "fake-vision", res.Metadata["model"])
	assert.Equal(t, 40, res.Metadata["width"])
	assert.Equal(t, 30, res.Metadata["height"])
	assert.Equal(t, "png", res.Metadata["format"])
	assert.False(t, res.MetaBool("resized"))
	assert.Equal(t, 1, vb.Calls())
}

func TestExtractResizesLargeImages(t *testing.T) {
	var got []byte
	vb := &backendtest.Vision{Describe: func(_ int, img []byte, _ string) (string, error) {
		got = img
		return "small", nil
	}}
	a := newAdapter(vb, nil)

	res, err := a.Extract(context.Background(), extract.Input{Data: pngImage(t, 200, 100), Filename: "wide.png"})
	require.NoError(t, err)
	assert.True(t, res.MetaBool("resized"))
	assert.Equal(t, 64, res.Metadata["resized_width"])
	assert.Equal(t, 32, res.Metadata["resized_height"])

	cfg, format, err := image.DecodeConfig(bytes.NewReader(got))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, cfg.Width)
}

func TestExtractPromptOption(t *testing.T) {
	var prompt string
	vb := &backendtest.Vision{Describe: func(_ int, _ []byte, p string) (string, error) {
		prompt = p
		return "ok", nil
	}}
	a := newAdapter(vb, nil)

	_, err := a.Extract(context.Background(), extract.Input{
		Data:    pngImage(t, 8, 8),
		Options: extract.Options{"prompt": "List the labels."},
	})
	require.NoError(t, err)
	assert.Equal(t, "List the labels.", prompt)
}

func TestExtractEmptyInput(t *testing.T) {
	_, err := newAdapter(&backendtest.Vision{}, nil).Extract(context.Background(), extract.Input{})
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
}

func TestExtractMetadataOnly(t *testing.T) {
	vb := &backendtest.Vision{}
	a := newAdapter(vb, nil)

	res, err := a.Extract(context.Background(), extract.Input{
		Data:    pngImage(t, 10, 10),
		Options: extract.Options{"metadata_only": true},
	})
	require.NoError(t, err)
	assert.True(t, res.MetaBool("vision_unavailable"))
	assert.Empty(t, res.AIDescription)
	assert.Equal(t, 0, vb.Calls())
}

func TestExtractWithoutBackend(t *testing.T) {
	a := newAdapter(nil, nil)
	assert.False(t, a.HealthCheck(context.Background()))

	_, err := a.Extract(context.Background(), extract.Input{Data: pngImage(t, 10, 10)})
	require.Error(t, err)
	assert.Equal(t, common.KindDependencyMissing, common.KindOf(err))
}

func TestExtractBackendFailure(t *testing.T) {
	vb := &backendtest.Vision{Err: backendtest.Unavailable}
	_, err := newAdapter(vb, nil).Extract(context.Background(), extract.Input{Data: pngImage(t, 10, 10)})
	require.Error(t, err)
	assert.Equal(t, common.KindModelUnavailable, common.KindOf(err))
}

func TestExtractConvertsHEIC(t *testing.T) {
	converted := pngImage(t, 12, 6)
	fake := runnertest.New().On("magick", func(_ context.Context, args []string) ([]byte, []byte, error) {
		return nil, nil, os.WriteFile(args[1], converted, 0o600)
	})
	vb := &backendtest.Vision{Description: "photo"}
	a := newAdapter(vb, fake)

	res, err := a.Extract(context.Background(), extract.Input{Data: []byte("ftypheic...."), Filename: "IMG_0001.HEIC"})
	require.NoError(t, err)
	assert.Equal(t, "heic", res.Metadata["converted_from"])
	assert.Equal(t, 12, res.Metadata["width"])
	assert.Equal(t, "photo", res.AIDescription)
	assert.Len(t, fake.CallsTo("magick"), 1)
}

func TestExtractHEICWithoutConverter(t *testing.T) {
	a := newAdapter(&backendtest.Vision{}, runnertest.New())

	_, err := a.Extract(context.Background(), extract.Input{Data: []byte("ftypheic"), Filename: "a.heic"})
	require.Error(t, err)
	assert.Equal(t, common.KindDependencyMissing, common.KindOf(err))

	res, err := a.Extract(context.Background(), extract.Input{
		Data:     []byte("ftypheic"),
		Filename: "a.heic",
		Options:  extract.Options{"metadata_only": true},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Metadata["warnings"])
}

func TestExtractOCRAndPreview(t *testing.T) {
	fake := runnertest.New().Stdout("tesseract", "EXIT\n\nPlatform 4")
	tess := ocr.NewTesseract(ocr.Config{}, fake, nil)
	a := New(Config{MaxDimension: 512, TempDir: os.TempDir()}, &backendtest.Vision{Description: "a sign"}, fake, tess, nil)

	res, err := a.Extract(context.Background(), extract.Input{
		Data:    pngImage(t, 300, 300),
		Options: extract.Options{"ocr": true, "preview": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "EXIT\n\nPlatform 4", res.ExtractedText)
	assert.Contains(t, res.Metadata, "ocr_confidence")
	assert.Equal(t, "a sign", res.AIDescription)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(res.PreviewData))
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Width)
}

func TestExtractOCRWithoutEngine(t *testing.T) {
	a := newAdapter(&backendtest.Vision{}, nil)
	res, err := a.Extract(context.Background(), extract.Input{
		Data:    pngImage(t, 10, 10),
		Options: extract.Options{"ocr": true},
	})
	require.NoError(t, err)
	assert.Empty(t, res.ExtractedText)
	assert.NotEmpty(t, res.Metadata["warnings"])
}

func TestFitWithin(t *testing.T) {
	w, h := fitWithin(4000, 3000, 2048)
	assert.Equal(t, 2048, w)
	assert.Equal(t, 1536, h)

	w, h = fitWithin(1000, 4000, 2048)
	assert.Equal(t, 512, w)
	assert.Equal(t, 2048, h)
}

func TestIsHEIC(t *testing.T) {
	assert.True(t, isHEIC("x.heif", ""))
	assert.True(t, isHEIC("upload", "image/heic"))
	assert.False(t, isHEIC("x.jpg", "image/jpeg"))
}

func TestExifMetadataAbsent(t *testing.T) {
	assert.Nil(t, exifMetadata(pngImage(t, 4, 4)))
}
