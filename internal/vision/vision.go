// Package vision implements the Vision adapter: image metadata is always
// extracted and, when a backend is available, the image is described by it.
package vision

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/backend"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/ocr"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

const (
	jpegQuality    = 85
	previewMaxEdge = 256
)

type Config struct {
	MaxDimension  int
	Prompt        string
	HeicConverter string // heif-convert | magick | sips
	CmdTimeout    time.Duration
	TempDir       string
}

func ConfigFrom(cfg *common.Config) Config {
	return Config{
		MaxDimension:  cfg.Vision.MaxDimension,
		Prompt:        cfg.Vision.Prompt,
		HeicConverter: cfg.Tools.HeicConverter,
		CmdTimeout:    cfg.Tools.CmdTimeout,
		TempDir:       cfg.Tools.TempDir,
	}
}

type Adapter struct {
	cfg       Config
	backend   backend.VisionBackend
	runner    runner.Runner
	tesseract *ocr.Tesseract
	logger    *slog.Logger
}

var _ extract.Adapter = (*Adapter)(nil)

// New builds the adapter. vb may be nil (metadata only); tess may be nil
// (the "ocr" option is then ignored with a warning).
func New(cfg Config, vb backend.VisionBackend, r runner.Runner, tess *ocr.Tesseract, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = constants.VisionMaxDimension
	}
	if cfg.Prompt == "" {
		cfg.Prompt = constants.VisionPrompt
	}
	if cfg.CmdTimeout <= 0 {
		cfg.CmdTimeout = constants.CmdTimeout
	}
	return &Adapter{cfg: cfg, backend: vb, runner: r, tesseract: tess, logger: logger}
}

func (a *Adapter) Strategy() constants.Strategy { return constants.Vision }
func (a *Adapter) Name() string                 { return "vision" }

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return a.backend != nil && a.backend.HealthCheck(ctx)
}

func (a *Adapter) Extract(ctx context.Context, in extract.Input) (*extract.Result, error) {
	if len(in.Data) == 0 {
		return nil, common.InvalidInputf("cannot extract vision description from empty image data")
	}
	start := time.Now()
	metadataOnly := in.Options.Bool("metadata_only", false)

	res := extract.NewResult("")
	res.Set("filename", in.Filename).
		Set("mime_type", in.MIME).
		Set("size_bytes", len(in.Data))
	if x := exifMetadata(in.Data); x != nil {
		res.Set("exif", x)
	}

	scratch, err := runner.NewScratch(a.cfg.TempDir, "vision-*", a.logger)
	if err != nil {
		return nil, err
	}
	defer scratch.Close()

	data, mimeType := in.Data, in.MIME
	if isHEIC(in.Filename, in.MIME) {
		cctx, cancel := context.WithTimeout(ctx, a.cfg.CmdTimeout)
		png, err := convertHEIC(cctx, a.runner, a.cfg.HeicConverter, scratch, in.Data)
		cancel()
		switch {
		case err == nil:
			data, mimeType = png, "image/png"
			res.Set("converted_from", "heic")
		case metadataOnly:
			res.Warn("HEIC conversion failed: " + err.Error())
		default:
			return nil, err
		}
	}

	cfg, format, derr := image.DecodeConfig(bytes.NewReader(data))
	if derr == nil {
		res.Set("width", cfg.Width).Set("height", cfg.Height).Set("format", format)
		if in.Options.Bool("preview", false) {
			if thumb, _, _, err := downscale(data, previewMaxEdge, 70); err == nil {
				res.PreviewData = thumb
			}
		}
	} else {
		a.logger.Debug("vision.decode_config.failed", "filename", in.Filename, "error", derr)
	}

	if in.Options.Bool("ocr", false) {
		a.recognize(ctx, scratch, data, in, res)
	}

	if metadataOnly {
		res.Set("vision_unavailable", true)
		a.logger.Info("vision.extract.metadata_only", "filename", in.Filename, "elapsed_ms", time.Since(start).Milliseconds())
		return res, nil
	}
	if a.backend == nil {
		return nil, common.DependencyMissing("no vision backend configured", nil)
	}

	maxDim := in.Options.Int("max_dimension", a.cfg.MaxDimension)
	if derr == nil && max(cfg.Width, cfg.Height) > maxDim {
		small, w, h, err := downscale(data, maxDim, jpegQuality)
		if err != nil {
			a.logger.Warn("vision.resize.failed", "filename", in.Filename, "error", err)
		} else {
			data, mimeType = small, "image/jpeg"
			res.Set("resized", true).Set("resized_width", w).Set("resized_height", h)
		}
	}

	prompt := in.Options.String("prompt", a.cfg.Prompt)
	desc, err := a.backend.DescribeImage(ctx, data, mimeType, prompt)
	if err != nil {
		a.logger.Error("vision.describe.failed", "filename", in.Filename, "model", a.backend.ModelName(), "error", err)
		return nil, err
	}
	res.AIDescription = desc
	res.Set("model", a.backend.ModelName())

	a.logger.Info("vision.extract.ok",
		"filename", in.Filename,
		"model", a.backend.ModelName(),
		"resized", res.MetaBool("resized"),
		"description_chars", len(desc),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// recognize runs tesseract over the image and stores the text. Failures
// only add a warning.
func (a *Adapter) recognize(ctx context.Context, scratch *runner.Scratch, data []byte, in extract.Input, res *extract.Result) {
	if a.tesseract == nil {
		res.Warn("ocr requested but no OCR engine is configured")
		return
	}
	path, err := scratch.Write("ocr-input", data)
	if err != nil {
		res.Warn("ocr: " + err.Error())
		return
	}
	rec, err := a.tesseract.Recognize(ctx, path, in.Options.String("language", ""))
	if err != nil {
		a.logger.Warn("vision.ocr.failed", "filename", in.Filename, "error", err)
		res.Warn("ocr: " + err.Error())
		return
	}
	res.ExtractedText = rec.Text
	res.Set("ocr_confidence", rec.Confidence)
	for _, w := range rec.Warnings {
		res.Warn(w)
	}
}
