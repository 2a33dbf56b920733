package vision

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

func isHEIC(filename, mimeType string) bool {
	switch constants.ExtOf(filename) {
	case "heic", "heif":
		return true
	}
	mt := strings.ToLower(mimeType)
	return strings.HasPrefix(mt, "image/heic") || strings.HasPrefix(mt, "image/heif")
}

// convertHEIC converts a HEIC/HEIF image to PNG inside scratch using the
// chosen converter: "heif-convert" | "magick" | "sips".
func convertHEIC(ctx context.Context, r runner.Runner, converter string, scratch *runner.Scratch, data []byte) ([]byte, error) {
	in, err := scratch.Write("input.heic", data)
	if err != nil {
		return nil, err
	}
	out := scratch.Path("converted.png")

	switch converter {
	case "heif-convert":
		_, _, err = r.Run(ctx, "heif-convert", in, out)
	case "magick":
		_, _, err = r.Run(ctx, "magick", in, out)
	case "sips":
		_, _, err = r.Run(ctx, "sips", "-s", "format", "png", in, "--out", out)
	default:
		return nil, common.DependencyMissing(
			fmt.Sprintf("HEIC not supported: converter %q is not one of heif-convert | magick | sips", converter), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%s convert failed: %w", converter, err)
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, common.ToolFailed("HEIC conversion produced no output", err, false)
	}
	return png, nil
}
