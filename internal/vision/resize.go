package vision

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// fitWithin scales w×h so the long edge equals maxDim, keeping aspect ratio.
func fitWithin(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := max(1, h*maxDim/w)
		return maxDim, nh
	}
	nw := max(1, w*maxDim/h)
	return nw, maxDim
}

// downscale decodes data and re-encodes it as JPEG with its long edge at
// maxDim.
func downscale(data []byte, maxDim, quality int) ([]byte, int, int, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, 0, err
	}
	return buf.Bytes(), w, h, nil
}
