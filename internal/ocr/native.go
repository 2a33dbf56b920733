package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/content-extractor/internal/common"
)

func openNative(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func nativePageCount(data []byte) (int, error) {
	r, err := openNative(data)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// nativeText extracts the text layer page by page without external tools.
// Unreadable pages are skipped and counted.
func nativeText(ctx context.Context, data []byte) (text string, pages, skipped int, err error) {
	r, err := openNative(data)
	if err != nil {
		return "", 0, 0, common.ToolFailed("native pdf parse", err, false)
	}
	pages = r.NumPage()
	fonts := make(map[string]*pdf.Font)
	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if ctx.Err() != nil {
			return "", 0, 0, ctx.Err()
		}
		txt, perr := nativePage(r, i, fonts)
		if perr != nil {
			skipped++
			continue
		}
		parts = append(parts, strings.TrimRight(txt, " \n"))
	}
	return strings.Join(parts, "\n\n"), pages, skipped, nil
}

func nativePage(r *pdf.Reader, i int, fonts map[string]*pdf.Font) (txt string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", i, rec)
		}
	}()
	p := r.Page(i)
	if p.V.IsNull() {
		return "", nil
	}
	for _, name := range p.Fonts() {
		if _, ok := fonts[name]; ok {
			continue
		}
		f := p.Font(name)
		fonts[name] = &f
	}
	return p.GetPlainText(fonts)
}
