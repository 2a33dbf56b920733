package office

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// textRules drives xmlText. Element names are matched without namespace.
type textRules struct {
	text  map[string]bool // character data is kept only inside these
	para  map[string]bool // a newline follows each of these
	tab   map[string]bool
	brk   map[string]bool
	space map[string]bool
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

var (
	wordRules  = textRules{text: set("t"), para: set("p"), tab: set("tab"), brk: set("br", "cr")}
	slideRules = textRules{text: set("t"), para: set("p"), brk: set("br")}
	odfRules   = textRules{text: set("p", "h"), para: set("p", "h"), tab: set("tab"), brk: set("line-break"), space: set("s")}
)

var reSlide = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func hasBuiltinReader(format string) bool {
	switch format {
	case "docx", "pptx", "odt":
		return true
	}
	return false
}

// readPackage extracts the text of a zipped office document without pandoc.
func readPackage(data []byte, format string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	switch format {
	case "docx":
		return partText(files["word/document.xml"], wordRules)
	case "odt":
		return partText(files["content.xml"], odfRules)
	case "pptx":
		type slide struct {
			n int
			f *zip.File
		}
		var slides []slide
		for name, f := range files {
			if m := reSlide.FindStringSubmatch(name); m != nil {
				n, _ := strconv.Atoi(m[1])
				slides = append(slides, slide{n, f})
			}
		}
		if len(slides) == 0 {
			return "", errors.New("no slides in package")
		}
		sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })
		var b strings.Builder
		for _, s := range slides {
			txt, err := partText(s.f, slideRules)
			if err != nil {
				return "", fmt.Errorf("slide %d: %w", s.n, err)
			}
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "## Slide %d\n%s", s.n, txt)
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("no built-in reader for %s", format)
}

func partText(f *zip.File, rules textRules) (string, error) {
	if f == nil {
		return "", errors.New("document part missing from package")
	}
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	return xmlText(rc, rules)
}

func xmlText(r io.Reader, rules textRules) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := t.Name.Local
			switch {
			case rules.text[n]:
				depth++
			case rules.tab[n]:
				b.WriteByte('\t')
			case rules.brk[n]:
				b.WriteByte('\n')
			case rules.space[n]:
				b.WriteByte(' ')
			}
		case xml.EndElement:
			n := t.Name.Local
			if rules.text[n] && depth > 0 {
				depth--
			}
			if rules.para[n] {
				b.WriteByte('\n')
			}
		case xml.CharData:
			if depth > 0 {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
