// Package code implements the CodeAst adapter: a structural rendering of
// source files annotated with declaration and import boundaries.
package code

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/text"
)

// Declaration is one detected top-level unit.
type Declaration struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
}

type Adapter struct {
	maxBytes int64
	logger   *slog.Logger
}

var _ extract.Adapter = (*Adapter)(nil)

func New(maxBytes int64, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = constants.TextMaxBytes
	}
	return &Adapter{maxBytes: maxBytes, logger: logger}
}

func (a *Adapter) Strategy() constants.Strategy    { return constants.CodeAst }
func (a *Adapter) Name() string                    { return "code_ast" }
func (a *Adapter) HealthCheck(context.Context) bool { return true }

// LanguageOf returns the language for a filename, or "" when unsupported.
func LanguageOf(filename string) string {
	return extLanguages[constants.ExtOf(filename)]
}

func (a *Adapter) Extract(_ context.Context, in extract.Input) (*extract.Result, error) {
	base := text.Decode(in.Data, int64(in.Options.Int("max_bytes", int(a.maxBytes))))
	src := base.ExtractedText

	lang := LanguageOf(in.Filename)
	if lang == "" {
		base.Set("language", "unknown")
		return base, nil
	}

	var (
		decls   []Declaration
		imports []string
		parser  = "pattern"
	)
	if lang == "go" {
		if d, imps, ok := parseGo(in.Filename, []byte(src)); ok {
			decls, imports, parser = d, imps, "go/ast"
		}
	}
	lines := strings.Split(src, "\n")
	if strings.HasSuffix(src, "\n") {
		lines = lines[:len(lines)-1]
	}
	if parser == "pattern" {
		decls, imports = scan(lines, languages[lang])
	}
	if imports == nil {
		imports = []string{}
	}

	res := extract.NewResult(render(lang, lines, decls, imports))
	for k, v := range base.Metadata {
		res.Set(k, v)
	}
	metaDecls := decls
	if len(metaDecls) > constants.MaxDeclarationsInMeta {
		metaDecls = metaDecls[:constants.MaxDeclarationsInMeta]
		res.Set("declarations_truncated", true)
	}
	if metaDecls == nil {
		metaDecls = []Declaration{}
	}
	res.Set("language", lang)
	res.Set("parser", parser)
	res.Set("total_lines", len(lines))
	res.Set("total_declarations", len(decls))
	res.Set("declarations", metaDecls)
	res.Set("imports", imports)
	res.Set("char_count", base.Metadata["char_count"])

	a.logger.Debug("code.extract.ok",
		"filename", in.Filename,
		"language", lang,
		"parser", parser,
		"declarations", len(decls),
	)
	return res, nil
}

// scan applies the line matchers. Each declaration ends where the next begins.
func scan(lines []string, lang language) ([]Declaration, []string) {
	var (
		decls   []Declaration
		imports []string
		seen    = map[string]struct{}{}
		inBlock bool
	)
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		checkImports := true
		if lang.name == "go" {
			// import ( ... ) blocks
			switch {
			case strings.HasPrefix(trimmed, "import ("):
				inBlock = true
				continue
			case inBlock && trimmed == ")":
				inBlock = false
				continue
			}
			checkImports = inBlock || strings.HasPrefix(trimmed, "import ")
		}
		if checkImports {
			for _, re := range lang.imports {
				if m := re.FindStringSubmatch(trimmed); m != nil {
					name := strings.TrimSpace(m[len(m)-1])
					if _, dup := seen[name]; !dup && name != "" {
						seen[name] = struct{}{}
						imports = append(imports, name)
					}
					break
				}
			}
		}
		if isComment(trimmed, lang.comments) {
			continue
		}
		if first, _, _ := strings.Cut(trimmed, " "); first != "" {
			if _, ctl := controlWords[strings.TrimRight(first, "(")]; ctl {
				continue
			}
		}
		for _, rl := range lang.rules {
			subject := trimmed
			if rl.raw {
				subject = raw
			}
			loc := rl.re.FindStringSubmatchIndex(subject)
			if loc == nil {
				continue
			}
			gi := 2 * rl.re.SubexpIndex("name")
			if loc[gi] < 0 {
				continue
			}
			name := subject[loc[gi]:loc[gi+1]]
			if name == "" {
				continue
			}
			// "new", "else" and friends only look like declarations in
			// call-shaped matches; after fn/def/func they are real names.
			if _, ctl := controlWords[name]; ctl && !declKeyword.MatchString(subject[loc[0]:loc[gi]]) {
				continue
			}
			decls = append(decls, Declaration{Kind: rl.kind, Name: name, LineStart: i + 1})
			break
		}
	}
	for i := range decls {
		if i+1 < len(decls) {
			decls[i].LineEnd = decls[i+1].LineStart - 1
		} else {
			decls[i].LineEnd = len(lines)
		}
	}
	return decls, imports
}

func isComment(trimmed string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// render writes a header and the source split at declaration starts. Lines
// before the first declaration form a preamble unit.
func render(lang string, lines []string, decls []Declaration, imports []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "language: %s\n", lang)
	if len(imports) > 0 {
		fmt.Fprintf(&b, "imports: %s\n", strings.Join(imports, ", "))
	}
	fmt.Fprintf(&b, "declarations: %d\n", len(decls))

	unit := func(header string, from, to int) {
		if from > to || from < 1 {
			return
		}
		fmt.Fprintf(&b, "\n--- %s (lines %d-%d) ---\n", header, from, to)
		b.WriteString(strings.Join(lines[from-1:to], "\n"))
		b.WriteByte('\n')
	}

	next := 1
	for i, d := range decls {
		if d.LineStart < next {
			// nested declaration already emitted with its parent
			continue
		}
		if d.LineStart > next {
			if i == 0 {
				unit("preamble", next, d.LineStart-1)
			} else {
				unit("continued", next, d.LineStart-1)
			}
		}
		end := len(lines)
		for _, nd := range decls[i+1:] {
			if nd.LineStart > d.LineStart {
				end = nd.LineStart - 1
				break
			}
		}
		unit(d.Kind+" "+d.Name, d.LineStart, end)
		next = end + 1
	}
	if next <= len(lines) {
		label := "preamble"
		if len(decls) > 0 {
			label = "continued"
		}
		unit(label, next, len(lines))
	}
	return b.String()
}
