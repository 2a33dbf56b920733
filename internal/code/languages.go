package code

import "regexp"

type rule struct {
	kind string
	re   *regexp.Regexp
	// raw rules see the untrimmed line so indentation can distinguish methods.
	raw bool
}

type language struct {
	name     string
	comments []string
	imports  []*regexp.Regexp
	rules    []rule
}

func r(kind, pattern string) rule { return rule{kind: kind, re: regexp.MustCompile(pattern)} }
func rr(kind, pattern string) rule {
	return rule{kind: kind, re: regexp.MustCompile(pattern), raw: true}
}
func imp(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

const (
	jvmMods = `(?:(?:public|private|protected|internal|static|final|abstract|sealed|override|open|data|async|virtual|synchronized|partial|readonly|suspend|inline|implicit|case|lazy)\s+)*`
	ident   = `(?P<name>[A-Za-z_$][\w$]*)`
)

var cLike = language{
	name:     "c",
	comments: []string{"//", "/*", "*"},
	imports:  imp(`^#\s*include\s+[<"]([^>"]+)[>"]`),
	rules: []rule{
		r("class", `^(?:template\s*<[^>]*>\s*)?class\s+`+ident+`[^;]*$`),
		r("module", `^namespace\s+`+ident),
		r("struct", `^(?:typedef\s+)?struct\s+`+ident+`[^;]*$`),
		r("enum", `^(?:typedef\s+)?enum\s+(?:class\s+)?`+ident+`[^;]*$`),
		r("type", `^typedef\s+.*?\b`+ident+`\s*;$`),
		r("function", `^(?:static\s+|inline\s+|extern\s+|virtual\s+|constexpr\s+)*[A-Za-z_][\w:<>,\s\*&]*?[\s\*&]`+`(?P<name>[A-Za-z_][\w:~]*)\s*\([^;]*$`),
	},
}

var languages = map[string]language{
	"rust": {
		name:     "rust",
		comments: []string{"//", "/*", "*"},
		imports:  imp(`^(?:pub\s+)?use\s+([^;]+);`, `^extern\s+crate\s+(\w+)`),
		rules: []rule{
			r("function", `^(?:pub(?:\([^)]*\))?\s+)?(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?(?:extern\s+"[^"]*"\s+)?fn\s+`+ident),
			r("struct", `^(?:pub(?:\([^)]*\))?\s+)?struct\s+`+ident),
			r("enum", `^(?:pub(?:\([^)]*\))?\s+)?enum\s+`+ident),
			r("trait", `^(?:pub(?:\([^)]*\))?\s+)?(?:unsafe\s+)?trait\s+`+ident),
			r("impl", `^(?:unsafe\s+)?impl(?:<[^>]*>)?\s+(?:[\w:<>, ]+\s+for\s+)?(?P<name>[A-Za-z_]\w*)`),
			r("module", `^(?:pub(?:\([^)]*\))?\s+)?mod\s+`+ident),
			r("type", `^(?:pub(?:\([^)]*\))?\s+)?type\s+`+ident+`.*=`),
		},
	},
	"python": {
		name:     "python",
		comments: []string{"#"},
		imports:  imp(`^import\s+([\w.]+)`, `^from\s+([\w.]+)\s+import\s`),
		rules: []rule{
			rr("method", `^\s+(?:async\s+)?def\s+`+ident),
			rr("function", `^(?:async\s+)?def\s+`+ident),
			rr("class", `^class\s+`+ident),
		},
	},
	"javascript": jsLike("javascript"),
	"typescript": jsLike("typescript"),
	"java":       jvm("java", `^import\s+(?:static\s+)?([\w.*]+)`),
	"csharp":     jvm("csharp", `^using\s+(?:static\s+)?([\w.]+)\s*;`),
	"kotlin": {
		name:     "kotlin",
		comments: []string{"//", "/*", "*"},
		imports:  imp(`^import\s+([\w.*]+)`),
		rules: []rule{
			r("class", `^`+jvmMods+`(?:enum\s+|annotation\s+)?class\s+`+ident),
			r("interface", `^`+jvmMods+`(?:fun\s+)?interface\s+`+ident),
			r("module", `^`+jvmMods+`(?:companion\s+)?object\s+`+ident),
			r("function", `^`+jvmMods+`fun\s+(?:<[^>]*>\s*)?(?:[\w.]+\.)?`+ident),
		},
	},
	"scala": {
		name:     "scala",
		comments: []string{"//", "/*", "*"},
		imports:  imp(`^import\s+([\w.{}, _*]+)`),
		rules: []rule{
			r("class", `^`+jvmMods+`class\s+`+ident),
			r("trait", `^`+jvmMods+`trait\s+`+ident),
			r("module", `^`+jvmMods+`object\s+`+ident),
			r("enum", `^enum\s+`+ident),
			r("function", `^`+jvmMods+`def\s+`+ident),
		},
	},
	"c":   cLike,
	"cpp": func() language { l := cLike; l.name = "cpp"; return l }(),
	"ruby": {
		name:     "ruby",
		comments: []string{"#"},
		imports:  imp(`^require(?:_relative)?\s+['"]([^'"]+)['"]`),
		rules: []rule{
			r("method", `^def\s+(?:self\.)?(?P<name>[A-Za-z_]\w*[?!=]?)`),
			r("class", `^class\s+(?P<name>[A-Z][\w:]*)`),
			r("module", `^module\s+(?P<name>[A-Z][\w:]*)`),
		},
	},
	"php": {
		name:     "php",
		comments: []string{"//", "/*", "*", "#"},
		imports:  imp(`^use\s+([\w\\]+)`, `^(?:require|include)(?:_once)?\s*\(?\s*['"]([^'"]+)['"]`),
		rules: []rule{
			r("class", `^(?:(?:abstract|final|readonly)\s+)*class\s+`+ident),
			r("interface", `^interface\s+`+ident),
			r("trait", `^trait\s+`+ident),
			r("enum", `^enum\s+`+ident),
			r("function", `^(?:(?:public|private|protected|static|abstract|final)\s+)*function\s+&?`+ident),
		},
	},
	"swift": {
		name:     "swift",
		comments: []string{"//", "/*", "*"},
		imports:  imp(`^import\s+(\w+)`),
		rules: []rule{
			r("function", `^(?:(?:public|private|fileprivate|internal|open|static|class|override|mutating|@\w+)\s+)*func\s+`+ident),
			r("class", `^(?:(?:public|private|fileprivate|internal|open|final)\s+)*class\s+`+ident),
			r("struct", `^(?:(?:public|private|fileprivate|internal)\s+)*struct\s+`+ident),
			r("enum", `^(?:(?:public|private|fileprivate|internal|indirect)\s+)*enum\s+`+ident),
			r("interface", `^(?:(?:public|private|fileprivate|internal)\s+)*protocol\s+`+ident),
			r("impl", `^(?:(?:public|private|fileprivate|internal)\s+)*extension\s+`+ident),
		},
	},
	"lua": {
		name:     "lua",
		comments: []string{"--"},
		imports:  imp(`require\s*\(?\s*['"]([^'"]+)['"]`),
		rules: []rule{
			r("function", `^(?:local\s+)?function\s+(?P<name>[\w.:]+)`),
			r("function", `^(?:local\s+)?(?P<name>[\w.]+)\s*=\s*function\b`),
		},
	},
	"shell": {
		name:     "shell",
		comments: []string{"#"},
		imports:  imp(`^(?:source|\.)\s+(\S+)`),
		rules: []rule{
			r("function", `^function\s+(?P<name>[\w-]+)`),
			r("function", `^(?P<name>[A-Za-z_][\w-]*)\s*\(\)\s*\{?`),
		},
	},
	"zig": {
		name:     "zig",
		comments: []string{"//"},
		imports:  imp(`@import\("([^"]+)"\)`),
		rules: []rule{
			r("function", `^(?:pub\s+)?(?:export\s+|inline\s+)?fn\s+`+ident),
			r("struct", `^(?:pub\s+)?const\s+`+ident+`\s*=\s*(?:extern\s+|packed\s+)?struct\b`),
			r("enum", `^(?:pub\s+)?const\s+`+ident+`\s*=\s*enum\b`),
			r("type", `^(?:pub\s+)?const\s+`+ident+`\s*=\s*(?:extern\s+|packed\s+)?union\b`),
		},
	},
	"haskell": {
		name:     "haskell",
		comments: []string{"--", "{-"},
		imports:  imp(`^import\s+(?:qualified\s+)?([\w.]+)`),
		rules: []rule{
			rr("module", `^module\s+(?P<name>[\w.]+)`),
			rr("type", `^(?:data|newtype|type)\s+(?:family\s+)?(?P<name>[A-Z]\w*)`),
			rr("class", `^class\s+(?:\([^)]*\)\s*=>\s*)?(?P<name>[A-Z]\w*)`),
			rr("impl", `^instance\s+(?:\([^)]*\)\s*=>\s*)?(?P<name>[A-Z]\w*)`),
			rr("function", `^(?P<name>[a-z_][\w']*)\s*::`),
		},
	},
	// go is matched by line only when the source does not parse.
	"go": {
		name:     "go",
		comments: []string{"//", "/*", "*"},
		imports:  imp(`^import\s+(?:\w+\s+)?"([^"]+)"`, `^(?:\w+\s+)?"([^"]+)"$`),
		rules: []rule{
			r("method", `^func\s+\([^)]*\)\s*`+ident),
			r("function", `^func\s+`+ident),
			r("struct", `^type\s+`+ident+`(?:\[[^\]]*\])?\s+struct\b`),
			r("interface", `^type\s+`+ident+`(?:\[[^\]]*\])?\s+interface\b`),
			r("type", `^type\s+`+ident),
		},
	},
}

func jsLike(name string) language {
	return language{
		name:     name,
		comments: []string{"//", "/*", "*"},
		imports: imp(
			`^import\s+.*?\bfrom\s+['"]([^'"]+)['"]`,
			`^import\s+['"]([^'"]+)['"]`,
			`\brequire\(\s*['"]([^'"]+)['"]\s*\)`,
		),
		rules: []rule{
			r("function", `^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\*?\s+`+ident),
			r("class", `^(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+`+ident),
			r("interface", `^(?:export\s+)?(?:declare\s+)?interface\s+`+ident),
			r("type", `^(?:export\s+)?(?:declare\s+)?type\s+`+ident+`\s*(?:<[^>]*>)?\s*=`),
			r("enum", `^(?:export\s+)?(?:declare\s+)?(?:const\s+)?enum\s+`+ident),
			r("function", `^(?:export\s+)?(?:const|let|var)\s+`+ident+`\s*(?::[^=]+)?=\s*(?:async\s+)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*(?::\s*[^=]+)?=>`),
			r("module", `^(?:export\s+)?(?:declare\s+)?(?:namespace|module)\s+`+ident),
		},
	}
}

func jvm(name, importPattern string) language {
	return language{
		name:     name,
		comments: []string{"//", "/*", "*"},
		imports:  imp(importPattern),
		rules: []rule{
			r("class", `^`+jvmMods+`(?:class|record)\s+`+ident),
			r("interface", `^`+jvmMods+`@?interface\s+`+ident),
			r("enum", `^`+jvmMods+`enum\s+`+ident),
			r("module", `^namespace\s+(?P<name>[\w.]+)`),
			r("method", `^(?:(?:public|private|protected|internal|static|final|abstract|override|async|virtual|synchronized|native|default)\s+)+(?:<[^>]*>\s*)?[\w<>\[\],.?]+(?:\s*<[^>]*>)?\s+`+ident+`\s*\(`),
		},
	}
}

var extLanguages = map[string]string{
	"rs": "rust", "py": "python", "pyi": "python",
	"js": "javascript", "mjs": "javascript", "cjs": "javascript", "jsx": "javascript",
	"ts": "typescript", "mts": "typescript", "cts": "typescript", "tsx": "typescript",
	"go": "go", "java": "java", "c": "c", "h": "c",
	"cpp": "cpp", "cxx": "cpp", "cc": "cpp", "hpp": "cpp", "hxx": "cpp",
	"rb": "ruby", "php": "php", "swift": "swift", "kt": "kotlin", "kts": "kotlin",
	"cs": "csharp", "scala": "scala", "lua": "lua",
	"sh": "shell", "bash": "shell", "zsh": "shell",
	"zig": "zig", "hs": "haskell",
}

// declKeyword marks a match whose name follows an explicit declaration
// keyword.
var declKeyword = regexp.MustCompile(`\b(?:fn|def|func|fun|function)\s+(?:self\.)?$`)

var controlWords = map[string]struct{}{
	"if": {}, "while": {}, "for": {}, "switch": {}, "catch": {}, "return": {},
	"throw": {}, "sizeof": {}, "else": {}, "new": {}, "do": {}, "await": {},
}
