package code

import (
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
)

// parseGo uses the real Go parser. ok is false when the source does not parse.
func parseGo(filename string, src []byte) (decls []Declaration, imports []string, ok bool) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, nil, false
	}
	line := func(p token.Pos) int { return fset.Position(p).Line }

	for _, is := range f.Imports {
		if p, err := strconv.Unquote(is.Path.Value); err == nil {
			imports = append(imports, p)
		}
	}
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			kind := "function"
			name := d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				kind = "method"
				if recv := receiverType(d.Recv.List[0].Type); recv != "" {
					name = recv + "." + name
				}
			}
			decls = append(decls, Declaration{Kind: kind, Name: name, LineStart: line(d.Pos()), LineEnd: line(d.End())})
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, s := range d.Specs {
				ts, ok := s.(*ast.TypeSpec)
				if !ok {
					continue
				}
				kind := "type"
				switch ts.Type.(type) {
				case *ast.StructType:
					kind = "struct"
				case *ast.InterfaceType:
					kind = "interface"
				}
				start := line(ts.Pos())
				if !d.Lparen.IsValid() {
					start = line(d.Pos())
				}
				decls = append(decls, Declaration{Kind: kind, Name: ts.Name.Name, LineStart: start, LineEnd: line(ts.End())})
			}
		}
	}
	sort.SliceStable(decls, func(i, j int) bool { return decls[i].LineStart < decls[j].LineStart })
	return decls, imports, true
}

func receiverType(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	}
	return ""
}
