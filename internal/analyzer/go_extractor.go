package analyzer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lci-cached-nav/internal/symboluid"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

// goExtractor extracts symbols and structural relationships from a Go
// source file, adapted from the teacher's GoExtractor
// (internal/symbollinker/go_extractor.go): same package/import/
// declaration walk, but producing this spec's Symbol/Edge rows (keyed
// by generated symbol UIDs) instead of a SymbolTable.
type goExtractor struct{}

func (goExtractor) Language() string { return "go" }

func (goExtractor) Extract(file string, content []byte, tree *sitter.Tree, workspaceID string, fileVersionID uint64) (extracted, error) {
	root := tree.RootNode()
	var out extracted

	pkg := ""
	if pkgNode := firstChildOfKind(root, "package_clause"); pkgNode != nil {
		if ident := firstChildOfKind(pkgNode, "package_identifier"); ident != nil {
			pkg = nodeText(ident, content)
		}
	}

	byName := make(map[string]string) // function/method name -> UID, for same-file call edges

	mkSymbol := func(name, qualified string, kind types.SymbolKind, node *sitter.Node) (types.Symbol, error) {
		line, col := nodePosition(node)
		uid, err := symboluid.Generate(symboluid.Input{
			Name: name, Language: "go", Kind: kind, FilePath: file,
			StartLine: line, StartChar: col, QualifiedName: qualified,
		}, symboluid.Context{})
		if err != nil {
			return types.Symbol{}, err
		}
		endLine, endCol := nodeEndPosition(node)
		return types.Symbol{
			SymbolUID: uid, WorkspaceID: workspaceID, FileVersionID: fileVersionID,
			File: file, Language: "go", Name: name, FQN: qualified, Kind: kind,
			StartLine: line, StartChar: col, EndLine: endLine, EndChar: endCol,
			IsDefinition: true,
		}, nil
	}

	for i := uint(0); i < root.ChildCount(); i++ {
		decl := root.Child(i)
		if decl == nil {
			continue
		}
		switch decl.Kind() {
		case "import_declaration":
			for _, path := range goImportPaths(decl, content) {
				out.Edges = append(out.Edges, types.Edge{
					Language: "go", Relation: types.RelationImports,
					SourceSymbolUID: "module:" + pkg, TargetSymbolUID: "import:" + path,
				})
			}

		case "type_declaration":
			for _, spec := range childrenOfKind(decl, "type_spec") {
				nameNode := firstChildOfKind(spec, "type_identifier")
				if nameNode == nil {
					continue
				}
				name := nodeText(nameNode, content)
				kind := types.SymbolKindStruct
				if firstChildOfKind(spec, "interface_type") != nil {
					kind = types.SymbolKindInterface
				}
				sym, err := mkSymbol(name, qualify(pkg, name), kind, spec)
				if err != nil {
					return out, err
				}
				out.Symbols = append(out.Symbols, sym)
			}

		case "function_declaration":
			nameNode := firstChildOfKind(decl, "identifier")
			if nameNode == nil {
				continue
			}
			name := nodeText(nameNode, content)
			sym, err := mkSymbol(name, qualify(pkg, name), types.SymbolKindFunction, decl)
			if err != nil {
				return out, err
			}
			out.Symbols = append(out.Symbols, sym)
			byName[name] = sym.SymbolUID

		case "method_declaration":
			nameNode := firstChildOfKind(decl, "field_identifier")
			if nameNode == nil {
				continue
			}
			name := nodeText(nameNode, content)
			recv := goReceiverTypeName(decl, content)
			sym, err := mkSymbol(name, qualify(pkg, recv+"."+name), types.SymbolKindMethod, decl)
			if err != nil {
				return out, err
			}
			out.Symbols = append(out.Symbols, sym)
			byName[recv+"."+name] = sym.SymbolUID

		case "const_declaration", "var_declaration":
			kind := types.SymbolKindConstant
			if decl.Kind() == "var_declaration" {
				kind = types.SymbolKindVariable
			}
			for _, spec := range childrenOfKind(decl, specKindFor(decl.Kind())) {
				for _, ident := range childrenOfKind(spec, "identifier") {
					name := nodeText(ident, content)
					if name == "" || name == "_" {
						continue
					}
					sym, err := mkSymbol(name, qualify(pkg, name), kind, ident)
					if err != nil {
						return out, err
					}
					out.Symbols = append(out.Symbols, sym)
				}
			}
		}
	}

	// Structural call edges: within each function/method body, any
	// identifier immediately preceding a call_expression's arguments
	// that names another symbol extracted from this same file.
	for i := uint(0); i < root.ChildCount(); i++ {
		decl := root.Child(i)
		if decl == nil {
			continue
		}
		var callerUID string
		var body *sitter.Node
		switch decl.Kind() {
		case "function_declaration":
			if nameNode := firstChildOfKind(decl, "identifier"); nameNode != nil {
				callerUID = byName[nodeText(nameNode, content)]
			}
			body = firstChildOfKind(decl, "block")
		case "method_declaration":
			if nameNode := firstChildOfKind(decl, "field_identifier"); nameNode != nil {
				callerUID = byName[goReceiverTypeName(decl, content)+"."+nodeText(nameNode, content)]
			}
			body = firstChildOfKind(decl, "block")
		default:
			continue
		}
		if callerUID == "" || body == nil {
			continue
		}

		seen := make(map[string]bool)
		walk(body, func(n *sitter.Node) bool {
			if n.Kind() == "call_expression" {
				fn := n.Child(0)
				if fn != nil && fn.Kind() == "identifier" {
					name := nodeText(fn, content)
					if targetUID, ok := byName[name]; ok && targetUID != callerUID && !seen[targetUID] {
						seen[targetUID] = true
						out.Edges = append(out.Edges, types.Edge{
							Language: "go", Relation: types.RelationCalls,
							SourceSymbolUID: callerUID, TargetSymbolUID: targetUID,
						})
					}
				}
			}
			return true
		})
	}

	return out, nil
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func specKindFor(declKind string) string {
	if declKind == "var_declaration" {
		return "var_spec"
	}
	return "const_spec"
}

func goImportPaths(decl *sitter.Node, content []byte) []string {
	var paths []string
	collect := func(spec *sitter.Node) {
		if lit := firstChildOfKind(spec, "interpreted_string_literal"); lit != nil {
			raw := nodeText(lit, content)
			if len(raw) >= 2 {
				paths = append(paths, raw[1:len(raw)-1])
			}
		}
	}
	if list := firstChildOfKind(decl, "import_spec_list"); list != nil {
		for _, spec := range childrenOfKind(list, "import_spec") {
			collect(spec)
		}
	} else if spec := firstChildOfKind(decl, "import_spec"); spec != nil {
		collect(spec)
	}
	return paths
}

// goReceiverTypeName extracts the bare type name from a method's
// receiver, stripping a leading pointer "*".
func goReceiverTypeName(methodDecl *sitter.Node, content []byte) string {
	params := firstChildOfKind(methodDecl, "parameter_list")
	if params == nil {
		return ""
	}
	decl := firstChildOfKind(params, "parameter_declaration")
	if decl == nil {
		return ""
	}
	if t := firstChildOfKind(decl, "type_identifier"); t != nil {
		return nodeText(t, content)
	}
	if ptr := firstChildOfKind(decl, "pointer_type"); ptr != nil {
		if t := firstChildOfKind(ptr, "type_identifier"); t != nil {
			return nodeText(t, content)
		}
	}
	return ""
}
