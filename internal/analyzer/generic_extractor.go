package analyzer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lci-cached-nav/internal/symboluid"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

// declRule maps one tree-sitter node kind produced by a language's
// grammar to the symbol kind it represents and the child node kind
// that carries its name.
type declRule struct {
	nodeKind  string
	nameKind  string
	kind      types.SymbolKind
}

// declRules catalogs the declaration shapes common across the
// grammars in this module's go.mod, for languages without a dedicated
// extractor. This is a coarser pass than goExtractor: it records
// declarations at any depth by name and position but does not attempt
// call-graph edges or scope-qualified names, since each grammar's
// expression shape would need its own walk to do that precisely.
var declRules = map[string][]declRule{
	"javascript": {
		{"function_declaration", "identifier", types.SymbolKindFunction},
		{"class_declaration", "identifier", types.SymbolKindClass},
		{"method_definition", "property_identifier", types.SymbolKindMethod},
	},
	"typescript": {
		{"function_declaration", "identifier", types.SymbolKindFunction},
		{"class_declaration", "type_identifier", types.SymbolKindClass},
		{"interface_declaration", "type_identifier", types.SymbolKindInterface},
		{"method_definition", "property_identifier", types.SymbolKindMethod},
	},
	"python": {
		{"function_definition", "identifier", types.SymbolKindFunction},
		{"class_definition", "identifier", types.SymbolKindClass},
	},
	"rust": {
		{"function_item", "identifier", types.SymbolKindFunction},
		{"struct_item", "type_identifier", types.SymbolKindStruct},
		{"enum_item", "type_identifier", types.SymbolKindEnum},
		{"trait_item", "type_identifier", types.SymbolKindInterface},
	},
	"java": {
		{"class_declaration", "identifier", types.SymbolKindClass},
		{"interface_declaration", "identifier", types.SymbolKindInterface},
		{"method_declaration", "identifier", types.SymbolKindMethod},
		{"constructor_declaration", "identifier", types.SymbolKindConstructor},
	},
	"csharp": {
		{"class_declaration", "identifier", types.SymbolKindClass},
		{"interface_declaration", "identifier", types.SymbolKindInterface},
		{"method_declaration", "identifier", types.SymbolKindMethod},
	},
	"cpp": {
		{"function_definition", "identifier", types.SymbolKindFunction},
		{"class_specifier", "type_identifier", types.SymbolKindClass},
		{"struct_specifier", "type_identifier", types.SymbolKindStruct},
	},
	"php": {
		{"function_definition", "name", types.SymbolKindFunction},
		{"class_declaration", "name", types.SymbolKindClass},
		{"method_declaration", "name", types.SymbolKindMethod},
	},
}

// genericExtractor walks every node in the tree once, recording a
// symbol for any node kind declRules knows about for lang. It produces
// no structural edges: languages here get semantic relationships
// exclusively from the optional LSP enhancement step (spec 4.H step 3).
type genericExtractor struct{ lang string }

func (g genericExtractor) Language() string { return g.lang }

func (g genericExtractor) Extract(file string, content []byte, tree *sitter.Tree, workspaceID string, fileVersionID uint64) (extracted, error) {
	rules := declRules[g.lang]
	if len(rules) == 0 {
		return extracted{}, nil
	}

	var out extracted
	root := tree.RootNode()

	walk(root, func(n *sitter.Node) bool {
		for _, rule := range rules {
			if n.Kind() != rule.nodeKind {
				continue
			}
			nameNode := firstChildOfKind(n, rule.nameKind)
			if nameNode == nil {
				continue
			}
			name := nodeText(nameNode, content)
			if name == "" {
				continue
			}
			line, col := nodePosition(n)
			uid, err := symboluid.Generate(symboluid.Input{
				Name: name, Language: g.lang, Kind: rule.kind, FilePath: file,
				StartLine: line, StartChar: col, QualifiedName: name,
			}, symboluid.Context{})
			if err != nil {
				continue
			}
			endLine, endCol := nodeEndPosition(n)
			out.Symbols = append(out.Symbols, types.Symbol{
				SymbolUID: uid, WorkspaceID: workspaceID, FileVersionID: fileVersionID,
				File: file, Language: g.lang, Name: name, FQN: name, Kind: rule.kind,
				StartLine: line, StartChar: col, EndLine: endLine, EndChar: endCol,
				IsDefinition: true,
			})
		}
		return true
	})

	return out, nil
}
