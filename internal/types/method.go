// Package types holds the data model shared across the cache, indexing, and
// query subsystems: the closed set of query methods, the cache key/entry
// shapes, and the persistent symbol/edge/workspace records.
package types

import "fmt"

// Method is the closed enumeration of LSP-like operations the daemon
// answers. Its string form is the canonical LSP spelling and is used
// verbatim in cache keys and the wire protocol.
type Method int

const (
	MethodDefinition Method = iota
	MethodReferences
	MethodHover
	MethodDocumentSymbols
	MethodWorkspaceSymbols
	MethodTypeDefinition
	MethodImplementation
	MethodCallHierarchy
	MethodSignatureHelp
	MethodCompletion
	MethodCodeAction
	MethodRename
	MethodFoldingRange
	MethodSelectionRange
	MethodSemanticTokens
	MethodInlayHint
)

var methodStrings = [...]string{
	MethodDefinition:       "textDocument/definition",
	MethodReferences:       "textDocument/references",
	MethodHover:            "textDocument/hover",
	MethodDocumentSymbols:  "textDocument/documentSymbol",
	MethodWorkspaceSymbols: "workspace/symbol",
	MethodTypeDefinition:   "textDocument/typeDefinition",
	MethodImplementation:   "textDocument/implementation",
	MethodCallHierarchy:    "textDocument/prepareCallHierarchy",
	MethodSignatureHelp:    "textDocument/signatureHelp",
	MethodCompletion:       "textDocument/completion",
	MethodCodeAction:       "textDocument/codeAction",
	MethodRename:           "textDocument/rename",
	MethodFoldingRange:     "textDocument/foldingRange",
	MethodSelectionRange:   "textDocument/selectionRange",
	MethodSemanticTokens:   "textDocument/semanticTokens/full",
	MethodInlayHint:        "textDocument/inlayHint",
}

var methodsByString = func() map[string]Method {
	m := make(map[string]Method, len(methodStrings))
	for i, s := range methodStrings {
		m[s] = Method(i)
	}
	return m
}()

// String returns the canonical LSP spelling of the method.
func (m Method) String() string {
	if int(m) < 0 || int(m) >= len(methodStrings) {
		return "unknown"
	}
	return methodStrings[m]
}

// ParseMethod resolves a canonical LSP method string back to a Method.
func ParseMethod(s string) (Method, error) {
	if m, ok := methodsByString[s]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unsupported method %q", s)
}

// IsValid reports whether m is one of the sixteen known methods.
func (m Method) IsValid() bool {
	return int(m) >= 0 && int(m) < len(methodStrings)
}
