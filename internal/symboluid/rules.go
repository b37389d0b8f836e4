// Package symboluid generates stable, language-aware unique identifiers
// for symbols (spec section 4.F): Blake3-backed position hashes for
// anonymous/local symbols, fully-qualified names for globals, and
// signature hashing for languages that support overloading.
package symboluid

import "strings"

// SignatureNormalization selects how a raw signature string is
// canonicalized before being hashed, matching the per-language
// normalization strategies of the system this generator replaces.
type SignatureNormalization int

const (
	// NormalizeNone hashes the signature exactly as given.
	NormalizeNone SignatureNormalization = iota
	// NormalizeRemoveParamNames drops identifier tokens that look like
	// parameter names, keeping only type tokens and punctuation.
	NormalizeRemoveParamNames
	// NormalizeFull collapses whitespace and strips parameter names.
	NormalizeFull
)

// LanguageRules captures the per-language conventions that affect UID
// shape: the scope separator, the anonymous-symbol prefix, and whether
// overloading requires a signature hash to disambiguate same-named
// symbols.
type LanguageRules struct {
	ScopeSeparator        string
	AnonymousPrefix       string
	SupportsOverloading   bool
	SignatureNorm         SignatureNormalization
}

var languageRules = map[string]LanguageRules{
	"rust": {
		ScopeSeparator:      "::",
		AnonymousPrefix:     "anon",
		SupportsOverloading: false,
		SignatureNorm:       NormalizeRemoveParamNames,
	},
	"typescript": {
		ScopeSeparator:      ".",
		AnonymousPrefix:     "anon",
		SupportsOverloading: true,
		SignatureNorm:       NormalizeFull,
	},
	"javascript": {
		ScopeSeparator:      ".",
		AnonymousPrefix:     "anon",
		SupportsOverloading: false,
		SignatureNorm:       NormalizeRemoveParamNames,
	},
	"python": {
		ScopeSeparator:      ".",
		AnonymousPrefix:     "lambda",
		SupportsOverloading: false,
		SignatureNorm:       NormalizeRemoveParamNames,
	},
	"go": {
		ScopeSeparator:      ".",
		AnonymousPrefix:     "anon",
		SupportsOverloading: false,
		SignatureNorm:       NormalizeRemoveParamNames,
	},
	"java": {
		ScopeSeparator:      ".",
		AnonymousPrefix:     "anon",
		SupportsOverloading: true,
		SignatureNorm:       NormalizeFull,
	},
	"csharp": {
		ScopeSeparator:      ".",
		AnonymousPrefix:     "anon",
		SupportsOverloading: true,
		SignatureNorm:       NormalizeFull,
	},
	"c": {
		ScopeSeparator:      "::",
		AnonymousPrefix:     "anon",
		SupportsOverloading: false,
		SignatureNorm:       NormalizeRemoveParamNames,
	},
	"cpp": {
		ScopeSeparator:      "::",
		AnonymousPrefix:     "anon",
		SupportsOverloading: true,
		SignatureNorm:       NormalizeFull,
	},
	"php": {
		ScopeSeparator:      "\\",
		AnonymousPrefix:     "anon",
		SupportsOverloading: false,
		SignatureNorm:       NormalizeRemoveParamNames,
	},
}

// extensionToLanguage maps a file extension (without leading dot, any
// case) to a canonical language key.
var extensionToLanguage = map[string]string{
	"rs":   "rust",
	"js":   "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"py":   "python",
	"go":   "go",
	"c":    "c",
	"h":    "c",
	"cpp":  "cpp",
	"cc":   "cpp",
	"cxx":  "cpp",
	"hpp":  "cpp",
	"hxx":  "cpp",
	"java": "java",
	"php":  "php",
	"cs":   "csharp",
}

// rulesFor resolves LanguageRules for a language name or file extension,
// case-insensitively.
func rulesFor(language string) (LanguageRules, bool) {
	key := strings.ToLower(language)
	if canon, ok := extensionToLanguage[key]; ok {
		key = canon
	}
	r, ok := languageRules[key]
	return r, ok
}
