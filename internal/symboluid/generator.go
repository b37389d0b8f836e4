package symboluid

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/standardbeagle/lci-cached-nav/internal/errs"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

// Context carries the scope information surrounding a symbol at the
// point its UID is generated: the stack of enclosing scope names
// (outermost first) and, for languages whose parser doesn't already
// populate ParentScope, a single fallback scope name.
type Context struct {
	ScopeStack  []string
	ParentScope string
}

// CurrentScope joins the scope stack with sep, or falls back to
// ParentScope if the stack is empty.
func (c Context) CurrentScope(sep string) string {
	if len(c.ScopeStack) > 0 {
		return strings.Join(c.ScopeStack, sep)
	}
	return c.ParentScope
}

// Input is everything the generator needs about a symbol to produce a
// UID; it intentionally doesn't depend on any parser's AST type, so
// internal/analyzer can build one once symbol extraction is done.
type Input struct {
	Name          string
	Language      string // language name or file extension
	Kind          types.SymbolKind
	FilePath      string
	StartLine     int
	StartChar     int
	USR           string // verbatim upstream identifier, if the source provides one
	QualifiedName string
	Signature     string
}

// Generate produces a UID for in following the five-step priority order:
// verbatim USR, anonymous (position-hashed), local (scope+position),
// method/constructor (class-qualified, optionally signature-hashed), then
// global (FQN, optionally signature-hashed).
func Generate(in Input, ctx Context) (string, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", errs.NewAnalyzerError(errs.KindUidGenerationError, in.FilePath, "generate_uid",
			fmt.Errorf("symbol name cannot be empty"))
	}
	if strings.TrimSpace(in.Language) == "" {
		return "", errs.NewAnalyzerError(errs.KindUidGenerationError, in.FilePath, "generate_uid",
			fmt.Errorf("language cannot be empty"))
	}

	rules, ok := rulesFor(in.Language)
	if !ok {
		return "", errs.NewAnalyzerError(errs.KindUnsupportedLang, in.FilePath, "generate_uid",
			fmt.Errorf("unsupported language %q", in.Language))
	}

	langKey := canonicalLanguage(in.Language)

	if in.USR != "" {
		return in.USR, nil
	}
	if isAnonymous(in) {
		return generateAnonymous(in, ctx, rules, langKey)
	}
	if isLocal(in.Kind) {
		return generateLocal(in, ctx, langKey)
	}
	if isMethod(in.Kind) {
		return generateMethod(in, ctx, rules, langKey)
	}
	return generateGlobal(in, ctx, rules, langKey)
}

func canonicalLanguage(language string) string {
	key := strings.ToLower(language)
	if canon, ok := extensionToLanguage[key]; ok {
		return canon
	}
	return key
}

func isAnonymous(in Input) bool {
	name := in.Name
	return name == "" || name == "<anonymous>" || strings.Contains(name, "lambda") || strings.HasPrefix(name, "$")
}

func isLocal(k types.SymbolKind) bool {
	return k == types.SymbolKindVariable || k == types.SymbolKindParameter
}

func isMethod(k types.SymbolKind) bool {
	return k == types.SymbolKindMethod || k == types.SymbolKindConstructor || k == types.SymbolKindDestructor
}

func generateAnonymous(in Input, ctx Context, rules LanguageRules, langKey string) (string, error) {
	components := []string{langKey, rules.AnonymousPrefix}

	positionKey := fmt.Sprintf("%s:%d:%d:%s", in.FilePath, in.StartLine, in.StartChar, ctx.CurrentScope(rules.ScopeSeparator))
	components = append(components, hashString(positionKey)[:8])

	return strings.Join(components, "::"), nil
}

func generateLocal(in Input, ctx Context, langKey string) (string, error) {
	components := []string{langKey}
	if len(ctx.ScopeStack) > 0 {
		components = append(components, ctx.ScopeStack...)
	} else if ctx.ParentScope != "" {
		components = append(components, ctx.ParentScope)
	}
	components = append(components, normalizeSymbolName(in.Name, langKey))

	positionKey := fmt.Sprintf("%d:%d", in.StartLine, in.StartChar)
	positionHash := hashString(positionKey)

	return fmt.Sprintf("%s#%s", strings.Join(components, "::"), positionHash[:8]), nil
}

func generateMethod(in Input, ctx Context, rules LanguageRules, langKey string) (string, error) {
	components := []string{langKey}

	if qn := strings.TrimSpace(in.QualifiedName); qn != "" {
		components = append(components, splitQualifiedName(qn, langKey)...)
	} else {
		components = append(components, ctx.ScopeStack...)
		components = append(components, normalizeSymbolName(in.Name, langKey))
	}

	baseUID := strings.Join(components, "::")

	if rules.SupportsOverloading && in.Signature != "" {
		sigHash := hashString(normalizeSignature(in.Signature, rules.SignatureNorm))
		return fmt.Sprintf("%s#%s", baseUID, sigHash[:8]), nil
	}
	return baseUID, nil
}

func generateGlobal(in Input, ctx Context, rules LanguageRules, langKey string) (string, error) {
	components := []string{langKey}

	if qn := strings.TrimSpace(in.QualifiedName); qn != "" {
		components = append(components, splitQualifiedName(qn, langKey)...)
	} else {
		components = append(components, ctx.ScopeStack...)
		components = append(components, normalizeSymbolName(in.Name, langKey))
	}

	baseUID := strings.Join(components, "::")

	if rules.SupportsOverloading && isCallable(in.Kind) && in.Signature != "" {
		sigHash := hashString(normalizeSignature(in.Signature, rules.SignatureNorm))
		return fmt.Sprintf("%s#%s", baseUID, sigHash[:8]), nil
	}
	return baseUID, nil
}

func isCallable(k types.SymbolKind) bool {
	switch k {
	case types.SymbolKindFunction, types.SymbolKindMethod, types.SymbolKindConstructor, types.SymbolKindDestructor:
		return true
	default:
		return false
	}
}

// hashString returns the hex64 Blake3 digest of input.
func hashString(input string) string {
	h := blake3.New()
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeSymbolName trims whitespace and, for case-insensitive display
// contexts, lowercases the name. Every supported language here is
// case-sensitive, so this currently only trims; kept as a hook since the
// per-language rule set from the system this was ported from exposes
// the option.
func normalizeSymbolName(name, _langKey string) string {
	return strings.TrimSpace(name)
}

// splitQualifiedName splits a dotted or "::"-delimited qualified name
// into its components, accepting either separator regardless of the
// language's own convention since upstream parsers aren't consistent
// about which one they emit.
func splitQualifiedName(qn, _langKey string) []string {
	qn = strings.ReplaceAll(qn, "::", ".")
	parts := strings.Split(qn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeSignature canonicalizes a raw signature string per mode
// before it's hashed, so cosmetic differences (parameter naming,
// whitespace) don't fragment the UID for what is semantically the same
// overload.
func normalizeSignature(sig string, mode SignatureNormalization) string {
	switch mode {
	case NormalizeNone:
		return sig
	case NormalizeRemoveParamNames, NormalizeFull:
		return collapseWhitespace(stripParamNames(sig))
	default:
		return sig
	}
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// stripParamNames drops the identifier token preceding each comma/paren
// boundary in a "type name" parameter list, keeping only type tokens, so
// two overloads that differ only in parameter naming hash identically.
// This is a best-effort heuristic over the textual signature LSP servers
// report, not a full parser.
func stripParamNames(sig string) string {
	open := strings.IndexByte(sig, '(')
	shut := strings.LastIndexByte(sig, ')')
	if open == -1 || shut == -1 || shut < open {
		return sig
	}

	params := splitTopLevel(sig[open+1 : shut])
	for i, p := range params {
		params[i] = dropTrailingIdentifier(strings.TrimSpace(p))
	}

	return sig[:open+1] + strings.Join(params, ", ") + sig[shut:]
}

// splitTopLevel splits s on commas that aren't nested inside parens,
// angle brackets, or square brackets (generics, arrays).
func splitTopLevel(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '<', '[':
			depth++
		case ')', '>', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// dropTrailingIdentifier removes a trailing "name" token from a "type
// name" parameter, leaving just the type. Parameters with no space (bare
// types, as in Rust's post-colon form, or untyped names) are left as is.
func dropTrailingIdentifier(param string) string {
	idx := strings.LastIndexAny(param, " \t")
	if idx == -1 {
		return param
	}
	typ := strings.TrimSpace(param[:idx])
	if typ == "" {
		return param
	}
	return typ
}

// Validate reports whether uid has the "lang::something" shape every
// generator path above produces.
func Validate(uid string) bool {
	if len(uid) < 3 || !strings.Contains(uid, "::") {
		return false
	}
	if uid == "::" || strings.HasPrefix(uid, "::") {
		return false
	}
	parts := strings.SplitN(uid, "::", 3)
	return len(parts) >= 2 && parts[0] != "" && parts[1] != ""
}

// ExtractLanguage returns the language prefix of a UID, if any.
func ExtractLanguage(uid string) (string, bool) {
	if uid == "" || !strings.Contains(uid, "::") {
		return "", false
	}
	idx := strings.Index(uid, "::")
	return uid[:idx], true
}
