package symboluid

import (
	"strings"
	"testing"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

func TestGenerateUsesVerbatimUSR(t *testing.T) {
	uid, err := Generate(Input{Name: "foo", Language: "cpp", USR: "c:@F@foo#"}, Context{})
	if err != nil {
		t.Fatal(err)
	}
	if uid != "c:@F@foo#" {
		t.Fatalf("expected verbatim USR, got %q", uid)
	}
}

func TestGenerateGlobalSymbolUsesQualifiedName(t *testing.T) {
	ctx := Context{ScopeStack: []string{"module", "class"}}
	uid, err := Generate(Input{
		Name:          "calculate_total",
		Language:      "rust",
		Kind:          types.SymbolKindFunction,
		QualifiedName: "accounting::billing::calculate_total",
	}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "rust::accounting::billing::calculate_total" {
		t.Fatalf("unexpected uid: %q", uid)
	}
}

func TestGenerateMethodWithOverloadingHashesSignature(t *testing.T) {
	m1, err := Generate(Input{
		Name:          "process",
		Language:      "java",
		Kind:          types.SymbolKindMethod,
		QualifiedName: "com.example.Service.process",
		Signature:     "void process(String input)",
	}, Context{})
	if err != nil {
		t.Fatal(err)
	}
	m2, err := Generate(Input{
		Name:          "process",
		Language:      "java",
		Kind:          types.SymbolKindMethod,
		QualifiedName: "com.example.Service.process",
		Signature:     "void process(String input, int count)",
	}, Context{})
	if err != nil {
		t.Fatal(err)
	}
	if m1 == m2 {
		t.Fatalf("expected distinct UIDs for distinct overloads, got %q for both", m1)
	}
	if !Validate(m1) || !Validate(m2) {
		t.Fatalf("expected both UIDs to validate: %q %q", m1, m2)
	}
}

func TestGenerateMethodIgnoresParamNamingInOverloadHash(t *testing.T) {
	a, err := Generate(Input{
		Name: "process", Language: "java", Kind: types.SymbolKindMethod,
		QualifiedName: "com.example.Service.process",
		Signature:     "void process(String input)",
	}, Context{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(Input{
		Name: "process", Language: "java", Kind: types.SymbolKindMethod,
		QualifiedName: "com.example.Service.process",
		Signature:     "void process(String differentName)",
	}, Context{})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected parameter-name-only differences to hash identically, got %q vs %q", a, b)
	}
}

func TestGenerateLocalIncludesPositionHash(t *testing.T) {
	ctx := Context{ScopeStack: []string{"main"}}
	a, err := Generate(Input{Name: "x", Language: "go", Kind: types.SymbolKindVariable, StartLine: 10, StartChar: 2}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(Input{Name: "x", Language: "go", Kind: types.SymbolKindVariable, StartLine: 20, StartChar: 2}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("expected distinct positions to produce distinct UIDs")
	}
}

func TestGenerateAnonymousIsPositionBased(t *testing.T) {
	ctx := Context{ScopeStack: []string{"module"}}
	uid, err := Generate(Input{Name: "<lambda>", Language: "python", Kind: types.SymbolKindLambda, FilePath: "a.py", StartLine: 1, StartChar: 0}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !Validate(uid) {
		t.Fatalf("expected valid uid, got %q", uid)
	}
	lang, ok := ExtractLanguage(uid)
	if !ok || lang != "python" {
		t.Fatalf("expected language prefix 'python', got %q", lang)
	}
	segments := strings.Split(uid, "::")
	last := segments[len(segments)-1]
	if len(last) != 8 {
		t.Fatalf("expected an 8-char position hash segment, got %q (len %d)", last, len(last))
	}
}

func TestGenerateRejectsEmptyName(t *testing.T) {
	_, err := Generate(Input{Name: "", Language: "go", Kind: types.SymbolKindFunction}, Context{})
	if err == nil {
		t.Fatalf("expected error for empty name on a non-anonymous kind")
	}
}

func TestGenerateRejectsUnsupportedLanguage(t *testing.T) {
	_, err := Generate(Input{Name: "x", Language: "cobol", Kind: types.SymbolKindFunction}, Context{})
	if err == nil {
		t.Fatalf("expected error for unsupported language")
	}
}

func TestValidateRejectsMalformedUIDs(t *testing.T) {
	cases := []string{"", "::", "::foo", "nolang", "a"}
	for _, c := range cases {
		if Validate(c) {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}
