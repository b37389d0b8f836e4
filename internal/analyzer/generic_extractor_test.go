package analyzer

import "testing"

const pythonSample = `class Greeter:
    def greet(self, name):
        return "hello " + name


def helper():
    pass
`

func TestGenericExtractorFindsPythonDeclarations(t *testing.T) {
	tree, err := parse("python", []byte(pythonSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer tree.Close()

	out, err := genericExtractor{lang: "python"}.Extract("sample.py", []byte(pythonSample), tree, "ws1", 1)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out.Edges) != 0 {
		t.Errorf("expected no structural edges from genericExtractor, got %v", out.Edges)
	}

	names := make(map[string]bool)
	for _, s := range out.Symbols {
		names[s.Name] = true
	}
	for _, want := range []string{"Greeter", "helper"} {
		if !names[want] {
			t.Errorf("expected symbol %q, got %v", want, names)
		}
	}
}

func TestGenericExtractorUnknownLanguageYieldsNothing(t *testing.T) {
	out, err := genericExtractor{lang: "cobol"}.Extract("x.cob", nil, nil, "ws1", 1)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out.Symbols) != 0 || len(out.Edges) != 0 {
		t.Errorf("expected empty extraction for unregistered language, got %+v", out)
	}
}
