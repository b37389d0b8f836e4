package analyzer

import (
	"testing"
)

const goSample = `package sample

import "fmt"

type Greeter struct {
	Name string
}

func (g *Greeter) Greet() string {
	return helper(g.Name)
}

func helper(name string) string {
	return fmt.Sprintf("hello %s", name)
}

const MaxRetries = 3

var defaultName = "world"
`

func TestGoExtractorFindsDeclarations(t *testing.T) {
	tree, err := parse("go", []byte(goSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer tree.Close()

	out, err := goExtractor{}.Extract("sample.go", []byte(goSample), tree, "ws1", 1)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	names := make(map[string]bool)
	for _, s := range out.Symbols {
		names[s.Name] = true
	}
	for _, want := range []string{"Greeter", "Greet", "helper", "MaxRetries", "defaultName"} {
		if !names[want] {
			t.Errorf("expected symbol %q, got %v", want, names)
		}
	}
}

func TestGoExtractorFindsSameFileCallEdge(t *testing.T) {
	tree, err := parse("go", []byte(goSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer tree.Close()

	out, err := goExtractor{}.Extract("sample.go", []byte(goSample), tree, "ws1", 1)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	found := false
	for _, e := range out.Edges {
		if e.Relation.String() == "Calls" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a Calls edge from Greet to helper, got %v", out.Edges)
	}
}

func TestGoExtractorRecordsImportEdge(t *testing.T) {
	tree, err := parse("go", []byte(goSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer tree.Close()

	out, err := goExtractor{}.Extract("sample.go", []byte(goSample), tree, "ws1", 1)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	found := false
	for _, e := range out.Edges {
		if e.Relation.String() == "Imports" && e.TargetSymbolUID == "import:fmt" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an Imports edge targeting fmt, got %v", out.Edges)
	}
}
