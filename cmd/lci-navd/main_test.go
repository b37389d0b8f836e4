package main

import (
	"bytes"
	"flag"
	"testing"

	"github.com/urfave/cli/v2"
)

func newQueryContext(t *testing.T, args []string) *cli.Context {
	t.Helper()
	app := buildApp()
	var query *cli.Command
	for _, cmd := range app.Commands {
		if cmd.Name == "query" {
			query = cmd
		}
	}
	if query == nil {
		t.Fatalf("buildApp did not register a query command")
	}

	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	for _, f := range query.Flags {
		f.Apply(fs)
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	parent := cli.NewContext(app, flag.NewFlagSet("lci-navd", flag.ContinueOnError), nil)
	return cli.NewContext(app, fs, parent)
}

func TestQueryCommandRejectsTooFewArguments(t *testing.T) {
	ctx := newQueryContext(t, []string{"textDocument/definition"})
	if err := queryCommand(ctx); err == nil {
		t.Fatalf("expected an error for a missing params argument")
	}
}

func TestQueryCommandRejectsInvalidJSONParams(t *testing.T) {
	ctx := newQueryContext(t, []string{"textDocument/definition", "{not json"})
	err := queryCommand(ctx)
	if err == nil {
		t.Fatalf("expected an error for malformed params JSON")
	}
}

func TestBuildAppRegistersServeAndQuery(t *testing.T) {
	app := buildApp()
	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	if !names["serve"] {
		t.Errorf("expected a serve command")
	}
	if !names["query"] {
		t.Errorf("expected a query command")
	}
}

func TestBuildAppHasNoDuplicateFlagNames(t *testing.T) {
	app := buildApp()
	var buf bytes.Buffer
	app.Writer = &buf
	if err := app.Run([]string{"lci-navd", "--help"}); err != nil {
		t.Fatalf("--help: %v", err)
	}
	if buf.Len() == 0 {
		t.Errorf("expected --help to print usage text")
	}
}
