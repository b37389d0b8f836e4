package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestWireModeSuppressesOutput(t *testing.T) {
	var buf bytes.Buffer
	SetDebugOutput(&buf)
	defer SetDebugOutput(nil)

	prevEnable := EnableDebug
	EnableDebug = "true"
	defer func() { EnableDebug = prevEnable }()

	SetWireMode(true)
	defer SetWireMode(false)

	Printf("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output while WireMode is on, got %q", buf.String())
	}

	SetWireMode(false)
	Printf("hello %s", "world")
	if !strings.Contains(buf.String(), "hello world") {
		t.Fatalf("expected output once WireMode is off, got %q", buf.String())
	}
}

func TestLogComponentTag(t *testing.T) {
	var buf bytes.Buffer
	SetDebugOutput(&buf)
	defer SetDebugOutput(nil)

	prevEnable := EnableDebug
	EnableDebug = "true"
	defer func() { EnableDebug = prevEnable }()

	LogCache("evicted %d entries", 3)
	if !strings.Contains(buf.String(), "[DEBUG:CACHE] evicted 3 entries") {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
}
