// Package debug provides the daemon's gated debug-log sink: silent unless
// explicitly enabled, because stdio is reserved for the JSON-RPC wire
// protocol (spec section 6) and must never be polluted by log lines.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug is a build flag, overridable via:
// go build -ldflags "-X github.com/standardbeagle/lci-cached-nav/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// WireMode tracks whether the process is currently serving the JSON-RPC
// wire protocol over stdio, which suppresses all debug output regardless
// of EnableDebug — the wire and the log must never share a stream.
var WireMode = false

var (
	debugOutput io.Writer
	debugFile   *os.File
	debugMutex  sync.Mutex
)

// SetWireMode enables or disables wire mode.
func SetWireMode(enabled bool) {
	WireMode = enabled
}

// SetDebugOutput sets a custom writer for debug output. Pass nil to
// disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file under
// the OS temp directory and returns its path. Call CloseDebugLog when done.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "lci-navd-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled reports whether debug output should be emitted.
func IsDebugEnabled() bool {
	if WireMode {
		return false
	}
	if EnableDebug == "true" {
		return true
	}
	if v := os.Getenv("LCI_NAVD_DEBUG"); v == "1" || v == "true" {
		return true
	}
	return false
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Printf prints debug information only when debug mode is enabled and
// output is configured.
func Printf(format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if w := getDebugWriter(); w != nil {
		fmt.Fprintf(w, "[DEBUG] "+format, args...)
	}
}

// Log provides structured debug logging with a component tag.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if w := getDebugWriter(); w != nil {
		fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
	}
}

// LogIndexing logs for the indexing subsystem.
func LogIndexing(format string, args ...interface{}) { Log("INDEX", format, args...) }

// LogCache logs for the cache subsystem.
func LogCache(format string, args ...interface{}) { Log("CACHE", format, args...) }

// LogQuery logs for the query front-end.
func LogQuery(format string, args ...interface{}) { Log("QUERY", format, args...) }
