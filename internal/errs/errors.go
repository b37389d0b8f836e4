// Package errs defines the typed error taxonomy shared by the indexing and
// query subsystems, following the same Type+Underlying+Timestamp shape the
// rest of this codebase's ancestor used for its indexing/parse/search
// errors, extended with the full taxonomy spec section 4.H and section 7
// require (recoverable vs configuration vs fatal) and the client-facing
// JSON-RPC-style codes of section 6.
package errs

import (
	"fmt"
	"time"
)

// Kind is the closed taxonomy of analyzer/indexing failure modes.
type Kind string

const (
	KindParserNotAvailable Kind = "parser_not_available"
	KindParseError         Kind = "parse_error"
	KindLspError           Kind = "lsp_error"
	KindTimeout            Kind = "timeout"
	KindFileTooLarge       Kind = "file_too_large"
	KindIoError            Kind = "io_error"
	KindUidGenerationError Kind = "uid_generation_error"
	KindConfigError        Kind = "config_error"
	KindUnsupportedLang    Kind = "unsupported_language"
	KindInternalError      Kind = "internal_error"
	KindSerializationError Kind = "serialization_error"
	KindCapacity           Kind = "capacity"
)

// AnalyzerError is raised by the Analyzer Manager pipeline (spec 4.H). Each
// instance carries the file it concerns and whether a caller may usefully
// retry it.
type AnalyzerError struct {
	Kind        Kind
	File        string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewAnalyzerError creates an AnalyzerError, deriving Recoverable from Kind
// unless overridden with WithRecoverable.
func NewAnalyzerError(kind Kind, file, op string, err error) *AnalyzerError {
	return &AnalyzerError{
		Kind:        kind,
		File:        file,
		Operation:   op,
		Underlying:  err,
		Timestamp:   time.Now(),
		Recoverable: kind.IsRecoverable(),
	}
}

// WithRecoverable overrides the recoverable flag and returns e for chaining.
func (e *AnalyzerError) WithRecoverable(recoverable bool) *AnalyzerError {
	e.Recoverable = recoverable
	return e
}

func (e *AnalyzerError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Kind, e.Operation, e.File, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *AnalyzerError) Unwrap() error { return e.Underlying }

// IsRecoverable tags the Kinds spec section 4.H marks as retryable:
// Timeout, LspError, IoError, plus Capacity.
func (k Kind) IsRecoverable() bool {
	switch k {
	case KindTimeout, KindLspError, KindIoError, KindCapacity:
		return true
	default:
		return false
	}
}

// Class buckets a Kind into the section 7 error-handling classification.
type Class int

const (
	ClassRecoverable Class = iota
	ClassConfiguration
	ClassFatal
)

// Classify maps a Kind onto the Recoverable / Configuration / Fatal buckets
// spec section 7 defines.
func Classify(k Kind) Class {
	switch k {
	case KindTimeout, KindLspError, KindIoError, KindCapacity:
		return ClassRecoverable
	case KindUnsupportedLang, KindParserNotAvailable, KindConfigError:
		return ClassConfiguration
	default:
		return ClassFatal
	}
}

// KeyError is raised by the Key Builder (spec 4.A): bad path traversal,
// stat failure, or an unsupported method string.
type KeyError struct {
	Reason string
	Path   string
}

func (e *KeyError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cache key error: %s (%s)", e.Reason, e.Path)
	}
	return fmt.Sprintf("cache key error: %s", e.Reason)
}

// RPCCode is a JSON-RPC-style numeric error code, per spec section 6.
type RPCCode int

const (
	CodeWorkspaceNotFound RPCCode = -32001
	CodeFileNotFound      RPCCode = -32002
	CodeLspUnavailable    RPCCode = -32010
	CodeTimeout           RPCCode = -32011
	CodeUpstreamError     RPCCode = -32012
	CodeInternal          RPCCode = -32000
)

// ClientError is the shape surfaced to the thin client: a stable code,
// a user-facing message containing no paths beyond the workspace-relative
// file path, optional opaque payload, and an optional retry-after hint.
type ClientError struct {
	Code          RPCCode
	Message       string
	Data          any
	RetryAfterMs  int64
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// WorkspaceNotFound builds the client-facing error for an unresolvable
// workspace root.
func WorkspaceNotFound(path string) *ClientError {
	return &ClientError{Code: CodeWorkspaceNotFound, Message: fmt.Sprintf("no workspace found containing %s", path)}
}

// FileNotFoundErr builds the client-facing error for a missing file.
func FileNotFoundErr(relPath string) *ClientError {
	return &ClientError{Code: CodeFileNotFound, Message: fmt.Sprintf("file not found: %s", relPath)}
}

// LspUnavailable builds the client-facing error for an absent upstream
// collaborator, with a retry hint since the server may still start.
func LspUnavailable(language string) *ClientError {
	return &ClientError{
		Code:         CodeLspUnavailable,
		Message:      fmt.Sprintf("no language server available for %s", language),
		RetryAfterMs: 2000,
	}
}

// TimeoutErr builds the client-facing error for an upstream call that
// exceeded its deadline.
func TimeoutErr(method string) *ClientError {
	return &ClientError{Code: CodeTimeout, Message: fmt.Sprintf("%s timed out", method), RetryAfterMs: 500}
}

// UpstreamErr wraps an opaque upstream failure payload for the client.
func UpstreamErr(payload any) *ClientError {
	return &ClientError{Code: CodeUpstreamError, Message: "upstream language server returned an error", Data: payload}
}

// InternalErr builds a generic internal-failure client error.
func InternalErr(err error) *ClientError {
	return &ClientError{Code: CodeInternal, Message: "internal error", Data: err.Error()}
}
