package errs

import (
	"errors"
	"testing"
)

func TestAnalyzerError(t *testing.T) {
	underlying := errors.New("boom")
	err := NewAnalyzerError(KindTimeout, "/ws/src/main.go", "extract_symbols", underlying)

	if err.Kind != KindTimeout {
		t.Fatalf("expected KindTimeout, got %v", err.Kind)
	}
	if !err.Recoverable {
		t.Fatalf("expected Timeout to default to recoverable")
	}
	if !errors.Is(err, underlying) {
		t.Fatalf("expected Unwrap to reach underlying error")
	}

	want := "timeout extract_symbols failed for /ws/src/main.go: boom"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestKindIsRecoverable(t *testing.T) {
	cases := map[Kind]bool{
		KindTimeout:         true,
		KindLspError:        true,
		KindIoError:         true,
		KindCapacity:        true,
		KindParseError:      false,
		KindUnsupportedLang: false,
	}
	for kind, want := range cases {
		if got := kind.IsRecoverable(); got != want {
			t.Errorf("Kind(%s).IsRecoverable() = %v, want %v", kind, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	if Classify(KindTimeout) != ClassRecoverable {
		t.Errorf("expected Timeout to classify as recoverable")
	}
	if Classify(KindUnsupportedLang) != ClassConfiguration {
		t.Errorf("expected UnsupportedLanguage to classify as configuration")
	}
	if Classify(KindInternalError) != ClassFatal {
		t.Errorf("expected InternalError to classify as fatal")
	}
}

func TestClientErrorCodes(t *testing.T) {
	if WorkspaceNotFound("/a/b").Code != CodeWorkspaceNotFound {
		t.Errorf("wrong code for WorkspaceNotFound")
	}
	if FileNotFoundErr("src/main.go").Code != CodeFileNotFound {
		t.Errorf("wrong code for FileNotFound")
	}
	if LspUnavailable("rust").RetryAfterMs == 0 {
		t.Errorf("expected LspUnavailable to carry a retry hint")
	}
}
