package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeEventTargetInvalid, "no such event")
	if !stderrors.Is(err, &Error{Code: CodeEventTargetInvalid}) {
		t.Fatal("expected code match")
	}
	if stderrors.Is(err, &Error{Code: CodeLedgerIO}) {
		t.Fatal("expected code mismatch")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeLedgerIO, "append failed", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "append failed" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	direct := New(CodeServiceUnavailable, "cache down")
	if got := CodeOf(direct); got != CodeServiceUnavailable {
		t.Fatalf("CodeOf(direct) = %q", got)
	}

	wrapped := fmt.Errorf("outer: %w", New(CodeLedgerParse, "bad line"))
	if got := CodeOf(wrapped); got != CodeLedgerParse {
		t.Fatalf("CodeOf(wrapped) = %q", got)
	}

	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf(plain) = %q", got)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("CodeOf(nil) = %q", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeEventTargetInvalid, http.StatusNotFound},
		{CodeRequestInvalid, http.StatusBadRequest},
		{CodeEventAmountInvalid, http.StatusBadRequest},
		{CodeServiceUnavailable, http.StatusServiceUnavailable},
		{CodeLedgerIO, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("HTTPStatus(%q) = %d, want %d", tc.code, got, tc.want)
		}
	}
}
