package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestIs_ThroughWrapping(t *testing.T) {
	base := New(AddressMismatch, "intro address")
	wrapped := fmt.Errorf("create: %w", base)

	if !Is(wrapped, AddressMismatch) {
		t.Fatalf("expected AddressMismatch through fmt wrapping")
	}
	if Is(wrapped, IllegalOwner) {
		t.Fatalf("unexpected IllegalOwner match")
	}
	var e *Error
	if !errors.As(wrapped, &e) {
		t.Fatalf("expected structured *errcode.Error, got %T", wrapped)
	}
	if e.Message != "intro address" {
		t.Fatalf("unexpected message %q", e.Message)
	}
}

func TestCodeOf_PlainError(t *testing.T) {
	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Fatalf("plain errors carry no code")
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("short buffer")
	err := Wrap(DecodingError, "reply text", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if got := err.Error(); got != "DecodingError: reply text" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestParse_RoundTripsNames(t *testing.T) {
	for c := DecodingError; c <= InvalidTransaction; c++ {
		got, ok := Parse(c.String())
		if !ok || got != c {
			t.Fatalf("Parse(%q) = %v, %v", c.String(), got, ok)
		}
	}
	if _, ok := Parse("NoSuchCode"); ok {
		t.Fatalf("expected unknown name to fail")
	}
}

func TestCodes_StableNumbers(t *testing.T) {
	// Numbers are reported to callers as custom program errors.
	if DecodingError != 1 || IllegalOwner != 6 || InvalidTransaction != 16 {
		t.Fatalf("code numbering changed")
	}
}
