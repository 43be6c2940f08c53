package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelMatching(t *testing.T) {
	if !errors.Is(ErrOddInactive, ErrOddInactive) {
		t.Fatal("sentinel should match itself")
	}
	if errors.Is(ErrOddInactive, ErrMatchStarted) {
		t.Fatal("different sentinels should not match")
	}

	wrapped := Wrap(ErrInsufficientBalance, "placing bet 42")
	if !errors.Is(wrapped, ErrInsufficientBalance) {
		t.Fatal("wrapped sentinel should still match")
	}

	var be *Error
	if !errors.As(wrapped, &be) {
		t.Fatal("wrapped sentinel should unwrap to *Error")
	}
	if be.Code != 400 || be.Message != "insufficient_balance" {
		t.Fatalf("unexpected unwrapped error: %+v", be)
	}
}

func TestWrapKeepsContext(t *testing.T) {
	err := Wrap(ErrGatewayCallFailed, "withdrawal code=500")
	want := fmt.Sprintf("withdrawal code=500: %s", ErrGatewayCallFailed.Message)
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
