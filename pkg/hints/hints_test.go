package hints_test

import (
	"errors"
	"fmt"
	"testing"

	"pixelgardenlabs.io/borgman/pkg/hints"
)

func TestNewIsHint(t *testing.T) {
	err := hints.New("nothing to do")
	if !hints.IsHint(err) {
		t.Error("New() did not produce a hint")
	}
	if err.Error() != "nothing to do" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestPlainErrorIsNotHint(t *testing.T) {
	if hints.IsHint(errors.New("real failure")) {
		t.Error("plain error reported as hint")
	}
	if hints.IsHint(nil) {
		t.Error("nil reported as hint")
	}
}

func TestWrapPromotesError(t *testing.T) {
	base := errors.New("skipped")
	hint := hints.Wrap(base)

	if !hints.IsHint(hint) {
		t.Error("Wrap() did not produce a hint")
	}
	if !errors.Is(hint, base) {
		t.Error("wrapped hint lost its cause")
	}
	if hints.Wrap(nil) != nil {
		t.Error("Wrap(nil) must be nil")
	}
}

func TestHintSurvivesWrapping(t *testing.T) {
	sentinel := hints.New("disabled")
	wrapped := fmt.Errorf("flushing transcript: %w", sentinel)

	if !hints.IsHint(wrapped) {
		t.Error("hint lost through fmt.Errorf wrapping")
	}
	if !hints.Is(wrapped, sentinel) {
		t.Error("Is() failed to match wrapped sentinel")
	}
}
