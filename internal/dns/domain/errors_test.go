package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsConflict(t *testing.T) {
	conflict := &ConflictError{Zone: "tld.", Reason: "record already exists"}

	if !IsConflict(conflict) {
		t.Error("expected direct ConflictError to match")
	}
	if !IsConflict(fmt.Errorf("change failed: %w", conflict)) {
		t.Error("expected wrapped ConflictError to match")
	}
	if IsConflict(errors.New("some other failure")) {
		t.Error("expected unrelated error not to match")
	}
	if IsConflict(nil) {
		t.Error("expected nil not to match")
	}
}

func TestConflictErrorMessage(t *testing.T) {
	err := &ConflictError{Zone: "tld.", Reason: "NXRRSET"}
	want := "stale zone state in tld.: NXRRSET"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
