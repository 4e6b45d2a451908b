package common

import (
	"errors"
	"testing"
)

func TestGuardNilView(t *testing.T) {
	if err := Guard(nil, "vault", "generate"); err != nil {
		t.Fatalf("nil view should never pause: %v", err)
	}
}

func TestGuardModuleAndAction(t *testing.T) {
	pauses := NewPauseSet("vault.generate")
	if err := Guard(pauses, "vault", "repay"); err != nil {
		t.Fatalf("repay should pass: %v", err)
	}
	if err := Guard(pauses, "vault", "generate"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}

	pauses.Pause("vault")
	if err := Guard(pauses, "vault", "repay"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("module pause should block every action, got %v", err)
	}
	pauses.Resume("vault")
	pauses.Resume("vault.generate")
	if err := Guard(pauses, "vault", "generate"); err != nil {
		t.Fatalf("resume should unblock: %v", err)
	}
}
