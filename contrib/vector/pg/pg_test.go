package pg

import (
	"testing"
)

func TestVectorToString(t *testing.T) {
	got := vectorToString([]float32{1, 0.5, -2})
	want := "[1.000000,0.500000,-2.000000]"
	if got != want {
		t.Errorf("vectorToString = %q, want %q", got, want)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SSLMode = "bogus"

	if _, err := New(cfg); err == nil {
		t.Error("expected error for invalid ssl mode")
	}
}
