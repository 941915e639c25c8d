package envutil

import (
	"testing"
	"time"
)

func TestReaders(t *testing.T) {
	t.Setenv("DG_TEST_INT", " 42 ")
	t.Setenv("DG_TEST_BAD_INT", "x")
	t.Setenv("DG_TEST_FLOAT", "0.85")
	t.Setenv("DG_TEST_BOOL", "on")
	t.Setenv("DG_TEST_DUR", "90")
	t.Setenv("DG_TEST_DUR2", "2m")

	if got := Int("DG_TEST_INT", 1); got != 42 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("DG_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if got := Float("DG_TEST_FLOAT", 0); got != 0.85 {
		t.Fatalf("Float: got %v", got)
	}
	if !Bool("DG_TEST_BOOL", false) {
		t.Fatalf("Bool: expected true")
	}
	if got := Duration("DG_TEST_DUR", 0); got != 90*time.Second {
		t.Fatalf("Duration seconds: got %v", got)
	}
	if got := Duration("DG_TEST_DUR2", 0); got != 2*time.Minute {
		t.Fatalf("Duration string: got %v", got)
	}
	if got := String("DG_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("String default: got %q", got)
	}
}
