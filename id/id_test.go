package id_test

import (
	"strings"
	"testing"

	"github.com/autumn-order/bifrost-sub000/id"
)

func TestNew_GeneratesPrefixedIDs(t *testing.T) {
	wkr := id.NewWorkerID()
	if wkr.Prefix() != id.PrefixWorker {
		t.Errorf("prefix = %q, want %q", wkr.Prefix(), id.PrefixWorker)
	}
	if !strings.HasPrefix(wkr.String(), "wkr_") {
		t.Errorf("String() = %q, want wkr_ prefix", wkr.String())
	}

	run := id.NewRunID()
	if run.Prefix() != id.PrefixRun {
		t.Errorf("prefix = %q, want %q", run.Prefix(), id.PrefixRun)
	}
}

func TestNew_IDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := id.NewRunID().String()
		if seen[s] {
			t.Fatalf("duplicate id generated: %s", s)
		}
		seen[s] = true
	}
}

func TestParse_RoundTrips(t *testing.T) {
	orig := id.NewWorkerID()

	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse(%q): %v", orig.String(), err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip changed id: %q -> %q", orig.String(), parsed.String())
	}
}

func TestParse_RejectsInvalid(t *testing.T) {
	for _, s := range []string{"", "not a typeid", "wkr_"} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}

func TestNil_IsEmpty(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
	if id.NewRunID().IsNil() {
		t.Error("fresh id reports IsNil")
	}
}
