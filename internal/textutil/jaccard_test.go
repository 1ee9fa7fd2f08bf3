package textutil

import (
	"reflect"
	"testing"
)

func TestJaccard(t *testing.T) {
	a := TokenSet([]string{"Acme Corp", "Q4", "Revenue"})
	b := TokenSet([]string{"Acme Corp", "Q4", "Forecast"})

	// Shared {acme corp, q4} over 4 unique values.
	if got := Jaccard(a, b); got != 0.5 {
		t.Fatalf("Jaccard = %v, want 0.5", got)
	}
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Fatal("Jaccard must be symmetric")
	}
	if got := Jaccard(nil, nil); got != 0 {
		t.Fatalf("Jaccard of empty sets = %v, want 0", got)
	}
}

func TestShared(t *testing.T) {
	a := TokenSet([]string{"alpha", "beta", "gamma"})
	b := TokenSet([]string{"beta", "gamma", "delta"})

	got := Shared(a, b, 0)
	want := []string{"beta", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Shared = %v, want %v", got, want)
	}

	if got := Shared(a, b, 1); len(got) != 1 {
		t.Fatalf("Shared with limit 1 = %v", got)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Résumé: Q4-Revenue report (v2)")
	want := []string{"resume", "revenue", "report"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}

func TestTokenSetFoldsCase(t *testing.T) {
	set := TokenSet([]string{"Acme Corp", "acme corp", " "})
	if len(set) != 1 {
		t.Fatalf("expected folded duplicates to collapse, got %v", set)
	}
}
