package textutil

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"report", "", 6},
		{"report", "report", 0},
		{"report", "reports", 1},
		{"kitten", "sitting", 3},
		{"café", "cafe", 1},
	}
	for _, tc := range cases {
		if got := Distance(tc.a, tc.b); got != tc.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("", ""); got != 1 {
		t.Fatalf("Similarity of empty strings = %v, want 1", got)
	}
	if got := Similarity("report", "report"); got != 1 {
		t.Fatalf("identical strings = %v, want 1", got)
	}
	got := Similarity("kitten", "sitting")
	want := 1 - 3.0/7.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Similarity(kitten, sitting) = %v, want %v", got, want)
	}
	if got := Similarity("abc", "xyz"); got != 0 {
		t.Fatalf("disjoint strings = %v, want 0", got)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"q4_revenue", "q4_forecast"},
		{"sales deck", "sales data"},
	}
	for _, pair := range pairs {
		if Similarity(pair[0], pair[1]) != Similarity(pair[1], pair[0]) {
			t.Errorf("similarity not symmetric for %q / %q", pair[0], pair[1])
		}
	}
}
