package main

import (
	"strings"
	"testing"
)

func TestRenderTableAlignsNumericColumns(t *testing.T) {
	out := renderTable([]string{"Type", "Files"}, [][]string{
		countRow("excel", 12),
		countRow("word", 3),
	}, 1)
	if !strings.Contains(out, "excel") || !strings.Contains(out, "12") {
		t.Fatalf("output missing rows:\n%s", out)
	}
	if !strings.Contains(out, " 3 │") {
		t.Errorf("count column not right aligned:\n%s", out)
	}
}

func TestRenderTableSquaresRaggedRows(t *testing.T) {
	out := renderTable([]string{"A", "B", "C"}, [][]string{{"only"}})
	if !strings.Contains(out, "only") {
		t.Errorf("short row dropped:\n%s", out)
	}
}

func TestRenderPairs(t *testing.T) {
	out := renderPairs([][]string{{"Batch", "abc123"}, countRow("Files", 5)})
	for _, want := range []string{"Field", "Value", "abc123", "5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if out := renderTable(nil, nil); out != "" {
		t.Errorf("output = %q, want empty", out)
	}
}
