package assessment

import (
	"strings"
	"testing"
)

func TestShouldUseRAG(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"plain short note", "mild headache since morning", false},
		{"question mark", "could this be cardiac?", true},
		{"guideline keyword", "check the guideline for sepsis", true},
		{"antibiotic keyword", "started empirical antibiotic therapy", true},
		{"what is phrase", "what is the first-line therapy here", true},
		{"long message", strings.Repeat("productive cough with fever ", 5), true},
		{"keyword case insensitive", "Follow the PROTOCOL strictly", true},
	}
	for _, tc := range cases {
		if got := ShouldUseRAG(tc.text); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestClampTopK(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 3}, {1, 3}, {3, 3}, {4, 4}, {5, 5}, {9, 5}, {-1, 3},
	}
	for _, tc := range cases {
		if got := ClampTopK(tc.in); got != tc.want {
			t.Errorf("ClampTopK(%d): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestComposeQuery(t *testing.T) {
	pc := PatientContext{
		Chief:   "fever and cough",
		History: "COPD, smoker",
		Modalities: ModalityBundle{
			AudioTranscript: "patient mentions night sweats",
		},
	}
	got := ComposeQuery(pc)
	want := "fever and cough COPD, smoker patient mentions night sweats"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestComposeQuery_SkipsBlankFields(t *testing.T) {
	got := ComposeQuery(PatientContext{Chief: "  chest pain  "})
	if got != "chest pain" {
		t.Errorf("expected trimmed single field, got %q", got)
	}
}

func TestBuildEvidenceBlock_ItemBudget(t *testing.T) {
	long := strings.Repeat("a", 600)
	chunks := []RetrievedChunk{{SourceFile: "cap.md", Text: long}}

	block, items := BuildEvidenceBlock(chunks, DefaultEvidenceBudget())

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if !strings.HasSuffix(items[0].Snippet, "...") {
		t.Errorf("expected truncated snippet, got %q", items[0].Snippet)
	}
	if len(items[0].Snippet) > snippetChars {
		t.Errorf("snippet exceeds %d chars: %d", snippetChars, len(items[0].Snippet))
	}

	if !strings.Contains(block, "(cap.md)") {
		t.Errorf("expected source marker in block, got %q", block)
	}
	// The prompt line carries at most the per-item budget of text.
	line := strings.TrimPrefix(block, "- (cap.md) ")
	if len(line) > DefaultEvidenceItemChars {
		t.Errorf("prompt text exceeds item budget: %d", len(line))
	}
	if !strings.HasSuffix(line, "...") {
		t.Errorf("expected item truncation marker, got tail %q", line[len(line)-10:])
	}
}

func TestBuildEvidenceBlock_TinyBudgetClamped(t *testing.T) {
	long := strings.Repeat("c", 600)
	chunks := []RetrievedChunk{{SourceFile: "tiny.md", Text: long}}

	// Budgets below the supported floor are pinned there, so per-item
	// truncation always has room for the ellipsis.
	block, items := BuildEvidenceBlock(chunks, EvidenceBudget{ItemChars: 2, TotalChars: 10})

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	line := strings.TrimPrefix(block, "- (tiny.md) ")
	if len(line) > MinEvidenceItemChars {
		t.Errorf("prompt text exceeds clamped item budget: %d", len(line))
	}
	if !strings.HasSuffix(line, "...") {
		t.Errorf("expected truncation marker, got tail %q", line)
	}
}

func TestEvidenceBudgetClamp(t *testing.T) {
	cases := []struct {
		name      string
		in        EvidenceBudget
		wantItem  int
		wantTotal int
	}{
		{"zero uses defaults", EvidenceBudget{}, DefaultEvidenceItemChars, DefaultEvidenceTotalChars},
		{"below floor", EvidenceBudget{ItemChars: 2, TotalChars: 10}, MinEvidenceItemChars, MinEvidenceTotalChars},
		{"above ceiling", EvidenceBudget{ItemChars: 10000, TotalChars: 99999}, MaxEvidenceItemChars, MaxEvidenceTotalChars},
		{"in range untouched", EvidenceBudget{ItemChars: 300, TotalChars: 1500}, 300, 1500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Clamp()
			if got.ItemChars != tc.wantItem || got.TotalChars != tc.wantTotal {
				t.Errorf("Clamp() = {%d, %d}, want {%d, %d}",
					got.ItemChars, got.TotalChars, tc.wantItem, tc.wantTotal)
			}
		})
	}
}

func TestTruncate_ShortLimits(t *testing.T) {
	if got := truncate("abcdef", 0); got != "" {
		t.Errorf("limit 0: got %q", got)
	}
	if got := truncate("abcdef", 2); got != "ab" {
		t.Errorf("limit 2: got %q", got)
	}
	if got := truncate("abcdef", 10); got != "abcdef" {
		t.Errorf("limit 10: got %q", got)
	}
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Errorf("limit 8: got %q", got)
	}
}

func TestBuildEvidenceBlock_TotalBudget(t *testing.T) {
	chunk := RetrievedChunk{SourceFile: "guide.md", Text: strings.Repeat("b", 400)}
	chunks := []RetrievedChunk{chunk, chunk, chunk, chunk, chunk, chunk, chunk}

	block, items := BuildEvidenceBlock(chunks, DefaultEvidenceBudget())

	if len(items) != len(chunks) {
		t.Fatalf("all chunks must be persisted, got %d of %d", len(items), len(chunks))
	}
	if len(block) > DefaultEvidenceTotalChars {
		t.Errorf("block exceeds total budget: %d", len(block))
	}
	lines := strings.Split(block, "\n")
	if len(lines) >= len(chunks) {
		t.Errorf("expected some chunks excluded from prompt, got %d lines", len(lines))
	}
}

func TestBuildEvidenceBlock_NewlinesFlattened(t *testing.T) {
	chunks := []RetrievedChunk{{SourceFile: "s.md", Text: "first line\nsecond line"}}
	block, _ := BuildEvidenceBlock(chunks, DefaultEvidenceBudget())
	if strings.Count(block, "\n") != 0 {
		t.Errorf("expected single-line entry, got %q", block)
	}
	if !strings.Contains(block, "first line second line") {
		t.Errorf("expected flattened text, got %q", block)
	}
}

func TestBuildEvidenceBlock_EmptyInput(t *testing.T) {
	block, items := BuildEvidenceBlock(nil, DefaultEvidenceBudget())
	if block != "" {
		t.Errorf("expected empty block, got %q", block)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestBuildEvidenceBlock_MissingSourceName(t *testing.T) {
	chunks := []RetrievedChunk{{Text: "guidance sentence"}}
	block, _ := BuildEvidenceBlock(chunks, DefaultEvidenceBudget())
	if !strings.Contains(block, "(source)") {
		t.Errorf("expected generic source marker, got %q", block)
	}
}
