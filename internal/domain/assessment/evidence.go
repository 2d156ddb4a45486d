package assessment

import (
	"fmt"
	"strings"
)

// Guideline-evidence handling: the relevance heuristic that decides whether
// the retriever is consulted at all, and the budgeted assembly of retrieved
// chunks into a prompt block plus trimmed persistence items.

// Retrieval limits. TopK is clamped to [MinTopK, MaxTopK]; character budgets
// bound how much evidence text reaches the prompt.
const (
	MinTopK = 3
	MaxTopK = 5

	DefaultEvidenceItemChars  = 500
	DefaultEvidenceTotalChars = 2200

	MinEvidenceItemChars  = 160
	MaxEvidenceItemChars  = 1200
	MinEvidenceTotalChars = 800
	MaxEvidenceTotalChars = 6000

	snippetChars = 220
)

// ragKeywords is the fixed clinical keyword set that makes a short message
// retrieval-worthy on its own.
var ragKeywords = []string{
	"guideline", "evidence", "protocol", "recommend", "treatment",
	"antibiotic", "pneumonia", "risk", "criteria",
	"what is", "why", "how to", "explain",
}

// ShouldUseRAG decides whether retrieval is worth invoking for the given
// text: long messages, explicit questions, and clinical keywords qualify.
func ShouldUseRAG(text string) bool {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return false
	}
	if len(msg) >= 120 {
		return true
	}
	if strings.Contains(msg, "?") {
		return true
	}
	for _, k := range ragKeywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}

// ClampTopK bounds the retriever fan-out.
func ClampTopK(k int) int {
	if k < MinTopK {
		return MinTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// ComposeQuery joins the patient's clinical text fields into one retrieval
// query.
func ComposeQuery(p PatientContext) string {
	parts := []string{
		p.Chief,
		p.History,
		p.InternPlan,
		p.Modalities.AudioTranscript,
		p.Modalities.MultimodalSummary,
	}
	joined := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			joined = append(joined, s)
		}
	}
	return strings.Join(joined, " ")
}

// EvidenceBudget bounds how much retrieved text reaches the prompt.
type EvidenceBudget struct {
	ItemChars  int
	TotalChars int
}

// DefaultEvidenceBudget returns the standard per-item/total budgets.
func DefaultEvidenceBudget() EvidenceBudget {
	return EvidenceBudget{ItemChars: DefaultEvidenceItemChars, TotalChars: DefaultEvidenceTotalChars}
}

// Clamp bounds both budgets to their supported ranges. Zero or negative
// values fall back to the defaults; anything else is pinned so per-item
// truncation always has room for an ellipsis.
func (b EvidenceBudget) Clamp() EvidenceBudget {
	if b.ItemChars <= 0 {
		b.ItemChars = DefaultEvidenceItemChars
	}
	if b.TotalChars <= 0 {
		b.TotalChars = DefaultEvidenceTotalChars
	}
	if b.ItemChars < MinEvidenceItemChars {
		b.ItemChars = MinEvidenceItemChars
	}
	if b.ItemChars > MaxEvidenceItemChars {
		b.ItemChars = MaxEvidenceItemChars
	}
	if b.TotalChars < MinEvidenceTotalChars {
		b.TotalChars = MinEvidenceTotalChars
	}
	if b.TotalChars > MaxEvidenceTotalChars {
		b.TotalChars = MaxEvidenceTotalChars
	}
	return b
}

// BuildEvidenceBlock converts retrieved chunks into the prompt evidence
// text (one budgeted line per chunk) and the trimmed items persisted with
// the record. Items whose text would blow the total budget are still
// persisted but excluded from the prompt.
func BuildEvidenceBlock(chunks []RetrievedChunk, budget EvidenceBudget) (string, []RagEvidenceItem) {
	budget = budget.Clamp()

	var lines []string
	items := make([]RagEvidenceItem, 0, len(chunks))
	total := 0
	budgetExhausted := false

	for _, chunk := range chunks {
		full := strings.TrimSpace(strings.ReplaceAll(chunk.Text, "\n", " "))
		full = truncate(full, budget.ItemChars)

		items = append(items, RagEvidenceItem{
			SourceFile: chunk.SourceFile,
			Category:   chunk.Category,
			Score:      chunk.Score,
			Snippet:    truncate(full, snippetChars),
		})

		if full == "" || budgetExhausted {
			continue
		}
		source := chunk.SourceFile
		if source == "" {
			source = "source"
		}
		line := fmt.Sprintf("- (%s) %s", source, full)
		if total+len(line) > budget.TotalChars {
			budgetExhausted = true
			continue
		}
		lines = append(lines, line)
		total += len(line)
	}

	return strings.Join(lines, "\n"), items
}

func truncate(s string, limit int) string {
	t := strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	if len(t) <= limit {
		return t
	}
	if limit <= 3 {
		return t[:limit]
	}
	return strings.TrimSpace(t[:limit-3]) + "..."
}
