package assessment

import (
	"strings"
	"testing"
)

func hasIssue(issues []string, want string) bool {
	for _, i := range issues {
		if i == want {
			return true
		}
	}
	return false
}

func TestScoreAudio_EmptyTranscript(t *testing.T) {
	for _, in := range []string{"", "   ", "[empty transcript]", "[Empty Transcript]"} {
		q := ScoreAudio(in)
		if q.Score != 0.0 {
			t.Errorf("ScoreAudio(%q): expected 0.0, got %v", in, q.Score)
		}
		if !hasIssue(q.Issues, IssueEmptyTranscript) {
			t.Errorf("ScoreAudio(%q): expected empty_transcript issue, got %v", in, q.Issues)
		}
	}
}

func TestScoreAudio_CleanTranscript(t *testing.T) {
	q := ScoreAudio("patient reports worsening cough and fever for three days with chest pain")
	if q.Score != 1.0 {
		t.Errorf("expected 1.0 for clean transcript, got %v", q.Score)
	}
	if len(q.Issues) != 0 {
		t.Errorf("expected no issues, got %v", q.Issues)
	}
}

func TestScoreAudio_EpsilonNoise(t *testing.T) {
	// 3 of 5 tokens are epsilon noise: ratio 0.6 > 0.2.
	q := ScoreAudio("epsilon epsilon epsilon chest pain")
	if !hasIssue(q.Issues, IssueEpsilonNoiseHigh) {
		t.Fatalf("expected epsilon_noise_high, got %v", q.Issues)
	}
	if q.Score != 0.55 {
		t.Errorf("expected 0.55, got %v", q.Score)
	}
}

func TestScoreAudio_EpsilonRatioBoundary(t *testing.T) {
	// Exactly 1 of 5 tokens: ratio 0.2 does not exceed the threshold.
	q := ScoreAudio("epsilon cough fever chills sweats")
	if hasIssue(q.Issues, IssueEpsilonNoiseHigh) {
		t.Errorf("ratio exactly 0.2 should not flag, got %v", q.Issues)
	}
}

func TestScoreAudio_VeryShort(t *testing.T) {
	q := ScoreAudio("chest pain")
	if !hasIssue(q.Issues, IssueVeryShort) {
		t.Fatalf("expected very_short_transcript, got %v", q.Issues)
	}
	if q.Score != 0.65 {
		t.Errorf("expected 0.65, got %v", q.Score)
	}

	// Three words is no longer very short.
	q = ScoreAudio("severe chest pain")
	if hasIssue(q.Issues, IssueVeryShort) {
		t.Errorf("three words should not flag, got %v", q.Issues)
	}
}

func TestScoreAudio_Repetition(t *testing.T) {
	// 8 words, 2 unique: ratio 0.25 < 0.45.
	q := ScoreAudio("pain pain pain pain cough cough cough cough")
	if !hasIssue(q.Issues, IssueRepetitionHigh) {
		t.Fatalf("expected repetition_high, got %v", q.Issues)
	}
	if q.Score != 0.65 {
		t.Errorf("expected 0.65, got %v", q.Score)
	}
}

func TestScoreAudio_RepetitionNotCheckedUnderEightWords(t *testing.T) {
	// 7 words, 1 unique: repetition check only kicks in at 8 words.
	q := ScoreAudio("pain pain pain pain pain pain pain")
	if hasIssue(q.Issues, IssueRepetitionHigh) {
		t.Errorf("under eight words should not flag repetition, got %v", q.Issues)
	}
}

func TestScoreAudio_CombinedDeductionsClamp(t *testing.T) {
	// Epsilon-heavy and repetitive: 1.0 - 0.45 - 0.35 = 0.2.
	q := ScoreAudio(strings.Repeat("epsilon ", 8) + "pain")
	if !hasIssue(q.Issues, IssueEpsilonNoiseHigh) || !hasIssue(q.Issues, IssueRepetitionHigh) {
		t.Fatalf("expected both issues, got %v", q.Issues)
	}
	if q.Score != 0.2 {
		t.Errorf("expected 0.2, got %v", q.Score)
	}
}

func TestScoreAudio_Deterministic(t *testing.T) {
	in := "patient describes epsilon cough with mild fever over two days"
	first := ScoreAudio(in)
	for i := 0; i < 5; i++ {
		if got := ScoreAudio(in); got.Score != first.Score {
			t.Fatalf("non-deterministic score: %v vs %v", got.Score, first.Score)
		}
	}
}

func TestScoreImage_NilFinding(t *testing.T) {
	q := ScoreImage(nil)
	if q.Score != 0.0 {
		t.Errorf("expected 0.0, got %v", q.Score)
	}
	if !hasIssue(q.Issues, IssueNoImageFindings) {
		t.Errorf("expected no_image_findings, got %v", q.Issues)
	}
}

func TestScoreImage_Interpretable(t *testing.T) {
	cases := []struct {
		confidence float64
		strength   Strength
		want       float64
	}{
		{0.9, StrengthHigh, 0.94},   // 0.4 + 0.54
		{0.5, StrengthMedium, 0.65}, // 0.4 + 0.30 - 0.05
		{0.3, StrengthLow, 0.43},    // 0.4 + 0.18 - 0.15
		{1.0, StrengthHigh, 1.0},
	}
	for _, tc := range cases {
		f := &ImageFinding{Interpretable: true, Confidence: tc.confidence, EvidenceStrength: tc.strength}
		if got := ScoreImage(f).Score; got != tc.want {
			t.Errorf("conf=%v strength=%v: expected %v, got %v", tc.confidence, tc.strength, tc.want, got)
		}
	}
}

func TestScoreImage_NotInterpretable(t *testing.T) {
	f := &ImageFinding{Interpretable: false, Confidence: 0.99, EvidenceStrength: StrengthLow}
	q := ScoreImage(f)
	// 0.2 base minus the low-strength discount, confidence ignored.
	if q.Score != 0.05 {
		t.Errorf("expected 0.05, got %v", q.Score)
	}
	if !hasIssue(q.Issues, IssueNotInterpretable) {
		t.Errorf("expected image_not_interpretable, got %v", q.Issues)
	}
}

func TestScoreImage_CarriesFindingIssues(t *testing.T) {
	f := &ImageFinding{
		Interpretable:    true,
		Confidence:       0.8,
		EvidenceStrength: StrengthHigh,
		Issues:           []string{"uninterpretable_label"},
	}
	q := ScoreImage(f)
	if !hasIssue(q.Issues, "uninterpretable_label") {
		t.Errorf("expected finding issues to carry over, got %v", q.Issues)
	}
}

func TestImageEvidenceStrength(t *testing.T) {
	cases := []struct {
		interpretable bool
		confidence    float64
		want          Strength
	}{
		{true, 0.70, StrengthHigh},
		{true, 0.6999, StrengthMedium},
		{true, 0.40, StrengthMedium},
		{true, 0.3999, StrengthLow},
		{true, 0.0, StrengthLow},
		{false, 0.99, StrengthLow},
	}
	for _, tc := range cases {
		got := ImageEvidenceStrength(tc.interpretable, tc.confidence)
		if got != tc.want {
			t.Errorf("interpretable=%v conf=%v: expected %v, got %v",
				tc.interpretable, tc.confidence, tc.want, got)
		}
	}
}
