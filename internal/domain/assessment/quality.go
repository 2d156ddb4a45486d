package assessment

import (
	"math"
	"regexp"
	"strings"
)

// Evidence-quality scoring for the audio and image modalities. All scoring
// functions are pure, total, and clamp to [0,1]; malformed input is treated
// as empty rather than rejected.

const emptyTranscriptSentinel = "[empty transcript]"

// Audio quality issue flags.
const (
	IssueEmptyTranscript   = "empty_transcript"
	IssueEpsilonNoiseHigh  = "epsilon_noise_high"
	IssueVeryShort         = "very_short_transcript"
	IssueRepetitionHigh    = "repetition_high"
	IssueNoImageFindings   = "no_image_findings"
	IssueNotInterpretable  = "image_not_interpretable"
)

var wordPattern = regexp.MustCompile(`[A-Za-z']+`)

// AudioQuality is the transcript reliability score with its issue flags.
type AudioQuality struct {
	Score  float64  `json:"audio_quality_score"`
	Issues []string `json:"audio_issues"`
}

// ImageQuality is the imaging reliability score with its issue flags.
type ImageQuality struct {
	Score  float64  `json:"image_quality_score"`
	Issues []string `json:"image_issues"`
}

// ImageEvidenceStrength derives the low/medium/high reliability label from
// interpretability and classifier confidence. A non-interpretable label
// (raw LABEL_N output) is always low regardless of confidence.
func ImageEvidenceStrength(interpretable bool, confidence float64) Strength {
	if !interpretable {
		return StrengthLow
	}
	if confidence >= 0.70 {
		return StrengthHigh
	}
	if confidence >= 0.40 {
		return StrengthMedium
	}
	return StrengthLow
}

// ScoreAudio scores a transcript's reliability. An empty transcript (or the
// ASR empty sentinel) short-circuits to 0.0. Otherwise the score starts at
// 1.0 and loses 0.45 when the epsilon-token ratio exceeds 0.2, 0.35 when the
// transcript has fewer than three words, and 0.35 when eight or more words
// repeat heavily (unique-word ratio below 0.45).
func ScoreAudio(transcript string) AudioQuality {
	t := strings.TrimSpace(transcript)
	if t == "" || strings.EqualFold(t, emptyTranscriptSentinel) {
		return AudioQuality{Score: 0.0, Issues: []string{IssueEmptyTranscript}}
	}

	issues := []string{}

	lower := strings.ToLower(t)
	epsCount := strings.Count(lower, "epsilon")
	tokenCount := len(strings.Fields(t))
	if tokenCount < 1 {
		tokenCount = 1
	}
	if float64(epsCount)/float64(tokenCount) > 0.2 {
		issues = append(issues, IssueEpsilonNoiseHigh)
	}

	words := wordPattern.FindAllString(lower, -1)
	if len(words) < 3 {
		issues = append(issues, IssueVeryShort)
	} else if len(words) >= 8 {
		uniq := map[string]struct{}{}
		for _, w := range words {
			uniq[w] = struct{}{}
		}
		if float64(len(uniq))/float64(len(words)) < 0.45 {
			issues = append(issues, IssueRepetitionHigh)
		}
	}

	score := 1.0
	for _, issue := range issues {
		switch issue {
		case IssueEpsilonNoiseHigh:
			score -= 0.45
		case IssueVeryShort, IssueRepetitionHigh:
			score -= 0.35
		}
	}

	return AudioQuality{Score: clamp3(score), Issues: issues}
}

// ScoreImage scores the reliability of a vision finding. A nil finding
// scores 0.0; an interpretable finding starts from 0.4 plus 0.6 times the
// classifier confidence, discounted by weak evidence strength.
func ScoreImage(finding *ImageFinding) ImageQuality {
	if finding == nil {
		return ImageQuality{Score: 0.0, Issues: []string{IssueNoImageFindings}}
	}

	issues := append([]string{}, finding.Issues...)

	score := 0.2
	if finding.Interpretable {
		score = 0.4 + 0.6*finding.Confidence
	} else {
		issues = append(issues, IssueNotInterpretable)
	}

	switch finding.EvidenceStrength {
	case StrengthLow:
		score -= 0.15
	case StrengthMedium:
		score -= 0.05
	}

	return ImageQuality{Score: clamp3(score), Issues: issues}
}

func clamp3(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*1000) / 1000
}
