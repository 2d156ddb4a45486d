package modelgateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/wardlight/wardlight/internal/domain/assessment"
)

// VisionClient calls the zero-shot image classifier and converts its raw
// label scores into a structured finding.
type VisionClient struct {
	baseURL string
	http    *http.Client
}

func NewVisionClient(baseURL string, client *http.Client) *VisionClient {
	return &VisionClient{baseURL: baseURL, http: client}
}

var defaultCandidateLabels = []string{
	"pneumonia chest x-ray",
	"normal chest x-ray",
	"pleural effusion chest x-ray",
}

// genericLabelPattern matches classifier heads that emit raw index labels
// instead of class names. Such output is not clinically interpretable.
var genericLabelPattern = regexp.MustCompile(`^LABEL_\d+$`)

type classifyRequest struct {
	ImageB64        string   `json:"image_b64"`
	CandidateLabels []string `json:"candidate_labels"`
	TopK            int      `json:"top_k"`
}

type classifyResponse struct {
	Model string `json:"model"`
	Mode  string `json:"mode"`
	Top   []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"top"`
}

// Analyze classifies one image and derives interpretability, evidence
// strength, and the pneumonia flag from the top label.
func (c *VisionClient) Analyze(ctx context.Context, image []byte, candidateLabels []string, topK int) (assessment.ImageFinding, error) {
	if len(candidateLabels) == 0 {
		candidateLabels = defaultCandidateLabels
	}
	if topK <= 0 {
		topK = 3
	}
	req := classifyRequest{
		ImageB64:        base64.StdEncoding.EncodeToString(image),
		CandidateLabels: candidateLabels,
		TopK:            topK,
	}

	var resp classifyResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/classify", req, &resp); err != nil {
		return assessment.ImageFinding{}, fmt.Errorf("vision classify: %w", err)
	}
	if len(resp.Top) == 0 {
		return assessment.ImageFinding{}, fmt.Errorf("vision classify: empty result")
	}

	top := resp.Top[0]
	interpretable := !genericLabelPattern.MatchString(top.Label)

	finding := assessment.ImageFinding{
		Model:             resp.Model,
		Mode:              resp.Mode,
		PrimaryFinding:    top.Label,
		Confidence:        top.Score,
		Interpretable:     interpretable,
		EvidenceStrength:  assessment.ImageEvidenceStrength(interpretable, top.Score),
		SuggestsPneumonia: interpretable && strings.Contains(strings.ToLower(top.Label), "pneumonia"),
		Issues:            []string{},
	}
	if !interpretable {
		finding.Issues = append(finding.Issues, "uninterpretable_label")
	}
	for _, t := range resp.Top {
		finding.TopCandidates = append(finding.TopCandidates, assessment.LabelScore{Label: t.Label, Prob: t.Score})
	}
	return finding, nil
}
