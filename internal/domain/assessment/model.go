package assessment

import (
	"time"
)

// ViewMode selects which output schema the diagnostic pass produces.
type ViewMode string

const (
	DoctorView  ViewMode = "Doctor View"
	PatientView ViewMode = "Patient View"
)

// Valid reports whether the view mode is one of the two supported values.
func (v ViewMode) Valid() bool {
	return v == DoctorView || v == PatientView
}

// RouteTag classifies which modalities were supplied for an assessment.
// It is derived from presence flags only, never from quality scores.
type RouteTag string

const (
	RouteNone       RouteTag = "none"
	RouteAudioOnly  RouteTag = "audio_only"
	RouteImageOnly  RouteTag = "image_only"
	RouteAudioImage RouteTag = "audio_image"
)

// Basis names the single modality a diagnosis is declared to rest on.
type Basis string

const (
	BasisClinical Basis = "clinical"
	BasisAudio    Basis = "audio"
	BasisImage    Basis = "image"
	BasisRAG      Basis = "rag"
	BasisMixed    Basis = "mixed"
)

// Strength is the low/medium/high reliability label attached to imaging
// evidence, derived deterministically from interpretability and confidence.
type Strength string

const (
	StrengthLow    Strength = "low"
	StrengthMedium Strength = "medium"
	StrengthHigh   Strength = "high"
)

// RiskLevel is the three-step clinical risk scale shared by the diagnostic
// and audit passes.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// QualityScores carries per-modality reliability scores in [0,1]. Scores are
// always present, defaulting to 0.0 when the modality is absent.
type QualityScores struct {
	AudioQualityScore float64  `json:"audio_quality_score"`
	ImageQualityScore float64  `json:"image_quality_score"`
	AudioIssues       []string `json:"audio_issues,omitempty"`
	ImageIssues       []string `json:"image_issues,omitempty"`
}

// ModalityBundle describes the non-text inputs attached to a patient context.
type ModalityBundle struct {
	HasAudio          bool          `json:"has_audio"`
	HasImage          bool          `json:"has_image"`
	AudioTranscript   string        `json:"audio_transcript,omitempty"`
	MultimodalSummary string        `json:"multimodal_summary,omitempty"`
	Quality           QualityScores `json:"quality"`
	PrimaryBasisHint  Basis         `json:"primary_basis_hint,omitempty"`
}

// PatientContext is the transient clinical input for one orchestration call.
type PatientContext struct {
	Chief      string         `json:"chief"`
	History    string         `json:"history"`
	Age        int            `json:"age"`
	Sex        string         `json:"sex"`
	InternPlan string         `json:"intern_plan,omitempty"`
	Modalities ModalityBundle `json:"modalities"`
}

// LabelScore is one candidate classification label with its probability.
type LabelScore struct {
	Label string  `json:"label"`
	Prob  float64 `json:"prob"`
}

// ImageFinding is the structured output of the vision classifier for a
// single chest image.
type ImageFinding struct {
	Model             string       `json:"model,omitempty"`
	Mode              string       `json:"mode,omitempty"`
	PrimaryFinding    string       `json:"primary_finding"`
	Confidence        float64      `json:"confidence"`
	Interpretable     bool         `json:"interpretable"`
	EvidenceStrength  Strength     `json:"evidence_strength"`
	SuggestsPneumonia bool         `json:"suggests_pneumonia"`
	TopCandidates     []LabelScore `json:"top_candidates"`
	Issues            []string     `json:"issues"`
}

// RagEvidenceItem is one retrieved guideline snippet, trimmed for prompting
// and persistence.
type RagEvidenceItem struct {
	SourceFile string   `json:"source_file"`
	Category   string   `json:"category,omitempty"`
	Score      *float64 `json:"score"`
	Snippet    string   `json:"snippet"`
}

// RetrievedChunk is the raw retriever result before snippet trimming.
type RetrievedChunk struct {
	SourceFile string   `json:"source_file"`
	Category   string   `json:"category,omitempty"`
	Score      *float64 `json:"score"`
	Text       string   `json:"text"`
}

// EvidenceWeights records how strongly each evidence channel supported the
// diagnosis, as declared by the model.
type EvidenceWeights struct {
	Clinical float64 `json:"clinical"`
	Audio    float64 `json:"audio"`
	Image    float64 `json:"image"`
	RAG      float64 `json:"rag"`
}

// DiagnosisResult is the Doctor View output of the diagnostic pass. A
// degraded result has Err set and a generic fallback in PrimaryDiagnosis;
// it is still well formed and safe to persist.
type DiagnosisResult struct {
	PrimaryDiagnosis     string          `json:"primary_diagnosis"`
	ConfidenceScore      int             `json:"confidence_score"`
	RiskLevel            RiskLevel       `json:"risk_level"`
	RiskDrivers          []string        `json:"risk_drivers"`
	TreatmentSuggestions []string        `json:"treatment_suggestions"`
	RedFlags             []string        `json:"red_flags"`
	PrimaryBasis         Basis           `json:"primary_basis"`
	EvidenceUsed         []string        `json:"evidence_used"`
	EvidenceStrength     EvidenceWeights `json:"evidence_strength"`
	EvidenceConflicts    []string        `json:"evidence_conflicts"`
	Err                  string          `json:"error,omitempty"`
}

// Degraded reports whether the pass failed and substituted a fallback.
func (d DiagnosisResult) Degraded() bool { return d.Err != "" }

// QuizQuestion is one multiple-choice comprehension question in the Patient
// View payload. CorrectIndex always indexes into Options.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

// PatientReport is the simplified Patient View output of the diagnostic
// pass: a gentle summary plus exactly three comprehension-quiz questions.
type PatientReport struct {
	GentleSummary string         `json:"gentle_summary"`
	WhatToWatch   []string       `json:"what_to_watch"`
	NextSteps     []string       `json:"next_steps"`
	Quiz          []QuizQuestion `json:"quiz"`
	PrimaryBasis  Basis          `json:"primary_basis"`
	Err           string         `json:"error,omitempty"`
}

// Degraded reports whether the pass failed and substituted a fallback.
func (p PatientReport) Degraded() bool { return p.Err != "" }

// Audit statuses. An empty status means the audit never ran (skipped).
const (
	AuditPass = "Pass"
	AuditFail = "Fail"
)

// AuditResult is the safety auditor's verdict on a diagnosis.
type AuditResult struct {
	AuditStatus    string    `json:"audit_status"`
	AuditRiskScore RiskLevel `json:"audit_risk_score"`
	Critique       []string  `json:"critique"`
	SafetyWarning  string    `json:"safety_warning,omitempty"`
	Err            string    `json:"error,omitempty"`
}

// Failed reports whether the audit explicitly failed the diagnosis. A
// skipped or degraded audit is not a failure.
func (a AuditResult) Failed() bool { return a.AuditStatus == AuditFail }

// RuleOut is one dangerous alternative diagnosis and the concrete action
// that excludes it.
type RuleOut struct {
	Suspect         string `json:"suspect"`
	WhyDangerous    string `json:"why_dangerous"`
	ActionToExclude string `json:"action_to_exclude"`
}

// ReverseResult is the adversarial challenger's ranked list of dangerous
// differentials.
type ReverseResult struct {
	AlternativeDiagnoses []string  `json:"alternative_diagnoses"`
	RuleOutLogic         []RuleOut `json:"rule_out_logic"`
	Err                  string    `json:"error,omitempty"`
}

// Gap is an advisory note about missing clinical input. Gaps never block
// an assessment.
type Gap struct {
	ID              string   `json:"id"`
	Severity        string   `json:"severity"`
	Message         string   `json:"message"`
	SuggestedFields []string `json:"suggested_fields"`
}

// TraceStep records one orchestration stage for the audit trail.
type TraceStep struct {
	Step      string                 `json:"step"`
	Success   bool                   `json:"success"`
	Status    string                 `json:"status"`
	LatencyMS int64                  `json:"latency_ms"`
	Summary   string                 `json:"summary"`
	Error     string                 `json:"error,omitempty"`
	Artifacts map[string]interface{} `json:"artifacts,omitempty"`
}

// SnapshotInfo summarises the caller-provided context snapshot without
// persisting its full contents inline.
type SnapshotInfo struct {
	Provided bool     `json:"provided"`
	Keys     []string `json:"keys"`
	Size     int      `json:"size"`
}

// Record is the immutable result of one assessment invocation: the three
// passes' outputs plus routing and quality metadata. Records are append-only;
// new invocations create new records.
type Record struct {
	ID           string        `json:"assessment_id"`
	PatientID    string        `json:"patient_id,omitempty"`
	ViewMode     ViewMode      `json:"view_mode"`
	RouteTag     RouteTag      `json:"route_tag"`
	PrimaryBasis Basis         `json:"primary_basis"`
	Quality      QualityScores `json:"input_quality"`
	RagUsed      bool          `json:"rag_used"`

	Diagnosis     DiagnosisResult  `json:"diagnosis"`
	PatientReport *PatientReport   `json:"patient_report,omitempty"`
	Audit         AuditResult      `json:"audit"`
	Reverse       ReverseResult    `json:"reverse"`
	ImageFinding  *ImageFinding    `json:"image_findings,omitempty"`
	Transcript    string           `json:"audio_transcript,omitempty"`
	FusionSummary string           `json:"multimodal_summary,omitempty"`
	RagEvidence   []RagEvidenceItem `json:"rag_evidence"`

	// Report is the consumer-facing report text. When the audit gate fires
	// it holds the block notice instead of the diagnosis report; the raw
	// pass outputs above are retained regardless.
	Report  string `json:"report"`
	Blocked bool   `json:"blocked"`

	Gaps         []Gap        `json:"gaps"`
	Trace        []TraceStep  `json:"tool_trace"`
	ErrorSummary []string     `json:"error_summary,omitempty"`
	Snapshot     SnapshotInfo `json:"context_snapshot_used"`
	CreatedAt    time.Time    `json:"created_at"`
}
