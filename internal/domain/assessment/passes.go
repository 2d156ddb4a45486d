package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Token budgets per pass. The diagnostic pass carries the largest schema;
// the patient view additionally renders a quiz.
const (
	diagMaxNewTokens    = 384
	patientMaxNewTokens = 512
	auditMaxNewTokens   = 256
	reverseMaxNewTokens = 256
)

// StatusSkippedDiagnosisFailure marks audit/reverse results that never ran
// because the diagnostic pass itself degraded.
const StatusSkippedDiagnosisFailure = "skipped_due_to_diagnosis_failure"

// DiagnosticPass produces the first-pass diagnosis in either view. A model
// or parse failure yields a well-formed degraded result, never an error.
type DiagnosticPass struct {
	LLM LLMClient
}

// RunDoctor executes the Doctor View diagnosis. The returned result is
// always safe to persist; check Degraded() for fallback substitution.
func (p DiagnosticPass) RunDoctor(ctx context.Context, pc PatientContext, finding *ImageFinding, evidenceText string, image []byte) DiagnosisResult {
	prompt := BuildDiagnosisPrompt(DoctorView, pc, finding, evidenceText).Render()
	raw, err := p.LLM.Run(ctx, prompt, image, diagMaxNewTokens)
	if err != nil {
		return degradedDiagnosis(err.Error())
	}
	var d DiagnosisResult
	if err := json.Unmarshal(raw, &d); err != nil {
		return degradedDiagnosis("decode diagnosis: " + err.Error())
	}
	normalizeDiagnosis(&d)
	return d
}

// RunPatient executes the Patient View explanation with comprehension quiz.
func (p DiagnosticPass) RunPatient(ctx context.Context, pc PatientContext, finding *ImageFinding, evidenceText string, image []byte) PatientReport {
	prompt := BuildDiagnosisPrompt(PatientView, pc, finding, evidenceText).Render()
	raw, err := p.LLM.Run(ctx, prompt, image, patientMaxNewTokens)
	if err != nil {
		return degradedPatientReport(err.Error())
	}
	var r PatientReport
	if err := json.Unmarshal(raw, &r); err != nil {
		return degradedPatientReport("decode patient report: " + err.Error())
	}
	r.Quiz = SanitizeQuiz(r.Quiz)
	if len(r.Quiz) != quizLength {
		return degradedPatientReport(fmt.Sprintf("patient report quiz incomplete: %d of %d usable questions", len(r.Quiz), quizLength))
	}
	if !validBasis(r.PrimaryBasis) {
		r.PrimaryBasis = BasisClinical
	}
	return r
}

// AuditorPass reviews a completed diagnosis for safety. Only an explicit
// "Fail" verdict blocks the report; degraded audits do not.
type AuditorPass struct {
	LLM LLMClient
}

// Run executes the safety audit over the diagnosis.
func (p AuditorPass) Run(ctx context.Context, pc PatientContext, diag DiagnosisResult) AuditResult {
	prompt := BuildAuditPrompt(pc, diag).Render()
	raw, err := p.LLM.Run(ctx, prompt, nil, auditMaxNewTokens)
	if err != nil {
		return degradedAudit(err.Error())
	}
	var a AuditResult
	if err := json.Unmarshal(raw, &a); err != nil {
		return degradedAudit("decode audit: " + err.Error())
	}
	normalizeAudit(&a)
	return a
}

// ReversePass challenges the diagnosis with dangerous differentials. It runs
// even when the audit fails, so the clinician always sees the rule-out list.
type ReversePass struct {
	LLM LLMClient
}

// Run executes the adversarial differential pass.
func (p ReversePass) Run(ctx context.Context, pc PatientContext, diag DiagnosisResult) ReverseResult {
	prompt := BuildReversePrompt(pc, diag).Render()
	raw, err := p.LLM.Run(ctx, prompt, nil, reverseMaxNewTokens)
	if err != nil {
		return ReverseResult{Err: err.Error()}
	}
	var r ReverseResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return ReverseResult{Err: "decode reverse: " + err.Error()}
	}
	if r.AlternativeDiagnoses == nil {
		r.AlternativeDiagnoses = []string{}
	}
	if r.RuleOutLogic == nil {
		r.RuleOutLogic = []RuleOut{}
	}
	return r
}

// SkippedAudit returns the audit placeholder used when the pass never ran.
func SkippedAudit(status string) AuditResult {
	return AuditResult{Critique: []string{}, Err: status}
}

// SkippedReverse returns the reverse placeholder used when the pass never ran.
func SkippedReverse(status string) ReverseResult {
	return ReverseResult{
		AlternativeDiagnoses: []string{},
		RuleOutLogic:         []RuleOut{},
		Err:                  status,
	}
}

// quizLength is the number of comprehension questions a patient report
// must carry.
const quizLength = 3

// SanitizeQuiz enforces the quiz contract: exactly quizLength questions
// survive at most, each with at least two options and a correct index
// inside the option range. Malformed questions are dropped rather than
// repaired, including an out-of-range index, since guessing the intended
// answer would fabricate it.
func SanitizeQuiz(quiz []QuizQuestion) []QuizQuestion {
	out := make([]QuizQuestion, 0, quizLength)
	for _, q := range quiz {
		if strings.TrimSpace(q.Question) == "" || len(q.Options) < 2 {
			continue
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			continue
		}
		out = append(out, q)
		if len(out) == quizLength {
			break
		}
	}
	return out
}

func degradedDiagnosis(reason string) DiagnosisResult {
	return DiagnosisResult{
		PrimaryDiagnosis:     "Undetermined (model output unavailable)",
		ConfidenceScore:      0,
		RiskLevel:            RiskHigh,
		RiskDrivers:          []string{},
		TreatmentSuggestions: []string{},
		RedFlags:             []string{"Automated assessment failed; expert review required."},
		PrimaryBasis:         BasisClinical,
		EvidenceUsed:         []string{},
		EvidenceConflicts:    []string{},
		Err:                  reason,
	}
}

func degradedPatientReport(reason string) PatientReport {
	return PatientReport{
		GentleSummary: "We could not generate an automated explanation right now. Please speak with your care team.",
		WhatToWatch:   []string{},
		NextSteps:     []string{"Contact your care team for guidance."},
		Quiz:          []QuizQuestion{},
		PrimaryBasis:  BasisClinical,
		Err:           reason,
	}
}

func degradedAudit(reason string) AuditResult {
	// No verdict from a degraded audit; it must not block the report.
	return AuditResult{
		AuditRiskScore: RiskMedium,
		Critique:       []string{"Audit pass unavailable; verdict withheld."},
		Err:            reason,
	}
}

func normalizeDiagnosis(d *DiagnosisResult) {
	if strings.TrimSpace(d.PrimaryDiagnosis) == "" {
		d.PrimaryDiagnosis = "Undetermined"
	}
	if d.ConfidenceScore < 0 {
		d.ConfidenceScore = 0
	}
	if d.ConfidenceScore > 100 {
		d.ConfidenceScore = 100
	}
	d.RiskLevel = normalizeRisk(d.RiskLevel, RiskMedium)
	if !validBasis(d.PrimaryBasis) {
		d.PrimaryBasis = BasisClinical
	}
	if d.RiskDrivers == nil {
		d.RiskDrivers = []string{}
	}
	if d.TreatmentSuggestions == nil {
		d.TreatmentSuggestions = []string{}
	}
	if d.RedFlags == nil {
		d.RedFlags = []string{}
	}
	if d.EvidenceUsed == nil {
		d.EvidenceUsed = []string{}
	}
	if d.EvidenceConflicts == nil {
		d.EvidenceConflicts = []string{}
	}
}

func normalizeAudit(a *AuditResult) {
	switch strings.ToLower(strings.TrimSpace(a.AuditStatus)) {
	case "pass":
		a.AuditStatus = AuditPass
	case "fail":
		a.AuditStatus = AuditFail
	default:
		// Unrecognized verdicts never block.
		a.AuditStatus = AuditPass
	}
	a.AuditRiskScore = normalizeRisk(a.AuditRiskScore, RiskMedium)
	if a.Critique == nil {
		a.Critique = []string{}
	}
}

func normalizeRisk(r RiskLevel, fallback RiskLevel) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(string(r))) {
	case "low":
		return RiskLow
	case "medium", "moderate":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return fallback
	}
}

func validBasis(b Basis) bool {
	switch b {
	case BasisClinical, BasisAudio, BasisImage, BasisRAG, BasisMixed:
		return true
	}
	return false
}
