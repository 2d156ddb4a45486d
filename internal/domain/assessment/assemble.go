package assessment

import (
	"fmt"
	"regexp"
	"strings"
)

// Gap identifiers. Stable so downstream UIs can key off them.
const (
	GapChiefTooShort   = "chief_too_short"
	GapHistorySparse   = "history_no_comorbidity_context"
	GapVitalsSpO2      = "vitals_missing_spo2"
	GapVitalsTemp      = "vitals_missing_temperature"
	GapVitalsRR        = "vitals_missing_respiratory_rate"
	GapVitalsHR        = "vitals_missing_heart_rate"
	GapAudioLowQuality = "audio_low_quality"
	GapImageLowQuality = "image_low_quality"

	GapASRFailed       = "asr_failed"
	GapVisionFailed    = "vision_failed"
	GapRagUnavailable  = "rag_unavailable"
	GapDiagnosisFailed = "diagnosis_failed"
	GapAuditFailed     = "audit_failed"
	GapReverseFailed   = "reverse_failed"
)

const (
	gapSeverityInfo   = "info"
	gapSeverityLow    = "low"
	gapSeverityMedium = "medium"
	gapSeverityHigh   = "high"
)

// failureGaps attach when a pipeline stage fails; the orchestrator collects
// them on the record and Assemble merges them with the input-scan gaps.
var failureGaps = map[string]Gap{
	GapASRFailed: {
		ID:              GapASRFailed,
		Severity:        gapSeverityHigh,
		Message:         "Audio was provided but transcription failed; the assessment ran without the spoken history.",
		SuggestedFields: []string{"audio"},
	},
	GapVisionFailed: {
		ID:              GapVisionFailed,
		Severity:        gapSeverityMedium,
		Message:         "An image was provided but analysis failed; the assessment ran without imaging findings.",
		SuggestedFields: []string{"image"},
	},
	GapRagUnavailable: {
		ID:              GapRagUnavailable,
		Severity:        gapSeverityLow,
		Message:         "Guideline retrieval was unavailable; the assessment ran without reference evidence.",
		SuggestedFields: []string{"knowledge_base"},
	},
	GapDiagnosisFailed: {
		ID:              GapDiagnosisFailed,
		Severity:        gapSeverityHigh,
		Message:         "The diagnostic model call failed; expert review is required.",
		SuggestedFields: []string{"chief", "history"},
	},
	GapAuditFailed: {
		ID:              GapAuditFailed,
		Severity:        gapSeverityLow,
		Message:         "The safety audit could not be completed; the report is shown unaudited.",
		SuggestedFields: []string{},
	},
	GapReverseFailed: {
		ID:              GapReverseFailed,
		Severity:        gapSeverityLow,
		Message:         "The challenger pass could not be completed; no alternative diagnoses were explored.",
		SuggestedFields: []string{},
	},
}

func failureGap(id string) Gap { return failureGaps[id] }

// lowQualityThreshold marks a modality whose score is too weak to lean on.
const lowQualityThreshold = 0.35

// Assemble finalizes a record in place: scans input gaps, applies the audit
// gate, and renders the consumer-facing report text. The raw pass outputs
// on the record are never altered.
func Assemble(rec *Record, pc PatientContext) {
	// Stage-failure gaps collected during the run come first; input-scan
	// gaps follow.
	rec.Gaps = dedupeGaps(append(rec.Gaps, ScanGaps(pc, rec.ViewMode)...))

	if rec.ViewMode == PatientView {
		rec.Report = renderPatientReport(rec)
		return
	}

	if rec.Audit.Failed() {
		rec.Blocked = true
		rec.Report = renderBlockNotice(rec)
		return
	}
	rec.Report = renderDoctorReport(rec)
}

// ScanGaps inspects the clinical text inputs for missing context. Gaps are
// advisory only. In Patient View the vitals gaps soften to informational
// severity with patient-friendly wording.
func ScanGaps(pc PatientContext, view ViewMode) []Gap {
	var gaps []Gap
	combined := strings.ToLower(pc.Chief + " " + pc.History)

	if len(strings.TrimSpace(pc.Chief)) < 10 {
		gaps = append(gaps, Gap{
			ID:              GapChiefTooShort,
			Severity:        gapSeverityMedium,
			Message:         "Chief complaint is very short; more detail improves the assessment.",
			SuggestedFields: []string{"chief_complaint"},
		})
	}
	if !hasComorbidityContext(combined) {
		gaps = append(gaps, Gap{
			ID:              GapHistorySparse,
			Severity:        gapSeverityLow,
			Message:         "History does not mention comorbidities or explicitly deny them.",
			SuggestedFields: []string{"history"},
		})
	}
	gaps = append(gaps, vitalGaps(combined, view)...)

	if pc.Modalities.HasAudio && pc.Modalities.Quality.AudioQualityScore < lowQualityThreshold {
		gaps = append(gaps, Gap{
			ID:              GapAudioLowQuality,
			Severity:        gapSeverityLow,
			Message:         "Audio transcript quality is low; consider re-recording.",
			SuggestedFields: []string{"audio"},
		})
	}
	if pc.Modalities.HasImage && pc.Modalities.Quality.ImageQualityScore < lowQualityThreshold {
		gaps = append(gaps, Gap{
			ID:              GapImageLowQuality,
			Severity:        gapSeverityLow,
			Message:         "Imaging analysis quality is low; findings carry reduced weight.",
			SuggestedFields: []string{"image"},
		})
	}
	return gaps
}

var (
	spo2Pattern = regexp.MustCompile(`\b(spo2|sp o2|oxygen saturation|o2 sat)\b`)
	tempPattern = regexp.MustCompile(`\b(temp|temperature|febrile|fever)\b|°c`)
	rrPattern   = regexp.MustCompile(`\b(respiratory rate|rr)\b`)
	hrPattern   = regexp.MustCompile(`\b(heart rate|hr|bpm|pulse)\b`)
)

type vitalCheck struct {
	id      string
	pattern *regexp.Regexp
	vital   string
	field   string
}

var vitalChecks = []vitalCheck{
	{GapVitalsSpO2, spo2Pattern, "oxygen saturation (SpO2)", "spo2"},
	{GapVitalsTemp, tempPattern, "body temperature", "temperature_c"},
	{GapVitalsRR, rrPattern, "respiratory rate", "respiratory_rate"},
	{GapVitalsHR, hrPattern, "heart rate", "heart_rate"},
}

func vitalGaps(combined string, view ViewMode) []Gap {
	var gaps []Gap
	for _, c := range vitalChecks {
		if c.pattern.MatchString(combined) {
			continue
		}
		g := Gap{
			ID:              c.id,
			Severity:        gapSeverityMedium,
			Message:         fmt.Sprintf("No %s recorded; this limits risk assessment.", c.vital),
			SuggestedFields: []string{c.field},
		}
		if view == PatientView {
			g.Severity = gapSeverityInfo
			g.Message = fmt.Sprintf("Your care team may ask about your %s.", c.vital)
		}
		gaps = append(gaps, g)
	}
	return gaps
}

var comorbidityTerms = []string{
	"diabetes", "hypertension", "copd", "asthma", "heart failure", "ckd",
	"kidney disease", "cancer", "immunocompromised", "smoker", "smoking",
	"no known", "no significant", "denies", "none",
}

func hasComorbidityContext(combined string) bool {
	for _, t := range comorbidityTerms {
		if strings.Contains(combined, t) {
			return true
		}
	}
	return false
}

func dedupeGaps(gaps []Gap) []Gap {
	seen := make(map[string]bool, len(gaps))
	out := make([]Gap, 0, len(gaps))
	for _, g := range gaps {
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		out = append(out, g)
	}
	return out
}

// renderBlockNotice replaces the report when the audit gate fires. The raw
// diagnosis stays on the record for clinician drill-down.
func renderBlockNotice(rec *Record) string {
	var b strings.Builder
	b.WriteString("REPORT WITHHELD: SAFETY AUDIT FAILED\n")
	b.WriteString("The automated diagnosis did not pass safety review and must not be acted on.\n")
	if rec.Audit.SafetyWarning != "" {
		b.WriteString("Safety warning: " + rec.Audit.SafetyWarning + "\n")
	}
	if len(rec.Audit.Critique) > 0 {
		b.WriteString("Auditor critique:\n")
		for _, c := range rec.Audit.Critique {
			b.WriteString("  - " + c + "\n")
		}
	}
	b.WriteString("Expert review is required before any clinical decision.")
	return b.String()
}

func renderDoctorReport(rec *Record) string {
	var b strings.Builder
	d := rec.Diagnosis

	if d.Degraded() {
		b.WriteString("AUTOMATED ASSESSMENT UNAVAILABLE\n")
		b.WriteString("The diagnostic model did not return a usable result. Expert review required.\n")
		writeContextFooter(&b, rec)
		return b.String()
	}

	fmt.Fprintf(&b, "Primary diagnosis: %s (confidence %d/100)\n", d.PrimaryDiagnosis, d.ConfidenceScore)
	fmt.Fprintf(&b, "Risk level: %s\n", d.RiskLevel)
	if len(d.RiskDrivers) > 0 {
		b.WriteString("Risk drivers:\n")
		for _, r := range d.RiskDrivers {
			b.WriteString("  - " + r + "\n")
		}
	}
	if len(d.TreatmentSuggestions) > 0 {
		b.WriteString("Suggested actions:\n")
		for _, t := range d.TreatmentSuggestions {
			b.WriteString("  - " + t + "\n")
		}
	}
	if len(d.RedFlags) > 0 {
		b.WriteString("Red flags:\n")
		for _, f := range d.RedFlags {
			b.WriteString("  - " + f + "\n")
		}
	}
	if len(d.EvidenceConflicts) > 0 {
		b.WriteString("Evidence conflicts:\n")
		for _, c := range d.EvidenceConflicts {
			b.WriteString("  - " + c + "\n")
		}
	}

	switch {
	case rec.Audit.Err != "":
		b.WriteString("Safety audit: unavailable (" + rec.Audit.Err + "). Treat with caution.\n")
	case rec.Audit.AuditStatus == AuditPass:
		fmt.Fprintf(&b, "Safety audit: Pass (risk %s)\n", rec.Audit.AuditRiskScore)
	}
	if rec.Audit.SafetyWarning != "" {
		b.WriteString("Safety warning: " + rec.Audit.SafetyWarning + "\n")
	}

	if rec.Reverse.Err == "" && len(rec.Reverse.RuleOutLogic) > 0 {
		b.WriteString("Rule out before committing:\n")
		for _, r := range rec.Reverse.RuleOutLogic {
			fmt.Fprintf(&b, "  - %s: %s\n", r.Suspect, r.ActionToExclude)
		}
	} else if rec.Reverse.Err != "" && rec.Reverse.Err != StatusSkippedDiagnosisFailure {
		b.WriteString("Differential challenge: unavailable.\n")
	}

	writeContextFooter(&b, rec)
	b.WriteString("Decision support only. Final judgment rests with the treating clinician.")
	return b.String()
}

func renderPatientReport(rec *Record) string {
	var b strings.Builder
	r := rec.PatientReport
	if r == nil || r.Degraded() {
		return "We could not generate your summary right now. Please speak with your care team."
	}
	b.WriteString(r.GentleSummary + "\n")
	if len(r.WhatToWatch) > 0 {
		b.WriteString("Things to watch for:\n")
		for _, w := range r.WhatToWatch {
			b.WriteString("  - " + w + "\n")
		}
	}
	if len(r.NextSteps) > 0 {
		b.WriteString("Next steps:\n")
		for _, s := range r.NextSteps {
			b.WriteString("  - " + s + "\n")
		}
	}
	b.WriteString("This summary is for your understanding and is not a diagnosis.")
	return b.String()
}

func writeContextFooter(b *strings.Builder, rec *Record) {
	fmt.Fprintf(b, "Inputs: route=%s basis=%s rag=%t\n", rec.RouteTag, rec.PrimaryBasis, rec.RagUsed)
	if len(rec.ErrorSummary) > 0 {
		b.WriteString("Degraded stages: " + strings.Join(rec.ErrorSummary, "; ") + "\n")
	}
}
