package assessment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt construction. Prompts are assembled as ordered named sections
// rendered by a single renderer, so tests can assert on section presence
// without matching prose. Wording inside a section is free to evolve; the
// section set and the sentinels are the contract.

// SystemPrompt frames every model call. The output rules keep replies
// machine-parseable.
const SystemPrompt = "You are a clinical AI assistant.\n" +
	"You provide decision support only, not a final diagnosis.\n" +
	"If risk is high or uncertainty is significant, expert review is required.\n" +
	"CRITICAL OUTPUT RULES:\n" +
	"- Output ONLY a single valid JSON object.\n" +
	"- Do NOT wrap JSON in markdown.\n" +
	"- Do NOT include any text before or after the JSON.\n"

// NoImagingSentinel marks image absence explicitly, so the model never
// confuses a missing image with a zero-quality one.
const NoImagingSentinel = "[NO IMAGING DATA PROVIDED] - Rely STRICTLY on clinical history and symptoms."

// Section names used across the three prompt builders.
const (
	SectionRole        = "role"
	SectionModalities  = "modalities"
	SectionPriority    = "evidence_priority"
	SectionImaging     = "imaging"
	SectionTranscript  = "audio_transcript"
	SectionFusion      = "fusion_summary"
	SectionEvidence    = "evidence"
	SectionPatientData = "patient_data"
	SectionDiagnosis   = "diagnosis_under_review"
	SectionTask        = "task"
	SectionSchema      = "schema"
)

// PromptSection is one named block of prompt text.
type PromptSection struct {
	Name string
	Body string
}

// PromptSpec is an ordered list of sections rendered into the final prompt.
type PromptSpec struct {
	Sections []PromptSection
}

func (p *PromptSpec) add(name, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	p.Sections = append(p.Sections, PromptSection{Name: name, Body: body})
}

// Has reports whether a named section is present.
func (p PromptSpec) Has(name string) bool {
	for _, s := range p.Sections {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Section returns the body of a named section, or "".
func (p PromptSpec) Section(name string) string {
	for _, s := range p.Sections {
		if s.Name == name {
			return s.Body
		}
	}
	return ""
}

// Render joins the sections into the prompt string sent to the model.
func (p PromptSpec) Render() string {
	bodies := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		bodies = append(bodies, strings.TrimSpace(s.Body))
	}
	return strings.Join(bodies, "\n\n")
}

const doctorSchema = `{
  "primary_diagnosis": "Most likely condition",
  "confidence_score": 0-100,
  "risk_level": "Low/Medium/High",
  "risk_drivers": ["factor 1", "factor 2"],
  "treatment_suggestions": ["action 1", "action 2"],
  "red_flags": ["warning 1", "warning 2"],
  "primary_basis": "audio|image|rag|clinical|mixed",
  "evidence_used": ["clinical", "audio", "image", "rag"],
  "evidence_strength": {"clinical": 0.0, "audio": 0.0, "image": 0.0, "rag": 0.0},
  "evidence_conflicts": ["describe conflicts if any, else empty array"]
}`

const patientSchema = `{
  "gentle_summary": "Simple explanation...",
  "what_to_watch": ["symptom 1", "symptom 2"],
  "next_steps": ["action 1", "action 2"],
  "quiz": [
    {"question": "Q1", "options": ["A", "B", "C"], "correct_index": 1, "explanation": "..."},
    {"question": "Q2", "options": ["A", "B", "C"], "correct_index": 0, "explanation": "..."},
    {"question": "Q3", "options": ["A", "B", "C"], "correct_index": 2, "explanation": "..."}
  ],
  "primary_basis": "audio|image|rag|clinical|mixed"
}`

const auditSchema = `{
  "audit_status": "Pass" or "Fail",
  "audit_risk_score": "Low" | "Medium" | "High",
  "critique": ["Point out specific errors or confirm logic"],
  "safety_warning": "Any immediate safety concern?"
}`

const reverseSchema = `{
  "alternative_diagnoses": ["Disease A", "Disease B"],
  "rule_out_logic": [
    {"suspect": "Disease A", "why_dangerous": "...", "action_to_exclude": "Check D-dimer / ECG..."},
    {"suspect": "Disease B", "why_dangerous": "...", "action_to_exclude": "..."}
  ]
}`

// BuildDiagnosisPrompt assembles the first-pass prompt for either view.
// Optional sections (imaging detail, transcript, fusion summary, evidence)
// appear only when their inputs exist; the imaging section always exists,
// carrying the explicit no-imaging sentinel when no image was supplied.
func BuildDiagnosisPrompt(view ViewMode, p PatientContext, finding *ImageFinding, evidenceText string) PromptSpec {
	var spec PromptSpec

	if view == DoctorView {
		spec.add(SectionRole, "You are a clinical AI assistant (Junior Doctor). Provide a primary diagnosis.")
	} else {
		spec.add(SectionRole, "You are a helpful medical assistant explaining to a patient.")
	}

	ragUsed := strings.TrimSpace(evidenceText) != ""
	hint := "N/A"
	if p.Modalities.PrimaryBasisHint != "" {
		hint = string(p.Modalities.PrimaryBasisHint)
	}
	spec.add(SectionModalities, fmt.Sprintf(
		"[MODALITIES]\n- has_audio: %t\n- has_image: %t\n\n"+
			"[QUALITY SCORES] (0.0~1.0, higher = more reliable)\n"+
			"- audio_quality_score: %g\n- image_quality_score: %g\n- rag_used: %t\n- basis_hint: %s",
		p.Modalities.HasAudio, p.Modalities.HasImage,
		p.Modalities.Quality.AudioQualityScore, p.Modalities.Quality.ImageQualityScore,
		ragUsed, hint))

	spec.add(SectionPriority, "[EVIDENCE PRIORITY RULES]\n"+
		"1) If imaging output is NOT interpretable (e.g., LABEL_*), treat it as LOW confidence and do NOT let it override clinical text evidence.\n"+
		"2) If the audio transcript contains heavy noise or repetition, treat it as LOW confidence.\n"+
		"3) Prefer consistent evidence across modalities. If conflict exists, explicitly list conflicts.\n"+
		"4) Never claim sex-specific contradictions for common diseases (e.g., pneumonia can occur in any sex).")

	if finding != nil {
		spec.add(SectionImaging, fmt.Sprintf(
			"[IMAGING DATA DETECTED]\nAI Finding: %s\nConfidence: %.4f\nInterpretable: %t\n"+
				"Evidence Strength: %s\nSuggests Pneumonia: %t\nTop Candidates: %s\nIssues: %s",
			finding.PrimaryFinding, finding.Confidence, finding.Interpretable,
			finding.EvidenceStrength, finding.SuggestsPneumonia,
			jsonDump(finding.TopCandidates), jsonDump(finding.Issues)))
	} else {
		spec.add(SectionImaging, NoImagingSentinel)
	}

	if t := strings.TrimSpace(p.Modalities.AudioTranscript); t != "" {
		spec.add(SectionTranscript, "[AUDIO TRANSCRIPT]\n"+t)
	}
	if f := strings.TrimSpace(p.Modalities.MultimodalSummary); f != "" {
		spec.add(SectionFusion, "[MULTIMODAL FUSION SUMMARY]\n"+f)
	}
	if ragUsed {
		spec.add(SectionEvidence, "[EVIDENCE (RAG)]\n"+
			"Use RAG evidence first when it is relevant and consistent. "+
			"If evidence is insufficient or conflicting, say so and rely on clinical data.\n"+
			evidenceText)
	}

	spec.add(SectionPatientData, fmt.Sprintf(
		"Patient Data:\nAge: %d, Sex: %s\nComplaint: %s\nHistory: %s",
		p.Age, p.Sex, p.Chief, p.History))

	if view == DoctorView {
		spec.add(SectionSchema, "CRITICAL: Return ONLY a single valid JSON object. No markdown.\nTarget JSON Schema:\n"+doctorSchema)
		return spec
	}

	spec.add(SectionTask, fmt.Sprintf(
		"TASK:\n1. Explain the situation simply.\n2. Provide actionable advice.\n"+
			"3. Create a COMPREHENSION QUIZ (Exactly 3 Questions).\n\n"+
			"CRITICAL QUIZ RULES:\n- Do NOT ask about patient history.\n- Exactly 3 questions.\n"+
			"- CONTEXTUAL RELEVANCE: All questions must be strictly about the patient's current complaint (%q).\n"+
			"- ANTI-HALLUCINATION: Avoid unrelated questions.\n"+
			"- LOGIC CHECK: Make sure the 'correct_index' matches the right answer.",
		p.Chief))
	spec.add(SectionSchema, "Return ONLY JSON:\n"+patientSchema)
	return spec
}

// BuildAuditPrompt assembles the safety-audit prompt over a completed
// diagnosis. The hard rules forbid invented demographic contradictions and
// require flagging absolute-certainty language.
func BuildAuditPrompt(p PatientContext, diag DiagnosisResult) PromptSpec {
	var spec PromptSpec

	spec.add(SectionRole, "You are a Senior Chief Physician (Auditor).\n"+
		"Your task: Review the Junior Doctor's diagnosis for logic errors, hallucinations, or safety risks.\n\n"+
		"[HARD SAFETY RULES]\n"+
		"- Do NOT invent sex-specific contradictions for common diseases (e.g., pneumonia can occur in any sex).\n"+
		"- Only flag contradictions that are truly impossible (e.g., pregnancy in a male, wrong-age diseases with absolute claims).\n"+
		"- Do NOT pass statements containing absolute certainty language (\"definitely\", \"guaranteed\") without flagging them.\n"+
		"- If evidence is weak or low quality, recommend expert review instead of failing with invented logic.")

	spec.add(SectionModalities, fmt.Sprintf(
		"[MODALITIES]\nhas_audio=%t, has_image=%t\naudio_quality_score=%g, image_quality_score=%g",
		p.Modalities.HasAudio, p.Modalities.HasImage,
		p.Modalities.Quality.AudioQualityScore, p.Modalities.Quality.ImageQualityScore))

	spec.add(SectionPatientData, fmt.Sprintf(
		"[PATIENT DATA]\nAge: %d, Sex: %s, Complaint: %s", p.Age, p.Sex, p.Chief))

	spec.add(SectionDiagnosis, "[JUNIOR DOCTOR'S DIAGNOSIS]\n"+jsonDump(diag))

	spec.add(SectionTask, "CRITICAL TASK:\n"+
		"1. Check for logical contradictions (true impossibilities).\n"+
		"2. Check for absolute statements (\"definitely\", \"guaranteed\").\n"+
		"3. Assign a Risk Score. Always return a risk score, even when the status is Pass.")

	spec.add(SectionSchema, "Return ONLY this JSON:\n"+auditSchema)
	return spec
}

// BuildReversePrompt assembles the adversarial differential prompt. It runs
// regardless of the audit verdict so the clinician always sees what else
// the presentation could be.
func BuildReversePrompt(p PatientContext, diag DiagnosisResult) PromptSpec {
	var spec PromptSpec

	primary := diag.PrimaryDiagnosis
	if strings.TrimSpace(primary) == "" {
		primary = "Unknown Condition"
	}

	spec.add(SectionRole, fmt.Sprintf(
		"You are a Critical Diagnostic Expert.\nCurrent working diagnosis is: %q.", primary))

	spec.add(SectionTask, "TASK: Challenge this diagnosis.\n"+
		"1. Assume the primary diagnosis is WRONG.\n"+
		"2. What are the most dangerous/life-threatening alternatives (Differential Diagnosis)?\n"+
		"3. List specific \"Rule-out\" actions (Labs/Imaging) to exclude these killers.")

	spec.add(SectionSchema, "Return ONLY this JSON:\n"+reverseSchema)
	return spec
}

func jsonDump(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
