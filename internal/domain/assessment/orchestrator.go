package assessment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunInput is everything the caller supplies for one assessment run.
// Audio arrives as a server-side file path (the upload handler stages it),
// the image as raw bytes.
type RunInput struct {
	PatientID   string
	ViewMode    ViewMode
	Chief       string
	History     string
	Age         int
	Sex         string
	InternPlan  string
	AudioPath   string
	Image       []byte
	ImageLabels []string
	Snapshot    map[string]interface{}
}

// Orchestrator drives one assessment end to end: transcription, image
// analysis, quality scoring, routing, retrieval, the three model passes,
// and final assembly. Every stage failure degrades into the record instead
// of aborting the run.
type Orchestrator struct {
	diag    DiagnosticPass
	audit   AuditorPass
	reverse ReversePass

	vision    VisionClient
	asr       Transcriber
	retriever Retriever

	tieDelta float64
	topK     int
	budget   EvidenceBudget
	log      zerolog.Logger

	now func() time.Time
}

// OrchestratorOpts tunes routing and retrieval. Zero values fall back to
// the defaults.
type OrchestratorOpts struct {
	TieDelta float64
	TopK     int
	Budget   EvidenceBudget
}

// NewOrchestrator wires an orchestrator. Vision, ASR, and retriever may be
// nil; the corresponding stages are then reported as unavailable when their
// inputs appear.
func NewOrchestrator(llm LLMClient, vision VisionClient, asr Transcriber, retriever Retriever, opts OrchestratorOpts, log zerolog.Logger) *Orchestrator {
	if opts.TieDelta <= 0 {
		opts.TieDelta = DefaultTieDelta
	}
	if opts.TopK == 0 {
		opts.TopK = MinTopK
	}
	if opts.Budget.ItemChars == 0 {
		opts.Budget = DefaultEvidenceBudget()
	}
	return &Orchestrator{
		diag:      DiagnosticPass{LLM: llm},
		audit:     AuditorPass{LLM: llm},
		reverse:   ReversePass{LLM: llm},
		vision:    vision,
		asr:       asr,
		retriever: retriever,
		tieDelta:  opts.TieDelta,
		topK:      opts.TopK,
		budget:    opts.Budget,
		log:       log,
		now:       time.Now,
	}
}

// Skip statuses for the audit and reverse passes.
const (
	statusSkippedPatientView = "skipped_patient_view"
	statusOK                 = "ok"
	statusError              = "error"
	statusSkipped            = "skipped"
)

// Run executes the pipeline and returns a complete record. The record is
// always well formed; pass and stage failures surface in ErrorSummary and
// the per-pass Err fields.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) Record {
	started := o.now()
	rec := Record{
		ID:        uuid.NewString(),
		PatientID: in.PatientID,
		ViewMode:  in.ViewMode,
		CreatedAt: started,
		Snapshot:  snapshotInfo(in.Snapshot),
	}
	log := o.log.With().Str("assessment_id", rec.ID).Str("patient_id", in.PatientID).Logger()

	pc := PatientContext{
		Chief:      in.Chief,
		History:    in.History,
		Age:        in.Age,
		Sex:        in.Sex,
		InternPlan: in.InternPlan,
	}
	pc.Modalities.HasAudio = in.AudioPath != ""
	pc.Modalities.HasImage = len(in.Image) > 0
	rec.RouteTag = Route(pc.Modalities.HasAudio, pc.Modalities.HasImage)

	// Transcription.
	if pc.Modalities.HasAudio {
		err := o.runStep(&rec, "transcribe_audio", func() (string, error) {
			if o.asr == nil {
				return "", fmt.Errorf("transcriber not configured")
			}
			t, err := o.asr.Transcribe(ctx, in.AudioPath)
			if err != nil {
				return "", err
			}
			pc.Modalities.AudioTranscript = t.Text
			return fmt.Sprintf("%d chars transcribed", len(t.Text)), nil
		})
		if err != nil {
			rec.Gaps = append(rec.Gaps, failureGap(GapASRFailed))
		}
		aq := ScoreAudio(pc.Modalities.AudioTranscript)
		pc.Modalities.Quality.AudioQualityScore = aq.Score
		pc.Modalities.Quality.AudioIssues = aq.Issues
		rec.Transcript = pc.Modalities.AudioTranscript
	}

	// Image analysis.
	var finding *ImageFinding
	if pc.Modalities.HasImage {
		err := o.runStep(&rec, "analyze_image", func() (string, error) {
			if o.vision == nil {
				return "", fmt.Errorf("vision client not configured")
			}
			f, err := o.vision.Analyze(ctx, in.Image, in.ImageLabels, 3)
			if err != nil {
				return "", err
			}
			finding = &f
			return fmt.Sprintf("finding=%s confidence=%.2f", f.PrimaryFinding, f.Confidence), nil
		})
		if err != nil {
			rec.Gaps = append(rec.Gaps, failureGap(GapVisionFailed))
		}
		iq := ScoreImage(finding)
		pc.Modalities.Quality.ImageQualityScore = iq.Score
		pc.Modalities.Quality.ImageIssues = iq.Issues
		rec.ImageFinding = finding
	}
	rec.Quality = pc.Modalities.Quality

	// Fusion summary feeds both the prompt and the persisted record.
	pc.Modalities.MultimodalSummary = FusionSummary(pc.Modalities, finding)
	rec.FusionSummary = pc.Modalities.MultimodalSummary

	// Retrieval.
	var evidenceText string
	rec.RagEvidence = []RagEvidenceItem{}
	query := ComposeQuery(pc)
	if ShouldUseRAG(query) {
		if o.retriever == nil {
			rec.Gaps = append(rec.Gaps, failureGap(GapRagUnavailable))
		} else {
			err := o.runStep(&rec, "retrieve_evidence", func() (string, error) {
				chunks, err := o.retriever.Query(ctx, query, ClampTopK(o.topK))
				if err != nil {
					return "", err
				}
				evidenceText, rec.RagEvidence = BuildEvidenceBlock(chunks, o.budget)
				return fmt.Sprintf("%d chunks retrieved", len(chunks)), nil
			})
			if err != nil {
				rec.Gaps = append(rec.Gaps, failureGap(GapRagUnavailable))
			}
		}
	}
	rec.RagUsed = evidenceText != ""

	// Basis is decided before the model runs and handed to it as a hint.
	rec.PrimaryBasis = PrimaryBasis(BasisInput{
		HasAudio: pc.Modalities.HasAudio,
		HasImage: pc.Modalities.HasImage,
		AudioQ:   pc.Modalities.Quality.AudioQualityScore,
		ImageQ:   pc.Modalities.Quality.ImageQualityScore,
		RagUsed:  rec.RagUsed,
		TieDelta: o.tieDelta,
	})
	pc.Modalities.PrimaryBasisHint = rec.PrimaryBasis

	if in.ViewMode == PatientView {
		o.runPatient(ctx, &rec, pc, finding, evidenceText, in.Image)
	} else {
		o.runDoctor(ctx, &rec, pc, finding, evidenceText, in.Image)
	}

	Assemble(&rec, pc)
	log.Info().
		Str("route", string(rec.RouteTag)).
		Str("basis", string(rec.PrimaryBasis)).
		Bool("blocked", rec.Blocked).
		Int("errors", len(rec.ErrorSummary)).
		Dur("elapsed", o.now().Sub(started)).
		Msg("assessment complete")
	return rec
}

// runDoctor executes the diagnosis then fans the audit and reverse passes
// out concurrently. Both are skipped when the diagnosis itself degraded.
func (o *Orchestrator) runDoctor(ctx context.Context, rec *Record, pc PatientContext, finding *ImageFinding, evidenceText string, image []byte) {
	o.runStep(rec, "diagnostic_pass", func() (string, error) {
		rec.Diagnosis = o.diag.RunDoctor(ctx, pc, finding, evidenceText, image)
		if rec.Diagnosis.Degraded() {
			return "", fmt.Errorf("%s", rec.Diagnosis.Err)
		}
		return fmt.Sprintf("diagnosis=%s confidence=%d", rec.Diagnosis.PrimaryDiagnosis, rec.Diagnosis.ConfidenceScore), nil
	})

	if rec.Diagnosis.Degraded() {
		rec.Gaps = append(rec.Gaps, failureGap(GapDiagnosisFailed))
		rec.Audit = SkippedAudit(StatusSkippedDiagnosisFailure)
		rec.Reverse = SkippedReverse(StatusSkippedDiagnosisFailure)
		o.addSkippedStep(rec, "audit_pass", StatusSkippedDiagnosisFailure)
		o.addSkippedStep(rec, "reverse_pass", StatusSkippedDiagnosisFailure)
		return
	}

	var wg sync.WaitGroup
	var audit AuditResult
	var reverse ReverseResult
	var auditMS, reverseMS int64
	wg.Add(2)
	go func() {
		defer wg.Done()
		t0 := o.now()
		audit = o.audit.Run(ctx, pc, rec.Diagnosis)
		auditMS = o.now().Sub(t0).Milliseconds()
	}()
	go func() {
		defer wg.Done()
		t0 := o.now()
		reverse = o.reverse.Run(ctx, pc, rec.Diagnosis)
		reverseMS = o.now().Sub(t0).Milliseconds()
	}()
	wg.Wait()

	rec.Audit = audit
	rec.Reverse = reverse
	if audit.Err != "" {
		rec.Gaps = append(rec.Gaps, failureGap(GapAuditFailed))
	}
	if reverse.Err != "" {
		rec.Gaps = append(rec.Gaps, failureGap(GapReverseFailed))
	}
	o.addPassStep(rec, "audit_pass", auditMS, audit.Err,
		fmt.Sprintf("status=%s risk=%s", audit.AuditStatus, audit.AuditRiskScore))
	o.addPassStep(rec, "reverse_pass", reverseMS, reverse.Err,
		fmt.Sprintf("%d alternatives", len(reverse.AlternativeDiagnoses)))
}

// runPatient executes the simplified explanation. The audit and reverse
// passes do not apply to the patient-facing view.
func (o *Orchestrator) runPatient(ctx context.Context, rec *Record, pc PatientContext, finding *ImageFinding, evidenceText string, image []byte) {
	err := o.runStep(rec, "diagnostic_pass", func() (string, error) {
		r := o.diag.RunPatient(ctx, pc, finding, evidenceText, image)
		rec.PatientReport = &r
		if r.Degraded() {
			return "", fmt.Errorf("%s", r.Err)
		}
		return fmt.Sprintf("%d quiz questions", len(r.Quiz)), nil
	})
	if err != nil {
		rec.Gaps = append(rec.Gaps, failureGap(GapDiagnosisFailed))
	}
	rec.Audit = SkippedAudit(statusSkippedPatientView)
	rec.Reverse = SkippedReverse(statusSkippedPatientView)
	o.addSkippedStep(rec, "audit_pass", statusSkippedPatientView)
	o.addSkippedStep(rec, "reverse_pass", statusSkippedPatientView)
}

// FusionSummary renders the per-modality one-liners injected into prompts
// and persisted with the record. Empty when no modality is present.
func FusionSummary(m ModalityBundle, finding *ImageFinding) string {
	var lines []string
	if m.HasAudio {
		line := fmt.Sprintf("- audio: transcript captured (quality=%.3f)", m.Quality.AudioQualityScore)
		if len(m.Quality.AudioIssues) > 0 {
			line += " issues=" + strings.Join(m.Quality.AudioIssues, ",")
		}
		lines = append(lines, line)
	}
	if m.HasImage {
		if finding != nil {
			lines = append(lines, fmt.Sprintf("- image: %s (confidence=%.2f, strength=%s, quality=%.3f)",
				finding.PrimaryFinding, finding.Confidence, finding.EvidenceStrength, m.Quality.ImageQualityScore))
		} else {
			lines = append(lines, "- image: provided but analysis unavailable")
		}
	}
	if c := modalityConflict(m.AudioTranscript, finding); c != "" {
		lines = append(lines, "- conflict: "+c)
	}
	return strings.Join(lines, "\n")
}

var pneumoniaTerms = []string{"pneumonia", "lung infection", "chest infection"}

// modalityConflict flags the one cross-modal contradiction the pipeline can
// detect deterministically: speech asserting pneumonia while interpretable
// imaging does not support it.
func modalityConflict(transcript string, finding *ImageFinding) string {
	if finding == nil || !finding.Interpretable || finding.SuggestsPneumonia {
		return ""
	}
	lower := strings.ToLower(transcript)
	for _, t := range pneumoniaTerms {
		if strings.Contains(lower, t) {
			return "audio mentions " + t + " but imaging does not support pneumonia"
		}
	}
	return ""
}

func (o *Orchestrator) runStep(rec *Record, name string, fn func() (string, error)) error {
	t0 := o.now()
	summary, err := fn()
	step := TraceStep{
		Step:      name,
		LatencyMS: o.now().Sub(t0).Milliseconds(),
		Summary:   summary,
	}
	if err != nil {
		step.Status = statusError
		step.Error = err.Error()
		rec.ErrorSummary = append(rec.ErrorSummary, name+": "+err.Error())
	} else {
		step.Status = statusOK
		step.Success = true
	}
	rec.Trace = append(rec.Trace, step)
	return err
}

func (o *Orchestrator) addPassStep(rec *Record, name string, latencyMS int64, passErr, summary string) {
	step := TraceStep{Step: name, LatencyMS: latencyMS, Summary: summary}
	if passErr != "" {
		step.Status = statusError
		step.Error = passErr
		rec.ErrorSummary = append(rec.ErrorSummary, name+": "+passErr)
	} else {
		step.Status = statusOK
		step.Success = true
	}
	rec.Trace = append(rec.Trace, step)
}

func (o *Orchestrator) addSkippedStep(rec *Record, name, reason string) {
	rec.Trace = append(rec.Trace, TraceStep{Step: name, Status: statusSkipped, Summary: reason})
}

// snapshotKeyLimit caps how many snapshot keys are echoed back with the
// record; Size still reports the full count.
const snapshotKeyLimit = 10

func snapshotInfo(snap map[string]interface{}) SnapshotInfo {
	if len(snap) == 0 {
		return SnapshotInfo{Provided: snap != nil, Keys: []string{}}
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > snapshotKeyLimit {
		keys = keys[:snapshotKeyLimit]
	}
	return SnapshotInfo{Provided: true, Keys: keys, Size: len(snap)}
}
