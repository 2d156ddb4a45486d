package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardlight/wardlight/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const assessmentCols = `id, patient_id, view_mode, route_tag, primary_basis, rag_used, blocked,
	report, transcript, fusion_summary,
	quality_json, diagnosis_json, patient_report_json, audit_json, reverse_json,
	image_finding_json, rag_evidence_json, gaps_json, tool_trace_json,
	error_summary_json, snapshot_json, created_at`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	quality, err := json.Marshal(rec.Quality)
	if err != nil {
		return fmt.Errorf("marshal quality: %w", err)
	}
	diagnosis, err := json.Marshal(rec.Diagnosis)
	if err != nil {
		return fmt.Errorf("marshal diagnosis: %w", err)
	}
	audit, err := json.Marshal(rec.Audit)
	if err != nil {
		return fmt.Errorf("marshal audit: %w", err)
	}
	reverse, err := json.Marshal(rec.Reverse)
	if err != nil {
		return fmt.Errorf("marshal reverse: %w", err)
	}
	patientReport, err := marshalNullable(rec.PatientReport)
	if err != nil {
		return fmt.Errorf("marshal patient report: %w", err)
	}
	imageFinding, err := marshalNullable(rec.ImageFinding)
	if err != nil {
		return fmt.Errorf("marshal image finding: %w", err)
	}
	ragEvidence, _ := json.Marshal(rec.RagEvidence)
	gaps, _ := json.Marshal(rec.Gaps)
	trace, _ := json.Marshal(rec.Trace)
	errorSummary, _ := json.Marshal(rec.ErrorSummary)
	snapshot, _ := json.Marshal(rec.Snapshot)

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO assessment (id, patient_id, view_mode, route_tag, primary_basis, rag_used, blocked,
			report, transcript, fusion_summary,
			quality_json, diagnosis_json, patient_report_json, audit_json, reverse_json,
			image_finding_json, rag_evidence_json, gaps_json, tool_trace_json,
			error_summary_json, snapshot_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		rec.ID, rec.PatientID, rec.ViewMode, rec.RouteTag, rec.PrimaryBasis, rec.RagUsed, rec.Blocked,
		rec.Report, rec.Transcript, rec.FusionSummary,
		quality, diagnosis, patientReport, audit, reverse,
		imageFinding, ragEvidence, gaps, trace,
		errorSummary, snapshot, rec.CreatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Record, error) {
	rec, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+assessmentCols+` FROM assessment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM assessment`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+assessmentCols+` FROM assessment ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM assessment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+assessmentCols+` FROM assessment WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *repoPG) collect(rows pgx.Rows, total int) ([]*Record, int, error) {
	var items []*Record
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *repoPG) scan(row pgx.Row) (*Record, error) {
	var rec Record
	var quality, diagnosis, audit, reverse []byte
	var patientReport, imageFinding []byte
	var ragEvidence, gaps, trace, errorSummary, snapshot []byte

	err := row.Scan(&rec.ID, &rec.PatientID, &rec.ViewMode, &rec.RouteTag, &rec.PrimaryBasis, &rec.RagUsed, &rec.Blocked,
		&rec.Report, &rec.Transcript, &rec.FusionSummary,
		&quality, &diagnosis, &patientReport, &audit, &reverse,
		&imageFinding, &ragEvidence, &gaps, &trace,
		&errorSummary, &snapshot, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(quality, &rec.Quality); err != nil {
		return nil, fmt.Errorf("decode quality: %w", err)
	}
	if err := json.Unmarshal(diagnosis, &rec.Diagnosis); err != nil {
		return nil, fmt.Errorf("decode diagnosis: %w", err)
	}
	if err := json.Unmarshal(audit, &rec.Audit); err != nil {
		return nil, fmt.Errorf("decode audit: %w", err)
	}
	if err := json.Unmarshal(reverse, &rec.Reverse); err != nil {
		return nil, fmt.Errorf("decode reverse: %w", err)
	}
	if len(patientReport) > 0 {
		rec.PatientReport = &PatientReport{}
		if err := json.Unmarshal(patientReport, rec.PatientReport); err != nil {
			return nil, fmt.Errorf("decode patient report: %w", err)
		}
	}
	if len(imageFinding) > 0 {
		rec.ImageFinding = &ImageFinding{}
		if err := json.Unmarshal(imageFinding, rec.ImageFinding); err != nil {
			return nil, fmt.Errorf("decode image finding: %w", err)
		}
	}
	_ = json.Unmarshal(ragEvidence, &rec.RagEvidence)
	_ = json.Unmarshal(gaps, &rec.Gaps)
	_ = json.Unmarshal(trace, &rec.Trace)
	_ = json.Unmarshal(errorSummary, &rec.ErrorSummary)
	_ = json.Unmarshal(snapshot, &rec.Snapshot)
	return &rec, nil
}

// marshalNullable keeps optional sub-documents as SQL NULL instead of the
// JSON literal "null".
func marshalNullable(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case *PatientReport:
		if x == nil {
			return nil, nil
		}
	case *ImageFinding:
		if x == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
