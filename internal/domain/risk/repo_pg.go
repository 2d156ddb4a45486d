package risk

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

const snapshotCols = `id, patient_id, vitals_json, symptoms_json, result_json, created_at`

func (r *repoPG) Create(ctx context.Context, s *Snapshot) error {
	vitals, err := json.Marshal(s.Vitals)
	if err != nil {
		return fmt.Errorf("marshal vitals: %w", err)
	}
	symptoms, err := json.Marshal(s.Symptoms)
	if err != nil {
		return fmt.Errorf("marshal symptoms: %w", err)
	}
	result, err := json.Marshal(s.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO risk_snapshot (id, patient_id, vitals_json, symptoms_json, result_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.PatientID, vitals, symptoms, result, s.CreatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Snapshot, error) {
	s, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+snapshotCols+` FROM risk_snapshot WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Snapshot, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM risk_snapshot WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+snapshotCols+` FROM risk_snapshot WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Snapshot
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) scan(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	var vitals, symptoms, result []byte
	err := row.Scan(&s.ID, &s.PatientID, &vitals, &symptoms, &result, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(vitals, &s.Vitals); err != nil {
		return nil, fmt.Errorf("decode vitals: %w", err)
	}
	if err := json.Unmarshal(symptoms, &s.Symptoms); err != nil {
		return nil, fmt.Errorf("decode symptoms: %w", err)
	}
	if err := json.Unmarshal(result, &s.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &s, nil
}
