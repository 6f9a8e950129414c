// Package pgstore provides the durable PostgreSQL implementation of
// triage.Store. Risk levels and sync statuses are stored as their enum name
// strings; suggestions and detected vitals use the delimited row encodings
// from the triage package.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/outpost/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/outpost/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists assessments in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
// The pool's lifecycle is owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const assessmentColumns = `id, patient_id, risk_level, symptoms, suggestions,
	is_emergency, image_path, detected_vitals, timestamp, confidence, sync_status`

// Upsert inserts or fully replaces the record by id. The single INSERT ..
// ON CONFLICT statement is atomic and committed before return, which is the
// durability guarantee triage.Store requires.
func (s *Store) Upsert(ctx context.Context, a *triage.Assessment) error {
	ctx, span := tracer.Start(ctx, "pgstore.Upsert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	query := `INSERT INTO assessments (` + assessmentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			patient_id      = EXCLUDED.patient_id,
			risk_level      = EXCLUDED.risk_level,
			symptoms        = EXCLUDED.symptoms,
			suggestions     = EXCLUDED.suggestions,
			is_emergency    = EXCLUDED.is_emergency,
			image_path      = EXCLUDED.image_path,
			detected_vitals = EXCLUDED.detected_vitals,
			timestamp       = EXCLUDED.timestamp,
			confidence      = EXCLUDED.confidence,
			sync_status     = EXCLUDED.sync_status`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.PatientID, string(a.RiskLevel), a.PrimaryObservation,
		triage.EncodeSuggestions(a.Suggestions), a.RequiresImmediateEscalation,
		a.ImageRef, triage.EncodeVitals(a.DetectedVitals),
		a.Timestamp.UnixMilli(), a.ConfidenceScore, string(a.SyncStatus),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert assessment: %w", err)
	}
	return nil
}

// GetByID retrieves one assessment.
func (s *Store) GetByID(ctx context.Context, id string) (*triage.Assessment, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByID", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	a, err := scanAssessment(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// List returns all assessments, newest first.
func (s *Store) List(ctx context.Context) ([]*triage.Assessment, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + assessmentColumns + ` FROM assessments ORDER BY timestamp DESC, id DESC`
	out, err := s.queryAssessments(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

// ListPending returns undelivered records (anything not SYNCED), oldest
// first so delivery order follows creation order.
func (s *Store) ListPending(ctx context.Context) ([]*triage.Assessment, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListPending", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + assessmentColumns + ` FROM assessments
		WHERE sync_status <> $1 ORDER BY timestamp ASC, id ASC`
	out, err := s.queryAssessments(ctx, query, string(triage.SyncSynced))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

// UpdateSyncStatus changes only the sync_status column of one row.
func (s *Store) UpdateSyncStatus(ctx context.Context, id string, status triage.SyncStatus) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateSyncStatus", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE assessments SET sync_status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update sync status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update sync status: no assessment %q", id)
	}
	return nil
}

func (s *Store) queryAssessments(ctx context.Context, query string, args ...any) ([]*triage.Assessment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	var out []*triage.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

// scanAssessment scans a single row. Returns (nil, nil) when no row is found.
func scanAssessment(row pgx.Row) (*triage.Assessment, error) {
	var (
		a           triage.Assessment
		riskLevel   string
		suggestions string
		vitals      string
		imagePath   *string
		tsMillis    int64
		syncStatus  string
	)

	err := row.Scan(
		&a.ID, &a.PatientID, &riskLevel, &a.PrimaryObservation, &suggestions,
		&a.RequiresImmediateEscalation, &imagePath, &vitals, &tsMillis,
		&a.ConfidenceScore, &syncStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	a.RiskLevel = triage.RiskLevel(riskLevel)
	a.Suggestions = triage.DecodeSuggestions(suggestions)
	a.DetectedVitals = triage.DecodeVitals(vitals)
	a.ImageRef = imagePath
	a.Timestamp = time.UnixMilli(tsMillis)
	a.SyncStatus = triage.SyncStatus(syncStatus)

	return &a, nil
}
