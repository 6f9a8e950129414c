// Package pgstore provides the PostgreSQL implementation of ingest.Store.
// The id column's primary key plus INSERT .. ON CONFLICT DO NOTHING gives
// the insert-if-absent semantics that make redelivery from edge nodes safe.
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

	"github.com/linnemanlabs/outpost/internal/ingest"
	"github.com/linnemanlabs/outpost/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/outpost/internal/ingest/pgstore")

//go:embed schema.sql
var schema string

// Store persists accepted assessments in PostgreSQL.
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

const recordColumns = `id, patient_id, risk_level, observation, suggestions,
	is_emergency, image_uri, confidence, recorded_at, received_at`

// InsertIfAbsent stores the record unless its id already exists. The first
// received version wins; conflicts are dropped, never merged.
func (s *Store) InsertIfAbsent(ctx context.Context, rec *ingest.StoredRecord) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.InsertIfAbsent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `INSERT INTO central_assessments (` + recordColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		rec.ID, rec.PatientID, rec.RiskLevel, rec.PrimaryObservation,
		triage.EncodeSuggestions(rec.Suggestions), rec.RequiresImmediateEscalation,
		rec.ImageURI, rec.ConfidenceScore, rec.Timestamp, rec.ReceivedAt.UnixMilli(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("insert record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByID retrieves one record.
func (s *Store) GetByID(ctx context.Context, id string) (*ingest.StoredRecord, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByID", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + recordColumns + ` FROM central_assessments WHERE id = $1`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if rec == nil {
		return nil, false, nil
	}
	return rec, true, nil
}

// List returns all records, newest assessment first.
func (s *Store) List(ctx context.Context) ([]*ingest.StoredRecord, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + recordColumns + ` FROM central_assessments
		ORDER BY recorded_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []*ingest.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// scanRecord scans a single row. Returns (nil, nil) when no row is found.
func scanRecord(row pgx.Row) (*ingest.StoredRecord, error) {
	var (
		rec         ingest.StoredRecord
		suggestions string
		receivedAt  int64
	)

	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.RiskLevel, &rec.PrimaryObservation,
		&suggestions, &rec.RequiresImmediateEscalation, &rec.ImageURI,
		&rec.ConfidenceScore, &rec.Timestamp, &receivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	rec.Suggestions = triage.DecodeSuggestions(suggestions)
	rec.ReceivedAt = time.UnixMilli(receivedAt)
	return &rec, nil
}
