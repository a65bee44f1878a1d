package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
)

// BenchmarkRepository implements ports.BenchmarkRepository
type BenchmarkRepository struct {
	BaseRepository
}

// NewBenchmarkRepository creates a new benchmark repository
func NewBenchmarkRepository(pool *pgxpool.Pool) *BenchmarkRepository {
	return &BenchmarkRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

// CreateSession inserts a new benchmark session
func (r *BenchmarkRepository) CreateSession(ctx context.Context, session *models.BenchmarkSession) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	config, err := json.Marshal(session.Config)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO benchmark_sessions (
			id, kind, status, config, created_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)`

	_, err = r.conn(ctx).Exec(ctx, query,
		session.ID,
		session.Kind,
		session.Status,
		config,
		session.CreatedAt,
		nullTime(session.CompletedAt),
	)

	return err
}

// GetSession retrieves a benchmark session by ID
func (r *BenchmarkRepository) GetSession(ctx context.Context, id string) (*models.BenchmarkSession, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, kind, status, config, created_at, completed_at
		FROM benchmark_sessions
		WHERE id = $1 AND deleted_at IS NULL`

	return r.scanSession(r.conn(ctx).QueryRow(ctx, query, id))
}

// UpdateSession updates the status and config of an existing session
func (r *BenchmarkRepository) UpdateSession(ctx context.Context, session *models.BenchmarkSession) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	config, err := json.Marshal(session.Config)
	if err != nil {
		return err
	}

	query := `
		UPDATE benchmark_sessions
		SET status = $1, config = $2, completed_at = $3
		WHERE id = $4 AND deleted_at IS NULL`

	result, err := r.conn(ctx).Exec(ctx, query,
		session.Status,
		config,
		nullTime(session.CompletedAt),
		session.ID,
	)

	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}

	return nil
}

// ListSessions retrieves sessions, newest first, with optional status filtering
func (r *BenchmarkRepository) ListSessions(ctx context.Context, status string, limit, offset int) ([]*models.BenchmarkSession, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200 // Maximum cap
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, kind, status, config, created_at, completed_at
		FROM benchmark_sessions
		WHERE deleted_at IS NULL`

	args := []any{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

// CreateSample inserts one benchmark sample
func (r *BenchmarkRepository) CreateSample(ctx context.Context, sample *models.BenchmarkSample) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO benchmark_samples (
			id, session_id, model, category, parameter_set, success,
			latency_ms, memory_delta, gpu_delta, response_length,
			quality, error_kind, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		sample.ID,
		sample.SessionID,
		sample.Model,
		nullString(sample.Category),
		nullString(sample.ParameterSet),
		sample.Success,
		sample.Latency.Milliseconds(),
		sample.MemoryDelta,
		sample.GPUDelta,
		sample.ResponseLength,
		nullFloat64(sample.Quality),
		nullString(sample.ErrorKind),
		sample.CreatedAt,
	)

	return err
}

// GetSamples retrieves the samples of a session in insertion order
func (r *BenchmarkRepository) GetSamples(ctx context.Context, sessionID string) ([]*models.BenchmarkSample, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, session_id, model, category, parameter_set, success,
		       latency_ms, memory_delta, gpu_delta, response_length,
		       quality, error_kind, created_at
		FROM benchmark_samples
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanSamples(rows)
}

// CreatePairReport inserts one concurrent pair report
func (r *BenchmarkRepository) CreatePairReport(ctx context.Context, report *models.PairReport) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO benchmark_pairs (
			id, session_id, model1, model2, model1_success, model2_success,
			model1_latency_ms, model2_latency_ms, total_time_ms,
			overall_success, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		report.ID,
		report.SessionID,
		report.Model1,
		report.Model2,
		report.Model1Success,
		report.Model2Success,
		report.Model1Latency.Milliseconds(),
		report.Model2Latency.Milliseconds(),
		report.TotalTime.Milliseconds(),
		report.OverallSuccess,
		report.CreatedAt,
	)

	return err
}

// GetPairReports retrieves the pair reports of a session in insertion order
func (r *BenchmarkRepository) GetPairReports(ctx context.Context, sessionID string) ([]*models.PairReport, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, session_id, model1, model2, model1_success, model2_success,
		       model1_latency_ms, model2_latency_ms, total_time_ms,
		       overall_success, created_at
		FROM benchmark_pairs
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanPairReports(rows)
}

func (r *BenchmarkRepository) scanSession(row pgx.Row) (*models.BenchmarkSession, error) {
	var session models.BenchmarkSession
	var config []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.Kind,
		&session.Status,
		&config,
		&session.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONField(config, &session.Config); err != nil {
		session.Config = make(map[string]any)
	}
	if session.Config == nil {
		session.Config = make(map[string]any)
	}

	session.CompletedAt = getTimePtr(completedAt)
	session.StartedAt = session.CreatedAt
	session.UpdatedAt = session.CreatedAt

	return &session, nil
}

func (r *BenchmarkRepository) scanSessions(rows pgx.Rows) ([]*models.BenchmarkSession, error) {
	sessions := make([]*models.BenchmarkSession, 0)

	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (r *BenchmarkRepository) scanSamples(rows pgx.Rows) ([]*models.BenchmarkSample, error) {
	samples := make([]*models.BenchmarkSample, 0)

	for rows.Next() {
		var sample models.BenchmarkSample
		var category, parameterSet, errorKind sql.NullString
		var latencyMs int64
		var quality sql.NullFloat64

		err := rows.Scan(
			&sample.ID,
			&sample.SessionID,
			&sample.Model,
			&category,
			&parameterSet,
			&sample.Success,
			&latencyMs,
			&sample.MemoryDelta,
			&sample.GPUDelta,
			&sample.ResponseLength,
			&quality,
			&errorKind,
			&sample.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		sample.Category = getString(category)
		sample.ParameterSet = getString(parameterSet)
		sample.ErrorKind = getString(errorKind)
		sample.Latency = time.Duration(latencyMs) * time.Millisecond
		if quality.Valid {
			sample.Quality = quality.Float64
		}

		samples = append(samples, &sample)
	}

	return samples, rows.Err()
}

func (r *BenchmarkRepository) scanPairReports(rows pgx.Rows) ([]*models.PairReport, error) {
	reports := make([]*models.PairReport, 0)

	for rows.Next() {
		var report models.PairReport
		var m1Latency, m2Latency, totalTime int64

		err := rows.Scan(
			&report.ID,
			&report.SessionID,
			&report.Model1,
			&report.Model2,
			&report.Model1Success,
			&report.Model2Success,
			&m1Latency,
			&m2Latency,
			&totalTime,
			&report.OverallSuccess,
			&report.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		report.Model1Latency = time.Duration(m1Latency) * time.Millisecond
		report.Model2Latency = time.Duration(m2Latency) * time.Millisecond
		report.TotalTime = time.Duration(totalTime) * time.Millisecond

		reports = append(reports, &report)
	}

	return reports, rows.Err()
}
