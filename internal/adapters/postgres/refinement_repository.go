package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
)

// RefinementRepository implements ports.RefinementRepository
type RefinementRepository struct {
	BaseRepository
}

// NewRefinementRepository creates a new refinement repository
func NewRefinementRepository(pool *pgxpool.Pool) *RefinementRepository {
	return &RefinementRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

// CreateRun inserts a new refinement run
func (r *RefinementRepository) CreateRun(ctx context.Context, run *models.RefinementRun) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	config, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(run.Meta)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO refinement_runs (
			id, prompt_type, status, original_prompt, best_prompt,
			initial_response, final_response, best_score, rounds,
			max_iterations, config, meta, created_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`

	_, err = r.conn(ctx).Exec(ctx, query,
		run.ID,
		run.PromptType,
		run.Status,
		run.OriginalPrompt,
		run.BestPrompt,
		nullString(run.InitialResponse),
		nullString(run.FinalResponse),
		run.BestScore,
		run.Rounds,
		run.MaxIterations,
		config,
		meta,
		run.CreatedAt,
		nullTime(run.CompletedAt),
	)

	return err
}

// GetRun retrieves a refinement run by ID
func (r *RefinementRepository) GetRun(ctx context.Context, id string) (*models.RefinementRun, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, prompt_type, status, original_prompt, best_prompt,
		       initial_response, final_response, best_score, rounds,
		       max_iterations, config, meta, created_at, completed_at
		FROM refinement_runs
		WHERE id = $1 AND deleted_at IS NULL`

	return r.scanRun(r.conn(ctx).QueryRow(ctx, query, id))
}

// UpdateRun updates the mutable fields of an existing run
func (r *RefinementRepository) UpdateRun(ctx context.Context, run *models.RefinementRun) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	config, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(run.Meta)
	if err != nil {
		return err
	}

	query := `
		UPDATE refinement_runs
		SET status = $1, best_prompt = $2, initial_response = $3,
		    final_response = $4, best_score = $5, rounds = $6,
		    config = $7, meta = $8, completed_at = $9
		WHERE id = $10 AND deleted_at IS NULL`

	result, err := r.conn(ctx).Exec(ctx, query,
		run.Status,
		run.BestPrompt,
		nullString(run.InitialResponse),
		nullString(run.FinalResponse),
		run.BestScore,
		run.Rounds,
		config,
		meta,
		nullTime(run.CompletedAt),
		run.ID,
	)

	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}

	return nil
}

// ListRuns retrieves runs, newest first, with optional status filtering
func (r *RefinementRepository) ListRuns(ctx context.Context, status string, limit, offset int) ([]*models.RefinementRun, error) {
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
		SELECT id, prompt_type, status, original_prompt, best_prompt,
		       initial_response, final_response, best_score, rounds,
		       max_iterations, config, meta, created_at, completed_at
		FROM refinement_runs
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

	return r.scanRuns(rows)
}

// CreateCandidate inserts one accepted candidate
func (r *RefinementRepository) CreateCandidate(ctx context.Context, candidate *models.RefinementCandidate) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO refinement_candidates (
			id, run_id, round, prompt, response, score, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		candidate.ID,
		candidate.RunID,
		candidate.Round,
		candidate.Prompt,
		candidate.Response,
		candidate.Score,
		candidate.CreatedAt,
	)

	return err
}

// GetCandidates retrieves the accepted candidates of a run in round order
func (r *RefinementRepository) GetCandidates(ctx context.Context, runID string) ([]*models.RefinementCandidate, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, run_id, round, prompt, response, score, created_at
		FROM refinement_candidates
		WHERE run_id = $1 AND deleted_at IS NULL
		ORDER BY round ASC`

	rows, err := r.conn(ctx).Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanCandidates(rows)
}

// GetBestCandidate retrieves the highest scoring candidate of a run
func (r *RefinementRepository) GetBestCandidate(ctx context.Context, runID string) (*models.RefinementCandidate, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, run_id, round, prompt, response, score, created_at
		FROM refinement_candidates
		WHERE run_id = $1 AND deleted_at IS NULL
		ORDER BY score DESC NULLS LAST
		LIMIT 1`

	return r.scanCandidate(r.conn(ctx).QueryRow(ctx, query, runID))
}

func (r *RefinementRepository) scanRun(row pgx.Row) (*models.RefinementRun, error) {
	var run models.RefinementRun
	var initialResponse, finalResponse sql.NullString
	var bestScore sql.NullFloat64
	var config, meta []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.PromptType,
		&run.Status,
		&run.OriginalPrompt,
		&run.BestPrompt,
		&initialResponse,
		&finalResponse,
		&bestScore,
		&run.Rounds,
		&run.MaxIterations,
		&config,
		&meta,
		&run.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.InitialResponse = getString(initialResponse)
	run.FinalResponse = getString(finalResponse)
	if bestScore.Valid {
		run.BestScore = bestScore.Float64
	}

	if err := unmarshalJSONField(config, &run.Config); err != nil {
		run.Config = make(map[string]any)
	}
	if run.Config == nil {
		run.Config = make(map[string]any)
	}
	if err := unmarshalJSONField(meta, &run.Meta); err != nil {
		run.Meta = make(map[string]any)
	}
	if run.Meta == nil {
		run.Meta = make(map[string]any)
	}

	run.CompletedAt = getTimePtr(completedAt)
	run.StartedAt = run.CreatedAt
	run.UpdatedAt = run.CreatedAt

	return &run, nil
}

func (r *RefinementRepository) scanRuns(rows pgx.Rows) ([]*models.RefinementRun, error) {
	runs := make([]*models.RefinementRun, 0)

	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *RefinementRepository) scanCandidate(row pgx.Row) (*models.RefinementCandidate, error) {
	var candidate models.RefinementCandidate
	var score sql.NullFloat64

	err := row.Scan(
		&candidate.ID,
		&candidate.RunID,
		&candidate.Round,
		&candidate.Prompt,
		&candidate.Response,
		&score,
		&candidate.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if score.Valid {
		candidate.Score = score.Float64
	}

	return &candidate, nil
}

func (r *RefinementRepository) scanCandidates(rows pgx.Rows) ([]*models.RefinementCandidate, error) {
	candidates := make([]*models.RefinementCandidate, 0)

	for rows.Next() {
		candidate, err := r.scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}

	return candidates, rows.Err()
}
