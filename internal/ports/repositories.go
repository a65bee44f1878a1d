package ports

import (
	"context"

	"github.com/longregen/refinery/internal/domain/models"
)

// RefinementRepository defines persistence for refinement runs and their
// accepted candidates.
type RefinementRepository interface {
	CreateRun(ctx context.Context, run *models.RefinementRun) error
	GetRun(ctx context.Context, id string) (*models.RefinementRun, error)
	UpdateRun(ctx context.Context, run *models.RefinementRun) error
	ListRuns(ctx context.Context, status string, limit, offset int) ([]*models.RefinementRun, error)

	CreateCandidate(ctx context.Context, candidate *models.RefinementCandidate) error
	GetCandidates(ctx context.Context, runID string) ([]*models.RefinementCandidate, error)
	GetBestCandidate(ctx context.Context, runID string) (*models.RefinementCandidate, error)
}

// BenchmarkRepository defines persistence for benchmark sessions, their
// samples and pair reports.
type BenchmarkRepository interface {
	CreateSession(ctx context.Context, session *models.BenchmarkSession) error
	GetSession(ctx context.Context, id string) (*models.BenchmarkSession, error)
	UpdateSession(ctx context.Context, session *models.BenchmarkSession) error
	ListSessions(ctx context.Context, status string, limit, offset int) ([]*models.BenchmarkSession, error)

	CreateSample(ctx context.Context, sample *models.BenchmarkSample) error
	GetSamples(ctx context.Context, sessionID string) ([]*models.BenchmarkSample, error)

	CreatePairReport(ctx context.Context, report *models.PairReport) error
	GetPairReports(ctx context.Context, sessionID string) ([]*models.PairReport, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction executes a function within a database transaction.
	// If the function returns an error, the transaction is rolled back;
	// otherwise it is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IDGenerator generates unique IDs for entities
type IDGenerator interface {
	// GenerateRunID generates a new refinement run ID (rfr_xxx)
	GenerateRunID() string

	// GenerateCandidateID generates a new candidate ID (rfc_xxx)
	GenerateCandidateID() string

	// GenerateSessionID generates a new benchmark session ID (rfb_xxx)
	GenerateSessionID() string

	// GenerateSampleID generates a new benchmark sample ID (rfs_xxx)
	GenerateSampleID() string

	// GeneratePairReportID generates a new pair report ID (rfp_xxx)
	GeneratePairReportID() string
}
