package store

import (
	"context"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/store/xpgx"
)

type Pool = xpgx.Pool

type UnitReader interface {
	ListUnits(ctx context.Context) ([]domain.AdministrativeUnit, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CountUsersByRole(ctx context.Context, role domain.Role) (int, error)
}

type FrameworkStore interface {
	CreateYear(ctx context.Context, year *domain.AssessmentYear) error
	GetYear(ctx context.Context, id string) (*domain.AssessmentYear, error)
	UpdateYearStatus(ctx context.Context, id string, status domain.YearStatus) error

	CreateDimension(ctx context.Context, d *domain.Dimension) error
	GetDimension(ctx context.Context, id string) (*domain.Dimension, error)
	ListDimensions(ctx context.Context, yearID string) ([]*domain.Dimension, error)
	UpdateDimensionWeight(ctx context.Context, id string, weight float64) error

	CreateIndicator(ctx context.Context, i *domain.Indicator) error
	GetIndicator(ctx context.Context, id string) (*domain.Indicator, error)
	ListIndicators(ctx context.Context, dimensionID string) ([]*domain.Indicator, error)
	UpdateIndicatorWeight(ctx context.Context, id string, weight float64) error

	CreateSubQuestion(ctx context.Context, q *domain.SubQuestion) error
	GetSubQuestion(ctx context.Context, id string) (*domain.SubQuestion, error)
	ListSubQuestions(ctx context.Context, indicatorID string) ([]*domain.SubQuestion, error)
	UpdateSubQuestionWeight(ctx context.Context, id string, weight float64) error

	GetFramework(ctx context.Context, yearID string) (*domain.Framework, error)
}

type ListSubmissionsOpts struct {
	YearID   string
	UnitIDs  []string
	Statuses []domain.Status
}

// SubmissionChange is everything one status change writes: the submission
// row, a history row per hop, and the responses rewritten with it.
type SubmissionChange struct {
	Submission  *domain.Submission
	Expected    domain.Status
	Transitions []*domain.Transition
	Responses   []*domain.Response
}

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, s *domain.Submission) error
	GetSubmission(ctx context.Context, id string) (*domain.Submission, error)
	GetSubmissionByUnitYear(ctx context.Context, unitID, yearID string) (*domain.Submission, error)
	ListSubmissions(ctx context.Context, opts ListSubmissionsOpts) ([]*domain.Submission, error)
	// TransitionSubmission applies c in one unit of work, but only while the
	// stored status still equals c.Expected; otherwise it returns
	// constants.ErrConflict and writes nothing.
	TransitionSubmission(ctx context.Context, c SubmissionChange) error
	// DeleteSubmission removes the submission with its responses and scores
	// under the same compare-and-set rule.
	DeleteSubmission(ctx context.Context, id string, expected domain.Status) error
	ListTransitions(ctx context.Context, submissionID string) ([]*domain.Transition, error)

	UpsertResponse(ctx context.Context, r *domain.Response) error
	GetResponse(ctx context.Context, id string) (*domain.Response, error)
	ListResponses(ctx context.Context, submissionID string) ([]*domain.Response, error)
}

type ScoringRepository interface {
	// UpsertScoringEntry replaces the member's previous entry for the response.
	UpsertScoringEntry(ctx context.Context, e *domain.ScoringEntry) error
	ListScoringEntries(ctx context.Context, responseIDs ...string) ([]*domain.ScoringEntry, error)
}

type Store interface {
	UnitReader
	UserReader
	FrameworkStore
	SubmissionRepository
	ScoringRepository
}

type store struct {
	pool Pool
}

func NewStore(pool Pool) Store {
	return &store{pool}
}
