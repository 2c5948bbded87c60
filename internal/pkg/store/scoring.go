package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/store/xpgx"
)

var scoringColumns = []string{"response_id", "committee_member_user_id", "score", "numeric", "updated_at"}

func (s *store) UpsertScoringEntry(ctx context.Context, e *domain.ScoringEntry) error {
	query := builder().Insert(tableScoring).
		Columns(scoringColumns...).
		Values(e.ResponseID, e.CommitteeMemberUserID, string(e.Score), e.Numeric, e.UpdatedAt).
		Suffix(`
on conflict (response_id, committee_member_user_id)
do update
set
	score = excluded.score,
	numeric = excluded.numeric,
	updated_at = excluded.updated_at`)

	_, err := xpgx.Execx(ctx, s.pool, query)
	return err
}

func (s *store) ListScoringEntries(ctx context.Context, responseIDs ...string) ([]*domain.ScoringEntry, error) {
	if len(responseIDs) == 0 {
		return nil, nil
	}

	query := builder().Select(scoringColumns...).
		From(tableScoring).
		Where(sq.Eq{"response_id": responseIDs}).
		OrderBy("response_id, committee_member_user_id")

	return xpgx.Selectx[domain.ScoringEntry](ctx, s.pool, query)
}
