package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/store/xpgx"
)

var (
	unitColumns = []string{"id", "name", "type", "parent_id", "created_at", "updated_at"}
	userColumns = []string{"id", "name", "role", "official_unit_id"}
)

func (s *store) ListUnits(ctx context.Context) ([]domain.AdministrativeUnit, error) {
	query := builder().Select(unitColumns...).
		From(tableUnits).
		OrderBy("type, name")

	selected, err := xpgx.Selectx[domain.AdministrativeUnit](ctx, s.pool, query)
	if err != nil {
		return nil, wrapErr(err)
	}

	res := make([]domain.AdministrativeUnit, 0, len(selected))
	for _, u := range selected {
		res = append(res, *u)
	}
	return res, nil
}

func (s *store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := builder().Select(userColumns...).
		From(tableUsers).
		Where(sq.Eq{"id": id})

	selected, err := xpgx.Getx[domain.User](ctx, s.pool, query)
	if err != nil {
		return nil, wrapErr(err)
	}
	return selected, nil
}

func (s *store) CountUsersByRole(ctx context.Context, role domain.Role) (int, error) {
	query := builder().Select("count(*)").
		From(tableUsers).
		Where(sq.Eq{"role": string(role)})

	n, err := xpgx.Scalar[int64](ctx, s.pool, query)
	if err != nil {
		return 0, wrapErr(err)
	}
	return int(n), nil
}
