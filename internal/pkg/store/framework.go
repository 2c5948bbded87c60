package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/store/xpgx"
)

var (
	yearColumns        = []string{"id", "name", "status", "created_at", "updated_at"}
	dimensionColumns   = []string{"id", "year_id", "name", "weight", "created_at", "updated_at"}
	indicatorColumns   = []string{"id", "dimension_id", "name", "weight", "applicable_unit_type", "created_at", "updated_at"}
	subQuestionColumns = []string{"id", "indicator_id", "text", "weight", "response_type", "checkbox_options", "created_at", "updated_at"}
)

func (s *store) CreateYear(ctx context.Context, year *domain.AssessmentYear) error {
	query := builder().Insert(tableYears).
		Columns(yearColumns...).
		Values(year.ID, year.Name, string(year.Status), year.CreatedAt, year.UpdatedAt)

	_, err := xpgx.Execx(ctx, s.pool, query)
	return err
}

func (s *store) GetYear(ctx context.Context, id string) (*domain.AssessmentYear, error) {
	query := builder().Select(yearColumns...).
		From(tableYears).
		Where(sq.Eq{"id": id})

	selected, err := xpgx.Getx[domain.AssessmentYear](ctx, s.pool, query)
	if err != nil {
		return nil, wrapErr(err)
	}
	return selected, nil
}

func (s *store) UpdateYearStatus(ctx context.Context, id string, status domain.YearStatus) error {
	query := builder().Update(tableYears).
		Set("status", string(status)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})

	return s.execOne(ctx, query)
}

func (s *store) CreateDimension(ctx context.Context, d *domain.Dimension) error {
	query := builder().Insert(tableDimensions).
		Columns(dimensionColumns...).
		Values(d.ID, d.YearID, d.Name, d.Weight, d.CreatedAt, d.UpdatedAt)

	_, err := xpgx.Execx(ctx, s.pool, query)
	return err
}

func (s *store) GetDimension(ctx context.Context, id string) (*domain.Dimension, error) {
	query := builder().Select(dimensionColumns...).
		From(tableDimensions).
		Where(sq.Eq{"id": id})

	selected, err := xpgx.Getx[domain.Dimension](ctx, s.pool, query)
	if err != nil {
		return nil, wrapErr(err)
	}
	return selected, nil
}

func (s *store) ListDimensions(ctx context.Context, yearID string) ([]*domain.Dimension, error) {
	query := builder().Select(dimensionColumns...).
		From(tableDimensions).
		Where(sq.Eq{"year_id": yearID}).
		OrderBy("created_at, id")

	return xpgx.Selectx[domain.Dimension](ctx, s.pool, query)
}

func (s *store) UpdateDimensionWeight(ctx context.Context, id string, weight float64) error {
	return s.updateWeight(ctx, tableDimensions, id, weight)
}

func (s *store) CreateIndicator(ctx context.Context, i *domain.Indicator) error {
	query := builder().Insert(tableIndicators).
		Columns(indicatorColumns...).
		Values(i.ID, i.DimensionID, i.Name, i.Weight, string(i.ApplicableUnitType), i.CreatedAt, i.UpdatedAt)

	_, err := xpgx.Execx(ctx, s.pool, query)
	return err
}

func (s *store) GetIndicator(ctx context.Context, id string) (*domain.Indicator, error) {
	query := builder().Select(indicatorColumns...).
		From(tableIndicators).
		Where(sq.Eq{"id": id})

	selected, err := xpgx.Getx[domain.Indicator](ctx, s.pool, query)
	if err != nil {
		return nil, wrapErr(err)
	}
	return selected, nil
}

func (s *store) ListIndicators(ctx context.Context, dimensionID string) ([]*domain.Indicator, error) {
	query := builder().Select(indicatorColumns...).
		From(tableIndicators).
		Where(sq.Eq{"dimension_id": dimensionID}).
		OrderBy("created_at, id")

	return xpgx.Selectx[domain.Indicator](ctx, s.pool, query)
}

func (s *store) UpdateIndicatorWeight(ctx context.Context, id string, weight float64) error {
	return s.updateWeight(ctx, tableIndicators, id, weight)
}

func (s *store) CreateSubQuestion(ctx context.Context, q *domain.SubQuestion) error {
	query := builder().Insert(tableSubQuestions).
		Columns(subQuestionColumns...).
		Values(q.ID, q.IndicatorID, q.Text, q.Weight, string(q.ResponseType), q.CheckboxOptions, q.CreatedAt, q.UpdatedAt)

	_, err := xpgx.Execx(ctx, s.pool, query)
	return err
}

func (s *store) GetSubQuestion(ctx context.Context, id string) (*domain.SubQuestion, error) {
	query := builder().Select(subQuestionColumns...).
		From(tableSubQuestions).
		Where(sq.Eq{"id": id})

	selected, err := xpgx.Getx[domain.SubQuestion](ctx, s.pool, query)
	if err != nil {
		return nil, wrapErr(err)
	}
	return selected, nil
}

func (s *store) ListSubQuestions(ctx context.Context, indicatorID string) ([]*domain.SubQuestion, error) {
	query := builder().Select(subQuestionColumns...).
		From(tableSubQuestions).
		Where(sq.Eq{"indicator_id": indicatorID}).
		OrderBy("created_at, id")

	return xpgx.Selectx[domain.SubQuestion](ctx, s.pool, query)
}

func (s *store) UpdateSubQuestionWeight(ctx context.Context, id string, weight float64) error {
	return s.updateWeight(ctx, tableSubQuestions, id, weight)
}

func (s *store) GetFramework(ctx context.Context, yearID string) (*domain.Framework, error) {
	year, err := s.GetYear(ctx, yearID)
	if err != nil {
		return nil, fmt.Errorf("GetYear: %w", err)
	}

	dims, err := s.ListDimensions(ctx, yearID)
	if err != nil {
		return nil, fmt.Errorf("ListDimensions: %w", err)
	}

	fw := &domain.Framework{Year: *year, Dimensions: make([]domain.DimensionNode, 0, len(dims))}
	for _, d := range dims {
		inds, err := s.ListIndicators(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("ListIndicators, dimension_id-%s: %w", d.ID, err)
		}

		dn := domain.DimensionNode{Dimension: *d, Indicators: make([]domain.IndicatorNode, 0, len(inds))}
		for _, i := range inds {
			qs, err := s.ListSubQuestions(ctx, i.ID)
			if err != nil {
				return nil, fmt.Errorf("ListSubQuestions, indicator_id-%s: %w", i.ID, err)
			}

			in := domain.IndicatorNode{Indicator: *i, SubQuestions: make([]domain.SubQuestion, 0, len(qs))}
			for _, q := range qs {
				in.SubQuestions = append(in.SubQuestions, *q)
			}
			dn.Indicators = append(dn.Indicators, in)
		}
		fw.Dimensions = append(fw.Dimensions, dn)
	}

	return fw, nil
}

func (s *store) updateWeight(ctx context.Context, table, id string, weight float64) error {
	query := builder().Update(table).
		Set("weight", weight).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})

	return s.execOne(ctx, query)
}

// execOne runs an update that must touch exactly one row.
func (s *store) execOne(ctx context.Context, query sq.Sqlizer) error {
	tag, err := xpgx.Execx(ctx, s.pool, query)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return constants.ErrDBNotFound
	}
	return nil
}
