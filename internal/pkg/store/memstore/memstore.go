// Package memstore is an in-memory store.Store. It keeps the same
// compare-and-set semantics as the postgres store and hands out copies, so
// callers never alias stored state.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	units        []domain.AdministrativeUnit
	users        map[string]domain.User
	years        map[string]domain.AssessmentYear
	dimensions   map[string]domain.Dimension
	indicators   map[string]domain.Indicator
	subQuestions map[string]domain.SubQuestion
	submissions  map[string]domain.Submission
	transitions  map[string][]domain.Transition
	responses    map[string]domain.Response
	scoring      map[string]map[string]domain.ScoringEntry // response id -> member id
	seq          map[string]int                            // insertion order
	nextSeq      int
}

func New() *Store {
	return &Store{
		users:        map[string]domain.User{},
		years:        map[string]domain.AssessmentYear{},
		dimensions:   map[string]domain.Dimension{},
		indicators:   map[string]domain.Indicator{},
		subQuestions: map[string]domain.SubQuestion{},
		submissions:  map[string]domain.Submission{},
		transitions:  map[string][]domain.Transition{},
		responses:    map[string]domain.Response{},
		scoring:      map[string]map[string]domain.ScoringEntry{},
		seq:          map[string]int{},
	}
}

func (s *Store) touch(id string) {
	if _, ok := s.seq[id]; !ok {
		s.nextSeq++
		s.seq[id] = s.nextSeq
	}
}

func (s *Store) byInsertion(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return s.seq[ids[i]] < s.seq[ids[j]] })
}

// PutUnits replaces the unit table.
func (s *Store) PutUnits(units ...domain.AdministrativeUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = append([]domain.AdministrativeUnit(nil), units...)
}

func (s *Store) PutUsers(users ...domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.ID] = u
	}
}

func (s *Store) ListUnits(context.Context) ([]domain.AdministrativeUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AdministrativeUnit(nil), s.units...), nil
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, constants.ErrDBNotFound
	}
	return &u, nil
}

func (s *Store) CountUsersByRole(_ context.Context, role domain.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateYear(_ context.Context, year *domain.AssessmentYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.years[year.ID]; ok {
		return constants.ErrAlreadyExists
	}
	s.years[year.ID] = *year
	return nil
}

func (s *Store) GetYear(_ context.Context, id string) (*domain.AssessmentYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	y, ok := s.years[id]
	if !ok {
		return nil, constants.ErrDBNotFound
	}
	return &y, nil
}

func (s *Store) UpdateYearStatus(_ context.Context, id string, status domain.YearStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	y, ok := s.years[id]
	if !ok {
		return constants.ErrDBNotFound
	}
	y.Status = status
	s.years[id] = y
	return nil
}

func (s *Store) CreateDimension(_ context.Context, d *domain.Dimension) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dimensions[d.ID]; ok {
		return constants.ErrAlreadyExists
	}
	s.dimensions[d.ID] = *d
	s.touch(d.ID)
	return nil
}

func (s *Store) GetDimension(_ context.Context, id string) (*domain.Dimension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dimensions[id]
	if !ok {
		return nil, constants.ErrDBNotFound
	}
	return &d, nil
}

func (s *Store) ListDimensions(_ context.Context, yearID string) ([]*domain.Dimension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, d := range s.dimensions {
		if d.YearID == yearID {
			ids = append(ids, id)
		}
	}
	s.byInsertion(ids)
	res := make([]*domain.Dimension, 0, len(ids))
	for _, id := range ids {
		d := s.dimensions[id]
		res = append(res, &d)
	}
	return res, nil
}

func (s *Store) UpdateDimensionWeight(_ context.Context, id string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dimensions[id]
	if !ok {
		return constants.ErrDBNotFound
	}
	d.Weight = weight
	s.dimensions[id] = d
	return nil
}

func (s *Store) CreateIndicator(_ context.Context, i *domain.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indicators[i.ID]; ok {
		return constants.ErrAlreadyExists
	}
	s.indicators[i.ID] = *i
	s.touch(i.ID)
	return nil
}

func (s *Store) GetIndicator(_ context.Context, id string) (*domain.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.indicators[id]
	if !ok {
		return nil, constants.ErrDBNotFound
	}
	return &i, nil
}

func (s *Store) ListIndicators(_ context.Context, dimensionID string) ([]*domain.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, i := range s.indicators {
		if i.DimensionID == dimensionID {
			ids = append(ids, id)
		}
	}
	s.byInsertion(ids)
	res := make([]*domain.Indicator, 0, len(ids))
	for _, id := range ids {
		i := s.indicators[id]
		res = append(res, &i)
	}
	return res, nil
}

func (s *Store) UpdateIndicatorWeight(_ context.Context, id string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.indicators[id]
	if !ok {
		return constants.ErrDBNotFound
	}
	i.Weight = weight
	s.indicators[id] = i
	return nil
}

func (s *Store) CreateSubQuestion(_ context.Context, q *domain.SubQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subQuestions[q.ID]; ok {
		return constants.ErrAlreadyExists
	}
	cp := *q
	cp.CheckboxOptions = append([]string(nil), q.CheckboxOptions...)
	s.subQuestions[q.ID] = cp
	s.touch(q.ID)
	return nil
}

func (s *Store) GetSubQuestion(_ context.Context, id string) (*domain.SubQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.subQuestions[id]
	if !ok {
		return nil, constants.ErrDBNotFound
	}
	return &q, nil
}

func (s *Store) ListSubQuestions(_ context.Context, indicatorID string) ([]*domain.SubQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSubQuestions(indicatorID), nil
}

func (s *Store) listSubQuestions(indicatorID string) []*domain.SubQuestion {
	var ids []string
	for id, q := range s.subQuestions {
		if q.IndicatorID == indicatorID {
			ids = append(ids, id)
		}
	}
	s.byInsertion(ids)
	res := make([]*domain.SubQuestion, 0, len(ids))
	for _, id := range ids {
		q := s.subQuestions[id]
		res = append(res, &q)
	}
	return res
}

func (s *Store) UpdateSubQuestionWeight(_ context.Context, id string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.subQuestions[id]
	if !ok {
		return constants.ErrDBNotFound
	}
	q.Weight = weight
	s.subQuestions[id] = q
	return nil
}

func (s *Store) GetFramework(ctx context.Context, yearID string) (*domain.Framework, error) {
	year, err := s.GetYear(ctx, yearID)
	if err != nil {
		return nil, err
	}
	dims, _ := s.ListDimensions(ctx, yearID)

	fw := &domain.Framework{Year: *year}
	for _, d := range dims {
		dn := domain.DimensionNode{Dimension: *d}
		inds, _ := s.ListIndicators(ctx, d.ID)
		for _, i := range inds {
			in := domain.IndicatorNode{Indicator: *i}
			qs, _ := s.ListSubQuestions(ctx, i.ID)
			for _, q := range qs {
				in.SubQuestions = append(in.SubQuestions, *q)
			}
			dn.Indicators = append(dn.Indicators, in)
		}
		fw.Dimensions = append(fw.Dimensions, dn)
	}
	return fw, nil
}
