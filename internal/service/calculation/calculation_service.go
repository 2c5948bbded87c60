// Package calculation rolls answers up into indicator, dimension and unit
// scores and unit indices into national figures. It reads only validated or
// completed submissions and never fails on missing data: a score without
// inputs is 0 and HasData tells the caller which case it is.
package calculation

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/hierarchy"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/pkg/store"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

type Reader interface {
	GetFramework(ctx context.Context, yearID string) (*domain.Framework, error)
	ListSubmissions(ctx context.Context, opts store.ListSubmissionsOpts) ([]*domain.Submission, error)
	ListResponses(ctx context.Context, submissionID string) ([]*domain.Response, error)
	ListScoringEntries(ctx context.Context, responseIDs ...string) ([]*domain.ScoringEntry, error)
}

// Units exposes the current hierarchy snapshot.
type Units interface {
	Index() *hierarchy.Index
}

type Service struct {
	store   Reader
	units   Units
	workers int
}

func NewService(reader Reader, units Units, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{store: reader, units: units, workers: workers}
}

type IndicatorScore struct {
	IndicatorID string  `json:"indicator_id"`
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Score       float64 `json:"score"`
}

type DimensionScore struct {
	DimensionID string           `json:"dimension_id"`
	Name        string           `json:"name"`
	Weight      float64          `json:"weight"`
	Score       float64          `json:"score"`
	Indicators  []IndicatorScore `json:"indicators"`
}

type UnitScore struct {
	UnitID       string           `json:"unit_id"`
	UnitName     string           `json:"unit_name"`
	YearID       string           `json:"year_id"`
	SubmissionID string           `json:"submission_id,omitempty"`
	Index        float64          `json:"index"`
	HasData      bool             `json:"has_data"`
	Dimensions   []DimensionScore `json:"dimensions"`
}

// SubQuestionScore is 1 or 0 for yes/no, the selected share of the options for
// checkboxes and the final committee score for text answers.
func SubQuestionScore(q *domain.SubQuestion, r *domain.Response, entries []*domain.ScoringEntry) decimal.Decimal {
	if q == nil || r == nil {
		return decimal.Zero
	}
	switch q.ResponseType {
	case domain.ResponseYesNo:
		if r.Answer.YesNo != nil && *r.Answer.YesNo {
			return one
		}
	case domain.ResponseMultiSelect:
		if len(q.CheckboxOptions) == 0 {
			return decimal.Zero
		}
		return decimal.NewFromInt(int64(len(r.Answer.Selected))).
			Div(decimal.NewFromInt(int64(len(q.CheckboxOptions))))
	case domain.ResponseText:
		if score, ok := domain.FinalScore(r, entries); ok {
			return decimal.NewFromFloat(score)
		}
	}
	return decimal.Zero
}

func weighted(score decimal.Decimal, weight float64) decimal.Decimal {
	return score.Mul(decimal.NewFromFloat(weight)).Div(hundred)
}

// Score computes the unit score of one submission. responses and entries
// are keyed by sub-question id and response id.
func Score(fw *domain.Framework, unitType domain.UnitType, responses map[string]*domain.Response, entries map[string][]*domain.ScoringEntry) (index decimal.Decimal, dims []DimensionScore) {
	index = decimal.Zero
	dims = make([]DimensionScore, 0, len(fw.Dimensions))

	for _, d := range fw.Dimensions {
		dimScore := decimal.Zero
		ds := DimensionScore{DimensionID: d.ID, Name: d.Name, Weight: d.Weight, Indicators: []IndicatorScore{}}

		for ii := range d.Indicators {
			ind := &d.Indicators[ii]
			if !ind.AppliesTo(unitType) {
				continue
			}
			indScore := decimal.Zero
			for qi := range ind.SubQuestions {
				q := &ind.SubQuestions[qi]
				r := responses[q.ID]
				var es []*domain.ScoringEntry
				if r != nil {
					es = entries[r.ID]
				}
				indScore = indScore.Add(weighted(SubQuestionScore(q, r, es), q.Weight))
			}
			dimScore = dimScore.Add(weighted(indScore, ind.Weight))
			ds.Indicators = append(ds.Indicators, IndicatorScore{
				IndicatorID: ind.ID,
				Name:        ind.Name,
				Weight:      ind.Weight,
				Score:       indScore.InexactFloat64(),
			})
		}

		ds.Score = dimScore.InexactFloat64()
		dims = append(dims, ds)
		index = index.Add(weighted(dimScore, d.Weight))
	}

	if index.LessThan(decimal.Zero) {
		index = decimal.Zero
	}
	if index.GreaterThan(one) {
		index = one
	}
	return index, dims
}

func (s *Service) framework(ctx context.Context, yearID string) (*domain.Framework, error) {
	fw, err := s.store.GetFramework(ctx, yearID)
	if err != nil {
		if constants.IsNotFound(err) {
			return nil, fmt.Errorf("year %s: %w", yearID, constants.ErrNotFound)
		}
		return nil, fmt.Errorf("store.GetFramework: %w", err)
	}
	return fw, nil
}

func scoreable() []domain.Status {
	return []domain.Status{domain.StatusValidated, domain.StatusScoringComplete}
}

// unitScore scores unit against its eligible submission, if any.
func (s *Service) unitScore(ctx context.Context, fw *domain.Framework, unit domain.AdministrativeUnit, sub *domain.Submission) (*UnitScore, error) {
	us := &UnitScore{UnitID: unit.ID, UnitName: unit.Name, YearID: fw.Year.ID}
	if sub == nil {
		_, us.Dimensions = Score(fw, unit.Type, nil, nil)
		return us, nil
	}

	rs, err := s.store.ListResponses(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("store.ListResponses: %w", err)
	}
	responses := make(map[string]*domain.Response, len(rs))
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		responses[r.SubQuestionID] = r
		ids = append(ids, r.ID)
	}
	es, err := s.store.ListScoringEntries(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("store.ListScoringEntries: %w", err)
	}
	entries := make(map[string][]*domain.ScoringEntry)
	for _, e := range es {
		entries[e.ResponseID] = append(entries[e.ResponseID], e)
	}

	index, dims := Score(fw, unit.Type, responses, entries)
	us.SubmissionID = sub.ID
	us.Index = index.InexactFloat64()
	us.HasData = true
	us.Dimensions = dims
	return us, nil
}

// UnitIndex scores one unit for a year.
func (s *Service) UnitIndex(ctx context.Context, unitID, yearID string) (*UnitScore, error) {
	unit, ok := s.units.Index().Unit(unitID)
	if !ok {
		return nil, fmt.Errorf("unit %s: %w", unitID, constants.ErrNotFound)
	}
	fw, err := s.framework(ctx, yearID)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubmissions(ctx, store.ListSubmissionsOpts{
		YearID:   yearID,
		UnitIDs:  []string{unitID},
		Statuses: scoreable(),
	})
	if err != nil {
		return nil, fmt.Errorf("store.ListSubmissions: %w", err)
	}
	var sub *domain.Submission
	if len(subs) > 0 {
		sub = subs[0]
	}
	return s.unitScore(ctx, fw, unit, sub)
}

// topLevel scores every region and city administration, fanned out over the
// configured number of workers. The result keeps hierarchy order.
func (s *Service) topLevel(ctx context.Context, yearID string) ([]*UnitScore, error) {
	fw, err := s.framework(ctx, yearID)
	if err != nil {
		return nil, err
	}
	units := s.units.Index().TopLevel()
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}

	subs, err := s.store.ListSubmissions(ctx, store.ListSubmissionsOpts{YearID: yearID, UnitIDs: ids, Statuses: scoreable()})
	if err != nil {
		return nil, fmt.Errorf("store.ListSubmissions: %w", err)
	}
	byUnit := make(map[string]*domain.Submission, len(subs))
	for _, sub := range subs {
		byUnit[sub.UnitID] = sub
	}

	res := make([]*UnitScore, len(units))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for i, u := range units {
		i, u := i, u
		eg.Go(func() error {
			us, err := s.unitScore(egCtx, fw, u, byUnit[u.ID])
			if err != nil {
				return fmt.Errorf("unit %s: %w", u.ID, err)
			}
			res[i] = us
			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		return nil, err
	}
	logger.Debugf(ctx, "scored %d top-level units for year %s, %d with data", len(units), yearID, len(byUnit))
	return res, nil
}

type NationalIndex struct {
	YearID string  `json:"year_id"`
	Index  float64 `json:"index"`
	// Units is the number of top-level units with an eligible submission.
	Units   int  `json:"units"`
	HasData bool `json:"has_data"`
}

// NationalIndex is the mean unit index over the regions and city
// administrations that have data. Federal institutes never count.
func (s *Service) NationalIndex(ctx context.Context, yearID string) (*NationalIndex, error) {
	scores, err := s.topLevel(ctx, yearID)
	if err != nil {
		return nil, err
	}
	total, n := decimal.Zero, 0
	for _, us := range scores {
		if !us.HasData {
			continue
		}
		total = total.Add(decimal.NewFromFloat(us.Index))
		n++
	}
	res := &NationalIndex{YearID: yearID, Units: n, HasData: n > 0}
	if n > 0 {
		res.Index = total.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
	}
	return res, nil
}

type DimensionAverage struct {
	DimensionID string  `json:"dimension_id"`
	Name        string  `json:"name"`
	Average     float64 `json:"average"`
	Units       int     `json:"units"`
}

// DimensionNationalAverages averages each dimension score over the top-level
// units with data, in framework order.
func (s *Service) DimensionNationalAverages(ctx context.Context, yearID string) ([]DimensionAverage, error) {
	scores, err := s.topLevel(ctx, yearID)
	if err != nil {
		return nil, err
	}
	fw, err := s.framework(ctx, yearID)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal, len(fw.Dimensions))
	n := 0
	for _, us := range scores {
		if !us.HasData {
			continue
		}
		n++
		for _, d := range us.Dimensions {
			totals[d.DimensionID] = totals[d.DimensionID].Add(decimal.NewFromFloat(d.Score))
		}
	}

	res := make([]DimensionAverage, 0, len(fw.Dimensions))
	for _, d := range fw.Dimensions {
		avg := DimensionAverage{DimensionID: d.ID, Name: d.Name, Units: n}
		if n > 0 {
			avg.Average = totals[d.ID].Div(decimal.NewFromInt(int64(n))).InexactFloat64()
		}
		res = append(res, avg)
	}
	return res, nil
}

// Ranking orders the top-level units with data by index, highest first.
func (s *Service) Ranking(ctx context.Context, yearID string) ([]*UnitScore, error) {
	scores, err := s.topLevel(ctx, yearID)
	if err != nil {
		return nil, err
	}
	res := make([]*UnitScore, 0, len(scores))
	for _, us := range scores {
		if us.HasData {
			res = append(res, us)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Index > res[j].Index })
	return res, nil
}
