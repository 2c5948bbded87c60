package framework

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/keylock"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/pkg/store"
	"github.com/ougirez/maturity/internal/service/access"
)

var timeNow = time.Now

var maxWeight = decimal.NewFromInt(100)

type Authorizer interface {
	CanPerformAction(actor *domain.User, action access.Action, resource *domain.Submission) bool
}

type Service struct {
	store    store.FrameworkStore
	auth     Authorizer
	validate *validator.Validate
	// one lock per weight group: year for dimensions, dimension for indicators, indicator for sub-questions
	locks *keylock.Locker
}

func NewService(frameworkStore store.FrameworkStore, auth Authorizer) *Service {
	return &Service{
		store:    frameworkStore,
		auth:     auth,
		validate: NewValidator(),
		locks:    keylock.New(),
	}
}

func (s *Service) authorize(actor *domain.User) error {
	if !s.auth.CanPerformAction(actor, access.ActionManageFramework, nil) {
		return constants.ErrPermissionDenied
	}
	return nil
}

func notFound(err error, what string) error {
	if constants.IsNotFound(err) {
		return fmt.Errorf("%s: %w", what, constants.ErrNotFound)
	}
	return err
}

func (s *Service) CreateYear(ctx context.Context, actor *domain.User, year domain.AssessmentYear) (*domain.AssessmentYear, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	if year.Status == "" {
		year.Status = domain.YearDraft
	}
	if err := s.validate.Struct(year); err != nil {
		return nil, constants.FromValidator(err)
	}
	year.CreatedAt = timeNow()
	year.UpdatedAt = year.CreatedAt

	if err := s.store.CreateYear(ctx, &year); err != nil {
		return nil, fmt.Errorf("store.CreateYear: %w", err)
	}
	logger.Infof(ctx, "assessment year %s created", year.ID)
	return &year, nil
}

// SetYearStatus moves a year forward through draft, active and archived.
func (s *Service) SetYearStatus(ctx context.Context, actor *domain.User, yearID string, status domain.YearStatus) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	year, err := s.store.GetYear(ctx, yearID)
	if err != nil {
		return notFound(err, "year "+yearID)
	}
	if year.Status == status {
		return nil
	}
	switch {
	case year.Status == domain.YearDraft && status == domain.YearActive,
		year.Status == domain.YearActive && status == domain.YearArchived:
	case status != domain.YearDraft && status != domain.YearActive && status != domain.YearArchived:
		return constants.FieldInvalid("status", fmt.Sprintf("unknown year status %q", status))
	default:
		return fmt.Errorf("year %s cannot move from %s to %s: %w", yearID, year.Status, status, constants.ErrInvalidState)
	}
	return s.store.UpdateYearStatus(ctx, yearID, status)
}

func (s *Service) CreateDimension(ctx context.Context, actor *domain.User, d domain.Dimension) (*domain.Dimension, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(d); err != nil {
		return nil, constants.FromValidator(err)
	}
	if _, err := s.store.GetYear(ctx, d.YearID); err != nil {
		return nil, notFound(err, "year "+d.YearID)
	}

	unlock := s.locks.Lock("year:" + d.YearID)
	defer unlock()

	siblings, err := s.store.ListDimensions(ctx, d.YearID)
	if err != nil {
		return nil, fmt.Errorf("store.ListDimensions: %w", err)
	}
	weights := make([]float64, 0, len(siblings))
	for _, sib := range siblings {
		weights = append(weights, sib.Weight)
	}
	if err := checkSum("weight", "dimension weights of the year", append(weights, d.Weight)); err != nil {
		return nil, err
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = timeNow()
	d.UpdatedAt = d.CreatedAt
	if err := s.store.CreateDimension(ctx, &d); err != nil {
		return nil, fmt.Errorf("store.CreateDimension: %w", err)
	}
	return &d, nil
}

func (s *Service) CreateIndicator(ctx context.Context, actor *domain.User, ind domain.Indicator) (*domain.Indicator, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(ind); err != nil {
		return nil, constants.FromValidator(err)
	}
	if _, err := s.store.GetDimension(ctx, ind.DimensionID); err != nil {
		return nil, notFound(err, "dimension "+ind.DimensionID)
	}

	unlock := s.locks.Lock("dimension:" + ind.DimensionID)
	defer unlock()

	siblings, err := s.store.ListIndicators(ctx, ind.DimensionID)
	if err != nil {
		return nil, fmt.Errorf("store.ListIndicators: %w", err)
	}
	weights := make([]float64, 0, len(siblings))
	for _, sib := range siblings {
		if sib.AppliesTo(ind.ApplicableUnitType) {
			weights = append(weights, sib.Weight)
		}
	}
	if err := checkSum("weight", indicatorGroup(ind.ApplicableUnitType), append(weights, ind.Weight)); err != nil {
		return nil, err
	}

	if ind.ID == "" {
		ind.ID = uuid.NewString()
	}
	ind.CreatedAt = timeNow()
	ind.UpdatedAt = ind.CreatedAt
	if err := s.store.CreateIndicator(ctx, &ind); err != nil {
		return nil, fmt.Errorf("store.CreateIndicator: %w", err)
	}
	return &ind, nil
}

func (s *Service) CreateSubQuestion(ctx context.Context, actor *domain.User, q domain.SubQuestion) (*domain.SubQuestion, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(q); err != nil {
		return nil, constants.FromValidator(err)
	}
	if err := checkOptions(&q); err != nil {
		return nil, err
	}
	if _, err := s.store.GetIndicator(ctx, q.IndicatorID); err != nil {
		return nil, notFound(err, "indicator "+q.IndicatorID)
	}

	unlock := s.locks.Lock("indicator:" + q.IndicatorID)
	defer unlock()

	siblings, err := s.store.ListSubQuestions(ctx, q.IndicatorID)
	if err != nil {
		return nil, fmt.Errorf("store.ListSubQuestions: %w", err)
	}
	weights := make([]float64, 0, len(siblings))
	for _, sib := range siblings {
		weights = append(weights, sib.Weight)
	}
	if err := checkSum("weight", "sub-question weights of the indicator", append(weights, q.Weight)); err != nil {
		return nil, err
	}

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = timeNow()
	q.UpdatedAt = q.CreatedAt
	if err := s.store.CreateSubQuestion(ctx, &q); err != nil {
		return nil, fmt.Errorf("store.CreateSubQuestion: %w", err)
	}
	return &q, nil
}

func checkWeight(w float64) error {
	if w < 0 || w > 100 {
		return constants.FieldInvalid("weight", "must be between 0 and 100")
	}
	return nil
}

// UpdateDimensionWeight re-validates the whole sibling set with the new weight in place.
func (s *Service) UpdateDimensionWeight(ctx context.Context, actor *domain.User, id string, weight float64) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if err := checkWeight(weight); err != nil {
		return err
	}
	d, err := s.store.GetDimension(ctx, id)
	if err != nil {
		return notFound(err, "dimension "+id)
	}

	unlock := s.locks.Lock("year:" + d.YearID)
	defer unlock()

	siblings, err := s.store.ListDimensions(ctx, d.YearID)
	if err != nil {
		return fmt.Errorf("store.ListDimensions: %w", err)
	}
	weights := []float64{weight}
	for _, sib := range siblings {
		if sib.ID != id {
			weights = append(weights, sib.Weight)
		}
	}
	if err := checkSum("weight", "dimension weights of the year", weights); err != nil {
		return err
	}
	return s.store.UpdateDimensionWeight(ctx, id, weight)
}

func (s *Service) UpdateIndicatorWeight(ctx context.Context, actor *domain.User, id string, weight float64) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if err := checkWeight(weight); err != nil {
		return err
	}
	ind, err := s.store.GetIndicator(ctx, id)
	if err != nil {
		return notFound(err, "indicator "+id)
	}

	unlock := s.locks.Lock("dimension:" + ind.DimensionID)
	defer unlock()

	siblings, err := s.store.ListIndicators(ctx, ind.DimensionID)
	if err != nil {
		return fmt.Errorf("store.ListIndicators: %w", err)
	}
	weights := []float64{weight}
	for _, sib := range siblings {
		if sib.ID != id && sib.AppliesTo(ind.ApplicableUnitType) {
			weights = append(weights, sib.Weight)
		}
	}
	if err := checkSum("weight", indicatorGroup(ind.ApplicableUnitType), weights); err != nil {
		return err
	}
	return s.store.UpdateIndicatorWeight(ctx, id, weight)
}

func (s *Service) UpdateSubQuestionWeight(ctx context.Context, actor *domain.User, id string, weight float64) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if err := checkWeight(weight); err != nil {
		return err
	}
	q, err := s.store.GetSubQuestion(ctx, id)
	if err != nil {
		return notFound(err, "sub-question "+id)
	}

	unlock := s.locks.Lock("indicator:" + q.IndicatorID)
	defer unlock()

	siblings, err := s.store.ListSubQuestions(ctx, q.IndicatorID)
	if err != nil {
		return fmt.Errorf("store.ListSubQuestions: %w", err)
	}
	weights := []float64{weight}
	for _, sib := range siblings {
		if sib.ID != id {
			weights = append(weights, sib.Weight)
		}
	}
	if err := checkSum("weight", "sub-question weights of the indicator", weights); err != nil {
		return err
	}
	return s.store.UpdateSubQuestionWeight(ctx, id, weight)
}

// Framework returns the weighted questionnaire of a year. Reading it needs no capability.
func (s *Service) Framework(ctx context.Context, yearID string) (*domain.Framework, error) {
	fw, err := s.store.GetFramework(ctx, yearID)
	if err != nil {
		return nil, notFound(err, "year "+yearID)
	}
	return fw, nil
}

func sum(weights []float64) decimal.Decimal {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(decimal.NewFromFloat(w))
	}
	return total
}

func checkSum(field, group string, weights []float64) error {
	if total := sum(weights); total.GreaterThan(maxWeight) {
		return constants.FieldInvalid(field, fmt.Sprintf("%s sum to %s, above 100", group, total.String()))
	}
	return nil
}

// Indicators of one dimension are weighted per questionnaire: region and
// woreda units answer disjoint indicator sets, each summing to at most 100.
func indicatorGroup(t domain.UnitType) string {
	return fmt.Sprintf("%s indicator weights", t.ApplicabilityClass())
}

func checkOptions(q *domain.SubQuestion) error {
	if q.ResponseType != domain.ResponseMultiSelect {
		if len(q.CheckboxOptions) > 0 {
			return constants.FieldInvalid("checkbox_options", "only multi-select questions carry options")
		}
		return nil
	}
	if len(q.CheckboxOptions) == 0 {
		return constants.FieldInvalid("checkbox_options", "multi-select question needs at least one option")
	}
	seen := make(map[string]bool, len(q.CheckboxOptions))
	for _, o := range q.CheckboxOptions {
		if o == "" {
			return constants.FieldInvalid("checkbox_options", "empty option")
		}
		if seen[o] {
			return constants.FieldInvalid("checkbox_options", fmt.Sprintf("duplicate option %q", o))
		}
		seen[o] = true
	}
	return nil
}

// ValidateFramework checks every weight group and question of fw and reports
// all violations at once.
func ValidateFramework(fw *domain.Framework) error {
	var flds []constants.FieldError
	add := func(err error) {
		var verr *constants.ValidationError
		if errors.As(err, &verr) {
			flds = append(flds, verr.Fields...)
		}
	}

	dims := make([]float64, 0, len(fw.Dimensions))
	for _, d := range fw.Dimensions {
		dims = append(dims, d.Weight)
		add(checkWeight(d.Weight))

		inds := map[domain.UnitType][]float64{}
		for _, ind := range d.Indicators {
			class := ind.ApplicableUnitType.ApplicabilityClass()
			inds[class] = append(inds[class], ind.Weight)
			add(checkWeight(ind.Weight))
			if !ind.ApplicableUnitType.Valid() {
				add(constants.FieldInvalid("applicable_unit_type", fmt.Sprintf("indicator %s: unknown unit type %q", ind.ID, ind.ApplicableUnitType)))
			}

			qs := make([]float64, 0, len(ind.SubQuestions))
			for i := range ind.SubQuestions {
				qs = append(qs, ind.SubQuestions[i].Weight)
				add(checkWeight(ind.SubQuestions[i].Weight))
				add(checkOptions(&ind.SubQuestions[i]))
			}
			add(checkSum("weight", "sub-question weights of indicator "+ind.ID, qs))
		}
		classes := make([]domain.UnitType, 0, len(inds))
		for class := range inds {
			classes = append(classes, class)
		}
		slices.Sort(classes)
		for _, class := range classes {
			add(checkSum("weight", indicatorGroup(class)+" of dimension "+d.ID, inds[class]))
		}
	}
	add(checkSum("weight", "dimension weights of year "+fw.Year.ID, dims))

	if len(flds) > 0 {
		return constants.NewValidationError(flds...)
	}
	return nil
}
