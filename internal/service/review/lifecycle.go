package review

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/events"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/pkg/store"
	"github.com/ougirez/maturity/internal/service/access"
)

var transitions = map[domain.Status][]domain.Status{
	domain.StatusDraft:                      {domain.StatusPendingInitialApproval},
	domain.StatusPendingInitialApproval:     {domain.StatusPendingCentralValidation, domain.StatusRejectedByRegionalApprover},
	domain.StatusRejectedByRegionalApprover: {domain.StatusPendingInitialApproval},
	domain.StatusPendingCentralValidation:   {domain.StatusValidated, domain.StatusRejectedByCentralCommittee},
	domain.StatusRejectedByCentralCommittee: {domain.StatusPendingCentralValidation, domain.StatusDraft},
	domain.StatusValidated:                  {domain.StatusPendingSubjectiveScoring},
	domain.StatusPendingSubjectiveScoring:   {domain.StatusPendingChairmanApproval},
	domain.StatusPendingChairmanApproval:    {domain.StatusScoringComplete},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to domain.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// isAutomatic marks the edge the engine takes on its own after validation.
func isAutomatic(from, to domain.Status) bool {
	return from == domain.StatusValidated && to == domain.StatusPendingSubjectiveScoring
}

// CreateSubmission opens a draft for the actor's own unit in an active year.
func (s *Service) CreateSubmission(ctx context.Context, actor *domain.User, unitID, yearID string) (*domain.Submission, error) {
	if err := s.can(actor, access.ActionSubmitData, nil); err != nil {
		return nil, err
	}
	if unitID != actor.HomeUnit() {
		return nil, constants.ErrPermissionDenied
	}
	if _, ok := s.auth.Unit(unitID); !ok {
		return nil, fmt.Errorf("unit %s: %w", unitID, constants.ErrNotFound)
	}

	year, err := s.store.GetYear(ctx, yearID)
	if err != nil {
		if constants.IsNotFound(err) {
			return nil, fmt.Errorf("year %s: %w", yearID, constants.ErrNotFound)
		}
		return nil, fmt.Errorf("store.GetYear: %w", err)
	}
	if year.Status != domain.YearActive {
		return nil, fmt.Errorf("year %s is %s: %w", yearID, year.Status, constants.ErrInvalidState)
	}

	now := timeNow()
	sub := &domain.Submission{
		ID:                uuid.NewString(),
		UnitID:            unitID,
		AssessmentYearID:  yearID,
		ContributorUserID: actor.ID,
		Status:            domain.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err = s.store.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, constants.ErrAlreadyExists) {
			return nil, fmt.Errorf("unit %s already has a submission for %s: %w", unitID, yearID, constants.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("store.CreateSubmission: %w", err)
	}

	ctx = withSubmission(ctx, actor, sub.ID)
	logger.Infof(ctx, "submission created for unit %s year %s", unitID, yearID)
	s.publish(ctx, events.Event{
		Type:         events.TypeSubmissionCreated,
		SubmissionID: sub.ID,
		UnitID:       unitID,
		To:           sub.Status,
		ActorUserID:  actor.ID,
		At:           now,
	})
	return sub, nil
}

// DeleteSubmission drops an editable submission together with its answers.
func (s *Service) DeleteSubmission(ctx context.Context, actor *domain.User, id string) error {
	ctx = withSubmission(ctx, actor, id)
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return err
	}
	if err = s.canOwn(actor, access.ActionDeleteSubmission, sub); err != nil {
		return err
	}
	if err = s.store.DeleteSubmission(ctx, id, sub.Status); err != nil {
		if errors.Is(err, constants.ErrConflict) {
			return fmt.Errorf("submission %s changed concurrently: %w", id, constants.ErrConflict)
		}
		return fmt.Errorf("store.DeleteSubmission: %w", err)
	}

	logger.Infof(ctx, "submission deleted")
	s.publish(ctx, events.Event{
		Type:         events.TypeSubmissionDeleted,
		SubmissionID: id,
		UnitID:       sub.UnitID,
		From:         sub.Status,
		ActorUserID:  actor.ID,
	})
	return nil
}

// SubmitForApproval hands a complete draft to the approver of the unit.
func (s *Service) SubmitForApproval(ctx context.Context, actor *domain.User, id string) (*domain.Submission, error) {
	ctx = withSubmission(ctx, actor, id)
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.can(actor, access.ActionSubmitData, sub); err != nil {
		return nil, err
	}
	if sub.ContributorUserID != actor.ID {
		return nil, constants.ErrPermissionDenied
	}
	if err = s.expect(ctx, sub, domain.StatusDraft, domain.StatusRejectedByRegionalApprover); err != nil {
		return nil, err
	}
	if err = s.checkComplete(ctx, sub); err != nil {
		return nil, err
	}

	next := *sub
	next.Status = domain.StatusPendingInitialApproval
	next.SubmittedAt = ref(timeNow())
	next.RejectionReason = nil
	next.ReturnComment = nil
	if err = s.commit(ctx, actor, sub.Status, &next, nil); err != nil {
		return nil, err
	}
	return &next, nil
}

// checkComplete requires an answer for every sub-question that applies to the unit.
func (s *Service) checkComplete(ctx context.Context, sub *domain.Submission) error {
	fw, err := s.framework(ctx, sub.AssessmentYearID)
	if err != nil {
		return err
	}
	responses, err := s.store.ListResponses(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("store.ListResponses: %w", err)
	}
	answered := make(map[string]bool, len(responses))
	for _, r := range responses {
		answered[r.SubQuestionID] = true
	}

	var missing []string
	for id := range s.applicable(fw, sub.UnitID) {
		if !answered[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	flds := make([]constants.FieldError, 0, len(missing))
	for _, id := range missing {
		flds = append(flds, constants.FieldError{Field: "responses." + id, Reason: "answer required"})
	}
	return constants.NewValidationError(flds...)
}

func (s *Service) ApproveInitial(ctx context.Context, actor *domain.User, id string) (*domain.Submission, error) {
	ctx = withSubmission(ctx, actor, id)
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.canReview(actor, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusPendingInitialApproval); err != nil {
		return nil, err
	}

	next := *sub
	next.Status = domain.StatusPendingCentralValidation
	next.ApproverUserID = ref(actor.ID)
	next.ApprovedAt = ref(timeNow())
	if err = s.commit(ctx, actor, sub.Status, &next, nil); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) RejectInitial(ctx context.Context, actor *domain.User, id, reason string) (*domain.Submission, error) {
	ctx = withSubmission(ctx, actor, id)
	if reason == "" {
		return nil, constants.FieldInvalid("reason", "rejection needs a reason")
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.canReview(actor, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusPendingInitialApproval); err != nil {
		return nil, err
	}

	next := *sub
	next.Status = domain.StatusRejectedByRegionalApprover
	next.ApproverUserID = ref(actor.ID)
	next.RejectionReason = ref(reason)
	if err = s.commit(ctx, actor, sub.Status, &next, ref(reason)); err != nil {
		return nil, err
	}
	return &next, nil
}

// RejectedResponse is one response the committee turned down, with its reason.
type RejectedResponse struct {
	ResponseID    string `json:"response_id"`
	SubQuestionID string `json:"sub_question_id"`
	Reason        string `json:"reason"`
}

type CentralDecision struct {
	Submission *domain.Submission `json:"submission"`
	Rejected   []RejectedResponse `json:"rejected,omitempty"`
}

// SubmitCentralValidation derives the submission outcome from the current
// response decisions. Any rejected response sends the submission back with
// exactly those reasons. Otherwise every response must be approved; a
// submission with text answers then moves straight on to subjective scoring.
func (s *Service) SubmitCentralValidation(ctx context.Context, actor *domain.User, id string) (*CentralDecision, error) {
	ctx = withSubmission(ctx, actor, id)
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.can(actor, access.ActionValidateSubmission, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusPendingCentralValidation); err != nil {
		return nil, err
	}

	responses, err := s.store.ListResponses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store.ListResponses: %w", err)
	}

	var (
		rejected []RejectedResponse
		pending  int
	)
	for _, r := range responses {
		switch r.ValidationStatus {
		case domain.ValidationRejected:
			reason := ""
			if r.CentralRejectionReason != nil {
				reason = *r.CentralRejectionReason
			}
			rejected = append(rejected, RejectedResponse{ResponseID: r.ID, SubQuestionID: r.SubQuestionID, Reason: reason})
		case domain.ValidationApproved:
		default:
			pending++
		}
	}

	next := *sub
	if len(rejected) > 0 {
		next.Status = domain.StatusRejectedByCentralCommittee
		next.RejectionReason = ref(fmt.Sprintf("%d response(s) rejected by the central committee", len(rejected)))
		if err = s.commit(ctx, actor, sub.Status, &next, next.RejectionReason); err != nil {
			return nil, err
		}
		return &CentralDecision{Submission: &next, Rejected: rejected}, nil
	}
	if pending > 0 {
		return nil, fmt.Errorf("%d response(s) still pending validation: %w", pending, constants.ErrInvalidState)
	}

	hasText, err := s.hasTextResponses(ctx, sub, responses)
	if err != nil {
		return nil, err
	}

	next.Status = domain.StatusValidated
	next.RejectionReason = nil
	c := change{from: sub.Status, next: &next}
	if hasText {
		c.via = []domain.Status{domain.StatusValidated}
		next.Status = domain.StatusPendingSubjectiveScoring
	}
	if err = s.apply(ctx, actor, c); err != nil {
		return nil, err
	}
	return &CentralDecision{Submission: &next}, nil
}

func (s *Service) hasTextResponses(ctx context.Context, sub *domain.Submission, responses []*domain.Response) (bool, error) {
	fw, err := s.framework(ctx, sub.AssessmentYearID)
	if err != nil {
		return false, err
	}
	qs := fw.SubQuestions()
	for _, r := range responses {
		if q, ok := qs[r.SubQuestionID]; ok && q.ResponseType == domain.ResponseText {
			return true, nil
		}
	}
	return false, nil
}

// ResubmitToCentralCommittee loops a centrally rejected submission back for
// validation. Rejected responses are reopened; their reasons stay for reference.
func (s *Service) ResubmitToCentralCommittee(ctx context.Context, actor *domain.User, id string) (*domain.Submission, error) {
	ctx = withSubmission(ctx, actor, id)
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.canReview(actor, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusRejectedByCentralCommittee); err != nil {
		return nil, err
	}

	responses, err := s.store.ListResponses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store.ListResponses: %w", err)
	}
	var reopened []*domain.Response
	for _, r := range responses {
		if r.ValidationStatus != domain.ValidationRejected {
			continue
		}
		r.ValidationStatus = domain.ValidationPending
		r.UpdatedAt = timeNow()
		reopened = append(reopened, r)
	}

	next := *sub
	next.Status = domain.StatusPendingCentralValidation
	next.RejectionReason = nil
	if err = s.apply(ctx, actor, change{from: sub.Status, next: &next, responses: reopened}); err != nil {
		return nil, err
	}
	return &next, nil
}

// RejectToContributor returns a centrally rejected submission to draft with a comment.
func (s *Service) RejectToContributor(ctx context.Context, actor *domain.User, id, comment string) (*domain.Submission, error) {
	ctx = withSubmission(ctx, actor, id)
	if comment == "" {
		return nil, constants.FieldInvalid("comment", "return to contributor needs a comment")
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.canReview(actor, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusRejectedByCentralCommittee); err != nil {
		return nil, err
	}

	next := *sub
	next.Status = domain.StatusDraft
	next.ReturnComment = ref(comment)
	if err = s.commit(ctx, actor, sub.Status, &next, ref(comment)); err != nil {
		return nil, err
	}
	return &next, nil
}

type SubmissionView struct {
	Submission *domain.Submission `json:"submission"`
	Responses  []*domain.Response `json:"responses"`
}

func (s *Service) Get(ctx context.Context, actor *domain.User, id string) (*SubmissionView, error) {
	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.auth.CanAccessUnit(actor, sub.UnitID) {
		return nil, constants.ErrPermissionDenied
	}
	responses, err := s.store.ListResponses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store.ListResponses: %w", err)
	}
	return &SubmissionView{Submission: sub, Responses: responses}, nil
}

// History returns the committed transitions of a submission, oldest first.
func (s *Service) History(ctx context.Context, actor *domain.User, id string) ([]*domain.Transition, error) {
	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.auth.CanAccessUnit(actor, sub.UnitID) {
		return nil, constants.ErrPermissionDenied
	}
	ts, err := s.store.ListTransitions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store.ListTransitions: %w", err)
	}
	return ts, nil
}

type ListFilter struct {
	YearID   string
	Statuses []domain.Status
}

// List returns the submissions the actor can reach.
func (s *Service) List(ctx context.Context, actor *domain.User, filter ListFilter) ([]*domain.Submission, error) {
	if actor == nil {
		return nil, constants.ErrPermissionDenied
	}
	opts := store.ListSubmissionsOpts{YearID: filter.YearID, Statuses: filter.Statuses}
	if !s.auth.CanPerformAction(actor, access.ActionViewAllSubmissions, nil) {
		reachable := s.auth.AccessibleUnitIDs(actor)
		opts.UnitIDs = make([]string, 0, len(reachable))
		for id := range reachable {
			opts.UnitIDs = append(opts.UnitIDs, id)
		}
		sort.Strings(opts.UnitIDs)
	}
	subs, err := s.store.ListSubmissions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store.ListSubmissions: %w", err)
	}
	return s.auth.FilterSubmissionsByAccess(subs, actor), nil
}
