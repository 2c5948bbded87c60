package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/events"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/service/access"
)

type ResponseInput struct {
	Answer       domain.Answer `json:"answer"`
	GeneralNote  *string       `json:"general_note,omitempty"`
	EvidenceLink *string       `json:"evidence_link,omitempty" validate:"omitempty,url"`
}

// SaveResponse records the contributor's answer to one sub-question. Changing
// an answer reopens it for central validation.
func (s *Service) SaveResponse(ctx context.Context, actor *domain.User, submissionID, subQuestionID string, in ResponseInput) (*domain.Response, error) {
	ctx = withSubmission(ctx, actor, submissionID)
	unlock := s.locks.Lock(submissionID)
	defer unlock()

	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if err = s.canOwn(actor, access.ActionEditSubmission, sub); err != nil {
		return nil, err
	}

	fw, err := s.framework(ctx, sub.AssessmentYearID)
	if err != nil {
		return nil, err
	}
	q, ok := fw.SubQuestions()[subQuestionID]
	if !ok {
		return nil, fmt.Errorf("sub-question %s: %w", subQuestionID, constants.ErrNotFound)
	}
	if _, ok = s.applicable(fw, sub.UnitID)[subQuestionID]; !ok {
		return nil, constants.FieldInvalid("sub_question_id", "question does not apply to the unit")
	}
	if err = in.Answer.Validate(q); err != nil {
		return nil, constants.FieldInvalid("answer", err.Error())
	}

	responses, err := s.store.ListResponses(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("store.ListResponses: %w", err)
	}
	var r *domain.Response
	for _, existing := range responses {
		if existing.SubQuestionID == subQuestionID {
			r = existing
			break
		}
	}
	if r == nil {
		r = &domain.Response{
			ID:            uuid.NewString(),
			SubmissionID:  submissionID,
			SubQuestionID: subQuestionID,
		}
	}
	r.Answer = in.Answer
	r.GeneralNote = in.GeneralNote
	r.EvidenceLink = in.EvidenceLink
	r.ValidationStatus = domain.ValidationPending
	r.UpdatedAt = timeNow()

	if err = s.store.UpsertResponse(ctx, r); err != nil {
		return nil, fmt.Errorf("store.UpsertResponse: %w", err)
	}
	logger.Debugf(ctx, "response %s saved for sub-question %s", r.ID, subQuestionID)
	s.publish(ctx, events.Event{
		Type:         events.TypeSubmissionUpdated,
		SubmissionID: submissionID,
		UnitID:       sub.UnitID,
		ResponseID:   r.ID,
		ActorUserID:  actor.ID,
		At:           r.UpdatedAt,
	})
	return r, nil
}

// SetRegionalNote lets the approver annotate a response while the submission
// waits for initial approval.
func (s *Service) SetRegionalNote(ctx context.Context, actor *domain.User, responseID, note string) (*domain.Response, error) {
	r, unlock, err := s.lockResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = withSubmission(ctx, actor, r.SubmissionID)

	sub, err := s.getSubmission(ctx, r.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err = s.canReview(actor, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusPendingInitialApproval); err != nil {
		return nil, err
	}

	if note == "" {
		r.RegionalNote = nil
	} else {
		r.RegionalNote = ref(note)
	}
	r.UpdatedAt = timeNow()
	if err = s.store.UpsertResponse(ctx, r); err != nil {
		return nil, fmt.Errorf("store.UpsertResponse: %w", err)
	}
	return r, nil
}

type Validation struct {
	Status domain.ValidationStatus `json:"status" validate:"oneof=pending approved rejected"`
	Reason *string                 `json:"reason,omitempty"`
	Note   *string                 `json:"note,omitempty"`
}

func equalRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ValidateResponse records the committee decision on one response. Repeating
// the current decision changes nothing.
func (s *Service) ValidateResponse(ctx context.Context, actor *domain.User, responseID string, v Validation) (*domain.Response, error) {
	switch v.Status {
	case domain.ValidationPending, domain.ValidationApproved:
		v.Reason = nil
	case domain.ValidationRejected:
		if v.Reason == nil || *v.Reason == "" {
			return nil, constants.FieldInvalid("reason", "rejection needs a reason")
		}
	default:
		return nil, constants.FieldInvalid("status", fmt.Sprintf("unknown validation status %q", v.Status))
	}

	r, unlock, err := s.lockResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = withSubmission(ctx, actor, r.SubmissionID)

	sub, err := s.getSubmission(ctx, r.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err = s.can(actor, access.ActionValidateSubmission, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusPendingCentralValidation); err != nil {
		return nil, err
	}

	note := r.CommitteeNote
	if v.Note != nil {
		note = v.Note
	}
	if r.ValidationStatus == v.Status && equalRef(r.CentralRejectionReason, v.Reason) && equalRef(r.CommitteeNote, note) {
		return r, nil
	}

	r.ValidationStatus = v.Status
	r.CentralRejectionReason = v.Reason
	r.CommitteeNote = note
	r.UpdatedAt = timeNow()
	if err = s.store.UpsertResponse(ctx, r); err != nil {
		return nil, fmt.Errorf("store.UpsertResponse: %w", err)
	}

	logger.Infof(ctx, "response %s marked %s", r.ID, v.Status)
	s.publish(ctx, events.Event{
		Type:         events.TypeResponseValidated,
		SubmissionID: sub.ID,
		UnitID:       sub.UnitID,
		ResponseID:   r.ID,
		ActorUserID:  actor.ID,
		At:           r.UpdatedAt,
	})
	return r, nil
}
