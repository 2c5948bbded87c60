package review

import (
	"context"
	"fmt"
	"sort"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/events"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/service/access"
)

// textResponses returns the responses of sub that answer text questions.
func (s *Service) textResponses(ctx context.Context, sub *domain.Submission) ([]*domain.Response, error) {
	fw, err := s.framework(ctx, sub.AssessmentYearID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("store.ListResponses: %w", err)
	}
	qs := fw.SubQuestions()
	res := make([]*domain.Response, 0, len(responses))
	for _, r := range responses {
		if q, ok := qs[r.SubQuestionID]; ok && q.ResponseType == domain.ResponseText {
			res = append(res, r)
		}
	}
	return res, nil
}

// SubmitScoringEntry records the member's categorical score for a text
// response. A member scoring the same response again replaces the old entry.
func (s *Service) SubmitScoringEntry(ctx context.Context, actor *domain.User, responseID string, score domain.CategoricalScore) (*domain.ScoringEntry, error) {
	if !score.Valid() {
		return nil, constants.FieldInvalid("score", fmt.Sprintf("unknown score %q", score))
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
	if err = s.can(actor, access.ActionScoreResponse, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusValidated, domain.StatusPendingSubjectiveScoring); err != nil {
		return nil, err
	}

	texts, err := s.textResponses(ctx, sub)
	if err != nil {
		return nil, err
	}
	isText := false
	for _, t := range texts {
		if t.ID == r.ID {
			isText = true
			break
		}
	}
	if !isText {
		return nil, constants.FieldInvalid("response_id", "only text answers are scored by the committee")
	}

	e := &domain.ScoringEntry{
		ResponseID:            r.ID,
		CommitteeMemberUserID: actor.ID,
		Score:                 score,
		Numeric:               score.Numeric(),
		UpdatedAt:             timeNow(),
	}
	if err = s.store.UpsertScoringEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("store.UpsertScoringEntry: %w", err)
	}

	logger.Infof(ctx, "response %s scored %s", r.ID, score)
	s.publish(ctx, events.Event{
		Type:         events.TypeResponseScored,
		SubmissionID: sub.ID,
		UnitID:       sub.UnitID,
		ResponseID:   r.ID,
		ActorUserID:  actor.ID,
		At:           e.UpdatedAt,
	})
	return e, nil
}

type AggregateScore struct {
	ResponseID string                 `json:"response_id"`
	Entries    []*domain.ScoringEntry `json:"entries"`
	// Average is the committee mean, 0 without entries.
	Average    float64  `json:"average"`
	Override   *float64 `json:"override,omitempty"`
	Final      float64  `json:"final"`
	HasEntries bool     `json:"has_entries"`
}

// AggregateScore reports the committee average of a response and the value
// the aggregation engine will use for it.
func (s *Service) AggregateScore(ctx context.Context, actor *domain.User, responseID string) (*AggregateScore, error) {
	if err := s.can(actor, access.ActionViewScoring, nil); err != nil {
		return nil, err
	}
	r, err := s.getResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListScoringEntries(ctx, responseID)
	if err != nil {
		return nil, fmt.Errorf("store.ListScoringEntries: %w", err)
	}

	agg := &AggregateScore{ResponseID: responseID, Entries: entries, Override: r.ChairmanScore, HasEntries: len(entries) > 0}
	agg.Average, _ = domain.FinalScore(nil, entries)
	agg.Final, _ = domain.FinalScore(r, entries)
	return agg, nil
}

type ScoringProgress struct {
	TextResponses int `json:"text_responses"`
	RosterSize    int `json:"roster_size"`
	// Complete lists the members who scored every text response.
	Complete []string `json:"complete"`
	Ready    bool     `json:"ready"`
}

func (s *Service) roster(ctx context.Context) (int, error) {
	if s.rosterSize > 0 {
		return s.rosterSize, nil
	}
	n, err := s.store.CountUsersByRole(ctx, domain.RoleCommitteeMember)
	if err != nil {
		return 0, fmt.Errorf("store.CountUsersByRole: %w", err)
	}
	return n, nil
}

func (s *Service) progress(ctx context.Context, sub *domain.Submission) (*ScoringProgress, error) {
	texts, err := s.textResponses(ctx, sub)
	if err != nil {
		return nil, err
	}
	roster, err := s.roster(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(texts))
	for _, t := range texts {
		ids = append(ids, t.ID)
	}
	entries, err := s.store.ListScoringEntries(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("store.ListScoringEntries: %w", err)
	}

	scored := make(map[string]map[string]bool)
	for _, e := range entries {
		if scored[e.CommitteeMemberUserID] == nil {
			scored[e.CommitteeMemberUserID] = make(map[string]bool)
		}
		scored[e.CommitteeMemberUserID][e.ResponseID] = true
	}

	p := &ScoringProgress{TextResponses: len(texts), RosterSize: roster, Complete: []string{}}
	for member, rs := range scored {
		if len(rs) == len(texts) {
			p.Complete = append(p.Complete, member)
		}
	}
	sort.Strings(p.Complete)
	p.Ready = roster > 0 && len(p.Complete) >= roster
	return p, nil
}

// ScoringProgress counts the distinct members who have scored every text
// response of the submission against the expected roster.
func (s *Service) ScoringProgress(ctx context.Context, actor *domain.User, id string) (*ScoringProgress, error) {
	if err := s.can(actor, access.ActionViewScoring, nil); err != nil {
		return nil, err
	}
	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.progress(ctx, sub)
}

// SubmitScoringToChairman closes committee scoring once the whole roster has
// scored every text response.
func (s *Service) SubmitScoringToChairman(ctx context.Context, actor *domain.User, id string) (*domain.Submission, error) {
	ctx = withSubmission(ctx, actor, id)
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.can(actor, access.ActionSubmitScoring, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusPendingSubjectiveScoring); err != nil {
		return nil, err
	}

	p, err := s.progress(ctx, sub)
	if err != nil {
		return nil, err
	}
	if !p.Ready {
		return nil, fmt.Errorf("%d of %d committee members finished scoring: %w", len(p.Complete), p.RosterSize, constants.ErrInvalidState)
	}

	next := *sub
	next.Status = domain.StatusPendingChairmanApproval
	if err = s.commit(ctx, actor, sub.Status, &next, nil); err != nil {
		return nil, err
	}
	return &next, nil
}

// FinalizeScoring applies the chairman overrides, keyed by response id, and
// completes the submission. An override replaces the committee average in
// every later aggregation.
func (s *Service) FinalizeScoring(ctx context.Context, actor *domain.User, id string, overrides map[string]float64) (*domain.Submission, error) {
	ctx = withSubmission(ctx, actor, id)
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.getSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.can(actor, access.ActionFinalizeScoring, sub); err != nil {
		return nil, err
	}
	if err = s.expect(ctx, sub, domain.StatusPendingChairmanApproval); err != nil {
		return nil, err
	}

	texts, err := s.textResponses(ctx, sub)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Response, len(texts))
	for _, t := range texts {
		byID[t.ID] = t
	}

	var flds []constants.FieldError
	responseIDs := make([]string, 0, len(overrides))
	for rid, v := range overrides {
		if _, ok := byID[rid]; !ok {
			flds = append(flds, constants.FieldError{Field: "overrides." + rid, Reason: "not a text response of this submission"})
			continue
		}
		if v < 0 || v > 1 {
			flds = append(flds, constants.FieldError{Field: "overrides." + rid, Reason: "must be between 0 and 1"})
			continue
		}
		responseIDs = append(responseIDs, rid)
	}
	if len(flds) > 0 {
		sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
		return nil, constants.NewValidationError(flds...)
	}

	sort.Strings(responseIDs)
	overridden := make([]*domain.Response, 0, len(responseIDs))
	for _, rid := range responseIDs {
		r := byID[rid]
		r.ChairmanScore = ref(overrides[rid])
		r.UpdatedAt = timeNow()
		overridden = append(overridden, r)
	}

	next := *sub
	next.Status = domain.StatusScoringComplete
	if err = s.apply(ctx, actor, change{from: sub.Status, next: &next, responses: overridden}); err != nil {
		return nil, err
	}
	for _, r := range overridden {
		logger.Infof(ctx, "chairman override %.2f on response %s", *r.ChairmanScore, r.ID)
	}
	return &next, nil
}
