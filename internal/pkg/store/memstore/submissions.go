package memstore

import (
	"context"
	"sort"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/store"
)

func (s *Store) CreateSubmission(_ context.Context, sub *domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.submissions {
		if existing.UnitID == sub.UnitID && existing.AssessmentYearID == sub.AssessmentYearID {
			return constants.ErrAlreadyExists
		}
	}
	s.submissions[sub.ID] = *sub
	s.touch(sub.ID)
	return nil
}

func (s *Store) GetSubmission(_ context.Context, id string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, constants.ErrDBNotFound
	}
	return &sub, nil
}

func (s *Store) GetSubmissionByUnitYear(_ context.Context, unitID, yearID string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.submissions {
		if sub.UnitID == unitID && sub.AssessmentYearID == yearID {
			return &sub, nil
		}
	}
	return nil, constants.ErrDBNotFound
}

func (s *Store) ListSubmissions(_ context.Context, opts store.ListSubmissionsOpts) ([]*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var units, statuses map[string]bool
	if opts.UnitIDs != nil {
		units = make(map[string]bool, len(opts.UnitIDs))
		for _, id := range opts.UnitIDs {
			units[id] = true
		}
	}
	if len(opts.Statuses) > 0 {
		statuses = make(map[string]bool, len(opts.Statuses))
		for _, st := range opts.Statuses {
			statuses[string(st)] = true
		}
	}

	var ids []string
	for id, sub := range s.submissions {
		if opts.YearID != "" && sub.AssessmentYearID != opts.YearID {
			continue
		}
		if units != nil && !units[sub.UnitID] {
			continue
		}
		if statuses != nil && !statuses[string(sub.Status)] {
			continue
		}
		ids = append(ids, id)
	}
	s.byInsertion(ids)

	res := make([]*domain.Submission, 0, len(ids))
	for _, id := range ids {
		sub := s.submissions[id]
		res = append(res, &sub)
	}
	return res, nil
}

func (s *Store) TransitionSubmission(_ context.Context, c store.SubmissionChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := c.Submission
	current, ok := s.submissions[sub.ID]
	if !ok {
		return constants.ErrDBNotFound
	}
	if current.Status != c.Expected {
		return constants.ErrConflict
	}
	for _, r := range c.Responses {
		if stored, ok := s.responses[r.ID]; !ok || stored.SubmissionID != sub.ID || r.SubmissionID != sub.ID {
			return constants.ErrDBNotFound
		}
	}

	s.submissions[sub.ID] = *sub
	for _, t := range c.Transitions {
		s.transitions[sub.ID] = append(s.transitions[sub.ID], *t)
	}
	for _, r := range c.Responses {
		s.responses[r.ID] = copyResponse(*r)
	}
	return nil
}

func (s *Store) DeleteSubmission(_ context.Context, id string, expected domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.submissions[id]
	if !ok {
		return constants.ErrDBNotFound
	}
	if current.Status != expected {
		return constants.ErrConflict
	}
	delete(s.submissions, id)
	delete(s.transitions, id)
	for rid, r := range s.responses {
		if r.SubmissionID == id {
			delete(s.responses, rid)
			delete(s.scoring, rid)
		}
	}
	return nil
}

func (s *Store) ListTransitions(_ context.Context, submissionID string) ([]*domain.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts := s.transitions[submissionID]
	res := make([]*domain.Transition, 0, len(ts))
	for i := range ts {
		t := ts[i]
		res = append(res, &t)
	}
	return res, nil
}

func copyResponse(r domain.Response) domain.Response {
	r.Answer.Selected = append([]string(nil), r.Answer.Selected...)
	if r.Answer.YesNo != nil {
		v := *r.Answer.YesNo
		r.Answer.YesNo = &v
	}
	if r.ChairmanScore != nil {
		v := *r.ChairmanScore
		r.ChairmanScore = &v
	}
	return r
}

func (s *Store) UpsertResponse(_ context.Context, r *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[r.SubmissionID]; !ok {
		return constants.ErrDBNotFound
	}
	for id, existing := range s.responses {
		if existing.SubmissionID == r.SubmissionID && existing.SubQuestionID == r.SubQuestionID && id != r.ID {
			return constants.ErrAlreadyExists
		}
	}
	s.responses[r.ID] = copyResponse(*r)
	s.touch(r.ID)
	return nil
}

func (s *Store) GetResponse(_ context.Context, id string) (*domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responses[id]
	if !ok {
		return nil, constants.ErrDBNotFound
	}
	r = copyResponse(r)
	return &r, nil
}

func (s *Store) ListResponses(_ context.Context, submissionID string) ([]*domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, r := range s.responses {
		if r.SubmissionID == submissionID {
			ids = append(ids, id)
		}
	}
	s.byInsertion(ids)
	res := make([]*domain.Response, 0, len(ids))
	for _, id := range ids {
		r := copyResponse(s.responses[id])
		res = append(res, &r)
	}
	return res, nil
}

func (s *Store) UpsertScoringEntry(_ context.Context, e *domain.ScoringEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responses[e.ResponseID]; !ok {
		return constants.ErrDBNotFound
	}
	if s.scoring[e.ResponseID] == nil {
		s.scoring[e.ResponseID] = map[string]domain.ScoringEntry{}
	}
	s.scoring[e.ResponseID][e.CommitteeMemberUserID] = *e
	return nil
}

func (s *Store) ListScoringEntries(_ context.Context, responseIDs ...string) ([]*domain.ScoringEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*domain.ScoringEntry
	for _, rid := range responseIDs {
		members := make([]string, 0, len(s.scoring[rid]))
		for m := range s.scoring[rid] {
			members = append(members, m)
		}
		sort.Strings(members)
		for _, m := range members {
			e := s.scoring[rid][m]
			res = append(res, &e)
		}
	}
	return res, nil
}
