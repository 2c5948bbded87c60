// Package review owns the submission lifecycle: answer entry, regional
// approval, central validation of each response, committee scoring and the
// chairman sign-off.
//
// Every mutation of a submission runs under a per-submission lock and is
// committed with a compare-and-set on the status it was read in, so two
// reviewers racing on the same submission cannot both move it.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/events"
	"github.com/ougirez/maturity/internal/pkg/keylock"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/pkg/store"
	"github.com/ougirez/maturity/internal/service/access"
)

var timeNow = time.Now

type Authorizer interface {
	CanAccessUnit(actor *domain.User, targetUnitID string) bool
	AccessibleUnitIDs(actor *domain.User) map[string]struct{}
	FilterSubmissionsByAccess(submissions []*domain.Submission, actor *domain.User) []*domain.Submission
	CanPerformAction(actor *domain.User, action access.Action, resource *domain.Submission) bool
	Unit(id string) (domain.AdministrativeUnit, bool)
}

type Service struct {
	store     store.Store
	auth      Authorizer
	publisher events.Publisher
	locks     *keylock.Locker
	// rosterSize is the number of committee members expected to score; 0 means
	// every user with the committee member role.
	rosterSize int
}

func NewService(st store.Store, auth Authorizer, publisher events.Publisher, rosterSize int) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		store:      st,
		auth:       auth,
		publisher:  publisher,
		locks:      keylock.New(),
		rosterSize: rosterSize,
	}
}

func withSubmission(ctx context.Context, actor *domain.User, id string) context.Context {
	fields := []zap.Field{zap.String("submission_id", id)}
	if actor != nil {
		fields = append(fields, zap.String("actor_id", actor.ID), zap.String("actor_role", string(actor.Role)))
	}
	return logger.WithFields(ctx, fields...)
}

func (s *Service) getSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		if constants.IsNotFound(err) {
			return nil, fmt.Errorf("submission %s: %w", id, constants.ErrNotFound)
		}
		return nil, fmt.Errorf("store.GetSubmission: %w", err)
	}
	return sub, nil
}

func (s *Service) getResponse(ctx context.Context, id string) (*domain.Response, error) {
	r, err := s.store.GetResponse(ctx, id)
	if err != nil {
		if constants.IsNotFound(err) {
			return nil, fmt.Errorf("response %s: %w", id, constants.ErrNotFound)
		}
		return nil, fmt.Errorf("store.GetResponse: %w", err)
	}
	return r, nil
}

// lockResponse resolves the response's submission and locks it. The response is
// re-read under the lock.
func (s *Service) lockResponse(ctx context.Context, responseID string) (*domain.Response, func(), error) {
	r, err := s.getResponse(ctx, responseID)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.locks.Lock(r.SubmissionID)
	r, err = s.getResponse(ctx, responseID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return r, unlock, nil
}

// change is one status change of a submission. via lists the statuses passed
// through on the way to next.Status; each hop gets its own history row.
// responses are rewritten together with the status.
type change struct {
	from      domain.Status
	next      *domain.Submission
	comment   *string
	via       []domain.Status
	responses []*domain.Response
}

// commit stores next, which must already carry the target status, provided
// the stored submission is still in from.
func (s *Service) commit(ctx context.Context, actor *domain.User, from domain.Status, next *domain.Submission, comment *string) error {
	return s.apply(ctx, actor, change{from: from, next: next, comment: comment})
}

// apply writes c as a single unit of work: either every hop and response lands
// or none does.
func (s *Service) apply(ctx context.Context, actor *domain.User, c change) error {
	path := make([]domain.Status, 0, len(c.via)+2)
	path = append(path, c.from)
	path = append(path, c.via...)
	path = append(path, c.next.Status)

	now := timeNow()
	c.next.UpdatedAt = now
	hops := make([]*domain.Transition, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		if !CanTransition(path[i-1], path[i]) {
			return fmt.Errorf("%s -> %s: %w", path[i-1], path[i], constants.ErrInvalidState)
		}
		t := &domain.Transition{
			ID:           uuid.NewString(),
			SubmissionID: c.next.ID,
			From:         path[i-1],
			To:           path[i],
			ActorUserID:  actor.ID,
			At:           now,
		}
		if i == 1 {
			t.Comment = c.comment
		}
		hops = append(hops, t)
	}

	err := s.store.TransitionSubmission(ctx, store.SubmissionChange{
		Submission:  c.next,
		Expected:    c.from,
		Transitions: hops,
		Responses:   c.responses,
	})
	if err != nil {
		if errors.Is(err, constants.ErrConflict) {
			return fmt.Errorf("submission %s left %s concurrently: %w", c.next.ID, c.from, constants.ErrConflict)
		}
		return fmt.Errorf("store.TransitionSubmission: %w", err)
	}

	for _, t := range hops {
		logger.Infof(ctx, "submission moved %s -> %s", t.From, t.To)
		s.publish(ctx, events.Event{
			Type:         events.TypeSubmissionUpdated,
			SubmissionID: c.next.ID,
			UnitID:       c.next.UnitID,
			From:         t.From,
			To:           t.To,
			ActorUserID:  actor.ID,
			At:           now,
		})
	}
	return nil
}

// publish never fails the operation: the change is already committed.
func (s *Service) publish(ctx context.Context, evt events.Event) {
	if evt.At.IsZero() {
		evt.At = timeNow()
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		logger.Warnf(ctx, "publish %s: %v", evt.Type, err)
	}
}

// stateError explains why sub is not in one of want. A submission that has
// just left want, through the latest committed change, lost a race and gets
// ErrConflict; anything else is ErrInvalidState.
func (s *Service) stateError(ctx context.Context, sub *domain.Submission, want ...domain.Status) error {
	ts, err := s.store.ListTransitions(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("store.ListTransitions: %w", err)
	}
	i := len(ts) - 1
	for i > 0 && isAutomatic(ts[i].From, ts[i].To) {
		i--
	}
	if i >= 0 {
		for _, w := range want {
			if ts[i].From == w {
				return fmt.Errorf("submission %s already left %s: %w", sub.ID, w, constants.ErrConflict)
			}
		}
	}
	return fmt.Errorf("submission %s is %s, want %v: %w", sub.ID, sub.Status, want, constants.ErrInvalidState)
}

func (s *Service) expect(ctx context.Context, sub *domain.Submission, want ...domain.Status) error {
	for _, w := range want {
		if sub.Status == w {
			return nil
		}
	}
	return s.stateError(ctx, sub, want...)
}

func (s *Service) can(actor *domain.User, action access.Action, sub *domain.Submission) error {
	if !s.auth.CanPerformAction(actor, action, sub) {
		return constants.ErrPermissionDenied
	}
	return nil
}

// canReview is the approver gate: capability plus reach over the unit.
func (s *Service) canReview(actor *domain.User, sub *domain.Submission) error {
	if !s.auth.CanPerformAction(actor, access.ActionApproveSubmission, sub) || !s.auth.CanAccessUnit(actor, sub.UnitID) {
		return constants.ErrPermissionDenied
	}
	return nil
}

// canOwn gates contributor edits. An owner hitting a locked status gets
// ErrInvalidState rather than a permission error.
func (s *Service) canOwn(actor *domain.User, action access.Action, sub *domain.Submission) error {
	if s.auth.CanPerformAction(actor, action, sub) {
		return nil
	}
	if actor != nil && sub.ContributorUserID == actor.ID && !sub.Status.IsEditable() {
		return fmt.Errorf("submission %s is %s: %w", sub.ID, sub.Status, constants.ErrInvalidState)
	}
	return constants.ErrPermissionDenied
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

// applicable returns the sub-questions the unit has to answer.
func (s *Service) applicable(fw *domain.Framework, unitID string) map[string]*domain.SubQuestion {
	unit, ok := s.auth.Unit(unitID)
	res := make(map[string]*domain.SubQuestion)
	if !ok {
		return res
	}
	for di := range fw.Dimensions {
		for ii := range fw.Dimensions[di].Indicators {
			ind := &fw.Dimensions[di].Indicators[ii]
			if !ind.AppliesTo(unit.Type) {
				continue
			}
			for qi := range ind.SubQuestions {
				res[ind.SubQuestions[qi].ID] = &ind.SubQuestions[qi]
			}
		}
	}
	return res
}

func ref[T any](v T) *T { return &v }
