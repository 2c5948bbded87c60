package events

import (
	"context"
	"errors"
	"time"

	"github.com/ougirez/maturity/internal/domain"
)

const (
	TypeSubmissionCreated = "submission.created"
	TypeSubmissionUpdated = "submission.updated"
	TypeSubmissionDeleted = "submission.deleted"
	TypeResponseValidated = "response.validated"
	TypeResponseScored    = "response.scored"
)

// Event is emitted after a change has been committed to the repository.
type Event struct {
	Type         string        `json:"type"`
	SubmissionID string        `json:"submission_id"`
	UnitID       string        `json:"unit_id,omitempty"`
	ResponseID   string        `json:"response_id,omitempty"`
	From         domain.Status `json:"from,omitempty"`
	To           domain.Status `json:"to,omitempty"`
	ActorUserID  string        `json:"actor_user_id,omitempty"`
	At           time.Time     `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
