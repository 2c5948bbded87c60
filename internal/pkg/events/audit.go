package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/ougirez/maturity/internal/pkg/logger"
)

// Audit logs every event received on ch until ctx is done or ch is closed.
func Audit(ctx context.Context, ch <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			logger.Infof(logger.WithFields(ctx, auditFields(evt)...), "audit %s", evt.Type)
		}
	}
}

func auditFields(evt Event) []zap.Field {
	fields := []zap.Field{
		zap.String("submission_id", evt.SubmissionID),
		zap.Time("at", evt.At),
	}
	if evt.UnitID != "" {
		fields = append(fields, zap.String("unit_id", evt.UnitID))
	}
	if evt.ResponseID != "" {
		fields = append(fields, zap.String("response_id", evt.ResponseID))
	}
	if evt.From != "" || evt.To != "" {
		fields = append(fields, zap.String("from", string(evt.From)), zap.String("to", string(evt.To)))
	}
	if evt.ActorUserID != "" {
		fields = append(fields, zap.String("actor_id", evt.ActorUserID))
	}
	return fields
}
