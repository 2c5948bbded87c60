package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/pkg/store/xpgx"
)

var (
	submissionColumns = []string{
		"id", "unit_id", "assessment_year_id", "contributor_user_id", "status",
		"submitted_at", "approver_user_id", "approved_at", "rejection_reason", "return_comment",
		"created_at", "updated_at",
	}
	transitionColumns = []string{"id", "submission_id", "from_status", "to_status", "actor_user_id", "comment", "at"}
	responseColumns   = []string{
		"id", "submission_id", "sub_question_id", "answer", "validation_status",
		"central_rejection_reason", "regional_note", "general_note", "committee_note", "evidence_link", "chairman_score",
		"updated_at",
	}
)

func (s *store) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	query := builder().Insert(tableSubmissions).
		Columns(submissionColumns...).
		Values(
			sub.ID, sub.UnitID, sub.AssessmentYearID, sub.ContributorUserID, string(sub.Status),
			sub.SubmittedAt, sub.ApproverUserID, sub.ApprovedAt, sub.RejectionReason, sub.ReturnComment,
			sub.CreatedAt, sub.UpdatedAt,
		).
		Suffix("on conflict (unit_id, assessment_year_id) do nothing")

	tag, err := xpgx.Execx(ctx, s.pool, query)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return constants.ErrAlreadyExists
	}
	return nil
}

func (s *store) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	query := builder().Select(submissionColumns...).
		From(tableSubmissions).
		Where(sq.Eq{"id": id})

	selected, err := xpgx.Getx[domain.Submission](ctx, s.pool, query)
	if err != nil {
		return nil, wrapErr(err)
	}
	return selected, nil
}

func (s *store) GetSubmissionByUnitYear(ctx context.Context, unitID, yearID string) (*domain.Submission, error) {
	query := builder().Select(submissionColumns...).
		From(tableSubmissions).
		Where(sq.Eq{"unit_id": unitID, "assessment_year_id": yearID})

	selected, err := xpgx.Getx[domain.Submission](ctx, s.pool, query)
	if err != nil {
		return nil, wrapErr(err)
	}
	return selected, nil
}

func (s *store) ListSubmissions(ctx context.Context, opts ListSubmissionsOpts) ([]*domain.Submission, error) {
	query := builder().Select(submissionColumns...).
		From(tableSubmissions).
		OrderBy("created_at, id")

	if opts.YearID != "" {
		query = query.Where(sq.Eq{"assessment_year_id": opts.YearID})
	}
	if opts.UnitIDs != nil {
		query = query.Where(sq.Eq{"unit_id": opts.UnitIDs})
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, 0, len(opts.Statuses))
		for _, st := range opts.Statuses {
			statuses = append(statuses, string(st))
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	return xpgx.Selectx[domain.Submission](ctx, s.pool, query)
}

func transitionQuery(sub *domain.Submission, expected domain.Status) sq.UpdateBuilder {
	return builder().Update(tableSubmissions).
		Set("status", string(sub.Status)).
		Set("submitted_at", sub.SubmittedAt).
		Set("approver_user_id", sub.ApproverUserID).
		Set("approved_at", sub.ApprovedAt).
		Set("rejection_reason", sub.RejectionReason).
		Set("return_comment", sub.ReturnComment).
		Set("updated_at", sub.UpdatedAt).
		Where(sq.Eq{"id": sub.ID, "status": string(expected)})
}

func (s *store) TransitionSubmission(ctx context.Context, c SubmissionChange) error {
	sub := c.Submission
	return xpgx.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := xpgx.Execx(ctx, tx, transitionQuery(sub, c.Expected))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			logger.Warnf(ctx, "submission %s left %s before the update", sub.ID, c.Expected)
			return constants.ErrConflict
		}

		if len(c.Transitions) > 0 {
			insert := builder().Insert(tableTransitions).Columns(transitionColumns...)
			for _, t := range c.Transitions {
				insert = insert.Values(t.ID, t.SubmissionID, string(t.From), string(t.To), t.ActorUserID, t.Comment, t.At)
			}
			if _, err := xpgx.Execx(ctx, tx, insert); err != nil {
				return fmt.Errorf("insert transitions: %w", err)
			}
		}

		for _, r := range c.Responses {
			if r.SubmissionID != sub.ID {
				return fmt.Errorf("response %s belongs to submission %s", r.ID, r.SubmissionID)
			}
			query, err := upsertResponseQuery(r)
			if err != nil {
				return err
			}
			if _, err := xpgx.Execx(ctx, tx, query); err != nil {
				return fmt.Errorf("upsert response %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (s *store) DeleteSubmission(ctx context.Context, id string, expected domain.Status) error {
	query := builder().Delete(tableSubmissions).
		Where(sq.Eq{"id": id, "status": string(expected)})

	tag, err := xpgx.Execx(ctx, s.pool, query)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return constants.ErrConflict
	}
	return nil
}

func (s *store) ListTransitions(ctx context.Context, submissionID string) ([]*domain.Transition, error) {
	query := builder().Select(transitionColumns...).
		From(tableTransitions).
		Where(sq.Eq{"submission_id": submissionID}).
		OrderBy("at, seq")

	return xpgx.Selectx[domain.Transition](ctx, s.pool, query)
}

func upsertResponseQuery(r *domain.Response) (sq.InsertBuilder, error) {
	answer, err := sonic.Marshal(r.Answer)
	if err != nil {
		return sq.InsertBuilder{}, fmt.Errorf("failed to marshal answer: %w", err)
	}

	return builder().Insert(tableResponses).
		Columns(responseColumns...).
		Values(
			r.ID, r.SubmissionID, r.SubQuestionID, answer, string(r.ValidationStatus),
			r.CentralRejectionReason, r.RegionalNote, r.GeneralNote, r.CommitteeNote, r.EvidenceLink, r.ChairmanScore, r.UpdatedAt,
		).
		Suffix(`
on conflict (submission_id, sub_question_id)
do update
set
	answer = excluded.answer,
	validation_status = excluded.validation_status,
	central_rejection_reason = excluded.central_rejection_reason,
	regional_note = excluded.regional_note,
	general_note = excluded.general_note,
	committee_note = excluded.committee_note,
	evidence_link = excluded.evidence_link,
	chairman_score = excluded.chairman_score,
	updated_at = excluded.updated_at`), nil
}

func (s *store) UpsertResponse(ctx context.Context, r *domain.Response) error {
	query, err := upsertResponseQuery(r)
	if err != nil {
		return err
	}
	if _, err := xpgx.Execx(ctx, s.pool, query); err != nil {
		logger.Error(ctx, err.Error())
		return err
	}
	return nil
}

func (s *store) GetResponse(ctx context.Context, id string) (*domain.Response, error) {
	query := builder().Select(responseColumns...).
		From(tableResponses).
		Where(sq.Eq{"id": id})

	selected, err := xpgx.Getx[domain.Response](ctx, s.pool, query)
	if err != nil {
		return nil, wrapErr(err)
	}
	return selected, nil
}

func (s *store) ListResponses(ctx context.Context, submissionID string) ([]*domain.Response, error) {
	query := builder().Select(responseColumns...).
		From(tableResponses).
		Where(sq.Eq{"submission_id": submissionID}).
		OrderBy("id")

	return xpgx.Selectx[domain.Response](ctx, s.pool, query)
}
