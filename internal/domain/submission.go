package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusDraft                      Status = "draft"
	StatusPendingInitialApproval     Status = "pending_initial_approval"
	StatusRejectedByRegionalApprover Status = "rejected_by_regional_approver"
	StatusPendingCentralValidation   Status = "pending_central_validation"
	StatusRejectedByCentralCommittee Status = "rejected_by_central_committee"
	StatusValidated                  Status = "validated"
	StatusPendingSubjectiveScoring   Status = "pending_subjective_scoring"
	StatusPendingChairmanApproval    Status = "pending_chairman_approval"
	StatusScoringComplete            Status = "scoring_complete"
)

func (s Status) IsTerminal() bool {
	return s == StatusScoringComplete
}

// IsEditable reports whether the contributor may still change answers.
func (s Status) IsEditable() bool {
	switch s {
	case StatusDraft, StatusRejectedByRegionalApprover, StatusRejectedByCentralCommittee:
		return true
	}
	return false
}

// IsScoreable reports whether the aggregation engine takes the submission into account.
func (s Status) IsScoreable() bool {
	return s == StatusValidated || s == StatusScoringComplete
}

type Submission struct {
	ID                string     `db:"id" json:"id"`
	UnitID            string     `db:"unit_id" json:"unit_id"`
	AssessmentYearID  string     `db:"assessment_year_id" json:"assessment_year_id"`
	ContributorUserID string     `db:"contributor_user_id" json:"contributor_user_id"`
	Status            Status     `db:"status" json:"status"`
	SubmittedAt       *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ApproverUserID    *string    `db:"approver_user_id" json:"approver_user_id,omitempty"`
	ApprovedAt        *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason   *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReturnComment     *string    `db:"return_comment" json:"return_comment,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "pending"
	ValidationApproved ValidationStatus = "approved"
	ValidationRejected ValidationStatus = "rejected"
)

// Answer holds exactly one kind of value, selected by the sub-question's response type.
type Answer struct {
	YesNo    *bool    `json:"yes_no,omitempty"`
	Selected []string `json:"selected,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// Validate checks the answer against the sub-question it answers.
func (a Answer) Validate(q *SubQuestion) error {
	switch q.ResponseType {
	case ResponseYesNo:
		if a.YesNo == nil {
			return fmt.Errorf("yes/no answer required")
		}
		if len(a.Selected) > 0 || a.Text != "" {
			return fmt.Errorf("yes/no question accepts only a yes/no value")
		}
	case ResponseMultiSelect:
		if a.YesNo != nil || a.Text != "" {
			return fmt.Errorf("checkbox question accepts only selected options")
		}
		allowed := make(map[string]bool, len(q.CheckboxOptions))
		for _, o := range q.CheckboxOptions {
			allowed[o] = true
		}
		seen := make(map[string]bool, len(a.Selected))
		for _, s := range a.Selected {
			if !allowed[s] {
				return fmt.Errorf("unknown option %q", s)
			}
			if seen[s] {
				return fmt.Errorf("option %q selected twice", s)
			}
			seen[s] = true
		}
	case ResponseText:
		if a.YesNo != nil || len(a.Selected) > 0 {
			return fmt.Errorf("text question accepts only an explanation")
		}
		if a.Text == "" {
			return fmt.Errorf("explanation required")
		}
	default:
		return fmt.Errorf("unknown response type %q", q.ResponseType)
	}
	return nil
}

type Response struct {
	ID                     string           `db:"id" json:"id"`
	SubmissionID           string           `db:"submission_id" json:"submission_id"`
	SubQuestionID          string           `db:"sub_question_id" json:"sub_question_id"`
	Answer                 Answer           `db:"answer" json:"answer"`
	ValidationStatus       ValidationStatus `db:"validation_status" json:"validation_status"`
	CentralRejectionReason *string          `db:"central_rejection_reason" json:"central_rejection_reason,omitempty"`
	RegionalNote           *string          `db:"regional_note" json:"regional_note,omitempty"`
	GeneralNote            *string          `db:"general_note" json:"general_note,omitempty"`
	CommitteeNote          *string          `db:"committee_note" json:"committee_note,omitempty"`
	EvidenceLink           *string          `db:"evidence_link" json:"evidence_link,omitempty"`
	// ChairmanScore replaces the committee average once set at finalization.
	ChairmanScore *float64  `db:"chairman_score" json:"chairman_score,omitempty"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Transition is one committed status change of a submission.
type Transition struct {
	ID           string    `db:"id" json:"id"`
	SubmissionID string    `db:"submission_id" json:"submission_id"`
	From         Status    `db:"from_status" json:"from"`
	To           Status    `db:"to_status" json:"to"`
	ActorUserID  string    `db:"actor_user_id" json:"actor_user_id"`
	Comment      *string   `db:"comment" json:"comment,omitempty"`
	At           time.Time `db:"at" json:"at"`
}
