package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/events"
	"github.com/ougirez/maturity/internal/pkg/hierarchy"
	"github.com/ougirez/maturity/internal/pkg/store"
	"github.com/ougirez/maturity/internal/pkg/store/memstore"
	"github.com/ougirez/maturity/internal/service/access"
)

var (
	contributor = user("c-oromia", domain.RoleRegionalContributor, "oromia")
	approver    = user("a-oromia", domain.RoleRegionalApprover, "oromia")
	outsider    = user("a-amhara", domain.RoleRegionalApprover, "amhara")
	member1     = user("m1", domain.RoleCommitteeMember, "")
	member2     = user("m2", domain.RoleCommitteeMember, "")
	chairman    = user("chair", domain.RoleCommitteeChairman, "")
	secretary   = user("sec", domain.RoleCommitteeSecretary, "")
)

func user(id string, role domain.Role, home string) *domain.User {
	u := &domain.User{ID: id, Name: id, Role: role}
	if home != "" {
		u.OfficialUnitID = &home
	}
	return u
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	svc    *Service
	store  *memstore.Store
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	prev := timeNow
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = prev })

	parent := "oromia"
	units := []domain.AdministrativeUnit{
		{ID: "oromia", Name: "Oromia", Type: domain.UnitRegion},
		{ID: "east-shewa", Name: "East Shewa", Type: domain.UnitZone, ParentID: &parent},
		{ID: "amhara", Name: "Amhara", Type: domain.UnitRegion},
	}
	idx, err := hierarchy.Build(units)
	require.NoError(t, err)

	st := memstore.New()
	st.PutUnits(units...)
	st.PutUsers(*contributor, *approver, *outsider, *member1, *member2, *chairman, *secretary)

	require.NoError(t, st.CreateYear(ctx, &domain.AssessmentYear{ID: "2025", Name: "2025", Status: domain.YearActive}))
	require.NoError(t, st.CreateYear(ctx, &domain.AssessmentYear{ID: "2026", Name: "2026", Status: domain.YearDraft}))
	require.NoError(t, st.CreateDimension(ctx, &domain.Dimension{ID: "d1", YearID: "2025", Name: "Infrastructure", Weight: 60}))
	require.NoError(t, st.CreateDimension(ctx, &domain.Dimension{ID: "d2", YearID: "2025", Name: "Services", Weight: 40}))
	require.NoError(t, st.CreateIndicator(ctx, &domain.Indicator{ID: "i1", DimensionID: "d1", Name: "Network", Weight: 100, ApplicableUnitType: domain.UnitRegion}))
	require.NoError(t, st.CreateIndicator(ctx, &domain.Indicator{ID: "i2", DimensionID: "d2", Name: "Portals", Weight: 100, ApplicableUnitType: domain.UnitRegion}))
	require.NoError(t, st.CreateSubQuestion(ctx, &domain.SubQuestion{ID: "q-yes", IndicatorID: "i1", Text: "Has fibre?", Weight: 50, ResponseType: domain.ResponseYesNo}))
	require.NoError(t, st.CreateSubQuestion(ctx, &domain.SubQuestion{ID: "q-text", IndicatorID: "i1", Text: "Describe", Weight: 50, ResponseType: domain.ResponseText}))
	require.NoError(t, st.CreateSubQuestion(ctx, &domain.SubQuestion{ID: "q-multi", IndicatorID: "i2", Text: "Channels", Weight: 100, ResponseType: domain.ResponseMultiSelect, CheckboxOptions: []string{"web", "sms"}}))

	rec := &recorder{}
	return &fixture{
		svc:    NewService(st, access.NewStaticResolver(idx), rec, 2),
		store:  st,
		events: rec,
	}
}

func yes() *bool {
	v := true
	return &v
}

// draft creates the oromia submission with every question answered.
func (f *fixture) draft(t *testing.T) *domain.Submission {
	t.Helper()
	ctx := context.Background()
	sub, err := f.svc.CreateSubmission(ctx, contributor, "oromia", "2025")
	require.NoError(t, err)

	_, err = f.svc.SaveResponse(ctx, contributor, sub.ID, "q-yes", ResponseInput{Answer: domain.Answer{YesNo: yes()}})
	require.NoError(t, err)
	_, err = f.svc.SaveResponse(ctx, contributor, sub.ID, "q-text", ResponseInput{Answer: domain.Answer{Text: "We run a regional data centre."}})
	require.NoError(t, err)
	_, err = f.svc.SaveResponse(ctx, contributor, sub.ID, "q-multi", ResponseInput{Answer: domain.Answer{Selected: []string{"web"}}})
	require.NoError(t, err)
	return sub
}

// pendingCentral drives a fresh submission to PendingCentralValidation.
func (f *fixture) pendingCentral(t *testing.T) *domain.Submission {
	t.Helper()
	ctx := context.Background()
	sub := f.draft(t)
	_, err := f.svc.SubmitForApproval(ctx, contributor, sub.ID)
	require.NoError(t, err)
	sub, err = f.svc.ApproveInitial(ctx, approver, sub.ID)
	require.NoError(t, err)
	return sub
}

func (f *fixture) responses(t *testing.T, submissionID string) map[string]*domain.Response {
	t.Helper()
	rs, err := f.store.ListResponses(context.Background(), submissionID)
	require.NoError(t, err)
	res := make(map[string]*domain.Response, len(rs))
	for _, r := range rs {
		res[r.SubQuestionID] = r
	}
	return res
}

func (f *fixture) approveAll(t *testing.T, submissionID string) {
	t.Helper()
	for _, r := range f.responses(t, submissionID) {
		_, err := f.svc.ValidateResponse(context.Background(), member1, r.ID, Validation{Status: domain.ValidationApproved})
		require.NoError(t, err)
	}
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.pendingCentral(t)
	f.approveAll(t, sub.ID)

	decision, err := f.svc.SubmitCentralValidation(ctx, member1, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, decision.Rejected)
	assert.Equal(t, domain.StatusPendingSubjectiveScoring, decision.Submission.Status)

	text := f.responses(t, sub.ID)["q-text"]
	_, err = f.svc.SubmitScoringEntry(ctx, member1, text.ID, domain.ScoreMeets)
	require.NoError(t, err)
	_, err = f.svc.SubmitScoringEntry(ctx, member2, text.ID, domain.ScoreDoesNotMeet)
	require.NoError(t, err)

	agg, err := f.svc.AggregateScore(ctx, secretary, text.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, agg.Average, 1e-9)
	assert.InDelta(t, 0.5, agg.Final, 1e-9)

	_, err = f.svc.SubmitScoringToChairman(ctx, member1, sub.ID)
	require.NoError(t, err)

	done, err := f.svc.FinalizeScoring(ctx, chairman, sub.ID, map[string]float64{text.ID: 1.0})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScoringComplete, done.Status)

	agg, err = f.svc.AggregateScore(ctx, chairman, text.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, agg.Average, 1e-9)
	assert.InDelta(t, 1.0, agg.Final, 1e-9)

	history, err := f.svc.History(ctx, contributor, sub.ID)
	require.NoError(t, err)
	want := []domain.Status{
		domain.StatusPendingInitialApproval,
		domain.StatusPendingCentralValidation,
		domain.StatusValidated,
		domain.StatusPendingSubjectiveScoring,
		domain.StatusPendingChairmanApproval,
		domain.StatusScoringComplete,
	}
	require.Len(t, history, len(want))
	prev := domain.StatusDraft
	for i, tr := range history {
		assert.Equal(t, prev, tr.From)
		assert.Equal(t, want[i], tr.To)
		assert.True(t, CanTransition(tr.From, tr.To))
		prev = tr.To
	}

	assert.Equal(t, len(want), f.events.count(events.TypeSubmissionUpdated)-3) // three answers saved
	assert.Equal(t, 2, f.events.count(events.TypeResponseScored))
}

func TestValidatedWithoutTextStaysValidated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.pendingCentral(t)
	f.approveAll(t, sub.ID)

	f.svc = NewService(noText{f.store}, f.svc.auth, f.events, 2)

	decision, err := f.svc.SubmitCentralValidation(ctx, member1, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidated, decision.Submission.Status)
}

// noText serves the framework with every text question turned into yes/no.
type noText struct {
	*memstore.Store
}

func (n noText) GetFramework(ctx context.Context, yearID string) (*domain.Framework, error) {
	fw, err := n.Store.GetFramework(ctx, yearID)
	if err != nil {
		return nil, err
	}
	for _, q := range fw.SubQuestions() {
		if q.ResponseType == domain.ResponseText {
			q.ResponseType = domain.ResponseYesNo
		}
	}
	return fw, nil
}

// failOnce rejects the first change that lands on target, as a dropped
// connection would, and passes everything else through.
type failOnce struct {
	*memstore.Store
	target domain.Status
	failed bool
}

func (f *failOnce) TransitionSubmission(ctx context.Context, c store.SubmissionChange) error {
	if !f.failed && c.Submission.Status == f.target {
		f.failed = true
		return errors.New("connection reset by peer")
	}
	return f.Store.TransitionSubmission(ctx, c)
}

func TestFailedAutoAdvanceWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.pendingCentral(t)
	f.approveAll(t, sub.ID)
	f.svc = NewService(&failOnce{Store: f.store, target: domain.StatusPendingSubjectiveScoring}, f.svc.auth, f.events, 2)
	before := f.events.count(events.TypeSubmissionUpdated)

	_, err := f.svc.SubmitCentralValidation(ctx, member1, sub.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, constants.ErrConflict)

	stored, err := f.store.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingCentralValidation, stored.Status)
	history, err := f.store.ListTransitions(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, before, f.events.count(events.TypeSubmissionUpdated))

	// the retry goes through both hops
	decision, err := f.svc.SubmitCentralValidation(ctx, member1, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingSubjectiveScoring, decision.Submission.Status)
	history, err = f.store.ListTransitions(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, domain.StatusValidated, history[2].To)
	assert.Equal(t, domain.StatusValidated, history[3].From)
	assert.Equal(t, domain.StatusPendingSubjectiveScoring, history[3].To)
	assert.Equal(t, before+2, f.events.count(events.TypeSubmissionUpdated))
}

func TestFailedResubmitKeepsResponsesRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.pendingCentral(t)
	rs := f.responses(t, sub.ID)
	reason := "link is dead"
	_, err := f.svc.ValidateResponse(ctx, member1, rs["q-multi"].ID, Validation{Status: domain.ValidationRejected, Reason: &reason})
	require.NoError(t, err)
	_, err = f.svc.SubmitCentralValidation(ctx, member1, sub.ID)
	require.NoError(t, err)

	f.svc = NewService(&failOnce{Store: f.store, target: domain.StatusPendingCentralValidation}, f.svc.auth, f.events, 2)

	_, err = f.svc.ResubmitToCentralCommittee(ctx, approver, sub.ID)
	require.Error(t, err)
	stored, err := f.store.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejectedByCentralCommittee, stored.Status)
	assert.Equal(t, domain.ValidationRejected, f.responses(t, sub.ID)["q-multi"].ValidationStatus)

	back, err := f.svc.ResubmitToCentralCommittee(ctx, approver, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingCentralValidation, back.Status)
	reopened := f.responses(t, sub.ID)["q-multi"]
	assert.Equal(t, domain.ValidationPending, reopened.ValidationStatus)
	require.NotNil(t, reopened.CentralRejectionReason)
	assert.Equal(t, reason, *reopened.CentralRejectionReason)
}

func TestFailedFinalizeKeepsCommitteeAverage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, text := f.scoringReady(t)
	_, err := f.svc.SubmitScoringEntry(ctx, member1, text.ID, domain.ScoreMeets)
	require.NoError(t, err)
	_, err = f.svc.SubmitScoringEntry(ctx, member2, text.ID, domain.ScoreDoesNotMeet)
	require.NoError(t, err)
	_, err = f.svc.SubmitScoringToChairman(ctx, member1, sub.ID)
	require.NoError(t, err)

	f.svc = NewService(&failOnce{Store: f.store, target: domain.StatusScoringComplete}, f.svc.auth, f.events, 2)

	_, err = f.svc.FinalizeScoring(ctx, chairman, sub.ID, map[string]float64{text.ID: 1.0})
	require.Error(t, err)
	assert.Nil(t, f.responses(t, sub.ID)["q-text"].ChairmanScore)

	done, err := f.svc.FinalizeScoring(ctx, chairman, sub.ID, map[string]float64{text.ID: 1.0})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScoringComplete, done.Status)
	require.NotNil(t, f.responses(t, sub.ID)["q-text"].ChairmanScore)
	assert.InDelta(t, 1.0, *f.responses(t, sub.ID)["q-text"].ChairmanScore, 1e-9)
}

func TestCreateSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateSubmission(ctx, contributor, "amhara", "2025")
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)

	_, err = f.svc.CreateSubmission(ctx, approver, "oromia", "2025")
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)

	_, err = f.svc.CreateSubmission(ctx, contributor, "oromia", "2026")
	assert.ErrorIs(t, err, constants.ErrInvalidState)

	_, err = f.svc.CreateSubmission(ctx, contributor, "oromia", "1999")
	assert.ErrorIs(t, err, constants.ErrNotFound)

	sub, err := f.svc.CreateSubmission(ctx, contributor, "oromia", "2025")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, sub.Status)
	assert.Equal(t, contributor.ID, sub.ContributorUserID)

	_, err = f.svc.CreateSubmission(ctx, contributor, "oromia", "2025")
	assert.ErrorIs(t, err, constants.ErrAlreadyExists)
	assert.Equal(t, 1, f.events.count(events.TypeSubmissionCreated))
}

func TestSaveResponseValidatesAnswers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, err := f.svc.CreateSubmission(ctx, contributor, "oromia", "2025")
	require.NoError(t, err)

	_, err = f.svc.SaveResponse(ctx, contributor, sub.ID, "q-multi", ResponseInput{Answer: domain.Answer{Selected: []string{"fax"}}})
	assert.ErrorIs(t, err, constants.ErrValidation)

	_, err = f.svc.SaveResponse(ctx, contributor, sub.ID, "q-yes", ResponseInput{Answer: domain.Answer{Text: "yes"}})
	assert.ErrorIs(t, err, constants.ErrValidation)

	_, err = f.svc.SaveResponse(ctx, contributor, sub.ID, "q-ghost", ResponseInput{Answer: domain.Answer{YesNo: yes()}})
	assert.ErrorIs(t, err, constants.ErrNotFound)

	_, err = f.svc.SaveResponse(ctx, approver, sub.ID, "q-yes", ResponseInput{Answer: domain.Answer{YesNo: yes()}})
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)

	first, err := f.svc.SaveResponse(ctx, contributor, sub.ID, "q-yes", ResponseInput{Answer: domain.Answer{YesNo: yes()}})
	require.NoError(t, err)
	no := false
	second, err := f.svc.SaveResponse(ctx, contributor, sub.ID, "q-yes", ResponseInput{Answer: domain.Answer{YesNo: &no}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, *f.responses(t, sub.ID)["q-yes"].Answer.YesNo)
}

func TestSubmitForApprovalRequiresEveryAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, err := f.svc.CreateSubmission(ctx, contributor, "oromia", "2025")
	require.NoError(t, err)
	_, err = f.svc.SaveResponse(ctx, contributor, sub.ID, "q-yes", ResponseInput{Answer: domain.Answer{YesNo: yes()}})
	require.NoError(t, err)

	_, err = f.svc.SubmitForApproval(ctx, contributor, sub.ID)
	var verr *constants.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []constants.FieldError{
		{Field: "responses.q-multi", Reason: "answer required"},
		{Field: "responses.q-text", Reason: "answer required"},
	}, verr.Fields)
}

func TestAnswersLockedOnceSubmitted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.draft(t)
	_, err := f.svc.SubmitForApproval(ctx, contributor, sub.ID)
	require.NoError(t, err)

	_, err = f.svc.SaveResponse(ctx, contributor, sub.ID, "q-yes", ResponseInput{Answer: domain.Answer{YesNo: yes()}})
	assert.ErrorIs(t, err, constants.ErrInvalidState)
	assert.ErrorIs(t, f.svc.DeleteSubmission(ctx, contributor, sub.ID), constants.ErrInvalidState)
}

func TestRegionalRejectionLoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.draft(t)
	_, err := f.svc.SubmitForApproval(ctx, contributor, sub.ID)
	require.NoError(t, err)

	_, err = f.svc.RejectInitial(ctx, outsider, sub.ID, "not yours")
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)
	_, err = f.svc.RejectInitial(ctx, approver, sub.ID, "")
	assert.ErrorIs(t, err, constants.ErrValidation)

	text := f.responses(t, sub.ID)["q-text"]
	noted, err := f.svc.SetRegionalNote(ctx, approver, text.ID, "add evidence")
	require.NoError(t, err)
	assert.Equal(t, "add evidence", *noted.RegionalNote)

	rejected, err := f.svc.RejectInitial(ctx, approver, sub.ID, "evidence missing")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejectedByRegionalApprover, rejected.Status)
	assert.Equal(t, "evidence missing", *rejected.RejectionReason)

	again, err := f.svc.SubmitForApproval(ctx, contributor, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingInitialApproval, again.Status)
	assert.Nil(t, again.RejectionReason)
}

func TestConcurrentApprovalsConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.draft(t)
	_, err := f.svc.SubmitForApproval(ctx, contributor, sub.ID)
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ApproveInitial(ctx, approver, sub.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, constants.ErrConflict)
	}
	assert.Equal(t, 1, ok)

	history, err := f.svc.History(ctx, approver, sub.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestWrongSourceStateIsInvalid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.draft(t)

	_, err := f.svc.ApproveInitial(ctx, approver, sub.ID)
	assert.ErrorIs(t, err, constants.ErrInvalidState)

	_, err = f.svc.FinalizeScoring(ctx, chairman, sub.ID, nil)
	assert.ErrorIs(t, err, constants.ErrInvalidState)

	_, err = f.svc.SubmitCentralValidation(ctx, member1, sub.ID)
	assert.ErrorIs(t, err, constants.ErrInvalidState)

	assert.False(t, CanTransition(domain.StatusDraft, domain.StatusValidated))
	assert.False(t, CanTransition(domain.StatusScoringComplete, domain.StatusDraft))
	assert.True(t, CanTransition(domain.StatusRejectedByCentralCommittee, domain.StatusDraft))
}

func TestCentralRejectionCarriesExactReasons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.pendingCentral(t)
	rs := f.responses(t, sub.ID)

	reason := "no evidence of fibre"
	_, err := f.svc.ValidateResponse(ctx, member1, rs["q-yes"].ID, Validation{Status: domain.ValidationRejected, Reason: &reason})
	require.NoError(t, err)
	_, err = f.svc.ValidateResponse(ctx, member1, rs["q-multi"].ID, Validation{Status: domain.ValidationApproved})
	require.NoError(t, err)

	decision, err := f.svc.SubmitCentralValidation(ctx, chairman, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejectedByCentralCommittee, decision.Submission.Status)
	assert.Equal(t, []RejectedResponse{{ResponseID: rs["q-yes"].ID, SubQuestionID: "q-yes", Reason: reason}}, decision.Rejected)

	// the contributor fixes the answer, the approver sends it back up
	no := false
	_, err = f.svc.SaveResponse(ctx, contributor, sub.ID, "q-yes", ResponseInput{Answer: domain.Answer{YesNo: &no}})
	require.NoError(t, err)
	back, err := f.svc.ResubmitToCentralCommittee(ctx, approver, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingCentralValidation, back.Status)
	assert.Equal(t, domain.ValidationPending, f.responses(t, sub.ID)["q-yes"].ValidationStatus)
}

func TestNotesKeepTheirOwners(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.pendingCentral(t)
	id := f.responses(t, sub.ID)["q-yes"].ID

	reason, remark := "no evidence of fibre", "ask the regional ICT bureau"
	_, err := f.svc.ValidateResponse(ctx, member1, id, Validation{Status: domain.ValidationRejected, Reason: &reason, Note: &remark})
	require.NoError(t, err)
	_, err = f.svc.SubmitCentralValidation(ctx, member1, sub.ID)
	require.NoError(t, err)

	own := "fibre reached the zone offices in May"
	saved, err := f.svc.SaveResponse(ctx, contributor, sub.ID, "q-yes", ResponseInput{Answer: domain.Answer{YesNo: yes()}, GeneralNote: &own})
	require.NoError(t, err)
	assert.Equal(t, own, *saved.GeneralNote)
	require.NotNil(t, saved.CommitteeNote)
	assert.Equal(t, remark, *saved.CommitteeNote)

	stored := f.responses(t, sub.ID)["q-yes"]
	assert.Equal(t, own, *stored.GeneralNote)
	assert.Equal(t, remark, *stored.CommitteeNote)
}

func TestRejectToContributor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.pendingCentral(t)
	reason := "wrong"
	_, err := f.svc.ValidateResponse(ctx, member1, f.responses(t, sub.ID)["q-text"].ID, Validation{Status: domain.ValidationRejected, Reason: &reason})
	require.NoError(t, err)
	_, err = f.svc.SubmitCentralValidation(ctx, member1, sub.ID)
	require.NoError(t, err)

	_, err = f.svc.RejectToContributor(ctx, approver, sub.ID, "")
	assert.ErrorIs(t, err, constants.ErrValidation)

	back, err := f.svc.RejectToContributor(ctx, approver, sub.ID, "please rewrite the explanation")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, back.Status)
	assert.Equal(t, "please rewrite the explanation", *back.ReturnComment)

	_, err = f.svc.ResubmitToCentralCommittee(ctx, approver, sub.ID)
	assert.ErrorIs(t, err, constants.ErrConflict)
}

func TestPendingResponsesBlockCentralValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.pendingCentral(t)
	_, err := f.svc.ValidateResponse(ctx, member1, f.responses(t, sub.ID)["q-yes"].ID, Validation{Status: domain.ValidationApproved})
	require.NoError(t, err)

	_, err = f.svc.SubmitCentralValidation(ctx, member1, sub.ID)
	assert.ErrorIs(t, err, constants.ErrInvalidState)

	_, err = f.svc.SubmitCentralValidation(ctx, secretary, sub.ID)
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)
}

func TestValidateResponseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.pendingCentral(t)
	id := f.responses(t, sub.ID)["q-yes"].ID
	note := "checked on site"

	for i := 0; i < 3; i++ {
		r, err := f.svc.ValidateResponse(ctx, member1, id, Validation{Status: domain.ValidationApproved, Note: &note})
		require.NoError(t, err)
		assert.Equal(t, domain.ValidationApproved, r.ValidationStatus)
	}
	assert.Equal(t, 1, f.events.count(events.TypeResponseValidated))

	_, err := f.svc.ValidateResponse(ctx, member1, id, Validation{Status: domain.ValidationRejected})
	assert.ErrorIs(t, err, constants.ErrValidation)
	_, err = f.svc.ValidateResponse(ctx, member1, "ghost", Validation{Status: domain.ValidationApproved})
	assert.ErrorIs(t, err, constants.ErrNotFound)
}

// scoringReady drives a submission to PendingSubjectiveScoring.
func (f *fixture) scoringReady(t *testing.T) (*domain.Submission, *domain.Response) {
	t.Helper()
	sub := f.pendingCentral(t)
	f.approveAll(t, sub.ID)
	_, err := f.svc.SubmitCentralValidation(context.Background(), member1, sub.ID)
	require.NoError(t, err)
	return sub, f.responses(t, sub.ID)["q-text"]
}

func TestScoringNeedsWholeRoster(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, text := f.scoringReady(t)

	_, err := f.svc.SubmitScoringEntry(ctx, member1, text.ID, domain.ScoreMeets)
	require.NoError(t, err)
	// re-scoring replaces the entry and does not count twice
	_, err = f.svc.SubmitScoringEntry(ctx, member1, text.ID, domain.ScorePartiallyMeets)
	require.NoError(t, err)

	p, err := f.svc.ScoringProgress(ctx, secretary, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, p.Complete)
	assert.Equal(t, 2, p.RosterSize)
	assert.False(t, p.Ready)

	_, err = f.svc.SubmitScoringToChairman(ctx, chairman, sub.ID)
	assert.ErrorIs(t, err, constants.ErrInvalidState)

	_, err = f.svc.SubmitScoringEntry(ctx, chairman, text.ID, domain.ScoreMeets)
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)
	_, err = f.svc.SubmitScoringEntry(ctx, member2, f.responses(t, sub.ID)["q-yes"].ID, domain.ScoreMeets)
	assert.ErrorIs(t, err, constants.ErrValidation)
	_, err = f.svc.SubmitScoringEntry(ctx, member2, text.ID, "excellent")
	assert.ErrorIs(t, err, constants.ErrValidation)
}

func TestRosterFallsBackToCommitteeMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.rosterSize = 0
	sub, text := f.scoringReady(t)

	for _, m := range []*domain.User{member1, member2} {
		_, err := f.svc.SubmitScoringEntry(ctx, m, text.ID, domain.ScoreMeets)
		require.NoError(t, err)
	}
	p, err := f.svc.ScoringProgress(ctx, chairman, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.RosterSize)
	assert.True(t, p.Ready)
}

func TestSecretaryCannotTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, text := f.scoringReady(t)
	for _, m := range []*domain.User{member1, member2} {
		_, err := f.svc.SubmitScoringEntry(ctx, m, text.ID, domain.ScoreMeets)
		require.NoError(t, err)
	}

	_, err := f.svc.SubmitScoringToChairman(ctx, secretary, sub.ID)
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)

	_, err = f.svc.SubmitScoringToChairman(ctx, member2, sub.ID)
	require.NoError(t, err)

	_, err = f.svc.FinalizeScoring(ctx, secretary, sub.ID, nil)
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)
	_, err = f.svc.FinalizeScoring(ctx, member1, sub.ID, nil)
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)

	_, err = f.svc.AggregateScore(ctx, secretary, text.ID)
	require.NoError(t, err)
}

func TestFinalizeRejectsBadOverrides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, text := f.scoringReady(t)
	for _, m := range []*domain.User{member1, member2} {
		_, err := f.svc.SubmitScoringEntry(ctx, m, text.ID, domain.ScorePartiallyMeets)
		require.NoError(t, err)
	}
	_, err := f.svc.SubmitScoringToChairman(ctx, member1, sub.ID)
	require.NoError(t, err)

	_, err = f.svc.FinalizeScoring(ctx, chairman, sub.ID, map[string]float64{text.ID: 1.5})
	assert.ErrorIs(t, err, constants.ErrValidation)
	_, err = f.svc.FinalizeScoring(ctx, chairman, sub.ID, map[string]float64{f.responses(t, sub.ID)["q-yes"].ID: 1})
	assert.ErrorIs(t, err, constants.ErrValidation)

	done, err := f.svc.FinalizeScoring(ctx, chairman, sub.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScoringComplete, done.Status)
	assert.Nil(t, f.responses(t, sub.ID)["q-text"].ChairmanScore)
}

func TestListAndGetRespectAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.draft(t)

	got, err := f.svc.List(ctx, approver, ListFilter{YearID: "2025"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sub.ID, got[0].ID)

	got, err = f.svc.List(ctx, outsider, ListFilter{YearID: "2025"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.svc.List(ctx, secretary, ListFilter{Statuses: []domain.Status{domain.StatusDraft}})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	view, err := f.svc.Get(ctx, approver, sub.ID)
	require.NoError(t, err)
	assert.Len(t, view.Responses, 3)

	_, err = f.svc.Get(ctx, outsider, sub.ID)
	assert.ErrorIs(t, err, constants.ErrPermissionDenied)
}

func TestDeleteSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.draft(t)

	assert.ErrorIs(t, f.svc.DeleteSubmission(ctx, approver, sub.ID), constants.ErrPermissionDenied)
	require.NoError(t, f.svc.DeleteSubmission(ctx, contributor, sub.ID))

	_, err := f.svc.Get(ctx, contributor, sub.ID)
	assert.ErrorIs(t, err, constants.ErrNotFound)
	assert.Equal(t, 1, f.events.count(events.TypeSubmissionDeleted))

	_, err = f.svc.CreateSubmission(ctx, contributor, "oromia", "2025")
	require.NoError(t, err)
}
