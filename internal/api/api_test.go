package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/events"
	"github.com/ougirez/maturity/internal/pkg/hierarchy"
	"github.com/ougirez/maturity/internal/pkg/store/memstore"
	"github.com/ougirez/maturity/internal/service/access"
	"github.com/ougirez/maturity/internal/service/calculation"
	"github.com/ougirez/maturity/internal/service/framework"
	"github.com/ougirez/maturity/internal/service/review"
)

func newTestAPI(t *testing.T) *APIService {
	t.Helper()
	ctx := context.Background()

	units := []domain.AdministrativeUnit{
		{ID: "oromia", Name: "Oromia", Type: domain.UnitRegion},
		{ID: "amhara", Name: "Amhara", Type: domain.UnitRegion},
	}
	idx, err := hierarchy.Build(units)
	require.NoError(t, err)

	home := "oromia"
	st := memstore.New()
	st.PutUnits(units...)
	st.PutUsers(
		domain.User{ID: "contributor", Name: "Contributor", Role: domain.RoleRegionalContributor, OfficialUnitID: &home},
		domain.User{ID: "admin", Name: "Admin", Role: domain.RoleSuperAdmin},
	)

	require.NoError(t, st.CreateYear(ctx, &domain.AssessmentYear{ID: "2025", Name: "2025", Status: domain.YearActive}))
	require.NoError(t, st.CreateDimension(ctx, &domain.Dimension{ID: "d1", YearID: "2025", Name: "Infrastructure", Weight: 100}))
	require.NoError(t, st.CreateIndicator(ctx, &domain.Indicator{ID: "i1", DimensionID: "d1", Name: "Network", Weight: 100, ApplicableUnitType: domain.UnitRegion}))
	require.NoError(t, st.CreateSubQuestion(ctx, &domain.SubQuestion{ID: "q1", IndicatorID: "i1", Text: "Has fibre?", Weight: 100, ResponseType: domain.ResponseYesNo}))

	resolver := access.NewStaticResolver(idx)
	return NewAPIService(Options{
		Users:          st,
		Resolver:       resolver,
		Review:         review.NewService(st, resolver, events.Nop{}, 1),
		Framework:      framework.NewService(st, resolver),
		Calculation:    calculation.NewService(st, resolver, 2),
		DisableReqLogs: true,
	})
}

func do(svc *APIService, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestActorMiddleware(t *testing.T) {
	svc := newTestAPI(t)

	rec := do(svc, http.MethodGet, "/api/v1/submissions", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(svc, http.MethodGet, "/api/v1/submissions", "ghost", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(svc, http.MethodGet, "/api/v1/submissions", "contributor", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmissionFlow(t *testing.T) {
	svc := newTestAPI(t)

	rec := do(svc, http.MethodPost, "/api/v1/submissions", "contributor", `{"unit_id":"oromia","year_id":"2025"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[domain.Submission](t, rec)
	assert.Equal(t, domain.StatusDraft, sub.Status)

	rec = do(svc, http.MethodPost, "/api/v1/submissions/"+sub.ID+"/submit", "contributor", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "responses.q1", resp.Fields[0].Field)

	rec = do(svc, http.MethodPut, "/api/v1/submissions/"+sub.ID+"/responses/q1", "contributor", `{"answer":{"yes_no":true}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(svc, http.MethodPost, "/api/v1/submissions/"+sub.ID+"/submit", "contributor", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub = decode[domain.Submission](t, rec)
	assert.Equal(t, domain.StatusPendingInitialApproval, sub.Status)

	rec = do(svc, http.MethodPost, "/api/v1/submissions/"+sub.ID+"/submit", "contributor", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(svc, http.MethodPut, "/api/v1/submissions/"+sub.ID+"/responses/q1", "contributor", `{"answer":{"yes_no":false}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(svc, http.MethodGet, "/api/v1/submissions/"+sub.ID+"/history", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]domain.Transition](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusPendingInitialApproval, history[0].To)
}

func TestErrorMapping(t *testing.T) {
	svc := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		code   int
	}{
		{"missing fields", http.MethodPost, "/api/v1/submissions", "contributor", `{}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/submissions", "contributor", `{"unit_id":`, http.StatusBadRequest},
		{"foreign unit", http.MethodPost, "/api/v1/submissions", "contributor", `{"unit_id":"amhara","year_id":"2025"}`, http.StatusForbidden},
		{"unknown submission", http.MethodGet, "/api/v1/submissions/nope", "admin", "", http.StatusNotFound},
		{"contributor edits framework", http.MethodPut, "/api/v1/framework/dimensions/d1/weight", "contributor", `{"weight":50}`, http.StatusForbidden},
		{"weight above cap", http.MethodPut, "/api/v1/framework/dimensions/d1/weight", "admin", `{"weight":101}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(svc, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			resp := decode[errorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestMissingFieldsAreNamed(t *testing.T) {
	svc := newTestAPI(t)

	rec := do(svc, http.MethodPost, "/api/v1/submissions", "contributor", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "unit_id", resp.Fields[0].Field)
	assert.Equal(t, "year_id", resp.Fields[1].Field)
}

func TestAccessibleUnitsAndIndex(t *testing.T) {
	svc := newTestAPI(t)

	rec := do(svc, http.MethodGet, "/api/v1/units/accessible", "contributor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	units := decode[[]domain.AdministrativeUnit](t, rec)
	require.Len(t, units, 1)
	assert.Equal(t, "oromia", units[0].ID)

	rec = do(svc, http.MethodGet, "/api/v1/units/amhara/index?year_id=2025", "contributor", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(svc, http.MethodGet, "/api/v1/units/oromia/index?year_id=2025", "contributor", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	score := decode[calculation.UnitScore](t, rec)
	assert.False(t, score.HasData)
}
