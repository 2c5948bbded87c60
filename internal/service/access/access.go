// Package access decides which units and submissions an actor can reach and
// which actions the actor may perform. Nothing here returns an error: a nil
// actor, an unknown unit or an unknown action all mean "no".
package access

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/hierarchy"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/pkg/store"
)

type Action string

const (
	ActionCreateUser         Action = "create_user"
	ActionManageFramework    Action = "manage_framework"
	ActionSubmitData         Action = "submit_data"
	ActionApproveSubmission  Action = "approve_submission"
	ActionValidateSubmission Action = "validate_submission"
	ActionEditSubmission     Action = "edit_submission"
	ActionDeleteSubmission   Action = "delete_submission"
	ActionViewAllSubmissions Action = "view_all_submissions"
	ActionScoreResponse      Action = "score_response"
	ActionSubmitScoring      Action = "submit_scoring"
	ActionFinalizeScoring    Action = "finalize_scoring"
	ActionViewScoring        Action = "view_scoring"
)

var contributors = []domain.Role{
	domain.RoleRegionalContributor,
	domain.RoleZoneContributor,
	domain.RoleWoredaContributor,
	domain.RoleFederalContributor,
}

var capabilities = map[Action]map[domain.Role]bool{
	ActionCreateUser:         roles(domain.RoleSuperAdmin, domain.RoleMInTAdmin),
	ActionManageFramework:    roles(domain.RoleSuperAdmin, domain.RoleMInTAdmin),
	ActionSubmitData:         roles(contributors...),
	ActionApproveSubmission:  roles(domain.RoleRegionalApprover, domain.RoleZoneApprover, domain.RoleFederalApprover),
	ActionValidateSubmission: roles(domain.RoleCommitteeMember, domain.RoleCommitteeChairman, domain.RoleSuperAdmin),
	ActionEditSubmission:     roles(contributors...),
	ActionDeleteSubmission:   roles(contributors...),
	ActionViewAllSubmissions: roles(domain.RoleSuperAdmin, domain.RoleMInTAdmin, domain.RoleCommitteeMember, domain.RoleCommitteeSecretary, domain.RoleCommitteeChairman),
	ActionScoreResponse:      roles(domain.RoleCommitteeMember),
	ActionSubmitScoring:      roles(domain.RoleCommitteeMember, domain.RoleCommitteeChairman),
	ActionFinalizeScoring:    roles(domain.RoleCommitteeChairman),
	ActionViewScoring:        roles(domain.RoleCommitteeMember, domain.RoleCommitteeSecretary, domain.RoleCommitteeChairman),
}

func roles(rs ...domain.Role) map[domain.Role]bool {
	m := make(map[domain.Role]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

type Resolver struct {
	units store.UnitReader
	index atomic.Pointer[hierarchy.Index]
}

func NewResolver(units store.UnitReader) *Resolver {
	return &Resolver{units: units}
}

// NewStaticResolver serves a prebuilt index and cannot be refreshed.
func NewStaticResolver(idx *hierarchy.Index) *Resolver {
	r := &Resolver{}
	r.index.Store(idx)
	return r
}

// Refresh rebuilds the hierarchy index from the unit table. Readers keep using
// the previous index until the new one is swapped in.
func (r *Resolver) Refresh(ctx context.Context) error {
	if r.units == nil {
		return nil
	}
	units, err := r.units.ListUnits(ctx)
	if err != nil {
		return fmt.Errorf("units.ListUnits: %w", err)
	}
	idx, err := hierarchy.Build(units)
	if err != nil {
		return fmt.Errorf("hierarchy.Build: %w", err)
	}
	r.index.Store(idx)
	logger.Infof(ctx, "hierarchy index rebuilt with %d units", idx.Len())
	return nil
}

// Index is the current hierarchy snapshot. It is nil before the first Refresh.
func (r *Resolver) Index() *hierarchy.Index {
	return r.index.Load()
}

func (r *Resolver) CanAccessUnit(actor *domain.User, targetUnitID string) bool {
	if actor == nil || targetUnitID == "" {
		return false
	}
	idx := r.index.Load()
	if !idx.Has(targetUnitID) {
		return false
	}
	if actor.Role.IsGlobal() {
		return true
	}
	home := actor.HomeUnit()
	if home == "" {
		return false
	}
	if targetUnitID == home {
		return true
	}
	return actor.Role.IsApprover() && idx.IsDescendant(home, targetUnitID)
}

func (r *Resolver) AccessibleUnitIDs(actor *domain.User) map[string]struct{} {
	res := make(map[string]struct{})
	if actor == nil {
		return res
	}
	idx := r.index.Load()

	if actor.Role.IsGlobal() {
		for _, u := range idx.All() {
			res[u.ID] = struct{}{}
		}
		return res
	}

	home := actor.HomeUnit()
	if !idx.Has(home) {
		return res
	}
	switch {
	case actor.Role.IsApprover():
		res[home] = struct{}{}
		for id := range idx.Descendants(home) {
			res[id] = struct{}{}
		}
	case actor.Role.IsContributor():
		res[home] = struct{}{}
	}
	return res
}

// FilterSubmissionsByAccess keeps the submissions whose unit the actor can
// reach, in input order.
func (r *Resolver) FilterSubmissionsByAccess(submissions []*domain.Submission, actor *domain.User) []*domain.Submission {
	if actor == nil {
		return nil
	}
	if actor.Role.IsGlobal() {
		return submissions
	}
	res := make([]*domain.Submission, 0, len(submissions))
	for _, s := range submissions {
		if s != nil && r.CanAccessUnit(actor, s.UnitID) {
			res = append(res, s)
		}
	}
	return res
}

// CanPerformAction checks the capability table. Edit and delete additionally
// need an owned resource that is still editable.
func (r *Resolver) CanPerformAction(actor *domain.User, action Action, resource *domain.Submission) bool {
	if actor == nil {
		return false
	}
	if !capabilities[action][actor.Role] {
		return false
	}
	switch action {
	case ActionEditSubmission, ActionDeleteSubmission:
		if resource == nil {
			return false
		}
		return resource.UnitID == actor.HomeUnit() &&
			resource.ContributorUserID == actor.ID &&
			resource.Status.IsEditable()
	}
	return true
}

// Unit looks id up in the current hierarchy snapshot.
func (r *Resolver) Unit(id string) (domain.AdministrativeUnit, bool) {
	return r.index.Load().Unit(id)
}
