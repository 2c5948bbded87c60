package domain

type Role string

const (
	RoleSuperAdmin          Role = "super_admin"
	RoleMInTAdmin           Role = "mint_admin"
	RoleCommitteeMember     Role = "central_committee_member"
	RoleCommitteeSecretary  Role = "central_committee_secretary"
	RoleCommitteeChairman   Role = "central_committee_chairman"
	RoleRegionalApprover    Role = "regional_approver"
	RoleZoneApprover        Role = "zone_approver"
	RoleFederalApprover     Role = "federal_approver"
	RoleRegionalContributor Role = "regional_contributor"
	RoleZoneContributor     Role = "zone_contributor"
	RoleWoredaContributor   Role = "woreda_contributor"
	RoleFederalContributor  Role = "federal_contributor"
)

// IsGlobal is true for roles that see every unit regardless of their home unit.
func (r Role) IsGlobal() bool {
	return r == RoleSuperAdmin || r == RoleMInTAdmin || r.IsCommittee()
}

func (r Role) IsCommittee() bool {
	switch r {
	case RoleCommitteeMember, RoleCommitteeSecretary, RoleCommitteeChairman:
		return true
	}
	return false
}

func (r Role) IsApprover() bool {
	switch r {
	case RoleRegionalApprover, RoleZoneApprover, RoleFederalApprover:
		return true
	}
	return false
}

func (r Role) IsContributor() bool {
	switch r {
	case RoleRegionalContributor, RoleZoneContributor, RoleWoredaContributor, RoleFederalContributor:
		return true
	}
	return false
}

type User struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Role Role   `db:"role" json:"role"`
	// OfficialUnitID is nil only for globally scoped roles.
	OfficialUnitID *string `db:"official_unit_id" json:"official_unit_id,omitempty"`
}

func (u *User) HomeUnit() string {
	if u == nil || u.OfficialUnitID == nil {
		return ""
	}
	return *u.OfficialUnitID
}
