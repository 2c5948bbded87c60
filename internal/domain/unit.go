package domain

import "time"

type UnitType string

const (
	UnitFederalInstitute   UnitType = "federal_institute"
	UnitRegion             UnitType = "region"
	UnitCityAdministration UnitType = "city_administration"
	UnitZone               UnitType = "zone"
	UnitSubCity            UnitType = "sub_city"
	UnitWoreda             UnitType = "woreda"
)

var unitTypes = map[UnitType]bool{
	UnitFederalInstitute:   true,
	UnitRegion:             true,
	UnitCityAdministration: true,
	UnitZone:               true,
	UnitSubCity:            true,
	UnitWoreda:             true,
}

func (t UnitType) Valid() bool {
	return unitTypes[t]
}

// ApplicabilityClass is the unit type whose indicators apply to t.
// Federal institutes and city administrations answer the region questionnaire,
// sub-cities answer the woreda one.
func (t UnitType) ApplicabilityClass() UnitType {
	switch t {
	case UnitFederalInstitute, UnitCityAdministration:
		return UnitRegion
	case UnitSubCity:
		return UnitWoreda
	default:
		return t
	}
}

// IsTopLevel reports whether units of this type take part in the national index.
func (t UnitType) IsTopLevel() bool {
	return t == UnitRegion || t == UnitCityAdministration
}

type AdministrativeUnit struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      UnitType  `db:"type" json:"type"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
