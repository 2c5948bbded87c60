package domain

import "time"

type YearStatus string

const (
	YearDraft    YearStatus = "draft"
	YearActive   YearStatus = "active"
	YearArchived YearStatus = "archived"
)

type ResponseType string

const (
	ResponseYesNo       ResponseType = "yes_no"
	ResponseMultiSelect ResponseType = "multi_select_checkbox"
	ResponseText        ResponseType = "text_explanation"
)

type AssessmentYear struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name" validate:"required"`
	Status    YearStatus `db:"status" json:"status" validate:"oneof=draft active archived"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

type Dimension struct {
	ID        string    `db:"id" json:"id"`
	YearID    string    `db:"year_id" json:"year_id" validate:"required"`
	Name      string    `db:"name" json:"name" validate:"required"`
	Weight    float64   `db:"weight" json:"weight" validate:"gte=0,lte=100"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Indicator struct {
	ID                 string    `db:"id" json:"id"`
	DimensionID        string    `db:"dimension_id" json:"dimension_id" validate:"required"`
	Name               string    `db:"name" json:"name" validate:"required"`
	Weight             float64   `db:"weight" json:"weight" validate:"gte=0,lte=100"`
	ApplicableUnitType UnitType  `db:"applicable_unit_type" json:"applicable_unit_type" validate:"required,unittype"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// AppliesTo reports whether the indicator is part of the questionnaire of t.
func (i *Indicator) AppliesTo(t UnitType) bool {
	return i.ApplicableUnitType.ApplicabilityClass() == t.ApplicabilityClass()
}

type SubQuestion struct {
	ID              string       `db:"id" json:"id"`
	IndicatorID     string       `db:"indicator_id" json:"indicator_id" validate:"required"`
	Text            string       `db:"text" json:"text" validate:"required"`
	Weight          float64      `db:"weight" json:"weight" validate:"gte=0,lte=100"`
	ResponseType    ResponseType `db:"response_type" json:"response_type" validate:"oneof=yes_no multi_select_checkbox text_explanation"`
	CheckboxOptions []string     `db:"checkbox_options" json:"checkbox_options,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// Framework is the full weighted questionnaire of one assessment year.
type Framework struct {
	Year       AssessmentYear  `json:"year"`
	Dimensions []DimensionNode `json:"dimensions"`
}

type DimensionNode struct {
	Dimension
	Indicators []IndicatorNode `json:"indicators"`
}

type IndicatorNode struct {
	Indicator
	SubQuestions []SubQuestion `json:"sub_questions"`
}

// SubQuestions indexes every sub-question of the framework by id.
func (f *Framework) SubQuestions() map[string]*SubQuestion {
	res := make(map[string]*SubQuestion)
	for di := range f.Dimensions {
		for ii := range f.Dimensions[di].Indicators {
			ind := &f.Dimensions[di].Indicators[ii]
			for si := range ind.SubQuestions {
				res[ind.SubQuestions[si].ID] = &ind.SubQuestions[si]
			}
		}
	}
	return res
}
