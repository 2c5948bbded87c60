package domain

import "time"

type CategoricalScore string

const (
	ScoreMeets          CategoricalScore = "meets"
	ScorePartiallyMeets CategoricalScore = "partially_meets"
	ScoreDoesNotMeet    CategoricalScore = "does_not_meet"
)

var categoricalScale = map[CategoricalScore]float64{
	ScoreMeets:          1.0,
	ScorePartiallyMeets: 0.5,
	ScoreDoesNotMeet:    0.0,
}

func (c CategoricalScore) Valid() bool {
	_, ok := categoricalScale[c]
	return ok
}

func (c CategoricalScore) Numeric() float64 {
	return categoricalScale[c]
}

type ScoringEntry struct {
	ResponseID            string           `db:"response_id" json:"response_id"`
	CommitteeMemberUserID string           `db:"committee_member_user_id" json:"committee_member_user_id"`
	Score                 CategoricalScore `db:"score" json:"score"`
	Numeric               float64          `db:"numeric" json:"numeric"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updated_at"`
}

// FinalScore is the chairman override when one is set, otherwise the mean of
// the committee entries. ok is false when there is neither.
func FinalScore(r *Response, entries []*ScoringEntry) (score float64, ok bool) {
	if r != nil && r.ChairmanScore != nil {
		return *r.ChairmanScore, true
	}
	if len(entries) == 0 {
		return 0, false
	}
	var total float64
	for _, e := range entries {
		total += e.Numeric
	}
	return total / float64(len(entries)), true
}
