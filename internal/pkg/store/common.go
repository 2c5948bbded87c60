package store

import (
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ougirez/maturity/internal/pkg/constants"
)

const (
	tableUnits        = "administrative_units"
	tableUsers        = "users"
	tableYears        = "assessment_years"
	tableDimensions   = "dimensions"
	tableIndicators   = "indicators"
	tableSubQuestions = "sub_questions"
	tableSubmissions  = "submissions"
	tableTransitions  = "submission_transitions"
	tableResponses    = "responses"
	tableScoring      = "scoring_entries"
)

var mapping = map[error]error{pgx.ErrNoRows: constants.ErrDBNotFound}

func wrapErr(err error) error {
	for k, v := range mapping {
		if errors.Is(err, k) {
			return v
		}
	}
	return err
}

// builder returns a squirrel SQL builder using postgres placeholders.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}
