package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Points   int    `json:"points" validate:"min=0"`
	GameType string `json:"game_type" validate:"omitempty,alphanum,max=8"`
	RewardID int64  `json:"reward_id" validate:"gt=0"`
	Internal string `json:"-" validate:"required"`
}

func TestValidateStruct_Valid(t *testing.T) {
	assert.NoError(t, ValidateStruct(&sample{Points: 1, RewardID: 1, Internal: "x"}))
	assert.NoError(t, ValidateStruct(nil))
}

func TestValidateStruct_ReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(&sample{Points: -1, GameType: "spin!", RewardID: 0})
	require.Error(t, err)

	var errs Errors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 4)

	assert.Equal(t, FieldError{Field: "points", Reason: "must be at least 0"}, errs[0])
	assert.Equal(t, FieldError{Field: "game_type", Reason: "must contain only letters and digits"}, errs[1])
	assert.Equal(t, FieldError{Field: "reward_id", Reason: "must be greater than 0"}, errs[2])
	assert.Equal(t, FieldError{Field: "Internal", Reason: "is required"}, errs[3])
}

func TestValidateStruct_MaxLength(t *testing.T) {
	err := ValidateStruct(sample{GameType: "abcdefghi", RewardID: 1, Internal: "x"})

	fe, ok := FirstFieldError(err)
	require.True(t, ok)
	assert.Equal(t, "game_type", fe.Field)
	assert.Equal(t, "must be at most 8", fe.Reason)
	assert.Contains(t, err.Error(), "field 'game_type' failed validation")
}

func TestValidateStruct_RejectsNonStruct(t *testing.T) {
	err := ValidateStruct(42)
	require.Error(t, err)

	_, ok := FirstFieldError(err)
	assert.False(t, ok)
}
