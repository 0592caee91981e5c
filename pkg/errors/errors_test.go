package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("student not found"))
	got := FromError(err)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "student not found", got.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorIs(t, got, sql.ErrConnDone)
}

func TestIsComparesCodes(t *testing.T) {
	assert.ErrorIs(t, Validation("grade must be between 1 and 12"), ErrValidation)
	assert.NotErrorIs(t, Validation("x"), ErrNotFound)
	assert.ErrorIs(t, Internal(sql.ErrNoRows, "boom"), ErrInternal)
}

func TestCloneLeavesTemplateUntouched(t *testing.T) {
	clone := Clone(ErrConflict, "duplicate")
	assert.Equal(t, "duplicate", clone.Message)
	assert.Equal(t, "conflict", ErrConflict.Message)
}
