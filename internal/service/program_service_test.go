package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

func TestProgramCreateAndUpdate(t *testing.T) {
	db := newMemDB()
	svc := NewProgramService(fakeProgramRepo{db: db}, nil, nil, nil)

	program, err := svc.Create(context.Background(), CreateProgramRequest{ID: "spring-26", Name: "Spring", StartDate: "2026-01-14", EndDate: strPtr("2026-05-30")})
	require.NoError(t, err)
	assert.Equal(t, "spring-26", program.ID)
	assert.False(t, program.Archived)
	require.NotNil(t, program.EndDate)
	assert.Equal(t, "2026-05-30", program.EndDate.String())

	updated, err := svc.Update(context.Background(), "spring-26", UpdateProgramRequest{Archived: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Archived)
	assert.Equal(t, "Spring", updated.Name)
}

func TestProgramDateOrder(t *testing.T) {
	db := newMemDB()
	svc := NewProgramService(fakeProgramRepo{db: db}, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateProgramRequest{StartDate: "2026-05-30", EndDate: strPtr("2026-01-14")})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), CreateProgramRequest{StartDate: "2026-05-30", EndDate: strPtr("2026-05-30")})
	require.NoError(t, err)

	db.programs["p"] = models.Program{ID: "p", StartDate: mustDate("2026-01-14")}
	_, err = svc.Update(context.Background(), "p", UpdateProgramRequest{EndDate: strPtr("2025-12-31")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProgramValidation(t *testing.T) {
	svc := NewProgramService(fakeProgramRepo{db: newMemDB()}, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateProgramRequest{Name: "Spring"})
	require.Error(t, err)
	assert.Equal(t, "startDate is required", appErrors.FromError(err).Message)

	_, err = svc.Create(context.Background(), CreateProgramRequest{StartDate: "soon"})
	require.Error(t, err)
	assert.Equal(t, "startDate must be an ISO date", appErrors.FromError(err).Message)

	_, err = svc.Update(context.Background(), "x", UpdateProgramRequest{Name: strPtr("")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Get(context.Background(), "x")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
