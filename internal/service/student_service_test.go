package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

func newStudentFixture() (*StudentService, *memDB) {
	db := newMemDB()
	db.sections["sec-a"] = models.Section{ID: "sec-a", Code: "A1"}
	db.sections["sec-b"] = models.Section{ID: "sec-b", Code: "B1"}
	svc := NewStudentService(fakeStudentRepo{db: db}, fakeSectionRepo{db: db}, nil, nil, zap.NewNop())
	return svc, db
}

func validStudentRequest() CreateStudentRequest {
	score := 42
	return CreateStudentRequest{
		ParentContact:      &ParentContactRequest{FirstName: "Pat", LastName: "Lovelace", PhoneNumber: "555-0100", Email: "pat@example.com"},
		DisplayName:        "Ada Lovelace",
		MeemliEmail:        "ada@meemli.org",
		Grade:              7,
		SchoolName:         "Lincoln Middle",
		City:               "Oakland",
		State:              "California",
		PreassessmentScore: &score,
		EnrolledSections:   []string{"sec-a", "sec-b"},
	}
}

func TestStudentCreateRoundTripPopulatesSections(t *testing.T) {
	svc, _ := newStudentFixture()

	created, err := svc.Create(context.Background(), validStudentRequest())
	require.NoError(t, err)
	require.Len(t, created.EnrolledSections, 2)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.DisplayName)
	assert.Equal(t, "Pat", got.ParentContact.FirstName)
	require.Len(t, got.EnrolledSections, 2)
	assert.Equal(t, "A1", got.EnrolledSections[0].Code)
	assert.Equal(t, "B1", got.EnrolledSections[1].Code)
	require.NotNil(t, got.PreassessmentScore)
	assert.Equal(t, 42, *got.PreassessmentScore)
}

func TestStudentCreateValidation(t *testing.T) {
	svc, _ := newStudentFixture()

	req := validStudentRequest()
	req.Grade = 13
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "grade must be at most 12", appErrors.FromError(err).Message)

	req = validStudentRequest()
	req.DisplayName = "Al"
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "displayName must be at least 3 characters", appErrors.FromError(err).Message)

	req = validStudentRequest()
	req.ParentContact = nil
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "parentContact is required", appErrors.FromError(err).Message)

	req = validStudentRequest()
	req.EnrolledSections = nil
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStudentCreateUnknownSection(t *testing.T) {
	svc, db := newStudentFixture()
	req := validStudentRequest()
	req.EnrolledSections = []string{"sec-a", "sec-z"}

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "section not found: sec-z", appErrors.FromError(err).Message)
	assert.Empty(t, db.students)
}

func TestStudentUpdatePartial(t *testing.T) {
	svc, _ := newStudentFixture()
	created, err := svc.Create(context.Background(), validStudentRequest())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, UpdateStudentRequest{Grade: intPtr(8), EnrolledSections: []string{"sec-b"}})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Grade)
	assert.Equal(t, "Ada Lovelace", updated.DisplayName)
	require.Len(t, updated.EnrolledSections, 1)
	assert.Equal(t, "sec-b", updated.EnrolledSections[0].ID)

	_, err = svc.Update(context.Background(), created.ID, UpdateStudentRequest{City: strPtr("LA")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Update(context.Background(), "missing", UpdateStudentRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudentDelete(t *testing.T) {
	svc, _ := newStudentFixture()
	created, err := svc.Create(context.Background(), validStudentRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), created.ID), appErrors.ErrNotFound)
}

func intPtr(i int) *int { return &i }

func TestStudentWritesInvalidateCachedRosters(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	db.sections["sec-a"] = models.Section{ID: "sec-a", Code: "A1", EnrolledStudents: []string{}}
	store := newMemCache()
	cache := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)
	sections := NewSectionService(fakeSectionRepo{db: db}, fakeProgramRepo{db: db}, fakeUserRepo{db: db}, fakeStudentRepo{db: db}, cache, nil, zap.NewNop())
	students := NewStudentService(fakeStudentRepo{db: db}, fakeSectionRepo{db: db}, cache, nil, zap.NewNop())

	warm, err := sections.List(ctx)
	require.NoError(t, err)
	require.Len(t, warm, 1)
	assert.Empty(t, warm[0].EnrolledStudents)
	require.NoError(t, store.Set(ctx, cacheKeySessions+"all", []string{"stale"}, time.Minute))

	req := validStudentRequest()
	req.EnrolledSections = []string{"sec-a"}
	created, err := students.Create(ctx, req)
	require.NoError(t, err)

	listed, err := sections.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, []string{created.ID}, listed[0].EnrolledStudents)
	var stale []string
	assert.ErrorIs(t, store.Get(ctx, cacheKeySessions+"all", &stale), appErrors.ErrCacheMiss)

	_, err = sections.List(ctx)
	require.NoError(t, err)
	require.NoError(t, students.Delete(ctx, created.ID))

	listed, err = sections.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed[0].EnrolledStudents)
}
