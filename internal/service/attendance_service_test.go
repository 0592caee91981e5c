package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

func rawItems(t *testing.T, payload string) []json.RawMessage {
	t.Helper()
	var items []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &items))
	return items
}

func newAttendanceFixture(strict bool) (*AttendanceService, *memDB, *fakeAttendanceRepo) {
	db := newMemDB()
	db.sessions["s1"] = models.Session{ID: "s1", SectionID: "sec"}
	db.students["st1"] = models.Student{ID: "st1", DisplayName: "Ada"}
	db.students["st2"] = models.Student{ID: "st2", DisplayName: "Grace"}
	db.attendance["x"] = models.Attendance{ID: "x", SessionID: "s1", StudentID: "st1", Status: models.AttendancePresent}
	db.attendance["y"] = models.Attendance{ID: "y", SessionID: "s1", StudentID: "st2", Status: models.AttendancePresent}
	repo := &fakeAttendanceRepo{db: db}
	svc := NewAttendanceService(repo, fakeSessionRepo{db: db}, fakeStudentRepo{db: db}, NewMetricsService(), nil, zap.NewNop(), AttendanceServiceConfig{StrictBulk: strict})
	return svc, db, repo
}

func TestDecodeBulkItemsDropsItemsWithoutID(t *testing.T) {
	items, dropped := DecodeBulkItems(rawItems(t, `[{"attendanceId":"x","status":"LATE"},{"status":"ABSENT"},{"attendanceId":""},"junk",{"attendanceId":5}]`))
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].AttendanceID)
	assert.Equal(t, 4, dropped)
}

func TestBulkUpdateAppliesOnlyIdentifiedItems(t *testing.T) {
	svc, db, _ := newAttendanceFixture(false)

	result, err := svc.BulkUpdate(context.Background(), rawItems(t, `[{"attendanceId":"x","status":"LATE"},{"status":"ABSENT"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, models.AttendanceLate, db.attendance["x"].Status)
	assert.Equal(t, models.AttendancePresent, db.attendance["y"].Status)
}

func TestBulkUpdateLeavesOmittedFieldsAlone(t *testing.T) {
	svc, db, _ := newAttendanceFixture(false)
	notes := "left early"
	x := db.attendance["x"]
	x.Notes = &notes
	db.attendance["x"] = x

	_, err := svc.BulkUpdate(context.Background(), rawItems(t, `[{"attendanceId":"x","status":"ABSENT"}]`))
	require.NoError(t, err)
	require.NotNil(t, db.attendance["x"].Notes)
	assert.Equal(t, "left early", *db.attendance["x"].Notes)
	assert.Equal(t, models.AttendanceAbsent, db.attendance["x"].Status)
}

func TestBulkUpdateIsIdempotent(t *testing.T) {
	svc, db, _ := newAttendanceFixture(false)
	payload := `[{"attendanceId":"x","status":"LATE","notes":"bus"},{"attendanceId":"y","status":"ABSENT","notes":""}]`

	_, err := svc.BulkUpdate(context.Background(), rawItems(t, payload))
	require.NoError(t, err)
	first := map[string]models.Attendance{"x": db.attendance["x"], "y": db.attendance["y"]}

	_, err = svc.BulkUpdate(context.Background(), rawItems(t, payload))
	require.NoError(t, err)
	assert.Equal(t, first["x"], db.attendance["x"])
	assert.Equal(t, first["y"], db.attendance["y"])
}

func TestBulkUpdateUnknownIDsAreNoOps(t *testing.T) {
	svc, db, repo := newAttendanceFixture(false)

	result, err := svc.BulkUpdate(context.Background(), rawItems(t, `[{"attendanceId":"nope","status":"LATE"}]`))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 1, result.Missing)
	assert.Equal(t, 1, repo.patches)
	assert.Len(t, db.attendance, 2)
}

func TestBulkUpdateStoresStatusVerbatimByDefault(t *testing.T) {
	svc, db, _ := newAttendanceFixture(false)

	_, err := svc.BulkUpdate(context.Background(), rawItems(t, `[{"attendanceId":"x","status":"EXCUSED"}]`))
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatus("EXCUSED"), db.attendance["x"].Status)
}

func TestBulkUpdateStrictRejectsUnknownStatusBeforeWriting(t *testing.T) {
	svc, db, repo := newAttendanceFixture(true)

	_, err := svc.BulkUpdate(context.Background(), rawItems(t, `[{"attendanceId":"y","status":"ABSENT"},{"attendanceId":"x","status":"EXCUSED"}]`))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
	assert.Zero(t, repo.patches)
	assert.Equal(t, models.AttendancePresent, db.attendance["y"].Status)
}

func TestBulkUpdateEmptyPayload(t *testing.T) {
	svc, _, repo := newAttendanceFixture(false)

	result, err := svc.BulkUpdate(context.Background(), rawItems(t, `[]`))
	require.NoError(t, err)
	assert.Zero(t, result.Received)
	assert.Zero(t, repo.patches)
}

func TestBulkUpdateStoreFailure(t *testing.T) {
	svc, db, _ := newAttendanceFixture(false)
	db.failWrites = errors.New("connection reset")

	_, err := svc.BulkUpdate(context.Background(), rawItems(t, `[{"attendanceId":"x","status":"LATE"}]`))
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, appErrors.FromError(err).Status)
}

func TestAttendanceCreateValidatesReferences(t *testing.T) {
	svc, _, _ := newAttendanceFixture(false)

	_, err := svc.Create(context.Background(), CreateAttendanceRequest{Session: "s1", Student: "st1", Status: "MAYBE"})
	require.Error(t, err)
	assert.Equal(t, "status must be one of PRESENT, ABSENT, LATE", appErrors.FromError(err).Message)

	_, err = svc.Create(context.Background(), CreateAttendanceRequest{Session: "missing", Student: "st1"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Create(context.Background(), CreateAttendanceRequest{Session: "s1", Student: "ghost"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAttendanceCreateDefaultsToPresent(t *testing.T) {
	svc, db, _ := newAttendanceFixture(false)
	db.students["st3"] = models.Student{ID: "st3"}

	record, err := svc.Create(context.Background(), CreateAttendanceRequest{Session: "s1", Student: "st3"})
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, record.Status)
}

func TestAttendanceUpdate(t *testing.T) {
	svc, _, _ := newAttendanceFixture(false)

	record, err := svc.Update(context.Background(), "x", UpdateAttendanceRequest{Status: strPtr("ABSENT")})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceAbsent, record.Status)

	_, err = svc.Update(context.Background(), "x", UpdateAttendanceRequest{Status: strPtr("GONE")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Update(context.Background(), "nope", UpdateAttendanceRequest{Notes: strPtr("hi")})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAttendanceListBySession(t *testing.T) {
	svc, _, _ := newAttendanceFixture(false)

	rows, err := svc.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = svc.ListBySession(context.Background(), "empty")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
