package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meemli/meemli-api/internal/middleware"
	"github.com/meemli/meemli-api/internal/models"
	"github.com/meemli/meemli-api/internal/service"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

type testEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	return r
}

// memAttendance stores attendance rows keyed by id for the real AttendanceService.
type memAttendance struct {
	rows map[string]models.Attendance
}

func (m *memAttendance) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error) {
	out := []models.AttendanceDetail{}
	for _, row := range m.rows {
		if row.SessionID == sessionID {
			out = append(out, models.AttendanceDetail{Attendance: row})
		}
	}
	return out, nil
}

func (m *memAttendance) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (m *memAttendance) Create(ctx context.Context, record *models.Attendance) error {
	m.rows[record.ID] = *record
	return nil
}

func (m *memAttendance) Patch(ctx context.Context, id string, status, notes *string) (bool, error) {
	if status == nil && notes == nil {
		return false, nil
	}
	row, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	if status != nil {
		row.Status = models.AttendanceStatus(*status)
	}
	if notes != nil {
		row.Notes = notes
	}
	m.rows[id] = row
	return true, nil
}

func TestBulkUpdateAppliesOnlyIdentifiedItems(t *testing.T) {
	store := &memAttendance{rows: map[string]models.Attendance{
		"x": {ID: "x", SessionID: "s1", StudentID: "st1", Status: models.AttendancePresent},
		"y": {ID: "y", SessionID: "s1", StudentID: "st2", Status: models.AttendanceAbsent},
	}}
	svc := service.NewAttendanceService(store, nil, nil, nil, nil, nil, service.AttendanceServiceConfig{})
	r := newTestRouter()
	r.PUT("/api/attendance/bulk-update", NewAttendanceHandler(svc).BulkUpdate)

	rec := serve(r, http.MethodPut, "/api/attendance/bulk-update",
		`[{"attendanceId":"x","status":"LATE","notes":"train delay"},{"status":"PRESENT"}]`)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, `{"message":"attendance updated"}`, string(env.Data))
	assert.EqualValues(t, 2, env.Meta["received"])
	assert.EqualValues(t, 1, env.Meta["applied"])
	assert.EqualValues(t, 1, env.Meta["dropped"])

	assert.Equal(t, models.AttendanceLate, store.rows["x"].Status)
	require.NotNil(t, store.rows["x"].Notes)
	assert.Equal(t, "train delay", *store.rows["x"].Notes)
	assert.Equal(t, models.AttendanceAbsent, store.rows["y"].Status)
	assert.Nil(t, store.rows["y"].Notes)
}

func TestBulkUpdateRejectsNonArrayBody(t *testing.T) {
	svc := service.NewAttendanceService(&memAttendance{rows: map[string]models.Attendance{}}, nil, nil, nil, nil, nil, service.AttendanceServiceConfig{})
	r := newTestRouter()
	r.PUT("/api/attendance/bulk-update", NewAttendanceHandler(svc).BulkUpdate)

	bodies := []string{`{"attendanceId":"x","status":"ABSENT"}`, `null`, `"str"`, `42`}
	for _, body := range bodies {
		rec := serve(r, http.MethodPut, "/api/attendance/bulk-update", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		env := decodeEnvelope(t, rec)
		require.NotNil(t, env.Error, body)
		assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code, body)
	}
}

func TestBulkUpdateAcceptsEmptyArray(t *testing.T) {
	svc := service.NewAttendanceService(&memAttendance{rows: map[string]models.Attendance{}}, nil, nil, nil, nil, nil, service.AttendanceServiceConfig{})
	r := newTestRouter()
	r.PUT("/api/attendance/bulk-update", NewAttendanceHandler(svc).BulkUpdate)

	rec := serve(r, http.MethodPut, "/api/attendance/bulk-update", `[]`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

type echoSections struct {
	created []service.CreateSectionRequest
}

func (e *echoSections) List(ctx context.Context) ([]models.Section, error) { return nil, nil }

func (e *echoSections) Get(ctx context.Context, id string) (*models.Section, error) {
	return nil, appErrors.NotFound("section not found")
}

func (e *echoSections) Create(ctx context.Context, req service.CreateSectionRequest) (*models.Section, error) {
	e.created = append(e.created, req)
	return &models.Section{
		ID:               "sec-1",
		Code:             req.Code,
		ProgramID:        req.Program,
		Teachers:         req.Teachers,
		EnrolledStudents: req.EnrolledStudents,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Days:             req.Days,
		Sessions:         []string{},
	}, nil
}

func (e *echoSections) Update(ctx context.Context, id string, req service.UpdateSectionRequest) (*models.Section, error) {
	return nil, nil
}

func (e *echoSections) Delete(ctx context.Context, id string) error { return nil }

func TestCreateSectionEchoesPayloadWithID(t *testing.T) {
	sections := &echoSections{}
	r := newTestRouter()
	r.POST("/api/sections", NewSectionHandler(sections).Create)

	rec := serve(r, http.MethodPost, "/api/sections",
		`{"code":"A1","program":"p1","teachers":["t1"],"startTime":"09:00","endTime":"10:00","days":["Monday"]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	var section map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &section))
	assert.Equal(t, "sec-1", section["id"])
	assert.Equal(t, "A1", section["code"])
	assert.Equal(t, "p1", section["program"])
	assert.Equal(t, []interface{}{"t1"}, section["teachers"])
	assert.Equal(t, "09:00", section["startTime"])
	assert.Equal(t, "10:00", section["endTime"])
	assert.Equal(t, []interface{}{"Monday"}, section["days"])
	require.Len(t, sections.created, 1)
}

func TestCreateSectionRejectsMalformedJSON(t *testing.T) {
	r := newTestRouter()
	r.POST("/api/sections", NewSectionHandler(&echoSections{}).Create)

	rec := serve(r, http.MethodPost, "/api/sections", `{"code":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubSessions struct {
	detail *models.SessionDetail
	filter models.SessionFilter
}

func (s *stubSessions) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionSummary, error) {
	s.filter = filter
	return []models.SessionSummary{}, nil
}

func (s *stubSessions) Get(ctx context.Context, id string) (*models.SessionDetail, error) {
	if s.detail == nil || s.detail.ID != id {
		return nil, appErrors.NotFound("session not found")
	}
	return s.detail, nil
}

func (s *stubSessions) Create(ctx context.Context, req service.CreateSessionRequest) (*models.SessionDetail, error) {
	return s.detail, nil
}

func (s *stubSessions) Update(ctx context.Context, id string, req service.UpdateSessionRequest) (*models.Session, error) {
	return &s.detail.Session, nil
}

func TestGetSessionReturnsAttendeesWithStudents(t *testing.T) {
	day, err := models.ParseDate("2026-03-02")
	require.NoError(t, err)
	detail := &models.SessionDetail{
		Session: models.Session{ID: "s1", SectionID: "sec-1", SessionDate: day},
		Section: &models.Section{ID: "sec-1", Code: "MATH-1"},
	}
	for _, name := range []string{"Ada", "Grace", "Linus"} {
		detail.Attendees = append(detail.Attendees, models.AttendanceDetail{
			Attendance: models.Attendance{ID: "a-" + name, SessionID: "s1", StudentID: "st-" + name, Status: models.AttendancePresent},
			Student:    &models.Student{ID: "st-" + name, DisplayName: name},
		})
	}
	r := newTestRouter()
	h := NewSessionHandler(&stubSessions{detail: detail}, nil)
	r.GET("/api/sessions/:id", h.Get)

	rec := serve(r, http.MethodGet, "/api/sessions/s1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			ID          string `json:"id"`
			SessionDate string `json:"sessionDate"`
			Attendees   []struct {
				ID      string `json:"id"`
				Status  string `json:"status"`
				Student struct {
					DisplayName string `json:"displayName"`
				} `json:"student"`
			} `json:"attendees"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-03-02", body.Data.SessionDate)
	require.Len(t, body.Data.Attendees, 3)
	assert.Equal(t, "Grace", body.Data.Attendees[1].Student.DisplayName)
	assert.Equal(t, "PRESENT", body.Data.Attendees[0].Status)

	rec = serve(r, http.MethodGet, "/api/sessions/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSessionsParsesFilter(t *testing.T) {
	sessions := &stubSessions{}
	r := newTestRouter()
	r.GET("/api/sessions", NewSessionHandler(sessions, nil).List)

	rec := serve(r, http.MethodGet, "/api/sessions?section=sec-1&date=2026-03-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sec-1", sessions.filter.SectionID)
	require.NotNil(t, sessions.filter.Date)
	assert.Equal(t, "2026-03-02", sessions.filter.Date.String())

	rec = serve(r, http.MethodGet, "/api/sessions?date=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubUsers struct {
	updated bool
}

func (s *stubUsers) List(ctx context.Context) ([]models.User, error) { return nil, nil }

func (s *stubUsers) Get(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (s *stubUsers) Create(ctx context.Context, req service.CreateUserRequest) (*models.User, error) {
	return &models.User{ID: "uid-1"}, nil
}

func (s *stubUsers) Update(ctx context.Context, id string, req service.UpdateUserRequest) (*models.User, error) {
	s.updated = true
	return &models.User{ID: id}, nil
}

func TestUpdateUserAdminFlagNeedsAdminCaller(t *testing.T) {
	users := &stubUsers{}
	r := newTestRouter()
	r.PUT("/api/user/:id", func(c *gin.Context) {
		c.Set(middleware.ContextAdminKey, c.GetHeader("X-Test-Admin") == "true")
		c.Next()
	}, NewUserHandler(users).Update)

	rec := serve(r, http.MethodPut, "/api/user/t1", `{"admin":true}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, users.updated)

	rec = serve(r, http.MethodPut, "/api/user/t1", `{"firstName":"Tess"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, users.updated)
}

type stubExports struct{}

func (stubExports) ExportSession(ctx context.Context, sessionID, format string) (*service.ExportFile, error) {
	if format == "doc" {
		return nil, appErrors.Validation("format must be one of csv, pdf, xlsx")
	}
	return &service.ExportFile{Filename: "attendance-MATH-1-2026-03-02.csv", ContentType: "text/csv", Body: []byte("Student\n")}, nil
}

func TestExportSessionStreamsAttachment(t *testing.T) {
	r := newTestRouter()
	r.GET("/api/sessions/:id/export", NewSessionHandler(&stubSessions{}, stubExports{}).Export)

	rec := serve(r, http.MethodGet, "/api/sessions/s1/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="attendance-MATH-1-2026-03-02.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Student\n", rec.Body.String())

	rec = serve(r, http.MethodGet, "/api/sessions/s1/export?format=doc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
