package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/identity"
)

// memDB backs the fake repositories with maps shared across them.
type memDB struct {
	mu         sync.Mutex
	seq        int
	students   map[string]models.Student
	sections   map[string]models.Section
	sessions   map[string]models.Session
	attendance map[string]models.Attendance
	programs   map[string]models.Program
	users      map[string]models.User
	failWrites error
	// failSections fails session creation for the listed section ids.
	failSections map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		students:   map[string]models.Student{},
		sections:   map[string]models.Section{},
		sessions:   map[string]models.Session{},
		attendance: map[string]models.Attendance{},
		programs:   map[string]models.Program{},
		users:      map[string]models.User{},
	}
}

// enroll mirrors the shared enrollment table onto the section rosters.
func (db *memDB) enroll(studentID string, sectionIDs []string) {
	wanted := map[string]bool{}
	for _, id := range sectionIDs {
		wanted[id] = true
	}
	for id, section := range db.sections {
		roster := []string{}
		for _, existing := range section.EnrolledStudents {
			if existing != studentID {
				roster = append(roster, existing)
			}
		}
		if wanted[id] {
			roster = append(roster, studentID)
		}
		section.EnrolledStudents = roster
		db.sections[id] = section
	}
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return prefix + "-" + strconv.Itoa(db.seq)
}

func keysOf[T any](m map[string]T, ids []string) []string {
	found := []string{}
	for _, id := range ids {
		if _, ok := m[id]; ok {
			found = append(found, id)
		}
	}
	return found
}

type fakeStudentRepo struct{ db *memDB }

func (r fakeStudentRepo) List(ctx context.Context) ([]models.Student, error) {
	out := []models.Student{}
	for _, s := range r.db.students {
		out = append(out, s)
	}
	return out, nil
}

func (r fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s, ok := r.db.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = r.db.nextID("student")
	}
	r.db.students[student.ID] = *student
	r.db.enroll(student.ID, student.EnrolledSectionIDs)
	return nil
}

func (r fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	r.db.students[student.ID] = *student
	r.db.enroll(student.ID, student.EnrolledSectionIDs)
	return nil
}

func (r fakeStudentRepo) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := r.db.students[id]
	delete(r.db.students, id)
	r.db.enroll(id, nil)
	return ok, nil
}

func (r fakeStudentRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return keysOf(r.db.students, ids), nil
}

type fakeSectionRepo struct{ db *memDB }

func (r fakeSectionRepo) List(ctx context.Context) ([]models.Section, error) {
	out := []models.Section{}
	for _, s := range r.db.sections {
		out = append(out, s)
	}
	return out, nil
}

func (r fakeSectionRepo) FindByID(ctx context.Context, id string) (*models.Section, error) {
	s, ok := r.db.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r fakeSectionRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Section, error) {
	out := []models.Section{}
	for _, id := range ids {
		if s, ok := r.db.sections[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r fakeSectionRepo) ListMeetingOn(ctx context.Context, day models.Date) ([]models.Section, error) {
	out := []models.Section{}
	for _, s := range r.db.sections {
		if s.MeetsOn(day.Weekday()) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeSectionRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return keysOf(r.db.sections, ids), nil
}

func (r fakeSectionRepo) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = r.db.nextID("section")
	}
	if section.Sessions == nil {
		section.Sessions = []string{}
	}
	r.db.sections[section.ID] = *section
	return nil
}

func (r fakeSectionRepo) Update(ctx context.Context, section *models.Section) error {
	r.db.sections[section.ID] = *section
	return nil
}

func (r fakeSectionRepo) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := r.db.sections[id]
	delete(r.db.sections, id)
	return ok, nil
}

type fakeSessionRepo struct{ db *memDB }

func (r fakeSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	out := []models.Session{}
	for _, s := range r.db.sessions {
		if filter.SectionID != "" && s.SectionID != filter.SectionID {
			continue
		}
		if filter.Date != nil && s.SessionDate.String() != filter.Date.String() {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r fakeSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	s, ok := r.db.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r fakeSessionRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return keysOf(r.db.sessions, ids), nil
}

func (r fakeSessionRepo) CreateWithAttendance(ctx context.Context, session *models.Session, populate bool) (int, error) {
	if r.db.failWrites != nil {
		return 0, r.db.failWrites
	}
	if err := r.db.failSections[session.SectionID]; err != nil {
		return 0, err
	}
	if session.ID == "" {
		session.ID = r.db.nextID("session")
	}
	r.db.sessions[session.ID] = *session
	if !populate {
		return 0, nil
	}
	created := 0
	for _, studentID := range r.db.sections[session.SectionID].EnrolledStudents {
		id := r.db.nextID("attendance")
		r.db.attendance[id] = models.Attendance{ID: id, SessionID: session.ID, StudentID: studentID, Status: models.AttendancePresent}
		created++
	}
	return created, nil
}

func (r fakeSessionRepo) Update(ctx context.Context, session *models.Session) error {
	r.db.sessions[session.ID] = *session
	return nil
}

func (r fakeSessionRepo) ExistsForSectionOn(ctx context.Context, sectionID string, day models.Date) (bool, error) {
	for _, s := range r.db.sessions {
		if s.SectionID == sectionID && s.SessionDate.String() == day.String() {
			return true, nil
		}
	}
	return false, nil
}

type fakeAttendanceRepo struct {
	db      *memDB
	patches int
}

func (r *fakeAttendanceRepo) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error) {
	out := []models.AttendanceDetail{}
	for _, a := range r.db.attendance {
		if a.SessionID != sessionID {
			continue
		}
		detail := models.AttendanceDetail{Attendance: a}
		if st, ok := r.db.students[a.StudentID]; ok {
			detail.Student = &st
		}
		out = append(out, detail)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAttendanceRepo) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	a, ok := r.db.attendance[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (r *fakeAttendanceRepo) Create(ctx context.Context, record *models.Attendance) error {
	for _, a := range r.db.attendance {
		if a.SessionID == record.SessionID && a.StudentID == record.StudentID {
			return errors.New("duplicate")
		}
	}
	if record.ID == "" {
		record.ID = r.db.nextID("attendance")
	}
	if record.Status == "" {
		record.Status = models.AttendancePresent
	}
	r.db.attendance[record.ID] = *record
	return nil
}

func (r *fakeAttendanceRepo) Patch(ctx context.Context, id string, status, notes *string) (bool, error) {
	if r.db.failWrites != nil {
		return false, r.db.failWrites
	}
	r.patches++
	a, ok := r.db.attendance[id]
	if !ok || (status == nil && notes == nil) {
		return false, nil
	}
	if status != nil {
		a.Status = models.AttendanceStatus(*status)
	}
	if notes != nil {
		n := *notes
		a.Notes = &n
	}
	r.db.attendance[id] = a
	return true, nil
}

type fakeProgramRepo struct{ db *memDB }

func (r fakeProgramRepo) List(ctx context.Context) ([]models.Program, error) {
	out := []models.Program{}
	for _, p := range r.db.programs {
		out = append(out, p)
	}
	return out, nil
}

func (r fakeProgramRepo) FindByID(ctx context.Context, id string) (*models.Program, error) {
	p, ok := r.db.programs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (r fakeProgramRepo) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = r.db.nextID("program")
	}
	r.db.programs[program.ID] = *program
	return nil
}

func (r fakeProgramRepo) Update(ctx context.Context, program *models.Program) error {
	r.db.programs[program.ID] = *program
	return nil
}

func (r fakeProgramRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return keysOf(r.db.programs, ids), nil
}

type fakeUserRepo struct{ db *memDB }

func (r fakeUserRepo) List(ctx context.Context) ([]models.User, error) {
	out := []models.User{}
	for _, u := range r.db.users {
		out = append(out, u)
	}
	return out, nil
}

func (r fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.db.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (r fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.db.users[user.ID] = *user
	return nil
}

func (r fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.db.users[user.ID] = *user
	return nil
}

func (r fakeUserRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return keysOf(r.db.users, ids), nil
}

// fakeAccounts is an in-memory identity provider account store.
type fakeAccounts struct {
	accounts map[string]string
	err      error
	seq      int
}

func (f *fakeAccounts) CreateAccount(ctx context.Context, email string) (*models.IdentityAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.accounts {
		if existing == email {
			return nil, identity.ErrEmailTaken
		}
	}
	f.seq++
	uid := "uid-" + strconv.Itoa(f.seq)
	f.accounts[uid] = email
	return &models.IdentityAccount{UID: uid, Email: email}, nil
}

func (f *fakeAccounts) UpdateEmail(ctx context.Context, uid, email string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.accounts[uid]; !ok {
		return identity.ErrAccountNotFound
	}
	f.accounts[uid] = email
	return nil
}

func (f *fakeAccounts) GetAccount(ctx context.Context, uid string) (*models.IdentityAccount, error) {
	email, ok := f.accounts[uid]
	if !ok {
		return nil, identity.ErrAccountNotFound
	}
	return &models.IdentityAccount{UID: uid, Email: email}, nil
}

func mustDate(raw string) models.Date {
	d, err := models.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// memCache is a map-backed CacheRepository storing JSON like the Redis one.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}
