package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// Priority orders statuses for sorting: PRESENT < ABSENT < LATE, unknown last.
func (s AttendanceStatus) Priority() int {
	switch s {
	case AttendancePresent:
		return 0
	case AttendanceAbsent:
		return 1
	case AttendanceLate:
		return 2
	default:
		return 3
	}
}

// Attendance is one student's status for one session.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session"`
	StudentID string           `db:"student_id" json:"student"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time        `db:"updated_at" json:"updatedAt"`
}

// AttendanceDetail is an attendance row with its student resolved.
type AttendanceDetail struct {
	Attendance
	Student *Student `db:"student" json:"student"`
}

// AttendanceUpdate is one item of a bulk update. Fields left nil are not written.
type AttendanceUpdate struct {
	AttendanceID string  `json:"attendanceId"`
	Status       *string `json:"status,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// BulkUpdateResult tallies a bulk update for logging and metrics.
type BulkUpdateResult struct {
	Received int `json:"received"`
	Dropped  int `json:"dropped"`
	Applied  int `json:"applied"`
	Missing  int `json:"missing"`
}
