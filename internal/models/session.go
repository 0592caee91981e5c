package models

import "time"

// Session is one meeting of a section on a calendar date.
type Session struct {
	ID          string    `db:"id" json:"id"`
	SectionID   string    `db:"section_id" json:"section"`
	SessionDate Date      `db:"session_date" json:"sessionDate"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// SessionSummary is a session with its section resolved, as listed.
type SessionSummary struct {
	Session
	Section *Section `json:"section"`
}

// SessionDetail adds the attendance rows, each with its student resolved.
type SessionDetail struct {
	Session
	Section   *Section           `json:"section"`
	Attendees []AttendanceDetail `json:"attendees"`
}

// SessionFilter narrows a session listing. Zero values match everything.
type SessionFilter struct {
	SectionID string
	Date      *Date
}
