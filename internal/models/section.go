package models

import (
	"time"

	"github.com/lib/pq"
)

// Weekdays lists the accepted values for Section.Days.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Section is a recurring class of a program with its teachers and roster.
type Section struct {
	ID               string         `db:"id" json:"id"`
	Code             string         `db:"code" json:"code"`
	ProgramID        string         `db:"program_id" json:"program"`
	Teachers         []string       `db:"-" json:"teachers"`
	EnrolledStudents []string       `db:"-" json:"enrolledStudents"`
	StartTime        string         `db:"start_time" json:"startTime"`
	EndTime          string         `db:"end_time" json:"endTime"`
	Days             pq.StringArray `db:"days" json:"days"`
	Sessions         []string       `db:"-" json:"sessions"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// MeetsOn reports whether the section meets on the given weekday.
func (s Section) MeetsOn(day time.Weekday) bool {
	for _, d := range s.Days {
		if d == day.String() {
			return true
		}
	}
	return false
}
