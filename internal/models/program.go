package models

import "time"

// Program is a dated run of the after-school program.
type Program struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	StartDate   Date      `db:"start_date" json:"startDate"`
	EndDate     *Date     `db:"end_date" json:"endDate,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	Archived    bool      `db:"archived" json:"archived"`
	Sections    []string  `db:"-" json:"sections"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Covers reports whether day falls inside the program's date range.
func (p Program) Covers(day Date) bool {
	if day.Before(p.StartDate) {
		return false
	}
	return p.EndDate == nil || !p.EndDate.Before(day)
}
