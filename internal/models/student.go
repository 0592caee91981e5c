package models

import "time"

// ParentContact is the guardian reachable for a student.
type ParentContact struct {
	FirstName   string `db:"first_name" json:"firstName"`
	LastName    string `db:"last_name" json:"lastName"`
	PhoneNumber string `db:"phone" json:"phoneNumber"`
	Email       string `db:"email" json:"email"`
}

// Student represents a learner enrolled in the program.
type Student struct {
	ID                  string        `db:"id" json:"id"`
	DisplayName         string        `db:"display_name" json:"displayName"`
	MeemliEmail         string        `db:"meemli_email" json:"meemliEmail"`
	Grade               int           `db:"grade" json:"grade"`
	SchoolName          string        `db:"school_name" json:"schoolName"`
	City                string        `db:"city" json:"city"`
	State               string        `db:"state" json:"state"`
	PreassessmentScore  *int          `db:"preassessment_score" json:"preassessmentScore,omitempty"`
	PostassessmentScore *int          `db:"postassessment_score" json:"postassessmentScore,omitempty"`
	Comments            string        `db:"comments" json:"comments"`
	ParentContact       ParentContact `db:"parent" json:"parentContact"`
	EnrolledSectionIDs  []string      `db:"-" json:"enrolledSections"`
	CreatedAt           time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updatedAt"`
}

// StudentDetail is a student with enrolled sections resolved.
type StudentDetail struct {
	Student
	EnrolledSections []Section `json:"enrolledSections"`
}
