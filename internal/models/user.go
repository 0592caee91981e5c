package models

import "time"

// User is a staff account. ID is the identity provider's subject id.
type User struct {
	ID            string    `db:"id" json:"id"`
	FirstName     string    `db:"first_name" json:"firstName"`
	LastName      string    `db:"last_name" json:"lastName"`
	PersonalEmail string    `db:"personal_email" json:"personalEmail"`
	MeemliEmail   string    `db:"meemli_email" json:"meemliEmail"`
	Admin         bool      `db:"admin" json:"admin"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Permission levels reported by Role.
const (
	RoleAdmin   = "ADMIN"
	RoleTeacher = "TEACHER"
)

// Role names the user's permission level.
func (u User) Role() string {
	if u.Admin {
		return RoleAdmin
	}
	return RoleTeacher
}
