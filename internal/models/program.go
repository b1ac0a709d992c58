package models

import "time"

// Program represents an academic program (degree track) owning a set of courses.
type Program struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	AwardedTitle  string    `db:"awarded_title" json:"awarded_title"`
	DurationYears int       `db:"duration_years" json:"duration_years"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
