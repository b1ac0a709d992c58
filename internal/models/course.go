package models

import "time"

// Course is a subject within a program's curriculum. Prerequisite edges
// are owned by the dependent course and are expected to stay acyclic by
// catalog convention.
type Course struct {
	ID        string    `db:"id" json:"id"`
	ProgramID string    `db:"program_id" json:"program_id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Credits   int       `db:"credits" json:"credits"`
	Semester  int       `db:"semester" json:"semester"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Prerequisites []CourseRef `json:"prerequisites,omitempty"`
}

// CourseRef is a light reference to a course, used for prerequisite lists.
type CourseRef struct {
	ID      string `db:"id" json:"id"`
	Code    string `db:"code" json:"code"`
	Name    string `db:"name" json:"name"`
	Credits int    `db:"credits" json:"credits"`
}

// CourseFilter defines filters supported by course list endpoints.
type CourseFilter struct {
	ProgramID string
	Semester  *int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
