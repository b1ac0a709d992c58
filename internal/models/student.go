package models

import "time"

// Student represents a learner registered in an academic program, linked
// one-to-one to a user account.
type Student struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	ProgramID  string    `db:"program_id" json:"program_id"`
	NationalID string    `db:"national_id" json:"national_id"`
	FullName   string    `db:"full_name" json:"full_name"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentProgress is the computed academic progress of a student.
type StudentProgress struct {
	StudentID     string  `json:"student_id"`
	ProgramID     string  `json:"program_id"`
	Percentage    float64 `json:"percentage"`
	PassedCourses int     `json:"passed_courses"`
	TotalCourses  int     `json:"total_courses"`
}

// StudentFilter encapsulates search parameters for listing students.
type StudentFilter struct {
	ProgramID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
