package models

import "time"

// AcademicPeriod models a bounded academic term. At most one period is
// active at a time; registration is only possible while the active
// period also has RegistrationOpen set.
type AcademicPeriod struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	StartDate        time.Time `db:"start_date" json:"start_date"`
	EndDate          time.Time `db:"end_date" json:"end_date"`
	Active           bool      `db:"active" json:"active"`
	RegistrationOpen bool      `db:"registration_open" json:"registration_open"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Ended reports whether the period's end date lies before the given day.
func (p AcademicPeriod) Ended(today time.Time) bool {
	return p.EndDate.Before(truncateToDay(today))
}

// Started reports whether the period's start date is on or before the given day.
func (p AcademicPeriod) Started(today time.Time) bool {
	return !p.StartDate.After(truncateToDay(today))
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodFilter defines filters supported by period list endpoints.
type PeriodFilter struct {
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
