package models

import (
	"fmt"
	"time"
)

// Section is a concrete offering of a course with its own instructor and
// weekly time blocks.
type Section struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	Code         string    `db:"code" json:"code"`
	InstructorID *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	Blocks []TimeBlock `json:"blocks,omitempty"`
}

// TimeBlock is one weekly meeting slot of a section. Times are stored as
// minutes since midnight to keep range comparisons exact.
type TimeBlock struct {
	ID          string `db:"id" json:"id"`
	SectionID   string `db:"section_id" json:"section_id"`
	Day         int    `db:"day" json:"day"`
	StartMinute int    `db:"start_minute" json:"start_minute"`
	EndMinute   int    `db:"end_minute" json:"end_minute"`
	Room        string `db:"room" json:"room"`
}

// Range renders the block's time span as "HH:MM-HH:MM".
func (b TimeBlock) Range() string {
	return fmt.Sprintf("%s-%s", Clock(b.StartMinute), Clock(b.EndMinute))
}

// ScheduledBlock is a time block joined with the course it belongs to,
// used when checking a student's current schedule for conflicts.
type ScheduledBlock struct {
	CourseID    string `db:"course_id" json:"course_id"`
	CourseName  string `db:"course_name" json:"course_name"`
	SectionCode string `db:"section_code" json:"section_code"`
	Day         int    `db:"day" json:"day"`
	StartMinute int    `db:"start_minute" json:"start_minute"`
	EndMinute   int    `db:"end_minute" json:"end_minute"`
}

// Range renders the scheduled block's time span as "HH:MM-HH:MM".
func (b ScheduledBlock) Range() string {
	return fmt.Sprintf("%s-%s", Clock(b.StartMinute), Clock(b.EndMinute))
}

// Clock formats minutes since midnight as "HH:MM".
func Clock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

var dayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName returns the weekday name for a 1-7 day index.
func DayName(day int) string {
	if day < 1 || day > 7 {
		return fmt.Sprintf("day %d", day)
	}
	return dayNames[day]
}
