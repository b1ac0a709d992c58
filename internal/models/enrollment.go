package models

import "time"

// DetailStatus represents the lifecycle of an enrollment detail.
type DetailStatus string

// Possible detail statuses. WITHDRAWN is terminal and set by explicit
// withdrawal; PASSED and FAILED are derived from the final grade.
const (
	DetailStatusInProgress DetailStatus = "IN_PROGRESS"
	DetailStatusPassed     DetailStatus = "PASSED"
	DetailStatusFailed     DetailStatus = "FAILED"
	DetailStatusWithdrawn  DetailStatus = "WITHDRAWN"
)

// Enrollment links a student to an academic period. Created on the
// student's first successful registration within that period.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	PeriodID   string    `db:"period_id" json:"period_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail records one course taken by a student in one period:
// the section chosen, up to four partial grades, an optional make-up
// grade, the computed final grade and the derived status.
type EnrollmentDetail struct {
	ID           string       `db:"id" json:"id"`
	EnrollmentID string       `db:"enrollment_id" json:"enrollment_id"`
	CourseID     string       `db:"course_id" json:"course_id"`
	SectionID    *string      `db:"section_id" json:"section_id,omitempty"`
	Partial1     *float64     `db:"partial_1" json:"partial_1,omitempty"`
	Partial2     *float64     `db:"partial_2" json:"partial_2,omitempty"`
	Partial3     *float64     `db:"partial_3" json:"partial_3,omitempty"`
	Partial4     *float64     `db:"partial_4" json:"partial_4,omitempty"`
	MakeupGrade  *float64     `db:"makeup_grade" json:"makeup_grade,omitempty"`
	FinalGrade   *float64     `db:"final_grade" json:"final_grade,omitempty"`
	Status       DetailStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Partials returns the four partial grade slots in order.
func (d *EnrollmentDetail) Partials() [4]*float64 {
	return [4]*float64{d.Partial1, d.Partial2, d.Partial3, d.Partial4}
}

// SetPartial writes one of the four slots (1-based).
func (d *EnrollmentDetail) SetPartial(slot int, value float64) {
	switch slot {
	case 1:
		d.Partial1 = &value
	case 2:
		d.Partial2 = &value
	case 3:
		d.Partial3 = &value
	case 4:
		d.Partial4 = &value
	}
}

// EnrollmentDetailContext enriches a detail with the student, course and
// period data the grading flow needs in a single load.
type EnrollmentDetailContext struct {
	EnrollmentDetail
	StudentID     string    `db:"student_id" json:"student_id"`
	StudentName   string    `db:"student_name" json:"student_name"`
	StudentEmail  string    `db:"student_email" json:"student_email"`
	CourseCode    string    `db:"course_code" json:"course_code"`
	CourseName    string    `db:"course_name" json:"course_name"`
	PeriodID      string    `db:"period_id" json:"period_id"`
	PeriodEndDate time.Time `db:"period_end_date" json:"period_end_date"`
}

// EnrollmentDetailRow is a reporting row for period rosters.
type EnrollmentDetailRow struct {
	DetailID    string       `db:"detail_id" json:"detail_id"`
	StudentName string       `db:"student_name" json:"student_name"`
	NationalID  string       `db:"national_id" json:"national_id"`
	CourseCode  string       `db:"course_code" json:"course_code"`
	CourseName  string       `db:"course_name" json:"course_name"`
	Credits     int          `db:"credits" json:"credits"`
	SectionCode *string      `db:"section_code" json:"section_code,omitempty"`
	FinalGrade  *float64     `db:"final_grade" json:"final_grade,omitempty"`
	Status      DetailStatus `db:"status" json:"status"`
}
