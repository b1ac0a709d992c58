package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sismepa/academic-api/internal/models"
	"github.com/sismepa/academic-api/pkg/jobs"
)

type mailSender interface {
	Send(ctx context.Context, toEmail, toName, subject, body string) error
}

type notificationStudentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

// NotificationService renders academic notifications and hands them to a
// background queue for delivery. Every entry point is best-effort: a
// full queue or an unreachable mail provider is logged and dropped, and
// never surfaces to the triggering operation.
type NotificationService struct {
	queue    *jobs.Queue
	mailer   mailSender
	students notificationStudentLister
	logger   *zap.Logger
}

// NewNotificationService constructs NotificationService. Start must be
// called before notifications are dispatched.
func NewNotificationService(mailer mailSender, students notificationStudentLister, queueCfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{mailer: mailer, students: students, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.deliver, queueCfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if s.mailer == nil {
		return nil
	}
	return s.mailer.Send(ctx, notification.RecipientEmail, notification.RecipientName, notification.Subject, notification.Body)
}

func (s *NotificationService) dispatch(notification models.Notification) {
	if notification.RecipientEmail == "" {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(notification.Kind),
		Payload: notification,
	})
	if err != nil {
		s.logger.Warn("notification dropped",
			zap.String("kind", string(notification.Kind)),
			zap.String("recipient", notification.RecipientEmail),
			zap.Error(err))
	}
}

// StudentAtRisk warns a student that the remaining partial requires a
// high score to pass the course.
func (s *NotificationService) StudentAtRisk(ctx context.Context, detail *models.EnrollmentDetailContext, requiredScore float64) {
	s.dispatch(models.Notification{
		Kind:           models.NotificationRisk,
		RecipientEmail: detail.StudentEmail,
		RecipientName:  detail.StudentName,
		Subject:        fmt.Sprintf("Academic alert for %s", detail.CourseName),
		Body: fmt.Sprintf("Dear %s,\n\nYou need a score of %.2f on your final partial of %s (%s) to pass the course. Please contact your instructor.\n",
			detail.StudentName, requiredScore, detail.CourseName, detail.CourseCode),
	})
}

// StudentFailed informs a student that the final grade is below passing.
func (s *NotificationService) StudentFailed(ctx context.Context, detail *models.EnrollmentDetailContext, finalGrade float64) {
	s.dispatch(models.Notification{
		Kind:           models.NotificationFailure,
		RecipientEmail: detail.StudentEmail,
		RecipientName:  detail.StudentName,
		Subject:        fmt.Sprintf("Final grade for %s", detail.CourseName),
		Body: fmt.Sprintf("Dear %s,\n\nYour final grade in %s (%s) is %.2f, below the passing grade. A make-up exam may be available.\n",
			detail.StudentName, detail.CourseName, detail.CourseCode, finalGrade),
	})
}

// InstructorAssigned notifies an instructor of a new section assignment.
func (s *NotificationService) InstructorAssigned(ctx context.Context, instructor *models.User, course *models.Course, section *models.Section) {
	s.dispatch(models.Notification{
		Kind:           models.NotificationAssignment,
		RecipientEmail: instructor.Email,
		RecipientName:  instructor.FullName,
		Subject:        fmt.Sprintf("Section assignment: %s", course.Name),
		Body: fmt.Sprintf("Dear %s,\n\nYou have been assigned section %s of %s (%s).\n",
			instructor.FullName, section.Code, course.Name, course.Code),
	})
}

// LowProgress alerts a student whose program progress fell below the
// configured threshold.
func (s *NotificationService) LowProgress(ctx context.Context, student *models.Student, percentage float64) {
	s.dispatch(models.Notification{
		Kind:           models.NotificationLowProgress,
		RecipientEmail: student.Email,
		RecipientName:  student.FullName,
		Subject:        "Academic progress alert",
		Body: fmt.Sprintf("Dear %s,\n\nYour academic progress is currently %.2f%% of your program. Please reach out to your academic advisor.\n",
			student.FullName, percentage),
	})
}

// PeriodStarted fans out the period-opening notice to every student.
func (s *NotificationService) PeriodStarted(ctx context.Context, period *models.AcademicPeriod) {
	if s.students == nil {
		return
	}
	const pageSize = 100
	for page := 1; ; page++ {
		students, total, err := s.students.List(ctx, models.StudentFilter{Page: page, PageSize: pageSize})
		if err != nil {
			s.logger.Warn("period start fan-out aborted", zap.String("period_id", period.ID), zap.Error(err))
			return
		}
		for _, student := range students {
			s.dispatch(models.Notification{
				Kind:           models.NotificationPeriodStart,
				RecipientEmail: student.Email,
				RecipientName:  student.FullName,
				Subject:        fmt.Sprintf("Academic period %s is now active", period.Name),
				Body: fmt.Sprintf("Dear %s,\n\nThe academic period %s is now active. Registration dates run from %s to %s.\n",
					student.FullName, period.Name, period.StartDate.Format("2006-01-02"), period.EndDate.Format("2006-01-02")),
			})
		}
		if page*pageSize >= total || len(students) == 0 {
			return
		}
	}
}
