package models

// NotificationKind labels the notification extension points of the core.
type NotificationKind string

const (
	NotificationRisk        NotificationKind = "risk"
	NotificationFailure     NotificationKind = "failure"
	NotificationAssignment  NotificationKind = "assignment"
	NotificationPeriodStart NotificationKind = "period_start"
	NotificationLowProgress NotificationKind = "low_progress"
)

// Notification is a rendered message awaiting delivery. Delivery is
// best-effort; failures are logged, never raised to the caller.
type Notification struct {
	Kind           NotificationKind `json:"kind"`
	RecipientEmail string           `json:"recipient_email"`
	RecipientName  string           `json:"recipient_name"`
	Subject        string           `json:"subject"`
	Body           string           `json:"body"`
}
