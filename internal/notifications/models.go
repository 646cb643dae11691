package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeAttendeeConfirmed      NotificationType = "ATTENDEE_CONFIRMED"
	NotificationTypeAttendeeWaitlisted     NotificationType = "ATTENDEE_WAITLISTED"
	NotificationTypeAttendeePromoted       NotificationType = "ATTENDEE_PROMOTED"
	NotificationTypeAttendeeRemoved        NotificationType = "ATTENDEE_REMOVED"
	NotificationTypeWaitlistPositionUpdate NotificationType = "WAITLIST_POSITION_UPDATE"
)

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "LOW"
	NotificationPriorityMedium NotificationPriority = "MEDIUM"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
)

// AdmissionNotification describes one committed admission state change for
// downstream mailers. Delivery is at-most-once from this service's side.
type AdmissionNotification struct {
	ID       uuid.UUID            `json:"id"`
	Type     NotificationType     `json:"type"`
	Priority NotificationPriority `json:"priority"`

	RecipientID    uuid.UUID `json:"recipient_id"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name"`

	EventID      uuid.UUID `json:"event_id"`
	AttendanceID uuid.UUID `json:"attendance_id"`
	Status       string    `json:"status"`

	Position         int    `json:"position,omitempty"`
	PreviousPosition int    `json:"previous_position,omitempty"`
	Trigger          string `json:"trigger,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type NotificationBuilder struct {
	notification *AdmissionNotification
}

func NewNotificationBuilder() *NotificationBuilder {
	return &NotificationBuilder{
		notification: &AdmissionNotification{
			ID:        uuid.New(),
			CreatedAt: time.Now().UTC(),
		},
	}
}

func (nb *NotificationBuilder) WithType(notType NotificationType) *NotificationBuilder {
	nb.notification.Type = notType
	nb.notification.Priority = GetDefaultPriority(notType)
	return nb
}

func (nb *NotificationBuilder) WithRecipient(userID uuid.UUID, email, name string) *NotificationBuilder {
	nb.notification.RecipientID = userID
	nb.notification.RecipientEmail = email
	nb.notification.RecipientName = name
	return nb
}

func (nb *NotificationBuilder) WithAttendance(eventID, attendanceID uuid.UUID, status string) *NotificationBuilder {
	nb.notification.EventID = eventID
	nb.notification.AttendanceID = attendanceID
	nb.notification.Status = status
	return nb
}

func (nb *NotificationBuilder) WithPosition(previous, current int) *NotificationBuilder {
	nb.notification.PreviousPosition = previous
	nb.notification.Position = current
	return nb
}

func (nb *NotificationBuilder) WithTrigger(trigger string) *NotificationBuilder {
	nb.notification.Trigger = trigger
	return nb
}

func (nb *NotificationBuilder) Build() *AdmissionNotification {
	return nb.notification
}

func GetDefaultPriority(notType NotificationType) NotificationPriority {
	switch notType {
	case NotificationTypeAttendeePromoted:
		return NotificationPriorityHigh
	case NotificationTypeWaitlistPositionUpdate:
		return NotificationPriorityLow
	default:
		return NotificationPriorityMedium
	}
}

// GetPartitionKey keys messages by event so consumers see one event's changes in order.
func (n *AdmissionNotification) GetPartitionKey() string {
	return n.EventID.String()
}

func (n *AdmissionNotification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}
