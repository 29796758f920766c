package models

import "time"

// Flag statuses, moved forward only by the human review workflow.
const (
	FlagStatusPending       = "pending"
	FlagStatusReviewing     = "reviewing"
	FlagStatusResolved      = "resolved"
	FlagStatusFalsePositive = "false_positive"
)

// ValidFlagStatuses is the closed set accepted by the review API.
var ValidFlagStatuses = map[string]bool{
	FlagStatusPending:       true,
	FlagStatusReviewing:     true,
	FlagStatusResolved:      true,
	FlagStatusFalsePositive: true,
}

// Flag is a persisted escalation record stored in the 'flags' table.
// One flag at most per triggering message; flags are never deleted.
type Flag struct {
	ID           string    `db:"id" json:"id"`
	MessageID    string    `db:"message_id" json:"message_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	RoomID       string    `db:"room_id" json:"room_id"`
	ConcernType  string    `db:"concern_type" json:"concern_type"`
	ConcernLevel int       `db:"concern_level" json:"concern_level"`
	Explanation  string    `db:"explanation" json:"explanation"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
