package alert

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// TeacherAlert carries everything a notification channel needs to tell a
// responsible adult about a new flag. Fields may be empty when the
// corresponding profile lookup failed; channels send what they have.
type TeacherAlert struct {
	TeacherEmail string
	StudentName  string
	RoomName     string
	ConcernType  string
	ConcernLevel int
	Excerpt      string
	ReviewURL    string
}

// Dispatcher sends a best-effort teacher alert. Errors are logged by the
// orchestrator and never retried.
type Dispatcher interface {
	SendTeacherAlert(ctx context.Context, alert TeacherAlert) error
}

// alertBody renders the shared plain-text notification body.
func alertBody(a TeacherAlert) string {
	student := a.StudentName
	if student == "" {
		student = "A student"
	}
	room := a.RoomName
	if room == "" {
		room = "one of your rooms"
	}
	return fmt.Sprintf(
		"%s wrote a message in %s that was flagged for %s (level %d/5).\n\nMessage excerpt:\n%q\n\nPlease review it here: %s\n",
		student, room, a.ConcernType, a.ConcernLevel, a.Excerpt, a.ReviewURL)
}

// ConsoleDispatcher logs alerts instead of sending them. Used in
// development and as the fallback when no channel is configured.
type ConsoleDispatcher struct {
	Logger *zap.Logger
}

func (d *ConsoleDispatcher) SendTeacherAlert(_ context.Context, a TeacherAlert) error {
	d.Logger.Info("Teacher alert (console)",
		zap.String("teacher_email", a.TeacherEmail),
		zap.String("concern_type", a.ConcernType),
		zap.Int("concern_level", a.ConcernLevel),
		zap.String("review_url", a.ReviewURL))
	return nil
}

// MultiDispatcher fans an alert out to every configured channel. A channel
// failure does not stop the others; the first error is returned so the
// orchestrator can log it.
type MultiDispatcher struct {
	Channels []Dispatcher
}

func (d *MultiDispatcher) SendTeacherAlert(ctx context.Context, a TeacherAlert) error {
	var firstErr error
	for _, ch := range d.Channels {
		if err := ch.SendTeacherAlert(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
