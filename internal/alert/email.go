package alert

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// EmailDispatcher notifies teachers by email through SendGrid.
type EmailDispatcher struct {
	key    string
	from   *sgmail.Email
	logger *zap.Logger
}

func NewEmailDispatcher(key, appName, fromEmail string, logger *zap.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		key:    key,
		from:   sgmail.NewEmail(appName, fromEmail),
		logger: logger,
	}
}

func (d *EmailDispatcher) SendTeacherAlert(_ context.Context, a TeacherAlert) error {
	if a.TeacherEmail == "" {
		// No address to send to; the flag itself still exists for review.
		d.logger.Warn("Teacher alert skipped: no teacher email",
			zap.String("concern_type", a.ConcernType))
		return nil
	}

	subject := fmt.Sprintf("[Safeguard] %s concern (level %d) needs your review", a.ConcernType, a.ConcernLevel)

	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail("", a.TeacherEmail))

	m := sgmail.NewV3Mail()
	m.SetFrom(d.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", alertBody(a)))

	req := sendgrid.GetRequest(d.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned status %d: %s", res.StatusCode, res.Body)
	}

	d.logger.Info("Teacher alert email sent",
		zap.String("teacher_email", a.TeacherEmail),
		zap.String("concern_type", a.ConcernType),
		zap.Int("concern_level", a.ConcernLevel))
	return nil
}
