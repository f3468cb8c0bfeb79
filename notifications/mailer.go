package notifications

import (
	"fmt"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer delivers the email fallback for recipients who are offline when
// a high priority notification lands.
type Mailer interface {
	Send(toEmail, toName, subject, plainText, htmlContent string) error
}

// SendGridMailer sends through SendGrid using SENDGRID_API_KEY.
type SendGridMailer struct {
	FromName  string
	FromEmail string
}

// NewSendGridMailer builds a mailer with the platform sender identity.
func NewSendGridMailer() *SendGridMailer {
	return &SendGridMailer{
		FromName:  "Med360",
		FromEmail: "no-reply@med360.health",
	}
}

func (m *SendGridMailer) Send(toEmail, toName, subject, plainText, htmlContent string) error {
	from := mail.NewEmail(m.FromName, m.FromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send email", "error", err, "to", toEmail)
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", toEmail)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	zap.S().Infow("email sent successfully", "to", toEmail, "subject", subject)
	return nil
}
