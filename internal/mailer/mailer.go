// Package mailer sends transactional account emails over SMTP. Sending is
// fire-and-forget: failures are logged and counted, never surfaced to the
// request that triggered them.
package mailer

import (
	"fmt"

	"family-service/internal/model"
	"family-service/pkg/config"
	"family-service/prometheus"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer sends account lifecycle emails.
type Mailer struct {
	cfg         config.SMTPConfig
	frontendURL string
	log         *zap.Logger
	dialer      *gomail.Dialer
}

// New creates a Mailer from the application configuration.
func New(cfg *config.Config, log *zap.Logger) *Mailer {
	return &Mailer{
		cfg:         cfg.SMTP,
		frontendURL: cfg.FrontendURL,
		log:         log,
		dialer:      gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password),
	}
}

func (m *Mailer) send(kind, to, subject, body string) {
	if m.cfg.User == "" {
		// No SMTP credentials configured (development); skip quietly.
		m.log.Debug("SMTP not configured, skipping email", zap.String("kind", kind), zap.String("to", to))
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		prometheus.RecordEmail(kind, "failed")
		m.log.Error("Failed to send email",
			zap.String("kind", kind),
			zap.String("to", to),
			zap.Error(err))
		return
	}

	prometheus.RecordEmail(kind, "sent")
	m.log.Info("Email sent", zap.String("kind", kind), zap.String("to", to))
}

// SendWelcome mails a new registrant that their account is under review.
// Intended to be called on its own goroutine.
func (m *Mailer) SendWelcome(user *model.User) {
	body := fmt.Sprintf(`
		<h1>Welcome %s %s!</h1>
		<p>Thank you for registering with us.</p>
		<p>Your account has been received and is currently under review.</p>
		<p>You will receive an email once your account is approved and activated.</p>
		<p>If you have any questions in the meantime, feel free to contact our support team.</p>`,
		user.FirstName, user.LastName)
	m.send("welcome", user.Email, "Welcome to Our Platform – Account Under Review", body)
}

// SendAccountStatus mails a user that their account was accepted or
// rejected. Other status values are silent. Intended to be called on its own
// goroutine.
func (m *Mailer) SendAccountStatus(user *model.User) {
	var subject, body string
	switch user.Status {
	case model.StatusAccepted:
		subject = "Your Account Has Been Approved"
		body = fmt.Sprintf(`
			<h1>Good news, %s!</h1>
			<p>Your account has been approved. You can now sign in:</p>
			<p><a href="%s/login">Sign in</a></p>`,
			user.FirstName, m.frontendURL)
	case model.StatusRejected:
		subject = "Your Account Application"
		body = fmt.Sprintf(`
			<h1>Hello %s,</h1>
			<p>We are sorry to inform you that your account application was not approved.</p>
			<p>If you believe this is a mistake, please contact our support team.</p>`,
			user.FirstName)
	default:
		return
	}
	m.send("account_status", user.Email, subject, body)
}
