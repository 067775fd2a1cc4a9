package mailer

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/presensia/attendance-api/pkg/config"
)

// Mailer sends outbound notification mail over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// New constructs a Mailer from SMTP configuration.
func New(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
		logger: logger,
	}
}

// SendLowAttendanceAlert mails a student that their attendance dropped below
// the class requirement.
func (m *Mailer) SendLowAttendanceAlert(email, name string, percentage, required float64) error {
	subject := "Low Attendance Alert"
	body := fmt.Sprintf(
		"<p>Dear %s,</p>"+
			"<p>Your attendance for the current month is <b>%.2f%%</b>, which is below the "+
			"required <b>%.2f%%</b>.</p>"+
			"<p>Please make sure to attend classes regularly.</p>",
		name, percentage, required,
	)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send low attendance alert to %s: %w", email, err)
	}

	m.logger.Sugar().Infow("low attendance alert sent", "to", email, "percentage", percentage, "required", required)
	return nil
}
