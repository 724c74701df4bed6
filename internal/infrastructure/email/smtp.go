package email

import (
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// ErrEmailServiceNotConfigured is returned when SMTP settings are absent.
var ErrEmailServiceNotConfigured = errors.New("email service not configured")

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// Message is one outbound email. HTMLBody is optional; when present it is
// attached as the multipart alternative.
type Message struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
}

type SMTPEmailService struct {
	config SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPEmailService(config SMTPConfig) *SMTPEmailService {
	dialer := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)

	return &SMTPEmailService{
		config: config,
		dialer: dialer,
	}
}

func (s *SMTPEmailService) Send(msg Message) error {
	m := gomail.NewMessage()
	if s.config.FromName != "" {
		m.SetAddressHeader("From", s.config.FromAddress, s.config.FromName)
	} else {
		m.SetHeader("From", s.config.FromAddress)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.PlainBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// SendTestEmail sends a short message to verify the configuration.
func (s *SMTPEmailService) SendTestEmail(to string) error {
	return s.Send(Message{
		To:        to,
		Subject:   "SMTP configuration test",
		PlainBody: "This is a test message confirming the SMTP configuration works.",
	})
}
