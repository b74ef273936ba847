package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// AlertSender emails an operator when a queue item exhausts its retries.
// Terminal failures are never silently dropped; this is how they surface.
type AlertSender struct {
	Host string
	Port int
	User string
	Pass string
	From string
	To   string
}

func NewAlertSender(host string, port int, user, pass, from, to string) *AlertSender {
	return &AlertSender{Host: host, Port: port, User: user, Pass: pass, From: from, To: to}
}

func (s *AlertSender) SendQueueFailureAlert(messageID string, attempts int, lastErr string) error {
	if s.To == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", fmt.Sprintf("[adf-pipeline] lead email %s failed permanently", messageID))
	m.SetBody("text/plain", fmt.Sprintf(
		"Inbound lead email %s failed after %d attempts and needs manual review.\n\nLast error:\n%s\n",
		messageID, attempts, lastErr,
	))

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}
