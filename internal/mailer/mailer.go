// Package mailer provides the outbound transactional email capability.
// Delivery is opaque to callers: they hand over a recipient, subject, and
// body and get best-effort delivery.
package mailer

import (
	"fmt"
	"log"
	"net/smtp"
)

// Sender delivers one transactional email
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPSender sends mail through an authenticated SMTP relay.
// No SMTP client library exists in this codebase's dependency set; net/smtp
// covers the single-message, single-relay case.
type SMTPSender struct {
	host string
	port int
	user string
	pass string
}

// NewSMTP creates an SMTP sender. Returns a log-only sender when credentials
// are missing so development setups work without email configuration.
func NewSMTP(host string, port int, user, pass string) Sender {
	if user == "" || pass == "" {
		log.Println("[mailer] EMAIL_USER or EMAIL_PASS not set, using log-only delivery")
		return &logSender{}
	}
	return &SMTPSender{host: host, port: port, user: user, pass: pass}
}

// Send delivers a single HTML email
func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	msg := fmt.Sprintf("From: NeuroFlux Security <%s>\r\n", s.user) +
		fmt.Sprintf("To: %s\r\n", to) +
		fmt.Sprintf("Subject: %s\r\n", subject) +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		htmlBody

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	if err := smtp.SendMail(addr, auth, s.user, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// logSender writes messages to the process log instead of delivering them
type logSender struct{}

func (l *logSender) Send(to, subject, htmlBody string) error {
	log.Printf("[mailer] (log-only) to=%s subject=%q", to, subject)
	return nil
}

// VerificationEmail renders the signup verification message
func VerificationEmail(code string) (subject, body string) {
	subject = "NeuroFlux OS Secure Verification"
	body = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#070b14;">
  <div style="max-width:500px;margin:0 auto;background:#111c3a;padding:20px;color:white;font-family:sans-serif;border-radius:10px;">
    <h2>Verify Your Identity</h2>
    <p>Use the code below to sign in:</p>
    <div style="font-size:32px;font-weight:bold;color:#38bdf8;margin:20px 0;">%s</div>
    <p style="color:#aaa;font-size:12px;">Expires in 10 minutes.</p>
  </div>
</body>
</html>`, code)
	return subject, body
}
