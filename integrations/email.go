package integrations

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// EmailConfig holds the SMTP settings for the email connector.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Email delivers messages over SMTP. It only implements the base
// Connector interface; alerts reach it through the formatted fallback.
type Email struct {
	cfg EmailConfig
	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmail creates an email connector.
func NewEmail(cfg EmailConfig) *Email {
	return &Email{cfg: cfg, send: smtp.SendMail}
}

func (e *Email) Name() string { return "email" }

func (e *Email) TestConnection(ctx context.Context) error {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", e.addr())
	if err != nil {
		return fmt.Errorf("integrations: smtp dial: %w", err)
	}
	return conn.Close()
}

func (e *Email) SendMessage(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(e.cfg.To) == 0 {
		return fmt.Errorf("integrations: email connector has no recipients")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.To, ", "))
	b.WriteString("Subject: mihari notification\r\n")
	b.WriteString("\r\n")
	b.WriteString(text)
	b.WriteString("\r\n")

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	if err := e.send(e.addr(), auth, e.cfg.From, e.cfg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("integrations: smtp send: %w", err)
	}
	return nil
}

func (e *Email) addr() string {
	return fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
}
