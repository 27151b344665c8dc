package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig holds mail transport settings.
type SMTPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
}

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP sends alerts as HTML mail.
type SMTP struct {
	cfg      SMTPConfig
	sendMail SendMailFunc
}

// NewSMTP creates a mail notifier. Empty settings get the stock defaults.
func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.SMTPServer == "" {
		cfg.SMTPServer = "smtp.gmail.com"
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = "arbitrage@example.com"
	}
	if cfg.ToEmail == "" {
		cfg.ToEmail = "admin@example.com"
	}
	return &SMTP{cfg: cfg, sendMail: smtp.SendMail}
}

var alertTemplate = template.Must(template.New("alert").Parse(`<html>
<body>
  <h2>Arbitrage System Error</h2>
  <p><strong>Time:</strong> {{.Time}}</p>
  <p><strong>Component:</strong> {{.Component}}</p>
  <p><strong>Operation:</strong> {{.Operation}}</p>
  <p><strong>Error:</strong> {{.Message}}</p>
  <h3>Context:</h3>
  <pre>{{.Context}}</pre>
</body>
</html>
`))

// Send renders the alert and hands it to the SMTP server.
// smtp.SendMail upgrades to STARTTLS when the server offers it.
func (s *SMTP) Send(ctx context.Context, alert Alert) error {
	body, err := renderAlert(alert)
	if err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.FromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", s.cfg.ToEmail)
	fmt.Fprintf(&msg, "Subject: %s\r\n", alert.Subject())
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPServer)
	}
	addr := net.JoinHostPort(s.cfg.SMTPServer, strconv.Itoa(s.cfg.SMTPPort))

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(addr, auth, s.cfg.FromEmail, strings.Split(s.cfg.ToEmail, ","), msg.Bytes())
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send alert email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func renderAlert(alert Alert) (string, error) {
	ctxText := "No context provided"
	if len(alert.Fields) > 0 {
		data, err := json.MarshalIndent(alert.Fields, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal alert context: %w", err)
		}
		ctxText = string(data)
	}

	var buf bytes.Buffer
	err := alertTemplate.Execute(&buf, map[string]string{
		"Time":      alert.Time.Format(time.DateTime),
		"Component": alert.Component,
		"Operation": alert.Operation,
		"Message":   alert.Message,
		"Context":   ctxText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render alert: %w", err)
	}
	return buf.String(), nil
}
