// Package notify delivers email notifications over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wneessen/go-mail"

	"codebrew/internal/review"
)

// ErrNotConfigured is returned when SMTP credentials are missing
var ErrNotConfigured = errors.New("email credentials not configured")

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // defaults to Username
}

// Message is one email
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	IsHTML  bool   `json:"is_html"`
}

// Status mirrors what callers report back to users
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends messages through an SMTP server with STARTTLS
type Mailer struct {
	cfg    Config
	dialer func(Config) (sender, error)
}

// NewMailer creates a mailer. Host and port default to smtp.gmail.com:587.
func NewMailer(cfg Config) *Mailer {
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Mailer{cfg: cfg, dialer: dialSMTP}
}

func dialSMTP(cfg Config) (sender, error) {
	return mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
}

// Send delivers msg. The returned Status is filled on failure too, so HTTP
// handlers can echo it.
func (m *Mailer) Send(ctx context.Context, msg Message) (Status, error) {
	if err := m.send(ctx, msg); err != nil {
		return Status{Status: "error", Message: err.Error()}, err
	}
	return Status{Status: "success", Message: "Email sent successfully"}, nil
}

func (m *Mailer) send(ctx context.Context, msg Message) error {
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return ErrNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("recipient is required")
	}

	mm, err := m.build(msg)
	if err != nil {
		return err
	}

	client, err := m.dialer(m.cfg)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (m *Mailer) build(msg Message) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := mm.To(msg.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	mm.Subject(msg.Subject)

	contentType := mail.TypeTextPlain
	if msg.IsHTML {
		contentType = mail.TypeTextHTML
	}
	mm.SetBodyString(contentType, msg.Body)
	return mm, nil
}

// SuggestionMessage renders a suggestion notification. prURL may be empty.
func SuggestionMessage(to string, s review.Suggestion, prURL string) Message {
	location := s.FilePath
	if location == "" {
		location = s.FileName
	}

	var sb strings.Builder
	sb.WriteString("<h2>" + html.EscapeString(s.Issue) + "</h2>\n")
	if location != "" {
		sb.WriteString("<p><b>File:</b> " + html.EscapeString(location) + "</p>\n")
	}
	sb.WriteString("<p><b>Benefit:</b> " + html.EscapeString(s.Benefit.String()) + "</p>\n")
	sb.WriteString("<h3>Before</h3>\n<pre>" + html.EscapeString(s.OldCode) + "</pre>\n")
	sb.WriteString("<h3>After</h3>\n<pre>" + html.EscapeString(s.NewCode) + "</pre>\n")
	if prURL != "" {
		sb.WriteString(fmt.Sprintf("<p><a href=\"%s\">View pull request</a></p>\n", html.EscapeString(prURL)))
	}

	return Message{
		To:      to,
		Subject: "Code suggestion: " + s.CommitMessage,
		Body:    sb.String(),
		IsHTML:  true,
	}
}
