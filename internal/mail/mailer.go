// Package mail sends transactional email over SMTP.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/observability"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer renders templates and delivers them in the background.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	send     SendFunc
	wg       sync.WaitGroup
}

// NewMailer builds a mailer from SMTP settings. With no SMTP host configured
// messages are logged instead of sent.
func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		send:     smtp.SendMail,
	}
}

// WithSendFunc replaces the SMTP transport.
func (m *Mailer) WithSendFunc(fn SendFunc) *Mailer {
	m.send = fn
	return m
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.host != ""
}

// VerificationData fills verify_email.html.
type VerificationData struct {
	Name      string
	Link      string
	ExpiresIn string
}

// SendVerification queues the email verification message.
func (m *Mailer) SendVerification(ctx context.Context, to string, data VerificationData) error {
	return m.dispatch(ctx, "verify_email.html", to, "Verify your Inkwell email", data, data.Link)
}

// CommentNoticeData fills comment_notice.html.
type CommentNoticeData struct {
	Name      string
	Commenter string
	PostTitle string
	Excerpt   string
	Link      string
}

// SendCommentNotice tells a post author about a new comment.
func (m *Mailer) SendCommentNotice(ctx context.Context, to string, data CommentNoticeData) error {
	return m.dispatch(ctx, "comment_notice.html", to, "New comment on "+data.PostTitle, data, data.Link)
}

func (m *Mailer) dispatch(ctx context.Context, name, to, subject string, data any, link string) error {
	body, err := render(name, data)
	if err != nil {
		return err
	}
	if !m.Enabled() {
		observability.GlobalLogger.InfoContext(ctx, "smtp disabled, mail not sent",
			slog.String("template", name),
			slog.String("to", to),
			slog.String("link", link))
		observability.MailDeliveries.WithLabelValues(name, "skipped").Inc()
		return nil
	}

	msg := buildMessage(m.from, to, subject, body)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.deliver(to, msg)
		observability.MailDeliveries.WithLabelValues(name, observability.Result(err)).Inc()
		if err != nil {
			observability.LogAsyncOperationError(context.Background(), "send_mail", err, map[string]interface{}{
				"template": name,
				"to":       to,
			})
			return
		}
		observability.LogAsyncOperationEnd(context.Background(), "send_mail", map[string]interface{}{
			"template": name,
			"to":       to,
		})
	}()
	return nil
}

func (m *Mailer) deliver(to string, msg []byte) error {
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	addr := m.host + ":" + strconv.Itoa(m.port)
	return m.send(addr, auth, envelopeAddress(m.from), []string{to}, msg)
}

// Wait blocks until queued messages are delivered or ctx ends.
func (m *Mailer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

var headerSafe = strings.NewReplacer("\r", " ", "\n", " ")

func buildMessage(from, to, subject, body string) []byte {
	from, to, subject = headerSafe.Replace(from), headerSafe.Replace(to), headerSafe.Replace(subject)
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// envelopeAddress extracts "a@b" from "Name <a@b>".
func envelopeAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return strings.TrimSpace(from)
}
