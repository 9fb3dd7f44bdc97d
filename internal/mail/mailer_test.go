package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"inkwell/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingMailer(t *testing.T, sendErr error) (*Mailer, func() []capturedMail) {
	t.Helper()
	var (
		mu   sync.Mutex
		sent []capturedMail
	)
	cfg := &config.Config{SMTPHost: "smtp.example.com", SMTPPort: 2525, SMTPFrom: "Inkwell <no-reply@inkwell.test>"}
	m := NewMailer(cfg).WithSendFunc(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return sendErr
	})
	return m, func() []capturedMail {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedMail(nil), sent...)
	}
}

func waitFor(t *testing.T, m *Mailer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
}

func TestSendVerification(t *testing.T) {
	m, sent := newCapturingMailer(t, nil)

	err := m.SendVerification(context.Background(), "ada@example.com", VerificationData{
		Name:      "Ada <script>",
		Link:      "https://inkwell.test/api/auth/verify-email?token=abc",
		ExpiresIn: "24 hours",
	})
	require.NoError(t, err)
	waitFor(t, m)

	mails := sent()
	require.Len(t, mails, 1)
	assert.Equal(t, "smtp.example.com:2525", mails[0].addr)
	assert.Equal(t, "no-reply@inkwell.test", mails[0].from)
	assert.Equal(t, []string{"ada@example.com"}, mails[0].to)
	assert.Contains(t, mails[0].msg, "Subject: Verify your Inkwell email\r\n")
	assert.Contains(t, mails[0].msg, "verify-email?token=abc")
	assert.Contains(t, mails[0].msg, "Ada &lt;script&gt;")
}

func TestSendFailureIsNotReturnedToCaller(t *testing.T) {
	m, sent := newCapturingMailer(t, errors.New("connection refused"))

	err := m.SendCommentNotice(context.Background(), "author@example.com", CommentNoticeData{
		Name: "Author", Commenter: "Reader", PostTitle: "Hello", Excerpt: "nice", Link: "https://inkwell.test/posts/1",
	})
	require.NoError(t, err)
	waitFor(t, m)
	assert.Len(t, sent(), 1)
}

func TestDisabledMailerSkipsDelivery(t *testing.T) {
	called := false
	m := NewMailer(&config.Config{}).WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	})

	assert.False(t, m.Enabled())
	require.NoError(t, m.SendVerification(context.Background(), "x@example.com", VerificationData{Link: "l"}))
	waitFor(t, m)
	assert.False(t, called)
}

func TestEnvelopeAddress(t *testing.T) {
	assert.Equal(t, "a@b.c", envelopeAddress("Name <a@b.c>"))
	assert.Equal(t, "a@b.c", envelopeAddress(" a@b.c "))
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(buildMessage("f@x", "t@x", "Hi\r\nBcc: evil@x", "<p>body</p>"))
	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "MIME-Version: 1.0")
	assert.Contains(t, head, "Subject: Hi  Bcc: evil@x\r\n")
	assert.NotContains(t, head, "\r\nBcc:")
	assert.Equal(t, "<p>body</p>", body)
}
