package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"codebrew/internal/review"
)

type stubSender struct {
	sent []*mail.Msg
	err  error
}

func (s *stubSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	s.sent = append(s.sent, messages...)
	return s.err
}

func newTestMailer(stub *stubSender) *Mailer {
	m := NewMailer(Config{Username: "bot@example.com", Password: "secret"})
	m.dialer = func(Config) (sender, error) { return stub, nil }
	return m
}

func TestMailer_Send(t *testing.T) {
	stub := &stubSender{}
	m := newTestMailer(stub)

	status, err := m.Send(context.Background(), Message{To: "dev@example.com", Subject: "Hello", Body: "plain body"})
	require.NoError(t, err)
	assert.Equal(t, "success", status.Status)

	require.Len(t, stub.sent, 1)
	msg := stub.sent[0]

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"<dev@example.com>"}, rcpts)
	assert.Equal(t, []string{"Hello"}, msg.GetGenHeader(mail.HeaderSubject))

	parts := msg.GetParts()
	require.Len(t, parts, 1)
	assert.Equal(t, mail.TypeTextPlain, parts[0].GetContentType())
	body, err := parts[0].GetContent()
	require.NoError(t, err)
	assert.Equal(t, "plain body", string(body))
}

func TestMailer_Defaults(t *testing.T) {
	m := NewMailer(Config{Username: "bot@example.com"})
	assert.Equal(t, "smtp.gmail.com", m.cfg.Host)
	assert.Equal(t, 587, m.cfg.Port)
	assert.Equal(t, "bot@example.com", m.cfg.From)
}

func TestMailer_Failures(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		m := NewMailer(Config{})
		status, err := m.Send(context.Background(), Message{To: "dev@example.com"})
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.Equal(t, "error", status.Status)
		assert.Equal(t, ErrNotConfigured.Error(), status.Message)
	})

	t.Run("bad recipient", func(t *testing.T) {
		m := newTestMailer(&stubSender{})
		_, err := m.Send(context.Background(), Message{To: "not an address"})
		assert.Error(t, err)
	})

	t.Run("smtp error", func(t *testing.T) {
		m := newTestMailer(&stubSender{err: errors.New("535 authentication failed")})
		status, err := m.Send(context.Background(), Message{To: "dev@example.com", Subject: "s", Body: "b"})
		require.Error(t, err)
		assert.Contains(t, status.Message, "535")
	})
}

func TestSuggestionMessage(t *testing.T) {
	s := review.Suggestion{
		Issue:         "Quadratic <loop>",
		OldCode:       "for a in x:\n    for b in x:",
		NewCode:       "seen = set()",
		Benefit:       review.Benefit{Summary: "O(n)"},
		CommitMessage: "Use set lookup",
		FilePath:      "lib/dupes.py",
	}

	msg := SuggestionMessage("dev@example.com", s, "https://github.com/acme/tools/pull/7")
	assert.True(t, msg.IsHTML)
	assert.Equal(t, "Code suggestion: Use set lookup", msg.Subject)
	assert.Contains(t, msg.Body, "Quadratic &lt;loop&gt;")
	assert.Contains(t, msg.Body, "lib/dupes.py")
	assert.Contains(t, msg.Body, "https://github.com/acme/tools/pull/7")
}
