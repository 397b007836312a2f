package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	msgs []Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) (string, error) {
	s.msgs = append(s.msgs, msg)
	if s.err != nil {
		return "", s.err
	}
	return "msg_1", nil
}

func TestWelcomeMailer_Render(t *testing.T) {
	m := NewWelcomeMailer(&recordingSender{}, MailerConfig{PortalURL: "https://portal.example.com/login"})

	subject, html, err := m.Render(Welcome{
		Email:        "owner@example.com",
		Name:         "Acme HVAC",
		TempPassword: "Abc23xyz9Qrs",
		TierName:     "Executive Partner",
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome to SignalCore Executive Partner! Your login credentials", subject)
	assert.Contains(t, html, "owner@example.com")
	assert.Contains(t, html, "Abc23xyz9Qrs")
	assert.Contains(t, html, "Your Executive Partner subscription is now active")
	assert.Contains(t, html, `href="https://portal.example.com/login"`)
	assert.Contains(t, html, "support@signalcoredata.com")
}

func TestWelcomeMailer_DefaultTierName(t *testing.T) {
	m := NewWelcomeMailer(&recordingSender{}, MailerConfig{})

	subject, _, err := m.Render(Welcome{Email: "a@b.com", TempPassword: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome to SignalCore The Feed! Your login credentials", subject)
}

func TestWelcomeMailer_EscapesHTML(t *testing.T) {
	m := NewWelcomeMailer(&recordingSender{}, MailerConfig{})

	_, html, err := m.Render(Welcome{Email: "<script>@b.com", TempPassword: "x", TierName: "Feed"})
	require.NoError(t, err)
	assert.False(t, strings.Contains(html, "<script>"))
}

func TestWelcomeMailer_SendWelcome(t *testing.T) {
	sender := &recordingSender{}
	m := NewWelcomeMailer(sender, MailerConfig{From: "Team <team@example.com>"})

	err := m.SendWelcome(context.Background(), Welcome{Email: "a@b.com", TempPassword: "pw", TierName: "Priority Intel"})
	require.NoError(t, err)

	require.Len(t, sender.msgs, 1)
	assert.Equal(t, "Team <team@example.com>", sender.msgs[0].From)
	assert.Equal(t, []string{"a@b.com"}, sender.msgs[0].To)
	assert.Contains(t, sender.msgs[0].Subject, "Priority Intel")
}

func TestWelcomeMailer_SendError(t *testing.T) {
	sender := &recordingSender{err: errors.New("boom")}
	m := NewWelcomeMailer(sender, MailerConfig{})

	err := m.SendWelcome(context.Background(), Welcome{Email: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a@b.com")
}
