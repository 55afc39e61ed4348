package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"
)

type stubDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *stubDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func testMessage() Message {
	return Message{
		Subject:    "C3S: invoice",
		Sender:     "noreply@example.org",
		Recipients: []string{"member@example.org"},
		Body:       "Hello",
	}
}

func TestSMTPMailer_Send(t *testing.T) {
	d := &stubDialer{}
	m := &SMTPMailer{dialer: d}

	require.NoError(t, m.Send(context.Background(), testMessage()))
	require.Len(t, d.sent, 1)

	assert.Equal(t, []string{"C3S: invoice"}, d.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"member@example.org"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"noreply@example.org"}, d.sent[0].GetHeader("From"))
}

func TestSMTPMailer_SendError(t *testing.T) {
	relayErr := errors.New("relay unavailable")
	m := &SMTPMailer{dialer: &stubDialer{err: relayErr}}

	err := m.Send(context.Background(), testMessage())
	require.ErrorIs(t, err, relayErr)
}

func TestSMTPMailer_NoRecipients(t *testing.T) {
	d := &stubDialer{}
	m := &SMTPMailer{dialer: d}

	msg := testMessage()
	msg.Recipients = nil

	require.ErrorIs(t, m.Send(context.Background(), msg), ErrNoRecipients)
	assert.Empty(t, d.sent)
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	d := &stubDialer{}
	m := &SMTPMailer{dialer: d}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, m.Send(ctx, testMessage()), context.Canceled)
	assert.Empty(t, d.sent)
}

func TestConsoleMailer_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewConsoleMailer(zap.New(core))

	require.NoError(t, m.Send(context.Background(), testMessage()))

	entries := logs.FilterMessage("email to console").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello", entries[0].ContextMap()["body"])
}
