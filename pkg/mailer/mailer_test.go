package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithoutHostLogsOnly(t *testing.T) {
	s := New(Config{}, zap.NewNop())
	_, ok := s.(*LogSender)
	require.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@example.com"}))
}

func TestSMTPSendComposesMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s := &SMTP{
		cfg: Config{Host: "smtp.example.com", Port: 587, FromAddress: "noreply@example.com", FromName: "Harbor Academy"},
		send: func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	err := s.Send(context.Background(), Message{To: "ana@example.com", Subject: "Your ticket\r\nBcc: x", Body: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)

	raw := string(gotMsg)
	assert.Contains(t, raw, "From: Harbor Academy <noreply@example.com>\r\n")
	assert.Contains(t, raw, "Subject: Your ticket  Bcc: x\r\n")
	assert.True(t, strings.HasSuffix(raw, "line1\r\nline2"))
}

func TestSMTPSendErrors(t *testing.T) {
	s := &SMTP{
		cfg:  Config{Host: "smtp.example.com", Port: 25},
		send: func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 try later") },
	}
	assert.Error(t, s.Send(context.Background(), Message{To: "a@example.com"}))
	assert.Error(t, s.Send(context.Background(), Message{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}

func TestComposeDateHeader(t *testing.T) {
	s := &SMTP{cfg: Config{FromAddress: "noreply@example.com"}}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := string(s.compose(Message{To: "a@example.com"}, now))
	assert.Contains(t, raw, "From: noreply@example.com\r\n")
	assert.Contains(t, raw, "Date: "+now.Format(time.RFC1123Z))
}
