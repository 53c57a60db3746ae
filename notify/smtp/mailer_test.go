package smtp

import (
	"context"
	"errors"
	"net/smtp"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSignup/notify"
)

func TestMailerDeliverBuildsMessage(t *testing.T) {
	m := NewMailer(Config{Host: "mail.local", From: "noreply@example.com", Username: "u", Password: "p"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	err := m.Deliver(context.Background(), notify.Message{
		Channel: notify.ChannelEmail,
		To:      "a@b.com",
		Subject: "Hello",
		Body:    "code 123456",
	})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, []string{"a@b.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Hello\r\n")
	assert.Contains(t, gotMsg, "\r\n\r\ncode 123456")
}

func TestMailerClassifiesErrors(t *testing.T) {
	m := NewMailer(Config{Host: "mail.local"})

	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return &textproto.Error{Code: 550, Msg: "no such user"}
	}
	err := m.Deliver(context.Background(), notify.Message{Channel: notify.ChannelEmail, To: "a@b.com"})
	assert.True(t, notify.IsPermanent(err))

	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return &textproto.Error{Code: 421, Msg: "try later"}
	}
	err = m.Deliver(context.Background(), notify.Message{Channel: notify.ChannelEmail, To: "a@b.com"})
	require.Error(t, err)
	assert.False(t, notify.IsPermanent(err))

	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("dial tcp: connection refused")
	}
	err = m.Deliver(context.Background(), notify.Message{Channel: notify.ChannelEmail, To: "a@b.com"})
	assert.False(t, notify.IsPermanent(err))
}

func TestMailerRejectsBadInput(t *testing.T) {
	m := NewMailer(Config{Host: "mail.local"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	err := m.Deliver(context.Background(), notify.Message{Channel: notify.ChannelSMS, To: "+1555"})
	assert.True(t, notify.IsPermanent(err))

	err = m.Deliver(context.Background(), notify.Message{Channel: notify.ChannelEmail, To: "a@b.com\r\nBcc: x@y.com"})
	assert.True(t, notify.IsPermanent(err))
}
