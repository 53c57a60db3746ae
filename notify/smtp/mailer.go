// Package smtp delivers email notifications through an SMTP relay.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/MrEthical07/goSignup/notify"
)

type Config struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Mailer struct {
	cfg  Config
	send sendFunc
}

func NewMailer(cfg Config) *Mailer {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Deliver sends msg as a plain-text email. SMTP 5xx replies are permanent.
func (m *Mailer) Deliver(ctx context.Context, msg notify.Message) error {
	if msg.Channel != notify.ChannelEmail {
		return notify.Permanent(fmt.Errorf("smtp: unsupported channel %q", msg.Channel))
	}
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return notify.Permanent(errors.New("smtp: header injection rejected"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.From, msg.To, msg.Subject, msg.Body)
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	return classify(m.send(addr, auth, m.cfg.From, []string{msg.To}, []byte(body)))
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 500 {
		return notify.Permanent(err)
	}
	return err
}
