package notify

import (
	"context"
	"errors"
	"fmt"
)

// ErrPermanent marks a delivery failure that no retry can fix.
var ErrPermanent = errors.New("notify: permanent delivery failure")

// ErrNoRoute is returned by Multi when no deliverer handles the channel.
var ErrNoRoute = errors.New("notify: no deliverer for channel")

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one outbound notification.
type Message struct {
	Channel Channel
	To      string
	Subject string
	Body    string
}

type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, msg Message) error

func (f DelivererFunc) Deliver(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Permanent wraps err so that IsPermanent reports true.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Multi routes each message to the deliverer registered for its channel.
type Multi map[Channel]Deliverer

func (m Multi) Deliver(ctx context.Context, msg Message) error {
	d, ok := m[msg.Channel]
	if !ok || d == nil {
		return Permanent(fmt.Errorf("%w: %s", ErrNoRoute, msg.Channel))
	}
	return d.Deliver(ctx, msg)
}
