// Package sns delivers SMS notifications through AWS SNS.
package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/MrEthical07/goSignup/internal/awsconf"
	"github.com/MrEthical07/goSignup/notify"
)

// Publisher is the part of *sns.Client the sender needs.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Sender struct {
	client Publisher
}

func NewSender(client Publisher) *Sender {
	return &Sender{client: client}
}

// NewFromOptions builds a Sender with an SNS client from the AWS default
// configuration chain.
func NewFromOptions(ctx context.Context, opts awsconf.Options) (*Sender, error) {
	awsCfg, err := awsconf.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint := opts.EndpointOrNil(); endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
	return NewSender(client), nil
}

// Deliver publishes msg.Body as an SMS to msg.To. Rejected numbers and
// parameters are permanent.
func (s *Sender) Deliver(ctx context.Context, msg notify.Message) error {
	if msg.Channel != notify.ChannelSMS {
		return notify.Permanent(fmt.Errorf("sns: unsupported channel %q", msg.Channel))
	}

	to, body := msg.To, msg.Body
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &to,
		Message:     &body,
	})
	if err == nil {
		return nil
	}

	var (
		invalidParam      *types.InvalidParameterException
		invalidParamValue *types.InvalidParameterValueException
		optedOut          *types.AuthorizationErrorException
	)
	if errors.As(err, &invalidParam) || errors.As(err, &invalidParamValue) || errors.As(err, &optedOut) {
		return notify.Permanent(err)
	}
	return err
}
