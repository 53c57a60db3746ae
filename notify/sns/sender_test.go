package sns

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSignup/notify"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestSenderPublishesSMS(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return *in.PhoneNumber == "+15551234567" && *in.Message == "code 123456"
	})).Return(&sns.PublishOutput{}, nil)

	err := NewSender(pub).Deliver(context.Background(), notify.Message{
		Channel: notify.ChannelSMS,
		To:      "+15551234567",
		Body:    "code 123456",
	})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestSenderClassifiesErrors(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, &types.InvalidParameterException{}).Once()
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()

	s := NewSender(pub)
	msg := notify.Message{Channel: notify.ChannelSMS, To: "+1", Body: "x"}

	assert.True(t, notify.IsPermanent(s.Deliver(context.Background(), msg)))

	err := s.Deliver(context.Background(), msg)
	require.Error(t, err)
	assert.False(t, notify.IsPermanent(err))
}

func TestSenderRejectsEmail(t *testing.T) {
	pub := new(mockPublisher)
	err := NewSender(pub).Deliver(context.Background(), notify.Message{Channel: notify.ChannelEmail})
	assert.True(t, notify.IsPermanent(err))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
