package notify

import (
	"context"
	"testing"

	"admissions-workflow/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct{ input *ses.SendEmailInput }

func (f *fakeSES) SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = input
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeSNS struct{ input *sns.PublishInput }

func (f *fakeSNS) Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = input
	return &sns.PublishOutput{MessageId: aws.String("msg-2")}, nil
}

func TestEmailSender(t *testing.T) {
	api := &fakeSES{}
	sender := NewEmailSender(api, "admissions@example.org")

	err := sender.Send(context.Background(), models.Notification{
		Recipient: "ada@example.com",
		Subject:   "Application approved",
		Body:      "Congratulations",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ChannelEmail, sender.Channel())
	assert.Equal(t, "admissions@example.org", aws.ToString(api.input.Source))
	assert.Equal(t, []string{"ada@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "Application approved", aws.ToString(api.input.Message.Subject.Data))
	assert.Equal(t, "Congratulations", aws.ToString(api.input.Message.Body.Text.Data))
}

func TestSMSSender(t *testing.T) {
	api := &fakeSNS{}
	sender := NewSMSSender(api)

	require.NoError(t, sender.Send(context.Background(), models.Notification{Recipient: "+13175550100", Body: "Approved"}))
	assert.Equal(t, models.ChannelSMS, sender.Channel())
	assert.Equal(t, "+13175550100", aws.ToString(api.input.PhoneNumber))
	assert.Equal(t, "Approved", aws.ToString(api.input.Message))
}
