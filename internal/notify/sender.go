// internal/notify/sender.go
package notify

import (
	"context"

	awsclients "admissions-workflow/internal/common/aws"
	"admissions-workflow/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Sender delivers notifications of one channel.
type Sender interface {
	Channel() models.NotificationChannel
	Send(ctx context.Context, n models.Notification) error
}

type EmailSender struct {
	api  awsclients.EmailAPI
	from string
}

func NewEmailSender(api awsclients.EmailAPI, from string) *EmailSender {
	return &EmailSender{api: api, from: from}
}

func (s *EmailSender) Channel() models.NotificationChannel { return models.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, n models.Notification) error {
	_, err := s.api.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{n.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(n.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(n.Body)},
			},
		},
		Source: aws.String(s.from),
	})
	return err
}

type SMSSender struct {
	api awsclients.SMSAPI
}

func NewSMSSender(api awsclients.SMSAPI) *SMSSender {
	return &SMSSender{api: api}
}

func (s *SMSSender) Channel() models.NotificationChannel { return models.ChannelSMS }

func (s *SMSSender) Send(ctx context.Context, n models.Notification) error {
	_, err := s.api.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(n.Recipient),
		Message:     aws.String(n.Body),
	})
	return err
}
