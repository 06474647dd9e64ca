// Package email is the SES-backed channel sender. Structurally analogous to
// the WhatsApp sender: format, transmit, return a normalized result; the
// ledger row is the caller's job.
package email

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/cosimani/rua-api-sub001/internal/common/logger"
)

// SESService is the slice of the SES client the sender uses; tests swap it.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type Sender struct {
	client SESService
	from   string
	logger logger.Logger
}

func NewSender(ctx context.Context, region, from string, log logger.Logger) (*Sender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Sender{
		client: ses.NewFromConfig(cfg),
		from:   from,
		logger: log.WithFields(map[string]interface{}{"canal": "email"}),
	}, nil
}

// NewSenderWithClient injects a prebuilt SES client (tests).
func NewSenderWithClient(client SESService, from string, log logger.Logger) *Sender {
	return &Sender{client: client, from: from, logger: log}
}

// Send delivers one plain-text email and returns the provider message ID.
func (s *Sender) Send(ctx context.Context, to, subject, body string) (string, error) {
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: awssdk.String(body)},
			},
		},
		Source: awssdk.String(s.from),
	})
	if err != nil {
		return "", err
	}

	messageID := ""
	if out != nil && out.MessageId != nil {
		messageID = *out.MessageId
	}
	return messageID, nil
}

// From returns the configured sender address, recorded in the ledger.
func (s *Sender) From() string {
	return s.from
}
