// Package aws builds the SES and SNS clients used for notification delivery.
package aws

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SESService is the subset of the SES client used to send email.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSService is the subset of the SNS client used to send SMS.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Clients holds the delivery clients. A nil field means the channel is
// disabled.
type Clients struct {
	SES SESService
	SNS SNSService
}

// NewClients loads the default AWS credential chain for region and builds
// the clients for the enabled channels only.
func NewClients(ctx context.Context, region string, emailEnabled, smsEnabled bool) (*Clients, error) {
	c := &Clients{}
	if !emailEnabled && !smsEnabled {
		return c, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if emailEnabled {
		c.SES = ses.NewFromConfig(cfg)
	}
	if smsEnabled {
		c.SNS = sns.NewFromConfig(cfg)
	}
	return c, nil
}
