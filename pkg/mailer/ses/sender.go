package ses

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

// IdempotencyTag is the message tag carrying mailer.Email.IdempotencyKey.
// SES does not deduplicate on it: a repeated Send after a lost response
// delivers a second copy. The tag only lets event consumers correlate them.
const IdempotencyTag = "idempotency_key"

const charset = "UTF-8"

// API is the subset of the SES v2 client used by Sender.
type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Sender implements mailer.Sender on top of SES v2.
type Sender struct {
	api    API
	config Config
}

// New loads AWS configuration and creates the sender.
func New(ctx context.Context, cfg Config) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}

	return NewWithAPI(sesv2.NewFromConfig(awsCfg), cfg), nil
}

// NewWithAPI creates a sender over an existing client.
func NewWithAPI(api API, cfg Config) *Sender {
	return &Sender{api: api, config: cfg}
}

// Send implements mailer.Sender.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) (*mailer.Result, error) {
	if err := email.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", mailer.ErrRejected, err)
	}

	body := &types.Body{Html: &types.Content{Data: aws.String(email.HTML), Charset: aws.String(charset)}}
	if email.Text != "" {
		body.Text = &types.Content{Data: aws.String(email.Text), Charset: aws.String(charset)}
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(email.From),
		Destination:      &types.Destination{ToAddresses: []string{email.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String(charset)},
				Body:    body,
				Headers: messageHeaders(email.Headers),
			},
		},
		EmailTags: messageTags(email),
	}
	if email.ReplyTo != "" {
		in.ReplyToAddresses = []string{email.ReplyTo}
	}
	if s.config.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(s.config.ConfigurationSet)
	}

	out, err := s.api.SendEmail(ctx, in)
	if err != nil {
		return nil, classify(err)
	}

	return &mailer.Result{ProviderID: aws.ToString(out.MessageId)}, nil
}

// classify separates permanent rejections from failures worth retrying.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "MessageRejected",
			"MailFromDomainNotVerifiedException",
			"AccountSuspendedException",
			"SendingPausedException",
			"BadRequestException",
			"NotFoundException":
			return fmt.Errorf("%w: ses: %w", mailer.ErrRejected, err)
		}
	}
	return fmt.Errorf("%w: ses: %w", mailer.ErrSendFailed, err)
}

func messageTags(email *mailer.Email) []types.MessageTag {
	tags := make([]types.MessageTag, 0, len(email.Tags)+1)
	for _, name := range slices.Sorted(maps.Keys(email.Tags)) {
		tags = append(tags, types.MessageTag{Name: aws.String(name), Value: aws.String(email.Tags[name])})
	}
	if email.IdempotencyKey != "" {
		tags = append(tags, types.MessageTag{Name: aws.String(IdempotencyTag), Value: aws.String(email.IdempotencyKey)})
	}
	return tags
}

func messageHeaders(headers map[string]string) []types.MessageHeader {
	if len(headers) == 0 {
		return nil
	}
	out := make([]types.MessageHeader, 0, len(headers))
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		out = append(out, types.MessageHeader{Name: aws.String(name), Value: aws.String(headers[name])})
	}
	return out
}
