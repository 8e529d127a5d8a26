package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
)

// SNS subjects are limited to 100 printable ASCII characters.
const maxSubject = 100

type SNSConfig struct {
	Region    string `mapstructure:"region"`
	TopicArn  string `mapstructure:"topic_arn"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

func (c SNSConfig) Enabled() bool {
	return c.TopicArn != ""
}

// SNS publishes failure mail through an SNS topic; operators subscribe their
// addresses to the topic with the email protocol.
type SNS struct {
	TopicArn string
	SVC      snsiface.SNSAPI
}

// NewSNS returns nil, nil when no topic is configured. Static credentials are
// used when both keys are set, otherwise the SDK's default chain applies.
func NewSNS(cfg SNSConfig) (*SNS, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("sns session: %w", err)
	}
	return &SNS{TopicArn: cfg.TopicArn, SVC: sns.New(sess)}, nil
}

func (s *SNS) Send(ctx context.Context, title, text string) error {
	if s == nil || s.SVC == nil || s.TopicArn == "" {
		return ErrDisabled
	}
	_, err := s.SVC.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.TopicArn),
		Subject:  aws.String(subject(title)),
		Message:  aws.String(text),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// subject replaces everything outside printable ASCII with '?' and
// truncates to maxSubject.
func subject(title string) string {
	b := make([]byte, 0, min(len(title), maxSubject))
	for _, r := range title {
		if len(b) == maxSubject {
			break
		}
		if r < 0x20 || r > 0x7e {
			r = '?'
		}
		b = append(b, byte(r))
	}
	return string(b)
}
