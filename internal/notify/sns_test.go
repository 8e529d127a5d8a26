package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	snsiface.SNSAPI
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) PublishWithContext(_ aws.Context, in *sns.PublishInput, _ ...request.Option) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestSNS_Publishes(t *testing.T) {
	fake := &fakeSNS{}
	s := &SNS{TopicArn: "arn:aws:sns:eu-west-1:123:keepalive", SVC: fake}

	require.NoError(t, s.Send(context.Background(), "keep-alive failed: org/app", "status code: 503"))
	require.Len(t, fake.inputs, 1)
	require.Equal(t, "arn:aws:sns:eu-west-1:123:keepalive", aws.StringValue(fake.inputs[0].TopicArn))
	require.Equal(t, "keep-alive failed: org/app", aws.StringValue(fake.inputs[0].Subject))
	require.Contains(t, aws.StringValue(fake.inputs[0].Message), "503")
}

func TestSNS_TruncatesSubjectAndWrapsErrors(t *testing.T) {
	fake := &fakeSNS{err: errors.New("throttled")}
	s := &SNS{TopicArn: "arn", SVC: fake}

	err := s.Send(context.Background(), strings.Repeat("x", 150), "body")
	require.ErrorContains(t, err, "throttled")
	require.Len(t, aws.StringValue(fake.inputs[0].Subject), maxSubject)
}

func TestSNS_SubjectIsPrintableASCII(t *testing.T) {
	fake := &fakeSNS{}
	s := &SNS{TopicArn: "arn", SVC: fake}

	require.NoError(t, s.Send(context.Background(), "keep-alive failed: café/äpp\tx", "body"))
	require.Equal(t, "keep-alive failed: caf?/?pp?x", aws.StringValue(fake.inputs[0].Subject))

	require.NoError(t, s.Send(context.Background(), strings.Repeat("é", 150), "body"))
	require.Equal(t, strings.Repeat("?", maxSubject), aws.StringValue(fake.inputs[1].Subject))
}

func TestNewSNS_DisabledWithoutTopic(t *testing.T) {
	s, err := NewSNS(SNSConfig{Region: "eu-west-1"})
	require.NoError(t, err)
	require.Nil(t, s)

	var nilSNS *SNS
	require.ErrorIs(t, nilSNS.Send(context.Background(), "t", "x"), ErrDisabled)
}
