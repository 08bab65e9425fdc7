package sms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	phone, body string
	err         error
}

func (r *recordingSender) Send(_ context.Context, phone, body string) error {
	r.phone, r.body = phone, body
	return r.err
}

func TestSendOTP(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, 10*time.Minute)

	require.NoError(t, svc.SendOTP(context.Background(), "+911234567890", "042917"))
	require.Equal(t, "+911234567890", sender.phone)
	require.Equal(t, "Your PropertyHub verification code is 042917. It expires in 10 minutes.", sender.body)
}

func TestSendOTPWithoutExpiry(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, 0)

	require.NoError(t, svc.SendOTP(context.Background(), "+911234567890", "042917"))
	require.Equal(t, "Your PropertyHub verification code is 042917.", sender.body)
}

func TestSendOTPFailure(t *testing.T) {
	svc := NewService(&recordingSender{err: errors.New("throttled")}, 0)
	require.ErrorContains(t, svc.SendOTP(context.Background(), "+911234567890", "1"), "throttled")
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestSNSSenderPublishesTransactional(t *testing.T) {
	client := &fakeSNS{}
	sender := NewSNSSender(client, "PROPHUB")

	require.NoError(t, sender.Send(context.Background(), "+911234567890", "hello"))
	require.Equal(t, "+911234567890", aws.ToString(client.input.PhoneNumber))
	require.Equal(t, "hello", aws.ToString(client.input.Message))
	require.Equal(t, "Transactional", aws.ToString(client.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
	require.Equal(t, "PROPHUB", aws.ToString(client.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}
