package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/redmonkez12/propertyhub-identity/internal/logging"
)

// Sender delivers a text message to a phone number
type Sender interface {
	Send(ctx context.Context, phone, body string) error
}

// Service formats one-time code messages and hands them to a Sender
type Service struct {
	sender Sender
	otpTTL time.Duration
}

func NewService(sender Sender, otpTTL time.Duration) *Service {
	return &Service{sender: sender, otpTTL: otpTTL}
}

// SendOTP texts a verification code to phone
func (s *Service) SendOTP(ctx context.Context, phone, code string) error {
	logger := logging.GetLoggerFromContext(ctx)

	body := fmt.Sprintf("Your PropertyHub verification code is %s.", code)
	if s.otpTTL > 0 {
		body += fmt.Sprintf(" It expires in %d minutes.", int(s.otpTTL.Minutes()))
	}

	if err := s.sender.Send(ctx, phone, body); err != nil {
		logger.Error("failed to send verification sms", "error", err)
		return fmt.Errorf("send sms: %w", err)
	}

	logger.Info("verification sms sent")
	return nil
}
