package email

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/redmonkez12/propertyhub-identity/internal/logging"
)

// Message is one outgoing email
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers a message or reports why it could not
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Service renders the account emails and hands them to a Sender
type Service struct {
	sender        Sender
	baseURL       string
	emailTokenTTL time.Duration
	resetTokenTTL time.Duration
}

func NewService(sender Sender, baseURL string, emailTokenTTL, resetTokenTTL time.Duration) *Service {
	return &Service{
		sender:        sender,
		baseURL:       baseURL,
		emailTokenTTL: emailTokenTTL,
		resetTokenTTL: resetTokenTTL,
	}
}

// SendVerificationEmail sends an email verification link to the user
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	data := layoutData{
		Header:      "Welcome to PropertyHub!",
		Heading:     "Verify your email address",
		Greeting:    greeting(name),
		Intro:       "Thank you for signing up! Please click the button below to verify your email address.",
		ActionLabel: "Verify Email Address",
		Link:        s.VerificationLink(token),
		Disclaimer:  "If you didn't create an account, you can safely ignore this email.",
		ExpiryNote:  expiryNote(s.emailTokenTTL),
	}

	if err := s.send(ctx, toEmail, "Verify your email address", data); err != nil {
		logger.Error("failed to send verification email", "email", toEmail, "error", err)
		return err
	}

	logger.Info("verification email sent", "email", toEmail)
	return nil
}

// SendPasswordResetEmail sends a password reset link to the user
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	data := layoutData{
		Header:      "Password Reset Request",
		Heading:     "Reset your password",
		Intro:       "You requested to reset your password. Click the button below to create a new password.",
		ActionLabel: "Reset Password",
		Link:        s.ResetLink(token),
		Disclaimer:  "If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.",
		ExpiryNote:  expiryNote(s.resetTokenTTL),
	}

	if err := s.send(ctx, toEmail, "Reset your password", data); err != nil {
		logger.Error("failed to send password reset email", "email", toEmail, "error", err)
		return err
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}

// VerificationLink is the URL that consumes an email verification token
func (s *Service) VerificationLink(token string) string {
	return fmt.Sprintf("%s/verify-email/%s", s.baseURL, url.PathEscape(token))
}

// ResetLink is the page where a reset token is exchanged for a new password
func (s *Service) ResetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, url.QueryEscape(token))
}

func (s *Service) send(ctx context.Context, to, subject string, data layoutData) error {
	html, err := render(data)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	msg := Message{
		To:       to,
		Subject:  subject,
		HTMLBody: html,
		TextBody: plainText(data),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func greeting(name string) string {
	if name == "" {
		return ""
	}
	return "Hi " + name + ","
}

func expiryNote(ttl time.Duration) string {
	if ttl <= 0 {
		return ""
	}
	if ttl%time.Hour == 0 {
		hours := int(ttl / time.Hour)
		if hours == 1 {
			return "This link will expire in 1 hour."
		}
		return fmt.Sprintf("This link will expire in %d hours.", hours)
	}
	return fmt.Sprintf("This link will expire in %d minutes.", int(ttl/time.Minute))
}
