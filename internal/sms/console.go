package sms

import (
	"context"

	"github.com/redmonkez12/propertyhub-identity/internal/logging"
)

// ConsoleSender logs messages instead of sending them. Development only.
type ConsoleSender struct {
	logger *logging.Logger
}

func NewConsoleSender(logger *logging.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (c *ConsoleSender) Send(_ context.Context, phone, body string) error {
	c.logger.Info("sms sent (console)", "phone", phone)
	c.logger.Debug("sms body", "body", body)
	return nil
}
