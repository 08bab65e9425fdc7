package email

import (
	"context"

	"github.com/redmonkez12/propertyhub-identity/internal/logging"
)

// ConsoleSender logs emails instead of sending them. Development only.
type ConsoleSender struct {
	logger *logging.Logger
}

func NewConsoleSender(logger *logging.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (c *ConsoleSender) Send(_ context.Context, msg Message) error {
	c.logger.Info("email sent (console)", "to", msg.To, "subject", msg.Subject)
	c.logger.Debug("email text body", "body", msg.TextBody)
	return nil
}
