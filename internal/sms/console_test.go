package sms

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/propertyhub-identity/internal/logging"
)

func TestConsoleSenderKeepsBodyOutOfInfoLogs(t *testing.T) {
	var buf bytes.Buffer
	sender := NewConsoleSender(logging.NewLoggerWithWriter(&buf, false))

	require.NoError(t, sender.Send(context.Background(), "+911234567890", "Your code is 042917."))
	require.Contains(t, buf.String(), "sms sent (console)")
	require.NotContains(t, buf.String(), "042917")

	buf.Reset()
	sender = NewConsoleSender(logging.NewLoggerWithWriter(&buf, true))
	require.NoError(t, sender.Send(context.Background(), "+911234567890", "Your code is 042917."))
	require.Contains(t, buf.String(), "042917")
}
