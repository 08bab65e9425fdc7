package email

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (net.Listener, string, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return ln, host, port
}

// serveSMTP answers a single plain SMTP session and sends the DATA payload on received
func serveSMTP(ln net.Listener, received chan<- string) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	reply("220 relay.test ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250-relay.test")
			reply("250 HELP")
		case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
			reply("250 OK")
		case cmd == "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(l)
			}
			received <- data.String()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func TestSMTPSenderDelivers(t *testing.T) {
	ln, host, port := listen(t)
	received := make(chan string, 1)
	go serveSMTP(ln, received)

	sender := NewSMTPSender(host, port, "", "", "noreply@homes.example.com")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sender.Send(ctx, Message{
		To:       "a@x.com",
		Subject:  "Verify your email",
		TextBody: "hello",
		HTMLBody: "<p>hello</p>",
	})
	require.NoError(t, err)

	select {
	case data := <-received:
		require.Contains(t, data, "To: a@x.com")
		require.Contains(t, data, "Subject: Verify your email")
		require.Contains(t, data, "<p>hello</p>")
	case <-time.After(5 * time.Second):
		t.Fatal("relay never received the message")
	}
}

func TestSMTPSenderHonoursContextDeadline(t *testing.T) {
	ln, host, port := listen(t)

	// Accept and never greet
	held := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			held <- conn
		}
	}()
	t.Cleanup(func() {
		select {
		case conn := <-held:
			conn.Close()
		default:
		}
	})

	sender := NewSMTPSender(host, port, "", "", "noreply@homes.example.com")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sender.Send(ctx, Message{To: "a@x.com", Subject: "s", TextBody: "b"})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(3 * time.Second):
		t.Fatal("Send kept blocking past the context deadline")
	}
}

func TestSMTPSenderHonoursCancellation(t *testing.T) {
	ln, host, port := listen(t)
	held := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			held <- conn
		}
	}()
	t.Cleanup(func() {
		select {
		case conn := <-held:
			conn.Close()
		default:
		}
	})

	sender := NewSMTPSender(host, port, "", "", "noreply@homes.example.com")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- sender.Send(ctx, Message{To: "a@x.com", Subject: "s", TextBody: "b"})
	}()
	time.AfterFunc(100*time.Millisecond, cancel)

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Send kept blocking after cancellation")
	}
}
