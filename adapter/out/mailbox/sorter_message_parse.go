package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"

	_ "github.com/emersion/go-message/charset"

	"sorter_server/core/domain"
	"sorter_server/core/port/out"
)

const maxBodyChars = 16000

// Parser builds a MailMessage out of the raw RFC 5322 payload an IMAP
// fetch returned. It prefers the first text/plain part and falls back to
// stripped text/html.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

var _ out.MessageParser = (*Parser)(nil)

func (p *Parser) Parse(raw []byte) (*domain.MailMessage, error) {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	defer reader.Close()

	msg := &domain.MailMessage{Date: reader.Header.Get("Date")}
	if subject, err := reader.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	} else {
		msg.Subject = strings.TrimSpace(reader.Header.Get("Subject"))
	}
	msg.From = senderOf(reader.Header)
	if id, err := reader.Header.MessageID(); err == nil {
		msg.MessageID = id
	}
	if ids, err := reader.Header.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		msg.InReplyTo = ids[0]
	}
	if refs, err := reader.Header.MsgIDList("References"); err == nil {
		msg.References = strings.Join(refs, " ")
	}
	if date, err := reader.Header.Date(); err == nil && !date.IsZero() {
		received := date.UTC()
		msg.ReceivedAt = &received
	}

	msg.Body = extractBody(reader)
	return msg, nil
}

func senderOf(header mail.Header) string {
	addrs, err := header.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return strings.TrimSpace(header.Get("From"))
	}
	addr := addrs[0]
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s>", addr.Name, addr.Address)
	}
	return addr.Address
}

func extractBody(reader *mail.Reader) string {
	var html string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The headers may still be usable even if a part is broken.
			break
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			if text := readPart(part.Body); text != "" {
				return text
			}
		case "text/html":
			if html == "" {
				html = readPart(part.Body)
			}
		}
	}
	return stripHTML(html)
}

func readPart(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4*maxBodyChars))
	if err != nil && len(data) == 0 {
		return ""
	}
	return truncateBody(strings.TrimSpace(string(data)))
}

var (
	htmlBlockPattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
)

// stripHTML is a crude fallback for HTML-only messages. The classifier
// only needs readable text, not faithful rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := htmlBlockPattern.ReplaceAllString(html, " ")
	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n")
	text = htmlTagPattern.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return truncateBody(strings.Join(lines, "\n"))
}

func truncateBody(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBodyChars {
		return text
	}
	return string(runes[:maxBodyChars])
}
