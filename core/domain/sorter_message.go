package domain

import "time"

// MailMessage is the parsed view of one raw mailbox message.
type MailMessage struct {
	UID        string
	Folder     string
	Subject    string
	From       string
	Body       string
	Date       string
	MessageID  string
	InReplyTo  string
	References string
	ReceivedAt *time.Time
}

// IsReply reports whether the message belongs to an existing thread.
func (m *MailMessage) IsReply() bool {
	return m.InReplyTo != ""
}
