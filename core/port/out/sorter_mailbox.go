// Package out defines the outbound ports the core depends on.
package out

import (
	"context"

	"sorter_server/core/domain"
)

// Mailbox is the mail-protocol collaborator. Implementations connect per
// operation; the core never manages the underlying session.
type Mailbox interface {
	// FetchUnseen returns the raw payload of unseen messages per folder,
	// skipping UIDs present in the processed (per-folder) or suggested
	// (global) sets and messages carrying the protected or processed flag.
	FetchUnseen(ctx context.Context, folders []string, processed map[string]map[string]bool, suggested map[string]bool) (map[string]map[string][]byte, error)

	// MoveMessage moves one message to the target folder.
	MoveMessage(ctx context.Context, uid, target, sourceFolder string) error

	// AddTag adds a keyword flag to one message.
	AddTag(ctx context.Context, uid, folder, tag string) error

	// EnsureFolderPath creates the folder (including parents) if missing and
	// returns the canonical /-joined path.
	EnsureFolderPath(ctx context.Context, path string) (string, error)

	// ListFolders returns all folder names known to the mailbox.
	ListFolders(ctx context.Context) ([]string, error)
}

// MessageParser turns a raw mailbox payload into a MailMessage.
type MessageParser interface {
	Parse(raw []byte) (*domain.MailMessage, error)
}
