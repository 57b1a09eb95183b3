// Package scan orchestrates mailbox passes: one synchronous scanner plus
// two controllers, a continuous poll loop and a cancellable one-shot run.
package scan

import (
	"context"
	"strings"

	"sorter_server/core/port/out"
	"sorter_server/core/service/pipeline"
	"sorter_server/core/service/settings"
	"sorter_server/pkg/logger"
)

// Runner is the scanning contract the controllers drive.
type Runner interface {
	ScanOnce(ctx context.Context, folders []string) (int, error)
	ResolveTargets(ctx context.Context, folders []string) []string
}

// Scanner fetches unseen messages from the target folders and feeds them
// through the message handler one at a time.
type Scanner struct {
	mailbox     out.Mailbox
	handler     *pipeline.Handler
	suggestions out.SuggestionRepository
	processed   out.ProcessedRepository
	settings    *settings.Resolver
	log         *logger.Logger
}

func NewScanner(mailbox out.Mailbox, handler *pipeline.Handler, suggestions out.SuggestionRepository, processed out.ProcessedRepository, resolver *settings.Resolver) *Scanner {
	return &Scanner{
		mailbox:     mailbox,
		handler:     handler,
		suggestions: suggestions,
		processed:   processed,
		settings:    resolver,
		log:         logger.WithField("component", "scanner"),
	}
}

// ScanOnce runs a single pass over the resolved target folders and
// returns the number of handled messages. Per-message failures are
// logged and skipped; cancellation is checked between messages.
func (s *Scanner) ScanOnce(ctx context.Context, folders []string) (int, error) {
	targets := s.ResolveTargets(ctx, folders)

	processedSets, err := s.processed.ByFolders(ctx, targets)
	if err != nil {
		return 0, err
	}
	suggested, err := s.suggestions.KnownUIDs(ctx)
	if err != nil {
		return 0, err
	}
	byFolder, err := s.mailbox.FetchUnseen(ctx, targets, processedSets, suggested)
	if err != nil {
		return 0, err
	}

	count := 0
	for folder, messages := range byFolder {
		for uid, raw := range messages {
			select {
			case <-ctx.Done():
				return count, ctx.Err()
			default:
			}
			if err := s.handler.Handle(ctx, uid, raw, folder); err != nil {
				s.log.WithError(err).WithFields(map[string]any{"uid": uid, "folder": folder}).
					Error("message handling failed")
				continue
			}
			count++
		}
	}
	return count, nil
}

// ResolveTargets picks the folders for a pass: explicit folders win,
// then the configured monitored folders, then the mailbox inbox.
func (s *Scanner) ResolveTargets(ctx context.Context, folders []string) []string {
	if normalized := NormalizeFolders(folders); len(normalized) > 0 {
		return normalized
	}
	if monitored := NormalizeFolders(s.settings.MonitoredFolders(ctx)); len(monitored) > 0 {
		return monitored
	}
	return []string{s.settings.Inbox()}
}

// NormalizeFolders trims and deduplicates a folder list, preserving order.
func NormalizeFolders(folders []string) []string {
	seen := make(map[string]bool, len(folders))
	var normalized []string
	for _, folder := range folders {
		value := strings.TrimSpace(folder)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		normalized = append(normalized, value)
	}
	return normalized
}
