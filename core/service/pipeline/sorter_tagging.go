// Package pipeline runs the per-message flow: keyword filtering, embedding
// ranking, LLM classification and the resulting move/tag/persist actions.
package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"

	"sorter_server/core/port/out"
	"sorter_server/core/service/catalog"
	"sorter_server/core/service/settings"
	"sorter_server/pkg/logger"
)

// tagSanitizePattern strips everything IMAP keywords cannot carry.
var tagSanitizePattern = regexp.MustCompile(`[^0-9A-Za-z._+/:-]+`)

// maxTagLen caps a single formatted tag.
const maxTagLen = 48

// Tagger applies AI and processed tags consistently.
type Tagger struct {
	mailbox  out.Mailbox
	settings *settings.Resolver
	catalog  *catalog.Store
	log      *logger.Logger
}

func NewTagger(mailbox out.Mailbox, resolver *settings.Resolver, store *catalog.Store) *Tagger {
	return &Tagger{
		mailbox:  mailbox,
		settings: resolver,
		catalog:  store,
		log:      logger.WithField("component", "tagger"),
	}
}

// FormatAITag normalizes a label into a mailbox keyword: whitespace
// collapsed to hyphens, illegal characters stripped, length capped, and
// the AI namespace prefix prepended. Empty results return "".
func FormatAITag(label, prefix string) string {
	cleaned := strings.TrimSpace(label)
	if cleaned == "" {
		return ""
	}
	normalized := strings.Join(strings.Fields(cleaned), "-")
	normalized = tagSanitizePattern.ReplaceAllString(normalized, "")
	normalized = strings.Trim(normalized, "-/")
	if len(normalized) > maxTagLen {
		normalized = normalized[:maxTagLen]
	}
	if normalized == "" {
		return ""
	}
	base := strings.Trim(prefix, "/")
	if base == "" {
		return normalized
	}
	return base + "/" + normalized
}

// Sanitize formats raw tag labels, drops collisions with the processed
// marker, deduplicates, and caps the total at the catalog's tag budget.
func (t *Tagger) Sanitize(ctx context.Context, raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	tags := t.settings.MailboxTags(ctx)
	processed := strings.TrimSpace(tags.Processed)
	limit := t.catalog.Index(ctx).MaxTagTotal()

	var formatted []string
	for _, label := range raw {
		candidate := FormatAITag(label, tags.AIPrefix)
		if candidate == "" || candidate == processed {
			continue
		}
		if containsString(formatted, candidate) {
			continue
		}
		formatted = append(formatted, candidate)
		if len(formatted) >= limit {
			break
		}
	}
	return formatted
}

// Apply adds the processed marker and the sanitized AI tags to the
// message. Individual tag failures are logged and skipped; tagging never
// aborts the surrounding pass.
func (t *Tagger) Apply(ctx context.Context, uid, folder string, raw []string, includeProcessed bool) {
	target := folder
	if target == "" {
		target = t.settings.Inbox()
	}
	mailboxTags := t.settings.MailboxTags(ctx)
	processed := strings.TrimSpace(mailboxTags.Processed)

	if includeProcessed && processed != "" {
		if err := t.mailbox.AddTag(ctx, uid, target, processed); err != nil {
			t.log.WithError(err).WithField("uid", uid).Warn("failed to add processed tag")
		}
	}
	for _, tag := range t.Sanitize(ctx, raw) {
		if err := t.mailbox.AddTag(ctx, uid, target, tag); err != nil {
			t.log.WithError(err).WithFields(map[string]any{"uid": uid, "tag": tag}).Warn("failed to add tag")
		}
	}
}

// FutureDateTags synthesizes one datum-YYYY-MM-DD label per extracted
// future date.
func FutureDateTags(dates []time.Time) []string {
	tags := make([]string, 0, len(dates))
	for _, d := range dates {
		tags = append(tags, "datum-"+d.Format("2006-01-02"))
	}
	return tags
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
