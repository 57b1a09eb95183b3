// Package settings resolves runtime configuration: static env defaults
// overridden by values persisted through the settings repository.
package settings

import (
	"context"
	"strconv"
	"strings"
	"time"

	"sorter_server/config"
	"sorter_server/core/domain"
	"sorter_server/core/port/out"
)

// Settings-repository keys for runtime overrides.
const (
	KeyMoveMode         = "MOVE_MODE"
	KeyAnalysisModule   = "ANALYSIS_MODULE"
	KeyClassifierModel  = "CLASSIFIER_MODEL"
	KeyProtectedTag     = "MAILBOX_PROTECTED_TAG"
	KeyProcessedTag     = "MAILBOX_PROCESSED_TAG"
	KeyAITagPrefix      = "MAILBOX_AI_TAG_PREFIX"
	KeyMonitoredFolders = "MONITORED_FOLDERS"
	KeyPollInterval     = "POLL_INTERVAL_SECONDS"
)

// Resolver returns effective runtime values. Lookups hit the settings
// repository on every call; the repository is expected to be cheap.
type Resolver struct {
	cfg  *config.Config
	repo out.SettingsRepository
}

func NewResolver(cfg *config.Config, repo out.SettingsRepository) *Resolver {
	return &Resolver{cfg: cfg, repo: repo}
}

func (r *Resolver) override(ctx context.Context, key string) (string, bool) {
	value, ok, err := r.repo.Get(ctx, key)
	if err != nil || !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// MoveMode returns AUTO or CONFIRM.
func (r *Resolver) MoveMode(ctx context.Context) string {
	if v, ok := r.override(ctx, KeyMoveMode); ok {
		if mode := strings.ToUpper(v); mode == domain.MoveModeAuto || mode == domain.MoveModeConfirm {
			return mode
		}
	}
	if strings.ToUpper(r.cfg.MoveMode) == domain.MoveModeAuto {
		return domain.MoveModeAuto
	}
	return domain.MoveModeConfirm
}

func (r *Resolver) SetMoveMode(ctx context.Context, mode string) error {
	mode = strings.ToUpper(strings.TrimSpace(mode))
	if mode != domain.MoveModeAuto && mode != domain.MoveModeConfirm {
		mode = domain.MoveModeConfirm
	}
	return r.repo.Set(ctx, KeyMoveMode, mode)
}

// AnalysisModule returns the active pipeline selection.
func (r *Resolver) AnalysisModule(ctx context.Context) domain.AnalysisModule {
	if v, ok := r.override(ctx, KeyAnalysisModule); ok {
		return domain.ParseAnalysisModule(v)
	}
	return domain.ParseAnalysisModule(r.cfg.AnalysisModule)
}

func (r *Resolver) SetAnalysisModule(ctx context.Context, module string) error {
	return r.repo.Set(ctx, KeyAnalysisModule, string(domain.ParseAnalysisModule(module)))
}

// ClassifierModel returns the chat model name.
func (r *Resolver) ClassifierModel(ctx context.Context) string {
	if v, ok := r.override(ctx, KeyClassifierModel); ok {
		return v
	}
	return r.cfg.ClassifierModel
}

func (r *Resolver) SetClassifierModel(ctx context.Context, model string) error {
	return r.repo.Set(ctx, KeyClassifierModel, strings.TrimSpace(model))
}

// MailboxTags returns the protected, processed and AI-prefix tag names.
func (r *Resolver) MailboxTags(ctx context.Context) domain.MailboxTags {
	tags := domain.MailboxTags{
		Protected: r.cfg.ProtectedTag,
		Processed: r.cfg.ProcessedTag,
		AIPrefix:  r.cfg.AITagPrefix,
	}
	if v, ok := r.override(ctx, KeyProtectedTag); ok {
		tags.Protected = v
	}
	if v, ok := r.override(ctx, KeyProcessedTag); ok {
		tags.Processed = v
	}
	if v, ok := r.override(ctx, KeyAITagPrefix); ok {
		tags.AIPrefix = v
	}
	return tags
}

func (r *Resolver) SetMailboxTags(ctx context.Context, tags domain.MailboxTags) error {
	if err := r.repo.Set(ctx, KeyProtectedTag, strings.TrimSpace(tags.Protected)); err != nil {
		return err
	}
	if err := r.repo.Set(ctx, KeyProcessedTag, strings.TrimSpace(tags.Processed)); err != nil {
		return err
	}
	return r.repo.Set(ctx, KeyAITagPrefix, strings.TrimSpace(tags.AIPrefix))
}

// MonitoredFolders returns the folder list the continuous scan watches.
// Empty means the configured inbox.
func (r *Resolver) MonitoredFolders(ctx context.Context) []string {
	raw, ok := r.override(ctx, KeyMonitoredFolders)
	if !ok {
		return nil
	}
	var folders []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			folders = append(folders, trimmed)
		}
	}
	return folders
}

func (r *Resolver) SetMonitoredFolders(ctx context.Context, folders []string) error {
	var cleaned []string
	for _, f := range folders {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return r.repo.Set(ctx, KeyMonitoredFolders, strings.Join(cleaned, ","))
}

// PollInterval returns the continuous-scan sleep between passes.
func (r *Resolver) PollInterval(ctx context.Context) time.Duration {
	if v, ok := r.override(ctx, KeyPollInterval); ok {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return r.cfg.PollInterval
}

// Inbox returns the default mailbox folder.
func (r *Resolver) Inbox() string {
	if r.cfg.IMAPInbox != "" {
		return r.cfg.IMAPInbox
	}
	return "INBOX"
}
