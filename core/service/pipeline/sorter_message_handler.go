package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sorter_server/config"
	"sorter_server/core/domain"
	"sorter_server/core/port/out"
	"sorter_server/core/service/classification"
	"sorter_server/core/service/filter"
	"sorter_server/core/service/settings"
	"sorter_server/pkg/logger"
)

// Handler runs the per-message pipeline: keyword rules short-circuit the
// LLM path; otherwise the message is embedded, ranked and classified, a
// suggestion is persisted, and the auto-move policy is applied.
type Handler struct {
	parser      out.MessageParser
	mailbox     out.Mailbox
	filters     *filter.Store
	engine      *filter.Engine
	embedder    out.Embedder
	classifier  *classification.Classifier
	tagger      *Tagger
	suggestions out.SuggestionRepository
	profiles    out.FolderProfileRepository
	processed   out.ProcessedRepository
	filterHits  out.FilterHitRepository
	settings    *settings.Resolver

	createThreshold float64
	autoThreshold   float64
	maxSuggestions  int
	embedMaxChars   int

	log *logger.Logger
}

type HandlerDeps struct {
	Parser      out.MessageParser
	Mailbox     out.Mailbox
	Filters     *filter.Store
	Embedder    out.Embedder
	Classifier  *classification.Classifier
	Tagger      *Tagger
	Suggestions out.SuggestionRepository
	Profiles    out.FolderProfileRepository
	Processed   out.ProcessedRepository
	FilterHits  out.FilterHitRepository
	Settings    *settings.Resolver
}

func NewHandler(cfg *config.Config, deps HandlerDeps) *Handler {
	return &Handler{
		parser:          deps.Parser,
		mailbox:         deps.Mailbox,
		filters:         deps.Filters,
		engine:          filter.NewEngine(),
		embedder:        deps.Embedder,
		classifier:      deps.Classifier,
		tagger:          deps.Tagger,
		suggestions:     deps.Suggestions,
		profiles:        deps.Profiles,
		processed:       deps.Processed,
		filterHits:      deps.FilterHits,
		settings:        deps.Settings,
		createThreshold: cfg.CreateThreshold,
		autoThreshold:   cfg.AutoThreshold,
		maxSuggestions:  cfg.MaxSuggestions,
		embedMaxChars:   cfg.EmbedPromptMaxChars,
		log:             logger.WithField("component", "message_handler"),
	}
}

// Handle processes one raw message from the given source folder.
func (h *Handler) Handle(ctx context.Context, uid string, raw []byte, srcFolder string) error {
	module := h.settings.AnalysisModule(ctx)
	if module == domain.ModuleOff {
		return nil
	}

	msg, err := h.parser.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse message %s: %w", uid, err)
	}
	msg.UID = uid
	msg.Folder = srcFolder

	if module.UsesKeywordFilters() {
		rules := h.filters.Rules(ctx)
		if match := h.engine.Evaluate(rules, *msg); match != nil {
			return h.handleFilterMatch(ctx, msg, match)
		}
	}

	if !module.UsesLLM() {
		return nil
	}
	return h.handleClassification(ctx, msg)
}

// handleFilterMatch routes a message deterministically: ensure the target
// folder, tag in place, move, record the hit, mark processed. The LLM is
// never consulted.
func (h *Handler) handleFilterMatch(ctx context.Context, msg *domain.MailMessage, match *domain.KeywordMatchResult) error {
	rule := match.Rule
	log := h.log.WithFields(map[string]any{"uid": msg.UID, "rule": rule.Name})

	target, err := h.mailbox.EnsureFolderPath(ctx, rule.TargetFolder)
	if err != nil {
		log.WithError(err).Warn("could not ensure filter target folder")
		target = rule.TargetFolder
	}

	tags := append([]string{}, rule.Tags...)
	if rule.TagFutureDates {
		tags = append(tags, FutureDateTags(match.FutureDates)...)
	}
	h.tagger.Apply(ctx, msg.UID, msg.Folder, tags, true)

	moved := true
	if err := h.mailbox.MoveMessage(ctx, msg.UID, target, msg.Folder); err != nil {
		moved = false
		log.WithError(err).Warn("filter move failed, leaving message in place")
	}

	hit := &domain.FilterHit{
		MessageUID:   msg.UID,
		RuleName:     rule.Name,
		SrcFolder:    msg.Folder,
		TargetFolder: target,
		AppliedTags:  tags,
		MatchedTerms: match.MatchedTerms,
		MessageDate:  msg.ReceivedAt,
		MatchedAt:    time.Now().UTC(),
	}
	if err := h.filterHits.Record(ctx, hit); err != nil {
		log.WithError(err).Warn("could not record filter hit")
	}
	if err := h.processed.Mark(ctx, msg.Folder, msg.UID); err != nil {
		log.WithError(err).Warn("could not mark message processed")
	}
	log.WithFields(map[string]any{"target": target, "moved": moved}).Info("keyword rule routed message")
	return nil
}

// handleClassification runs the embedding + LLM path and persists the
// resulting suggestion.
func (h *Handler) handleClassification(ctx context.Context, msg *domain.MailMessage) error {
	embedding := h.embedMessage(ctx, msg)
	ranked := h.rankProfiles(ctx, embedding)

	result := h.classifier.Classify(ctx, classification.PromptInput{
		Subject: msg.Subject,
		From:    msg.From,
		Body:    msg.Body,
		Ranked:  ranked,
	})

	if domain.BestRating(result.Ranked) < h.createThreshold {
		result.Ranked = nil
		result.Category = &domain.Category{
			Label:  domain.CategoryUnmatched,
			Status: domain.CategoryUnmatched,
		}
	}

	suggestion := &domain.Suggestion{
		ID:         uuid.NewString(),
		MessageUID: msg.UID,
		SrcFolder:  msg.Folder,
		Subject:    msg.Subject,
		FromAddr:   msg.From,
		Date:       msg.Date,
		ThreadID:   msg.MessageID,
		Ranked:     result.Ranked,
		Category:   result.Category,
		Tags:       result.Tags,
		Proposal:   result.Proposal,
		Status:     domain.SuggestionOpen,
		MoveStatus: domain.MovePending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.suggestions.Save(ctx, suggestion); err != nil {
		return fmt.Errorf("save suggestion for %s: %w", msg.UID, err)
	}

	if h.settings.MoveMode(ctx) == domain.MoveModeAuto {
		h.autoMove(ctx, msg, suggestion, embedding)
	}
	return nil
}

// autoMove applies tags immediately and moves the message when the top
// candidate clears the auto threshold or the message is a thread reply.
// Failures are recorded against the suggestion, never raised.
func (h *Handler) autoMove(ctx context.Context, msg *domain.MailMessage, suggestion *domain.Suggestion, embedding []float64) {
	log := h.log.WithField("uid", msg.UID)

	h.tagger.Apply(ctx, msg.UID, msg.Folder, suggestion.Tags, true)

	best := domain.BestRating(suggestion.Ranked)
	if len(suggestion.Ranked) == 0 || (best < h.autoThreshold && !msg.IsReply()) {
		return
	}
	target := suggestion.Ranked[0].Name
	if ensured, err := h.mailbox.EnsureFolderPath(ctx, target); err == nil {
		target = ensured
	} else {
		log.WithError(err).Warn("could not ensure auto-move target")
	}

	if err := h.mailbox.MoveMessage(ctx, msg.UID, target, msg.Folder); err != nil {
		log.WithError(err).Warn("auto move failed")
		if markErr := h.suggestions.MarkFailed(ctx, msg.UID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("could not record failed move")
		}
		return
	}
	if err := h.suggestions.MarkMoved(ctx, msg.UID); err != nil {
		log.WithError(err).Error("could not record auto move")
	}
	h.updateProfile(ctx, target, embedding)
	log.WithFields(map[string]any{"target": target, "rating": best}).Info("auto-moved message")
}

// updateProfile folds the message embedding into the target folder's
// centroid.
func (h *Handler) updateProfile(ctx context.Context, folder string, embedding []float64) {
	if len(embedding) == 0 {
		return
	}
	var old []float64
	if profiles, err := h.profiles.List(ctx); err == nil {
		for _, p := range profiles {
			if p.Name == folder {
				old = p.Centroid
				break
			}
		}
	}
	if err := h.profiles.Upsert(ctx, folder, domain.BlendCentroid(old, embedding)); err != nil {
		h.log.WithError(err).WithField("folder", folder).Warn("could not update folder profile")
	}
}

func (h *Handler) embedMessage(ctx context.Context, msg *domain.MailMessage) []float64 {
	prompt := msg.Subject + "\n" + msg.From + "\n" + msg.Body
	if h.embedMaxChars > 0 && len(prompt) > h.embedMaxChars {
		prompt = prompt[:h.embedMaxChars]
	}
	embedding, err := h.embedder.Embed(ctx, prompt)
	if err != nil {
		h.log.WithError(err).WithField("uid", msg.UID).Warn("embedding failed, ranking skipped")
		return nil
	}
	return embedding
}

func (h *Handler) rankProfiles(ctx context.Context, embedding []float64) []domain.RankedCandidate {
	if len(embedding) == 0 {
		return nil
	}
	profiles, err := h.profiles.List(ctx)
	if err != nil {
		h.log.WithError(err).Warn("could not list folder profiles")
		return nil
	}
	return classification.RankProfiles(profiles, embedding, h.maxSuggestions)
}
