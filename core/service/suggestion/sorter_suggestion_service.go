// Package suggestion exposes the stored classification results to callers
// and applies routing decisions.
package suggestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sorter_server/core/domain"
	"sorter_server/core/port/out"
	"sorter_server/core/service/settings"
	"sorter_server/pkg/apperr"
	"sorter_server/pkg/logger"
)

const overviewCacheKey = "suggestions:overview"

// Decisions a caller can record.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// Service coordinates suggestion reads, the cached overview and decisions.
type Service struct {
	repo     out.SuggestionRepository
	profiles out.FolderProfileRepository
	mailbox  out.Mailbox
	settings *settings.Resolver
	cache    out.Cache
	cacheTTL time.Duration
	log      *logger.Logger
}

func NewService(
	repo out.SuggestionRepository,
	profiles out.FolderProfileRepository,
	mailbox out.Mailbox,
	resolver *settings.Resolver,
	cache out.Cache,
	cacheTTL time.Duration,
) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		mailbox:  mailbox,
		settings: resolver,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      logger.WithField("component", "suggestion_service"),
	}
}

// Overview aggregates status counts plus the open suggestions.
type Overview struct {
	Counts    map[string]int       `json:"counts"`
	Open      []*domain.Suggestion `json:"open"`
	OpenCount int                  `json:"open_count"`
	CachedAt  time.Time            `json:"cached_at"`
}

// List returns suggestions, open ones only unless includeAll is set.
func (s *Service) List(ctx context.Context, includeAll bool) ([]*domain.Suggestion, error) {
	return s.repo.List(ctx, includeAll)
}

// Find returns one suggestion by message UID.
func (s *Service) Find(ctx context.Context, uid string) (*domain.Suggestion, error) {
	suggestion, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, apperr.NotFound("suggestion not found").WithError(err)
	}
	return suggestion, nil
}

// Overview returns the cached overview, rebuilding it on a miss.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	if s.cache != nil && s.cacheTTL > 0 {
		var cached Overview
		if hit, err := s.cache.GetJSON(ctx, overviewCacheKey, &cached); err != nil {
			s.log.WithError(err).Warn("overview cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	open, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, err
	}
	overview := &Overview{
		Counts:    counts,
		Open:      open,
		OpenCount: counts[domain.SuggestionOpen],
		CachedAt:  time.Now().UTC(),
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetJSON(ctx, overviewCacheKey, overview, s.cacheTTL); err != nil {
			s.log.WithError(err).Warn("overview cache write failed")
		}
	}
	return overview, nil
}

// InvalidateOverview drops the cached overview after suggestion writes.
func (s *Service) InvalidateOverview(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, overviewCacheKey); err != nil {
		s.log.WithError(err).Warn("overview cache invalidation failed")
	}
}

// DecisionRequest is one caller verdict on a suggestion.
type DecisionRequest struct {
	Decision       string `json:"decision"`
	TargetFolder   string `json:"target_folder,omitempty"`
	AcceptProposal bool   `json:"accept_proposal,omitempty"`
	DryRun         bool   `json:"dry_run,omitempty"`
}

// DecisionResult reports what the decision did.
type DecisionResult struct {
	Suggestion   *domain.Suggestion `json:"suggestion"`
	Moved        bool               `json:"moved"`
	DryRun       bool               `json:"dry_run,omitempty"`
	FolderExists bool               `json:"folder_exists,omitempty"`
}

// Decide records a verdict. An accepted suggestion in CONFIRM mode is moved
// to the resolved target; AUTO-mode moves already happened during the scan.
func (s *Service) Decide(ctx context.Context, uid string, req DecisionRequest) (*DecisionResult, error) {
	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	if decision == "" {
		decision = DecisionAccept
	}
	if decision != DecisionAccept && decision != DecisionReject {
		return nil, apperr.BadRequest(fmt.Sprintf("invalid decision %q", req.Decision))
	}

	suggestion, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, apperr.NotFound("suggestion not found").WithError(err)
	}
	defer s.InvalidateOverview(ctx)

	if decision == DecisionReject {
		if suggestion.Proposal != nil {
			proposal := *suggestion.Proposal
			proposal.Status = domain.ProposalRejected
			if err := s.repo.UpdateProposal(ctx, uid, &proposal); err != nil {
				s.log.WithError(err).Warn("could not mark proposal rejected")
			}
		}
		updated, err := s.repo.RecordDecision(ctx, uid, decision)
		if err != nil {
			return nil, err
		}
		return &DecisionResult{Suggestion: updated}, nil
	}

	target, err := s.resolveTarget(ctx, uid, suggestion, req)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.RecordDecision(ctx, uid, decision)
	if err != nil {
		return nil, err
	}
	result := &DecisionResult{Suggestion: updated}

	if s.settings.MoveMode(ctx) != domain.MoveModeAuto {
		if req.DryRun {
			result.DryRun = true
			result.FolderExists = s.folderExists(ctx, target)
			return result, nil
		}
		if err := s.moveAccepted(ctx, uid, suggestion.SrcFolder, target); err != nil {
			return nil, err
		}
		result.Moved = true
		result.Suggestion, _ = s.repo.FindByUID(ctx, uid)
		s.updateProfile(ctx, target)
	}
	return result, nil
}

// resolveTarget picks the folder an accepted suggestion moves to: explicit
// request target, then an accepted proposal, then the top-ranked candidate.
func (s *Service) resolveTarget(ctx context.Context, uid string, suggestion *domain.Suggestion, req DecisionRequest) (string, error) {
	if req.AcceptProposal && suggestion.Proposal != nil {
		created, err := s.mailbox.EnsureFolderPath(ctx, suggestion.Proposal.FullPath)
		if err != nil {
			return "", fmt.Errorf("create proposed folder: %w", err)
		}
		proposal := *suggestion.Proposal
		proposal.Status = domain.ProposalAccepted
		if err := s.repo.UpdateProposal(ctx, uid, &proposal); err != nil {
			s.log.WithError(err).Warn("could not mark proposal accepted")
		}
		return created, nil
	}
	if target := strings.TrimSpace(req.TargetFolder); target != "" {
		return target, nil
	}
	if suggestion.Category != nil && suggestion.Category.MatchedFolder != "" {
		return suggestion.Category.MatchedFolder, nil
	}
	if len(suggestion.Ranked) > 0 {
		return suggestion.Ranked[0].Name, nil
	}
	return "", apperr.BadRequest("no target folder to accept into")
}

func (s *Service) moveAccepted(ctx context.Context, uid, srcFolder, target string) error {
	ensured, err := s.mailbox.EnsureFolderPath(ctx, target)
	if err != nil {
		s.log.WithError(err).WithField("target", target).Warn("could not ensure target folder")
		ensured = target
	}
	if err := s.mailbox.MoveMessage(ctx, uid, ensured, srcFolder); err != nil {
		if markErr := s.repo.MarkFailed(ctx, uid, err.Error()); markErr != nil {
			s.log.WithError(markErr).Warn("could not mark move failure")
		}
		return apperr.ExternalError("mailbox", err)
	}
	return s.repo.MarkMoved(ctx, uid)
}

// updateProfile refreshes the folder's learned timestamp so the ranker keeps
// preferring folders the user actively accepts into.
func (s *Service) updateProfile(ctx context.Context, target string) {
	if s.profiles == nil {
		return
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return
	}
	for _, profile := range profiles {
		if strings.EqualFold(profile.Name, target) {
			if err := s.profiles.Upsert(ctx, profile.Name, profile.Centroid); err != nil {
				s.log.WithError(err).Warn("could not refresh folder profile")
			}
			return
		}
	}
}

func (s *Service) folderExists(ctx context.Context, target string) bool {
	folders, err := s.mailbox.ListFolders(ctx)
	if err != nil {
		s.log.WithError(err).Warn("could not list folders for dry run")
		return false
	}
	for _, folder := range folders {
		if strings.EqualFold(folder, target) {
			return true
		}
	}
	return false
}
