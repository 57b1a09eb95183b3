package domain

import (
	"math"
	"time"
)

// Suggestion lifecycle states.
const (
	SuggestionOpen    = "open"
	SuggestionDecided = "decided"
	SuggestionError   = "error"
)

// Move states recorded against a suggestion.
const (
	MovePending  = "pending"
	MoveMoved    = "moved"
	MoveFailed   = "failed"
	MoveRejected = "rejected"
)

// Category status when no candidate clears the match threshold.
const CategoryUnmatched = "unmatched"

// RankedCandidate is a scored folder path. Rating is the 0-100 form of Score;
// the two are kept in sync via NewRankedCandidate.
type RankedCandidate struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Rating float64 `json:"rating"`
	Reason string  `json:"reason,omitempty"`
}

// NewRankedCandidate builds a candidate from a 0-1 score, clamping negatives
// to zero so cosine artifacts never surface as negative ratings.
func NewRankedCandidate(name string, score float64, reason string) RankedCandidate {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return RankedCandidate{
		Name:   name,
		Score:  score,
		Rating: math.Round(score * 100),
		Reason: reason,
	}
}

// Category is the resolved classification outcome for one message.
type Category struct {
	Label         string  `json:"label"`
	MatchedFolder string  `json:"matched_folder,omitempty"`
	Confidence    float64 `json:"confidence"`
	Rating        float64 `json:"rating"`
	Reason        string  `json:"reason,omitempty"`
	Status        string  `json:"status,omitempty"`
}

// Proposal states.
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
	ProposalRejected = "rejected"
)

// Proposal suggests a new folder when nothing in the catalog scored above the
// creation threshold.
type Proposal struct {
	Parent    string  `json:"parent"`
	Name      string  `json:"name"`
	FullPath  string  `json:"full_path"`
	Reason    string  `json:"reason,omitempty"`
	Status    string  `json:"status"`
	ScoreHint float64 `json:"score_hint"`
}

// Suggestion captures one classified message awaiting (or past) a routing
// decision.
type Suggestion struct {
	ID         string            `json:"id"`
	MessageUID string            `json:"message_uid"`
	SrcFolder  string            `json:"src_folder,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	FromAddr   string            `json:"from_addr,omitempty"`
	Date       string            `json:"date,omitempty"`
	ThreadID   string            `json:"thread_id,omitempty"`
	Ranked     []RankedCandidate `json:"ranked,omitempty"`
	Category   *Category         `json:"category,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Proposal   *Proposal         `json:"proposal,omitempty"`
	Status     string            `json:"status"`
	Decision   string            `json:"decision,omitempty"`
	DecidedAt  *time.Time        `json:"decided_at,omitempty"`
	MoveStatus string            `json:"move_status,omitempty"`
	MoveError  string            `json:"move_error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// BestRating returns the top candidate's rating, or 0 for an empty list.
func BestRating(ranked []RankedCandidate) float64 {
	if len(ranked) == 0 {
		return 0
	}
	return ranked[0].Rating
}

// FolderProfile is the learned embedding centroid for a known folder.
type FolderProfile struct {
	Name      string    `json:"name"`
	Centroid  []float64 `json:"centroid,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileDecayAlpha is the weight of the newest embedding when a profile
// centroid is updated on an accepted move.
const ProfileDecayAlpha = 0.2

// BlendCentroid folds a new embedding into an existing centroid using
// exponential decay. Mismatched lengths replace the centroid outright.
func BlendCentroid(old, next []float64) []float64 {
	if len(old) == 0 || len(old) != len(next) {
		return next
	}
	blended := make([]float64, len(old))
	for i := range old {
		blended[i] = ProfileDecayAlpha*next[i] + (1-ProfileDecayAlpha)*old[i]
	}
	return blended
}

// FilterHit records a keyword rule routing a message.
type FilterHit struct {
	MessageUID   string     `json:"message_uid"`
	RuleName     string     `json:"rule_name"`
	SrcFolder    string     `json:"src_folder,omitempty"`
	TargetFolder string     `json:"target_folder"`
	AppliedTags  []string   `json:"applied_tags,omitempty"`
	MatchedTerms []string   `json:"matched_terms,omitempty"`
	MessageDate  *time.Time `json:"message_date,omitempty"`
	MatchedAt    time.Time  `json:"matched_at"`
}
