package domain

import "time"

// Keyword match modes.
const (
	MatchAll = "all"
	MatchAny = "any"
)

// Matchable message fields for keyword rules.
var KeywordFields = []string{"subject", "sender", "body"}

// KeywordMatch holds the term-matching criteria of a rule.
type KeywordMatch struct {
	Mode   string   `json:"mode"`
	Terms  []string `json:"terms,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// KeywordFilterRule routes a message deterministically before any LLM work.
// Rules are evaluated in configured order; the first satisfying rule wins.
type KeywordFilterRule struct {
	Name               string       `json:"name"`
	Description        string       `json:"description,omitempty"`
	Enabled            bool         `json:"enabled"`
	TargetFolder       string       `json:"target_folder"`
	Tags               []string     `json:"tags,omitempty"`
	Match              KeywordMatch `json:"match"`
	DateAfter          *time.Time   `json:"date_after,omitempty"`
	DateBefore         *time.Time   `json:"date_before,omitempty"`
	IncludeFutureDates bool         `json:"include_future_dates,omitempty"`
	TagFutureDates     bool         `json:"tag_future_dates,omitempty"`
}

// KeywordMatchResult is the outcome of evaluating the rule set: the winning
// rule plus the subset of terms that actually matched.
type KeywordMatchResult struct {
	Rule         KeywordFilterRule
	MatchedTerms []string
	FutureDates  []time.Time
}
