package filter

import (
	"strings"
	"time"

	"sorter_server/core/domain"
)

// Engine evaluates keyword filter rules against incoming messages.
// Rules are checked in list order and the first match wins.
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Evaluate returns the first enabled rule that matches the message,
// or nil when no rule applies. Evaluation is pure; the caller performs
// the move, tagging and hit recording.
func (e *Engine) Evaluate(rules []domain.KeywordFilterRule, msg domain.MailMessage) *domain.KeywordMatchResult {
	ref, hasDate := referenceDate(msg, e.now())
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		future := futureDatesFor(rule, msg, ref)
		if !dateGate(rule, ref, hasDate, future) {
			continue
		}
		matched, terms := matchTerms(rule, msg)
		if !matched {
			continue
		}
		return &domain.KeywordMatchResult{
			Rule:         *rule,
			MatchedTerms: terms,
			FutureDates:  future,
		}
	}
	return nil
}

func referenceDate(msg domain.MailMessage, now time.Time) (time.Time, bool) {
	if msg.ReceivedAt != nil && !msg.ReceivedAt.IsZero() {
		return *msg.ReceivedAt, true
	}
	return now, false
}

// dateGate applies the optional date window. Candidates are the message
// date and, when the rule asks for future dates, every date mentioned in
// the message text that lies after the message date. The gate passes if
// any candidate falls inside the window. A windowed rule never matches a
// message without a parseable date.
func dateGate(rule *domain.KeywordFilterRule, ref time.Time, hasDate bool, future []time.Time) bool {
	if rule.DateAfter == nil && rule.DateBefore == nil {
		return true
	}
	if !hasDate {
		return false
	}
	candidates := []time.Time{ref}
	if rule.IncludeFutureDates {
		candidates = append(candidates, future...)
	}
	for _, c := range candidates {
		if inWindow(rule, c) {
			return true
		}
	}
	return false
}

func inWindow(rule *domain.KeywordFilterRule, t time.Time) bool {
	if rule.DateAfter != nil && t.Before(*rule.DateAfter) {
		return false
	}
	if rule.DateBefore != nil && t.After(*rule.DateBefore) {
		return false
	}
	return true
}

func futureDatesFor(rule *domain.KeywordFilterRule, msg domain.MailMessage, ref time.Time) []time.Time {
	if !rule.IncludeFutureDates && !rule.TagFutureDates {
		return nil
	}
	return ExtractFutureDates(msg.Subject+"\n"+msg.Body, ref)
}

// matchTerms checks the rule's terms against the selected message
// fields. Mode all requires every term to appear somewhere; mode any
// requires at least one. A rule without terms matches unconditionally.
// Matching is case-insensitive substring.
func matchTerms(rule *domain.KeywordFilterRule, msg domain.MailMessage) (bool, []string) {
	if len(rule.Match.Terms) == 0 {
		return true, nil
	}
	haystacks := fieldHaystacks(rule.Match.Fields, msg)
	var matched []string
	for _, term := range rule.Match.Terms {
		needle := strings.ToLower(strings.TrimSpace(term))
		if needle == "" {
			continue
		}
		found := false
		for _, hay := range haystacks {
			if strings.Contains(hay, needle) {
				found = true
				break
			}
		}
		if found {
			matched = append(matched, term)
		} else if rule.Match.Mode != domain.MatchAny {
			return false, nil
		}
	}
	if len(matched) == 0 {
		return false, nil
	}
	return true, matched
}

// fieldHaystacks lowers the selected fields once. An empty field list
// means all fields.
func fieldHaystacks(fields []string, msg domain.MailMessage) []string {
	selected := fields
	if len(selected) == 0 {
		selected = domain.KeywordFields
	}
	var hays []string
	for _, f := range selected {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "subject":
			hays = append(hays, strings.ToLower(msg.Subject))
		case "sender", "from":
			hays = append(hays, strings.ToLower(msg.From))
		case "body":
			hays = append(hays, strings.ToLower(msg.Body))
		}
	}
	return hays
}
