package filter

import (
	"strings"

	"sorter_server/core/domain"
)

// NormalizeRules cleans a rule list before it is persisted or evaluated:
// names and terms are trimmed, the match mode falls back to all, fields
// are restricted to the known set, and rules without a target folder are
// dropped. Rules without terms are kept; they match on the date gate alone.
func NormalizeRules(rules []domain.KeywordFilterRule) []domain.KeywordFilterRule {
	out := make([]domain.KeywordFilterRule, 0, len(rules))
	for _, rule := range rules {
		rule.Name = strings.TrimSpace(rule.Name)
		rule.Description = strings.TrimSpace(rule.Description)
		rule.TargetFolder = strings.TrimSpace(rule.TargetFolder)
		rule.Match.Mode = normalizeMode(rule.Match.Mode)
		rule.Match.Terms = trimNonEmpty(rule.Match.Terms)
		rule.Match.Fields = normalizeFields(rule.Match.Fields)
		rule.Tags = trimNonEmpty(rule.Tags)
		if rule.TargetFolder == "" {
			continue
		}
		out = append(out, rule)
	}
	return out
}

func normalizeMode(mode string) string {
	if strings.ToLower(strings.TrimSpace(mode)) == domain.MatchAny {
		return domain.MatchAny
	}
	return domain.MatchAll
}

func normalizeFields(fields []string) []string {
	var out []string
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "from" {
			f = "sender"
		}
		for _, known := range domain.KeywordFields {
			if f == known && !contains(out, f) {
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, domain.KeywordFields...)
	}
	return out
}

func trimNonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
