package classification

import (
	"fmt"
	"strings"

	"sorter_server/core/domain"
	"sorter_server/core/service/catalog"
)

// charsPerToken is the rough character cost of one model token used to
// budget the prompt without a tokenizer.
const charsPerToken = 4

// promptHeadroom keeps the estimated prompt below the usable window.
const promptHeadroom = 0.9

// minBodySnippet is the smallest body excerpt the shrink loop will go to
// before it starts cutting catalog paths instead.
const minBodySnippet = 200

// PromptSizing carries the model-window parameters for prompt budgeting.
type PromptSizing struct {
	ContextWindowTokens int
	ReservedTokens      int
	BodySnippetChars    int
	CatalogPathFloor    int
	MatchThreshold      float64
}

// PromptInput is the message material the classifier hands to the model.
type PromptInput struct {
	Subject string
	From    string
	Body    string
	Ranked  []domain.RankedCandidate
}

// BuildPrompt renders the classification prompt, shrinking the body
// snippet and then the catalog path list until the estimated size fits
// the model's context window. The path list never drops below the
// configured floor.
func BuildPrompt(idx *catalog.Index, in PromptInput, sizing PromptSizing) string {
	budget := charBudget(sizing)
	bodyLimit := sizing.BodySnippetChars
	if bodyLimit <= 0 {
		bodyLimit = minBodySnippet
	}
	pathFloor := sizing.CatalogPathFloor
	if pathFloor <= 0 {
		pathFloor = 1
	}
	pathLimit := len(idx.Paths())

	prompt := renderPrompt(idx, in, sizing, bodyLimit, pathLimit)
	for budget > 0 && len(prompt) > budget {
		switch {
		case bodyLimit > minBodySnippet:
			bodyLimit = bodyLimit * 3 / 4
			if bodyLimit < minBodySnippet {
				bodyLimit = minBodySnippet
			}
		case pathLimit > pathFloor:
			pathLimit = pathLimit * 3 / 4
			if pathLimit < pathFloor {
				pathLimit = pathFloor
			}
		default:
			return prompt
		}
		prompt = renderPrompt(idx, in, sizing, bodyLimit, pathLimit)
	}
	return prompt
}

func charBudget(sizing PromptSizing) int {
	usable := sizing.ContextWindowTokens - sizing.ReservedTokens
	if usable <= 0 {
		return 0
	}
	return int(float64(usable) * charsPerToken * promptHeadroom)
}

func renderPrompt(idx *catalog.Index, in PromptInput, sizing PromptSizing, bodyLimit, pathLimit int) string {
	var b strings.Builder

	b.WriteString("You are an email sorting assistant. Classify the message below into the mailbox folder hierarchy.\n\n")

	b.WriteString("Top-level folders: ")
	b.WriteString(strings.Join(idx.TopLevelNames(), ", "))
	b.WriteString("\n\nFolder templates:\n")
	b.WriteString(idx.FolderSummary())

	paths := idx.Paths()
	if pathLimit < len(paths) {
		paths = paths[:pathLimit]
	}
	b.WriteString("\n\nKnown folder paths:\n")
	for _, p := range paths {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}

	b.WriteString("\nTag slots:\n")
	b.WriteString(idx.TagSlotSummary())
	b.WriteString("\n\nContext tags:\n")
	b.WriteString(idx.ContextTagSummary())

	if len(in.Ranked) > 0 {
		b.WriteString("\n\nEmbedding similarity pre-ranking (0-100):\n")
		for _, c := range in.Ranked {
			fmt.Fprintf(&b, "- %s: %.0f\n", c.Name, c.Rating)
		}
	}

	fmt.Fprintf(&b, "\nMessage:\nSubject: %s\nFrom: %s\nBody:\n%s\n", in.Subject, in.From, snippet(in.Body, bodyLimit))

	fmt.Fprintf(&b, `
Respond with strict JSON only, no prose, using this shape:
{
  "ranked": [{"name": "<folder path>", "rating": <0-100>, "reason": "<short>"}],
  "category": {"label": "<top-level or 'unmatched'>", "matched_folder": "<folder path or null>", "rating": <0-100>, "reason": "<short>"},
  "tags": [{"slot": "<slot name>", "value": "<one word>", "rating": <0-100>}],
  "proposal": {"parent": "<top-level>", "name": "<new folder>", "reason": "<short>"},
  "extras": ["<free-form context tag>"]
}
Rules: ratings are 0-100; a rating below %.0f means no match. Only propose a new
folder when nothing existing fits well. Replace every template placeholder with a
real value; never output placeholder words literally.
`, sizing.MatchThreshold)

	return b.String()
}

// snippet truncates text at a rune boundary.
func snippet(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
