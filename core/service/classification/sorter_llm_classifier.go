package classification

import (
	"context"
	"sort"
	"strings"

	"sorter_server/core/domain"
	"sorter_server/core/port/out"
	"sorter_server/core/service/catalog"
	"sorter_server/pkg/logger"
)

// Thresholds carries the rating cut-offs the classifier applies, all on
// the 0-100 scale.
type Thresholds struct {
	Match  float64
	Create float64
	Max    int
}

// Result is the refined classification for one message. A degraded run
// carries the embedding ranking unchanged with no category, tags or
// proposal.
type Result struct {
	Ranked   []domain.RankedCandidate
	Category *domain.Category
	Tags     []string
	Proposal *domain.Proposal
}

// Classifier refines an embedding pre-ranking through a chat model and
// canonicalizes everything the model returns against the folder catalog.
// Model failures never surface to the caller; they degrade to the
// unrefined ranking.
type Classifier struct {
	chat         out.ChatStreamer
	catalogStore *catalog.Store
	sizing       PromptSizing
	thresholds   Thresholds
	placeholders []string
	log          *logger.Logger
}

func NewClassifier(chat out.ChatStreamer, store *catalog.Store, sizing PromptSizing, thresholds Thresholds, placeholders []string) *Classifier {
	return &Classifier{
		chat:         chat,
		catalogStore: store,
		sizing:       sizing,
		thresholds:   thresholds,
		placeholders: placeholders,
		log:          logger.WithField("component", "llm_classifier"),
	}
}

// Classify sends the message to the model and merges its answer with the
// embedding pre-ranking. Any transport or parse failure returns the
// pre-ranking unchanged.
func (c *Classifier) Classify(ctx context.Context, in PromptInput) Result {
	fallback := Result{Ranked: in.Ranked}
	idx := c.catalogStore.Index(ctx)

	prompt := BuildPrompt(idx, in, c.sizing)

	var collector streamCollector
	if err := c.chat.StreamChat(ctx, prompt, func(chunk out.ChatChunk) error {
		collector.collect(chunk)
		return nil
	}); err != nil {
		c.log.WithError(err).Warn("chat stream failed, keeping embedding ranking")
		return fallback
	}

	payload, ok := collector.result()
	if !ok {
		c.log.WithField("preview", preview(collector.text.String(), 160)).
			Warn("no classification payload in model reply, keeping embedding ranking")
		return fallback
	}

	refined := c.canonicalizeRanked(idx, asSlice(payload["ranked"]))

	return Result{
		Ranked:   refined,
		Category: c.resolveCategory(idx, asMap(payload["category"])),
		Tags:     c.resolveTags(idx, asSlice(payload["tags"]), asSlice(payload["extras"])),
		Proposal: c.normalizeProposal(idx, asMap(payload["proposal"]), refined),
	}
}

// canonicalizeRanked maps every model-returned folder name onto a
// catalog path. Names that resolve nowhere and ratings below the match
// threshold are dropped; duplicates keep the highest rating; the result
// is re-sorted and capped.
func (c *Classifier) canonicalizeRanked(idx *catalog.Index, entries []any) []domain.RankedCandidate {
	byPath := make(map[string]domain.RankedCandidate)
	var order []string
	for _, entry := range entries {
		m := asMap(entry)
		if m == nil {
			continue
		}
		name := firstString(m, "name", "folder", "path", "label")
		if name == "" {
			continue
		}
		rating, ok := firstFloat(m, "rating", "score", "confidence")
		if !ok {
			continue
		}
		rating = toRatingScale(rating)
		if rating < c.thresholds.Match {
			continue
		}
		canonical, _, found := idx.Canonicalize(name, c.thresholds.Match)
		if !found {
			continue
		}
		candidate := domain.NewRankedCandidate(canonical, rating/100, firstString(m, "reason"))
		if existing, dup := byPath[canonical]; dup {
			if candidate.Rating > existing.Rating {
				byPath[canonical] = candidate
			}
			continue
		}
		byPath[canonical] = candidate
		order = append(order, canonical)
	}

	ranked := make([]domain.RankedCandidate, 0, len(order))
	for _, path := range order {
		ranked = append(ranked, byPath[path])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rating > ranked[j].Rating
	})
	if c.thresholds.Max > 0 && len(ranked) > c.thresholds.Max {
		ranked = ranked[:c.thresholds.Max]
	}
	return ranked
}

// resolveCategory re-resolves the model's category label through the
// catalog, preferring the matched folder it named over the bare label.
func (c *Classifier) resolveCategory(idx *catalog.Index, m map[string]any) *domain.Category {
	if m == nil {
		return nil
	}
	label := firstString(m, "label", "name", "category")
	if label == "" {
		return nil
	}
	rating, _ := firstFloat(m, "rating", "confidence", "score")
	rating = toRatingScale(rating)
	cat := &domain.Category{
		Label:      label,
		Confidence: rating / 100,
		Rating:     rating,
		Reason:     firstString(m, "reason"),
	}
	if strings.EqualFold(label, domain.CategoryUnmatched) {
		cat.Label = domain.CategoryUnmatched
		cat.Status = domain.CategoryUnmatched
		return cat
	}

	for _, name := range []string{firstString(m, "matched_folder", "matchedFolder", "folder"), label} {
		if name == "" {
			continue
		}
		if canonical, _, ok := idx.Canonicalize(name, c.thresholds.Match); ok {
			cat.MatchedFolder = canonical
			return cat
		}
	}
	if top, ok := idx.TopLevelForLabel(label); ok {
		cat.Label = top
		cat.MatchedFolder = top
		return cat
	}
	cat.Status = domain.CategoryUnmatched
	return cat
}

// resolveTags turns the model's slot assignments and free-form context
// tags into a bounded tag list: one value per slot, options enforced,
// placeholders discarded, combined total capped.
func (c *Classifier) resolveTags(idx *catalog.Index, slotEntries, extras []any) []string {
	type pick struct {
		value  string
		rating float64
	}
	picks := make(map[string]pick)

	for _, entry := range slotEntries {
		m := asMap(entry)
		if m == nil {
			continue
		}
		slot, ok := findSlot(idx.TagSlots(), firstString(m, "slot", "name"))
		if !ok {
			continue
		}
		value := singleToken(firstString(m, "value", "tag"))
		if value == "" || c.isPlaceholder(value) {
			continue
		}
		rating, has := firstFloat(m, "rating", "score", "confidence")
		if has {
			rating = toRatingScale(rating)
			if rating < c.thresholds.Match {
				continue
			}
		} else {
			rating = 100
		}
		resolved, ok := resolveSlotValue(slot, value)
		if !ok {
			continue
		}
		if prev, dup := picks[slot.Name]; dup && prev.rating >= rating {
			continue
		}
		picks[slot.Name] = pick{value: resolved, rating: rating}
	}

	var tags []string
	for _, slot := range idx.TagSlots() {
		if p, ok := picks[slot.Name]; ok {
			tags = append(tags, p.value)
		}
	}
	for _, extra := range extras {
		value := singleToken(asString(extra))
		if value == "" || c.isPlaceholder(value) {
			continue
		}
		tags = append(tags, value)
	}

	if max := idx.MaxTagTotal(); len(tags) > max {
		tags = tags[:max]
	}
	return tags
}

// normalizeProposal accepts a new-folder proposal only when nothing
// ranked clears the creation threshold, anchors it under a configured
// top-level folder, and rejects paths that duplicate a ranked candidate.
func (c *Classifier) normalizeProposal(idx *catalog.Index, m map[string]any, ranked []domain.RankedCandidate) *domain.Proposal {
	if m == nil {
		return nil
	}
	best := domain.BestRating(ranked)
	if best >= c.thresholds.Create {
		return nil
	}
	name := strings.Trim(strings.TrimSpace(firstString(m, "name", "folder")), "/")
	if name == "" {
		return nil
	}
	parent := idx.EnsureTopLevelParent(firstString(m, "parent", "top_level"))
	if slash := strings.LastIndex(name, "/"); slash >= 0 {
		name = strings.TrimSpace(name[slash+1:])
		if name == "" {
			return nil
		}
	}
	fullPath := parent + "/" + name
	if strings.EqualFold(parent, name) {
		fullPath = parent
	}
	for _, candidate := range ranked {
		if strings.EqualFold(candidate.Name, fullPath) {
			return nil
		}
	}
	return &domain.Proposal{
		Parent:    parent,
		Name:      name,
		FullPath:  fullPath,
		Reason:    firstString(m, "reason"),
		Status:    domain.ProposalPending,
		ScoreHint: best,
	}
}

func (c *Classifier) isPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, marker := range c.placeholders {
		if marker != "" && strings.Contains(upper, strings.ToUpper(marker)) {
			return true
		}
	}
	return false
}

// findSlot matches a slot by name or alias, case-insensitively.
func findSlot(slots []domain.TagSlot, name string) (domain.TagSlot, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return domain.TagSlot{}, false
	}
	for _, slot := range slots {
		if strings.ToLower(slot.Name) == needle {
			return slot, true
		}
		for _, alias := range slot.Aliases {
			if strings.ToLower(alias) == needle {
				return slot, true
			}
		}
	}
	return domain.TagSlot{}, false
}

// resolveSlotValue enforces the slot's option set: exact match first,
// normalized-signature match second. Slots without options accept any
// single token.
func resolveSlotValue(slot domain.TagSlot, value string) (string, bool) {
	if len(slot.Options) == 0 {
		return value, true
	}
	for _, option := range slot.Options {
		if strings.EqualFold(option, value) {
			return option, true
		}
	}
	sig := catalog.Signature(value)
	if sig == "" {
		return "", false
	}
	for _, option := range slot.Options {
		if catalog.Signature(option) == sig {
			return option, true
		}
	}
	return "", false
}

// singleToken collapses a value to one hyphen-joined token.
func singleToken(value string) string {
	fields := strings.Fields(strings.TrimSpace(value))
	return strings.Join(fields, "-")
}

// toRatingScale lifts fractional confidences onto the 0-100 scale.
func toRatingScale(v float64) float64 {
	if v > 0 && v <= 1 {
		v *= 100
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return v
}

// preview truncates a payload for log output.
func preview(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
