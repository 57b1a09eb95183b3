// Package catalog builds the in-memory view of the configured folder
// hierarchy and resolves fuzzy folder names against it.
package catalog

import (
	"strings"

	"sorter_server/core/domain"
)

// sigStopwords are tokens dropped from normalized signatures. The mailbox
// inbox prefix carries no routing information.
var sigStopwords = map[string]bool{"inbox": true}

// Index is an immutable view over one catalog revision. Rebuild the whole
// index on any catalog write; never mutate it in place.
type Index struct {
	catalog    domain.FolderCatalog
	paths      []string
	pathBySig  map[string]string
	sigOrder   []string
	slots      []domain.TagSlot
	guidelines []domain.ContextTagGuideline
}

// NewIndex builds an index from a normalized catalog.
func NewIndex(catalog domain.FolderCatalog) *Index {
	catalog.Normalize()
	idx := &Index{
		catalog:   catalog,
		pathBySig: make(map[string]string),
		slots:     catalog.TagSlots,
	}
	for _, template := range catalog.Templates {
		idx.addPath(template.Name)
		idx.addChildren(template.Name, template.Children)
		idx.guidelines = append(idx.guidelines, template.TagGuidelines...)
	}
	return idx
}

func (idx *Index) addChildren(prefix string, children []domain.FolderChild) {
	for _, child := range children {
		path := prefix + "/" + child.Name
		idx.addPath(path)
		idx.addChildren(path, child.Children)
	}
}

func (idx *Index) addPath(path string) {
	idx.paths = append(idx.paths, path)
	sig := Signature(path)
	if sig == "" {
		return
	}
	if _, exists := idx.pathBySig[sig]; !exists {
		idx.pathBySig[sig] = path
		idx.sigOrder = append(idx.sigOrder, sig)
	}
}

// Paths returns all catalog paths in configured order.
func (idx *Index) Paths() []string { return idx.paths }

// TopLevelNames returns the configured top-level folder names in order.
func (idx *Index) TopLevelNames() []string {
	names := make([]string, 0, len(idx.catalog.Templates))
	for _, t := range idx.catalog.Templates {
		names = append(names, t.Name)
	}
	return names
}

// TagSlots returns the configured tag slots.
func (idx *Index) TagSlots() []domain.TagSlot { return idx.slots }

// Guidelines returns all context-tag guidelines across templates.
func (idx *Index) Guidelines() []domain.ContextTagGuideline { return idx.guidelines }

// SlotCount returns the number of slot assignments budgeted per message,
// never below three.
func (idx *Index) SlotCount() int {
	if len(idx.slots) > 3 {
		return len(idx.slots)
	}
	return 3
}

// MaxTagTotal caps the combined slot + context tag count per message.
func (idx *Index) MaxTagTotal() int {
	return idx.SlotCount() + len(idx.guidelines)
}

// Signature computes the normalized token signature of a folder name:
// lowercase, separators and non-alphanumerics stripped, stopwords dropped.
func Signature(name string) string {
	var sb strings.Builder
	for _, token := range splitTokens(name) {
		if sigStopwords[token] {
			continue
		}
		sb.WriteString(token)
	}
	return sb.String()
}

func splitTokens(name string) []string {
	lowered := strings.ToLower(name)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		}
		return true
	})
}

// Canonicalize maps a possibly fuzzy folder name to an exact catalog path.
// Exact case-insensitive matches (including suffix-trimmed variants, so a
// full IMAP path still matches a catalog leaf) score 100; otherwise the best
// signature ratio across the catalog wins. Matches rating below threshold are
// discarded.
func (idx *Index) Canonicalize(name string, threshold float64) (string, float64, bool) {
	trimmed := strings.Trim(strings.TrimSpace(name), "/")
	if trimmed == "" || len(idx.paths) == 0 {
		return "", 0, false
	}

	variants := suffixVariants(trimmed)
	for _, variant := range variants {
		for _, path := range idx.paths {
			if strings.EqualFold(variant, path) {
				return path, 100, true
			}
		}
	}

	bestPath := ""
	bestRatio := 0.0
	for _, variant := range variants {
		sig := Signature(variant)
		if sig == "" {
			continue
		}
		for _, candidate := range idx.sigOrder {
			ratio := matchRatio(sig, candidate)
			if ratio > bestRatio {
				bestRatio = ratio
				bestPath = idx.pathBySig[candidate]
			}
		}
	}

	rating := bestRatio * 100
	if bestPath == "" || rating < threshold {
		return "", 0, false
	}
	return bestPath, rating, true
}

// suffixVariants returns the name plus every variant with leading segments
// dropped, longest first.
func suffixVariants(name string) []string {
	segments := strings.Split(name, "/")
	variants := make([]string, 0, len(segments))
	for i := 0; i < len(segments); i++ {
		variant := strings.TrimSpace(strings.Join(segments[i:], "/"))
		if variant != "" {
			variants = append(variants, variant)
		}
	}
	return variants
}

// TopLevelForLabel resolves a label that names a top-level folder or one of
// its direct children to that top-level name.
func (idx *Index) TopLevelForLabel(label string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(label))
	if needle == "" {
		return "", false
	}
	for _, template := range idx.catalog.Templates {
		if strings.ToLower(template.Name) == needle {
			return template.Name, true
		}
		for _, child := range template.Children {
			if strings.ToLower(child.Name) == needle {
				return template.Name, true
			}
		}
	}
	return "", false
}

// EnsureTopLevelParent forces the first path segment to a configured
// top-level folder: exact match first, then substring containment either
// way, else the first configured top-level.
func (idx *Index) EnsureTopLevelParent(path string) string {
	topLevels := idx.TopLevelNames()
	if len(topLevels) == 0 {
		return path
	}
	if strings.TrimSpace(path) == "" {
		return topLevels[0]
	}
	first := strings.TrimSpace(strings.Split(path, "/")[0])
	if first == "" {
		return topLevels[0]
	}
	lowered := strings.ToLower(first)
	for _, candidate := range topLevels {
		if strings.ToLower(candidate) == lowered {
			return candidate
		}
	}
	for _, candidate := range topLevels {
		lc := strings.ToLower(candidate)
		if strings.Contains(lc, lowered) || strings.Contains(lowered, lc) {
			return candidate
		}
	}
	return topLevels[0]
}

// matchRatio is a difflib-style similarity ratio: 2*M/T where M is the
// length of the longest common subsequence and T the combined length.
// Bounded to [0,1]; 1 only for identical inputs.
func matchRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	m := lcsLength(a, b)
	return 2 * float64(m) / float64(len(a)+len(b))
}

func lcsLength(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
