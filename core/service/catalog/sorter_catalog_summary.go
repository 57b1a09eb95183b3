package catalog

import (
	"fmt"
	"strings"
)

// FolderSummary renders the template hierarchy for prompt embedding.
func (idx *Index) FolderSummary() string {
	if len(idx.catalog.Templates) == 0 {
		return "No folder templates configured."
	}
	var lines []string
	for _, template := range idx.catalog.Templates {
		desc := template.Description
		if desc == "" {
			desc = "no description"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", template.Name, desc))
		if len(template.Children) > 0 {
			names := make([]string, 0, len(template.Children))
			for _, child := range template.Children {
				names = append(names, child.Name)
			}
			lines = append(lines, "  Subfolders: "+strings.Join(names, ", "))
		}
		if len(template.TagGuidelines) > 0 {
			parts := make([]string, 0, len(template.TagGuidelines))
			for _, g := range template.TagGuidelines {
				parts = append(parts, fmt.Sprintf("%s: %s", g.Name, g.Description))
			}
			lines = append(lines, "  Context tags: "+strings.Join(parts, "; "))
		}
	}
	return strings.Join(lines, "\n")
}

// TagSlotSummary renders the tag slots and their option sets.
func (idx *Index) TagSlotSummary() string {
	if len(idx.slots) == 0 {
		return "No tag slots configured."
	}
	var lines []string
	for _, slot := range idx.slots {
		options := "free-form"
		if len(slot.Options) > 0 {
			options = strings.Join(slot.Options, ", ")
		}
		desc := slot.Description
		if desc == "" {
			desc = "no description"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (options: %s)", slot.Name, desc, options))
	}
	return strings.Join(lines, "\n")
}

// ContextTagSummary renders the context-tag guidelines across all templates.
func (idx *Index) ContextTagSummary() string {
	if len(idx.guidelines) == 0 {
		return "No context tags configured."
	}
	var lines []string
	for _, g := range idx.guidelines {
		desc := g.Description
		if desc == "" {
			desc = "no description"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", g.Name, g.Folder, desc))
	}
	return strings.Join(lines, "\n")
}
