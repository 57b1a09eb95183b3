package domain

import "strings"

// FolderChild is a nested entry inside a folder template. Children may nest
// recursively; paths are the /-joined ancestor chains.
type FolderChild struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Children    []FolderChild `json:"children,omitempty"`
}

// ContextTagGuideline describes a free-form tag the model may emit for
// messages landing under a specific top-level folder.
type ContextTagGuideline struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Folder      string `json:"folder,omitempty"`
}

// FolderTemplate is a configured top-level folder with its subtree.
type FolderTemplate struct {
	Name          string                `json:"name"`
	Description   string                `json:"description,omitempty"`
	Children      []FolderChild         `json:"children,omitempty"`
	TagGuidelines []ContextTagGuideline `json:"tag_guidelines,omitempty"`
}

// TagSlot is a named tag dimension with a closed option set. At most one
// resolved value per slot per message.
type TagSlot struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// FolderCatalog is the configured folder-template hierarchy plus tag-slot
// definitions. It is the allowed vocabulary for classification.
type FolderCatalog struct {
	Templates []FolderTemplate `json:"folder_templates"`
	TagSlots  []TagSlot        `json:"tag_slots"`
}

// Normalize trims names and drops empty entries so that sibling names stay
// unique after trimming.
func (c *FolderCatalog) Normalize() {
	templates := c.Templates[:0]
	for _, t := range c.Templates {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			continue
		}
		t.Children = normalizeChildren(t.Children)
		templates = append(templates, t)
	}
	c.Templates = templates

	slots := c.TagSlots[:0]
	for _, s := range c.TagSlots {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			continue
		}
		slots = append(slots, s)
	}
	c.TagSlots = slots
}

func normalizeChildren(children []FolderChild) []FolderChild {
	out := children[:0]
	for _, child := range children {
		child.Name = strings.TrimSpace(child.Name)
		if child.Name == "" {
			continue
		}
		child.Children = normalizeChildren(child.Children)
		out = append(out, child)
	}
	return out
}
