package catalog

import (
	"testing"

	"sorter_server/core/domain"
)

func financeCatalog() domain.FolderCatalog {
	return domain.FolderCatalog{
		Templates: []domain.FolderTemplate{
			{
				Name: "Finance",
				Children: []domain.FolderChild{
					{Name: "Invoices"},
					{Name: "Taxes"},
				},
			},
			{
				Name: "Travel",
				Children: []domain.FolderChild{
					{Name: "Bookings"},
				},
			},
		},
		TagSlots: []domain.TagSlot{
			{Name: "year", Options: []string{"2025", "2026"}},
			{Name: "kind", Aliases: []string{"type"}, Options: []string{"invoice", "receipt"}},
		},
	}
}

func TestCanonicalizeExactAndPrefix(t *testing.T) {
	idx := NewIndex(financeCatalog())

	tests := []struct {
		name       string
		input      string
		wantPath   string
		wantRating float64
		wantFound  bool
	}{
		{"exact path", "Finance/Invoices", "Finance/Invoices", 100, true},
		{"case insensitive", "finance/invoices", "Finance/Invoices", 100, true},
		{"imap inbox prefix", "INBOX/Finance/Invoices", "Finance/Invoices", 100, true},
		{"leaf only fuzzy", "Invoices", "Finance/Invoices", 0, true},
		{"fuzzy near match", "Finance/Invoice", "Finance/Invoices", 0, true},
		{"unrelated name", "zzzzqqqq", "", 0, false},
		{"empty", "", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, rating, found := idx.Canonicalize(tt.input, 50)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if !found {
				return
			}
			if path != tt.wantPath {
				t.Errorf("path = %q, want %q", path, tt.wantPath)
			}
			if tt.wantRating > 0 && rating != tt.wantRating {
				t.Errorf("rating = %v, want %v", rating, tt.wantRating)
			}
			if tt.wantRating == 0 && rating < 50 {
				t.Errorf("fuzzy rating %v below threshold yet found", rating)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	idx := NewIndex(financeCatalog())
	for _, path := range idx.Paths() {
		got, rating, found := idx.Canonicalize(path, 50)
		if !found || got != path || rating != 100 {
			t.Errorf("Canonicalize(%q) = (%q, %v, %v), want identity at 100", path, got, rating, found)
		}
	}
}

func TestEnsureTopLevelParent(t *testing.T) {
	idx := NewIndex(financeCatalog())

	tests := []struct {
		input string
		want  string
	}{
		{"Finance", "Finance"},
		{"finance/Invoices", "Finance"},
		{"Fin", "Finance"},
		{"Unknown", "Finance"},
		{"", "Finance"},
		{"Travel/Anything", "Travel"},
	}
	for _, tt := range tests {
		if got := idx.EnsureTopLevelParent(tt.input); got != tt.want {
			t.Errorf("EnsureTopLevelParent(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTopLevelForLabel(t *testing.T) {
	idx := NewIndex(financeCatalog())

	if top, ok := idx.TopLevelForLabel("Taxes"); !ok || top != "Finance" {
		t.Errorf("child label = (%q, %v), want Finance", top, ok)
	}
	if top, ok := idx.TopLevelForLabel("travel"); !ok || top != "Travel" {
		t.Errorf("top label = (%q, %v), want Travel", top, ok)
	}
	if _, ok := idx.TopLevelForLabel("Nothing"); ok {
		t.Error("unknown label should not resolve")
	}
}

func TestSlotCountFloor(t *testing.T) {
	idx := NewIndex(financeCatalog())
	if got := idx.SlotCount(); got != 3 {
		t.Errorf("SlotCount = %d, want floor of 3", got)
	}

	many := financeCatalog()
	many.TagSlots = append(many.TagSlots,
		domain.TagSlot{Name: "a"}, domain.TagSlot{Name: "b"}, domain.TagSlot{Name: "c"})
	if got := NewIndex(many).SlotCount(); got != 5 {
		t.Errorf("SlotCount = %d, want 5", got)
	}
}

func TestSignature(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Finance/Invoices", "financeinvoices"},
		{"INBOX/Finance", "finance"},
		{"  Tax & Legal  ", "taxlegal"},
		{"INBOX", ""},
	}
	for _, tt := range tests {
		if got := Signature(tt.input); got != tt.want {
			t.Errorf("Signature(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
