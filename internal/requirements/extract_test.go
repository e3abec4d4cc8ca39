package requirements

import (
	"strings"
	"testing"

	"github.com/tracevine/tracevine-backend/internal/types"
)

func TestRecoverItems_DirectArray(t *testing.T) {
	raw := `[{"title": "Login", "text": "Users can log in with email.", "type": "feature"}]`
	items := recoverItems(raw)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].Title != "Login" || items[0].Type != types.RequirementTypeFeature {
		t.Fatalf("item = %+v", items[0])
	}
}

func TestRecoverItems_FencedBlock(t *testing.T) {
	raw := "Here are the requirements:\n```json\n[{\"title\": \"Export\", \"text\": \"Export reports as CSV.\", \"type\": \"suggestion\"}]\n```\nLet me know if you need more."
	items := recoverItems(raw)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].Type != types.RequirementTypeSuggestion {
		t.Fatalf("type = %q", items[0].Type)
	}
}

func TestRecoverItems_BracketSlice(t *testing.T) {
	raw := `Sure! The extracted list is [{"title": "Sync", "text": "Incremental sync of repositories."}] as requested.`
	items := recoverItems(raw)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].Title != "Sync" {
		t.Fatalf("title = %q", items[0].Title)
	}
	// Unknown type defaults to feature.
	if items[0].Type != types.RequirementTypeFeature {
		t.Fatalf("type = %q", items[0].Type)
	}
}

func TestRecoverItems_Unrecoverable(t *testing.T) {
	for _, raw := range []string{
		"",
		"no json anywhere",
		"[not valid json]",
		`{"title": "an object, not an array"}`,
	} {
		if items := recoverItems(raw); items != nil {
			t.Fatalf("recoverItems(%q) = %+v, want nil", raw, items)
		}
	}
}

func TestRecoverItems_FillsMissingFields(t *testing.T) {
	raw := `[{"text": "First line becomes the title.\nMore detail follows."}, {"title": "Only a title"}]`
	items := recoverItems(raw)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Title != "First line becomes the title." {
		t.Fatalf("derived title = %q", items[0].Title)
	}
	if items[1].Text != "Only a title" {
		t.Fatalf("derived text = %q", items[1].Text)
	}
}

func TestRecoverItems_DropsEmptyEntries(t *testing.T) {
	raw := `[{"title": "", "text": ""}, {"title": "Real", "text": "Real text"}]`
	items := recoverItems(raw)
	if len(items) != 1 || items[0].Title != "Real" {
		t.Fatalf("items = %+v", items)
	}
}

func TestFallbackItem_WrapsDocument(t *testing.T) {
	doc := strings.Repeat("requirement prose ", 50)
	it := fallbackItem(doc)
	if it.Type != types.RequirementTypeFeature {
		t.Fatalf("type = %q", it.Type)
	}
	if len(it.Text) > 500 {
		t.Fatalf("excerpt = %d chars, want <= 500", len(it.Text))
	}
	if !strings.HasPrefix(it.Text, "requirement prose") {
		t.Fatalf("excerpt = %q", it.Text[:30])
	}
}
