package models

import (
	"reflect"
	"testing"
)

func legacyDocument() *LegacyDocument {
	return &LegacyDocument{
		Version: SchemaVersionLegacy,
		ProfileOverride: &ProfileOverride{
			Name: "Alice",
			Bio:  "legacy bio",
		},
		Links: LinkItems{
			&Link{ID: "l1", Title: "Site", URL: "https://example.com", Visible: true, Clicks: 7},
			&LinkGroup{ID: "g1", Title: "Work", Visible: true, Links: []Link{
				{ID: "l2", Title: "Repo", URL: "https://example.com/repo", Visible: true},
			}},
		},
		Socials: []Social{{Platform: "github", URL: "https://github.com/alice"}},
	}
}

func TestMigrateV1(t *testing.T) {
	legacy := legacyDocument()
	doc := MigrateV1(legacy, "my-links")

	if doc.Version != SchemaVersionCurrent {
		t.Errorf("Version = %q, want %q", doc.Version, SchemaVersionCurrent)
	}
	if doc.TreeMeta.Slug != "my-links" {
		t.Errorf("TreeMeta.Slug = %q, want my-links", doc.TreeMeta.Slug)
	}
	if doc.TreeMeta.Title != "Alice" {
		t.Errorf("TreeMeta.Title = %q, want the legacy profile name", doc.TreeMeta.Title)
	}
	if doc.TreeMeta.IsDefault {
		t.Error("IsDefault = true for a custom slug, want false")
	}
	if doc.TreeMeta.CreatedAt != 0 {
		t.Errorf("CreatedAt = %d, want 0 (unrecoverable)", doc.TreeMeta.CreatedAt)
	}
	if !reflect.DeepEqual(doc.Links, legacy.Links) {
		t.Errorf("links not preserved exactly:\ngot:  %+v\nwant: %+v", doc.Links, legacy.Links)
	}
	if !reflect.DeepEqual(doc.Socials, legacy.Socials) {
		t.Errorf("socials not preserved: got %+v, want %+v", doc.Socials, legacy.Socials)
	}
	if doc.Theme != DefaultTheme() {
		t.Errorf("Theme = %+v, want default (legacy had none)", doc.Theme)
	}
}

func TestMigrateV1DefaultSlug(t *testing.T) {
	doc := MigrateV1(legacyDocument(), DefaultSlug)
	if !doc.TreeMeta.IsDefault {
		t.Error("IsDefault = false for the default slug, want true")
	}
}

func TestMigrateV1KeepsLegacyTheme(t *testing.T) {
	legacy := legacyDocument()
	legacy.Theme = &Theme{Mode: ModeDark, Palette: "midnight", Radius: RadiusLarge, Font: FontMono}

	doc := MigrateV1(legacy, "my-links")
	if doc.Theme != *legacy.Theme {
		t.Errorf("Theme = %+v, want the legacy theme", doc.Theme)
	}
}

func TestMigrateV1EmptyLegacy(t *testing.T) {
	doc := MigrateV1(&LegacyDocument{Version: SchemaVersionLegacy}, "my-links")

	if doc.ProfileOverride != nil {
		t.Errorf("ProfileOverride = %+v, want nil", doc.ProfileOverride)
	}
	if doc.TreeMeta.Title != "" {
		t.Errorf("Title = %q, want empty (no legacy profile name)", doc.TreeMeta.Title)
	}
	if len(doc.Links) != 0 || len(doc.Socials) != 0 {
		t.Errorf("migrated empty legacy has %d links %d socials, want 0 0", len(doc.Links), len(doc.Socials))
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestMigrateV1DoesNotAliasLegacy(t *testing.T) {
	legacy := legacyDocument()
	doc := MigrateV1(legacy, "my-links")

	doc.Links[0].(*Link).Title = "changed"
	doc.ProfileOverride.Name = "changed"

	if legacy.Links[0].(*Link).Title == "changed" {
		t.Error("migrated document aliases the legacy links")
	}
	if legacy.ProfileOverride.Name == "changed" {
		t.Error("migrated document aliases the legacy profile override")
	}
}

func TestParseMigratesLegacyTransparently(t *testing.T) {
	raw := []byte(`{
		"version": "1",
		"profileOverride": {"name": "Alice"},
		"links": [
			{"type": "link", "id": "l1", "title": "Site", "url": "https://example.com", "visible": true, "clicks": 2}
		],
		"socials": []
	}`)

	doc, err := Parse(raw, "portfolio")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Version != SchemaVersionCurrent {
		t.Errorf("Version = %q, want %q after transparent migration", doc.Version, SchemaVersionCurrent)
	}
	if doc.TreeMeta.Slug != "portfolio" {
		t.Errorf("Slug = %q, want the caller-supplied portfolio", doc.TreeMeta.Slug)
	}
	if len(doc.Links) != 1 {
		t.Fatalf("links = %d, want 1", len(doc.Links))
	}
	link, ok := doc.Links[0].(*Link)
	if !ok || link.Clicks != 2 {
		t.Errorf("link = %+v, want preserved link with 2 clicks", doc.Links[0])
	}
}
