package models

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testDocument(t *testing.T) *LinkTreeDocument {
	t.Helper()
	show := true
	doc := NewDocument("my-links", "My Links", 1700000000)
	doc.ProfileOverride = &ProfileOverride{
		Name:             "Alice",
		Bio:              "hi there",
		Picture:          "https://example.com/alice.png",
		ShowVerification: &show,
	}
	doc.Links = LinkItems{
		&Link{ID: "l1", Title: "Site", URL: "https://example.com", Visible: true, Clicks: 3},
		&LinkGroup{
			ID: "g1", Title: "Projects", Emoji: "🛠", Visible: true,
			Links: []Link{
				{ID: "l2", Title: "Repo", URL: "https://example.com/repo", Visible: true},
				{ID: "l3", Title: "Docs", URL: "https://example.com/docs", Visible: false,
					Schedule: &Schedule{Start: 100, End: 200}},
			},
		},
		&Link{ID: "l4", Title: "Blog", URL: "https://example.com/blog", Visible: true,
			Schedule: &Schedule{Start: 1700000000}},
	}
	doc.Socials = []Social{
		{Platform: "github", URL: "https://github.com/alice"},
		{Platform: "mastodon", URL: "https://example.social/@alice"},
	}
	return doc
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument("my-links", "My Links", 1700000000)

	if doc.Version != SchemaVersionCurrent {
		t.Errorf("Version = %q, want %q", doc.Version, SchemaVersionCurrent)
	}
	if doc.TreeMeta.Slug != "my-links" || doc.TreeMeta.Title != "My Links" {
		t.Errorf("TreeMeta = %+v, want slug my-links title My Links", doc.TreeMeta)
	}
	if doc.TreeMeta.IsDefault {
		t.Error("IsDefault = true for a custom slug, want false")
	}
	if len(doc.Links) != 0 || len(doc.Socials) != 0 {
		t.Errorf("new document has %d links and %d socials, want 0 and 0", len(doc.Links), len(doc.Socials))
	}
	if doc.Theme != DefaultTheme() {
		t.Errorf("Theme = %+v, want default", doc.Theme)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("Validate() on new document = %v, want nil", err)
	}

	def := NewDocument(DefaultSlug, "", 0)
	if !def.TreeMeta.IsDefault {
		t.Error("IsDefault = false for the default slug, want true")
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	doc := testDocument(t)

	raw, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	got, err := Parse(raw, "my-links")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("Parse(Serialize(doc)) != doc\ngot:  %+v\nwant: %+v", got, doc)
	}
}

func TestSerializeIsStable(t *testing.T) {
	doc := testDocument(t)

	first, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	second, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("Serialize() is not stable:\n%s\n%s", first, second)
	}
	if strings.Contains(string(first), `<`) {
		t.Errorf("Serialize() HTML-escapes output: %s", first)
	}
}

func TestParseItemDiscrimination(t *testing.T) {
	raw := []byte(`{
		"version": "2",
		"treeMeta": {"slug": "my-links", "isDefault": false, "createdAt": 1},
		"links": [
			{"type": "link", "id": "l1", "title": "Site", "url": "https://example.com", "visible": true, "clicks": 0},
			{"type": "group", "id": "g1", "title": "Work", "collapsed": false, "visible": true, "links": [
				{"id": "l2", "title": "Repo", "url": "https://example.com/r", "visible": true, "clicks": 0}
			]},
			{"id": "l3", "title": "Untyped", "url": "https://example.com/u", "visible": true, "clicks": 0}
		],
		"socials": [],
		"theme": {"mode": "system", "palette": "classic", "radius": "medium", "font": "sans"}
	}`)

	doc, err := Parse(raw, "my-links")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(doc.Links) != 3 {
		t.Fatalf("Parse() decoded %d items, want 3", len(doc.Links))
	}
	if _, ok := doc.Links[0].(*Link); !ok {
		t.Errorf("item 0 decoded as %T, want *Link", doc.Links[0])
	}
	g, ok := doc.Links[1].(*LinkGroup)
	if !ok {
		t.Fatalf("item 1 decoded as %T, want *LinkGroup", doc.Links[1])
	}
	if len(g.Links) != 1 || g.Links[0].ID != "l2" {
		t.Errorf("group links = %+v, want one link l2", g.Links)
	}
	// Untyped items decode as plain links for tolerance of early payloads.
	if _, ok := doc.Links[2].(*Link); !ok {
		t.Errorf("item 2 decoded as %T, want *Link", doc.Links[2])
	}
}

func TestParseRejectsUnknownItemType(t *testing.T) {
	raw := []byte(`{
		"version": "2",
		"treeMeta": {"slug": "my-links", "isDefault": false, "createdAt": 1},
		"links": [{"type": "widget", "id": "w1", "title": "Nope"}],
		"socials": [],
		"theme": {"mode": "system", "palette": "classic", "radius": "medium", "font": "sans"}
	}`)

	_, err := Parse(raw, "my-links")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Parse() error = %v, want *ValidationError", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"unsupported version", `{"version":"9"}`},
		{"bad slug", `{"version":"2","treeMeta":{"slug":"Bad Slug","createdAt":1},"links":[],"socials":[],"theme":{"mode":"system","palette":"classic","radius":"medium","font":"sans"}}`},
		{"bad theme", `{"version":"2","treeMeta":{"slug":"ok","createdAt":1},"links":[],"socials":[],"theme":{"mode":"neon","palette":"classic","radius":"medium","font":"sans"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw), "ok")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Parse() error = %v, want *ValidationError", err)
			}
		})
	}
}

func TestValidateBounds(t *testing.T) {
	t.Run("too many links", func(t *testing.T) {
		doc := NewDocument("my-links", "", 1)
		group := &LinkGroup{ID: "g", Title: "G", Visible: true}
		for i := 0; i < 26; i++ {
			doc.Links = append(doc.Links, &Link{
				ID: "r" + string(rune('a'+i)), Title: "L", URL: "https://example.com", Visible: true,
			})
			group.Links = append(group.Links, Link{
				ID: "g" + string(rune('a'+i)), Title: "L", URL: "https://example.com", Visible: true,
			})
		}
		doc.Links = append(doc.Links, group)
		if doc.CountLinks() != 52 {
			t.Fatalf("CountLinks() = %d, want 52", doc.CountLinks())
		}
		if err := doc.Validate(); err == nil {
			t.Error("Validate() = nil for 52 links, want error")
		}
	})

	t.Run("too many socials", func(t *testing.T) {
		doc := NewDocument("my-links", "", 1)
		for i := 0; i < MaxSocials+1; i++ {
			doc.Socials = append(doc.Socials, Social{Platform: "x", URL: "https://example.com"})
		}
		if err := doc.Validate(); err == nil {
			t.Error("Validate() = nil for 11 socials, want error")
		}
	})

	t.Run("duplicate ids across root and group", func(t *testing.T) {
		doc := NewDocument("my-links", "", 1)
		doc.Links = LinkItems{
			&Link{ID: "dup", Title: "A", URL: "https://example.com", Visible: true},
			&LinkGroup{ID: "g", Title: "G", Visible: true, Links: []Link{
				{ID: "dup", Title: "B", URL: "https://example.com", Visible: true},
			}},
		}
		if err := doc.Validate(); err == nil {
			t.Error("Validate() = nil for duplicate ids, want error")
		}
	})

	t.Run("schedule end before start", func(t *testing.T) {
		doc := NewDocument("my-links", "", 1)
		doc.Links = LinkItems{
			&Link{ID: "l", Title: "A", URL: "https://example.com", Visible: true,
				Schedule: &Schedule{Start: 200, End: 100}},
		}
		if err := doc.Validate(); err == nil {
			t.Error("Validate() = nil for inverted schedule, want error")
		}
	})
}

func TestCountLinks(t *testing.T) {
	doc := testDocument(t)
	if got := doc.CountLinks(); got != 4 {
		t.Errorf("CountLinks() = %d, want 4", got)
	}
}

func TestFindLink(t *testing.T) {
	doc := testDocument(t)

	link, group := doc.FindLink("l1")
	if link == nil || link.ID != "l1" || group != nil {
		t.Errorf("FindLink(l1) = (%+v, %+v), want root link", link, group)
	}

	link, group = doc.FindLink("l2")
	if link == nil || link.ID != "l2" {
		t.Fatalf("FindLink(l2) link = %+v, want l2", link)
	}
	if group == nil || group.ID != "g1" {
		t.Errorf("FindLink(l2) group = %+v, want g1", group)
	}

	link, group = doc.FindLink("missing")
	if link != nil || group != nil {
		t.Errorf("FindLink(missing) = (%+v, %+v), want nils", link, group)
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc := testDocument(t)
	clone := doc.Clone()

	if !reflect.DeepEqual(doc, clone) {
		t.Fatal("Clone() is not equal to the original")
	}

	clone.TreeMeta.Title = "changed"
	clone.Links[0].(*Link).Title = "changed"
	clone.Links[1].(*LinkGroup).Links[0].Title = "changed"
	clone.Socials[0].Platform = "changed"
	clone.ProfileOverride.Name = "changed"
	*clone.ProfileOverride.ShowVerification = false

	if doc.TreeMeta.Title == "changed" {
		t.Error("Clone() shares TreeMeta with the original")
	}
	if doc.Links[0].(*Link).Title == "changed" {
		t.Error("Clone() shares root links with the original")
	}
	if doc.Links[1].(*LinkGroup).Links[0].Title == "changed" {
		t.Error("Clone() shares group links with the original")
	}
	if doc.Socials[0].Platform == "changed" {
		t.Error("Clone() shares socials with the original")
	}
	if doc.ProfileOverride.Name == "changed" || !*doc.ProfileOverride.ShowVerification {
		t.Error("Clone() shares the profile override with the original")
	}
}

func TestLinkActiveAt(t *testing.T) {
	now := time.Unix(1000, 0)
	tests := []struct {
		name string
		link Link
		want bool
	}{
		{"visible no schedule", Link{Visible: true}, true},
		{"hidden", Link{Visible: false}, false},
		{"inside window", Link{Visible: true, Schedule: &Schedule{Start: 500, End: 1500}}, true},
		{"before start", Link{Visible: true, Schedule: &Schedule{Start: 1500}}, false},
		{"after end", Link{Visible: true, Schedule: &Schedule{End: 1000}}, false},
		{"open start", Link{Visible: true, Schedule: &Schedule{End: 1500}}, true},
		{"open end", Link{Visible: true, Schedule: &Schedule{Start: 500}}, true},
		{"hidden inside window", Link{Visible: false, Schedule: &Schedule{Start: 500, End: 1500}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.ActiveAt(now); got != tt.want {
				t.Errorf("ActiveAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseNormalizesNilCollections(t *testing.T) {
	raw := []byte(`{
		"version": "2",
		"treeMeta": {"slug": "my-links", "isDefault": false, "createdAt": 1},
		"theme": {"mode": "system", "palette": "classic", "radius": "medium", "font": "sans"}
	}`)

	doc, err := Parse(raw, "my-links")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Links == nil || doc.Socials == nil {
		t.Errorf("Parse() left nil collections: links=%v socials=%v", doc.Links, doc.Socials)
	}
}

func TestProfileMergeOverride(t *testing.T) {
	base := &Profile{Name: "alice", About: "base bio", Picture: "p.png", Nip05: "alice@example.com"}
	hide := false

	tests := []struct {
		name     string
		base     *Profile
		override *ProfileOverride
		want     Profile
	}{
		{"nil override keeps base", base, nil,
			Profile{Name: "alice", About: "base bio", Picture: "p.png", Nip05: "alice@example.com"}},
		{"override wins where set", base, &ProfileOverride{Name: "Alice B", Bio: "override"},
			Profile{Name: "Alice B", About: "override", Picture: "p.png", Nip05: "alice@example.com"}},
		{"hide verification", base, &ProfileOverride{ShowVerification: &hide},
			Profile{Name: "alice", About: "base bio", Picture: "p.png"}},
		{"nil base uses override only", nil, &ProfileOverride{Name: "Solo"},
			Profile{Name: "Solo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.base.MergeOverride(tt.override)
			if *got != tt.want {
				t.Errorf("MergeOverride() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseProfileIgnoresExtras(t *testing.T) {
	p, err := ParseProfile([]byte(`{"name":"alice","about":"hi","lud16":"alice@pay.example","unknown":42}`))
	if err != nil {
		t.Fatalf("ParseProfile() error = %v", err)
	}
	if p.Name != "alice" || p.About != "hi" {
		t.Errorf("ParseProfile() = %+v, want name alice about hi", p)
	}

	if _, err := ParseProfile([]byte(`not json`)); err == nil {
		t.Error("ParseProfile(malformed) = nil error, want error")
	}
}

func TestSerializeWireShape(t *testing.T) {
	doc := testDocument(t)
	raw, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("output is not a JSON object: %v", err)
	}
	for _, key := range []string{"version", "treeMeta", "profileOverride", "links", "socials", "theme"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("serialized document is missing %q", key)
		}
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(wire["links"], &items); err != nil {
		t.Fatalf("links are not a JSON array: %v", err)
	}
	if got := string(items[0]["type"]); got != `"link"` {
		t.Errorf("item 0 type = %s, want \"link\"", got)
	}
	if got := string(items[1]["type"]); got != `"group"` {
		t.Errorf("item 1 type = %s, want \"group\"", got)
	}
}
