// Package models defines the versioned link-page document schema, its
// wire codec, and the pure migration from the legacy schema.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"linkpage/internal/validation"
)

// Schema version tags carried in the document's version field.
const (
	SchemaVersionLegacy  = "1"
	SchemaVersionCurrent = "2"
)

// DefaultSlug addresses an owner's implicit default page. It is reserved:
// it can never be claimed as a custom, discoverable slug.
const DefaultSlug = "default"

// Document-wide bounds.
const (
	MaxLinks   = 50 // total links, root plus group members
	MaxSocials = 10
)

// LinkTreeDocument is the current (version 2) link-page document. It is
// published whole on every mutation; there is no partial persistence.
// Wire encoding is camelCase JSON for compatibility with documents
// published by existing clients.
type LinkTreeDocument struct {
	Version         string           `json:"version"`
	TreeMeta        TreeMeta         `json:"treeMeta"`
	ProfileOverride *ProfileOverride `json:"profileOverride,omitempty"`
	Links           LinkItems        `json:"links"`
	Socials         []Social         `json:"socials"`
	Theme           Theme            `json:"theme"`
}

// TreeMeta carries per-page metadata. Slug is immutable once created.
type TreeMeta struct {
	Slug      string `json:"slug"`
	Title     string `json:"title,omitempty"`
	IsDefault bool   `json:"isDefault"`
	CreatedAt int64  `json:"createdAt"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// ProfileOverride layers page-local overrides on top of the owner's
// externally-fetched identity metadata.
type ProfileOverride struct {
	Name             string `json:"name,omitempty"`
	Bio              string `json:"bio,omitempty"`
	Picture          string `json:"picture,omitempty"`
	HeaderImage      string `json:"headerImage,omitempty"`
	ShowVerification *bool  `json:"showVerification,omitempty"`
}

// Social is a platform + URL pair shown alongside the page links.
type Social struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// ValidationError reports a structurally invalid document or field. It is
// never retried automatically; the input itself is wrong.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NewDocument creates an empty document with the default theme for a slug
// the owner just chose. createdAt is unix seconds.
func NewDocument(slug, title string, createdAt int64) *LinkTreeDocument {
	return &LinkTreeDocument{
		Version: SchemaVersionCurrent,
		TreeMeta: TreeMeta{
			Slug:      slug,
			Title:     title,
			IsDefault: slug == DefaultSlug,
			CreatedAt: createdAt,
		},
		Links:   LinkItems{},
		Socials: []Social{},
		Theme:   DefaultTheme(),
	}
}

// Parse decodes a raw document payload. Current-schema payloads are
// validated as-is; legacy (version "1") payloads are migrated transparently
// with the supplied slug, so callers only ever see the current shape.
func Parse(raw []byte, slug string) (*LinkTreeDocument, error) {
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &ValidationError{Field: "document", Msg: "malformed JSON: " + err.Error()}
	}

	switch probe.Version {
	case SchemaVersionCurrent:
		var doc LinkTreeDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &ValidationError{Field: "document", Msg: "malformed document: " + err.Error()}
		}
		doc.normalize()
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		return &doc, nil
	case SchemaVersionLegacy:
		var legacy LegacyDocument
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil, &ValidationError{Field: "document", Msg: "malformed legacy document: " + err.Error()}
		}
		return MigrateV1(&legacy, slug), nil
	default:
		return nil, invalidf("version", "unsupported schema version %q", probe.Version)
	}
}

// Serialize encodes the document for publication. Output is stable for a
// given document and avoids HTML escaping so published payloads stay
// byte-comparable across clients.
func Serialize(d *LinkTreeDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	b := buf.Bytes()
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return b, nil
}

// Validate enforces the current-schema invariants. It does not check slug
// reservedness: reserved words only gate the creation of new custom slugs,
// and the default page legitimately uses a reserved slug.
func (d *LinkTreeDocument) Validate() error {
	if d.Version != SchemaVersionCurrent {
		return invalidf("version", "expected schema version %q, got %q", SchemaVersionCurrent, d.Version)
	}
	if !validation.ValidateSlug(d.TreeMeta.Slug) {
		return invalidf("treeMeta.slug", "invalid slug %q", d.TreeMeta.Slug)
	}
	if d.TreeMeta.Title != "" {
		if ok, msg := validation.ValidateTitle(d.TreeMeta.Title); !ok {
			return &ValidationError{Field: "treeMeta.title", Msg: msg}
		}
	}
	if d.TreeMeta.CreatedAt < 0 {
		return invalidf("treeMeta.createdAt", "must not be negative")
	}

	if n := d.CountLinks(); n > MaxLinks {
		return invalidf("links", "document holds %d links, limit is %d", n, MaxLinks)
	}
	if len(d.Socials) > MaxSocials {
		return invalidf("socials", "document holds %d socials, limit is %d", len(d.Socials), MaxSocials)
	}
	for i, s := range d.Socials {
		if s.Platform == "" || len(s.Platform) > 32 {
			return invalidf("socials", "entry %d: platform must be 1-32 characters", i)
		}
		if ok, msg := validation.ValidateURL(s.URL); !ok {
			return invalidf("socials", "entry %d: %s", i, msg)
		}
	}

	seen := make(map[string]struct{})
	for _, item := range d.Links {
		if err := item.validate(); err != nil {
			return err
		}
		if err := noteID(seen, item.ItemID()); err != nil {
			return err
		}
		if g, ok := item.(*LinkGroup); ok {
			for i := range g.Links {
				if err := noteID(seen, g.Links[i].ID); err != nil {
					return err
				}
			}
		}
	}

	return d.Theme.validate()
}

func noteID(seen map[string]struct{}, id string) error {
	if id == "" {
		return invalidf("links", "item is missing an id")
	}
	if _, dup := seen[id]; dup {
		return invalidf("links", "duplicate item id %q", id)
	}
	seen[id] = struct{}{}
	return nil
}

// CountLinks returns the total number of links in the document, counting
// both root links and group members. Groups themselves do not count.
func (d *LinkTreeDocument) CountLinks() int {
	n := 0
	for _, item := range d.Links {
		switch it := item.(type) {
		case *Link:
			n++
		case *LinkGroup:
			n += len(it.Links)
		}
	}
	return n
}

// FindLink locates a link anywhere in the document. The second return is
// the containing group, or nil when the link sits at the root.
func (d *LinkTreeDocument) FindLink(id string) (*Link, *LinkGroup) {
	for _, item := range d.Links {
		switch it := item.(type) {
		case *Link:
			if it.ID == id {
				return it, nil
			}
		case *LinkGroup:
			for i := range it.Links {
				if it.Links[i].ID == id {
					return &it.Links[i], it
				}
			}
		}
	}
	return nil, nil
}

// FindGroup locates a group by id.
func (d *LinkTreeDocument) FindGroup(id string) *LinkGroup {
	for _, item := range d.Links {
		if g, ok := item.(*LinkGroup); ok && g.ID == id {
			return g
		}
	}
	return nil
}

// Deleted reports whether the document carries the logical deletion marker.
func (d *LinkTreeDocument) Deleted() bool {
	return d.TreeMeta.Deleted
}

// Clone returns a deep copy. Mutation ops always work on clones so the
// authoritative document is never aliased by an optimistic projection.
func (d *LinkTreeDocument) Clone() *LinkTreeDocument {
	if d == nil {
		return nil
	}
	out := *d
	if d.ProfileOverride != nil {
		po := *d.ProfileOverride
		if d.ProfileOverride.ShowVerification != nil {
			v := *d.ProfileOverride.ShowVerification
			po.ShowVerification = &v
		}
		out.ProfileOverride = &po
	}
	out.Links = make(LinkItems, 0, len(d.Links))
	for _, item := range d.Links {
		out.Links = append(out.Links, item.clone())
	}
	out.Socials = append([]Social{}, d.Socials...)
	return &out
}

// normalize replaces nil collections with empty ones so parsed documents
// compare equal to constructed ones.
func (d *LinkTreeDocument) normalize() {
	if d.Links == nil {
		d.Links = LinkItems{}
	}
	if d.Socials == nil {
		d.Socials = []Social{}
	}
	for _, item := range d.Links {
		if g, ok := item.(*LinkGroup); ok && g.Links == nil {
			g.Links = []Link{}
		}
	}
}
