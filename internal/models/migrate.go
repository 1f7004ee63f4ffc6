package models

// LegacyDocument is the version 1 schema. Legacy documents were not
// slotted: the network has no record of which slug they belong to, so
// migration takes the slug from the caller.
type LegacyDocument struct {
	Version         string           `json:"version"`
	ProfileOverride *ProfileOverride `json:"profileOverride,omitempty"`
	Links           LinkItems        `json:"links"`
	Socials         []Social         `json:"socials"`
	Theme           *Theme           `json:"theme,omitempty"`
}

// MigrateV1 lifts a legacy document into the current schema. It is pure
// and total: any valid legacy document migrates without a failure mode.
// Links are preserved exactly. TreeMeta is derived from the legacy profile
// override name (when present) and the supplied slug; the original
// creation time is unrecoverable and stays zero.
func MigrateV1(legacy *LegacyDocument, slug string) *LinkTreeDocument {
	doc := &LinkTreeDocument{
		Version: SchemaVersionCurrent,
		TreeMeta: TreeMeta{
			Slug:      slug,
			IsDefault: slug == DefaultSlug,
		},
		Links:   LinkItems{},
		Socials: []Social{},
		Theme:   DefaultTheme(),
	}

	if legacy.ProfileOverride != nil {
		po := *legacy.ProfileOverride
		if legacy.ProfileOverride.ShowVerification != nil {
			v := *legacy.ProfileOverride.ShowVerification
			po.ShowVerification = &v
		}
		doc.ProfileOverride = &po
		doc.TreeMeta.Title = po.Name
	}
	for _, item := range legacy.Links {
		doc.Links = append(doc.Links, item.clone())
	}
	if len(legacy.Socials) > 0 {
		doc.Socials = append(doc.Socials, legacy.Socials...)
	}
	if legacy.Theme != nil {
		doc.Theme = *legacy.Theme
	}

	return doc
}
