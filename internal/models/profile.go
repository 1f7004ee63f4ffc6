package models

import "encoding/json"

// Profile is an owner's identity metadata as published on the network
// (kind 0). The page document never embeds it; clients fetch it separately
// and layer ProfileOverride on top.
type Profile struct {
	Name    string `json:"name,omitempty"`
	About   string `json:"about,omitempty"`
	Picture string `json:"picture,omitempty"`
	Banner  string `json:"banner,omitempty"`
	Nip05   string `json:"nip05,omitempty"`
}

// ParseProfile decodes a kind-0 content payload. Unknown fields are
// ignored; identity metadata in the wild carries plenty of extras.
func ParseProfile(raw []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ValidationError{Field: "profile", Msg: "malformed profile metadata: " + err.Error()}
	}
	return &p, nil
}

// MergeOverride returns the effective profile for a page: the base
// identity metadata with non-zero override fields applied. A false
// showVerification flag suppresses the verified-identity handle.
func (p *Profile) MergeOverride(o *ProfileOverride) *Profile {
	merged := Profile{}
	if p != nil {
		merged = *p
	}
	if o == nil {
		return &merged
	}
	if o.Name != "" {
		merged.Name = o.Name
	}
	if o.Bio != "" {
		merged.About = o.Bio
	}
	if o.Picture != "" {
		merged.Picture = o.Picture
	}
	if o.HeaderImage != "" {
		merged.Banner = o.HeaderImage
	}
	if o.ShowVerification != nil && !*o.ShowVerification {
		merged.Nip05 = ""
	}
	return &merged
}
