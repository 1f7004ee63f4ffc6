package models

// ResolveResponse contains the result of path resolution.
type ResolveResponse struct {
	Scheme     string `json:"scheme"`
	Owner      string `json:"owner"`
	Npub       string `json:"npub"`
	Slug       string `json:"slug"`
	StorageKey string `json:"storage_key"`
}

// SlugCheckResponse indicates whether a custom slug is available for
// claiming, and who holds it when it is not.
type SlugCheckResponse struct {
	Slug      string `json:"slug"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Owner     string `json:"owner,omitempty"`
}

// PageResponse is the public read view of a resolved page: the document
// plus the owner's merged identity metadata.
type PageResponse struct {
	Owner     string            `json:"owner"`
	Npub      string            `json:"npub"`
	Slug      string            `json:"slug"`
	UpdatedAt int64             `json:"updated_at"`
	Document  *LinkTreeDocument `json:"document"`
	Profile   *Profile          `json:"profile,omitempty"`
}

// SessionResponse is the authoring view of a session: the optimistic
// document with the engine's state flags.
type SessionResponse struct {
	Owner     string            `json:"owner"`
	Slug      string            `json:"slug"`
	State     string            `json:"state"`
	Saving    bool              `json:"saving"`
	Document  *LinkTreeDocument `json:"document"`
	LastError string            `json:"last_error,omitempty"`
}
