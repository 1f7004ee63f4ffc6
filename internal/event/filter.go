package event

import "encoding/json"

// Filter selects events on a relay. Zero-value fields are omitted from the
// wire form and match everything.
type Filter struct {
	Kinds       []int
	Authors     []string
	StorageKeys []string
	Limit       int
}

// filterJSON is the wire shape; the storage-key dimension is spelled "#d".
type filterJSON struct {
	Kinds       []int    `json:"kinds,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	StorageKeys []string `json:"#d,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal(filterJSON{
		Kinds:       f.Kinds,
		Authors:     f.Authors,
		StorageKeys: f.StorageKeys,
		Limit:       f.Limit,
	})
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var w filterJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.Kinds = w.Kinds
	f.Authors = w.Authors
	f.StorageKeys = w.StorageKeys
	f.Limit = w.Limit
	return nil
}

// Match reports whether ev satisfies every set dimension of the filter.
// Relays apply filters server-side; this is for local fakes and rechecks.
func (f Filter) Match(ev *Event) bool {
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, ev.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, ev.PubKey) {
		return false
	}
	if len(f.StorageKeys) > 0 && !containsString(f.StorageKeys, ev.StorageKey()) {
		return false
	}
	return true
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
