package models

import (
	"encoding/json"
	"time"

	"linkpage/internal/validation"
)

// Wire discriminator values for the two LinkItem variants.
const (
	ItemTypeLink  = "link"
	ItemTypeGroup = "group"
)

// LinkItem is the sum type over the two things a page may list at its
// root: a single link or a flat group of links. Groups never nest.
type LinkItem interface {
	// ItemID returns the item's document-unique id.
	ItemID() string
	// ItemTitle returns the display title.
	ItemTitle() string

	validate() error
	clone() LinkItem
	isLinkItem()
}

// Link is one clickable entry: a titled URL with optional emoji, a
// visibility flag, a click counter, and an optional scheduling window.
type Link struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Emoji    string    `json:"emoji,omitempty"`
	Visible  bool      `json:"visible"`
	Clicks   int64     `json:"clicks"`
	Schedule *Schedule `json:"schedule,omitempty"`
}

// Schedule bounds a link's visibility window in unix seconds. A zero
// bound is open-ended on that side.
type Schedule struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// LinkGroup is a flat, collapsible collection of links. Deleting a group
// relocates its links to the root; links are never discarded with it.
type LinkGroup struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Emoji     string `json:"emoji,omitempty"`
	Collapsed bool   `json:"collapsed"`
	Visible   bool   `json:"visible"`
	Links     []Link `json:"links"`
}

func (l *Link) ItemID() string    { return l.ID }
func (l *Link) ItemTitle() string { return l.Title }
func (l *Link) isLinkItem()       {}

func (g *LinkGroup) ItemID() string    { return g.ID }
func (g *LinkGroup) ItemTitle() string { return g.Title }
func (g *LinkGroup) isLinkItem()       {}

// ActiveAt reports whether the link should be shown at time t: it must be
// visible and inside its scheduling window, if any.
func (l *Link) ActiveAt(t time.Time) bool {
	if !l.Visible {
		return false
	}
	if l.Schedule == nil {
		return true
	}
	ts := t.Unix()
	if l.Schedule.Start > 0 && ts < l.Schedule.Start {
		return false
	}
	if l.Schedule.End > 0 && ts >= l.Schedule.End {
		return false
	}
	return true
}

func (l *Link) validate() error {
	if ok, msg := validation.ValidateTitle(l.Title); !ok {
		return &ValidationError{Field: "links", Msg: msg}
	}
	if ok, msg := validation.ValidateURL(l.URL); !ok {
		return &ValidationError{Field: "links", Msg: msg}
	}
	if len([]rune(l.Emoji)) > 16 {
		return invalidf("links", "emoji must be at most 16 characters")
	}
	if l.Clicks < 0 {
		return invalidf("links", "clicks must not be negative")
	}
	if s := l.Schedule; s != nil {
		if s.Start < 0 || s.End < 0 {
			return invalidf("links", "schedule bounds must not be negative")
		}
		if s.Start > 0 && s.End > 0 && s.End <= s.Start {
			return invalidf("links", "schedule end must be after its start")
		}
	}
	return nil
}

func (g *LinkGroup) validate() error {
	if ok, msg := validation.ValidateTitle(g.Title); !ok {
		return &ValidationError{Field: "links", Msg: msg}
	}
	if len([]rune(g.Emoji)) > 16 {
		return invalidf("links", "emoji must be at most 16 characters")
	}
	for i := range g.Links {
		if err := g.Links[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Link) clone() LinkItem {
	out := *l
	if l.Schedule != nil {
		s := *l.Schedule
		out.Schedule = &s
	}
	return &out
}

// CloneLink is the exported counterpart of clone for callers holding a
// concrete *Link.
func (l *Link) CloneLink() *Link {
	return l.clone().(*Link)
}

func (g *LinkGroup) clone() LinkItem {
	out := *g
	out.Links = make([]Link, len(g.Links))
	for i := range g.Links {
		out.Links[i] = *g.Links[i].clone().(*Link)
	}
	return &out
}

// LinkItems is the ordered root sequence of a page. It needs a custom
// codec because the variants share one JSON array, discriminated by the
// "type" field; items without one decode as plain links for tolerance of
// early payloads.
type LinkItems []LinkItem

func (items LinkItems) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		b, err := marshalItem(item)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

func marshalItem(item LinkItem) ([]byte, error) {
	switch it := item.(type) {
	case *Link:
		type alias Link
		return json.Marshal(struct {
			Type string `json:"type"`
			*alias
		}{ItemTypeLink, (*alias)(it)})
	case *LinkGroup:
		type alias LinkGroup
		return json.Marshal(struct {
			Type string `json:"type"`
			*alias
		}{ItemTypeGroup, (*alias)(it)})
	default:
		return nil, invalidf("links", "unknown item variant %T", item)
	}
}

func (items *LinkItems) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(LinkItems, 0, len(raw))
	for _, r := range raw {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(r, &probe); err != nil {
			return err
		}
		switch probe.Type {
		case ItemTypeGroup:
			var g LinkGroup
			if err := json.Unmarshal(r, &g); err != nil {
				return err
			}
			if g.Links == nil {
				g.Links = []Link{}
			}
			out = append(out, &g)
		case ItemTypeLink, "":
			var l Link
			if err := json.Unmarshal(r, &l); err != nil {
				return err
			}
			out = append(out, &l)
		default:
			return invalidf("links", "unknown item type %q", probe.Type)
		}
	}
	*items = out
	return nil
}
