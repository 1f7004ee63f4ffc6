package engine

import (
	"strings"

	"github.com/google/uuid"

	"linkpage/internal/models"
)

// Mutation is one step of the optimistic reducer: a pure function from
// document to document. It receives a private clone it may edit in place;
// nil means the page does not exist at that point in the reduction.
// Mutations capture copies of their parameters so replaying the pending
// queue over a new authoritative base is deterministic.
type Mutation func(*models.LinkTreeDocument) *models.LinkTreeDocument

// LinkParams creates a link. New links start visible with zero clicks.
type LinkParams struct {
	Title    string
	URL      string
	Emoji    string
	Schedule *models.Schedule
}

// LinkUpdate edits a link. Nil fields are left alone; ClearSchedule
// removes the scheduling window.
type LinkUpdate struct {
	Title         *string
	URL           *string
	Emoji         *string
	Schedule      *models.Schedule
	ClearSchedule bool
}

// GroupParams creates a group. New groups start visible and expanded.
type GroupParams struct {
	Title string
	Emoji string
}

// GroupUpdate edits a group. Nil fields are left alone.
type GroupUpdate struct {
	Title     *string
	Emoji     *string
	Collapsed *bool
}

// TreeMetaUpdate edits page metadata. Only the title is mutable; the slug
// is fixed for the life of the page.
type TreeMetaUpdate struct {
	Title *string
}

func newLink(p LinkParams) models.Link {
	return models.Link{
		ID:       uuid.NewString(),
		Title:    strings.TrimSpace(p.Title),
		URL:      strings.TrimSpace(p.URL),
		Emoji:    p.Emoji,
		Visible:  true,
		Schedule: cloneSchedule(p.Schedule),
	}
}

func newGroup(p GroupParams) models.LinkGroup {
	return models.LinkGroup{
		ID:      uuid.NewString(),
		Title:   strings.TrimSpace(p.Title),
		Emoji:   p.Emoji,
		Visible: true,
		Links:   []models.Link{},
	}
}

func cloneSchedule(s *models.Schedule) *models.Schedule {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

func cloneOverride(po *models.ProfileOverride) *models.ProfileOverride {
	if po == nil {
		return nil
	}
	out := *po
	if po.ShowVerification != nil {
		v := *po.ShowVerification
		out.ShowVerification = &v
	}
	return &out
}

// opCreate replaces a missing or deleted page with a fresh document.
func opCreate(doc *models.LinkTreeDocument) Mutation {
	fresh := doc.Clone()
	return func(cur *models.LinkTreeDocument) *models.LinkTreeDocument {
		if cur != nil && !cur.Deleted() {
			return cur
		}
		return fresh.Clone()
	}
}

// opDelete marks the page logically deleted. The network keeps the event;
// the marker plus emptied collections is what "gone" looks like.
func opDelete() Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		doc.TreeMeta.Deleted = true
		doc.ProfileOverride = nil
		doc.Links = models.LinkItems{}
		doc.Socials = []models.Social{}
		return doc
	}
}

func opAddLink(link models.Link) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		doc.Links = append(doc.Links, link.CloneLink())
		return doc
	}
}

func opUpdateLink(id string, u LinkUpdate) Mutation {
	u.Schedule = cloneSchedule(u.Schedule)
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		link, _ := doc.FindLink(id)
		if link == nil {
			return doc
		}
		if u.Title != nil {
			link.Title = strings.TrimSpace(*u.Title)
		}
		if u.URL != nil {
			link.URL = strings.TrimSpace(*u.URL)
		}
		if u.Emoji != nil {
			link.Emoji = *u.Emoji
		}
		switch {
		case u.ClearSchedule:
			link.Schedule = nil
		case u.Schedule != nil:
			link.Schedule = cloneSchedule(u.Schedule)
		}
		return doc
	}
}

func opDeleteLink(id string) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		removeLink(doc, id)
		return doc
	}
}

// opToggleVisibility flips a link's or a group's visible flag.
func opToggleVisibility(id string) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		if link, _ := doc.FindLink(id); link != nil {
			link.Visible = !link.Visible
			return doc
		}
		if g := doc.FindGroup(id); g != nil {
			g.Visible = !g.Visible
		}
		return doc
	}
}

func opAddGroup(group models.LinkGroup) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		g := group
		g.Links = append([]models.Link{}, group.Links...)
		doc.Links = append(doc.Links, &g)
		return doc
	}
}

func opUpdateGroup(id string, u GroupUpdate) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		g := doc.FindGroup(id)
		if g == nil {
			return doc
		}
		if u.Title != nil {
			g.Title = strings.TrimSpace(*u.Title)
		}
		if u.Emoji != nil {
			g.Emoji = *u.Emoji
		}
		if u.Collapsed != nil {
			g.Collapsed = *u.Collapsed
		}
		return doc
	}
}

// opDeleteGroup removes a group, splicing its links into the root at the
// group's position. Links are never discarded with their group.
func opDeleteGroup(id string) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		out := make(models.LinkItems, 0, len(doc.Links))
		for _, item := range doc.Links {
			g, ok := item.(*models.LinkGroup)
			if !ok || g.ID != id {
				out = append(out, item)
				continue
			}
			for i := range g.Links {
				l := g.Links[i]
				out = append(out, &l)
			}
		}
		doc.Links = out
		return doc
	}
}

// opMoveLink relocates a link to the end of the target group, or of the
// root when groupID is empty. An unknown link or target leaves the
// document untouched.
func opMoveLink(linkID, groupID string) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		if groupID != "" && doc.FindGroup(groupID) == nil {
			return doc
		}
		link, _ := doc.FindLink(linkID)
		if link == nil {
			return doc
		}
		moved := link.CloneLink()
		removeLink(doc, linkID)
		if groupID == "" {
			doc.Links = append(doc.Links, moved)
			return doc
		}
		g := doc.FindGroup(groupID)
		g.Links = append(g.Links, *moved)
		return doc
	}
}

// opReorder rearranges the root items to follow ids. Unknown ids are
// skipped and unlisted items keep their relative order at the end, so a
// stale order from the client cannot drop anything.
func opReorder(ids []string) Mutation {
	order := append([]string(nil), ids...)
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		byID := make(map[string]models.LinkItem, len(doc.Links))
		for _, item := range doc.Links {
			byID[item.ItemID()] = item
		}
		out := make(models.LinkItems, 0, len(doc.Links))
		used := make(map[string]bool, len(order))
		for _, id := range order {
			if item, ok := byID[id]; ok && !used[id] {
				out = append(out, item)
				used[id] = true
			}
		}
		for _, item := range doc.Links {
			if !used[item.ItemID()] {
				out = append(out, item)
			}
		}
		doc.Links = out
		return doc
	}
}

// opReorderGroup rearranges the links inside one group, with the same
// forgiving semantics as opReorder.
func opReorderGroup(groupID string, ids []string) Mutation {
	order := append([]string(nil), ids...)
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		g := doc.FindGroup(groupID)
		if g == nil {
			return doc
		}
		byID := make(map[string]models.Link, len(g.Links))
		for _, l := range g.Links {
			byID[l.ID] = l
		}
		out := make([]models.Link, 0, len(g.Links))
		used := make(map[string]bool, len(order))
		for _, id := range order {
			if l, ok := byID[id]; ok && !used[id] {
				out = append(out, l)
				used[id] = true
			}
		}
		for _, l := range g.Links {
			if !used[l.ID] {
				out = append(out, l)
			}
		}
		g.Links = out
		return doc
	}
}

func opUpdateTheme(theme models.Theme) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		doc.Theme = theme
		return doc
	}
}

func opUpdateTreeMeta(u TreeMetaUpdate) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		if u.Title != nil {
			doc.TreeMeta.Title = strings.TrimSpace(*u.Title)
		}
		return doc
	}
}

// opUpdateProfileOverride replaces the page's profile override; nil clears
// it so the externally-fetched identity metadata shows through untouched.
func opUpdateProfileOverride(po *models.ProfileOverride) Mutation {
	po = cloneOverride(po)
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		doc.ProfileOverride = cloneOverride(po)
		return doc
	}
}

func opUpdateSocials(socials []models.Social) Mutation {
	copied := append([]models.Social{}, socials...)
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		doc.Socials = append([]models.Social{}, copied...)
		return doc
	}
}

func opRecordClick(linkID string) Mutation {
	return func(doc *models.LinkTreeDocument) *models.LinkTreeDocument {
		if doc == nil {
			return nil
		}
		if link, _ := doc.FindLink(linkID); link != nil {
			link.Clicks++
		}
		return doc
	}
}

// removeLink deletes a link wherever it sits, root or group.
func removeLink(doc *models.LinkTreeDocument, id string) bool {
	for i, item := range doc.Links {
		switch it := item.(type) {
		case *models.Link:
			if it.ID == id {
				doc.Links = append(doc.Links[:i], doc.Links[i+1:]...)
				return true
			}
		case *models.LinkGroup:
			for j := range it.Links {
				if it.Links[j].ID == id {
					it.Links = append(it.Links[:j], it.Links[j+1:]...)
					return true
				}
			}
		}
	}
	return false
}
