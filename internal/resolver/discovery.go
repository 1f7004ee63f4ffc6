package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"linkpage/internal/event"
	"linkpage/internal/metrics"
	"linkpage/internal/models"
	"linkpage/internal/validation"
)

// SlugMatch is a discovery result: the owner holding a slug and their
// document.
type SlugMatch struct {
	Owner     string
	Document  *models.LinkTreeDocument
	UpdatedAt int64
	EventID   string
}

// clone returns a copy safe for callers to hold. Cache entries stay
// immutable.
func (m SlugMatch) clone() *SlugMatch {
	c := m
	if m.Document != nil {
		c.Document = m.Document.Clone()
	}
	return &c
}

// slugOwners remembers the last owner seen per slug, so two equally fresh
// claims do not flap between owners when the cached body has expired.
type slugOwners struct {
	mu   sync.Mutex
	last map[string]string
}

func (s *slugOwners) get(slug string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[slug]
}

func (s *slugOwners) set(slug, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[slug] = owner
}

// FindBySlug discovers which owner, if any, has published a page under
// slug. The newest publish wins; a timestamp tie goes to the previously
// seen owner, then to the smaller event id. Deleted pages do not hold a
// slug.
func (r *Resolver) FindBySlug(ctx context.Context, slug string) (*SlugMatch, error) {
	slug = validation.NormalizeSlug(slug)
	if !validation.ValidateSlug(slug) {
		return nil, fmt.Errorf("%w: invalid slug %q", ErrResolution, slug)
	}

	if m, ok := r.slugCache.Get(slug); ok {
		metrics.RecordCacheLookup("slug", "hit")
		return m.clone(), nil
	}
	metrics.RecordCacheLookup("slug", "miss")

	ctx, cancel := context.WithTimeout(ctx, r.discoveryTimeout)
	defer cancel()

	events, err := r.gateway.Query(ctx, event.Filter{
		Kinds:       []int{event.KindLinkPage},
		StorageKeys: []string{StorageKey(slug)},
		Limit:       16,
	})
	if err != nil {
		return nil, fmt.Errorf("slug discovery: %w", err)
	}

	match := r.pickSlugWinner(slug, events)
	if match == nil {
		return nil, ErrNotFound
	}

	r.slugCache.Set(slug, *match)
	r.owners.set(slug, match.Owner)
	return match.clone(), nil
}

func (r *Resolver) pickSlugWinner(slug string, events []event.Event) *SlugMatch {
	if len(events) == 0 {
		return nil
	}
	preferred := r.owners.get(slug)
	sort.Slice(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		if (a.PubKey == preferred) != (b.PubKey == preferred) {
			return a.PubKey == preferred
		}
		return a.ID < b.ID
	})

	for i := range events {
		doc, err := models.Parse([]byte(events[i].Content), slug)
		if err != nil {
			r.logger.Debug("skipping malformed page document", "event", events[i].ID, "error", err)
			continue
		}
		if doc.Deleted() {
			continue
		}
		return &SlugMatch{
			Owner:     events[i].PubKey,
			Document:  doc,
			UpdatedAt: events[i].CreatedAt,
			EventID:   events[i].ID,
		}
	}
	return nil
}

// NotePublish refreshes discovery state after a local publish so reads on
// this node see the new document without waiting out the cache TTL. A
// deletion releases the slug instead.
func (r *Resolver) NotePublish(owner, slug string, doc *models.LinkTreeDocument, updatedAt int64, eventID string) {
	if slug == models.DefaultSlug {
		return
	}
	if doc == nil || doc.Deleted() {
		r.slugCache.Delete(slug)
		return
	}
	r.slugCache.Set(slug, SlugMatch{
		Owner:     owner,
		Document:  doc.Clone(),
		UpdatedAt: updatedAt,
		EventID:   eventID,
	})
	r.owners.set(slug, owner)
}

// SlugAvailability reports whether a slug can be claimed. Reserved and
// malformed slugs are unavailable without consulting the network.
type SlugAvailability struct {
	Slug      string
	Available bool
	Reason    string
	Owner     string
}

// CheckSlugAvailability runs slug discovery restricted to presence. It
// never exposes the discovered document.
func (r *Resolver) CheckSlugAvailability(ctx context.Context, slug string) (*SlugAvailability, error) {
	norm := validation.NormalizeSlug(slug)
	if !validation.ValidateSlug(norm) {
		return &SlugAvailability{Slug: norm, Reason: "invalid"}, nil
	}
	if validation.IsReservedSlug(norm) {
		return &SlugAvailability{Slug: norm, Reason: "reserved"}, nil
	}

	match, err := r.FindBySlug(ctx, norm)
	switch {
	case errors.Is(err, ErrNotFound):
		return &SlugAvailability{Slug: norm, Available: true}, nil
	case err != nil:
		return nil, err
	default:
		return &SlugAvailability{Slug: norm, Reason: "taken", Owner: match.Owner}, nil
	}
}

// FetchProfile returns the owner's identity metadata, or nil when the
// owner has published none. Absence is cached like any other answer.
func (r *Resolver) FetchProfile(ctx context.Context, owner string) (*models.Profile, error) {
	if p, ok := r.profileCache.Get(owner); ok {
		metrics.RecordCacheLookup("profile", "hit")
		if p == (models.Profile{}) {
			return nil, nil
		}
		val := p
		return &val, nil
	}
	metrics.RecordCacheLookup("profile", "miss")

	ctx, cancel := context.WithTimeout(ctx, r.discoveryTimeout)
	defer cancel()

	events, err := r.gateway.Query(ctx, event.Filter{
		Kinds:   []int{event.KindProfileMetadata},
		Authors: []string{owner},
		Limit:   4,
	})
	if err != nil {
		return nil, fmt.Errorf("profile fetch: %w", err)
	}

	var best *event.Event
	for i := range events {
		ev := &events[i]
		if best == nil || ev.CreatedAt > best.CreatedAt ||
			(ev.CreatedAt == best.CreatedAt && ev.ID < best.ID) {
			best = ev
		}
	}
	if best == nil {
		r.profileCache.Set(owner, models.Profile{})
		return nil, nil
	}

	profile, err := models.ParseProfile([]byte(best.Content))
	if err != nil {
		r.logger.Debug("malformed profile metadata", "owner", owner, "error", err)
		r.profileCache.Set(owner, models.Profile{})
		return nil, nil
	}
	r.profileCache.Set(owner, *profile)
	val := *profile
	return &val, nil
}
