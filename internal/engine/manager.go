// Package engine synchronizes link-page documents with the relay network.
// A Manager holds one authoring Session per slug of the configured owner
// key; each session keeps an authoritative document plus an optimistic
// projection and publishes full snapshots through a per-session FIFO
// worker. Reads for arbitrary owners go straight to the network.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"linkpage/internal/event"
	"linkpage/internal/models"
	"linkpage/internal/relay"
	"linkpage/internal/resolver"
	"linkpage/internal/validation"
)

// PublishObserver is told about confirmed publishes so read-path caches
// can reflect them without waiting for a relay round trip.
type PublishObserver interface {
	NotePublish(owner, slug string, doc *models.LinkTreeDocument, updatedAt int64, eventID string)
}

// Config assembles a Manager. Gateway is required. A nil Signer puts the
// node in read-only mode: fetches work, authoring sessions do not.
type Config struct {
	Gateway        relay.Gateway
	Signer         event.Signer
	Observer       PublishObserver
	LoadTimeout    time.Duration
	PublishTimeout time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 8 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Manager owns the authoring sessions of the configured key, one per slug,
// and serves one-shot document fetches for arbitrary owners.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager validates the configuration and returns a Manager. No network
// traffic happens until a session opens or a fetch runs.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("engine: gateway is required")
	}
	return &Manager{
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*Session),
	}, nil
}

// CanWrite reports whether a signing key is configured.
func (m *Manager) CanWrite() bool { return m.cfg.Signer != nil }

// Owner returns the configured key's public key as hex, or "" in
// read-only mode.
func (m *Manager) Owner() string {
	if m.cfg.Signer == nil {
		return ""
	}
	return m.cfg.Signer.PublicKey()
}

// Session returns the authoring session for one of the owner's slugs,
// starting its initial load on first use. Reserved words are rejected for
// custom slugs; the default slug is itself a reserved word and always
// allowed here.
func (m *Manager) Session(slug string) (*Session, error) {
	if m.cfg.Signer == nil {
		return nil, ErrReadOnly
	}
	slug = validation.NormalizeSlug(slug)
	if !validation.ValidateSlug(slug) {
		return nil, &models.ValidationError{Field: "slug", Msg: "invalid slug"}
	}
	if slug != models.DefaultSlug && validation.IsReservedSlug(slug) {
		return nil, &models.ValidationError{Field: "slug", Msg: "slug is reserved"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSessionClosed
	}
	if s, ok := m.sessions[slug]; ok {
		return s, nil
	}
	s := newSession(m.cfg, slug)
	m.sessions[slug] = s
	return s, nil
}

// Sessions returns the open sessions sorted by slug.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].slug < out[j].slug })
	return out
}

// Fetch loads the newest live document at owner/slug straight from the
// network, bypassing any open session. Deleted documents read as absent.
func (m *Manager) Fetch(ctx context.Context, owner, slug string) (*models.LinkTreeDocument, int64, error) {
	slug = validation.NormalizeSlug(slug)
	if !validation.ValidateSlug(slug) {
		return nil, 0, &models.ValidationError{Field: "slug", Msg: "invalid slug"}
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.LoadTimeout)
	defer cancel()
	doc, ts, err := fetchNewest(ctx, m.cfg.Gateway, owner, slug, m.cfg.Logger)
	if err != nil {
		return nil, 0, err
	}
	if doc.Deleted() {
		return nil, 0, ErrNotFound
	}
	return doc, ts, nil
}

// Close shuts every session down. In-flight publishes finish at the relay
// but their results are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// fetchNewest queries the relay set for the owner's document at a slug and
// returns the newest parseable version, deleted or not. Newest means
// highest created_at, ties broken by smaller event id; malformed payloads
// are skipped so one bad relay copy cannot shadow a good older one.
func fetchNewest(ctx context.Context, gw relay.Gateway, owner, slug string, logger *slog.Logger) (*models.LinkTreeDocument, int64, error) {
	key := resolver.StorageKey(slug)
	events, err := gw.Query(ctx, event.Filter{
		Kinds:       []int{event.KindLinkPage},
		Authors:     []string{owner},
		StorageKeys: []string{key},
		Limit:       8,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("load document: %w", err)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].ID < events[j].ID
	})
	for i := range events {
		ev := &events[i]
		if ev.PubKey != owner || ev.StorageKey() != key {
			continue
		}
		doc, err := models.Parse([]byte(ev.Content), slug)
		if err != nil {
			logger.Debug("skipping malformed page event", "event_id", ev.ID, "error", err)
			continue
		}
		return doc, ev.CreatedAt, nil
	}
	return nil, 0, ErrNotFound
}
