// Package testutil provides test fakes and fixtures.
package testutil

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"linkpage/internal/event"
	"linkpage/internal/models"
	"linkpage/internal/relay"
)

// NewSigner generates a throwaway signing key for one test.
func NewSigner(t *testing.T) *event.KeySigner {
	t.Helper()

	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	signer, err := event.NewKeySigner(hex.EncodeToString(priv.Serialize()))
	if err != nil {
		t.Fatalf("failed to build test signer: %v", err)
	}
	return signer
}

// SignedLinkPage serializes a document into a signed link-page event.
func SignedLinkPage(t *testing.T, signer *event.KeySigner, storageKey string, doc *models.LinkTreeDocument, createdAt int64) event.Event {
	t.Helper()

	raw, err := models.Serialize(doc)
	if err != nil {
		t.Fatalf("failed to serialize test document: %v", err)
	}
	ev := event.NewLinkPage(storageKey, string(raw), createdAt)
	if err := signer.Sign(&ev); err != nil {
		t.Fatalf("failed to sign test event: %v", err)
	}
	return ev
}

// SignedProfile serializes identity metadata into a signed kind-0 event.
func SignedProfile(t *testing.T, signer *event.KeySigner, profile *models.Profile, createdAt int64) event.Event {
	t.Helper()

	raw, err := json.Marshal(profile)
	if err != nil {
		t.Fatalf("failed to serialize test profile: %v", err)
	}
	ev := event.Event{
		Kind:      event.KindProfileMetadata,
		CreatedAt: createdAt,
		Content:   string(raw),
	}
	if err := signer.Sign(&ev); err != nil {
		t.Fatalf("failed to sign test profile: %v", err)
	}
	return ev
}

// Clock is a controllable time source for cache and engine tests.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts at a fixed instant so tests are reproducible.
func NewClock() *Clock {
	return &Clock{current: time.Unix(1700000000, 0)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// FakeGateway is an in-memory relay.Gateway. Accepted publishes are stored
// and served back to matching queries, so engine and resolver tests can
// run a full publish/reload cycle without a network.
type FakeGateway struct {
	mu     sync.Mutex
	events []event.Event

	// QueryErr fails every Query when set.
	QueryErr error
	// PublishErr fails every Publish when set.
	PublishErr error
	// Receipt is returned by successful publishes. The zero value means
	// one relay out of one accepted.
	Receipt relay.Receipt
	// QueryDelay makes queries wait, or time out against short contexts.
	QueryDelay time.Duration

	queries   int
	publishes int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

// Seed stores events directly, as if other clients had published them.
func (g *FakeGateway) Seed(evs ...event.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, evs...)
}

func (g *FakeGateway) Query(ctx context.Context, f event.Filter) ([]event.Event, error) {
	if g.QueryDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.QueryDelay):
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries++
	if g.QueryErr != nil {
		return nil, g.QueryErr
	}

	var matched []event.Event
	for i := range g.events {
		if f.Match(&g.events[i]) {
			matched = append(matched, g.events[i])
		}
	}
	return matched, nil
}

func (g *FakeGateway) Publish(ctx context.Context, ev event.Event) (relay.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.publishes++
	if g.PublishErr != nil {
		return relay.Receipt{}, g.PublishErr
	}

	receipt := g.Receipt
	if receipt == (relay.Receipt{}) {
		receipt = relay.Receipt{Accepted: 1, Total: 1}
	}
	if receipt.Accepted > 0 {
		g.events = append(g.events, ev)
	}
	return receipt, nil
}

// Published returns a copy of everything the gateway has stored.
func (g *FakeGateway) Published() []event.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]event.Event(nil), g.events...)
}

// QueryCount reports how many queries have been served.
func (g *FakeGateway) QueryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queries
}

// PublishCount reports how many publishes have been attempted.
func (g *FakeGateway) PublishCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.publishes
}
