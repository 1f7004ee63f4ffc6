package relay

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/gorilla/websocket"

	"linkpage/internal/event"
)

// fakeRelay is an in-process relay speaking just enough of the wire
// protocol for pool tests.
type fakeRelay struct {
	t      *testing.T
	server *httptest.Server

	// events are served, post-filter, on every REQ.
	events []event.Event
	// accept is the OK verdict for published events.
	accept bool
	// mute suppresses EOSE and OK frames.
	mute bool

	mu        sync.Mutex
	published []event.Event
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	fr := &fakeRelay{t: t, accept: true}
	fr.server = httptest.NewServer(http.HandlerFunc(fr.handle))
	t.Cleanup(fr.server.Close)
	return fr
}

func (fr *fakeRelay) url() string {
	return "ws" + strings.TrimPrefix(fr.server.URL, "http")
}

func (fr *fakeRelay) publishedEvents() []event.Event {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return append([]event.Event(nil), fr.published...)
}

func (fr *fakeRelay) handle(w http.ResponseWriter, r *http.Request) {
	var upgrader websocket.Upgrader
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	send := func(frame []any) {
		payload, err := json.Marshal(frame)
		if err != nil {
			fr.t.Errorf("fake relay marshal: %v", err)
			return
		}
		ws.WriteMessage(websocket.TextMessage, payload)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil || len(parts) == 0 {
			continue
		}
		var label string
		if err := json.Unmarshal(parts[0], &label); err != nil {
			continue
		}

		switch label {
		case "REQ":
			var subID string
			var f event.Filter
			if len(parts) < 3 {
				continue
			}
			json.Unmarshal(parts[1], &subID)
			json.Unmarshal(parts[2], &f)
			for i := range fr.events {
				if f.Match(&fr.events[i]) {
					send([]any{"EVENT", subID, fr.events[i]})
				}
			}
			if !fr.mute {
				send([]any{"EOSE", subID})
			}
		case "EVENT":
			var ev event.Event
			if len(parts) < 2 {
				continue
			}
			json.Unmarshal(parts[1], &ev)
			fr.mu.Lock()
			fr.published = append(fr.published, ev)
			fr.mu.Unlock()
			if !fr.mute {
				send([]any{"OK", ev.ID, fr.accept, ""})
			}
		}
	}
}

func signedEvent(t *testing.T, storageKey, content string, createdAt int64) event.Event {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := event.NewKeySigner(hex.EncodeToString(priv.Serialize()))
	if err != nil {
		t.Fatalf("NewKeySigner() error = %v", err)
	}
	ev := event.NewLinkPage(storageKey, content, createdAt)
	if err := signer.Sign(&ev); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return ev
}

func newTestPool(t *testing.T, urls ...string) *Pool {
	t.Helper()
	pool, err := NewPool(Config{URLs: urls, DialTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()
	return u
}

func TestPoolQueryMergesAcrossRelays(t *testing.T) {
	shared := signedEvent(t, "linkpage", `{"n":1}`, 100)
	extra := signedEvent(t, "linkpage", `{"n":2}`, 200)

	relayA := newFakeRelay(t)
	relayA.events = []event.Event{shared}
	relayB := newFakeRelay(t)
	relayB.events = []event.Event{shared, extra}

	pool := newTestPool(t, relayA.url(), relayB.url())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := pool.Query(ctx, event.Filter{StorageKeys: []string{"linkpage"}})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Query() returned %d events, want 2", len(got))
	}
	ids := map[string]bool{got[0].ID: true, got[1].ID: true}
	if !ids[shared.ID] || !ids[extra.ID] {
		t.Errorf("Query() ids = %v, want %v and %v", ids, shared.ID, extra.ID)
	}
}

func TestPoolQueryAppliesFilter(t *testing.T) {
	work := signedEvent(t, "linkpage/work", `{"n":1}`, 100)
	home := signedEvent(t, "linkpage/home", `{"n":2}`, 200)

	relay := newFakeRelay(t)
	relay.events = []event.Event{work, home}

	pool := newTestPool(t, relay.url())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := pool.Query(ctx, event.Filter{StorageKeys: []string{"linkpage/work"}})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Query() returned %d events, want 1", len(got))
	}
	if got[0].ID != work.ID {
		t.Errorf("Query() id = %v, want %v", got[0].ID, work.ID)
	}
}

func TestPoolQueryPartialResultsOnDeadline(t *testing.T) {
	ev := signedEvent(t, "linkpage", `{"n":1}`, 100)

	relay := newFakeRelay(t)
	relay.events = []event.Event{ev}
	relay.mute = true

	pool := newTestPool(t, relay.url())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	got, err := pool.Query(ctx, event.Filter{StorageKeys: []string{"linkpage"}})
	if err != nil {
		t.Fatalf("Query() error = %v, want nil on deadline with partial results", err)
	}
	if len(got) != 1 {
		t.Errorf("Query() returned %d events, want 1", len(got))
	}
}

func TestPoolQuerySkipsDeadRelays(t *testing.T) {
	ev := signedEvent(t, "linkpage", `{"n":1}`, 100)
	live := newFakeRelay(t)
	live.events = []event.Event{ev}

	pool := newTestPool(t, deadURL(t), live.url())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := pool.Query(ctx, event.Filter{StorageKeys: []string{"linkpage"}})
	if err != nil {
		t.Fatalf("Query() error = %v, want nil with one live relay", err)
	}
	if len(got) != 1 {
		t.Errorf("Query() returned %d events, want 1", len(got))
	}
}

func TestPoolQueryAllRelaysUnreachable(t *testing.T) {
	pool := newTestPool(t, deadURL(t), deadURL(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := pool.Query(ctx, event.Filter{})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Query() error = %v, want ErrTransport", err)
	}
}

func TestPoolQueryDropsForgedEvents(t *testing.T) {
	valid := signedEvent(t, "linkpage", `{"n":1}`, 100)
	forged := signedEvent(t, "linkpage", `{"n":2}`, 200)
	forged.Content = `{"n":666}`

	relay := newFakeRelay(t)
	relay.events = []event.Event{forged, valid}

	pool := newTestPool(t, relay.url())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := pool.Query(ctx, event.Filter{StorageKeys: []string{"linkpage"}})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Query() returned %d events, want 1", len(got))
	}
	if got[0].ID != valid.ID {
		t.Errorf("Query() id = %v, want %v", got[0].ID, valid.ID)
	}
}

func TestPoolPublishCountsAcks(t *testing.T) {
	accepting := newFakeRelay(t)
	rejecting := newFakeRelay(t)
	rejecting.accept = false

	pool := newTestPool(t, accepting.url(), rejecting.url())

	ev := signedEvent(t, "linkpage", `{"n":1}`, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	receipt, err := pool.Publish(ctx, ev)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if receipt.Accepted != 1 || receipt.Total != 2 {
		t.Errorf("Publish() receipt = %+v, want Accepted=1 Total=2", receipt)
	}
	if got := accepting.publishedEvents(); len(got) != 1 || got[0].ID != ev.ID {
		t.Errorf("accepting relay stored %d events, want the published one", len(got))
	}
}

func TestPoolPublishUnacknowledged(t *testing.T) {
	silent := newFakeRelay(t)
	silent.mute = true

	pool := newTestPool(t, silent.url())

	ev := signedEvent(t, "linkpage", `{"n":1}`, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	receipt, err := pool.Publish(ctx, ev)
	if err != nil {
		t.Fatalf("Publish() error = %v, want nil for reachable silent relay", err)
	}
	if receipt.Accepted != 0 || receipt.Total != 1 {
		t.Errorf("Publish() receipt = %+v, want Accepted=0 Total=1", receipt)
	}
}

func TestPoolPublishAllRelaysUnreachable(t *testing.T) {
	pool := newTestPool(t, deadURL(t))

	ev := signedEvent(t, "linkpage", `{"n":1}`, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := pool.Publish(ctx, ev)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Publish() error = %v, want ErrTransport", err)
	}
}

func TestPoolClosedRejectsUse(t *testing.T) {
	relay := newFakeRelay(t)
	pool := newTestPool(t, relay.url())
	pool.Close()

	if _, err := pool.Query(context.Background(), event.Filter{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Query() after Close error = %v, want ErrClosed", err)
	}
	if _, err := pool.Publish(context.Background(), event.Event{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrClosed", err)
	}
}

func TestPoolRequiresRelays(t *testing.T) {
	if _, err := NewPool(Config{}); err == nil {
		t.Errorf("NewPool() with no URLs error = nil, want error")
	}
	if _, err := NewPool(Config{Relays: []Endpoint{{URL: "ws://x", Write: true}}}); err == nil {
		t.Errorf("NewPool() with no read relays error = nil, want error")
	}
	if _, err := NewPool(Config{Relays: []Endpoint{{URL: "ws://x", Read: true}}}); err == nil {
		t.Errorf("NewPool() with no write relays error = nil, want error")
	}
}

func TestPoolHonorsRelayRoles(t *testing.T) {
	readOnly := newFakeRelay(t)
	readOnly.events = []event.Event{signedEvent(t, "linkpage", `{"n":1}`, 100)}
	writeOnly := newFakeRelay(t)

	pool, err := NewPool(Config{
		Relays: []Endpoint{
			{URL: readOnly.url(), Read: true},
			{URL: writeOnly.url(), Write: true},
		},
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	t.Cleanup(pool.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := pool.Query(ctx, event.Filter{StorageKeys: []string{"linkpage"}})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Query() returned %d events, want 1 from the read relay", len(got))
	}

	ev := signedEvent(t, "linkpage", `{"n":2}`, 200)
	receipt, err := pool.Publish(ctx, ev)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if receipt.Accepted != 1 || receipt.Total != 1 {
		t.Errorf("Publish() receipt = %+v, want Accepted=1 Total=1", receipt)
	}
	if n := len(writeOnly.publishedEvents()); n != 1 {
		t.Errorf("write relay stored %d events, want 1", n)
	}
	if n := len(readOnly.publishedEvents()); n != 0 {
		t.Errorf("read relay stored %d events, want 0", n)
	}
}
