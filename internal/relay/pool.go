package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"linkpage/internal/event"
	"linkpage/internal/metrics"
)

// verifiedCacheSize bounds the cache of event ids whose signatures have
// already been checked. Signature checks dominate query cost when the
// same page is fetched repeatedly.
const verifiedCacheSize = 4096

// Endpoint is one relay with its roles. A read relay serves queries, a
// write relay receives publishes; most relays do both.
type Endpoint struct {
	URL   string
	Read  bool
	Write bool
}

// Config tunes a Pool. Zero values take defaults.
type Config struct {
	// URLs lists relay websocket endpoints (ws:// or wss://) used for
	// both reads and writes. For role-split relay sets use Relays.
	URLs []string
	// Relays lists endpoints with explicit roles. Appended after URLs.
	Relays []Endpoint
	// DialTimeout bounds the websocket handshake.
	DialTimeout time.Duration
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// PongWait is how long a connection may stay silent before it is
	// torn down. Pings go out at nine tenths of this interval.
	PongWait time.Duration
	Logger   *slog.Logger
}

func (cfg Config) endpoints() []Endpoint {
	eps := make([]Endpoint, 0, len(cfg.URLs)+len(cfg.Relays))
	for _, u := range cfg.URLs {
		eps = append(eps, Endpoint{URL: u, Read: true, Write: true})
	}
	return append(eps, cfg.Relays...)
}

func (cfg Config) withDefaults() Config {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongWait == 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Pool implements Gateway over a fixed relay set. Connections are dialed
// on first use and redialed on the use after a failure, so a relay being
// down only costs the requests that raced its outage. One connection
// serves both roles when a relay is in the read and write sets.
type Pool struct {
	cfg      Config
	readers  []*relayConn
	writers  []*relayConn
	verified *lru.Cache[string, struct{}]

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool over the configured relay set. It does not dial.
func NewPool(cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()
	eps := cfg.endpoints()
	if len(eps) == 0 {
		return nil, errors.New("relay pool needs at least one relay URL")
	}
	verified, err := lru.New[string, struct{}](verifiedCacheSize)
	if err != nil {
		return nil, err
	}
	p := &Pool{cfg: cfg, verified: verified}
	for _, ep := range eps {
		rc := newRelayConn(ep.URL, cfg)
		if ep.Read {
			p.readers = append(p.readers, rc)
		}
		if ep.Write {
			p.writers = append(p.writers, rc)
		}
	}
	if len(p.readers) == 0 {
		return nil, errors.New("relay set has no read relays")
	}
	if len(p.writers) == 0 {
		return nil, errors.New("relay set has no write relays")
	}
	return p, nil
}

// Query fans the filter out to every relay, merges the results and drops
// duplicates and events that fail verification. Relays that cannot be
// reached are skipped; the error is ErrTransport only when all of them
// fail.
func (p *Pool) Query(ctx context.Context, f event.Filter) ([]event.Event, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}

	type result struct {
		events []event.Event
		err    error
	}
	results := make(chan result, len(p.readers))
	for _, rc := range p.readers {
		go func(rc *relayConn) {
			events, err := rc.query(ctx, f)
			results <- result{events: events, err: err}
		}(rc)
	}

	var merged []event.Event
	seen := make(map[string]bool)
	var errs []error
	reachable := 0
	for range p.readers {
		res := <-results
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		reachable++
		for _, ev := range res.events {
			if seen[ev.ID] || !p.admit(&ev) {
				continue
			}
			seen[ev.ID] = true
			merged = append(merged, ev)
		}
	}

	if reachable == 0 {
		metrics.RecordRelayQuery("unreachable")
		return nil, fmt.Errorf("%w: %v", ErrTransport, errors.Join(errs...))
	}
	metrics.RecordRelayQuery("ok")
	return merged, nil
}

// Publish fans the event out to every relay and counts acknowledgements.
// A relay that takes the frame but never acknowledges it counts toward
// Total, not Accepted.
func (p *Pool) Publish(ctx context.Context, ev event.Event) (Receipt, error) {
	if p.isClosed() {
		return Receipt{}, ErrClosed
	}
	payload, err := encodeEvent(ev)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode event: %w", err)
	}

	type result struct {
		accepted bool
		err      error
	}
	results := make(chan result, len(p.writers))
	for _, rc := range p.writers {
		go func(rc *relayConn) {
			accepted, err := rc.publish(ctx, ev.ID, payload)
			results <- result{accepted: accepted, err: err}
		}(rc)
	}

	receipt := Receipt{Total: len(p.writers)}
	var errs []error
	reachable := 0
	for range p.writers {
		res := <-results
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		reachable++
		if res.accepted {
			receipt.Accepted++
		}
	}

	if reachable == 0 {
		metrics.RecordRelayPublish("unreachable")
		return Receipt{}, fmt.Errorf("%w: %v", ErrTransport, errors.Join(errs...))
	}
	if receipt.Accepted == 0 {
		metrics.RecordRelayPublish("rejected")
	} else {
		metrics.RecordRelayPublish("ok")
	}
	return receipt, nil
}

// Close tears down every connection. The pool cannot be reused.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	closed := make(map[*relayConn]bool)
	for _, rc := range append(append([]*relayConn{}, p.readers...), p.writers...) {
		if closed[rc] {
			continue
		}
		closed[rc] = true
		rc.close()
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// admit verifies an inbound event, skipping the signature check for ids
// that already passed it. The id recomputation always runs, so a cache
// hit still proves the content matches the id the signature covers.
func (p *Pool) admit(ev *event.Event) bool {
	if err := ev.ValidateID(); err != nil {
		p.cfg.Logger.Warn("dropping event with mismatched id", "id", ev.ID, "error", err)
		return false
	}
	if p.verified.Contains(ev.ID) {
		return true
	}
	if err := ev.CheckSignature(); err != nil {
		p.cfg.Logger.Warn("dropping event with bad signature", "id", ev.ID, "error", err)
		return false
	}
	p.verified.Add(ev.ID, struct{}{})
	return true
}
