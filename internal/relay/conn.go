package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"linkpage/internal/event"
)

// subMessage is one relay-to-client frame routed to a subscription.
type subMessage struct {
	ev     *event.Event
	eose   bool
	reason string
}

type subscription struct {
	msgs chan subMessage
	// quit is closed when the subscriber stops listening, so the read
	// loop never blocks on an abandoned subscription.
	quit chan struct{}
}

type okResult struct {
	accepted bool
	reason   string
}

// relayConn manages one websocket connection. A single read loop demuxes
// inbound frames to subscriptions and publish waiters; writes are
// serialized by writeMu.
type relayConn struct {
	url    string
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	subs   map[string]*subscription
	acks   map[string]chan okResult
	closed bool

	writeMu sync.Mutex
}

func newRelayConn(url string, cfg Config) *relayConn {
	return &relayConn{
		url:    url,
		cfg:    cfg,
		logger: cfg.Logger.With("relay", url),
		subs:   make(map[string]*subscription),
		acks:   make(map[string]chan okResult),
	}
}

// ensure returns a live connection, dialing if necessary.
func (rc *relayConn) ensure(ctx context.Context) (*websocket.Conn, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return nil, ErrClosed
	}
	if rc.ws != nil {
		return rc.ws, nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: rc.cfg.DialTimeout}
	ws, _, err := dialer.DialContext(ctx, rc.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", rc.url, err)
	}

	ws.SetReadDeadline(time.Now().Add(rc.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(rc.cfg.PongWait))
	})

	quit := make(chan struct{})
	rc.ws = ws
	go rc.readLoop(ws, quit)
	go rc.pingLoop(ws, quit)
	rc.logger.Debug("connected to relay")
	return ws, nil
}

// query sends a REQ and collects events until EOSE. On context expiry it
// returns what arrived so far with no error.
func (rc *relayConn) query(ctx context.Context, f event.Filter) ([]event.Event, error) {
	ws, err := rc.ensure(ctx)
	if err != nil {
		return nil, err
	}

	subID := uuid.NewString()
	sub := &subscription{
		msgs: make(chan subMessage, 32),
		quit: make(chan struct{}),
	}
	rc.mu.Lock()
	rc.subs[subID] = sub
	rc.mu.Unlock()
	defer func() {
		rc.mu.Lock()
		delete(rc.subs, subID)
		rc.mu.Unlock()
		close(sub.quit)
		if payload, err := encodeClose(subID); err == nil {
			rc.write(ws, payload)
		}
	}()

	payload, err := encodeReq(subID, f)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if err := rc.write(ws, payload); err != nil {
		ws.Close()
		return nil, fmt.Errorf("send query to %s: %w", rc.url, err)
	}

	var events []event.Event
	for {
		select {
		case <-ctx.Done():
			return events, nil
		case m, ok := <-sub.msgs:
			if !ok {
				if len(events) > 0 {
					return events, nil
				}
				return nil, fmt.Errorf("relay %s: connection lost", rc.url)
			}
			switch {
			case m.ev != nil:
				events = append(events, *m.ev)
			case m.eose:
				return events, nil
			default:
				if m.reason != "" {
					rc.logger.Debug("subscription closed by relay", "reason", m.reason)
				}
				return events, nil
			}
		}
	}
}

// publish writes a pre-encoded EVENT frame and waits for the relay's
// verdict. A write failure is an error; a missing or negative
// acknowledgement is (false, nil).
func (rc *relayConn) publish(ctx context.Context, eventID string, payload []byte) (bool, error) {
	ws, err := rc.ensure(ctx)
	if err != nil {
		return false, err
	}

	ackCh := make(chan okResult, 1)
	rc.mu.Lock()
	rc.acks[eventID] = ackCh
	rc.mu.Unlock()
	defer func() {
		rc.mu.Lock()
		delete(rc.acks, eventID)
		rc.mu.Unlock()
	}()

	if err := rc.write(ws, payload); err != nil {
		ws.Close()
		return false, fmt.Errorf("send event to %s: %w", rc.url, err)
	}

	select {
	case <-ctx.Done():
		rc.logger.Warn("relay did not acknowledge event in time", "event", eventID)
		return false, nil
	case res, ok := <-ackCh:
		if !ok {
			return false, fmt.Errorf("relay %s: connection lost", rc.url)
		}
		if !res.accepted {
			rc.logger.Warn("relay rejected event", "event", eventID, "reason", res.reason)
		}
		return res.accepted, nil
	}
}

func (rc *relayConn) write(ws *websocket.Conn, payload []byte) error {
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(rc.cfg.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, payload)
}

func (rc *relayConn) readLoop(ws *websocket.Conn, quit chan struct{}) {
	defer rc.teardown(ws, quit)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			rc.logger.Debug("relay connection lost", "error", err)
			return
		}
		rc.dispatch(data)
	}
}

func (rc *relayConn) dispatch(data []byte) {
	fr, err := decodeFrame(data)
	if err != nil {
		rc.logger.Warn("discarding malformed relay frame", "error", err)
		return
	}

	switch fr.label {
	case labelEvent:
		ev, err := fr.eventArg(1)
		if err != nil {
			rc.logger.Warn("discarding malformed relay event", "error", err)
			return
		}
		rc.deliver(fr.stringArg(0), subMessage{ev: &ev})
	case labelEOSE:
		rc.deliver(fr.stringArg(0), subMessage{eose: true})
	case labelClosed:
		rc.deliver(fr.stringArg(0), subMessage{reason: fr.stringArg(1)})
	case labelOK:
		rc.ack(fr.stringArg(0), okResult{accepted: fr.boolArg(1), reason: fr.stringArg(2)})
	case labelNotice:
		rc.logger.Info("relay notice", "message", fr.stringArg(0))
	default:
		rc.logger.Debug("ignoring relay frame", "label", fr.label)
	}
}

func (rc *relayConn) deliver(subID string, m subMessage) {
	rc.mu.Lock()
	sub := rc.subs[subID]
	rc.mu.Unlock()
	if sub == nil {
		return
	}
	select {
	case sub.msgs <- m:
	case <-sub.quit:
	}
}

func (rc *relayConn) ack(eventID string, res okResult) {
	rc.mu.Lock()
	ch := rc.acks[eventID]
	rc.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- res:
	default:
	}
}

// teardown runs when the read loop exits. It fails every waiter so the
// next use of this relay redials.
func (rc *relayConn) teardown(ws *websocket.Conn, quit chan struct{}) {
	ws.Close()
	close(quit)

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.ws == ws {
		rc.ws = nil
	}
	for _, sub := range rc.subs {
		close(sub.msgs)
	}
	for _, ch := range rc.acks {
		close(ch)
	}
	rc.subs = make(map[string]*subscription)
	rc.acks = make(map[string]chan okResult)
}

func (rc *relayConn) pingLoop(ws *websocket.Conn, quit chan struct{}) {
	ticker := time.NewTicker(rc.cfg.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			deadline := time.Now().Add(rc.cfg.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				ws.Close()
				return
			}
		}
	}
}

// close marks the connection unusable and drops the socket. The read
// loop's teardown cleans up waiters.
func (rc *relayConn) close() {
	rc.mu.Lock()
	rc.closed = true
	ws := rc.ws
	rc.mu.Unlock()

	if ws != nil {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		ws.WriteControl(websocket.CloseMessage, msg, deadline)
		ws.Close()
	}
}
