package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"linkpage/internal/event"
	"linkpage/internal/metrics"
	"linkpage/internal/models"
	"linkpage/internal/relay"
	"linkpage/internal/resolver"
)

// State names a session's position in its load lifecycle. Saving is
// tracked separately; a ready session keeps accepting edits while earlier
// ones are still in flight.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
)

// Snapshot is a point-in-time view of a session for the authoring API.
// Document is the optimistic projection: the authoritative document with
// every pending mutation applied on top.
type Snapshot struct {
	Owner     string
	Slug      string
	State     State
	Saving    bool
	Document  *models.LinkTreeDocument
	UpdatedAt int64
	Err       error
}

type pendingMutation struct {
	seq uint64
	fn  Mutation
}

type publishJob struct {
	seq       uint64
	gen       int
	doc       *models.LinkTreeDocument
	createdAt int64
}

// Session edits one of the owner's pages. It holds two documents: the
// authoritative one (newest confirmed on the network) and the optimistic
// projection built by replaying the pending mutation queue on top of it.
// Every accepted mutation publishes the full projected document; a
// confirmed publish promotes that snapshot to authoritative and drops the
// mutations it covered. Publish failures keep the projection and surface
// through the sticky Err until a later publish succeeds.
type Session struct {
	owner      string
	slug       string
	storageKey string

	gateway        relay.Gateway
	signer         event.Signer
	observer       PublishObserver
	logger         *slog.Logger
	now            func() time.Time
	loadTimeout    time.Duration
	publishTimeout time.Duration

	mu            sync.Mutex
	state         State
	authoritative *models.LinkTreeDocument
	pending       []pendingMutation
	projected     *models.LinkTreeDocument
	nextSeq       uint64
	lastClock     int64
	updatedAt     int64
	lastErr       error
	saving        int
	idle          chan struct{}
	ready         chan struct{}
	loadGen       int
	closed        bool

	queueMu sync.Mutex
	queue   []publishJob
	kick    chan struct{}
	done    chan struct{}
}

func newSession(cfg Config, slug string) *Session {
	s := &Session{
		owner:          cfg.Signer.PublicKey(),
		slug:           slug,
		storageKey:     resolver.StorageKey(slug),
		gateway:        cfg.Gateway,
		signer:         cfg.Signer,
		observer:       cfg.Observer,
		logger:         cfg.Logger.With("slug", slug),
		now:            cfg.Now,
		loadTimeout:    cfg.LoadTimeout,
		publishTimeout: cfg.PublishTimeout,
		state:          StateUninitialized,
		idle:           make(chan struct{}),
		ready:          make(chan struct{}),
		kick:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	close(s.idle)
	go s.publishLoop()

	s.mu.Lock()
	s.state = StateLoading
	s.mu.Unlock()
	go s.load(0)
	return s
}

// Owner returns the owning public key as hex.
func (s *Session) Owner() string { return s.owner }

// Slug returns the page slug this session edits.
func (s *Session) Slug() string { return s.slug }

// Snapshot returns the current view. Document is a private clone.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Owner:     s.owner,
		Slug:      s.slug,
		State:     s.state,
		Saving:    s.saving > 0,
		Document:  s.projected.Clone(),
		UpdatedAt: s.updatedAt,
		Err:       s.lastErr,
	}
}

// WaitReady blocks until the session's load (or reload) settles, the
// session closes, or ctx expires. A settled session may still carry a
// load error in its snapshot.
func (s *Session) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	ch := s.ready
	s.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until no publish is queued or in flight, then reports the
// sticky error, if any. Mutations queued while flushing extend the wait.
func (s *Session) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.saving == 0 {
			err := s.lastErr
			s.mu.Unlock()
			return err
		}
		ch := s.idle
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Reload abandons local pending edits and refetches the network state.
// Results of publishes already in flight are discarded on arrival.
func (s *Session) Reload() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.loadGen++
	gen := s.loadGen
	s.state = StateLoading
	s.pending = nil
	s.lastErr = nil
	s.ready = make(chan struct{})

	s.queueMu.Lock()
	dropped := len(s.queue)
	s.queue = nil
	s.queueMu.Unlock()
	s.decSavingLocked(dropped)
	s.mu.Unlock()

	s.logger.Info("reloading page from network", "dropped_edits", dropped)
	go s.load(gen)
}

// Close stops the session. Queued publishes are dropped; in-flight ones
// finish at the relay but their results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	s.queueMu.Lock()
	dropped := len(s.queue)
	s.queue = nil
	s.queueMu.Unlock()
	s.decSavingLocked(dropped)
	s.mu.Unlock()

	close(s.done)
}

// CreatePage creates the page. It fails with ErrPageExists while a live
// document occupies the slug; recreating over a deleted one is allowed.
func (s *Session) CreatePage(title string) error {
	s.mu.Lock()
	ts := s.tickPreviewLocked()
	s.mu.Unlock()
	doc := models.NewDocument(s.slug, strings.TrimSpace(title), ts)
	return s.queueMutation(opCreate(doc), nil, true)
}

// Delete marks the page deleted and publishes the marker. The slot keeps
// the deleted document so the slug can be recreated later.
func (s *Session) Delete() error {
	return s.queueMutation(opDelete(), nil, false)
}

// AddLink appends a link to the root and returns its generated id.
func (s *Session) AddLink(p LinkParams) (string, error) {
	link := newLink(p)
	if err := s.queueMutation(opAddLink(link), nil, false); err != nil {
		return "", err
	}
	return link.ID, nil
}

// UpdateLink edits a link wherever it sits.
func (s *Session) UpdateLink(id string, u LinkUpdate) error {
	return s.queueMutation(opUpdateLink(id, u), requireLink(id), false)
}

// DeleteLink removes a link from the root or from its group.
func (s *Session) DeleteLink(id string) error {
	return s.queueMutation(opDeleteLink(id), requireLink(id), false)
}

// ToggleVisibility flips a link's or group's visible flag.
func (s *Session) ToggleVisibility(id string) error {
	return s.queueMutation(opToggleVisibility(id), requireItem(id), false)
}

// AddGroup appends an empty group to the root and returns its id.
func (s *Session) AddGroup(p GroupParams) (string, error) {
	group := newGroup(p)
	if err := s.queueMutation(opAddGroup(group), nil, false); err != nil {
		return "", err
	}
	return group.ID, nil
}

// UpdateGroup edits a group's metadata.
func (s *Session) UpdateGroup(id string, u GroupUpdate) error {
	return s.queueMutation(opUpdateGroup(id, u), requireGroup(id), false)
}

// DeleteGroup removes a group, splicing its links into the root in place.
func (s *Session) DeleteGroup(id string) error {
	return s.queueMutation(opDeleteGroup(id), requireGroup(id), false)
}

// MoveLink relocates a link to the end of the named group, or of the root
// when groupID is empty.
func (s *Session) MoveLink(linkID, groupID string) error {
	check := func(doc *models.LinkTreeDocument) error {
		if link, _ := doc.FindLink(linkID); link == nil {
			return fmt.Errorf("%w: link %s", ErrItemNotFound, linkID)
		}
		if groupID != "" && doc.FindGroup(groupID) == nil {
			return fmt.Errorf("%w: group %s", ErrItemNotFound, groupID)
		}
		return nil
	}
	return s.queueMutation(opMoveLink(linkID, groupID), check, false)
}

// Reorder rearranges the root items to follow ids. Unknown ids are
// ignored and unlisted items keep their relative order at the end.
func (s *Session) Reorder(ids []string) error {
	return s.queueMutation(opReorder(ids), nil, false)
}

// ReorderGroup rearranges the links inside one group.
func (s *Session) ReorderGroup(groupID string, ids []string) error {
	return s.queueMutation(opReorderGroup(groupID, ids), requireGroup(groupID), false)
}

// UpdateTheme replaces the page theme.
func (s *Session) UpdateTheme(theme models.Theme) error {
	return s.queueMutation(opUpdateTheme(theme), nil, false)
}

// UpdateMeta edits the page metadata. The slug cannot change.
func (s *Session) UpdateMeta(u TreeMetaUpdate) error {
	return s.queueMutation(opUpdateTreeMeta(u), nil, false)
}

// UpdateProfileOverride replaces the page's profile override; nil clears it.
func (s *Session) UpdateProfileOverride(po *models.ProfileOverride) error {
	return s.queueMutation(opUpdateProfileOverride(po), nil, false)
}

// UpdateSocials replaces the social entries.
func (s *Session) UpdateSocials(socials []models.Social) error {
	return s.queueMutation(opUpdateSocials(socials), nil, false)
}

// RecordClick increments a link's click counter.
func (s *Session) RecordClick(linkID string) error {
	return s.queueMutation(opRecordClick(linkID), requireLink(linkID), false)
}

func requireLink(id string) func(*models.LinkTreeDocument) error {
	return func(doc *models.LinkTreeDocument) error {
		if link, _ := doc.FindLink(id); link == nil {
			return fmt.Errorf("%w: link %s", ErrItemNotFound, id)
		}
		return nil
	}
}

func requireGroup(id string) func(*models.LinkTreeDocument) error {
	return func(doc *models.LinkTreeDocument) error {
		if doc.FindGroup(id) == nil {
			return fmt.Errorf("%w: group %s", ErrItemNotFound, id)
		}
		return nil
	}
}

func requireItem(id string) func(*models.LinkTreeDocument) error {
	return func(doc *models.LinkTreeDocument) error {
		if link, _ := doc.FindLink(id); link != nil {
			return nil
		}
		if doc.FindGroup(id) != nil {
			return nil
		}
		return fmt.Errorf("%w: item %s", ErrItemNotFound, id)
	}
}

// queueMutation is the single write path: apply the mutation to a clone of
// the projection, validate the result, queue it as pending, and hand the
// projected snapshot to the publish worker.
func (s *Session) queueMutation(m Mutation, precheck func(*models.LinkTreeDocument) error, create bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrSessionLoading
	}
	live := s.projected != nil && !s.projected.Deleted()
	if create && live {
		s.mu.Unlock()
		return ErrPageExists
	}
	if !create && !live {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if precheck != nil {
		if err := precheck(s.projected); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	next := m(s.projected.Clone())
	if next == nil {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}

	seq := s.nextSeq
	s.nextSeq++
	s.pending = append(s.pending, pendingMutation{seq: seq, fn: m})
	s.projected = next
	job := publishJob{seq: seq, gen: s.loadGen, doc: next.Clone(), createdAt: s.tickLocked()}
	if s.saving == 0 {
		s.idle = make(chan struct{})
	}
	s.saving++

	s.queueMu.Lock()
	s.queue = append(s.queue, job)
	s.queueMu.Unlock()
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
	return nil
}

// tickLocked issues the next logical timestamp: wall clock, bumped past
// the last issued or observed one so snapshots never tie or regress even
// within one second or under clock skew.
func (s *Session) tickLocked() int64 {
	ts := s.now().Unix()
	if ts <= s.lastClock {
		ts = s.lastClock + 1
	}
	s.lastClock = ts
	return ts
}

// tickPreviewLocked returns what the next timestamp would be without
// consuming it. Document creation stamps use it so the createdAt embedded
// in the document never exceeds the event timestamp that carries it.
func (s *Session) tickPreviewLocked() int64 {
	ts := s.now().Unix()
	if ts <= s.lastClock {
		ts = s.lastClock + 1
	}
	return ts
}

func (s *Session) load(gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.loadTimeout)
	defer cancel()
	doc, ts, err := fetchNewest(ctx, s.gateway, s.owner, s.slug, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.loadGen {
		return
	}
	s.state = StateReady
	switch {
	case err == nil:
		s.authoritative = doc
		s.updatedAt = ts
		if ts > s.lastClock {
			s.lastClock = ts
		}
		s.lastErr = nil
		s.logger.Debug("page loaded", "updated_at", ts, "deleted", doc.Deleted())
	case errors.Is(err, ErrNotFound):
		s.authoritative = nil
		s.updatedAt = 0
		s.lastErr = nil
		s.logger.Debug("no page on network")
	default:
		// Keep whatever we had; the error stays visible until something
		// succeeds.
		s.lastErr = err
		s.logger.Warn("page load failed", "error", err)
	}
	s.recomputeLocked()
	close(s.ready)
}

func (s *Session) publishLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.kick:
		}
		for {
			s.queueMu.Lock()
			if len(s.queue) == 0 {
				s.queueMu.Unlock()
				break
			}
			job := s.queue[0]
			s.queue = s.queue[1:]
			s.queueMu.Unlock()
			s.publishOne(job)
		}
	}
}

func (s *Session) publishOne(job publishJob) {
	raw, err := models.Serialize(job.doc)
	if err != nil {
		metrics.RecordPageSave("error")
		s.finish(job, nil, err)
		return
	}
	ev := event.NewLinkPage(s.storageKey, string(raw), job.createdAt)
	if err := s.signer.Sign(&ev); err != nil {
		metrics.RecordPageSave("error")
		s.finish(job, nil, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()
	receipt, err := s.gateway.Publish(ctx, ev)
	switch {
	case err != nil:
		metrics.RecordPageSave("transport")
		s.finish(job, nil, err)
	case receipt.Accepted == 0:
		metrics.RecordPageSave("rejected")
		s.finish(job, nil, fmt.Errorf("%w (0 of %d relays)", ErrQuorumFailed, receipt.Total))
	default:
		metrics.RecordPageSave("ok")
		s.finish(job, &ev, nil)
	}
}

// finish settles one publish. Success promotes the job's snapshot to
// authoritative, drops the pending mutations it covered and recomputes the
// projection; failure keeps everything and records the sticky error.
// Results from before a reload or close only release the saving counter.
func (s *Session) finish(job publishJob, ev *event.Event, err error) {
	var note func()

	s.mu.Lock()
	s.decSavingLocked(1)
	if !s.closed && job.gen == s.loadGen {
		if err != nil {
			s.lastErr = err
			s.logger.Warn("publish failed, keeping optimistic state", "error", err)
		} else {
			s.lastErr = nil
			s.authoritative = job.doc
			s.updatedAt = job.createdAt
			s.dropPendingLocked(job.seq)
			s.recomputeLocked()
			s.logger.Debug("page published", "created_at", job.createdAt, "event_id", ev.ID)
			if s.observer != nil {
				doc := job.doc.Clone()
				ts := job.createdAt
				id := ev.ID
				note = func() { s.observer.NotePublish(s.owner, s.slug, doc, ts, id) }
			}
		}
	}
	s.mu.Unlock()

	if note != nil {
		note()
	}
}

func (s *Session) dropPendingLocked(seq uint64) {
	kept := s.pending[:0]
	for _, pm := range s.pending {
		if pm.seq > seq {
			kept = append(kept, pm)
		}
	}
	s.pending = kept
}

func (s *Session) recomputeLocked() {
	doc := s.authoritative.Clone()
	for _, pm := range s.pending {
		doc = pm.fn(doc)
	}
	s.projected = doc
}

func (s *Session) decSavingLocked(n int) {
	if n == 0 {
		return
	}
	s.saving -= n
	if s.saving == 0 {
		close(s.idle)
	}
}
