// Package directory keeps the session's conversation list and the unread
// set derived from it and the read-state ledger.
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/broomate/roomie/internal/ledger"
	"github.com/broomate/roomie/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const refreshTimeout = 15 * time.Second

var ErrClosed = errors.New("directory is closed")

type Lister interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}

type ReadLedger interface {
	GetAcknowledged(ctx context.Context, userID string) ledger.Set
	Acknowledge(ctx context.Context, userID, conversationID string) error
	Revoke(ctx context.Context, userID, conversationID string) error
}

// EventSource is the part of the transport client the directory uses.
type EventSource interface {
	Connect(ctx context.Context, token, userID string) error
	IsConnected() bool
	OnNewMessage(fn func(models.Message)) func()
	OnNewSwipe(fn func(models.MatchEvent)) func()
}

// ReadModel is what the presentation layer renders.
type ReadModel struct {
	Conversations         []models.Conversation
	UnreadConversationIDs ledger.Set
	UnreadCount           int
	IsConnected           bool
}

// mark records a local unread/read decision made while fetches may be in
// flight. settled is the sequence number at which the matching ledger write
// finished; zero means the write is pending or failed.
type mark struct {
	seq     uint64
	settled uint64
	unread  bool
}

type Directory struct {
	lister Lister
	ledger ReadLedger
	source EventSource
	userID string
	log    *zap.Logger

	writes *writeQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	conversations []models.Conversation
	unread        ledger.Set
	seq           uint64
	appliedFetch  uint64
	marks         map[string]mark
	unsubs        []func()
	started       bool
	closed        bool
	refreshing    bool
	refreshAgain  bool

	updates chan struct{}
}

func New(lister Lister, l ReadLedger, source EventSource, userID string, log *zap.Logger) *Directory {
	log = log.Named("directory")
	ctx, cancel := context.WithCancel(context.Background())
	return &Directory{
		lister:  lister,
		ledger:  l,
		source:  source,
		userID:  userID,
		log:     log,
		writes:  newWriteQueue(log),
		ctx:     ctx,
		cancel:  cancel,
		unread:  ledger.Set{},
		marks:   make(map[string]mark),
		updates: make(chan struct{}, 1),
	}
}

// Start registers the transport listeners and performs the initial fetch.
// A failed fetch is returned but the listeners stay registered.
func (d *Directory) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if !d.started {
		d.started = true
		d.unsubs = append(d.unsubs,
			d.source.OnNewMessage(d.handleMessage),
			d.source.OnNewSwipe(d.handleMatch),
		)
	}
	d.mu.Unlock()

	return d.FetchConversations(ctx)
}

// Connect drives the shared transport. A failure is logged and leaves the
// read model disconnected; the transport's own timer handles drops later.
func (d *Directory) Connect(ctx context.Context, token string) error {
	err := d.source.Connect(ctx, token, d.userID)
	if err != nil {
		d.log.Warn("realtime connect failed", zap.String("user_id", d.userID), zap.Error(err))
	}
	d.notify()
	return err
}

// Close unregisters listeners, flushes pending ledger writes and waits for
// background refreshes.
func (d *Directory) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	unsubs := d.unsubs
	d.unsubs = nil
	d.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	d.writes.shutdown()
	d.cancel()
	d.wg.Wait()
}

// FetchConversations replaces the conversation list from the backend and
// recomputes the unread set. On failure the previous state is kept.
//
// Local decisions made after this fetch started win over what it derived,
// and a fetch that started before an already applied one is discarded.
func (d *Directory) FetchConversations(ctx context.Context) error {
	d.mu.Lock()
	d.seq++
	start := d.seq
	d.mu.Unlock()

	conversations, err := d.lister.ListConversations(ctx)
	if err != nil {
		d.log.Warn("fetch conversations failed, keeping previous list", zap.Error(err))
		return errors.Wrap(err, "failed to fetch conversations")
	}
	acknowledged := d.ledger.GetAcknowledged(ctx, d.userID)

	d.mu.Lock()
	if start < d.appliedFetch {
		d.mu.Unlock()
		d.log.Debug("discarding stale fetch", zap.Uint64("seq", start), zap.Uint64("applied", d.appliedFetch))
		return nil
	}
	d.appliedFetch = start

	unread := ledger.Set{}
	for _, c := range conversations {
		if c.HasPreview() && !acknowledged.Has(c.ID) {
			unread.Add(c.ID)
		}
	}
	for id, m := range d.marks {
		if m.settled != 0 && m.settled < start {
			// The fetch read the ledger after this write landed.
			delete(d.marks, id)
			continue
		}
		if m.unread {
			unread.Add(id)
		} else {
			unread.Remove(id)
		}
	}
	for i := range conversations {
		if !unread.Has(conversations[i].ID) {
			conversations[i].UnreadCount = 0
		}
	}

	d.conversations = conversations
	d.unread = unread
	d.mu.Unlock()

	d.log.Debug("conversations fetched", zap.Int("count", len(conversations)), zap.Int("unread", len(unread)))
	d.notify()
	return nil
}

// MarkConversationAsRead clears id from the unread set and acknowledges it
// in the ledger. It is a no-op when id is not unread. The in-memory state is
// updated even if the ledger write fails; that error is returned.
func (d *Directory) MarkConversationAsRead(ctx context.Context, id string) error {
	d.mu.Lock()
	if !d.unread.Has(id) {
		d.mu.Unlock()
		return nil
	}
	d.unread.Remove(id)
	for i := range d.conversations {
		if d.conversations[i].ID == id {
			d.conversations[i].UnreadCount = 0
		}
	}
	seq := d.markLocked(id, false)

	result := make(chan error, 1)
	accepted := d.writes.submit(func() {
		err := d.ledger.Acknowledge(d.ctx, d.userID, id)
		d.settle(id, seq, err)
		result <- err
	})
	d.mu.Unlock()
	d.notify()

	if !accepted {
		return ErrClosed
	}
	select {
	case err := <-result:
		if err != nil {
			return errors.Wrapf(err, "failed to acknowledge %s", id)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the read model.
func (d *Directory) Snapshot() ReadModel {
	d.mu.Lock()
	conversations := make([]models.Conversation, len(d.conversations))
	copy(conversations, d.conversations)
	unread := d.unread.Clone()
	d.mu.Unlock()

	return ReadModel{
		Conversations:         conversations,
		UnreadConversationIDs: unread,
		UnreadCount:           len(unread),
		IsConnected:           d.source.IsConnected(),
	}
}

// Updates signals after the read model changed. Signals are coalesced; read
// Snapshot after receiving one.
func (d *Directory) Updates() <-chan struct{} {
	return d.updates
}

func (d *Directory) notify() {
	select {
	case d.updates <- struct{}{}:
	default:
	}
}

func (d *Directory) handleMessage(msg models.Message) {
	if msg.SenderID == d.userID {
		// Own echo: already shown by the sender, only the preview changes.
		d.scheduleRefresh()
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.unread.Has(msg.ConversationID) {
		d.mu.Unlock()
		d.scheduleRefresh()
		return
	}
	id := msg.ConversationID
	d.unread.Add(id)
	seq := d.markLocked(id, true)
	accepted := d.writes.submit(func() {
		err := d.ledger.Revoke(d.ctx, d.userID, id)
		if err != nil {
			d.log.Warn("revoke read state failed", zap.String("conversation_id", id), zap.Error(err))
		}
		d.settle(id, seq, err)
		d.scheduleRefresh()
	})
	d.mu.Unlock()

	d.log.Debug("conversation unread", zap.String("conversation_id", id), zap.String("sender_id", msg.SenderID))
	d.notify()
	if !accepted {
		d.scheduleRefresh()
	}
}

func (d *Directory) handleMatch(ev models.MatchEvent) {
	switch {
	case ev.Created != nil:
		d.scheduleRefresh()
	case ev.Swipe != nil && ev.Swipe.IsMatch:
		d.scheduleRefresh()
	}
}

// markLocked records a local decision for id. d.mu must be held.
func (d *Directory) markLocked(id string, unread bool) uint64 {
	d.seq++
	d.marks[id] = mark{seq: d.seq, unread: unread}
	return d.seq
}

func (d *Directory) settle(id string, seq uint64, err error) {
	if err != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.marks[id]
	if !ok || m.seq != seq {
		return
	}
	d.seq++
	m.settled = d.seq
	d.marks[id] = m
}

// scheduleRefresh runs a background fetch. Requests arriving while one runs
// collapse into a single follow-up fetch.
func (d *Directory) scheduleRefresh() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.refreshing {
		d.refreshAgain = true
		return
	}
	d.refreshing = true
	d.wg.Add(1)
	go d.refreshLoop()
}

func (d *Directory) refreshLoop() {
	defer d.wg.Done()
	for {
		ctx, cancel := context.WithTimeout(d.ctx, refreshTimeout)
		_ = d.FetchConversations(ctx)
		cancel()

		d.mu.Lock()
		if !d.refreshAgain || d.closed {
			d.refreshing = false
			d.refreshAgain = false
			d.mu.Unlock()
			return
		}
		d.refreshAgain = false
		d.mu.Unlock()
	}
}
