package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/notify"
)

// DefaultDebounce coalesces bursts of changes on one piggy bank.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Open after the manager was shut down.
var ErrClosed = errors.New("realtime: manager closed")

// CollectionLoader reloads everything a user sees.
type CollectionLoader interface {
	LoadForUser(ctx context.Context, userID string, mode models.LoadMode) (*models.Collection, error)
}

// Manager keeps at most one transport subscription per user, shared by all
// of that user's open handles.
type Manager struct {
	transport Transport
	loader    CollectionLoader
	emitter   notify.Emitter
	log       logging.Logger
	debounce  time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

type ManagerOption func(*Manager)

func WithDebounce(d time.Duration) ManagerOption {
	return func(m *Manager) { m.debounce = d }
}

func NewManager(t Transport, loader CollectionLoader, emitter notify.Emitter, log logging.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		transport: t,
		loader:    loader,
		emitter:   emitter,
		log:       log,
		debounce:  DefaultDebounce,
		sessions:  map[string]*session{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Handle is one holder's claim on a user's session.
type Handle struct {
	m    *Manager
	s    *session
	once sync.Once
}

// Close releases the handle. The subscription is torn down when the last
// handle of the user is closed. Calling Close twice is a no-op.
func (h *Handle) Close() {
	h.once.Do(func() { h.m.release(h.s) })
}

// UserID is the user the handle listens for.
func (h *Handle) UserID() string { return h.s.userID }

// Open subscribes to userID's changes, or joins the existing subscription.
// The transport round trip runs outside the manager lock; when two opens of
// one user race, the loser's subscription is closed and it joins the winner.
func (m *Manager) Open(ctx context.Context, userID string) (*Handle, error) {
	if h, err := m.join(userID); h != nil || err != nil {
		return h, err
	}

	sub, err := m.transport.Subscribe(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.closeSpare(ctx, userID, sub)
		return nil, ErrClosed
	}
	if s, ok := m.sessions[userID]; ok {
		s.refs++
		m.mu.Unlock()
		m.closeSpare(ctx, userID, sub)
		return &Handle{m: m, s: s}, nil
	}
	s := newSession(m, userID, sub)
	m.sessions[userID] = s
	go s.run()
	m.mu.Unlock()

	m.log.Info(ctx, "realtime session opened", "user_id", userID)
	return &Handle{m: m, s: s}, nil
}

func (m *Manager) join(userID string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	s.refs++
	return &Handle{m: m, s: s}, nil
}

func (m *Manager) closeSpare(ctx context.Context, userID string, sub Subscription) {
	if err := sub.Close(); err != nil {
		m.log.Warn(ctx, "failed to close subscription", "user_id", userID, "error", err)
	}
}

// Active reports whether userID has a live subscription.
func (m *Manager) Active(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

func (m *Manager) release(s *session) {
	m.mu.Lock()
	s.refs--
	last := s.refs == 0
	if last && m.sessions[s.userID] == s {
		delete(m.sessions, s.userID)
	}
	m.mu.Unlock()

	if last {
		s.stop()
		m.log.Info(context.Background(), "realtime session closed", "user_id", s.userID)
	}
}

// Close stops every session and refuses new ones.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = map[string]*session{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
}

type pending struct {
	ev    models.ChangeEvent
	timer *time.Timer
}

type session struct {
	m      *Manager
	userID string
	sub    Subscription
	refs   int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	pending map[string]*pending

	// owned by run
	seen   map[string]struct{}
	recent []string
}

const recentEvents = 128

func newSession(m *Manager, userID string, sub Subscription) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		m:       m,
		userID:  userID,
		sub:     sub,
		refs:    1,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		pending: map[string]*pending{},
		seen:    map[string]struct{}{},
	}
}

func (s *session) run() {
	defer close(s.done)
	for ev := range s.sub.Events() {
		if ev.OwnerID != s.userID || s.duplicate(ev.ID) {
			continue
		}
		s.schedule(ev)
	}
}

// duplicate reports whether the change was already seen. Every server
// instance forwards the same row change, so a shared transport delivers one
// copy per instance.
func (s *session) duplicate(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.seen[id]; ok {
		return true
	}
	if len(s.recent) == recentEvents {
		delete(s.seen, s.recent[0])
		s.recent = s.recent[1:]
	}
	s.seen[id] = struct{}{}
	s.recent = append(s.recent, id)
	return false
}

// schedule keeps only the latest event per piggy bank within the window, so
// a burst is reported with the title and amount of its last change.
func (s *session) schedule(ev models.ChangeEvent) {
	if s.m.debounce <= 0 {
		s.process(ev)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[ev.PiggyBankID]; ok {
		p.ev = ev
		return
	}
	id := ev.PiggyBankID
	s.pending[id] = &pending{
		ev:    ev,
		timer: time.AfterFunc(s.m.debounce, func() { s.flush(id) }),
	}
}

func (s *session) flush(piggyBankID string) {
	s.mu.Lock()
	p, ok := s.pending[piggyBankID]
	delete(s.pending, piggyBankID)
	s.mu.Unlock()
	if !ok || s.ctx.Err() != nil {
		return
	}
	s.process(p.ev)
}

func (s *session) process(ev models.ChangeEvent) {
	ctx := s.ctx
	c, err := s.m.loader.LoadForUser(ctx, s.userID, models.LoadFast)
	if err != nil {
		if ctx.Err() == nil {
			s.m.log.Error(ctx, "failed to reload collection after change", "user_id", s.userID, "piggy_bank_id", ev.PiggyBankID, "error", err)
		}
		return
	}

	u := notify.Update{
		UserID:       s.userID,
		Collection:   c,
		Notification: notify.Build(ev),
	}
	if ev.Table == models.TableTransactions && ev.Kind == models.ChangeInsert {
		u.Push = notify.PushText(ev.PiggyBankName, ev.Type, ev.Amount)
	}
	s.m.emitter.Emit(ctx, u)
}

func (s *session) stop() {
	s.cancel()
	if err := s.sub.Close(); err != nil {
		s.m.log.Warn(context.Background(), "failed to close subscription", "user_id", s.userID, "error", err)
	}
	<-s.done

	s.mu.Lock()
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()
}
