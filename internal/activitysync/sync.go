// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package activitysync

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/idlesync/internal/clock"
	"github.com/jeranaias/idlesync/internal/storage"
)

// Handler receives messages from other tabs.
type Handler func(Message)

// Options configures New.
type Options struct {
	// ID names this tab. A random id is generated when empty.
	ID string

	// Store holds the shared timestamp and backs the storage transport.
	// When nil and StateDir is set, New opens Backend under StateDir and
	// closes it with the Sync. Otherwise a nil Store disables both.
	Store        storage.Store
	Backend      storage.Backend
	PollInterval time.Duration

	// StateDir is where the unix transport keeps its bus directory.
	StateDir string

	// Prefer selects the transport: auto, unix or storage.
	Prefer string

	// Transport overrides transport selection, e.g. a LocalBus endpoint.
	Transport Transport

	Clock  clock.Clock
	Logger *slog.Logger
}

// Sync is one tab's view of the bus and the shared timestamp.
type Sync struct {
	id        string
	store     storage.Store
	transport Transport
	clock     clock.Clock
	log       *slog.Logger

	mu       sync.Mutex
	handlers map[uint64]Handler
	order    []uint64
	nextID   uint64
	closed   bool
	onClose  []func() error
}

// New builds a Sync. It never fails: when no transport can be started
// the Sync still serves the shared timestamp and publishing is a no-op.
func New(opts Options) *Sync {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	s := &Sync{
		id:       opts.ID,
		store:    opts.Store,
		clock:    opts.Clock,
		log:      opts.Logger.With("tab", shortID(opts.ID)),
		handlers: make(map[uint64]Handler),
	}

	if s.store == nil && opts.StateDir != "" {
		store, err := storage.Open(storage.Options{
			Backend:      opts.Backend,
			Dir:          opts.StateDir,
			PollInterval: opts.PollInterval,
			Clock:        opts.Clock,
			Logger:       opts.Logger,
		})
		if err != nil {
			s.log.Warn("SYNC_STORE_UNAVAILABLE", "backend", opts.Backend, "error", err)
		} else {
			s.store = store
			opts.Store = store
			s.onClose = append(s.onClose, store.Close)
		}
	}

	s.transport = opts.Transport
	if s.transport == nil {
		s.transport = s.selectTransport(opts)
	}
	if s.transport != nil {
		if err := s.transport.Receive(s.dispatch); err != nil {
			s.log.Warn("SYNC_TRANSPORT_UNAVAILABLE", "transport", s.transport.Name(), "error", err)
			_ = s.transport.Close()
			s.transport = nil
		}
	}
	if s.transport == nil {
		s.log.Warn("SYNC_SINGLE_TAB", "reason", "no transport")
	} else {
		s.log.Debug("SYNC_READY", "transport", s.transport.Name())
	}
	return s
}

func (s *Sync) selectTransport(opts Options) Transport {
	prefer := opts.Prefer
	if prefer == "" {
		prefer = TransportAuto
	}

	if prefer == TransportAuto || prefer == TransportUnix {
		if opts.StateDir != "" {
			t, err := NewUnixTransport(BusDir(opts.StateDir), opts.ID, s.log)
			if err == nil {
				return t
			}
			s.log.Info("SYNC_TRANSPORT_FALLBACK", "from", TransportUnix, "to", TransportStorage, "reason", err)
		}
	}

	t, err := NewStorageTransport(opts.Store)
	if err != nil {
		s.log.Warn("SYNC_TRANSPORT_UNAVAILABLE", "transport", TransportStorage, "error", err)
		return nil
	}
	return t
}

// ID returns this tab's id.
func (s *Sync) ID() string { return s.id }

// Store returns the store holding the shared timestamp, or nil.
func (s *Sync) Store() storage.Store { return s.store }

// TransportName returns the active transport name, or "none".
func (s *Sync) TransportName() string {
	if s.transport == nil {
		return "none"
	}
	return s.transport.Name()
}

// =============================================================================
// PUBLISHING
// =============================================================================

// PublishActivity records now as the shared timestamp and informs the
// other tabs.
func (s *Sync) PublishActivity() {
	now := clock.EpochMillis(s.clock.Now())
	s.SetLastActivityTimestamp(now)
	s.send(Message{Type: KindActivity, Timestamp: now})
}

// PublishLogout informs the other tabs that this tab logged out. The
// shared timestamp is left alone.
func (s *Sync) PublishLogout() {
	s.send(Message{Type: KindLogout, Timestamp: clock.EpochMillis(s.clock.Now())})
}

func (s *Sync) send(m Message) {
	defer s.recoverPanic("send")

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.transport == nil {
		return
	}

	m.Source = s.id
	m.ID = uuid.NewString()
	payload, err := Encode(m)
	if err != nil {
		s.log.Error("SYNC_ENCODE_ERROR", "type", m.Type, "error", err)
		return
	}
	if err := s.transport.Send(payload); err != nil {
		s.log.Warn("SYNC_SEND_ERROR", "type", m.Type, "transport", s.transport.Name(), "error", err)
		return
	}
	s.log.Debug("SYNC_SENT", "type", m.Type, "timestamp", m.Timestamp)
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers handler for messages from other tabs. Handlers run
// in registration order. The returned function is idempotent.
func (s *Sync) Subscribe(handler Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.handlers, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// dispatch runs on the transport's delivery goroutine.
func (s *Sync) dispatch(payload []byte) {
	defer s.recoverPanic("dispatch")

	m, err := Decode(payload)
	if err != nil {
		s.log.Warn("SYNC_DROP_MALFORMED", "error", err, "bytes", len(payload))
		return
	}
	if m.Source == s.id {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	handlers := make([]Handler, 0, len(s.order))
	for _, id := range s.order {
		handlers = append(handlers, s.handlers[id])
	}
	s.mu.Unlock()

	for _, h := range handlers {
		s.invoke(h, m)
	}
}

func (s *Sync) invoke(h Handler, m Message) {
	defer s.recoverPanic("handler")
	h(m)
}

func (s *Sync) recoverPanic(where string) {
	if r := recover(); r != nil {
		s.log.Error("SYNC_PANIC", "where", where, "panic", r)
	}
}

// =============================================================================
// SHARED TIMESTAMP
// =============================================================================

// LastActivityTimestamp returns the shared timestamp in epoch-ms, or 0
// when it is unknown or unreadable.
func (s *Sync) LastActivityTimestamp() int64 {
	if s.store == nil {
		return 0
	}
	ts, err := ReadLastActivity(s.store)
	if err != nil {
		s.log.Warn("SYNC_TIMESTAMP_READ_ERROR", "error", err)
		return 0
	}
	return ts
}

// ReadLastActivity reads the shared timestamp from store without a Sync.
// A missing value is 0; a value that is not a non-negative integer is an
// error.
func ReadLastActivity(store storage.Store) (int64, error) {
	v, ok, err := store.Get(KeyLastActivity)
	if err != nil || !ok {
		return 0, err
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ts < 0 {
		return 0, fmt.Errorf("invalid activity timestamp %q", v)
	}
	return ts, nil
}

// SetLastActivityTimestamp overwrites the shared timestamp. Concurrent
// writers race and the last one wins.
func (s *Sync) SetLastActivityTimestamp(ts int64) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(KeyLastActivity, strconv.FormatInt(ts, 10)); err != nil {
		s.log.Warn("SYNC_TIMESTAMP_WRITE_ERROR", "error", err)
	}
}

// ClearLastActivityTimestamp removes the shared timestamp so the next
// session does not inherit a stale idle baseline.
func (s *Sync) ClearLastActivityTimestamp() {
	if s.store == nil {
		return
	}
	if err := s.store.Remove(KeyLastActivity); err != nil {
		s.log.Warn("SYNC_TIMESTAMP_WRITE_ERROR", "error", err)
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Close releases the transport and drops every subscriber. It is safe to
// call more than once.
func (s *Sync) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handlers = map[uint64]Handler{}
	s.order = nil
	onClose := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	var err error
	if s.transport != nil {
		err = s.transport.Close()
	}
	for _, fn := range onClose {
		if cerr := fn(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
