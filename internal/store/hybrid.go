package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solarscope/backend/internal/metrics"
	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/session"
	"github.com/solarscope/backend/internal/utils"
)

const (
	DefaultProbeDelay   = 2 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

// HybridStore routes every operation to the durable store while it is healthy
// and to the volatile store otherwise.
//
// The durable store is probed once after construction. Until the probe
// succeeds all calls are served by the volatile store. The first operational
// failure after that demotes the coordinator to volatile-only for the rest of
// the process lifetime; there is no re-probe.
type HybridStore struct {
	volatile  Store
	durable   atomic.Pointer[durableRef]
	available atomic.Bool

	probeDelay   time.Duration
	probeTimeout time.Duration
	log          logrus.FieldLogger

	volatileSessions session.Store
	durableSessions  session.Store
	sessions         atomic.Pointer[sessionRef]

	checked chan struct{}
}

type durableRef struct{ s DurableStore }

type sessionRef struct{ s session.Store }

type Option func(*HybridStore)

func WithProbeDelay(d time.Duration) Option {
	return func(h *HybridStore) { h.probeDelay = d }
}

func WithProbeTimeout(d time.Duration) Option {
	return func(h *HybridStore) { h.probeTimeout = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(h *HybridStore) { h.log = l }
}

// WithSessionStores sets the session stores handed to the auth layer before
// and after a successful probe.
func WithSessionStores(volatile, durable session.Store) Option {
	return func(h *HybridStore) {
		h.volatileSessions = volatile
		h.durableSessions = durable
	}
}

// NewHybridStore starts the durable probe in the background. ctx bounds the
// probe only. A nil durable store means volatile-only from the start.
func NewHybridStore(ctx context.Context, volatile Store, durable DurableStore, opts ...Option) *HybridStore {
	h := &HybridStore{
		volatile:     volatile,
		probeDelay:   DefaultProbeDelay,
		probeTimeout: DefaultProbeTimeout,
		checked:      make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.log == nil {
		h.log = logrus.New()
	}
	if h.volatileSessions == nil {
		h.volatileSessions = session.NewMemoryStore()
	}
	h.sessions.Store(&sessionRef{s: h.volatileSessions})
	if durable != nil {
		h.durable.Store(&durableRef{s: durable})
	}
	metrics.SetStorageBackend(string(StorageMemory))

	go h.checkConnection(ctx)
	return h
}

// WaitForConnectionCheck blocks until the startup probe has finished.
// A finished probe wins over a done ctx.
func (h *HybridStore) WaitForConnectionCheck(ctx context.Context) error {
	select {
	case <-h.checked:
		return nil
	default:
	}
	select {
	case <-h.checked:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *HybridStore) checkConnection(ctx context.Context) {
	defer close(h.checked)

	ref := h.durable.Load()
	if ref == nil {
		h.log.Info("no durable store configured, using memory storage")
		return
	}

	// Give connection setup elsewhere in the process time to finish.
	select {
	case <-time.After(h.probeDelay):
	case <-ctx.Done():
		h.probeFailed(ctx.Err())
		return
	}

	pctx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()

	// Ping may ignore ctx, so race it against the timer explicitly.
	res := make(chan error, 1)
	go func() { res <- ref.s.Ping(pctx) }()

	var err error
	select {
	case err = <-res:
	case <-pctx.Done():
		err = fmt.Errorf("connection timeout after %s: %w", h.probeTimeout, pctx.Err())
	}
	if err != nil {
		h.probeFailed(err)
		return
	}

	h.available.Store(true)
	if h.durableSessions != nil {
		h.sessions.Store(&sessionRef{s: h.durableSessions})
	}
	metrics.SetStorageBackend(string(StorageDatabase))
	h.log.Info("database connection verified, using postgres storage")
}

func (h *HybridStore) probeFailed(err error) {
	h.available.Store(false)
	h.durable.Store(nil)
	h.log.WithError(err).Warn("database connection failed, using memory storage")
}

// demote is called after any durable failure. Concurrent callers may both
// store false; the write is idempotent.
func (h *HybridStore) demote(op string, err error) {
	h.available.Store(false)
	metrics.StorageFallbacks.WithLabelValues(op).Inc()
	metrics.SetStorageBackend(string(StorageMemory))
	h.log.WithFields(logrus.Fields{"op": op}).WithError(err).Warn("durable store failed, falling back to memory")
}

func (h *HybridStore) active() DurableStore {
	if !h.available.Load() {
		return nil
	}
	if ref := h.durable.Load(); ref != nil {
		return ref.s
	}
	return nil
}

// route runs fn on the durable store when it is active, falling through to
// the volatile store on failure. Caller errors (duplicate keys, invalid
// records) and cancellation of the caller's own context are returned as is.
func route[T any](ctx context.Context, h *HybridStore, op string, fn func(Store) (T, error)) (T, error) {
	if d := h.active(); d != nil {
		out, err := fn(d)
		if err == nil || utils.IsCallerError(err) || ctx.Err() != nil {
			return out, err
		}
		h.demote(op, err)
	}
	return fn(h.volatile)
}

func exec(ctx context.Context, h *HybridStore, op string, fn func(Store) error) error {
	_, err := route(ctx, h, op, func(s Store) (struct{}, error) {
		return struct{}{}, fn(s)
	})
	return err
}

// SessionStore returns the session store the auth layer should use now.
func (h *HybridStore) SessionStore() session.Store {
	return h.sessions.Load().s
}

func (h *HybridStore) StorageStatus() StorageStatus {
	if h.active() != nil {
		return StorageStatus{Type: StorageDatabase, Available: true}
	}
	return StorageStatus{Type: StorageMemory, Available: true}
}

func (h *HybridStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return route(ctx, h, "GetUser", func(s Store) (*models.User, error) { return s.GetUser(ctx, id) })
}

func (h *HybridStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return route(ctx, h, "GetUserByUsername", func(s Store) (*models.User, error) {
		return s.GetUserByUsername(ctx, username)
	})
}

func (h *HybridStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return route(ctx, h, "GetUserByEmail", func(s Store) (*models.User, error) {
		return s.GetUserByEmail(ctx, email)
	})
}

func (h *HybridStore) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	return route(ctx, h, "CreateUser", func(s Store) (*models.User, error) { return s.CreateUser(ctx, in) })
}

func (h *HybridStore) UpdateUserPassword(ctx context.Context, email, passwordHash string) (*models.User, error) {
	return route(ctx, h, "UpdateUserPassword", func(s Store) (*models.User, error) {
		return s.UpdateUserPassword(ctx, email, passwordHash)
	})
}

func (h *HybridStore) CreateAnalysis(ctx context.Context, in models.NewAnalysis) (*models.Analysis, error) {
	return route(ctx, h, "CreateAnalysis", func(s Store) (*models.Analysis, error) {
		return s.CreateAnalysis(ctx, in)
	})
}

func (h *HybridStore) GetAnalysesByUser(ctx context.Context, userID int64) ([]models.Analysis, error) {
	return route(ctx, h, "GetAnalysesByUser", func(s Store) ([]models.Analysis, error) {
		return s.GetAnalysesByUser(ctx, userID)
	})
}

func (h *HybridStore) GetAnalysesBySession(ctx context.Context, sessionID string) ([]models.Analysis, error) {
	return route(ctx, h, "GetAnalysesBySession", func(s Store) ([]models.Analysis, error) {
		return s.GetAnalysesBySession(ctx, sessionID)
	})
}

func (h *HybridStore) GetAnalysis(ctx context.Context, id int64) (*models.Analysis, error) {
	return route(ctx, h, "GetAnalysis", func(s Store) (*models.Analysis, error) { return s.GetAnalysis(ctx, id) })
}

func (h *HybridStore) CreateChatMessage(ctx context.Context, in models.NewChatMessage) (*models.ChatMessage, error) {
	return route(ctx, h, "CreateChatMessage", func(s Store) (*models.ChatMessage, error) {
		return s.CreateChatMessage(ctx, in)
	})
}

func (h *HybridStore) GetChatMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	return route(ctx, h, "GetChatMessages", func(s Store) ([]models.ChatMessage, error) {
		return s.GetChatMessages(ctx, limit)
	})
}

func (h *HybridStore) GetChatMessagesByUser(ctx context.Context, userID int64, limit int) ([]models.ChatMessage, error) {
	return route(ctx, h, "GetChatMessagesByUser", func(s Store) ([]models.ChatMessage, error) {
		return s.GetChatMessagesByUser(ctx, userID, limit)
	})
}

func (h *HybridStore) GetChatMessagesBySession(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	return route(ctx, h, "GetChatMessagesBySession", func(s Store) ([]models.ChatMessage, error) {
		return s.GetChatMessagesBySession(ctx, sessionID, limit)
	})
}

func (h *HybridStore) ClearSessionData(ctx context.Context, sessionID string) error {
	return exec(ctx, h, "ClearSessionData", func(s Store) error { return s.ClearSessionData(ctx, sessionID) })
}

func (h *HybridStore) ClearAllUsersExceptTesting(ctx context.Context) error {
	return exec(ctx, h, "ClearAllUsersExceptTesting", func(s Store) error { return s.ClearAllUsersExceptTesting(ctx) })
}

var (
	_ Store             = (*HybridStore)(nil)
	_ ConnectionChecker = (*HybridStore)(nil)
)
