// Package memory is the volatile store: all records live in process memory
// and are lost on restart. It never fails for availability reasons.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/store"
	"github.com/solarscope/backend/internal/utils"
)

// memStore keeps records in keyed maps. Identifiers start at 1 and are
// assigned by the store. Safe for concurrent use: every read-modify-write
// (including sequence assignment) happens under one lock.
type memStore struct {
	mu sync.RWMutex

	users        map[int64]models.User
	analyses     map[int64]models.Analysis
	chatMessages map[int64]models.ChatMessage

	nextUserID     int64
	nextAnalysisID int64
	nextMessageID  int64

	now  func() time.Time
	seed bool
}

type Option func(*memStore)

// WithClock overrides time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *memStore) { s.now = now }
}

// WithoutDemoAccount skips seeding the demo identity.
func WithoutDemoAccount() Option {
	return func(s *memStore) { s.seed = false }
}

func NewStore(opts ...Option) store.Store {
	s := &memStore{now: time.Now, seed: true}
	for _, o := range opts {
		o(s)
	}
	s.reset()
	return s
}

// reset empties every container and re-seeds the demo account. Caller holds mu
// (or is the constructor).
func (s *memStore) reset() {
	s.users = make(map[int64]models.User)
	s.analyses = make(map[int64]models.Analysis)
	s.chatMessages = make(map[int64]models.ChatMessage)
	s.nextUserID, s.nextAnalysisID, s.nextMessageID = 1, 1, 1

	if s.seed {
		u := demoUser()
		u.ID = s.nextUserID
		u.CreatedAt = s.now().UTC()
		s.users[u.ID] = u
		s.nextUserID++
	}
}

// Users

func (s *memStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.userByEmail(email), nil
}

func (s *memStore) userByEmail(email string) *models.User {
	for _, u := range s.users {
		if u.Email == email {
			return &u
		}
	}
	return nil
}

func (s *memStore) CreateUser(_ context.Context, in models.NewUser) (*models.User, error) {
	const op = "memory.CreateUser"

	if err := in.Validate(); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Mirror the relational unique constraints.
	for _, u := range s.users {
		if u.Username == in.Username || u.Email == in.Email {
			return nil, utils.E(utils.CodeConflict, op, "username or email already registered", utils.ErrDuplicateKey)
		}
	}

	u := models.User{
		ID:        s.nextUserID,
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		CreatedAt: s.now().UTC(),
	}
	s.nextUserID++
	s.users[u.ID] = u
	return &u, nil
}

func (s *memStore) UpdateUserPassword(_ context.Context, email, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.userByEmail(email)
	if u == nil {
		return nil, nil
	}
	u.Password = passwordHash
	s.users[u.ID] = *u
	return u, nil
}

// Analyses

func (s *memStore) CreateAnalysis(_ context.Context, in models.NewAnalysis) (*models.Analysis, error) {
	const op = "memory.CreateAnalysis"

	if err := in.Validate(); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid analysis", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := 1
	if in.UserID != nil {
		var existing []int
		for _, a := range s.analyses {
			if a.UserID != nil && *a.UserID == *in.UserID && a.Type == in.Type {
				existing = append(existing, a.UserSequenceNumber)
			}
		}
		seq = models.NextSequenceNumber(existing)
	}

	a := in.Record(seq)
	a.ID = s.nextAnalysisID
	a.CreatedAt = s.now().UTC()
	s.nextAnalysisID++
	s.analyses[a.ID] = *cloneAnalysis(*a)

	return cloneAnalysis(*a), nil
}

func (s *memStore) GetAnalysesByUser(_ context.Context, userID int64) ([]models.Analysis, error) {
	return s.filterAnalyses(func(a *models.Analysis) bool {
		return a.UserID != nil && *a.UserID == userID
	}), nil
}

func (s *memStore) GetAnalysesBySession(_ context.Context, sessionID string) ([]models.Analysis, error) {
	return s.filterAnalyses(func(a *models.Analysis) bool {
		return a.SessionID != nil && *a.SessionID == sessionID
	}), nil
}

func (s *memStore) filterAnalyses(keep func(*models.Analysis) bool) []models.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Analysis, 0)
	for _, a := range s.analyses {
		if keep(&a) {
			out = append(out, *cloneAnalysis(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

func (s *memStore) GetAnalysis(_ context.Context, id int64) (*models.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analyses[id]
	if !ok {
		return nil, nil
	}
	return cloneAnalysis(a), nil
}

// Chat

func (s *memStore) CreateChatMessage(_ context.Context, in models.NewChatMessage) (*models.ChatMessage, error) {
	if err := in.Validate(); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, "memory.CreateChatMessage", "invalid chat message", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := in.Record()
	m.ID = s.nextMessageID
	m.CreatedAt = s.now().UTC()
	s.nextMessageID++
	s.chatMessages[m.ID] = *cloneMessage(*m)
	return cloneMessage(*m), nil
}

func (s *memStore) GetChatMessages(_ context.Context, limit int) ([]models.ChatMessage, error) {
	return s.filterMessages(limit, func(m *models.ChatMessage) bool { return m.UserID == nil }), nil
}

func (s *memStore) GetChatMessagesByUser(_ context.Context, userID int64, limit int) ([]models.ChatMessage, error) {
	return s.filterMessages(limit, func(m *models.ChatMessage) bool {
		return m.UserID != nil && *m.UserID == userID
	}), nil
}

func (s *memStore) GetChatMessagesBySession(_ context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	return s.filterMessages(limit, func(m *models.ChatMessage) bool {
		return m.SessionID != nil && *m.SessionID == sessionID
	}), nil
}

func (s *memStore) filterMessages(limit int, keep func(*models.ChatMessage) bool) []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ChatMessage, 0)
	for _, m := range s.chatMessages {
		if keep(&m) {
			out = append(out, *cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	if limit = store.ChatLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Maintenance

func (s *memStore) ClearSessionData(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.analyses {
		if a.SessionID != nil && *a.SessionID == sessionID {
			delete(s.analyses, id)
		}
	}
	for id, m := range s.chatMessages {
		if m.SessionID != nil && *m.SessionID == sessionID {
			delete(s.chatMessages, id)
		}
	}
	return nil
}

// ClearAllUsersExceptTesting wipes every record and resets the identifiers.
// The demo account is seeded again so the store stays usable.
func (s *memStore) ClearAllUsersExceptTesting(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	return nil
}

func (s *memStore) StorageStatus() store.StorageStatus {
	return store.StorageStatus{Type: store.StorageMemory, Available: true}
}

// Stored records share no memory with callers.
func cloneAnalysis(a models.Analysis) *models.Analysis {
	a.UserID = clonePtr(a.UserID)
	a.SessionID = clonePtr(a.SessionID)
	a.Results = models.CloneJSON(a.Results)
	a.OriginalImageURL = clonePtr(a.OriginalImageURL)
	a.AnalysisImageURL = clonePtr(a.AnalysisImageURL)
	return &a
}

func cloneMessage(m models.ChatMessage) *models.ChatMessage {
	m.UserID = clonePtr(m.UserID)
	m.SessionID = clonePtr(m.SessionID)
	m.Category = clonePtr(m.Category)
	return &m
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return models.Ptr(*p)
}

func newerFirst(ti, tj time.Time, idi, idj int64) bool {
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return idi > idj
}

var _ store.Store = (*memStore)(nil)
