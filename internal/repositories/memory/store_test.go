package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/store"
	"github.com/solarscope/backend/internal/utils"
	"gorm.io/datatypes"
)

// tickingClock advances one second per call so created_at values are distinct.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T, opts ...Option) store.Store {
	t.Helper()
	return NewStore(append([]Option{WithClock(tickingClock())}, opts...)...)
}

func analysisFor(userID *int64, sessionID *string, typ models.AnalysisType) models.NewAnalysis {
	return models.NewAnalysis{
		UserID:    userID,
		SessionID: sessionID,
		Type:      typ,
		ImagePath: "uploads/panel.jpg",
		Results:   datatypes.JSON(`{"panelCount":12}`),
	}
}

func TestStore_DemoAccount(t *testing.T) {
	t.Run("seeded by default", func(t *testing.T) {
		s := newTestStore(t)
		u, err := s.GetUserByUsername(context.Background(), DemoUsername)
		if err != nil {
			t.Fatalf("GetUserByUsername() error = %v", err)
		}
		if u == nil {
			t.Fatal("demo user missing")
		}
		if u.ID != 1 || u.Email != DemoEmail {
			t.Errorf("demo user = %+v", u)
		}
		if ok, err := utils.PasswordMatches(u.Password, DemoPassword); !ok {
			t.Errorf("demo password does not verify: %v", err)
		}
	})

	t.Run("skipped on request", func(t *testing.T) {
		s := newTestStore(t, WithoutDemoAccount())
		u, _ := s.GetUserByUsername(context.Background(), DemoUsername)
		if u != nil {
			t.Errorf("GetUserByUsername() = %+v, want nil", u)
		}
	})
}

func TestStore_CreateUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithoutDemoAccount())

	u, err := s.CreateUser(ctx, models.NewUser{Username: "alice", Email: "a@x.io", Password: "hash"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.ID != 1 {
		t.Errorf("ID = %d, want 1", u.ID)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	tests := []struct {
		name    string
		in      models.NewUser
		wantErr error
	}{
		{"duplicate email", models.NewUser{Username: "bob", Email: "a@x.io", Password: "h"}, utils.ErrDuplicateKey},
		{"duplicate username", models.NewUser{Username: "alice", Email: "b@x.io", Password: "h"}, utils.ErrDuplicateKey},
		{"missing email", models.NewUser{Username: "carol", Password: "h"}, utils.ErrInvalidRecord},
		{"missing password", models.NewUser{Username: "carol", Email: "c@x.io"}, utils.ErrInvalidRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateUser(ctx, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateUser() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, _ := s.GetUser(ctx, 2)
	if got != nil {
		t.Errorf("failed creates must not allocate users, got %+v", got)
	}
}

func TestStore_UpdateUserPassword(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.UpdateUserPassword(ctx, DemoEmail, "new-hash")
	if err != nil {
		t.Fatalf("UpdateUserPassword() error = %v", err)
	}
	if u == nil || u.Password != "new-hash" {
		t.Fatalf("UpdateUserPassword() = %+v", u)
	}
	again, _ := s.GetUserByEmail(ctx, DemoEmail)
	if again.Password != "new-hash" {
		t.Errorf("stored password = %q, want new-hash", again.Password)
	}

	missing, err := s.UpdateUserPassword(ctx, "nobody@x.io", "h")
	if err != nil || missing != nil {
		t.Errorf("UpdateUserPassword(unknown) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestStore_SequenceNumbers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	uid := models.Ptr(int64(1))

	for want := 1; want <= 3; want++ {
		a, err := s.CreateAnalysis(ctx, analysisFor(uid, nil, models.AnalysisInstallation))
		if err != nil {
			t.Fatalf("CreateAnalysis() error = %v", err)
		}
		if a.UserSequenceNumber != want {
			t.Errorf("installation #%d: sequence = %d", want, a.UserSequenceNumber)
		}
	}

	// Numbering is per type.
	a, _ := s.CreateAnalysis(ctx, analysisFor(uid, nil, models.AnalysisFaultDetection))
	if a.UserSequenceNumber != 1 {
		t.Errorf("first fault-detection sequence = %d, want 1", a.UserSequenceNumber)
	}

	// And per user.
	b, _ := s.CreateAnalysis(ctx, analysisFor(models.Ptr(int64(2)), nil, models.AnalysisInstallation))
	if b.UserSequenceNumber != 1 {
		t.Errorf("other user sequence = %d, want 1", b.UserSequenceNumber)
	}

	// Anonymous analyses are always 1.
	for i := 0; i < 2; i++ {
		c, _ := s.CreateAnalysis(ctx, analysisFor(nil, models.Ptr("sess"), models.AnalysisInstallation))
		if c.UserSequenceNumber != 1 {
			t.Errorf("anonymous sequence = %d, want 1", c.UserSequenceNumber)
		}
	}
}

func TestStore_CreateAnalysisValidation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		in   models.NewAnalysis
	}{
		{"both owners", analysisFor(models.Ptr(int64(1)), models.Ptr("s"), models.AnalysisInstallation)},
		{"unknown type", analysisFor(nil, models.Ptr("s"), "thermal")},
		{"no results", models.NewAnalysis{SessionID: models.Ptr("s"), Type: models.AnalysisInstallation, ImagePath: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateAnalysis(context.Background(), tt.in)
			if !errors.Is(err, utils.ErrInvalidRecord) {
				t.Errorf("CreateAnalysis() error = %v, want ErrInvalidRecord", err)
			}
		})
	}
}

func TestStore_AnalysesPartitionedAndOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	uid := models.Ptr(int64(1))

	first, _ := s.CreateAnalysis(ctx, analysisFor(uid, nil, models.AnalysisInstallation))
	second, _ := s.CreateAnalysis(ctx, analysisFor(uid, nil, models.AnalysisFaultDetection))
	anon, _ := s.CreateAnalysis(ctx, analysisFor(nil, models.Ptr("s1"), models.AnalysisInstallation))
	_, _ = s.CreateAnalysis(ctx, analysisFor(nil, models.Ptr("s2"), models.AnalysisInstallation))

	byUser, err := s.GetAnalysesByUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetAnalysesByUser() error = %v", err)
	}
	if len(byUser) != 2 || byUser[0].ID != second.ID || byUser[1].ID != first.ID {
		t.Errorf("GetAnalysesByUser() = %+v, want [%d %d]", byUser, second.ID, first.ID)
	}

	bySession, _ := s.GetAnalysesBySession(ctx, "s1")
	if len(bySession) != 1 || bySession[0].ID != anon.ID {
		t.Errorf("GetAnalysesBySession() = %+v", bySession)
	}

	none, _ := s.GetAnalysesByUser(ctx, 99)
	if none == nil || len(none) != 0 {
		t.Errorf("GetAnalysesByUser(99) = %#v, want empty slice", none)
	}
}

func TestStore_GetAnalysisReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, _ := s.CreateAnalysis(ctx, analysisFor(nil, models.Ptr("s"), models.AnalysisInstallation))
	created.Results[0] = 'X'

	got, err := s.GetAnalysis(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetAnalysis() error = %v", err)
	}
	if string(got.Results) != `{"panelCount":12}` {
		t.Errorf("Results = %s, stored record was mutated", got.Results)
	}

	missing, err := s.GetAnalysis(ctx, 404)
	if err != nil || missing != nil {
		t.Errorf("GetAnalysis(404) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestStore_ChatMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	post := func(userID *int64, sessionID *string, text string) *models.ChatMessage {
		t.Helper()
		m, err := s.CreateChatMessage(ctx, models.NewChatMessage{
			UserID: userID, SessionID: sessionID, Username: "u", Message: text,
		})
		if err != nil {
			t.Fatalf("CreateChatMessage() error = %v", err)
		}
		return m
	}

	m1 := post(nil, models.Ptr("s1"), "hello")
	m2 := post(nil, models.Ptr("s1"), "again")
	post(models.Ptr(int64(1)), nil, "logged in")

	if m1.Type != models.ChatMessageUser || m1.Category == nil || *m1.Category != models.DefaultChatCategory {
		t.Errorf("defaults not applied: %+v", m1)
	}

	t.Run("by session newest first", func(t *testing.T) {
		got, _ := s.GetChatMessagesBySession(ctx, "s1", 0)
		if len(got) != 2 || got[0].ID != m2.ID {
			t.Errorf("GetChatMessagesBySession() = %+v", got)
		}
	})

	t.Run("feed excludes user messages", func(t *testing.T) {
		got, _ := s.GetChatMessages(ctx, 0)
		if len(got) != 2 {
			t.Errorf("GetChatMessages() len = %d, want 2", len(got))
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, _ := s.GetChatMessagesBySession(ctx, "s1", 1)
		if len(got) != 1 || got[0].ID != m2.ID {
			t.Errorf("GetChatMessagesBySession(limit 1) = %+v", got)
		}
	})

	t.Run("default limit", func(t *testing.T) {
		for i := 0; i < store.DefaultChatLimit+5; i++ {
			_, err := s.CreateChatMessage(ctx, models.NewChatMessage{UserID: models.Ptr(int64(7)), Username: "u", Message: "spam"})
			if err != nil {
				t.Fatalf("CreateChatMessage() error = %v", err)
			}
		}
		got, _ := s.GetChatMessagesByUser(ctx, 7, -1)
		if len(got) != store.DefaultChatLimit {
			t.Errorf("len = %d, want %d", len(got), store.DefaultChatLimit)
		}
	})
}

func TestStore_ChatMessageReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sid := "s1"
	created, err := s.CreateChatMessage(ctx, models.NewChatMessage{
		SessionID: &sid, Username: "u", Message: "hello", Category: models.Ptr("installation"),
	})
	if err != nil {
		t.Fatalf("CreateChatMessage() error = %v", err)
	}
	*created.Category = "tampered"
	*created.SessionID = "s2"
	sid = "s3"

	got, _ := s.GetChatMessagesBySession(ctx, "s1", 0)
	if len(got) != 1 {
		t.Fatalf("GetChatMessagesBySession() len = %d, want 1", len(got))
	}
	if *got[0].Category != "installation" {
		t.Errorf("Category = %q, stored message was mutated", *got[0].Category)
	}

	*got[0].Category = "tampered"
	again, _ := s.GetChatMessagesBySession(ctx, "s1", 0)
	if *again[0].Category != "installation" {
		t.Errorf("Category = %q, read copy shares memory", *again[0].Category)
	}
}

func TestStore_ClearSessionData(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _ = s.CreateAnalysis(ctx, analysisFor(nil, models.Ptr("gone"), models.AnalysisInstallation))
	kept, _ := s.CreateAnalysis(ctx, analysisFor(nil, models.Ptr("kept"), models.AnalysisInstallation))
	_, _ = s.CreateChatMessage(ctx, models.NewChatMessage{SessionID: models.Ptr("gone"), Username: "u", Message: "m"})

	if err := s.ClearSessionData(ctx, "gone"); err != nil {
		t.Fatalf("ClearSessionData() error = %v", err)
	}

	if got, _ := s.GetAnalysesBySession(ctx, "gone"); len(got) != 0 {
		t.Errorf("analyses left for cleared session: %d", len(got))
	}
	if got, _ := s.GetChatMessagesBySession(ctx, "gone", 0); len(got) != 0 {
		t.Errorf("messages left for cleared session: %d", len(got))
	}
	if got, _ := s.GetAnalysis(ctx, kept.ID); got == nil {
		t.Error("other session's analysis was removed")
	}
}

func TestStore_ClearAllUsersExceptTesting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _ = s.CreateUser(ctx, models.NewUser{Username: "alice", Email: "a@x.io", Password: "h"})
	_, _ = s.CreateAnalysis(ctx, analysisFor(models.Ptr(int64(2)), nil, models.AnalysisInstallation))

	if err := s.ClearAllUsersExceptTesting(ctx); err != nil {
		t.Fatalf("ClearAllUsersExceptTesting() error = %v", err)
	}

	if u, _ := s.GetUserByEmail(ctx, "a@x.io"); u != nil {
		t.Error("user survived reset")
	}
	if got, _ := s.GetAnalysesByUser(ctx, 2); len(got) != 0 {
		t.Error("analyses survived reset")
	}
	demo, _ := s.GetUserByUsername(ctx, DemoUsername)
	if demo == nil || demo.ID != 1 {
		t.Errorf("demo account after reset = %+v, want id 1", demo)
	}

	// Identifiers restart.
	a, _ := s.CreateAnalysis(ctx, analysisFor(nil, models.Ptr("s"), models.AnalysisInstallation))
	if a.ID != 1 {
		t.Errorf("analysis id after reset = %d, want 1", a.ID)
	}
}

func TestStore_RegisterAnalyzeListScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.CreateUser(ctx, models.NewUser{Username: "dana", Email: "d@x.io", Password: "h"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.CreateAnalysis(ctx, analysisFor(&u.ID, nil, models.AnalysisInstallation)); err != nil {
			t.Fatalf("CreateAnalysis() error = %v", err)
		}
	}

	list, _ := s.GetAnalysesByUser(ctx, u.ID)
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].UserSequenceNumber != 2 || list[1].UserSequenceNumber != 1 {
		t.Errorf("sequence order = [%d %d], want [2 1]", list[0].UserSequenceNumber, list[1].UserSequenceNumber)
	}
}

func TestStore_ConcurrentSequenceAssignment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	uid := models.Ptr(int64(1))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateAnalysis(ctx, analysisFor(uid, nil, models.AnalysisInstallation)); err != nil {
				t.Errorf("CreateAnalysis() error = %v", err)
			}
		}()
	}
	wg.Wait()

	list, _ := s.GetAnalysesByUser(ctx, 1)
	seen := make(map[int]bool, n)
	for _, a := range list {
		if seen[a.UserSequenceNumber] {
			t.Fatalf("sequence %d assigned twice", a.UserSequenceNumber)
		}
		seen[a.UserSequenceNumber] = true
	}
	for i := 1; i <= n; i++ {
		if !seen[i] {
			t.Errorf("sequence %d missing", i)
		}
	}
}

func TestStore_StorageStatus(t *testing.T) {
	got := newTestStore(t).StorageStatus()
	if got.Type != store.StorageMemory || !got.Available {
		t.Errorf("StorageStatus() = %+v", got)
	}
}
