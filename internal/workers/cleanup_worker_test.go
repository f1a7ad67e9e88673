package workers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/solarscope/backend/internal/logger"
	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/session"
)

func writeFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	mt := time.Now().Add(-age)
	if err := os.Chtimes(p, mt, mt); err != nil {
		t.Fatal(err)
	}
	return p
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestCleanupWorker_Sweep(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stale := writeFile(t, dir, "solarscope-old-roof.png", 2*time.Hour)
	fresh := writeFile(t, dir, "solarscope-new-roof.png", time.Minute)
	foreign := writeFile(t, dir, "keep-me.txt", 48*time.Hour)

	sessions := session.NewMemoryStore()
	now := time.Now()
	_ = sessions.Save(ctx, &models.Session{ID: "expired", ExpiresAt: now.Add(-time.Minute)})
	_ = sessions.Save(ctx, &models.Session{ID: "live", ExpiresAt: now.Add(time.Hour)})

	w := &CleanupWorker{
		UploadDir: dir,
		MaxAge:    time.Hour,
		Sessions:  func() session.Store { return sessions },
		Logger:    logger.Discard(),
	}
	if err := w.Start(canceled()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Sweep(ctx)

	if exists(stale) {
		t.Error("stale upload not removed")
	}
	if !exists(fresh) || !exists(foreign) {
		t.Error("fresh or foreign file removed")
	}
	if s, _ := sessions.Get(ctx, "live"); s == nil {
		t.Error("live session pruned")
	}
	if n, _ := sessions.Prune(ctx); n != 0 {
		t.Errorf("expired sessions left after sweep: %d", n)
	}
}

func TestCleanupWorker_MissingDir(t *testing.T) {
	w := &CleanupWorker{
		UploadDir: filepath.Join(t.TempDir(), "absent"),
		Sessions:  func() session.Store { return session.NewMemoryStore() },
		Logger:    logger.Discard(),
		now:       time.Now,
	}
	if n, err := w.removeStaleUploads(); err != nil || n != 0 {
		t.Errorf("removeStaleUploads() = %d, %v", n, err)
	}
}

func TestCleanupWorker_RequiresDeps(t *testing.T) {
	if err := (&CleanupWorker{}).Start(context.Background()); err == nil {
		t.Error("Start() without deps must fail")
	}
}

func canceled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
