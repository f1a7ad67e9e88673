package workers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solarscope/backend/internal/session"
)

// uploadPrefix marks files written by the analysis service. Anything else in
// the directory is left alone.
const uploadPrefix = "solarscope-"

// CleanupWorker removes stale upload temp files and expired sessions on a
// fixed interval.
type CleanupWorker struct {
	UploadDir string
	MaxAge    time.Duration
	Interval  time.Duration

	// Sessions returns the session store in use at the time of the sweep.
	Sessions func() session.Store

	Logger logrus.FieldLogger

	now func() time.Time
}

func (w *CleanupWorker) Start(ctx context.Context) error {
	if w.UploadDir == "" || w.Sessions == nil {
		return errors.New("CleanupWorker missing dependency: UploadDir/Sessions must be set")
	}
	if w.MaxAge <= 0 {
		w.MaxAge = time.Hour
	}
	if w.Interval <= 0 {
		w.Interval = 10 * time.Minute
	}
	if w.Logger == nil {
		w.Logger = logrus.New()
	}
	if w.now == nil {
		w.now = time.Now
	}

	go w.run(ctx)
	return nil
}

func (w *CleanupWorker) run(ctx context.Context) {
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass.
func (w *CleanupWorker) Sweep(ctx context.Context) {
	files, err := w.removeStaleUploads()
	if err != nil {
		w.Logger.WithError(err).Warn("upload cleanup failed")
	}

	sessions, err := w.Sessions().Prune(ctx)
	if err != nil {
		w.Logger.WithError(err).Warn("session prune failed")
	}

	if files > 0 || sessions > 0 {
		w.Logger.WithFields(logrus.Fields{
			"files_removed":    files,
			"sessions_removed": sessions,
		}).Info("cleanup finished")
	}
}

func (w *CleanupWorker) removeStaleUploads() (int, error) {
	entries, err := os.ReadDir(w.UploadDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := w.now().Add(-w.MaxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), uploadPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.UploadDir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.Logger.WithError(err).WithField("file", e.Name()).Warn("failed to remove upload")
			continue
		}
		removed++
	}
	return removed, nil
}
