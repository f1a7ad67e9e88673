package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/solarscope/backend/internal/cache"
	"github.com/solarscope/backend/internal/repositories/memory"
	"github.com/solarscope/backend/internal/store"
	"github.com/solarscope/backend/internal/utils"
)

type MaintenanceService interface {
	// ClearSession deletes the anonymous session's analyses and messages.
	ClearSession(ctx context.Context, sessionID string) error
	// ResetAll wipes users, analyses and messages. Non-production only.
	ResetAll(ctx context.Context) error
	Snapshot(ctx context.Context) (*StorageSnapshot, error)
}

type StorageSnapshot struct {
	Storage            store.StorageStatus `json:"storage"`
	DatabaseConfigured bool                `json:"database_configured"`
	ConnectionChecked  bool                `json:"connection_checked"`
	DemoAccount        *UserSummary        `json:"demo_account"`
}

type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type maintenanceService struct {
	store              store.Store
	cache              cache.Cache
	databaseConfigured bool
	log                logrus.FieldLogger
}

func NewMaintenanceService(s store.Store, c cache.Cache, databaseConfigured bool, log logrus.FieldLogger) MaintenanceService {
	if log == nil {
		log = logrus.New()
	}
	return &maintenanceService{store: s, cache: c, databaseConfigured: databaseConfigured, log: log}
}

func (s *maintenanceService) ClearSession(ctx context.Context, sessionID string) error {
	const op = "MaintenanceService.ClearSession"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "no active session", nil)
	}

	var keys []string
	if s.cache != nil && s.store.StorageStatus().Type == store.StorageDatabase {
		if list, err := s.store.GetAnalysesBySession(ctx, sessionID); err == nil {
			for _, a := range list {
				keys = append(keys, cache.AnalysisKey(string(store.StorageDatabase), a.ID))
			}
		}
	}

	if err := s.store.ClearSessionData(ctx, sessionID); err != nil {
		return storeErr(op, "Failed to clear session data", err)
	}

	if len(keys) > 0 {
		if err := s.cache.Del(ctx, keys...); err != nil {
			s.log.WithError(err).Warn("cache invalidation failed")
		}
	}
	return nil
}

func (s *maintenanceService) ResetAll(ctx context.Context) error {
	const op = "MaintenanceService.ResetAll"

	if err := s.store.ClearAllUsersExceptTesting(ctx); err != nil {
		return storeErr(op, "Failed to clear users", err)
	}
	if s.cache != nil {
		if err := s.cache.DelPrefix(ctx, cache.AnalysisPrefix(string(store.StorageDatabase))); err != nil {
			s.log.WithError(err).Warn("cache invalidation failed")
		}
	}
	s.log.Warn("all users, analyses and chat messages cleared")
	return nil
}

func (s *maintenanceService) Snapshot(ctx context.Context) (*StorageSnapshot, error) {
	const op = "MaintenanceService.Snapshot"

	out := &StorageSnapshot{
		Storage:            s.store.StorageStatus(),
		DatabaseConfigured: s.databaseConfigured,
	}
	if cc, ok := s.store.(store.ConnectionChecker); ok {
		done, cancel := context.WithCancel(ctx)
		cancel()
		out.ConnectionChecked = cc.WaitForConnectionCheck(done) == nil
	} else {
		out.ConnectionChecked = true
	}

	u, err := s.store.GetUserByEmail(ctx, memory.DemoEmail)
	if err != nil {
		return nil, storeErr(op, "failed to load demo account", err)
	}
	if u != nil {
		out.DemoAccount = &UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
	}
	return out, nil
}
