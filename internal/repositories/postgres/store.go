// Package postgres is the durable store: every operation runs against the
// relational database through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/store"
	"github.com/solarscope/backend/internal/utils"
	"gorm.io/gorm"
)

// Conn hands out the shared connection pool, or fails when it was never
// established. Connection lifecycle is owned by the caller.
type Conn func() (*gorm.DB, error)

// StaticConn wraps an already opened pool. A nil db yields ErrStoreUnavailable.
func StaticConn(db *gorm.DB) Conn {
	return func() (*gorm.DB, error) {
		if db == nil {
			return nil, errors.New("database connection not available")
		}
		return db, nil
	}
}

type pgStore struct {
	conn Conn
}

func NewStore(conn Conn) store.DurableStore {
	return &pgStore{conn: conn}
}

// db returns a context-bound handle or a StoreUnavailable error.
func (s *pgStore) db(ctx context.Context, op string) (*gorm.DB, error) {
	if s.conn == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "durable store unavailable", utils.ErrStoreUnavailable)
	}
	db, err := s.conn()
	if err != nil || db == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "durable store unavailable", fmt.Errorf("%w: %v", utils.ErrStoreUnavailable, err))
	}
	return db.WithContext(ctx), nil
}

// Ping runs the liveness query.
func (s *pgStore) Ping(ctx context.Context) error {
	const op = "postgres.Ping"

	db, err := s.db(ctx, op)
	if err != nil {
		return err
	}
	var one int
	if err := db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		return failed(op, err)
	}
	return nil
}

func (s *pgStore) StorageStatus() store.StorageStatus {
	return store.StorageStatus{Type: store.StorageDatabase, Available: true}
}

func (s *pgStore) ClearSessionData(ctx context.Context, sessionID string) error {
	const op = "postgres.ClearSessionData"

	db, err := s.db(ctx, op)
	if err != nil {
		return err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.Analysis{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).Delete(&models.ChatMessage{}).Error
	})
	if err != nil {
		return failed(op, err)
	}
	return nil
}

// ClearAllUsersExceptTesting deletes every user, analysis and chat message.
func (s *pgStore) ClearAllUsersExceptTesting(ctx context.Context) error {
	const op = "postgres.ClearAllUsersExceptTesting"

	db, err := s.db(ctx, op)
	if err != nil {
		return err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.User{}, &models.Analysis{}, &models.ChatMessage{}} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return failed(op, err)
	}
	return nil
}

func failed(op string, err error) error {
	return utils.E(utils.CodeInternal, op, "query failed", fmt.Errorf("%w: %w", utils.ErrBackendOperationFailed, err))
}

// isUniqueViolation matches both gorm's translated error and the raw
// Postgres SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ store.DurableStore = (*pgStore)(nil)
