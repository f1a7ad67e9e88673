package session

import (
	"context"
	"errors"
	"time"

	"github.com/solarscope/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps sessions in the relational "session" table.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (g *GormStore) Get(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := g.db.WithContext(ctx).
		Where("sid = ? AND expire > ?", id, g.now().UTC()).
		Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (g *GormStore) Save(ctx context.Context, s *models.Session) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sid"}},
			DoUpdates: clause.AssignmentColumns([]string{"sess", "expire"}),
		}).
		Create(s).Error
}

func (g *GormStore) Delete(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Where("sid = ?", id).Delete(&models.Session{}).Error
}

func (g *GormStore) Prune(ctx context.Context) (int64, error) {
	res := g.db.WithContext(ctx).Where("expire <= ?", g.now().UTC()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

var _ Store = (*GormStore)(nil)
