package registry

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Archive persists ended sessions so listRecent survives restarts.
type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) Migrate() error {
	return a.db.AutoMigrate(&Archived{})
}

func (a *Archive) Save(ctx context.Context, rec *Archived) error {
	// Upsert keeps a re-delivered end request from failing on the key.
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ended_at", "turn_count"}),
	}).Create(rec).Error
}

func (a *Archive) Recent(ctx context.Context, limit int) ([]*Archived, error) {
	var rows []*Archived
	err := a.db.WithContext(ctx).Order("ended_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.WithContext(ctx).Model(&Archived{}).Count(&n).Error
	return n, err
}
