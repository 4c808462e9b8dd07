package repository

import (
	"context"

	"sigef-backend/internal/model"

	"gorm.io/gorm"
)

type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *model.ReportSnapshot) error
	FindRecent(ctx context.Context, limit int) ([]model.ReportSnapshot, error)
}

type snapshotRepo struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) SnapshotRepository {
	return &snapshotRepo{db}
}

func (r *snapshotRepo) Create(ctx context.Context, snapshot *model.ReportSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// FindRecent returns the newest snapshots first.
func (r *snapshotRepo) FindRecent(ctx context.Context, limit int) ([]model.ReportSnapshot, error) {
	var snapshots []model.ReportSnapshot
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&snapshots).Error
	return snapshots, err
}
