package repository

import (
	"context"
	"errors"
	"time"

	"sigef-backend/internal/model"

	"gorm.io/gorm"
)

type IdempotencyRepository interface {
	// Reserve returns the stored record for rec.Key, creating rec as a pending record when
	// none exists. created reports whether this call made the reservation.
	Reserve(ctx context.Context, rec *model.IdempotencyKey) (stored *model.IdempotencyKey, created bool, err error)
	Complete(ctx context.Context, key string, status int, body []byte) error
	Release(ctx context.Context, key string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type idempotencyRepo struct {
	db *gorm.DB
}

func NewIdempotencyRepo(db *gorm.DB) IdempotencyRepository {
	return &idempotencyRepo{db}
}

func (r *idempotencyRepo) Reserve(ctx context.Context, rec *model.IdempotencyKey) (*model.IdempotencyKey, bool, error) {
	db := r.db.WithContext(ctx)

	var existing model.IdempotencyKey
	err := db.Where("idempotency_key = ?", rec.Key).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if err := db.Create(rec).Error; err != nil {
		// Could be a unique race: read again
		if e2 := db.Where("idempotency_key = ?", rec.Key).First(&existing).Error; e2 != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	return rec, true, nil
}

func (r *idempotencyRepo) Complete(ctx context.Context, key string, status int, body []byte) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&model.IdempotencyKey{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]any{
			"response_status": status,
			"response_body":   body,
			"completed_at":    &now,
		}).Error
}

// Release drops a pending key so a failed request can be retried with it.
func (r *idempotencyRepo) Release(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("idempotency_key = ? AND response_status = 0", key).
		Delete(&model.IdempotencyKey{}).Error
}

func (r *idempotencyRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
