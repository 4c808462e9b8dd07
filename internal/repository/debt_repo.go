package repository

import (
	"context"
	"time"

	"sigef-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DebtFilter narrows FindAll. OverdueAt, when set, keeps unpaid debts due before it.
type DebtFilter struct {
	Type      model.DebtType
	Status    model.DebtStatus
	OverdueAt *time.Time
}

type DebtRepository interface {
	WithTx(tx *gorm.DB) DebtRepository
	Create(ctx context.Context, debt *model.Debt) error
	FindAll(ctx context.Context, filter DebtFilter) ([]model.Debt, error)
	FindByID(ctx context.Context, id string) (*model.Debt, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.Debt, error)
	Update(ctx context.Context, debt *model.Debt) error
	Delete(ctx context.Context, id string) error
	Upsert(ctx context.Context, debts []model.Debt) error
	DeleteAll(ctx context.Context) error
}

type debtRepo struct {
	db *gorm.DB
}

func NewDebtRepo(db *gorm.DB) DebtRepository {
	return &debtRepo{db}
}

func (r *debtRepo) WithTx(tx *gorm.DB) DebtRepository {
	return &debtRepo{tx}
}

func (r *debtRepo) Create(ctx context.Context, debt *model.Debt) error {
	return r.db.WithContext(ctx).Create(debt).Error
}

func (r *debtRepo) FindAll(ctx context.Context, filter DebtFilter) ([]model.Debt, error) {
	q := r.db.WithContext(ctx).Model(&model.Debt{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.OverdueAt != nil {
		q = q.Where("status <> ? AND due_date IS NOT NULL AND due_date < ?", model.DebtPaid, *filter.OverdueAt)
	}

	var debts []model.Debt
	err := q.Order("created_at ASC, id ASC").Find(&debts).Error
	return debts, err
}

func (r *debtRepo) FindByID(ctx context.Context, id string) (*model.Debt, error) {
	var debt model.Debt
	if err := r.db.WithContext(ctx).First(&debt, "id = ?", id).Error; err != nil {
		return nil, notFound(err, model.ErrDebtNotFound)
	}
	return &debt, nil
}

func (r *debtRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Debt, error) {
	var debt model.Debt
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&debt, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, model.ErrDebtNotFound)
	}
	return &debt, nil
}

func (r *debtRepo) Update(ctx context.Context, debt *model.Debt) error {
	return r.db.WithContext(ctx).Save(debt).Error
}

func (r *debtRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Debt{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrDebtNotFound
	}
	return nil
}

func (r *debtRepo) Upsert(ctx context.Context, debts []model.Debt) error {
	if len(debts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(debts, 200).Error
}

func (r *debtRepo) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.Debt{}).Error
}
