package repository

import (
	"context"
	"time"

	"sigef-backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaleFilter narrows FindAll. Zero values match everything.
type SaleFilter struct {
	ProductID   string
	IsLoss      *bool
	From        *time.Time
	To          *time.Time
	NewestFirst bool
}

// SaleMovementData is one day of outgoing stock, for charts.
type SaleMovementData struct {
	Date      string          `json:"date"`
	UnitsSold int             `json:"units_sold"`
	UnitsLost int             `json:"units_lost"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type SaleRepository interface {
	WithTx(tx *gorm.DB) SaleRepository
	Create(ctx context.Context, sale *model.Sale) error
	FindAll(ctx context.Context, filter SaleFilter) ([]model.Sale, error)
	FindByID(ctx context.Context, id string) (*model.Sale, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.Sale, error)
	Delete(ctx context.Context, id string) error
	DeleteByProduct(ctx context.Context, productID string) (int64, error)
	GetDailyMovement(ctx context.Context, startDate, endDate time.Time) ([]SaleMovementData, error)
	Upsert(ctx context.Context, sales []model.Sale) error
	DeleteAll(ctx context.Context) error
}

type saleRepo struct {
	db *gorm.DB
}

func NewSaleRepo(db *gorm.DB) SaleRepository {
	return &saleRepo{db}
}

func (r *saleRepo) WithTx(tx *gorm.DB) SaleRepository {
	return &saleRepo{tx}
}

func (r *saleRepo) Create(ctx context.Context, sale *model.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// FindAll returns sales oldest first, the order reports rank them in, unless
// NewestFirst is set.
func (r *saleRepo) FindAll(ctx context.Context, filter SaleFilter) ([]model.Sale, error) {
	q := r.db.WithContext(ctx).Model(&model.Sale{})
	if filter.ProductID != "" {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if filter.IsLoss != nil {
		q = q.Where("is_loss = ?", *filter.IsLoss)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	order := "created_at ASC, id ASC"
	if filter.NewestFirst {
		order = "created_at DESC, id DESC"
	}

	var sales []model.Sale
	err := q.Order(order).Find(&sales).Error
	return sales, err
}

func (r *saleRepo) FindByID(ctx context.Context, id string) (*model.Sale, error) {
	var sale model.Sale
	if err := r.db.WithContext(ctx).First(&sale, "id = ?", id).Error; err != nil {
		return nil, notFound(err, model.ErrSaleNotFound)
	}
	return &sale, nil
}

func (r *saleRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Sale, error) {
	var sale model.Sale
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, model.ErrSaleNotFound)
	}
	return &sale, nil
}

func (r *saleRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Sale{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrSaleNotFound
	}
	return nil
}

func (r *saleRepo) DeleteByProduct(ctx context.Context, productID string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&model.Sale{}, "product_id = ?", productID)
	return res.RowsAffected, res.Error
}

func (r *saleRepo) GetDailyMovement(ctx context.Context, startDate, endDate time.Time) ([]SaleMovementData, error) {
	var results []SaleMovementData

	// Aggregate sales and losses per day
	rows, err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Select(`
			DATE(created_at) as date,
			COALESCE(SUM(CASE WHEN is_loss = ? THEN quantity_sold ELSE 0 END), 0) as units_sold,
			COALESCE(SUM(CASE WHEN is_loss = ? THEN quantity_sold ELSE 0 END), 0) as units_lost,
			COALESCE(SUM(sale_value), 0) as revenue
		`, false, true).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data SaleMovementData
		if err := rows.Scan(&data.Date, &data.UnitsSold, &data.UnitsLost, &data.Revenue); err != nil {
			return nil, err
		}
		results = append(results, data)
	}
	return results, rows.Err()
}

func (r *saleRepo) Upsert(ctx context.Context, sales []model.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(sales, 200).Error
}

func (r *saleRepo) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.Sale{}).Error
}
