package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sigef-backend/internal/model"
	"sigef-backend/internal/repository"
	"sigef-backend/internal/ws"
	"sigef-backend/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const inventoryModule = "InventoryService"

type CreateProductRequest struct {
	Name             string          `json:"name" validate:"required,notblank,max=255"`
	AcquisitionValue decimal.Decimal `json:"acquisition_value" validate:"gte=0"`
	Quantity         int             `json:"quantity" validate:"gte=0"`
	InitialQuantity  *int            `json:"initial_quantity" validate:"omitempty,gte=0"`
}

// UpdateProductRequest is an explicit correction. InitialQuantity is deliberately absent.
type UpdateProductRequest struct {
	Name             *string          `json:"name" validate:"omitempty,notblank,max=255"`
	AcquisitionValue *decimal.Decimal `json:"acquisition_value" validate:"omitempty,gte=0"`
	Quantity         *int             `json:"quantity" validate:"omitempty,gte=0"`
}

type RecordSaleRequest struct {
	ProductID    string          `json:"product_id" validate:"required"`
	QuantitySold int             `json:"quantity_sold"`
	SaleValue    decimal.Decimal `json:"sale_value" validate:"gte=0"`
	IsLoss       bool            `json:"is_loss"`
	LossReason   string          `json:"loss_reason" validate:"max=1000"`
}

type InventoryService interface {
	CreateProduct(ctx context.Context, req *CreateProductRequest, actor Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, req *UpdateProductRequest, actor Actor) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string, actor Actor) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	RecordSale(ctx context.Context, req *RecordSaleRequest, actor Actor) (*model.Sale, error)
	DeleteSale(ctx context.Context, id string, actor Actor) error
	GetSale(ctx context.Context, id string) (*model.Sale, error)
	ListSales(ctx context.Context, filter repository.SaleFilter) ([]model.Sale, error)
}

type inventoryService struct {
	productRepo repository.ProductRepository
	saleRepo    repository.SaleRepository
	db          *gorm.DB
	deps        Deps
}

func NewInventoryService(pRepo repository.ProductRepository, sRepo repository.SaleRepository, db *gorm.DB, deps Deps) InventoryService {
	return &inventoryService{
		productRepo: pRepo,
		saleRepo:    sRepo,
		db:          db,
		deps:        deps.withDefaults(),
	}
}

func productLockKey(id string) string { return "product:" + id }

func (s *inventoryService) CreateProduct(ctx context.Context, req *CreateProductRequest, actor Actor) (_ *model.Product, err error) {
	ctx, span := startSpan(ctx, "InventoryService.CreateProduct")
	defer func() { endSpan(span, err) }()

	if err := validate(req); err != nil {
		return nil, err
	}

	initial := req.Quantity
	if req.InitialQuantity != nil {
		initial = *req.InitialQuantity
	}
	product := &model.Product{
		Name:             strings.TrimSpace(req.Name),
		AcquisitionValue: req.AcquisitionValue,
		Quantity:         req.Quantity,
		InitialQuantity:  &initial,
	}
	product.CreatedBy = actor.ID
	product.UpdatedBy = actor.ID

	if err := s.productRepo.Create(ctx, product); err != nil {
		logger.LogError(s.deps.Log, inventoryModule, "CreateProduct", "insert product", product.Name, err)
		return nil, err
	}

	s.deps.committed(ctx, inventoryModule, ws.Event{
		Entity:  "product",
		Action:  "created",
		ID:      product.ID,
		Data:    product,
		User:    actor.eventUser(),
		Message: fmt.Sprintf("%s created product '%s'", actor.Name, product.Name),
	})
	return product, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, id string, req *UpdateProductRequest, actor Actor) (_ *model.Product, err error) {
	ctx, span := startSpan(ctx, "InventoryService.UpdateProduct")
	defer func() { endSpan(span, err) }()

	if err := validate(req); err != nil {
		return nil, err
	}

	unlock, err := s.deps.Locker.Lock(ctx, productLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *model.Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := s.productRepo.WithTx(tx)

		existing, err := products.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if req.Name != nil {
			existing.Name = strings.TrimSpace(*req.Name)
		}
		if req.AcquisitionValue != nil {
			existing.AcquisitionValue = *req.AcquisitionValue
		}
		if req.Quantity != nil {
			existing.Quantity = *req.Quantity
		}
		existing.UpdatedBy = actor.ID

		if err := products.Update(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.committed(ctx, inventoryModule, ws.Event{
		Entity:  "product",
		Action:  "updated",
		ID:      updated.ID,
		Data:    updated,
		User:    actor.eventUser(),
		Message: fmt.Sprintf("%s updated product '%s'", actor.Name, updated.Name),
	})
	return updated, nil
}

// DeleteProduct removes the product together with every sale and loss recorded against it.
func (s *inventoryService) DeleteProduct(ctx context.Context, id string, actor Actor) (err error) {
	ctx, span := startSpan(ctx, "InventoryService.DeleteProduct")
	defer func() { endSpan(span, err) }()

	unlock, err := s.deps.Locker.Lock(ctx, productLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	var removedSales int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := s.productRepo.WithTx(tx)
		if _, err := products.FindByIDForUpdate(ctx, id); err != nil {
			return err
		}

		n, err := s.saleRepo.WithTx(tx).DeleteByProduct(ctx, id)
		if err != nil {
			return err
		}
		removedSales = n
		return products.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.deps.Log.WithFields(logrus.Fields{
		"product_id":    id,
		"removed_sales": removedSales,
	}).Info("product deleted")

	s.deps.committed(ctx, inventoryModule, ws.Event{
		Entity: "product",
		Action: "deleted",
		ID:     id,
		User:   actor.eventUser(),
	})
	return nil
}

func (s *inventoryService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

func (s *inventoryService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.productRepo.FindAll(ctx)
}

// RecordSale creates a sale or loss and takes its quantity out of stock in one transaction.
func (s *inventoryService) RecordSale(ctx context.Context, req *RecordSaleRequest, actor Actor) (_ *model.Sale, err error) {
	ctx, span := startSpan(ctx, "InventoryService.RecordSale")
	defer func() { endSpan(span, err) }()

	if err := validate(req); err != nil {
		return nil, err
	}
	if req.QuantitySold <= 0 {
		return nil, model.ErrNonPositiveQty
	}
	if req.IsLoss && strings.TrimSpace(req.LossReason) == "" {
		return nil, model.ErrInvalidLossReason
	}

	unlock, err := s.deps.Locker.Lock(ctx, productLockKey(req.ProductID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		sale    *model.Sale
		product *model.Product
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := s.productRepo.WithTx(tx)

		p, err := products.FindByIDForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}

		// Unit cost is taken before the stock moves: the fallback denominator is the current quantity.
		unitCost := p.UnitCost()
		if unitCost.Err != nil {
			s.deps.Log.WithFields(logrus.Fields{
				"product_id": p.ID,
				"warning":    unitCost.Err.Error(),
			}).Warn("recording sale at zero unit cost")
		}

		if err := p.Reserve(req.QuantitySold); err != nil {
			return err
		}
		if err := products.UpdateQuantity(ctx, p.ID, p.Quantity, actor.ID); err != nil {
			return err
		}

		sale = model.NewSale(p, req.QuantitySold, req.SaleValue, req.IsLoss, req.LossReason, unitCost.Cost)
		sale.CreatedBy = actor.ID
		sale.UpdatedBy = actor.ID
		if err := s.saleRepo.WithTx(tx).Create(ctx, sale); err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrInsufficientStock) && !errors.Is(err, model.ErrProductNotFound) {
			logger.LogError(s.deps.Log, inventoryModule, "RecordSale", "record sale transaction", req, err)
		}
		return nil, err
	}

	verb := "sold"
	if sale.IsLoss {
		verb = "lost"
	}
	s.deps.committed(ctx, inventoryModule, ws.Event{
		Entity: "sale",
		Action: "created",
		ID:     sale.ID,
		Data: map[string]interface{}{
			"sale":      sale,
			"new_stock": product.Quantity,
		},
		User:    actor.eventUser(),
		Message: fmt.Sprintf("%s %s %d units of '%s'", actor.Name, verb, sale.QuantitySold, product.Name),
	})
	return sale, nil
}

// DeleteSale reverses a sale or loss: its quantity goes back to stock and the record is removed.
// A sale whose product no longer exists is still deleted.
func (s *inventoryService) DeleteSale(ctx context.Context, id string, actor Actor) (err error) {
	ctx, span := startSpan(ctx, "InventoryService.DeleteSale")
	defer func() { endSpan(span, err) }()

	existing, err := s.saleRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	unlock, err := s.deps.Locker.Lock(ctx, productLockKey(existing.ProductID))
	if err != nil {
		return err
	}
	defer unlock()

	var restoredStock *int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sales := s.saleRepo.WithTx(tx)
		products := s.productRepo.WithTx(tx)

		sale, err := sales.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		p, err := products.FindByIDForUpdate(ctx, sale.ProductID)
		switch {
		case errors.Is(err, model.ErrProductNotFound):
			s.deps.Log.WithFields(logrus.Fields{
				"sale_id":    sale.ID,
				"product_id": sale.ProductID,
			}).Warn("deleting sale whose product no longer exists, stock release skipped")
		case err != nil:
			return err
		default:
			p.Release(sale.QuantitySold)
			if err := products.UpdateQuantity(ctx, p.ID, p.Quantity, actor.ID); err != nil {
				return err
			}
			restoredStock = &p.Quantity
		}

		return sales.Delete(ctx, sale.ID)
	})
	if err != nil {
		return err
	}

	data := map[string]interface{}{"product_id": existing.ProductID}
	if restoredStock != nil {
		data["new_stock"] = *restoredStock
	}
	s.deps.committed(ctx, inventoryModule, ws.Event{
		Entity: "sale",
		Action: "deleted",
		ID:     id,
		Data:   data,
		User:   actor.eventUser(),
	})
	return nil
}

func (s *inventoryService) GetSale(ctx context.Context, id string) (*model.Sale, error) {
	return s.saleRepo.FindByID(ctx, id)
}

func (s *inventoryService) ListSales(ctx context.Context, filter repository.SaleFilter) ([]model.Sale, error) {
	return s.saleRepo.FindAll(ctx, filter)
}
