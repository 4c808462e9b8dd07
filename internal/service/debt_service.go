package service

import (
	"context"
	"fmt"
	"strings"

	"sigef-backend/internal/model"
	"sigef-backend/internal/repository"
	"sigef-backend/internal/ws"
	"sigef-backend/pkg/phone"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const debtModule = "DebtService"

type CreateDebtRequest struct {
	Type          model.DebtType  `json:"type"`
	Description   string          `json:"description" validate:"required,notblank,max=1000"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       *DateTime       `json:"due_date"`
	ContactName   *string         `json:"contact_name" validate:"omitempty,max=255"`
	ContactPhone  *string         `json:"contact_phone" validate:"omitempty,max=32"`
	RelatedSaleID *string         `json:"related_sale_id" validate:"omitempty,max=64"`
}

type UpdateDebtRequest struct {
	Description   *string          `json:"description" validate:"omitempty,notblank,max=1000"`
	Amount        *decimal.Decimal `json:"amount"`
	AmountPaid    *decimal.Decimal `json:"amount_paid"`
	DueDate       *DateTime        `json:"due_date"`
	ClearDueDate  bool             `json:"clear_due_date"`
	ContactName   *string          `json:"contact_name" validate:"omitempty,max=255"`
	ContactPhone  *string          `json:"contact_phone" validate:"omitempty,max=32"`
	RelatedSaleID *string          `json:"related_sale_id" validate:"omitempty,max=64"`
}

// DebtListFilter selects debts; Overdue keeps unpaid debts already past their due date.
type DebtListFilter struct {
	Type    model.DebtType
	Status  model.DebtStatus
	Overdue bool
}

type DebtService interface {
	CreateDebt(ctx context.Context, req *CreateDebtRequest, actor Actor) (*model.Debt, error)
	UpdateDebt(ctx context.Context, id string, req *UpdateDebtRequest, actor Actor) (*model.Debt, error)
	RegisterPayment(ctx context.Context, id string, value decimal.Decimal, actor Actor) (*model.Debt, error)
	MarkPaid(ctx context.Context, id string, actor Actor) (*model.Debt, error)
	DeleteDebt(ctx context.Context, id string, actor Actor) error
	GetDebt(ctx context.Context, id string) (*model.Debt, error)
	ListDebts(ctx context.Context, filter DebtListFilter) ([]model.Debt, error)
}

type debtService struct {
	debtRepo    repository.DebtRepository
	db          *gorm.DB
	phoneRegion string
	deps        Deps
}

func NewDebtService(dRepo repository.DebtRepository, db *gorm.DB, phoneRegion string, deps Deps) DebtService {
	return &debtService{
		debtRepo:    dRepo,
		db:          db,
		phoneRegion: phoneRegion,
		deps:        deps.withDefaults(),
	}
}

func debtLockKey(id string) string { return "debt:" + id }

func (s *debtService) normalizePhone(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	normalized, err := phone.Normalize(*raw, s.phoneRegion)
	if err != nil {
		return nil, &ValidationError{Field: "ContactPhone", Tag: "phone"}
	}
	return &normalized, nil
}

func (s *debtService) CreateDebt(ctx context.Context, req *CreateDebtRequest, actor Actor) (_ *model.Debt, err error) {
	ctx, span := startSpan(ctx, "DebtService.CreateDebt")
	defer func() { endSpan(span, err) }()

	if err := validate(req); err != nil {
		return nil, err
	}

	debt, err := model.NewDebt(req.Type, strings.TrimSpace(req.Description), req.Amount)
	if err != nil {
		return nil, err
	}
	contactPhone, err := s.normalizePhone(req.ContactPhone)
	if err != nil {
		return nil, err
	}
	debt.DueDate = req.DueDate.TimePtr()
	debt.ContactName = req.ContactName
	debt.ContactPhone = contactPhone
	debt.RelatedSaleID = req.RelatedSaleID
	debt.CreatedBy = actor.ID
	debt.UpdatedBy = actor.ID

	if err := s.debtRepo.Create(ctx, debt); err != nil {
		return nil, err
	}

	s.deps.committed(ctx, debtModule, ws.Event{
		Entity:  "debt",
		Action:  "created",
		ID:      debt.ID,
		Data:    debt,
		User:    actor.eventUser(),
		Message: fmt.Sprintf("%s registered a %s of %s", actor.Name, debt.Type, debt.Amount.StringFixed(2)),
	})
	return s.flagOverdue(debt), nil
}

func (s *debtService) UpdateDebt(ctx context.Context, id string, req *UpdateDebtRequest, actor Actor) (_ *model.Debt, err error) {
	ctx, span := startSpan(ctx, "DebtService.UpdateDebt")
	defer func() { endSpan(span, err) }()

	if err := validate(req); err != nil {
		return nil, err
	}
	contactPhone, err := s.normalizePhone(req.ContactPhone)
	if err != nil {
		return nil, err
	}

	update := model.DebtUpdate{
		Description:   req.Description,
		Amount:        req.Amount,
		AmountPaid:    req.AmountPaid,
		DueDate:       req.DueDate.TimePtr(),
		ClearDueDate:  req.ClearDueDate,
		ContactName:   req.ContactName,
		ContactPhone:  contactPhone,
		RelatedSaleID: req.RelatedSaleID,
	}
	if update.Description != nil {
		trimmed := strings.TrimSpace(*update.Description)
		update.Description = &trimmed
	}

	return s.apply(ctx, id, actor, "updated", func(*model.Debt) (model.DebtUpdate, error) {
		return update, nil
	})
}

// RegisterPayment adds value to what has been paid so far.
func (s *debtService) RegisterPayment(ctx context.Context, id string, value decimal.Decimal, actor Actor) (_ *model.Debt, err error) {
	ctx, span := startSpan(ctx, "DebtService.RegisterPayment")
	defer func() { endSpan(span, err) }()

	if !value.IsPositive() {
		return nil, model.ErrInvalidAmount
	}
	return s.apply(ctx, id, actor, "payment", func(d *model.Debt) (model.DebtUpdate, error) {
		paid := d.AmountPaid.Add(value)
		return model.DebtUpdate{AmountPaid: &paid}, nil
	})
}

// MarkPaid settles the debt in full.
func (s *debtService) MarkPaid(ctx context.Context, id string, actor Actor) (_ *model.Debt, err error) {
	ctx, span := startSpan(ctx, "DebtService.MarkPaid")
	defer func() { endSpan(span, err) }()

	return s.apply(ctx, id, actor, "paid", func(d *model.Debt) (model.DebtUpdate, error) {
		amount := d.Amount
		return model.DebtUpdate{AmountPaid: &amount}, nil
	})
}

// apply runs one read-modify-write of a debt under its row lock. build sees the locked row.
func (s *debtService) apply(ctx context.Context, id string, actor Actor, action string, build func(*model.Debt) (model.DebtUpdate, error)) (*model.Debt, error) {
	unlock, err := s.deps.Locker.Lock(ctx, debtLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *model.Debt
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		debts := s.debtRepo.WithTx(tx)

		debt, err := debts.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		update, err := build(debt)
		if err != nil {
			return err
		}
		if err := debt.ApplyUpdate(update, s.deps.Now()); err != nil {
			return err
		}
		debt.UpdatedBy = actor.ID

		if err := debts.Update(ctx, debt); err != nil {
			return err
		}
		updated = debt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.committed(ctx, debtModule, ws.Event{
		Entity: "debt",
		Action: action,
		ID:     updated.ID,
		Data:   updated,
		User:   actor.eventUser(),
	})
	return s.flagOverdue(updated), nil
}

// DeleteDebt removes the debt. A related sale is not touched.
func (s *debtService) DeleteDebt(ctx context.Context, id string, actor Actor) (err error) {
	ctx, span := startSpan(ctx, "DebtService.DeleteDebt")
	defer func() { endSpan(span, err) }()

	if err := s.debtRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.deps.committed(ctx, debtModule, ws.Event{
		Entity: "debt",
		Action: "deleted",
		ID:     id,
		User:   actor.eventUser(),
	})
	return nil
}

func (s *debtService) GetDebt(ctx context.Context, id string) (*model.Debt, error) {
	debt, err := s.debtRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.flagOverdue(debt), nil
}

func (s *debtService) flagOverdue(d *model.Debt) *model.Debt {
	d.Overdue = d.IsOverdue(s.deps.Now())
	return d
}

func (s *debtService) ListDebts(ctx context.Context, filter DebtListFilter) ([]model.Debt, error) {
	repoFilter := repository.DebtFilter{Type: filter.Type, Status: filter.Status}
	if filter.Overdue {
		now := s.deps.Now()
		repoFilter.OverdueAt = &now
	}
	debts, err := s.debtRepo.FindAll(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	for i := range debts {
		s.flagOverdue(&debts[i])
	}
	return debts, nil
}
