package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"sigef-backend/internal/model"
	"sigef-backend/internal/repository"
	"sigef-backend/internal/ws"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	backupModule = "BackupService"

	// BackupVersion is written into every exported document.
	BackupVersion = 1
)

var (
	ErrInvalidBackup      = errors.New("invalid backup document")
	ErrUnsupportedVersion = errors.New("unsupported backup version")
)

// BackupDocument is the import/export file. Dates are ISO-8601 strings and money is a plain number.
type BackupDocument struct {
	Products   []BackupProduct `json:"products"`
	Sales      []BackupSale    `json:"sales"`
	Debts      []BackupDebt    `json:"debts"`
	ExportedAt string          `json:"exportedAt"`
	Version    int             `json:"version"`
}

type BackupProduct struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	AcquisitionValue float64 `json:"acquisitionValue"`
	Quantity         int     `json:"quantity"`
	InitialQuantity  *int    `json:"initialQuantity,omitempty"`
	CreatedAt        string  `json:"createdAt"`
}

type BackupSale struct {
	ID           string  `json:"id"`
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	QuantitySold int     `json:"quantitySold"`
	SaleValue    float64 `json:"saleValue"`
	IsLoss       bool    `json:"isLoss"`
	LossReason   *string `json:"lossReason,omitempty"`
	Profit       float64 `json:"profit"`
	CreatedAt    string  `json:"createdAt"`
}

type BackupDebt struct {
	ID            string           `json:"id"`
	Type          model.DebtType   `json:"type"`
	Description   string           `json:"description"`
	Amount        float64          `json:"amount"`
	AmountPaid    float64          `json:"amountPaid"`
	Status        model.DebtStatus `json:"status"`
	DueDate       *string          `json:"dueDate,omitempty"`
	ContactName   *string          `json:"contactName,omitempty"`
	ContactPhone  *string          `json:"contactPhone,omitempty"`
	CreatedAt     string           `json:"createdAt"`
	PaidAt        *string          `json:"paidAt,omitempty"`
	RelatedSaleID *string          `json:"relatedSaleId,omitempty"`
}

type ImportResult struct {
	Products int  `json:"products"`
	Sales    int  `json:"sales"`
	Debts    int  `json:"debts"`
	Replaced bool `json:"replaced"`
}

type BackupService interface {
	Export(ctx context.Context) (*BackupDocument, error)
	Import(ctx context.Context, doc *BackupDocument, replace bool, actor Actor) (*ImportResult, error)
	ExportXLSX(ctx context.Context, w io.Writer) error
}

type backupService struct {
	productRepo repository.ProductRepository
	saleRepo    repository.SaleRepository
	debtRepo    repository.DebtRepository
	db          *gorm.DB
	deps        Deps
}

func NewBackupService(pRepo repository.ProductRepository, sRepo repository.SaleRepository, dRepo repository.DebtRepository, db *gorm.DB, deps Deps) BackupService {
	return &backupService{
		productRepo: pRepo,
		saleRepo:    sRepo,
		debtRepo:    dRepo,
		db:          db,
		deps:        deps.withDefaults(),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func (s *backupService) load(ctx context.Context) ([]model.Product, []model.Sale, []model.Debt, error) {
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	sales, err := s.saleRepo.FindAll(ctx, repository.SaleFilter{})
	if err != nil {
		return nil, nil, nil, err
	}
	debts, err := s.debtRepo.FindAll(ctx, repository.DebtFilter{})
	if err != nil {
		return nil, nil, nil, err
	}
	return products, sales, debts, nil
}

func (s *backupService) Export(ctx context.Context) (_ *BackupDocument, err error) {
	ctx, span := startSpan(ctx, "BackupService.Export")
	defer func() { endSpan(span, err) }()

	products, sales, debts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	doc := &BackupDocument{
		Products:   make([]BackupProduct, 0, len(products)),
		Sales:      make([]BackupSale, 0, len(sales)),
		Debts:      make([]BackupDebt, 0, len(debts)),
		ExportedAt: formatTime(s.deps.Now()),
		Version:    BackupVersion,
	}
	for _, p := range products {
		doc.Products = append(doc.Products, BackupProduct{
			ID:               p.ID,
			Name:             p.Name,
			AcquisitionValue: p.AcquisitionValue.InexactFloat64(),
			Quantity:         p.Quantity,
			InitialQuantity:  p.InitialQuantity,
			CreatedAt:        formatTime(p.CreatedAt),
		})
	}
	for _, sale := range sales {
		doc.Sales = append(doc.Sales, BackupSale{
			ID:           sale.ID,
			ProductID:    sale.ProductID,
			ProductName:  sale.ProductName,
			QuantitySold: sale.QuantitySold,
			SaleValue:    sale.SaleValue.InexactFloat64(),
			IsLoss:       sale.IsLoss,
			LossReason:   sale.LossReason,
			Profit:       sale.Profit.InexactFloat64(),
			CreatedAt:    formatTime(sale.CreatedAt),
		})
	}
	for _, d := range debts {
		doc.Debts = append(doc.Debts, BackupDebt{
			ID:            d.ID,
			Type:          d.Type,
			Description:   d.Description,
			Amount:        d.Amount.InexactFloat64(),
			AmountPaid:    d.AmountPaid.InexactFloat64(),
			Status:        d.Status,
			DueDate:       formatTimePtr(d.DueDate),
			ContactName:   d.ContactName,
			ContactPhone:  d.ContactPhone,
			CreatedAt:     formatTime(d.CreatedAt),
			PaidAt:        formatTimePtr(d.PaidAt),
			RelatedSaleID: d.RelatedSaleID,
		})
	}
	return doc, nil
}

func invalid(section string, i int, reason interface{}) error {
	return fmt.Errorf("%w: %s[%d]: %v", ErrInvalidBackup, section, i, reason)
}

// decode validates the document and turns it into entities. Debt status is always
// recomputed from the amounts, whatever the document says.
func (s *backupService) decode(ctx context.Context, doc *BackupDocument, replace bool) ([]model.Product, []model.Sale, []model.Debt, error) {
	if doc.Version > BackupVersion || doc.Version < 0 {
		return nil, nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}

	now := s.deps.Now()
	known := make(map[string]bool, len(doc.Products))

	products := make([]model.Product, 0, len(doc.Products))
	for i, bp := range doc.Products {
		switch {
		case strings.TrimSpace(bp.ID) == "":
			return nil, nil, nil, invalid("products", i, "missing id")
		case known[bp.ID]:
			return nil, nil, nil, invalid("products", i, "duplicate id")
		case strings.TrimSpace(bp.Name) == "":
			return nil, nil, nil, invalid("products", i, "missing name")
		case bp.Quantity < 0:
			return nil, nil, nil, invalid("products", i, "negative quantity")
		case bp.AcquisitionValue < 0:
			return nil, nil, nil, invalid("products", i, "negative acquisition value")
		case bp.InitialQuantity != nil && *bp.InitialQuantity < 0:
			return nil, nil, nil, invalid("products", i, "negative initial quantity")
		}
		createdAt, err := parseTime(bp.CreatedAt)
		if err != nil {
			return nil, nil, nil, invalid("products", i, "bad createdAt")
		}
		known[bp.ID] = true
		products = append(products, model.Product{
			BaseModel:        model.BaseModel{ID: bp.ID, CreatedAt: createdAt},
			Name:             bp.Name,
			AcquisitionValue: decimal.NewFromFloat(bp.AcquisitionValue),
			Quantity:         bp.Quantity,
			InitialQuantity:  bp.InitialQuantity,
		})
	}

	seenSales := make(map[string]bool, len(doc.Sales))
	sales := make([]model.Sale, 0, len(doc.Sales))
	for i, bs := range doc.Sales {
		switch {
		case strings.TrimSpace(bs.ID) == "":
			return nil, nil, nil, invalid("sales", i, "missing id")
		case seenSales[bs.ID]:
			return nil, nil, nil, invalid("sales", i, "duplicate id")
		case bs.QuantitySold <= 0:
			return nil, nil, nil, invalid("sales", i, model.ErrNonPositiveQty)
		case bs.SaleValue < 0:
			return nil, nil, nil, invalid("sales", i, "negative sale value")
		case bs.IsLoss && (bs.LossReason == nil || strings.TrimSpace(*bs.LossReason) == ""):
			return nil, nil, nil, invalid("sales", i, model.ErrInvalidLossReason)
		}
		if !known[bs.ProductID] {
			if replace {
				return nil, nil, nil, invalid("sales", i, model.ErrProductNotFound)
			}
			if _, err := s.productRepo.FindByID(ctx, bs.ProductID); err != nil {
				return nil, nil, nil, invalid("sales", i, err)
			}
		}
		createdAt, err := parseTime(bs.CreatedAt)
		if err != nil {
			return nil, nil, nil, invalid("sales", i, "bad createdAt")
		}
		seenSales[bs.ID] = true

		sale := model.Sale{
			BaseModel:    model.BaseModel{ID: bs.ID, CreatedAt: createdAt},
			ProductID:    bs.ProductID,
			ProductName:  bs.ProductName,
			QuantitySold: bs.QuantitySold,
			SaleValue:    decimal.NewFromFloat(bs.SaleValue),
			IsLoss:       bs.IsLoss,
			Profit:       decimal.NewFromFloat(bs.Profit),
		}
		if bs.IsLoss {
			reason := strings.TrimSpace(*bs.LossReason)
			sale.LossReason = &reason
			sale.SaleValue = decimal.Zero
		}
		sales = append(sales, sale)
	}

	seenDebts := make(map[string]bool, len(doc.Debts))
	debts := make([]model.Debt, 0, len(doc.Debts))
	for i, bd := range doc.Debts {
		if strings.TrimSpace(bd.ID) == "" {
			return nil, nil, nil, invalid("debts", i, "missing id")
		}
		if seenDebts[bd.ID] {
			return nil, nil, nil, invalid("debts", i, "duplicate id")
		}
		debt, err := model.NewDebt(bd.Type, bd.Description, decimal.NewFromFloat(bd.Amount))
		if err != nil {
			return nil, nil, nil, invalid("debts", i, err)
		}
		createdAt, err := parseTime(bd.CreatedAt)
		if err != nil {
			return nil, nil, nil, invalid("debts", i, "bad createdAt")
		}
		dueDate, err := parseTimePtr(bd.DueDate)
		if err != nil {
			return nil, nil, nil, invalid("debts", i, "bad dueDate")
		}
		paidAt, err := parseTimePtr(bd.PaidAt)
		if err != nil {
			return nil, nil, nil, invalid("debts", i, "bad paidAt")
		}
		seenDebts[bd.ID] = true

		debt.ID = bd.ID
		debt.CreatedAt = createdAt
		debt.ContactName = bd.ContactName
		debt.ContactPhone = bd.ContactPhone
		debt.RelatedSaleID = bd.RelatedSaleID
		debt.PaidAt = paidAt

		paid := decimal.NewFromFloat(bd.AmountPaid)
		if err := debt.ApplyUpdate(model.DebtUpdate{AmountPaid: &paid, DueDate: dueDate}, now); err != nil {
			return nil, nil, nil, invalid("debts", i, err)
		}
		debts = append(debts, *debt)
	}

	return products, sales, debts, nil
}

// Import writes the document in one transaction. With replace set, existing data is
// removed first; otherwise records are upserted by id.
func (s *backupService) Import(ctx context.Context, doc *BackupDocument, replace bool, actor Actor) (_ *ImportResult, err error) {
	ctx, span := startSpan(ctx, "BackupService.Import")
	defer func() { endSpan(span, err) }()

	products, sales, debts, err := s.decode(ctx, doc, replace)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].CreatedBy, products[i].UpdatedBy = actor.ID, actor.ID
	}
	for i := range sales {
		sales[i].CreatedBy, sales[i].UpdatedBy = actor.ID, actor.ID
	}
	for i := range debts {
		debts[i].CreatedBy, debts[i].UpdatedBy = actor.ID, actor.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		productRepo := s.productRepo.WithTx(tx)
		saleRepo := s.saleRepo.WithTx(tx)
		debtRepo := s.debtRepo.WithTx(tx)

		if replace {
			if err := saleRepo.DeleteAll(ctx); err != nil {
				return err
			}
			if err := debtRepo.DeleteAll(ctx); err != nil {
				return err
			}
			if err := productRepo.DeleteAll(ctx); err != nil {
				return err
			}
		}
		if err := productRepo.Upsert(ctx, products); err != nil {
			return err
		}
		if err := saleRepo.Upsert(ctx, sales); err != nil {
			return err
		}
		return debtRepo.Upsert(ctx, debts)
	})
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Products: len(products), Sales: len(sales), Debts: len(debts), Replaced: replace}
	s.deps.Log.WithField("result", result).Info("backup imported")
	s.deps.committed(ctx, backupModule, ws.Event{
		Entity: "store",
		Action: "imported",
		Data:   result,
		User:   actor.eventUser(),
	})
	return result, nil
}

// ExportXLSX writes a workbook with one sheet per collection plus the report.
func (s *backupService) ExportXLSX(ctx context.Context, w io.Writer) (err error) {
	ctx, span := startSpan(ctx, "BackupService.ExportXLSX")
	defer func() { endSpan(span, err) }()

	products, sales, debts, err := s.load(ctx)
	if err != nil {
		return err
	}
	report := BuildReport(products, sales, debts)

	f := excelize.NewFile()
	defer f.Close()

	productRows := make([][]interface{}, 0, len(products))
	for _, p := range products {
		initial := ""
		if p.InitialQuantity != nil {
			initial = fmt.Sprint(*p.InitialQuantity)
		}
		productRows = append(productRows, []interface{}{
			p.ID, p.Name, p.AcquisitionValue.InexactFloat64(), p.Quantity, initial,
			p.UnitCost().Cost.Round(2).InexactFloat64(), formatTime(p.CreatedAt),
		})
	}
	if err := writeSheet(f, "Products",
		[]string{"ID", "Name", "AcquisitionValue", "Quantity", "InitialQuantity", "UnitCost", "CreatedAt"},
		productRows); err != nil {
		return err
	}

	saleRows := make([][]interface{}, 0, len(sales))
	for _, sale := range sales {
		reason := ""
		if sale.LossReason != nil {
			reason = *sale.LossReason
		}
		saleRows = append(saleRows, []interface{}{
			sale.ID, sale.ProductID, sale.ProductName, sale.QuantitySold, sale.SaleValue.InexactFloat64(),
			sale.IsLoss, reason, sale.Profit.InexactFloat64(), formatTime(sale.CreatedAt),
		})
	}
	if err := writeSheet(f, "Sales",
		[]string{"ID", "ProductID", "ProductName", "QuantitySold", "SaleValue", "IsLoss", "LossReason", "Profit", "CreatedAt"},
		saleRows); err != nil {
		return err
	}

	debtRows := make([][]interface{}, 0, len(debts))
	for _, d := range debts {
		due := ""
		if d.DueDate != nil {
			due = formatTime(*d.DueDate)
		}
		contact := ""
		if d.ContactName != nil {
			contact = *d.ContactName
		}
		debtRows = append(debtRows, []interface{}{
			d.ID, string(d.Type), d.Description, d.Amount.InexactFloat64(), d.AmountPaid.InexactFloat64(),
			string(d.Status), due, contact,
		})
	}
	if err := writeSheet(f, "Debts",
		[]string{"ID", "Type", "Description", "Amount", "AmountPaid", "Status", "DueDate", "ContactName"},
		debtRows); err != nil {
		return err
	}

	reportRows := [][]interface{}{
		{"TotalProducts", report.TotalProducts},
		{"TotalSales", report.TotalSales},
		{"TotalInvestment", report.TotalInvestment.InexactFloat64()},
		{"TotalRevenue", report.TotalRevenue.InexactFloat64()},
		{"TotalProfit", report.TotalProfit.InexactFloat64()},
		{"TotalLossValue", report.TotalLossValue.InexactFloat64()},
		{"StoredProfit", report.StoredProfit.InexactFloat64()},
		{"TotalReceivablesPending", report.TotalReceivablesPending.InexactFloat64()},
		{"TotalPayablesPending", report.TotalPayablesPending.InexactFloat64()},
	}
	if err := writeSheet(f, "Report", []string{"Metric", "Value"}, reportRows); err != nil {
		return err
	}

	// excelize starts with Sheet1; drop it once the real sheets exist
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if idx, err := f.GetSheetIndex("Products"); err == nil {
		f.SetActiveSheet(idx)
	}
	return f.Write(w)
}

func writeSheet(f *excelize.File, name string, headings []string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	header := make([]interface{}, len(headings))
	for i, h := range headings {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
