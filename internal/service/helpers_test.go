package service

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"sigef-backend/internal/repository"
	"sigef-backend/internal/testutil"
	"sigef-backend/internal/ws"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

// recorder collects notified events.
type recorder struct {
	mu     sync.Mutex
	events []ws.Event
}

func (r *recorder) Notify(ev ws.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last() ws.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return ws.Event{}
	}
	return r.events[len(r.events)-1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db       *gorm.DB
	products repository.ProductRepository
	sales    repository.SaleRepository
	debts    repository.DebtRepository
	events   *recorder
	clock    *clock

	inventory InventoryService
	debt      DebtService
	report    ReportService
	backup    BackupService
}

var actor = Actor{ID: "owner-1", Name: "Dona Ana", Email: "ana@example.com"}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	env := &testEnv{
		db:       db,
		products: repository.NewProductRepo(db),
		sales:    repository.NewSaleRepo(db),
		debts:    repository.NewDebtRepo(db),
		events:   &recorder{},
		clock:    &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	deps := Deps{Notifier: env.events, Now: env.clock.Now}

	env.inventory = NewInventoryService(env.products, env.sales, db, deps)
	env.debt = NewDebtService(env.debts, db, "BR", deps)
	env.report = NewReportService(env.products, env.sales, env.debts, repository.NewSnapshotRepo(db), deps)
	env.backup = NewBackupService(env.products, env.sales, env.debts, db, deps)
	return env
}
