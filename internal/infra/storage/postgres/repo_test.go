package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/infra/storage"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return Wrap(db, "pgx"), mock
}

func TestProductRepo_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepo(db)
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("B0001", "Desk Lamp", 19.99, "Home", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))

	p := &domain.Product{SourceID: "B0001", Title: "Desk Lamp", SourcePrice: 19.99, Category: "Home"}
	require.NoError(t, repo.Upsert(context.Background(), p))

	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_ListUnlisted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepo(db)

	cols := []string{
		"id", "source_id", "title", "source_price", "dest_price", "profit_margin",
		"category", "image_url", "description", "is_listed", "created_at",
	}
	rows := sqlmock.NewRows(cols).
		AddRow(2, "B0002", "Kettle", 30.0, 40.0, 0.22, "Kitchen", "", "", false, time.Now()).
		AddRow(1, "B0001", "Lamp", 20.0, 25.0, 0.16, "Home", "", "", false, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_listed = FALSE")).
		WithArgs(20).
		WillReturnRows(rows)

	products, err := repo.ListUnlisted(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "B0002", products[0].SourceID)
	assert.InDelta(t, 0.22, products[0].ProfitMargin, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_UpdatePricingNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET dest_price")).
		WithArgs(25.0, 0.16, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePricing(context.Background(), 99, 25.0, 0.16)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProductRepo_MarkListed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_listed = TRUE")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO listings")).
		WithArgs(int64(3), "L-3", "Kettle", 39.99, "active").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkListed(context.Background(), 3, "L-3", "Kettle", 39.99))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_MarkListedRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_listed = TRUE")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO listings")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.MarkListed(context.Background(), 3, "L-3", "Kettle", 39.99)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE dest_order_id = $1")).
		WithArgs("E-404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), "E-404")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOrderRepo_AddDefaultsStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs("E-1", "L-1", "Ann", "ann@example.com", "1 Main St", 49.5, "new").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Add(context.Background(), &domain.Order{
		DestOrderID:     "E-1",
		ListingID:       "L-1",
		BuyerName:       "Ann",
		BuyerEmail:      "ann@example.com",
		ShippingAddress: "1 Main St",
		Total:           49.5,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_MarkFulfilled(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WithArgs("S-1", "TRK1", "fulfilled", "E-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFulfilled(context.Background(), "E-1", "S-1", "TRK1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_Transition(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1 WHERE dest_order_id = $2 AND status = $3")).
		WithArgs("processing", "E-1", "new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1")).
		WithArgs("processing", "E-1", "new").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, repo.Transition(ctx, "E-1", domain.OrderStatusNew, domain.OrderStatusProcessing))
	assert.ErrorIs(t, repo.Transition(ctx, "E-1", domain.OrderStatusNew, domain.OrderStatusProcessing), storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfitRepo_RecordComputesNet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfitRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profit_tracking")).
		WithArgs(int64(5), 20.0, 40.0, 4.0, 1.46, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recorded_at"}).AddRow(1, time.Now()))

	rec := &domain.ProfitRecord{
		OrderID:        5,
		SourceCost:     20,
		DestRevenue:    40,
		MarketplaceFee: 4,
		PaymentFee:     1.46,
	}
	require.NoError(t, repo.Record(context.Background(), rec))
	assert.InDelta(t, 14.54, rec.NetProfit, 1e-9)
	assert.Equal(t, int64(1), rec.ID)
}

func TestProfitRepo_Totals(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfitRepo(db)
	since := time.Now().AddDate(0, 0, -30)

	cols := []string{
		"day", "order_count", "total_cost", "total_revenue",
		"total_marketplace_fees", "total_payment_fees", "total_profit",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM profit_tracking")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("", 2, 40.0, 80.0, 8.0, 2.92, 29.08))

	s, err := repo.Totals(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Orders)
	assert.InDelta(t, 29.08, s.Profit, 1e-9)
	assert.InDelta(t, 10.92, s.Fees(), 1e-9)
}

func TestProfitRepo_Daily(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfitRepo(db)
	since := time.Now().AddDate(0, 0, -7)

	cols := []string{
		"day", "order_count", "total_cost", "total_revenue",
		"total_marketplace_fees", "total_payment_fees", "total_profit",
	}
	// Days are UTC dates so they match the memory store whatever the session zone.
	mock.ExpectQuery(regexp.QuoteMeta("TO_CHAR(DATE(recorded_at AT TIME ZONE 'UTC')") +
		`(?s).*` + regexp.QuoteMeta("GROUP BY DATE(recorded_at AT TIME ZONE 'UTC')")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("2026-10-18", 1, 20.0, 40.0, 4.0, 1.46, 14.54).
			AddRow("2026-10-17", 1, 20.0, 40.0, 4.0, 1.46, 14.54))

	days, err := repo.Daily(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-10-18", days[0].Day)
}
