package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/optika/backend/internal/domain/commerce"
)

// newMockDB creates a gorm DB backed by sqlmock for repository tests
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormOrderRepository_UpsertBatch(t *testing.T) {
	t.Run("writes rows with on-conflict replace", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormOrderRepository(db)

		orders := []*commerce.Order{
			{
				Identity: commerce.RecordIdentity{
					PlatformType: commerce.PlatformTypeShopify,
					PlatformName: "main-street",
					ExternalID:   "1001",
				},
				OrderNumber:     "#1001",
				TotalPrice:      decimal.NewFromFloat(49.90),
				FinancialStatus: commerce.FinancialStatusPaid,
				CreatedAt:       time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
			},
			{
				Identity: commerce.RecordIdentity{
					PlatformType: commerce.PlatformTypeShopify,
					PlatformName: "main-street",
					ExternalID:   "1002",
				},
				OrderNumber:     "#1002",
				TotalPrice:      decimal.NewFromFloat(20),
				FinancialStatus: commerce.FinancialStatusPending,
				CreatedAt:       time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC),
			},
		}

		mock.ExpectExec(`INSERT INTO "orders" .+ ON CONFLICT \("platform_type","platform_name","external_id"\) DO UPDATE SET`).
			WillReturnResult(sqlmock.NewResult(0, 2))

		written, err := repo.UpsertBatch(context.Background(), orders)

		assert.NoError(t, err)
		assert.Equal(t, int64(2), written)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormOrderRepository(db)

		written, err := repo.UpsertBatch(context.Background(), nil)

		assert.NoError(t, err)
		assert.Zero(t, written)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormOrderRepository_FindAll(t *testing.T) {
	columns := []string{
		"id", "platform_type", "platform_name", "external_id",
		"order_number", "total_price", "financial_status", "fulfillment_status",
		"buyer_username", "buyer_email", "shipping_address", "line_items",
		"raw_data", "placed_at", "created_at", "updated_at",
	}

	t.Run("applies store and outstanding filters", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormOrderRepository(db)

		now := time.Now().UTC()
		rows := sqlmock.NewRows(columns).
			AddRow("11111111-1111-1111-1111-111111111111", "WIX", "outlet", "w-1",
				"10001", decimal.NewFromInt(80), "PENDING", "", "", "anna@example.com",
				"", `[{"title":"Frame","sku":"F-1","external_item_id":"li-1","quantity":2,"unit_price":"40"}]`,
				"{}", now, now, now)

		storeName := "outlet"
		mock.ExpectQuery(`SELECT \* FROM "orders" WHERE platform_name = \$1 AND financial_status IN \(\$2,\$3\) ORDER BY placed_at DESC`).
			WithArgs(storeName, "PENDING", "PARTIALLY_PAID").
			WillReturnRows(rows)

		orders, skipped, err := repo.FindAll(context.Background(), commerce.OrderFilter{
			PlatformName:    &storeName,
			OutstandingOnly: true,
		})

		assert.NoError(t, err)
		assert.Zero(t, skipped)
		require.Len(t, orders, 1)
		assert.Equal(t, "w-1", orders[0].Identity.ExternalID)
		assert.Equal(t, commerce.FinancialStatusPending, orders[0].FinancialStatus)
		require.Len(t, orders[0].LineItems, 1)
		assert.Equal(t, int64(2), orders[0].LineItems[0].Quantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("excludes rows with malformed payloads and reports the count", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormOrderRepository(db)

		now := time.Now().UTC()
		rows := sqlmock.NewRows(columns).
			AddRow("11111111-1111-1111-1111-111111111111", "SHOPIFY", "main-street", "s-1",
				"#1", decimal.NewFromInt(10), "PAID", "", "", "",
				"", `not-json`, "{}", now, now, now).
			AddRow("22222222-2222-2222-2222-222222222222", "SHOPIFY", "main-street", "s-2",
				"#2", decimal.NewFromInt(15), "PAID", "", "", "",
				"", `[]`, "{}", now, now, now)

		mock.ExpectQuery(`SELECT \* FROM "orders" ORDER BY placed_at DESC`).
			WillReturnRows(rows)

		orders, skipped, err := repo.FindAll(context.Background(), commerce.OrderFilter{})

		assert.NoError(t, err)
		assert.Equal(t, 1, skipped)
		require.Len(t, orders, 1)
		assert.Equal(t, "s-2", orders[0].Identity.ExternalID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSyncStateRepository(t *testing.T) {
	t.Run("missing watermark returns nil without error", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormSyncStateRepository(db)

		mock.ExpectQuery(`SELECT \* FROM "sync_state" WHERE platform_type = \$1 AND platform_name = \$2 ORDER BY .* LIMIT .*`).
			WithArgs("WIX", "outlet", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		got, err := repo.GetLastSyncedAt(context.Background(), commerce.PlatformTypeWix, "outlet")

		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set upserts on store key", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormSyncStateRepository(db)

		mock.ExpectExec(`INSERT INTO "sync_state" .+ ON CONFLICT \("platform_type","platform_name"\) DO UPDATE SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SetLastSyncedAt(context.Background(), commerce.PlatformTypeWix, "outlet", time.Now().UTC())

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
