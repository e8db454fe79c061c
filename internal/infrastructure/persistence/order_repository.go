package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/optika/backend/internal/domain/commerce"
	"github.com/optika/backend/internal/infrastructure/persistence/models"
)

// upsertBatchSize bounds a single multi-row INSERT so one sync page never
// exceeds the postgres parameter limit.
const upsertBatchSize = 200

// identityConflictColumns is the composite dedup key shared by all synced
// record tables.
var identityConflictColumns = []clause.Column{
	{Name: "platform_type"},
	{Name: "platform_name"},
	{Name: "external_id"},
}

// GormOrderRepository implements order persistence using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// UpsertBatch writes orders with last-write-wins semantics: a conflicting
// identity tuple replaces the stored record instead of duplicating it.
// Returns the number of rows written.
func (r *GormOrderRepository) UpsertBatch(ctx context.Context, orders []*commerce.Order) (int64, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	orderModels := make([]models.OrderModel, 0, len(orders))
	for _, order := range orders {
		var model models.OrderModel
		if err := model.FromDomain(order); err != nil {
			return 0, err
		}
		orderModels = append(orderModels, model)
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   identityConflictColumns,
		UpdateAll: true,
	}).CreateInBatches(&orderModels, upsertBatchSize)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

// FindAll returns orders matching the filter, ordered by platform creation
// time descending. Rows whose stored payload no longer parses are excluded;
// the second return value reports how many were skipped so callers can
// surface the data-quality problem instead of silently aggregating over it.
func (r *GormOrderRepository) FindAll(ctx context.Context, filter commerce.OrderFilter) ([]commerce.Order, int, error) {
	var orderModels []models.OrderModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)

	if err := query.Order("placed_at DESC").Find(&orderModels).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]commerce.Order, 0, len(orderModels))
	skipped := 0
	for i := range orderModels {
		order, err := orderModels[i].ToDomain()
		if err != nil {
			skipped++
			continue
		}
		orders = append(orders, *order)
	}
	return orders, skipped, nil
}

// CountByStore returns the stored order count per (platform_type, platform_name).
func (r *GormOrderRepository) CountByStore(ctx context.Context) (map[commerce.RecordIdentity]int64, error) {
	return countByStore(ctx, r.db, &models.OrderModel{})
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter commerce.OrderFilter) *gorm.DB {
	if filter.PlatformType != nil {
		query = query.Where("platform_type = ?", filter.PlatformType.String())
	}
	if filter.PlatformName != nil {
		query = query.Where("platform_name = ?", *filter.PlatformName)
	}
	if filter.PlacedSince != nil {
		query = query.Where("placed_at >= ?", *filter.PlacedSince)
	}
	if filter.PlacedUntil != nil {
		query = query.Where("placed_at < ?", *filter.PlacedUntil)
	}
	if filter.OutstandingOnly {
		query = query.Where("financial_status IN ?", []string{
			commerce.FinancialStatusPending.String(),
			commerce.FinancialStatusPartiallyPaid.String(),
		})
	}
	return query
}

// storeCount is the scan target for per-store GROUP BY queries.
type storeCount struct {
	PlatformType string
	PlatformName string
	Count        int64
}

func countByStore(ctx context.Context, db *gorm.DB, model interface{}) (map[commerce.RecordIdentity]int64, error) {
	var rows []storeCount
	err := db.WithContext(ctx).Model(model).
		Select("platform_type, platform_name, COUNT(*) AS count").
		Group("platform_type, platform_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[commerce.RecordIdentity]int64, len(rows))
	for _, row := range rows {
		key := commerce.RecordIdentity{
			PlatformType: commerce.PlatformType(row.PlatformType),
			PlatformName: row.PlatformName,
		}
		counts[key] = row.Count
	}
	return counts, nil
}
