package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/optika/backend/internal/domain/commerce"
	"github.com/optika/backend/internal/infrastructure/persistence/models"
)

// GormProductRepository implements product persistence using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// UpsertBatch writes products with last-write-wins semantics keyed on the
// identity tuple. Returns the number of rows written.
func (r *GormProductRepository) UpsertBatch(ctx context.Context, products []*commerce.Product) (int64, error) {
	if len(products) == 0 {
		return 0, nil
	}

	productModels := make([]models.ProductModel, 0, len(products))
	for _, product := range products {
		var model models.ProductModel
		if err := model.FromDomain(product); err != nil {
			return 0, err
		}
		productModels = append(productModels, model)
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   identityConflictColumns,
		UpdateAll: true,
	}).CreateInBatches(&productModels, upsertBatchSize)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

// FindAll returns products matching the filter, ordered by external id so
// cost resolution sees a deterministic scan order. Rows whose stored payload
// no longer parses are excluded and counted in the second return value.
func (r *GormProductRepository) FindAll(ctx context.Context, filter commerce.ProductFilter) ([]commerce.Product, int, error) {
	var productModels []models.ProductModel
	query := r.db.WithContext(ctx).Model(&models.ProductModel{})
	if filter.PlatformType != nil {
		query = query.Where("platform_type = ?", filter.PlatformType.String())
	}
	if filter.PlatformName != nil {
		query = query.Where("platform_name = ?", *filter.PlatformName)
	}

	if err := query.Order("external_id ASC").Find(&productModels).Error; err != nil {
		return nil, 0, err
	}

	products := make([]commerce.Product, 0, len(productModels))
	skipped := 0
	for i := range productModels {
		product, err := productModels[i].ToDomain()
		if err != nil {
			skipped++
			continue
		}
		products = append(products, *product)
	}
	return products, skipped, nil
}

// CountByStore returns the stored product count per (platform_type, platform_name).
func (r *GormProductRepository) CountByStore(ctx context.Context) (map[commerce.RecordIdentity]int64, error) {
	return countByStore(ctx, r.db, &models.ProductModel{})
}
