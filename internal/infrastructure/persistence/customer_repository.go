package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/optika/backend/internal/domain/commerce"
	"github.com/optika/backend/internal/infrastructure/persistence/models"
)

// GormCustomerRepository implements customer persistence using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// UpsertBatch writes customers with last-write-wins semantics keyed on the
// identity tuple. Returns the number of rows written.
func (r *GormCustomerRepository) UpsertBatch(ctx context.Context, customers []*commerce.Customer) (int64, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	customerModels := make([]models.CustomerModel, 0, len(customers))
	for _, customer := range customers {
		var model models.CustomerModel
		if err := model.FromDomain(customer); err != nil {
			return 0, err
		}
		customerModels = append(customerModels, model)
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   identityConflictColumns,
		UpdateAll: true,
	}).CreateInBatches(&customerModels, upsertBatchSize)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

// FindAll returns every stored customer. Rows whose stored payload no longer
// parses are excluded and counted in the second return value.
func (r *GormCustomerRepository) FindAll(ctx context.Context) ([]commerce.Customer, int, error) {
	var customerModels []models.CustomerModel
	if err := r.db.WithContext(ctx).Find(&customerModels).Error; err != nil {
		return nil, 0, err
	}

	customers := make([]commerce.Customer, 0, len(customerModels))
	skipped := 0
	for i := range customerModels {
		customer, err := customerModels[i].ToDomain()
		if err != nil {
			skipped++
			continue
		}
		customers = append(customers, *customer)
	}
	return customers, skipped, nil
}

// CountByStore returns the stored customer count per (platform_type, platform_name).
func (r *GormCustomerRepository) CountByStore(ctx context.Context) (map[commerce.RecordIdentity]int64, error) {
	return countByStore(ctx, r.db, &models.CustomerModel{})
}
