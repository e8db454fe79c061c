package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/optika/backend/internal/domain/commerce"
	"github.com/optika/backend/internal/domain/platform"
	"github.com/optika/backend/internal/infrastructure/persistence/models"
)

// GormSyncStateRepository persists per-store sync watermarks using GORM
type GormSyncStateRepository struct {
	db *gorm.DB
}

// NewGormSyncStateRepository creates a new GormSyncStateRepository
func NewGormSyncStateRepository(db *gorm.DB) *GormSyncStateRepository {
	return &GormSyncStateRepository{db: db}
}

// GetLastSyncedAt returns the last successful sync time for a store, or nil
// when the store has never completed a run.
func (r *GormSyncStateRepository) GetLastSyncedAt(ctx context.Context, platformType commerce.PlatformType, platformName string) (*time.Time, error) {
	var model models.SyncStateModel
	err := r.db.WithContext(ctx).
		Where("platform_type = ? AND platform_name = ?", platformType.String(), platformName).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	t := model.LastSyncedAt
	return &t, nil
}

// SetLastSyncedAt records a successful run for a store, creating the row on
// first success.
func (r *GormSyncStateRepository) SetLastSyncedAt(ctx context.Context, platformType commerce.PlatformType, platformName string, syncedAt time.Time) error {
	model := models.SyncStateModel{
		ID:           uuid.New(),
		PlatformType: platformType.String(),
		PlatformName: platformName,
		LastSyncedAt: syncedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "platform_type"},
			{Name: "platform_name"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"last_synced_at", "updated_at"}),
	}).Create(&model).Error
}

// List returns the watermark for every store that has ever completed a run.
func (r *GormSyncStateRepository) List(ctx context.Context) ([]platform.SyncState, error) {
	var stateModels []models.SyncStateModel
	if err := r.db.WithContext(ctx).
		Order("platform_type ASC, platform_name ASC").
		Find(&stateModels).Error; err != nil {
		return nil, err
	}

	states := make([]platform.SyncState, len(stateModels))
	for i, model := range stateModels {
		states[i] = platform.SyncState{
			PlatformType: commerce.PlatformType(model.PlatformType),
			PlatformName: model.PlatformName,
			LastSyncedAt: model.LastSyncedAt,
		}
	}
	return states, nil
}
