package spaceconfig

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dezko/dezko-backend/pkg/db/models"
)

// Repository loads and stores space settings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, spaceID uuid.UUID) (*Settings, error)
	Save(ctx context.Context, spaceID uuid.UUID, settings Settings) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Get returns nil when the space has no stored settings.
func (r *repository) Get(ctx context.Context, spaceID uuid.UUID) (*Settings, error) {
	var row models.SpaceConfig
	err := r.db.WithContext(ctx).Where("space_id = ?", spaceID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	settings := Default()
	if len(row.Settings) > 0 {
		if err := json.Unmarshal(row.Settings, &settings); err != nil {
			return nil, err
		}
	}
	return &settings, nil
}

func (r *repository) Save(ctx context.Context, spaceID uuid.UUID, settings Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	row := models.SpaceConfig{SpaceID: spaceID, Settings: raw}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "space_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"settings", "updated_at"}),
	}).Create(&row).Error
}
