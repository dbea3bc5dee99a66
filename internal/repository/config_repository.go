package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigRepository global_configs key/value access
type ConfigRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value, updatedBy string) error
	GetBool(ctx context.Context, key string) (bool, error)
	GetUint64(ctx context.Context, key string) (uint64, error)
}

type configRepository struct {
	db *gorm.DB
}

// NewConfigRepository creates a new ConfigRepository instance
func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &configRepository{db: db}
}

// Get returns the value and whether the key exists
func (r *configRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var cfg models.GlobalConfig
	err := r.db.WithContext(ctx).Where("config_key = ?", key).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return cfg.ConfigValue, true, nil
}

func (r *configRepository) Set(ctx context.Context, key, value, updatedBy string) error {
	now := time.Now()
	cfg := models.GlobalConfig{
		ConfigKey:   key,
		ConfigValue: value,
		UpdatedBy:   updatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "config_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"config_value", "updated_by", "updated_at"}),
		}).
		Create(&cfg).Error
}

// GetBool missing keys read as false
func (r *configRepository) GetBool(ctx context.Context, key string) (bool, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return strconv.ParseBool(v)
}

// GetUint64 missing keys read as 0
func (r *configRepository) GetUint64(ctx context.Context, key string) (uint64, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}
