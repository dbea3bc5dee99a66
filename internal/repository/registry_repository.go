package repository

import (
	"context"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegistryRepository chains, asset routes, fees and role holders
type RegistryRepository interface {
	UpsertChain(ctx context.Context, chain *models.ChainRecord) error
	UpsertRoute(ctx context.Context, route *models.AssetRouteRecord) error
	UpsertFee(ctx context.Context, fee *models.FeeRecord) error
	GrantRole(ctx context.Context, role *models.RoleRecord) error
	RevokeRole(ctx context.Context, role, account string) error

	Chains(ctx context.Context) ([]*models.ChainRecord, error)
	Routes(ctx context.Context) ([]*models.AssetRouteRecord, error)
	Fees(ctx context.Context) ([]*models.FeeRecord, error)
	Roles(ctx context.Context) ([]*models.RoleRecord, error)
}

type registryRepository struct {
	db *gorm.DB
}

// NewRegistryRepository creates a new RegistryRepository instance
func NewRegistryRepository(db *gorm.DB) RegistryRepository {
	return &registryRepository{db: db}
}

func (r *registryRepository) UpsertChain(ctx context.Context, chain *models.ChainRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "active", "min_transfer", "max_transfer", "updated_at"}),
		}).
		Create(chain).Error
}

func (r *registryRepository) UpsertRoute(ctx context.Context, route *models.AssetRouteRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset"}, {Name: "destination_chain"}},
			DoUpdates: clause.AssignmentColumns([]string{"active", "daily_limit", "daily_transferred", "window_start", "updated_at"}),
		}).
		Create(route).Error
}

func (r *registryRepository) UpsertFee(ctx context.Context, fee *models.FeeRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_chain"}, {Name: "destination_chain"}},
			DoUpdates: clause.AssignmentColumns([]string{"fee", "updated_at"}),
		}).
		Create(fee).Error
}

// GrantRole stores a role holder, re-granting is a no-op
func (r *registryRepository) GrantRole(ctx context.Context, role *models.RoleRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role"}, {Name: "account"}},
			DoNothing: true,
		}).
		Create(role).Error
}

func (r *registryRepository) RevokeRole(ctx context.Context, role, account string) error {
	return r.db.WithContext(ctx).
		Where("role = ? AND account = ?", role, account).
		Delete(&models.RoleRecord{}).Error
}

func (r *registryRepository) Chains(ctx context.Context) ([]*models.ChainRecord, error) {
	var chains []*models.ChainRecord
	err := r.db.WithContext(ctx).Order("chain_id ASC").Find(&chains).Error
	return chains, err
}

func (r *registryRepository) Routes(ctx context.Context) ([]*models.AssetRouteRecord, error) {
	var routes []*models.AssetRouteRecord
	err := r.db.WithContext(ctx).Order("asset ASC, destination_chain ASC").Find(&routes).Error
	return routes, err
}

func (r *registryRepository) Fees(ctx context.Context) ([]*models.FeeRecord, error) {
	var fees []*models.FeeRecord
	err := r.db.WithContext(ctx).Order("source_chain ASC, destination_chain ASC").Find(&fees).Error
	return fees, err
}

func (r *registryRepository) Roles(ctx context.Context) ([]*models.RoleRecord, error) {
	var roles []*models.RoleRecord
	err := r.db.WithContext(ctx).Order("role ASC, account ASC").Find(&roles).Error
	return roles, err
}
