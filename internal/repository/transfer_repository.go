// Package repository provides data access interfaces and implementations
package repository

import (
	"context"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransferFilter narrows List results, zero values match everything
type TransferFilter struct {
	Status           string
	Initiator        string
	Asset            string
	DestinationChain uint64
	Page             int
	PageSize         int
}

// TransferRepository defines the interface for transfer data access
type TransferRepository interface {
	// Basic operations
	Upsert(ctx context.Context, transfer *models.TransferRecord) error
	GetByID(ctx context.Context, id uint64) (*models.TransferRecord, error)
	SetFailureReason(ctx context.Context, id uint64, reason string) error

	// Query methods
	List(ctx context.Context, filter TransferFilter) ([]*models.TransferRecord, int64, error)
	All(ctx context.Context) ([]*models.TransferRecord, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Confirmation operations
	AddConfirmation(ctx context.Context, confirmation *models.ConfirmationRecord) error
	ListConfirmations(ctx context.Context, transferID uint64) ([]*models.ConfirmationRecord, error)
	AllConfirmations(ctx context.Context) ([]*models.ConfirmationRecord, error)
}

// transferRepository implements TransferRepository
type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a new TransferRepository instance
func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &transferRepository{db: db}
}

// Upsert inserts the transfer or overwrites its mutable columns
func (r *transferRepository) Upsert(ctx context.Context, transfer *models.TransferRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "confirmation_count", "completed_at", "updated_at"}),
		}).
		Create(transfer).Error
}

// GetByID retrieves a transfer by ID
func (r *transferRepository) GetByID(ctx context.Context, id uint64) (*models.TransferRecord, error) {
	var transfer models.TransferRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&transfer).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// SetFailureReason records why a transfer was marked failed
func (r *transferRepository) SetFailureReason(ctx context.Context, id uint64, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.TransferRecord{}).
		Where("id = ?", id).
		Update("failure_reason", reason).Error
}

// List retrieves paginated transfers, newest first
func (r *transferRepository) List(ctx context.Context, filter TransferFilter) ([]*models.TransferRecord, int64, error) {
	var transfers []*models.TransferRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.TransferRecord{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Initiator != "" {
		query = query.Where("initiator = ?", filter.Initiator)
	}
	if filter.Asset != "" {
		query = query.Where("asset = ?", filter.Asset)
	}
	if filter.DestinationChain != 0 {
		query = query.Where("destination_chain = ?", filter.DestinationChain)
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	err := query.
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Order("id DESC").
		Find(&transfers).Error

	return transfers, total, err
}

// All loads every transfer in id order
func (r *transferRepository) All(ctx context.Context) ([]*models.TransferRecord, error) {
	var transfers []*models.TransferRecord
	err := r.db.WithContext(ctx).Order("id ASC").Find(&transfers).Error
	return transfers, err
}

type statusCount struct {
	Status string
	Count  int64
}

// CountByStatus number of transfers per status
func (r *transferRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.TransferRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// AddConfirmation records a confirmation, duplicates are ignored
func (r *transferRepository) AddConfirmation(ctx context.Context, confirmation *models.ConfirmationRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transfer_id"}, {Name: "validator"}},
			DoNothing: true,
		}).
		Create(confirmation).Error
}

// ListConfirmations confirmations of a transfer in arrival order
func (r *transferRepository) ListConfirmations(ctx context.Context, transferID uint64) ([]*models.ConfirmationRecord, error) {
	var confirmations []*models.ConfirmationRecord
	err := r.db.WithContext(ctx).
		Where("transfer_id = ?", transferID).
		Order("id ASC").
		Find(&confirmations).Error
	return confirmations, err
}

func (r *transferRepository) AllConfirmations(ctx context.Context) ([]*models.ConfirmationRecord, error) {
	var confirmations []*models.ConfirmationRecord
	err := r.db.WithContext(ctx).Order("transfer_id ASC, id ASC").Find(&confirmations).Error
	return confirmations, err
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
