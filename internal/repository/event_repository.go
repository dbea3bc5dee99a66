package repository

import (
	"context"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
)

// EventFilter narrows event log queries
type EventFilter struct {
	Name       string
	TransferID *uint64
	Page       int
	PageSize   int
}

// EventRepository append-only bridge event log
type EventRepository interface {
	Append(ctx context.Context, event *models.EventLog) error
	List(ctx context.Context, filter EventFilter) ([]*models.EventLog, int64, error)
	ByTransfer(ctx context.Context, transferID uint64) ([]*models.EventLog, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new EventRepository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Append(ctx context.Context, event *models.EventLog) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) List(ctx context.Context, filter EventFilter) ([]*models.EventLog, int64, error) {
	var events []*models.EventLog
	var total int64

	query := r.db.WithContext(ctx).Model(&models.EventLog{})
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.TransferID != nil {
		query = query.Where("transfer_id = ?", *filter.TransferID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	err := query.
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&events).Error
	return events, total, err
}

// ByTransfer full history of one transfer, oldest first
func (r *eventRepository) ByTransfer(ctx context.Context, transferID uint64) ([]*models.EventLog, error) {
	var events []*models.EventLog
	err := r.db.WithContext(ctx).
		Where("transfer_id = ?", transferID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}
