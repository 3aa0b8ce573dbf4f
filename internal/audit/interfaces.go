package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
)

// Repository defines persistence operations for the sync log table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.SyncLogEntry) (*models.SyncLogEntry, error)
	FindLastForEntity(ctx context.Context, syncType, entityID string) (*models.SyncLogEntry, error)
	List(ctx context.Context, filter ListFilter) ([]models.SyncLogEntry, error)
	CountSince(ctx context.Context, filter CountFilter) (int64, error)
}

// ListFilter narrows sync log listings. Zero values mean "any".
type ListFilter struct {
	SyncType string
	Status   string
	EntityID string
	Limit    int
	Offset   int
}

// CountFilter counts entries of one type and status over a window.
type CountFilter struct {
	SyncType string
	Status   string
	Hours    int
}
