package audit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/crmbridge/crmbridge-backend/internal/repo"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
)

const defaultListLimit = 50

type repository struct {
	base repo.Base
}

// NewRepository builds an audit repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.SyncLogEntry) (*models.SyncLogEntry, error) {
	if err := r.base.DB(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *repository) FindLastForEntity(ctx context.Context, syncType, entityID string) (*models.SyncLogEntry, error) {
	var entry models.SyncLogEntry
	err := r.base.DB(ctx).
		Where("sync_type = ? AND entity_id = ?", syncType, entityID).
		Order("created_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.SyncLogEntry, error) {
	query := r.base.DB(ctx).Model(&models.SyncLogEntry{})
	if filter.SyncType != "" {
		query = query.Where("sync_type = ?", filter.SyncType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var entries []models.SyncLogEntry
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CountSince(ctx context.Context, filter CountFilter) (int64, error) {
	query := r.base.DB(ctx).Model(&models.SyncLogEntry{})
	if filter.SyncType != "" {
		query = query.Where("sync_type = ?", filter.SyncType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Hours > 0 {
		cutoff := time.Now().UTC().Add(-time.Duration(filter.Hours) * time.Hour)
		query = query.Where("created_at >= ?", cutoff)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting sync log entries: %w", err)
	}
	return count, nil
}
