package models

import "time"

// Sync attempt outcomes recorded in the audit log.
const (
	SyncStatusSuccess        = "success"
	SyncStatusPartialSuccess = "partial_success"
	SyncStatusError          = "error"
)

// Sync types and directions.
const (
	SyncTypeOrderToERP = "order_to_erp"
	SyncTypeStockToCRM = "stock_to_crm"

	DirectionCRMToERP = "crm_to_erp"
	DirectionERPToCRM = "erp_to_crm"
)

// SyncLogEntry is the append-only audit record of one synchronization
// attempt. Entries are written once, after the attempt concludes, and are
// never mutated.
type SyncLogEntry struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SyncType     string    `gorm:"column:sync_type;size:50;index;not null"`
	Direction    string    `gorm:"column:direction;size:50;not null"`
	Status       string    `gorm:"column:status;size:20;not null"`
	EntityID     *string   `gorm:"column:entity_id;size:100;index"`
	RequestData  *string   `gorm:"column:request_data;type:text"`
	ResponseData *string   `gorm:"column:response_data;type:text"`
	ErrorMessage *string   `gorm:"column:error_message;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SyncLogEntry) TableName() string { return "sync_log_entries" }
