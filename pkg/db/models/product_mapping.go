package models

import "time"

// ProductMapping links one CRM catalog product to one ERP nomenclature code.
// Rows are created through explicit registration and only change on
// re-registration; the sync engine never deletes them.
type ProductMapping struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CRMProductID   string    `gorm:"column:crm_product_id;size:100;uniqueIndex:uq_product_mappings_crm_product_id;not null"`
	CRMProductName string    `gorm:"column:crm_product_name;size:500;not null"`
	ERPProductCode string    `gorm:"column:erp_product_code;size:100;index;not null"`
	ERPProductName string    `gorm:"column:erp_product_name;size:500;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductMapping) TableName() string { return "product_mappings" }
