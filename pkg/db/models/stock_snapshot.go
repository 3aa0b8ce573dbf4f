package models

import "time"

// StockSnapshot is a point-in-time record of one product's ERP-reported
// quantity, written once per reconciliation run and never updated.
type StockSnapshot struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ProductCode string    `gorm:"column:product_code;size:100;index;not null"`
	ProductName string    `gorm:"column:product_name;size:500;not null"`
	Quantity    float64   `gorm:"column:quantity;not null"`
	Warehouse   string    `gorm:"column:warehouse;size:200;not null"`
	SnapshotAt  time.Time `gorm:"column:snapshot_at;index;autoCreateTime"`
}

func (StockSnapshot) TableName() string { return "stock_snapshots" }
