package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerModel 对应数据库中的 customers 表
type CustomerModel struct {
	ID               int64  `gorm:"primaryKey"`
	Name             string `gorm:"size:100;not null"`
	Email            string `gorm:"size:255"`
	IsVIP            bool   `gorm:"column:is_vip;not null;default:false"`
	RegistrationDate time.Time
}

func (CustomerModel) TableName() string {
	return "customers"
}

// OrderModel 对应数据库中的 orders 表。
// 折扣相关字段在订单被处理之前为 NULL。
// 折扣金额最多四位小数，保留四位才能保证 discount_amount + final_amount = total_amount。
type OrderModel struct {
	ID              int64           `gorm:"primaryKey"`
	CustomerID      int64           `gorm:"not null;index:idx_orders_customer_status"`
	OrderDate       time.Time       `gorm:"not null"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DiscountPercent sql.NullInt32
	DiscountAmount  decimal.NullDecimal `gorm:"type:decimal(14,4)"`
	FinalAmount     decimal.NullDecimal `gorm:"type:decimal(14,4)"`
	Status          string              `gorm:"size:20;not null;index:idx_orders_customer_status"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	ID        int64           `gorm:"primaryKey"`
	OrderID   int64           `gorm:"not null;index"`
	ProductID int64           `gorm:"not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// ProductModel 对应数据库中的 products 表
type ProductModel struct {
	ID       int64           `gorm:"primaryKey"`
	Name     string          `gorm:"size:100;not null"`
	Category string          `gorm:"size:50"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (ProductModel) TableName() string {
	return "products"
}

// InventoryModel 对应数据库中的 inventory 表，每个商品一行
type InventoryModel struct {
	ProductID     int64 `gorm:"primaryKey;autoIncrement:false"`
	StockQuantity int   `gorm:"not null"`
}

func (InventoryModel) TableName() string {
	return "inventory"
}

// OrderLogModel 对应数据库中的 order_logs 表（审计日志）
type OrderLogModel struct {
	ID      int64     `gorm:"primaryKey"`
	OrderID int64     `gorm:"not null;index"`
	LogDate time.Time `gorm:"not null"`
	Message string    `gorm:"size:500;not null"`
}

func (OrderLogModel) TableName() string {
	return "order_logs"
}

// allModels 是 AutoMigrate 需要创建的表
var allModels = []interface{}{
	&CustomerModel{},
	&ProductModel{},
	&InventoryModel{},
	&OrderModel{},
	&OrderItemModel{},
	&OrderLogModel{},
}
