// internal/service/order/domain/product.go
package domain

import "github.com/shopspring/decimal"

// Product 是目录中的商品，只读引用实体。
// 注意：Price 是目录价，定价时以 OrderItem.UnitPrice 为准。
type Product struct {
	ID       int64
	Name     string
	Category string
	Price    decimal.Decimal
}
