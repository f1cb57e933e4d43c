// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 是订单聚合的根实体。
// 流水线中的每一步都通过 With* 方法产生新的快照，不在原对象上修改。
type Order struct {
	ID              int64
	CustomerID      int64
	OrderDate       time.Time
	Items           []OrderItem
	TotalAmount     decimal.Decimal // 折扣前总额
	DiscountPercent int
	DiscountAmount  decimal.Decimal
	FinalAmount     decimal.Decimal // 折扣后应付金额
	State           State
}

// OrderItem 是订单行。UnitPrice 是下单时的快照价格。
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal

	// Product 只在补全阶段填充，查询失败时为 nil
	Product *Product
}

// clone 复制订单及其订单行，保证快照之间互不影响
func (o *Order) clone() *Order {
	cp := *o
	if o.Items != nil {
		cp.Items = make([]OrderItem, len(o.Items))
		copy(cp.Items, o.Items)
	}
	return &cp
}

// WithItems 返回带有给定订单行的新快照
func (o *Order) WithItems(items []OrderItem) *Order {
	cp := o.clone()
	cp.Items = make([]OrderItem, len(items))
	copy(cp.Items, items)
	return cp
}

// WithPricing 返回应用了定价结果的新快照，状态置为 Processed
func (o *Order) WithPricing(p Pricing) *Order {
	cp := o.clone()
	cp.TotalAmount = p.TotalAmount
	cp.DiscountPercent = p.DiscountPercent
	cp.DiscountAmount = p.DiscountAmount
	cp.FinalAmount = p.FinalAmount
	cp.State = StateProcessed
	return cp
}

// WithState 返回状态变更后的新快照
func (o *Order) WithState(state State) *Order {
	cp := o.clone()
	cp.State = state
	return cp
}

// PricedLines 提取定价所需的 (数量, 单价) 序列
func (o *Order) PricedLines() []PricedLine {
	lines := make([]PricedLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, PricedLine{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return lines
}
