// internal/service/order/application/dto.go
package application

import (
	"fulfillment/internal/service/order/domain"
	"time"

	"github.com/shopspring/decimal"
)

// ProcessCustomerOrdersRequest 是履约用例的输入。
// AsOf 是计算忠诚度年限的日期，零值时使用服务时钟。
type ProcessCustomerOrdersRequest struct {
	CustomerID int64
	AsOf       time.Time
}

// Outcome 是单个订单在本次运行中的结果
type Outcome string

const (
	OutcomeReady  Outcome = "READY"   // 已扣库存，状态 Ready
	OutcomeOnHold Outcome = "ON_HOLD" // 库存不足，状态 OnHold
	OutcomeFailed Outcome = "FAILED"  // 处理失败，不在 Orders 中
)

// OrderOutcome 让调用方区分“完成”、“挂起”和“失败”三种情况
type OrderOutcome struct {
	OrderID  int64        `json:"orderId"`
	Outcome  Outcome      `json:"outcome"`
	State    domain.State `json:"state"`
	Reason   string       `json:"reason,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// ProcessCustomerOrdersResponse 是履约用例的输出。
// Orders 只包含成功处理（Ready 或 OnHold）的订单，顺序与待处理订单一致；
// Outcomes 覆盖每一个待处理订单。
type ProcessCustomerOrdersResponse struct {
	RunID      string
	CustomerID int64
	Orders     []*domain.Order
	Outcomes   []OrderOutcome
}

// RequestProcessingResponse 是异步投递的回执
type RequestProcessingResponse struct {
	EventID    string `json:"eventId"`
	CustomerID int64  `json:"customerId"`
	Message    string `json:"message"`
}

// OrderView 是订单对外输出的 JSON 结构
type OrderView struct {
	ID              int64           `json:"id"`
	CustomerID      int64           `json:"customerId"`
	OrderDate       time.Time       `json:"orderDate"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DiscountPercent int             `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	FinalAmount     decimal.Decimal `json:"finalAmount"`
	Status          domain.State    `json:"status"`
	Items           []OrderItemView `json:"items"`
}

type OrderItemView struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// ToOrderView 把领域订单转换为输出结构
func ToOrderView(o *domain.Order) OrderView {
	view := OrderView{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		OrderDate:       o.OrderDate,
		TotalAmount:     o.TotalAmount,
		DiscountPercent: o.DiscountPercent,
		DiscountAmount:  o.DiscountAmount,
		FinalAmount:     o.FinalAmount,
		Status:          o.State,
		Items:           make([]OrderItemView, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		iv := OrderItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if item.Product != nil {
			iv.ProductName = item.Product.Name
		}
		view.Items = append(view.Items, iv)
	}
	return view
}
