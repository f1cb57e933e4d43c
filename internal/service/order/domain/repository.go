// internal/service/order/domain/repository.go
package domain

import "context"

// CustomerRepository 定义了客户数据的读取接口。
// 它位于领域层，但由基础设施层实现。
type CustomerRepository interface {
	// FindByID 找不到时返回 ErrCustomerNotFound。
	FindByID(ctx context.Context, customerID int64) (*Customer, error)
}

// OrderRepository 定义了订单聚合的持久化接口。
type OrderRepository interface {
	// FindPending 返回客户所有 Pending 状态的订单（不含订单行）。
	// 没有待处理订单时返回空切片和 nil。
	FindPending(ctx context.Context, customerID int64) ([]*Order, error)

	// FindItems 返回订单的所有订单行，可能为空。
	FindItems(ctx context.Context, orderID int64) ([]OrderItem, error)

	// Save 持久化重算后的金额、折扣和状态。
	Save(ctx context.Context, order *Order) error

	// UpdateState 只更新订单状态。
	UpdateState(ctx context.Context, orderID int64, state State) error
}

// ProductRepository 定义了商品目录的读取接口。
type ProductRepository interface {
	// FindByID 找不到时返回 ErrProductNotFound。
	FindByID(ctx context.Context, productID int64) (*Product, error)
}
