package infrastructure

import (
	"context"
	"fulfillment/internal/service/order/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// storeErr 把驱动错误包装为 domain.StoreError 并附带调用栈
func storeErr(op string, err error) error {
	return errors.WithStack(&domain.StoreError{Op: op, Err: err})
}

// GormCustomerRepository 是 CustomerRepository 的 GORM 实现
type GormCustomerRepository struct {
	db *gorm.DB
}

func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

func (r *GormCustomerRepository) FindByID(ctx context.Context, customerID int64) (*domain.Customer, error) {
	var model CustomerModel
	err := r.db.WithContext(ctx).Where("id = ?", customerID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrCustomerNotFound, "customer %d", customerID)
		}
		return nil, storeErr("find customer", err)
	}
	return ToDomainCustomer(&model), nil
}

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindPending 按 id 升序返回客户所有 Pending 订单
func (r *GormOrderRepository) FindPending(ctx context.Context, customerID int64) ([]*domain.Order, error) {
	var models []*OrderModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, string(domain.StatePending)).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, storeErr("find pending orders", err)
	}

	orders := make([]*domain.Order, len(models))
	for i, m := range models {
		orders[i] = ToDomainOrder(m)
	}
	return orders, nil
}

func (r *GormOrderRepository) FindItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	var models []*OrderItemModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&models).Error
	if err != nil {
		return nil, storeErr("find order items", err)
	}

	items := make([]domain.OrderItem, len(models))
	for i, m := range models {
		items[i] = ToDomainOrderItem(m)
	}
	return items, nil
}

// Save 只更新重算出来的金额、折扣和状态。没有命中任何行视为失败。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", order.ID).Updates(pricingColumns(order))
	if result.Error != nil {
		return storeErr("save order", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrOrderNotUpdated, "save order %d", order.ID)
	}
	return nil
}

func (r *GormOrderRepository) UpdateState(ctx context.Context, orderID int64, state domain.State) error {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", orderID).Update("status", string(state))
	if result.Error != nil {
		return storeErr("update order state", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrOrderNotUpdated, "update state of order %d", orderID)
	}
	return nil
}

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, productID int64) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("id = ?", productID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrProductNotFound, "product %d", productID)
		}
		return nil, storeErr("find product", err)
	}
	return ToDomainProduct(&model), nil
}
