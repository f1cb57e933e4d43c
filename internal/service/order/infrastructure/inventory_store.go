package infrastructure

import (
	"context"
	"fulfillment/internal/service/order/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormInventoryStore 是 port.InventoryService 的 MySQL 实现。
// 原子扣减依赖单条带条件的 UPDATE，不需要显式事务。
type GormInventoryStore struct {
	db *gorm.DB
}

func NewGormInventoryStore(db *gorm.DB) *GormInventoryStore {
	return &GormInventoryStore{db: db}
}

func (s *GormInventoryStore) GetStockQuantity(ctx context.Context, productID int64) (int, bool, error) {
	var model InventoryModel
	err := s.db.WithContext(ctx).Select("product_id", "stock_quantity").Where("product_id = ?", productID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, storeErr("get stock quantity", err)
	}
	return model.StockQuantity, true, nil
}

// DecrementStock 无条件扣减，库存可能变为负数
func (s *GormInventoryStore) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	return s.adjust(ctx, "decrement stock", productID, gorm.Expr("stock_quantity - ?", quantity))
}

func (s *GormInventoryStore) DecrementIfSufficient(ctx context.Context, productID int64, quantity int) (bool, error) {
	result := s.db.WithContext(ctx).Model(&InventoryModel{}).
		Where("product_id = ? AND stock_quantity >= ?", productID, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		return false, storeErr("decrement stock if sufficient", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormInventoryStore) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	return s.adjust(ctx, "increment stock", productID, gorm.Expr("stock_quantity + ?", quantity))
}

func (s *GormInventoryStore) adjust(ctx context.Context, op string, productID int64, expr interface{}) error {
	result := s.db.WithContext(ctx).Model(&InventoryModel{}).
		Where("product_id = ?", productID).
		Update("stock_quantity", expr)
	if result.Error != nil {
		return storeErr(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrInventoryNotFound, "%s of product %d", op, productID)
	}
	return nil
}
