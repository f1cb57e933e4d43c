package port

import "context"

// InventoryService 是库存存储的出站端口。
type InventoryService interface {
	// GetStockQuantity 返回商品当前库存。found=false 表示没有库存记录。
	GetStockQuantity(ctx context.Context, productID int64) (quantity int, found bool, err error)

	// DecrementStock 无条件扣减库存，不保证幂等，每次调用都会继续扣减。
	DecrementStock(ctx context.Context, productID int64, quantity int) error

	// DecrementIfSufficient 原子地“检查并扣减”：库存足够才扣减。
	// ok=false 表示库存不足或没有库存记录，此时库存不变。
	DecrementIfSufficient(ctx context.Context, productID int64, quantity int) (ok bool, err error)

	// IncrementStock 是扣减的补偿操作，把库存加回去。
	IncrementStock(ctx context.Context, productID int64, quantity int) error
}
