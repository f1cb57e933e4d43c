package adapter

import (
	"context"
	"errors"
	"fmt"
	"fulfillment/internal/pkg/redis"
	"fulfillment/internal/service/order/domain"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

const (
	decrementIfSufficientScriptName = "inventory_decrement_if_sufficient"
	adjustStockScriptName           = "inventory_adjust"
)

// InventoryRedisAdapter 是 port.InventoryService 接口的 Redis 实现。
// 每个商品的库存是一个整数 key，检查并扣减在 Lua 脚本里原子完成。
type InventoryRedisAdapter struct {
	redisClient *redis.Client
}

// NewInventoryRedisAdapter 创建一个新的库存适配器实例。
// 它在创建时会加载所有需要的 Lua 脚本。
func NewInventoryRedisAdapter(redisClient *redis.Client) (*InventoryRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(decrementIfSufficientScriptName, decrementIfSufficientScript); err != nil {
		return nil, fmt.Errorf("failed to load inventory decrement script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(adjustStockScriptName, adjustStockScript); err != nil {
		return nil, fmt.Errorf("failed to load inventory adjust script: %w", err)
	}
	return &InventoryRedisAdapter{redisClient: redisClient}, nil
}

func stockKey(productID int64) string {
	return fmt.Sprintf("inventory:stock:{%d}", productID)
}

func (a *InventoryRedisAdapter) GetStockQuantity(ctx context.Context, productID int64) (int, bool, error) {
	val, err := a.redisClient.GetClient().Get(ctx, stockKey(productID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, &domain.StoreError{Op: "get stock quantity", Err: err}
	}
	qty, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, &domain.StoreError{Op: "parse stock quantity", Err: err}
	}
	return qty, true, nil
}

// DecrementIfSufficient 实现了原子的“检查并扣减”
func (a *InventoryRedisAdapter) DecrementIfSufficient(ctx context.Context, productID int64, quantity int) (bool, error) {
	result, err := a.redisClient.RunScript(ctx, decrementIfSufficientScriptName, []string{stockKey(productID)}, quantity)
	if err != nil {
		return false, &domain.StoreError{Op: "decrement stock if sufficient", Err: err}
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	switch code {
	case 1:
		return true, nil
	case 0, -1:
		// 库存不足或没有库存记录
		return false, nil
	default:
		return false, fmt.Errorf("unknown result code from decrement script: %d", code)
	}
}

// DecrementStock 无条件扣减，库存可能变为负数
func (a *InventoryRedisAdapter) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	return a.adjust(ctx, "decrement stock", productID, -quantity)
}

// IncrementStock 实现了扣减的补偿逻辑
func (a *InventoryRedisAdapter) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	return a.adjust(ctx, "increment stock", productID, quantity)
}

func (a *InventoryRedisAdapter) adjust(ctx context.Context, op string, productID int64, delta int) error {
	_, err := a.redisClient.RunScript(ctx, adjustStockScriptName, []string{stockKey(productID)}, delta)
	if err != nil {
		// 脚本对不存在的 key 返回 nil
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("%s of product %d: %w", op, productID, domain.ErrInventoryNotFound)
		}
		return &domain.StoreError{Op: op, Err: err}
	}
	return nil
}

// PrepareStock (测试和管理用) 设置商品库存
func (a *InventoryRedisAdapter) PrepareStock(ctx context.Context, stock map[int64]int) error {
	pipe := a.redisClient.GetClient().Pipeline()
	for productID, qty := range stock {
		pipe.Set(ctx, stockKey(productID), qty, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prepare stock: %w", err)
	}
	return nil
}

var decrementIfSufficientScript = `
-- KEYS[1]: 库存 Key, 例如: inventory:stock:{42}
-- ARGV[1]: 需要扣减的数量

local stock = tonumber(redis.call('get', KEYS[1]))
if stock == nil then
    return -1 -- 没有库存记录
end

local qty = tonumber(ARGV[1])
if stock >= qty then
    redis.call('decrby', KEYS[1], qty)
    return 1
end
return 0 -- 库存不足
`

var adjustStockScript = `
-- KEYS[1]: 库存 Key
-- ARGV[1]: 变化量，可以为负

if redis.call('exists', KEYS[1]) == 0 then
    return false
end
return redis.call('incrby', KEYS[1], ARGV[1])
`
