package saga

import (
	"context"
	"fmt"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// OrderContext 在单个订单的履约流程中传递上下文数据。
// Order 始终指向最新的快照，每个步骤用 With* 产生新快照后替换它。
type OrderContext struct {
	Ctx      context.Context
	Order    *domain.Order
	Customer *domain.Customer
	AsOf     time.Time // 计算忠诚度年限用的“当前时间”
	Clock    func() time.Time
	Tracer   trace.Tracer

	// 依赖出站端口 (Interfaces)
	Orders      domain.OrderRepository
	Products    domain.ProductRepository
	Inventory   port.InventoryService
	AuditLog    port.AuditLogSink
	Checker     *AvailabilityChecker
	AtomicStock bool // true 时使用 DecrementIfSufficient 并登记补偿

	// 流程中产生的结果
	Available    bool
	AuditMessage string
	Warnings     []string

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddWarning 记录一个不影响订单结果的问题
func (c *OrderContext) AddWarning(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// AddCompensation 登记一个补偿操作，后登记的先执行
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 执行并清空所有已登记的补偿操作
func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	if len(c.compensations) == 0 {
		return
	}
	logger.Ctx(ctx).Info().Int64("order_id", c.Order.ID).Msgf("Executing %d compensation functions.", len(c.compensations))
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

// Handler 是责任链中的一个步骤
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// BuildChain 按固定顺序组装单个订单的履约链：
// 订单行 -> 商品 -> 定价并持久化 -> 库存检查 -> 扣减库存 -> 终态与审计
func BuildChain() Handler {
	chain := new(LoadItemsHandler)
	chain.
		SetNext(new(EnrichProductsHandler)).
		SetNext(new(PricingHandler)).
		SetNext(new(AvailabilityHandler)).
		SetNext(new(StockHandler)).
		SetNext(new(FinalizeHandler))
	return chain
}
