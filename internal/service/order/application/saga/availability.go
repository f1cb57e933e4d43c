package saga

import (
	"context"
	"fmt"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Availability 是库存检查的结果
type Availability struct {
	Available bool
	Warnings  []string // 被跳过的订单行（库存查询失败）
}

// AvailabilityChecker 判断一组订单行的库存是否全部充足。
type AvailabilityChecker struct {
	inventory port.InventoryService
	tracer    trace.Tracer
}

func NewAvailabilityChecker(inventory port.InventoryService, tracer trace.Tracer) *AvailabilityChecker {
	return &AvailabilityChecker{inventory: inventory, tracer: tracer}
}

// Check 逐行查询库存：没有库存记录或库存小于需求量时整单不可用，并立即停止。
// 单行查询失败只跳过该行（不会因此判为不可用），记为 warning。空订单视为可用。
func (c *AvailabilityChecker) Check(ctx context.Context, items []domain.OrderItem) Availability {
	ctx, span := c.tracer.Start(ctx, "inventory.CheckAvailability")
	defer span.End()

	result := Availability{Available: true}
	for _, item := range items {
		stock, found, err := c.inventory.GetStockQuantity(ctx, item.ProductID)
		if err != nil {
			span.RecordError(err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("stock lookup for product %d failed, item skipped: %v", item.ProductID, err))
			continue
		}
		if !found || stock < item.Quantity {
			span.SetAttributes(attribute.Int64("inventory.short_product_id", item.ProductID))
			result.Available = false
			break
		}
	}

	span.SetAttributes(attribute.Bool("inventory.available", result.Available))
	return result
}

// AvailabilityHandler 在订单持久化之后、任何库存变更之前执行库存检查。
type AvailabilityHandler struct {
	NextHandler
}

func (h *AvailabilityHandler) Handle(orderCtx *OrderContext) error {
	result := orderCtx.Checker.Check(orderCtx.Ctx, orderCtx.Order.Items)
	orderCtx.Available = result.Available
	orderCtx.Warnings = append(orderCtx.Warnings, result.Warnings...)
	return h.executeNext(orderCtx)
}
