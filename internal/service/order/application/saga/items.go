package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// LoadItemsHandler 加载订单行。
// 加载失败时该订单失败（不再当作空订单继续处理），空结果则按零行订单继续。
type LoadItemsHandler struct {
	NextHandler
}

func (h *LoadItemsHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.LoadItems")
	defer span.End()

	items, err := orderCtx.Orders.FindItems(ctx, orderCtx.Order.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load order items")
		return fmt.Errorf("load order items: %w", err)
	}

	orderCtx.Order = orderCtx.Order.WithItems(items)
	span.SetAttributes(attribute.Int("order.items", len(items)))
	return h.executeNext(orderCtx)
}
