package saga

import (
	"errors"
	"fulfillment/internal/service/order/domain"
)

// EnrichProductsHandler 为每个订单行补全商品信息。
// 商品信息只用于展示，查询失败只记一个 warning，订单行保持没有商品引用。
type EnrichProductsHandler struct {
	NextHandler
}

func (h *EnrichProductsHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.EnrichProducts")
	defer span.End()

	items := make([]domain.OrderItem, len(orderCtx.Order.Items))
	copy(items, orderCtx.Order.Items)

	for i := range items {
		product, err := orderCtx.Products.FindByID(ctx, items[i].ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				orderCtx.AddWarning("product %d not found", items[i].ProductID)
			} else {
				span.RecordError(err)
				orderCtx.AddWarning("product %d lookup failed: %v", items[i].ProductID, err)
			}
			continue
		}
		items[i].Product = product
	}

	orderCtx.Order = orderCtx.Order.WithItems(items)
	return h.executeNext(orderCtx)
}
