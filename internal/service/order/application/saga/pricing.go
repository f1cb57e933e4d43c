package saga

import (
	"fmt"
	"fulfillment/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PricingHandler 重算订单金额和折扣，并在库存检查之前持久化。
type PricingHandler struct {
	NextHandler
}

func (h *PricingHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Pricing")
	defer span.End()

	pricing := domain.ComputeDiscount(
		orderCtx.Order.PricedLines(),
		orderCtx.Customer.IsVIP,
		orderCtx.Customer.RegistrationYear(),
		orderCtx.AsOf.Year(),
	)
	orderCtx.Order = orderCtx.Order.WithPricing(pricing)

	span.SetAttributes(
		attribute.String("order.total_amount", pricing.TotalAmount.String()),
		attribute.Int("order.discount_percent", pricing.DiscountPercent),
		attribute.String("order.final_amount", pricing.FinalAmount.String()),
	)

	if err := orderCtx.Orders.Save(ctx, orderCtx.Order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to persist recomputed order")
		return fmt.Errorf("persist recomputed order: %w", err)
	}
	span.AddEvent("Recomputed order saved with Processed state.")

	return h.executeNext(orderCtx)
}
