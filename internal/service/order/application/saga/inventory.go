package saga

import (
	"context"
	"fmt"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const onHoldMessage = "Order on hold. Some items are not on stock."

// CompletedMessage 是订单完成时写入审计日志的消息
func CompletedMessage(order *domain.Order) string {
	return fmt.Sprintf("Order completed with %d%% discount. Total price: %s", order.DiscountPercent, order.FinalAmount.String())
}

// StockHandler 在库存充足时扣减库存，并决定订单终态。
type StockHandler struct {
	NextHandler
}

func (h *StockHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.StockDecrement")
	defer span.End()

	if orderCtx.Available {
		var err error
		if orderCtx.AtomicStock {
			err = h.decrementAtomically(ctx, orderCtx)
		} else {
			h.decrementUnconditionally(ctx, orderCtx)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Inventory decrement failed")
			return err
		}
	}

	if orderCtx.Available {
		orderCtx.Order = orderCtx.Order.WithState(domain.StateReady)
		orderCtx.AuditMessage = CompletedMessage(orderCtx.Order)
	} else {
		orderCtx.Order = orderCtx.Order.WithState(domain.StateOnHold)
		orderCtx.AuditMessage = onHoldMessage
	}
	span.SetAttributes(attribute.String("order.state", string(orderCtx.Order.State)))

	return h.executeNext(orderCtx)
}

// decrementAtomically 对每行执行“检查并扣减”，成功一行就登记一个加回库存的补偿。
// 某行库存在检查之后被别的订单抢走时，回滚已扣减的行并把订单挂起。
func (h *StockHandler) decrementAtomically(ctx context.Context, orderCtx *OrderContext) error {
	for _, item := range orderCtx.Order.Items {
		ok, err := orderCtx.Inventory.DecrementIfSufficient(ctx, item.ProductID, item.Quantity)
		if err != nil {
			orderCtx.TriggerCompensation(ctx)
			return fmt.Errorf("decrement stock of product %d: %w", item.ProductID, err)
		}
		if !ok {
			// 可能是并发订单抢走了库存，也可能是同一订单里多行扣同一个商品
			orderCtx.AddWarning("insufficient stock for product %d at decrement time", item.ProductID)
			orderCtx.TriggerCompensation(ctx)
			orderCtx.Available = false
			return nil
		}

		addRestoreCompensation(orderCtx, item.ProductID, item.Quantity)
	}
	return nil
}

// decrementUnconditionally 是兼容旧行为的扣减：每行都尝试，失败只记 warning。
// 成功的行同样登记补偿，终态写入失败时把库存加回去。
func (h *StockHandler) decrementUnconditionally(ctx context.Context, orderCtx *OrderContext) {
	for _, item := range orderCtx.Order.Items {
		if err := orderCtx.Inventory.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			orderCtx.AddWarning("decrement stock of product %d failed: %v", item.ProductID, err)
			continue
		}
		addRestoreCompensation(orderCtx, item.ProductID, item.Quantity)
	}
}

// addRestoreCompensation 登记一个把扣掉的库存加回去的补偿
func addRestoreCompensation(orderCtx *OrderContext, productID int64, quantity int) {
	orderCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.IncrementStock")
		defer compSpan.End()

		// 补偿失败需要人工介入
		if err := orderCtx.Inventory.IncrementStock(compCtx, productID, quantity); err != nil {
			compSpan.RecordError(err)
			logger.Ctx(compCtx).Error().Err(err).
				Int64("order_id", orderCtx.Order.ID).
				Int64("product_id", productID).
				Int("quantity", quantity).
				Msg("CRITICAL: failed to restore stock during compensation")
		}
	})
}
