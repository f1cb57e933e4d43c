package saga

import (
	"fmt"
	"fulfillment/internal/pkg/logger"

	"go.opentelemetry.io/otel/codes"
)

// FinalizeHandler 先持久化终态，再写审计日志。
type FinalizeHandler struct {
	NextHandler
}

func (h *FinalizeHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Finalize")
	defer span.End()

	order := orderCtx.Order
	if err := orderCtx.Orders.UpdateState(ctx, order.ID, order.State); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to persist final order state")
		// 终态没写进去，已经扣掉的库存要还回去
		orderCtx.TriggerCompensation(ctx)
		return fmt.Errorf("persist final state %s: %w", order.State, err)
	}

	// 审计日志允许丢失，只记录 warning
	if err := orderCtx.AuditLog.AppendLog(ctx, order.ID, orderCtx.AuditMessage, orderCtx.Clock()); err != nil {
		span.RecordError(err)
		orderCtx.AddWarning("audit log append failed: %v", err)
		logger.Ctx(ctx).Warn().Err(err).Int64("order_id", order.ID).Msg("Failed to append audit log")
	}

	return h.executeNext(orderCtx)
}
