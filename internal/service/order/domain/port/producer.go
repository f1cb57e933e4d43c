package port

import (
	"context"
	"fulfillment/internal/service/order/domain"
)

// ProcessingRequestProducer 把“处理客户订单”的请求投递到消息队列。
type ProcessingRequestProducer interface {
	Produce(ctx context.Context, event *domain.CustomerOrdersProcessingRequested) error
}
