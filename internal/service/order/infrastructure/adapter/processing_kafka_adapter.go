package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/service/order/domain"
	"strconv"
)

// ProcessingRequestKafkaAdapter 实现了 port.ProcessingRequestProducer 接口。
type ProcessingRequestKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewProcessingRequestKafkaAdapter(writer mq.MessageWriter) *ProcessingRequestKafkaAdapter {
	return &ProcessingRequestKafkaAdapter{writer: writer}
}

// Produce 以客户 ID 为 key 发送，同一客户的请求按顺序消费
func (p *ProcessingRequestKafkaAdapter) Produce(ctx context.Context, event *domain.CustomerOrdersProcessingRequested) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal processing request: %w", err)
	}

	if err := mq.ProduceMessage(ctx, p.writer, []byte(strconv.FormatInt(event.CustomerID, 10)), eventBytes); err != nil {
		return fmt.Errorf("failed to produce message to Kafka: %w", err)
	}
	return nil
}
