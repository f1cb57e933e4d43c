package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/service/order/domain"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AuditKafkaAdapter 实现了 port.AuditLogSink 接口，把审计日志发到 Kafka，
// 供下游（通知、报表）订阅。
type AuditKafkaAdapter struct {
	writer mq.MessageWriter
}

// NewAuditKafkaAdapter 创建一个新的审计日志生产者适配器。
func NewAuditKafkaAdapter(writer mq.MessageWriter) *AuditKafkaAdapter {
	return &AuditKafkaAdapter{writer: writer}
}

func (a *AuditKafkaAdapter) AppendLog(ctx context.Context, orderID int64, message string, at time.Time) error {
	event := domain.OrderAuditEvent{
		EventID:   uuid.New().String(),
		OrderID:   orderID,
		Message:   message,
		Timestamp: at,
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	// 以订单 ID 为 key，同一订单的日志落在同一分区，保证顺序
	if err := mq.ProduceMessage(ctx, a.writer, []byte(strconv.FormatInt(orderID, 10)), eventBytes); err != nil {
		return &domain.StoreError{Op: "publish audit event", Err: err}
	}
	return nil
}
