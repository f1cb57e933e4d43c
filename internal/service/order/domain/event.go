// internal/service/order/domain/event.go
package domain

import "time"

// CustomerOrdersProcessingRequested 是请求处理某个客户待处理订单的消息。
// 由 HTTP 接口异步投递，或由上游系统直接写入 Kafka。
type CustomerOrdersProcessingRequested struct {
	EventID    string    `json:"eventId"`
	TraceID    string    `json:"traceId,omitempty"`
	CustomerID int64     `json:"customerId"`
	AsOf       time.Time `json:"asOf,omitempty"`
}

// OrderAuditEvent 是订单审计日志的消息体
type OrderAuditEvent struct {
	EventID   string    `json:"eventId"`
	OrderID   int64     `json:"orderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
