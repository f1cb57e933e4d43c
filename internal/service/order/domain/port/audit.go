package port

import (
	"context"
	"time"
)

// AuditLogSink 是订单审计日志的出站端口。
// 调用方允许 fire-and-forget：写入失败不会影响订单结果。
type AuditLogSink interface {
	AppendLog(ctx context.Context, orderID int64, message string, at time.Time) error
}
