package adapter

import (
	"context"
	"errors"
	"fulfillment/internal/service/order/domain/port"
	"time"
)

// FanoutAuditLog 把同一条审计日志依次写入多个 sink。
// 每个 sink 都会被调用，返回所有失败合并后的错误。
type FanoutAuditLog struct {
	sinks []port.AuditLogSink
}

func NewFanoutAuditLog(sinks ...port.AuditLogSink) *FanoutAuditLog {
	return &FanoutAuditLog{sinks: sinks}
}

func (f *FanoutAuditLog) AppendLog(ctx context.Context, orderID int64, message string, at time.Time) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.AppendLog(ctx, orderID, message, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
