package infrastructure

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// GormAuditLogSink 把审计日志写入 order_logs 表
type GormAuditLogSink struct {
	db *gorm.DB
}

func NewGormAuditLogSink(db *gorm.DB) *GormAuditLogSink {
	return &GormAuditLogSink{db: db}
}

func (s *GormAuditLogSink) AppendLog(ctx context.Context, orderID int64, message string, at time.Time) error {
	entry := &OrderLogModel{OrderID: orderID, LogDate: at, Message: message}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storeErr("append order log", err)
	}
	return nil
}
