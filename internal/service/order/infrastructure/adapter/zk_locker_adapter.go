package adapter

import (
	"context"
	"fmt"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/zookeeper"
)

// ZkCustomerLocker 实现了 port.CustomerLocker 接口，
// 同一个客户的履约运行在所有实例之间串行执行。
type ZkCustomerLocker struct {
	conn *zookeeper.Conn
}

func NewZkCustomerLocker(conn *zookeeper.Conn) *ZkCustomerLocker {
	return &ZkCustomerLocker{conn: conn}
}

func (l *ZkCustomerLocker) Lock(ctx context.Context, customerID int64) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(l.conn, fmt.Sprintf("customer-%d", customerID))
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock customer %d: %w", customerID, err)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			// 会话过期后临时节点会被 ZooKeeper 自动删除
			logger.Ctx(ctx).Warn().Err(err).Int64("customer_id", customerID).Msg("Failed to release customer lock")
		}
	}, nil
}
