package port

import "context"

// CustomerLocker 保证同一个客户的订单不会被两次运行并发处理。
type CustomerLocker interface {
	// Lock 阻塞直到获得锁，返回的 unlock 必须被调用。
	Lock(ctx context.Context, customerID int64) (unlock func(), err error)
}
