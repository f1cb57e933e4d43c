// internal/service/order/domain/errors.go
package domain

import "errors"

var (
	// ErrInvalidCustomerID 是校验错误，整个调用立即失败，不访问任何存储
	ErrInvalidCustomerID = errors.New("invalid customer id")

	ErrCustomerNotFound  = errors.New("customer not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInventoryNotFound = errors.New("inventory record not found")
	ErrOrderNotUpdated   = errors.New("order update affected no rows")

	// ErrStore 标记底层存储（数据库、Redis、Kafka）的 I/O 失败。
	// 基础设施层用 errors.Wrap 包装后返回，调用方用 errors.Is 判断。
	ErrStore = errors.New("store error")
)

// StoreError 包装一个带操作名的存储错误
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }
