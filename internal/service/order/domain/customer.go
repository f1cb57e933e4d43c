// internal/service/order/domain/customer.go
package domain

import "time"

// Customer 是一次履约运行中的只读输入
type Customer struct {
	ID               int64
	Name             string
	Email            string
	IsVIP            bool
	RegistrationDate time.Time
}

// RegistrationYear 返回注册年份，折扣引擎只关心年份
func (c *Customer) RegistrationYear() int {
	return c.RegistrationDate.Year()
}
