// internal/service/order/domain/state.go
package domain

// State 定义了订单在履约流水线中的状态
type State string

const (
	StatePending   State = "Pending"   // 等待处理，流水线只拉取这个状态的订单
	StateProcessed State = "Processed" // 折扣已重算（中间状态，不是终态）
	StateReady     State = "Ready"     // 库存已扣减，可以发货
	StateOnHold    State = "OnHold"    // 库存不足，挂起
)

// IsTerminal 报告该状态在本流水线中是否为终态
func (s State) IsTerminal() bool {
	return s == StateReady || s == StateOnHold
}
