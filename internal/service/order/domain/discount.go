// internal/service/order/domain/discount.go
package domain

import "github.com/shopspring/decimal"

const (
	vipBonus        = 10
	maxDiscount     = 25
	loyaltyLongTerm = 5 // 注册满 5 年
	loyaltyMidTerm  = 2 // 注册满 2 年
)

var (
	volumeTierLarge  = decimal.NewFromInt(10000)
	volumeTierMedium = decimal.NewFromInt(5000)
	volumeTierSmall  = decimal.NewFromInt(1000)
)

// PricedLine 是折扣引擎的输入：一个订单行的数量和单价
type PricedLine struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Pricing 是折扣引擎的输出
type Pricing struct {
	TotalAmount     decimal.Decimal
	DiscountPercent int
	DiscountAmount  decimal.Decimal
	FinalAmount     decimal.Decimal
}

// ComputeDiscount 计算订单总额和会员/忠诚度/订单量折扣。
// 纯函数：当前年份由调用方传入。折扣上限 25%。
func ComputeDiscount(lines []PricedLine, isVIP bool, registrationYear, currentYear int) Pricing {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	percent := 0
	if isVIP {
		percent += vipBonus
	}

	years := currentYear - registrationYear
	switch {
	case years >= 5:
		percent += loyaltyLongTerm
	case years >= 2:
		percent += loyaltyMidTerm
	}

	switch {
	case total.GreaterThan(volumeTierLarge):
		percent += 15
	case total.GreaterThan(volumeTierMedium):
		percent += 10
	case total.GreaterThan(volumeTierSmall):
		percent += 5
	}

	if percent > maxDiscount {
		percent = maxDiscount
	}

	// percent/100 用 decimal.New(percent, -2) 表示，乘法是精确的
	discount := total.Mul(decimal.New(int64(percent), -2))
	return Pricing{
		TotalAmount:     total,
		DiscountPercent: percent,
		DiscountAmount:  discount,
		FinalAmount:     total.Sub(discount),
	}
}
