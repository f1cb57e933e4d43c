package infrastructure

import (
	"fulfillment/internal/service/order/domain"
)

// ToDomainCustomer 将数据库模型转换为领域模型
func ToDomainCustomer(model *CustomerModel) *domain.Customer {
	if model == nil {
		return nil
	}
	return &domain.Customer{
		ID:               model.ID,
		Name:             model.Name,
		Email:            model.Email,
		IsVIP:            model.IsVIP,
		RegistrationDate: model.RegistrationDate,
	}
}

// ToDomainOrder 将数据库模型转换为领域模型（不含订单行）
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	order := &domain.Order{
		ID:          model.ID,
		CustomerID:  model.CustomerID,
		OrderDate:   model.OrderDate,
		TotalAmount: model.TotalAmount,
		State:       domain.State(model.Status),
	}
	if model.DiscountPercent.Valid {
		order.DiscountPercent = int(model.DiscountPercent.Int32)
	}
	if model.DiscountAmount.Valid {
		order.DiscountAmount = model.DiscountAmount.Decimal
	}
	if model.FinalAmount.Valid {
		order.FinalAmount = model.FinalAmount.Decimal
	}
	return order
}

func ToDomainOrderItem(model *OrderItemModel) domain.OrderItem {
	return domain.OrderItem{
		ID:        model.ID,
		OrderID:   model.OrderID,
		ProductID: model.ProductID,
		Quantity:  model.Quantity,
		UnitPrice: model.UnitPrice,
	}
}

func ToDomainProduct(model *ProductModel) *domain.Product {
	if model == nil {
		return nil
	}
	return &domain.Product{
		ID:       model.ID,
		Name:     model.Name,
		Category: model.Category,
		Price:    model.Price,
	}
}

// pricingColumns 返回 Save 需要更新的列
func pricingColumns(order *domain.Order) map[string]interface{} {
	return map[string]interface{}{
		"total_amount":     order.TotalAmount,
		"discount_percent": order.DiscountPercent,
		"discount_amount":  order.DiscountAmount,
		"final_amount":     order.FinalAmount,
		"status":           string(order.State),
	}
}
