package orders

import "github.com/ariefcatur/go-cake-orders/internal/notify"

func createdPayload(o Order) notify.OrderCreatedPayload {
	items := make([]notify.LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, notify.LineItem{
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Details:     it.Customization.Summary(),
		})
	}
	return notify.OrderCreatedPayload{
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		CustomerPhone: o.CustomerPhone,
		ShippingAddress: notify.Address{
			Street:  o.ShippingAddress.Street,
			City:    o.ShippingAddress.City,
			ZipCode: o.ShippingAddress.ZipCode,
		},
		Items:         items,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt,
	}
}

func statusPayload(o Order) notify.OrderStatusChangedPayload {
	return notify.OrderStatusChangedPayload{
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		OrderStatus:   string(o.OrderStatus),
	}
}

func paymentPayload(o Order) notify.PaymentCompletedPayload {
	return notify.PaymentCompletedPayload{
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Amount:        o.TotalAmount,
		Receipt:       o.MpesaReceipt,
	}
}
