package orders

import (
	"strings"
	"time"
)

type Address struct {
	Street  string `json:"street" validate:"required,min=5"`
	City    string `json:"city" validate:"required,min=2"`
	ZipCode string `json:"zipCode" validate:"required,min=2"`
}

type Customization struct {
	Size       string `json:"size,omitempty"`
	Flavor     string `json:"flavor,omitempty"`
	Frosting   string `json:"frosting,omitempty"`
	Filling    string `json:"filling,omitempty"`
	Topping    string `json:"topping,omitempty"`
	Decoration string `json:"decoration,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Summary flattens the customization into "Size: 1kg, Flavor: Vanilla".
func (c *Customization) Summary() string {
	if c == nil {
		return ""
	}
	var parts []string
	add := func(label, v string) {
		if v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("Size", c.Size)
	add("Flavor", c.Flavor)
	add("Frosting", c.Frosting)
	add("Filling", c.Filling)
	add("Topping", c.Topping)
	add("Decoration", c.Decoration)
	add("Message", c.Message)
	return strings.Join(parts, ", ")
}

type LineItem struct {
	ID            string         `json:"id"`
	Name          string         `json:"name" validate:"required"`
	Description   string         `json:"description"`
	Price         float64        `json:"price" validate:"gt=0"`
	Quantity      int            `json:"quantity" validate:"gt=0"`
	Customization *Customization `json:"customization,omitempty"`
}

type Order struct {
	ID                 string        `json:"id"`
	OrderNumber        string        `json:"orderNumber"`
	CustomerName       string        `json:"customerName"`
	CustomerEmail      string        `json:"customerEmail"`
	CustomerPhone      string        `json:"customerPhone"`
	ShippingAddress    Address       `json:"shippingAddress"`
	Items              []LineItem    `json:"items"`
	TotalAmount        float64       `json:"totalAmount"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	PaymentMethod      string        `json:"paymentMethod"`
	OrderStatus        OrderStatus   `json:"orderStatus"`
	Notes              string        `json:"notes"`
	MerchantRequestID  string        `json:"merchantRequestId,omitempty"`
	CheckoutRequestID  string        `json:"checkoutRequestId,omitempty"`
	MpesaReceipt       string        `json:"mpesaReceipt,omitempty"`
	PaymentResultCode  string        `json:"paymentResultCode,omitempty"`
	PaymentResultDesc  string        `json:"paymentResultDesc,omitempty"`
	PaymentRequestedAt *time.Time    `json:"paymentRequestedAt,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

type CreateInput struct {
	CustomerName    string        `json:"customerName" validate:"required,min=2"`
	CustomerEmail   string        `json:"customerEmail" validate:"required,email"`
	CustomerPhone   string        `json:"customerPhone" validate:"required,kephone"`
	ShippingAddress Address       `json:"shippingAddress"`
	Items           []LineItem    `json:"items" validate:"required,min=1,dive"`
	TotalAmount     float64       `json:"totalAmount" validate:"gt=0"`
	PaymentStatus   PaymentStatus `json:"paymentStatus,omitempty" validate:"omitempty,oneof=pending completed failed"`
	PaymentMethod   string        `json:"paymentMethod,omitempty"`
	Notes           string        `json:"notes,omitempty"`
}

// PaymentResult is the gateway's final answer for a checkout.
type PaymentResult struct {
	Status     PaymentStatus
	Receipt    string
	ResultCode string
	ResultDesc string
}

type StatusUpdate struct {
	OrderStatus   *OrderStatus   `json:"orderStatus,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
}

type ListFilter struct {
	Status OrderStatus
	Page   int
	Limit  int
}

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

type Page struct {
	Orders     []Order    `json:"data"`
	Pagination Pagination `json:"pagination"`
}
