package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

func formatPrice(v float64) string {
	return "KES " + decimal.NewFromFloat(v).StringFixed(2)
}

func subtotal(price float64, qty int) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))).Float64()
	return f
}

var funcs = template.FuncMap{
	"price":    formatPrice,
	"subtotal": subtotal,
	"title":    statusTitle,
}

const layoutHead = `<!DOCTYPE html><html><body style="font-family:sans-serif;color:#333">
<div style="max-width:600px;margin:0 auto;padding:20px">
<div style="background:#ec4899;color:#fff;padding:24px;text-align:center;border-radius:8px 8px 0 0"><h1 style="margin:0">{{.Shop}}</h1></div>
<div style="background:#fff;padding:24px">`

const layoutFoot = `</div></div></body></html>`

var (
	orderCreatedTmpl = template.Must(template.New("order_created").Funcs(funcs).Parse(layoutHead + `
<p>Hi {{.P.CustomerName}},</p>
<p>Thank you for your order! We have received it and will start on it once payment is confirmed.</p>
<p style="border-left:4px solid #ec4899;padding:12px">Order number: <strong>{{.P.OrderNumber}}</strong></p>
<table style="width:100%;border-collapse:collapse">
<tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th><th align="right">Subtotal</th></tr>
{{range .P.Items}}<tr>
<td><div style="font-weight:600">{{.Name}}</div>{{if .Details}}<div style="font-size:13px;color:#666">{{.Details}}</div>{{end}}</td>
<td align="center">{{.Quantity}}</td><td align="right">{{price .Price}}</td><td align="right">{{price (subtotal .Price .Quantity)}}</td>
</tr>{{end}}
</table>
<p style="text-align:right;font-size:18px"><strong>Total: {{price .P.TotalAmount}}</strong></p>
<p>Delivery to: {{.P.ShippingAddress.Street}}, {{.P.ShippingAddress.City}} {{.P.ShippingAddress.ZipCode}}</p>
<p>Payment method: {{.P.PaymentMethod}}</p>
{{if .P.Notes}}<p>Notes: {{.P.Notes}}</p>{{end}}` + layoutFoot))

	statusChangedTmpl = template.Must(template.New("status_changed").Funcs(funcs).Parse(layoutHead + `
<p>Hi {{.P.CustomerName}},</p>
<p>Your order <strong>{{.P.OrderNumber}}</strong> is now <strong>{{title .P.OrderStatus}}</strong>.</p>
<p>{{.Message}}</p>` + layoutFoot))

	paymentCompletedTmpl = template.Must(template.New("payment_completed").Funcs(funcs).Parse(layoutHead + `
<p>Hi {{.P.CustomerName}},</p>
<p>We received your M-Pesa payment of <strong>{{price .P.Amount}}</strong> for order <strong>{{.P.OrderNumber}}</strong>.</p>
{{if .P.Receipt}}<p>M-Pesa receipt: {{.P.Receipt}}</p>{{end}}` + layoutFoot))

	contactTmpl = template.Must(template.New("contact").Funcs(funcs).Parse(layoutHead + `
<p>Hi {{.P.Name}},</p>
<p>Thanks for reaching out about "{{.P.Subject}}". Our team will respond to your {{.P.Category}} inquiry soon.</p>
<blockquote style="color:#666">{{.P.Message}}</blockquote>` + layoutFoot))
)

var statusMessages = map[string]string{
	"confirmed": "Your order has been confirmed and is queued for baking.",
	"preparing": "Our bakers are preparing your cake right now.",
	"ready":     "Your cake is ready! It will be on its way shortly.",
	"delivered": "Your cake has been delivered. Enjoy!",
}

func statusTitle(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Email is a rendered message ready for a Mailer.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Render turns an envelope into an e-mail. Unknown event types return (nil, nil).
func Render(shop string, env Envelope) (*Email, error) {
	switch env.EventType {
	case EventOrderCreated:
		var p OrderCreatedPayload
		if err := decode(env, &p); err != nil {
			return nil, err
		}
		return execute(orderCreatedTmpl, p.CustomerEmail, fmt.Sprintf("Order Confirmation - %s", p.OrderNumber), shop, p, "")
	case EventOrderStatusChanged:
		var p OrderStatusChangedPayload
		if err := decode(env, &p); err != nil {
			return nil, err
		}
		msg := statusMessages[p.OrderStatus]
		return execute(statusChangedTmpl, p.CustomerEmail, fmt.Sprintf("Order Update - %s is %s", p.OrderNumber, statusTitle(p.OrderStatus)), shop, p, msg)
	case EventPaymentCompleted:
		var p PaymentCompletedPayload
		if err := decode(env, &p); err != nil {
			return nil, err
		}
		return execute(paymentCompletedTmpl, p.CustomerEmail, fmt.Sprintf("Payment Received - %s", p.OrderNumber), shop, p, "")
	case EventContactReceived:
		var p ContactReceivedPayload
		if err := decode(env, &p); err != nil {
			return nil, err
		}
		return execute(contactTmpl, p.Email, "We received your message", shop, p, "")
	default:
		return nil, nil
	}
}

func decode(env Envelope, out any) error {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("%s payload: %w", env.EventType, err)
	}
	return nil
}

func execute(t *template.Template, to, subject, shop string, p any, message string) (*Email, error) {
	var buf bytes.Buffer
	data := struct {
		Shop    string
		P       any
		Message string
	}{Shop: shop, P: p, Message: message}
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return &Email{To: to, Subject: subject, Body: buf.String()}, nil
}
