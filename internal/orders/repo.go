package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrDuplicateNumber = errors.New("order number already taken")
)

// Store is what the coordinator needs from persistence.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	GetByNumber(ctx context.Context, number string) (Order, error)
	UpdateStatus(ctx context.Context, number string, upd StatusUpdate) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	AttachCheckout(ctx context.Context, number, merchantRequestID, checkoutRequestID string, at time.Time) (Order, error)
	GetByCheckoutID(ctx context.Context, checkoutRequestID string) (Order, error)
	ResolvePayment(ctx context.Context, checkoutRequestID string, res PaymentResult) (Order, bool, error)
	ListAwaitingPayment(ctx context.Context, limit int) ([]Order, error)
}

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, order_number, customer_name, customer_email, customer_phone,
	shipping_address, items, total_amount::float8, payment_status, payment_method, order_status, notes,
	COALESCE(merchant_request_id, ''), COALESCE(checkout_request_id, ''), COALESCE(mpesa_receipt, ''),
	COALESCE(payment_result_code, ''), COALESCE(payment_result_desc, ''), payment_requested_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var ps, st string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.ShippingAddress, &o.Items, &o.TotalAmount, &ps, &o.PaymentMethod, &st, &o.Notes,
		&o.MerchantRequestID, &o.CheckoutRequestID, &o.MpesaReceipt,
		&o.PaymentResultCode, &o.PaymentResultDesc, &o.PaymentRequestedAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.PaymentStatus = PaymentStatus(ps)
	o.OrderStatus = OrderStatus(st)
	return o, nil
}

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(id, order_number, customer_name, customer_email, customer_phone,
			shipping_address, items, total_amount, payment_status, payment_method, order_status, notes,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.OrderNumber, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.ShippingAddress, o.Items, o.TotalAmount, string(o.PaymentStatus), o.PaymentMethod,
		string(o.OrderStatus), o.Notes, o.CreatedAt, o.UpdatedAt)
	if postgres.IsUniqueViolation(err, "orders_order_number_key") {
		return ErrDuplicateNumber
	}
	return err
}

func (r *Repo) GetByNumber(ctx context.Context, number string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE order_number=$1`, number))
}

func (r *Repo) GetByCheckoutID(ctx context.Context, checkoutRequestID string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE checkout_request_id=$1`, checkoutRequestID))
}

// UpdateStatus applies whichever fields are set; last write wins.
func (r *Repo) UpdateStatus(ctx context.Context, number string, upd StatusUpdate) (Order, error) {
	var st, ps *string
	if upd.OrderStatus != nil {
		s := string(*upd.OrderStatus)
		st = &s
	}
	if upd.PaymentStatus != nil {
		s := string(*upd.PaymentStatus)
		ps = &s
	}
	return scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders
		SET order_status = COALESCE($2, order_status),
		    payment_status = COALESCE($3, payment_status),
		    updated_at = now()
		WHERE order_number=$1
		RETURNING `+orderCols, number, st, ps))
}

// List runs the count and the page query concurrently.
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	where := ""
	args := []any{}
	if f.Status != "" {
		where = ` WHERE order_status=$1`
		args = append(args, string(f.Status))
	}

	var total int
	var out []Order
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.DB.QueryRow(gctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total)
	})
	g.Go(func() error {
		n := len(args)
		q := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			orderCols, where, n+1, n+2)
		rows, err := r.DB.Query(gctx, q, append(args, f.Limit, (f.Page-1)*f.Limit)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// AttachCheckout records a push attempt. Only pending payments accept one.
// ErrNotFound covers both a missing order and one that is no longer pending.
func (r *Repo) AttachCheckout(ctx context.Context, number, merchantRequestID, checkoutRequestID string, at time.Time) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders
		SET merchant_request_id=$2, checkout_request_id=$3, payment_requested_at=$4, updated_at=now()
		WHERE order_number=$1 AND payment_status='pending'
		RETURNING `+orderCols,
		number, merchantRequestID, checkoutRequestID, at))
}

// ResolvePayment is the single pending -> terminal transition for a checkout.
// changed=false means someone else already resolved it; the stored order,
// including the result code that resolved it, is returned as is.
func (r *Repo) ResolvePayment(ctx context.Context, checkoutRequestID string, res PaymentResult) (Order, bool, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders
		SET payment_status=$2, mpesa_receipt=NULLIF($3, ''),
		    payment_result_code=NULLIF($4, ''), payment_result_desc=NULLIF($5, ''), updated_at=now()
		WHERE checkout_request_id=$1 AND payment_status='pending'
		RETURNING `+orderCols, checkoutRequestID, string(res.Status), res.Receipt, res.ResultCode, res.ResultDesc))
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Order{}, false, err
	}
	o, err = r.GetByCheckoutID(ctx, checkoutRequestID)
	return o, false, err
}

func (r *Repo) ListAwaitingPayment(ctx context.Context, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE payment_status='pending' AND checkout_request_id IS NOT NULL
		ORDER BY payment_requested_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
