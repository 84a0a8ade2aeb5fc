package shop

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, user_id, total::text, status, payment_method,
	COALESCE(payment_id, ''), shipping_address, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.PaymentMethod,
		&o.PaymentID, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOrderTx: satu transaksi utk harga + order + items + pengurangan stok.
// Lock row product (FOR UPDATE) supaya dua checkout utk unit terakhir
// di-serialize; kalau stok kurang di salah satu line, semuanya rollback.
func (r *Repo) CreateOrderTx(ctx context.Context, userID string, lines []CartLine, method PaymentMethod, address string) (Order, []OrderItem, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(lines))
	for _, ln := range lines {
		ids = append(ids, ln.ProductID)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, name, price::text, stock FROM products
		WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return Order{}, nil, err
	}
	products := map[string]Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock); err != nil {
			rows.Close()
			return Order{}, nil, err
		}
		products[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, nil, err
	}

	total, priced, err := PriceCart(products, lines)
	if err != nil {
		return Order{}, nil, err
	}

	orderID := uuid.NewString()
	order, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, total, status, payment_method, shipping_address)
		VALUES ($1, $2, $3::numeric, 'pending', $4, $5)
		RETURNING `+orderCols, orderID, userID, total, method, address))
	if err != nil {
		return Order{}, nil, err
	}

	items := make([]OrderItem, 0, len(priced))
	for _, ln := range priced {
		it := OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			Price:     ln.Price,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5::numeric)`,
			it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price,
		); err != nil {
			return Order{}, nil, err
		}

		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`, ln.ProductID, ln.Quantity)
		if err != nil {
			return Order{}, nil, err
		}
		if ct.RowsAffected() != 1 {
			return Order{}, nil, &Error{
				Kind: KindInsufficientStock, ProductID: ln.ProductID,
				Msg: "insufficient stock for product " + ln.ProductID,
			}
		}
		items = append(items, it)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, E(KindNotFound, "order not found")
	}
	return o, err
}

func (r *Repo) ListOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
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

func (r *Repo) ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price::text
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// MarkPaid: conditional update, cuma dari pending. Replay utk order yg sudah
// paid -> no-op (changed=false), bukan error.
func (r *Repo) MarkPaid(ctx context.Context, orderID, paymentID string) (Order, bool, error) {
	return r.markStatus(ctx, orderID, paymentID, StatusPaid)
}

func (r *Repo) MarkFailed(ctx context.Context, orderID, paymentID string) (Order, bool, error) {
	return r.markStatus(ctx, orderID, paymentID, StatusFailed)
}

func (r *Repo) markStatus(ctx context.Context, orderID, paymentID string, to Status) (Order, bool, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$3, payment_id=$2, updated_at=now()
		WHERE id=$1 AND status='pending'
		RETURNING `+orderCols, orderID, paymentID, to))
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, err
	}
	// tidak ada row pending -> sudah terminal atau tidak ada
	o, err = r.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, false, err
	}
	return o, false, nil
}

// CancelOrder: pending-only, milik user ybs; stok item dikembalikan
// dalam transaksi yg sama.
func (r *Repo) CancelOrder(ctx context.Context, orderID, userID string) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, E(KindNotFound, "order not found")
	}
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, E(KindForbidden, "order does not belong to user")
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return Order{}, Ef(KindConflict, "order is %s and cannot be cancelled", o.Status)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products p SET stock = p.stock + oi.quantity, updated_at = now()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id`, orderID); err != nil {
		return Order{}, err
	}

	o, err = scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status='cancelled', updated_at=now()
		WHERE id=$1 RETURNING `+orderCols, orderID))
	if err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}
