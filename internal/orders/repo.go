package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amoblar/backoffice/internal/inventory"
)

type Repo struct{ DB *pgxpool.Pool }

// StockMovement records one committed stock change, for event publishing.
type StockMovement struct {
	ProductID      string
	Delta          int
	QuantityOnHand int
}

// CreateTx creates the order header, its lines, and the stock decrements as
// one transaction. A failure on any item rolls back everything: no partial
// order and no partial decrement is ever visible to another reader.
//
// Prices are snapshotted from the products table inside the transaction; the
// client never supplies them.
func (r *Repo) CreateTx(ctx context.Context, customerID string, sellerID *string, items []ItemInput) (Order, []OrderLine, []StockMovement, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o := Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		SellerID:   sellerID,
		Status:     StatusPending,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, customer_id, seller_id, status, total_cents)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING created_at, updated_at`,
		o.ID, o.CustomerID, o.SellerID, o.Status).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, nil, nil, err
	}

	var (
		lines     []OrderLine
		movements []StockMovement
		total     int64
	)
	for _, it := range items {
		var price int64
		err := tx.QueryRow(ctx, `SELECT price_cents FROM products WHERE id=$1`, it.ProductID).Scan(&price)
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, nil, ErrProductNotFound
		}
		if err != nil {
			return Order{}, nil, nil, err
		}

		newQty, err := inventory.DecrementTx(ctx, tx, it.ProductID, it.Quantity)
		if errors.Is(err, inventory.ErrInsufficient) {
			available, aerr := inventory.AvailableTx(ctx, tx, it.ProductID)
			if aerr != nil {
				return Order{}, nil, nil, aerr
			}
			return Order{}, nil, nil, &InsufficientStockError{
				ProductID: it.ProductID, Available: available, Requested: it.Quantity,
			}
		}
		if err != nil {
			return Order{}, nil, nil, err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines(order_id, product_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Quantity, price); err != nil {
			return Order{}, nil, nil, err
		}

		lines = append(lines, OrderLine{
			OrderID: o.ID, ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceCents: price,
		})
		movements = append(movements, StockMovement{
			ProductID: it.ProductID, Delta: -it.Quantity, QuantityOnHand: newQty,
		})
		total += int64(it.Quantity) * price
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET total_cents=$2, updated_at=now() WHERE id=$1`, o.ID, total); err != nil {
		return Order{}, nil, nil, err
	}
	o.TotalCents = total

	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, nil, err
	}
	return o, lines, movements, nil
}

// TransitionTx locks the order row, validates the transition, and, for a
// cancellation, restores every line's stock in the same transaction. A reader
// never sees a cancelled order whose stock has not been restored. The
// returned from is the status the locked row held before the change; callers
// use it for the status-changed event rather than re-reading.
func (r *Repo) TransitionTx(ctx context.Context, orderID string, target Status) (Order, Status, []StockMovement, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, "", nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o Order
	err = tx.QueryRow(ctx, `
		SELECT id, customer_id, seller_id, status, total_cents, created_at, updated_at
		FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&o.ID, &o.CustomerID, &o.SellerID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, "", nil, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, "", nil, err
	}
	from := o.Status

	if !CanTransition(from, target) {
		return Order{}, "", nil, &InvalidTransitionError{From: from, To: target}
	}

	var movements []StockMovement
	if target == StatusCancelled {
		rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_lines WHERE order_id=$1`, orderID)
		if err != nil {
			return Order{}, "", nil, err
		}
		type line struct {
			pid string
			qty int
		}
		var ls []line
		for rows.Next() {
			var l line
			if err := rows.Scan(&l.pid, &l.qty); err != nil {
				rows.Close()
				return Order{}, "", nil, err
			}
			ls = append(ls, l)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return Order{}, "", nil, err
		}

		for _, l := range ls {
			newQty, err := inventory.IncrementTx(ctx, tx, l.pid, l.qty)
			if err != nil {
				return Order{}, "", nil, err
			}
			movements = append(movements, StockMovement{ProductID: l.pid, Delta: l.qty, QuantityOnHand: newQty})
		}
	}

	err = tx.QueryRow(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 RETURNING updated_at`,
		orderID, target).Scan(&o.UpdatedAt)
	if err != nil {
		return Order{}, "", nil, err
	}
	o.Status = target

	if err := tx.Commit(ctx); err != nil {
		return Order{}, "", nil, err
	}
	return o, from, movements, nil
}

func (r *Repo) Get(ctx context.Context, orderID string) (Order, []OrderLine, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, customer_id, seller_id, status, total_cents, created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.CustomerID, &o.SellerID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, nil, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, quantity, unit_price_cents
		FROM order_lines WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPriceCents); err != nil {
			return Order{}, nil, err
		}
		lines = append(lines, l)
	}
	return o, lines, rows.Err()
}

func (r *Repo) GetStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	q := `SELECT id, customer_id, seller_id, status, total_cents, created_at, updated_at FROM orders`
	var (
		conds []string
		args  []any
	)
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		conds = append(conds, `customer_id=$1`)
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		if len(args) == 1 {
			conds = append(conds, `status=$1`)
		} else {
			conds = append(conds, `status=$2`)
		}
	}
	if len(conds) > 0 {
		q += ` WHERE ` + conds[0]
		if len(conds) > 1 {
			q += ` AND ` + conds[1]
		}
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.SellerID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
