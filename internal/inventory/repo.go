package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrStockNotFound   = errors.New("stock record not found")
	ErrInsufficient    = errors.New("insufficient stock")
	ErrWouldGoNegative = errors.New("stock cannot go negative")
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Get(ctx context.Context, productID string) (StockRecord, error) {
	var s StockRecord
	err := r.DB.QueryRow(ctx, `
		SELECT product_id, quantity_on_hand, reorder_threshold, COALESCE(location, ''), updated_at
		FROM stock WHERE product_id = $1`, productID).
		Scan(&s.ProductID, &s.QuantityOnHand, &s.ReorderThreshold, &s.Location, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRecord{}, ErrStockNotFound
	}
	return s, err
}

func (r *Repo) List(ctx context.Context, lowOnly bool) ([]StockRecord, error) {
	q := `SELECT product_id, quantity_on_hand, reorder_threshold, COALESCE(location, ''), updated_at
	      FROM stock`
	if lowOnly {
		q += ` WHERE quantity_on_hand <= reorder_threshold`
	}
	q += ` ORDER BY product_id`

	rows, err := r.DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockRecord
	for rows.Next() {
		var s StockRecord
		if err := rows.Scan(&s.ProductID, &s.QuantityOnHand, &s.ReorderThreshold, &s.Location, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AdjustBy applies a signed delta and rejects, without mutation, any
// adjustment that would take the quantity below zero.
func (r *Repo) AdjustBy(ctx context.Context, productID string, delta int) (StockRecord, error) {
	var s StockRecord
	err := r.DB.QueryRow(ctx, `
		UPDATE stock SET quantity_on_hand = quantity_on_hand + $2, updated_at = now()
		WHERE product_id = $1 AND quantity_on_hand + $2 >= 0
		RETURNING product_id, quantity_on_hand, reorder_threshold, COALESCE(location, ''), updated_at`,
		productID, delta).
		Scan(&s.ProductID, &s.QuantityOnHand, &s.ReorderThreshold, &s.Location, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// distinguish a missing row from a rejected adjustment
		if _, err := r.Get(ctx, productID); err != nil {
			return StockRecord{}, err
		}
		return StockRecord{}, ErrWouldGoNegative
	}
	return s, err
}

// Alerts returns depleted records and records at or below their reorder
// threshold, for the stockwatch worker and the alerts endpoint.
func (r *Repo) Alerts(ctx context.Context) (depleted, low []StockRecord, err error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, quantity_on_hand, reorder_threshold, COALESCE(location, ''), updated_at
		FROM stock WHERE quantity_on_hand <= reorder_threshold ORDER BY quantity_on_hand`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s StockRecord
		if err := rows.Scan(&s.ProductID, &s.QuantityOnHand, &s.ReorderThreshold, &s.Location, &s.UpdatedAt); err != nil {
			return nil, nil, err
		}
		if s.Depleted() {
			depleted = append(depleted, s)
		} else {
			low = append(low, s)
		}
	}
	return depleted, low, rows.Err()
}

// DecrementTx re-checks sufficiency and decrements in one conditional UPDATE
// inside the caller's transaction. The row lock the UPDATE takes serializes
// concurrent callers on the same product, so there is no check-then-act
// window. Returns the new quantity.
func DecrementTx(ctx context.Context, tx pgx.Tx, productID string, qty int) (int, error) {
	var newQty int
	err := tx.QueryRow(ctx, `
		UPDATE stock SET quantity_on_hand = quantity_on_hand - $2, updated_at = now()
		WHERE product_id = $1 AND quantity_on_hand >= $2
		RETURNING quantity_on_hand`, productID, qty).Scan(&newQty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficient
	}
	return newQty, err
}

// IncrementTx restores stock inside the caller's transaction (cancellation
// restitution commits atomically with the status change).
func IncrementTx(ctx context.Context, tx pgx.Tx, productID string, qty int) (int, error) {
	var newQty int
	err := tx.QueryRow(ctx, `
		UPDATE stock SET quantity_on_hand = quantity_on_hand + $2, updated_at = now()
		WHERE product_id = $1
		RETURNING quantity_on_hand`, productID, qty).Scan(&newQty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrStockNotFound
	}
	return newQty, err
}

// AvailableTx reads the current quantity; a missing stock record reads as 0.
func AvailableTx(ctx context.Context, tx pgx.Tx, productID string) (int, error) {
	var qty int
	err := tx.QueryRow(ctx, `SELECT quantity_on_hand FROM stock WHERE product_id = $1`, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}
