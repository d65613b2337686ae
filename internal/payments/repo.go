package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotificationNotFound = errors.New("payment notification not found")

type Repo struct{ DB *pgxpool.Pool }

// Upsert records a notification keyed by its external payment id as a single
// statement, so two concurrent first deliveries of the same payment cannot
// both insert. Returns stored=false when an identical notification (same id,
// same status) was already recorded; the caller treats that as a retry.
func (r *Repo) Upsert(ctx context.Context, n Notification) (stored bool, err error) {
	var orderID any
	if n.OrderID != "" {
		orderID = n.OrderID
	}

	var isNew bool
	err = r.DB.QueryRow(ctx, `
		INSERT INTO payment_notifications AS pn
			(external_payment_id, order_id, external_status, amount_cents, payment_method)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_payment_id) DO UPDATE
		SET external_status=EXCLUDED.external_status,
		    amount_cents=EXCLUDED.amount_cents,
		    payment_method=EXCLUDED.payment_method,
		    updated_at=now()
		WHERE pn.external_status IS DISTINCT FROM EXCLUDED.external_status
		RETURNING (xmax = 0)`,
		n.ExternalPaymentID, orderID, n.ExternalStatus, n.AmountCents, n.PaymentMethod).Scan(&isNew)
	if errors.Is(err, pgx.ErrNoRows) {
		// conflict row already carries this status
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) Get(ctx context.Context, externalPaymentID string) (Notification, error) {
	var n Notification
	err := r.DB.QueryRow(ctx, `
		SELECT external_payment_id, COALESCE(order_id::text, ''), external_status, amount_cents,
		       COALESCE(payment_method, ''), received_at, updated_at
		FROM payment_notifications WHERE external_payment_id=$1`, externalPaymentID).
		Scan(&n.ExternalPaymentID, &n.OrderID, &n.ExternalStatus, &n.AmountCents,
			&n.PaymentMethod, &n.ReceivedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotificationNotFound
	}
	return n, err
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Notification, error) {
	q := `SELECT external_payment_id, COALESCE(order_id::text, ''), external_status, amount_cents,
	             COALESCE(payment_method, ''), received_at, updated_at
	      FROM payment_notifications`
	var (
		conds []string
		args  []any
	)
	if f.OrderID != "" {
		args = append(args, f.OrderID)
		conds = append(conds, `order_id=$1`)
	}
	if f.ExternalStatus != "" {
		args = append(args, f.ExternalStatus)
		if len(args) == 1 {
			conds = append(conds, `external_status=$1`)
		} else {
			conds = append(conds, `external_status=$2`)
		}
	}
	if len(conds) > 0 {
		q += ` WHERE ` + conds[0]
		if len(conds) > 1 {
			q += ` AND ` + conds[1]
		}
	}
	q += ` ORDER BY received_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ExternalPaymentID, &n.OrderID, &n.ExternalStatus, &n.AmountCents,
			&n.PaymentMethod, &n.ReceivedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
