package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wearagain/thriftmarket/internal/apperr"
	"github.com/wearagain/thriftmarket/internal/catalog"
	"github.com/wearagain/thriftmarket/internal/users"
)

type Repo struct{ DB *pgxpool.Pool }

// Create places an order in a single transaction. Every line's item row
// is locked FOR UPDATE before its status is re-read, so two placements
// racing on the same item serialize at the row lock and the loser sees
// "reserved". Any line failure rolls back the whole order: no partial
// reservation is ever observable.
func (r *Repo) Create(ctx context.Context, buyerID string, lines []LineInput) (*Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", apperr.ErrValidation)
	}
	seen := map[string]bool{}
	for _, l := range lines {
		if l.Qty < 1 {
			return nil, fmt.Errorf("%w: qty must be >= 1 for item %s", apperr.ErrValidation, l.ItemID)
		}
		if seen[l.ItemID] {
			return nil, fmt.Errorf("%w: item %s listed twice", apperr.ErrValidation, l.ItemID)
		}
		seen[l.ItemID] = true
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o := &Order{
		ID:      uuid.NewString(),
		BuyerID: buyerID,
		Status:  StatusPending,
	}

	for _, l := range lines {
		var (
			title      string
			priceCents int64
			status     string
			ownerID    string
		)
		err := tx.QueryRow(ctx, `
			SELECT title, price_cents, status, owner_id
			FROM items WHERE id=$1 FOR UPDATE`, l.ItemID,
		).Scan(&title, &priceCents, &status, &ownerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: item %s", apperr.ErrNotFound, l.ItemID)
			}
			return nil, err
		}
		if status != catalog.StatusAvailable {
			return nil, fmt.Errorf("%w: item %q is not available", apperr.ErrConflict, title)
		}
		if ownerID == buyerID {
			return nil, fmt.Errorf("%w: cannot order your own item", apperr.ErrForbidden)
		}

		if _, err := tx.Exec(ctx, `UPDATE items SET status=$2, updated_at=now() WHERE id=$1`,
			l.ItemID, catalog.StatusReserved); err != nil {
			return nil, err
		}

		o.TotalCents += priceCents * int64(l.Qty)
		o.Items = append(o.Items, Line{ItemID: l.ItemID, Title: title, Qty: l.Qty, PriceCents: priceCents})
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO orders(id, buyer_id, status, total_cents)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at`,
		o.ID, o.BuyerID, o.Status, o.TotalCents,
	).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	for _, l := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, item_id, qty, price_cents)
			VALUES ($1,$2,$3,$4)`,
			o.ID, l.ItemID, l.Qty, l.PriceCents); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus applies one state-machine transition. Completing an order
// marks every line item sold; cancelling releases them back to available.
// The order update and all item updates commit as one unit.
func (r *Repo) UpdateStatus(ctx context.Context, orderID, requesterID, requesterRole string, next Status) (*Order, error) {
	if !ValidStatus(next) {
		return nil, fmt.Errorf("%w: invalid order status %q", apperr.ErrValidation, next)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		buyerID string
		current Status
	)
	err = tx.QueryRow(ctx, `SELECT buyer_id, status FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&buyerID, &current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order", apperr.ErrNotFound)
		}
		return nil, err
	}
	if buyerID != requesterID && requesterRole != users.RoleAdmin {
		return nil, fmt.Errorf("%w: not the order buyer", apperr.ErrForbidden)
	}
	if !CanTransition(current, next) {
		return nil, fmt.Errorf("%w: cannot change order from %s to %s", apperr.ErrConflict, current, next)
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, next); err != nil {
		return nil, err
	}

	// Only the terminal transitions touch item status.
	var itemStatus string
	switch next {
	case StatusCompleted:
		itemStatus = catalog.StatusSold
	case StatusCancelled:
		itemStatus = catalog.StatusAvailable
	}
	if itemStatus != "" {
		if _, err := tx.Exec(ctx, `
			UPDATE items SET status=$2, updated_at=now()
			WHERE id IN (SELECT item_id FROM order_items WHERE order_id=$1)`,
			orderID, itemStatus); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.Get(ctx, orderID, requesterID, requesterRole)
}

// Get loads an order with its lines. Visible to the buyer and to admins.
func (r *Repo) Get(ctx context.Context, orderID, requesterID, requesterRole string) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, buyer_id, status, total_cents, created_at, updated_at
		FROM orders WHERE id=$1`, orderID,
	).Scan(&o.ID, &o.BuyerID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order", apperr.ErrNotFound)
		}
		return nil, err
	}
	if o.BuyerID != requesterID && requesterRole != users.RoleAdmin {
		return nil, fmt.Errorf("%w: not the order buyer", apperr.ErrForbidden)
	}
	if err := r.loadLines(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) loadLines(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.item_id, i.title, oi.qty, oi.price_cents
		FROM order_items oi JOIN items i ON i.id = oi.item_id
		WHERE oi.order_id=$1`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ItemID, &l.Title, &l.Qty, &l.PriceCents); err != nil {
			return err
		}
		o.Items = append(o.Items, l)
	}
	return rows.Err()
}

func (r *Repo) ListForBuyer(ctx context.Context, buyerID string, status Status) ([]Order, error) {
	q := `SELECT id, buyer_id, status, total_cents, created_at, updated_at
	      FROM orders WHERE buyer_id=$1`
	args := []any{buyerID}
	if status != "" {
		q += ` AND status=$2`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`
	return r.queryOrders(ctx, q, args...)
}

// ListAll is the admin-wide listing.
func (r *Repo) ListAll(ctx context.Context, status Status, page, limit int) ([]Order, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	where := ``
	args := []any{}
	if status != "" {
		where = ` WHERE status=$1`
		args = append(args, status)
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	q := `SELECT id, buyer_id, status, total_cents, created_at, updated_at FROM orders` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, (page-1)*limit)
	out, err := r.queryOrders(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) queryOrders(ctx context.Context, q string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.BuyerID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadLines(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
