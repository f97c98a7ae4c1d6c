package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/wearagain/thriftmarket/internal/apperr"
)

const itemCols = `id, title, description, price_cents, size, condition, category, photo_url, status, owner_id, created_at, updated_at`

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, it *Item) error {
	it.Status = StatusAvailable
	err := r.DB.QueryRow(ctx, `
		INSERT INTO items(id, title, description, price_cents, size, condition, category, photo_url, status, owner_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		it.ID, it.Title, it.Description, it.PriceCents, it.Size, it.Condition,
		it.Category, it.PhotoURL, it.Status, it.OwnerID,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Item, error) {
	return scanItem(r.DB.QueryRow(ctx, `SELECT `+itemCols+` FROM items WHERE id=$1`, id))
}

// List applies the filter and returns one page plus the total count,
// newest first. The page query and the count run concurrently against
// the pool.
func (r *Repo) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Status == "" {
		f.Status = StatusAvailable
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}

	where, args := buildWhere(f)

	var (
		items []Item
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n := len(args)
		q := `SELECT ` + itemCols + ` FROM items ` + where +
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
		pageArgs := append(append([]any{}, args...), f.Limit, (f.Page-1)*f.Limit)
		rows, err := r.DB.Query(gctx, q, pageArgs...)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var it Item
			if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.PriceCents, &it.Size,
				&it.Condition, &it.Category, &it.PhotoURL, &it.Status, &it.OwnerID,
				&it.CreatedAt, &it.UpdatedAt); err != nil {
				return err
			}
			items = append(items, it)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.DB.QueryRow(gctx, `SELECT COUNT(*) FROM items `+where, args...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if items == nil {
		items = []Item{}
	}
	return &Page{
		Items: items,
		Total: total,
		Page:  f.Page,
		Limit: f.Limit,
		Pages: (total + f.Limit - 1) / f.Limit,
	}, nil
}

func buildWhere(f Filter) (string, []any) {
	conds := []string{}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	add(`status = $%d`, f.Status)
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(title ILIKE $%d OR description ILIKE $%d)`, n, n))
	}
	if f.MinPriceCents > 0 {
		add(`price_cents >= $%d`, f.MinPriceCents)
	}
	if f.MaxPriceCents > 0 {
		add(`price_cents <= $%d`, f.MaxPriceCents)
	}
	if f.Size != "" {
		add(`size = $%d`, f.Size)
	}
	if f.Condition != "" {
		add(`condition = $%d`, f.Condition)
	}
	return `WHERE ` + strings.Join(conds, " AND "), args
}

type UpdateFields struct {
	Title       string
	Description string
	PriceCents  int64
	Size        string
	Condition   string
	Category    string
	PhotoURL    string
	Status      string // empty keeps the current status
}

// Update rewrites an item after checking ownership. An unset status
// keeps the stored one.
func (r *Repo) Update(ctx context.Context, id, requesterID string, f UpdateFields) (*Item, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != requesterID {
		return nil, fmt.Errorf("%w: not the item owner", apperr.ErrForbidden)
	}
	if f.Status == "" {
		f.Status = existing.Status
	}
	if !ValidStatus(f.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, f.Status)
	}
	return scanItem(r.DB.QueryRow(ctx, `
		UPDATE items
		SET title=$2, description=$3, price_cents=$4, size=$5, condition=$6,
		    category=$7, photo_url=$8, status=$9, updated_at=now()
		WHERE id=$1
		RETURNING `+itemCols,
		id, f.Title, f.Description, f.PriceCents, f.Size, f.Condition,
		f.Category, f.PhotoURL, f.Status))
}

func (r *Repo) Delete(ctx context.Context, id, requesterID string) error {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != requesterID {
		return fmt.Errorf("%w: not the item owner", apperr.ErrForbidden)
	}
	_, err = r.DB.Exec(ctx, `DELETE FROM items WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (r *Repo) ListForOwner(ctx context.Context, ownerID, status string) ([]Item, error) {
	q := `SELECT ` + itemCols + ` FROM items WHERE owner_id=$1`
	args := []any{ownerID}
	if status != "" {
		q += ` AND status=$2`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list owner items: %w", err)
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.PriceCents, &it.Size,
			&it.Condition, &it.Category, &it.PhotoURL, &it.Status, &it.OwnerID,
			&it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Title, &it.Description, &it.PriceCents, &it.Size,
		&it.Condition, &it.Category, &it.PhotoURL, &it.Status, &it.OwnerID,
		&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: item", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}
