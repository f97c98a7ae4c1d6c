package wishlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wearagain/thriftmarket/internal/apperr"
	"github.com/wearagain/thriftmarket/internal/catalog"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, w *Wishlist) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO wishlists(id, owner_id, name, is_public)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		w.ID, w.OwnerID, w.Name, w.IsPublic,
	).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("create wishlist: %w", err)
	}
	w.Items = []catalog.Item{}
	return nil
}

// ListForOwner returns the caller's wishlists, newest first, with item
// details resolved.
func (r *Repo) ListForOwner(ctx context.Context, ownerID string) ([]Wishlist, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, owner_id, name, is_public, created_at
		FROM wishlists WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list wishlists: %w", err)
	}
	defer rows.Close()

	out := []Wishlist{}
	for rows.Next() {
		var w Wishlist
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Name, &w.IsPublic, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Get is owner-gated unless the wishlist is public; public lists are
// readable by anyone.
func (r *Repo) Get(ctx context.Context, id, requesterID string) (*Wishlist, error) {
	w, err := r.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.OwnerID != requesterID && !w.IsPublic {
		return nil, fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}
	if err := r.loadItems(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Update changes name and/or visibility. Nil pointers keep stored values.
func (r *Repo) Update(ctx context.Context, id, requesterID string, name *string, isPublic *bool) (*Wishlist, error) {
	w, err := r.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.OwnerID != requesterID {
		return nil, fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}
	if name != nil {
		w.Name = *name
	}
	if isPublic != nil {
		w.IsPublic = *isPublic
	}
	if _, err := r.DB.Exec(ctx, `UPDATE wishlists SET name=$2, is_public=$3 WHERE id=$1`,
		id, w.Name, w.IsPublic); err != nil {
		return nil, fmt.Errorf("update wishlist: %w", err)
	}
	if err := r.loadItems(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Delete removes the wishlist; its entries go with it via FK cascade.
func (r *Repo) Delete(ctx context.Context, id, requesterID string) error {
	w, err := r.fetch(ctx, id)
	if err != nil {
		return err
	}
	if w.OwnerID != requesterID {
		return fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}
	_, err = r.DB.Exec(ctx, `DELETE FROM wishlists WHERE id=$1`, id)
	return err
}

// AddItem rejects duplicates: the (wishlist, item) insert is DO NOTHING
// on conflict and zero rows affected means the pair already exists.
func (r *Repo) AddItem(ctx context.Context, wishlistID, itemID, requesterID string) error {
	w, err := r.fetch(ctx, wishlistID)
	if err != nil {
		return err
	}
	if w.OwnerID != requesterID {
		return fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}

	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE id=$1)`, itemID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: item", apperr.ErrNotFound)
	}

	ct, err := r.DB.Exec(ctx, `
		INSERT INTO wishlist_items(wishlist_id, item_id)
		VALUES ($1,$2)
		ON CONFLICT (wishlist_id, item_id) DO NOTHING`, wishlistID, itemID)
	if err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: item already in wishlist", apperr.ErrConflict)
	}
	return nil
}

func (r *Repo) RemoveItem(ctx context.Context, wishlistID, itemID, requesterID string) error {
	w, err := r.fetch(ctx, wishlistID)
	if err != nil {
		return err
	}
	if w.OwnerID != requesterID {
		return fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}
	ct, err := r.DB.Exec(ctx, `DELETE FROM wishlist_items WHERE wishlist_id=$1 AND item_id=$2`,
		wishlistID, itemID)
	if err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: item not in wishlist", apperr.ErrNotFound)
	}
	return nil
}

func (r *Repo) fetch(ctx context.Context, id string) (*Wishlist, error) {
	var w Wishlist
	err := r.DB.QueryRow(ctx, `
		SELECT id, owner_id, name, is_public, created_at
		FROM wishlists WHERE id=$1`, id,
	).Scan(&w.ID, &w.OwnerID, &w.Name, &w.IsPublic, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: wishlist", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get wishlist: %w", err)
	}
	return &w, nil
}

func (r *Repo) loadItems(ctx context.Context, w *Wishlist) error {
	rows, err := r.DB.Query(ctx, `
		SELECT i.id, i.title, i.description, i.price_cents, i.size, i.condition,
		       i.category, i.photo_url, i.status, i.owner_id, i.created_at, i.updated_at
		FROM wishlist_items wi JOIN items i ON i.id = wi.item_id
		WHERE wi.wishlist_id=$1
		ORDER BY wi.created_at`, w.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	w.Items = []catalog.Item{}
	for rows.Next() {
		var it catalog.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.PriceCents, &it.Size,
			&it.Condition, &it.Category, &it.PhotoURL, &it.Status, &it.OwnerID,
			&it.CreatedAt, &it.UpdatedAt); err != nil {
			return err
		}
		w.Items = append(w.Items, it)
	}
	return rows.Err()
}
