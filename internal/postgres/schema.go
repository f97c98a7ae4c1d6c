package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'USER',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS items (
	id          UUID PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	price_cents BIGINT NOT NULL CHECK (price_cents > 0),
	size        TEXT NOT NULL,
	condition   TEXT NOT NULL,
	category    TEXT NOT NULL,
	photo_url   TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'available',
	owner_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS items_owner_idx  ON items(owner_id);
CREATE INDEX IF NOT EXISTS items_status_idx ON items(status);

CREATE TABLE IF NOT EXISTS orders (
	id          UUID PRIMARY KEY,
	buyer_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	status      TEXT NOT NULL DEFAULT 'pending',
	total_cents BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS orders_buyer_idx ON orders(buyer_id);

CREATE TABLE IF NOT EXISTS order_items (
	order_id    UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	item_id     UUID NOT NULL REFERENCES items(id),
	qty         INT NOT NULL CHECK (qty >= 1),
	price_cents BIGINT NOT NULL,
	PRIMARY KEY (order_id, item_id)
);

CREATE TABLE IF NOT EXISTS wishlists (
	id         UUID PRIMARY KEY,
	owner_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	is_public  BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wishlist_items (
	wishlist_id UUID NOT NULL REFERENCES wishlists(id) ON DELETE CASCADE,
	item_id     UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (wishlist_id, item_id)
);

CREATE TABLE IF NOT EXISTS order_events (
	id          BIGSERIAL PRIMARY KEY,
	event_id    UUID NOT NULL UNIQUE,
	order_id    UUID NOT NULL,
	event_type  TEXT NOT NULL,
	payload     JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// InitSchema creates all tables if they do not exist yet. Safe to run on
// every start.
func InitSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
