package postgres

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id           text PRIMARY KEY,
    order_number text NOT NULL,
    branch_id    text NOT NULL,
    table_id     text NOT NULL,
    customer_id  text,
    status       text NOT NULL,
    subtotal     numeric(12,2) NOT NULL,
    discount     numeric(12,2) NOT NULL DEFAULT 0,
    tax          numeric(12,2) NOT NULL,
    total        numeric(12,2) NOT NULL,
    created_at   timestamptz NOT NULL,
    updated_at   timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
    id         text PRIMARY KEY,
    order_id   text NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    position   int NOT NULL,
    product_id text NOT NULL,
    name       text NOT NULL DEFAULT '',
    quantity   int NOT NULL CHECK (quantity > 0),
    unit_price numeric(12,2) NOT NULL,
    status     text NOT NULL
);

CREATE TABLE IF NOT EXISTS order_status_history (
    order_id    text NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    seq         int NOT NULL,
    status      text NOT NULL,
    item_id     text,
    item_status text,
    changed_at  timestamptz NOT NULL,
    PRIMARY KEY (order_id, seq)
);

CREATE INDEX IF NOT EXISTS orders_branch_status_idx ON orders (branch_id, status);
`

// EnsureSchema creates the order tables if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
