package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"qrdine/internal/core/domain"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

var _ domain.OrderRepository = (*OrderRepo)(nil)

func (r *OrderRepo) CreateOrder(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		return domain.ErrInvalidOrder
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, branch_id, table_id, customer_id, status,
			subtotal, discount, tax, total, created_at, updated_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12)
	`,
		o.ID, o.Number, o.BranchID, o.TableID, o.CustomerID, o.Status,
		o.Subtotal, o.Discount, o.Tax, o.Total, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i, it := range o.Items {
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, name, quantity, unit_price, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, it.ID, o.ID, i, it.ProductID, it.Name, it.Quantity, it.UnitPrice, it.Status); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return r.appendHistory(ctx, exec, o)
}

// GetOrderByID locks the order row when called inside a transaction.
func (r *OrderRepo) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	exec := GetExecutor(ctx, r.db)
	var o domain.Order
	err := exec.QueryRowContext(ctx, `
		SELECT id, order_number, branch_id, table_id, COALESCE(customer_id, ''), status,
		       subtotal, discount, tax, total, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&o.ID, &o.Number, &o.BranchID, &o.TableID, &o.CustomerID, &o.Status,
		&o.Subtotal, &o.Discount, &o.Tax, &o.Total, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		return nil, err
	}
	if o.Items, err = r.items(ctx, exec, id); err != nil {
		return nil, err
	}
	if o.History, err = r.history(ctx, exec, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, o *domain.Order) error {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, o.ID, o.Status, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, o.ID)
	}
	for _, it := range o.Items {
		if _, err := exec.ExecContext(ctx, `
			UPDATE order_items SET status = $3 WHERE id = $1 AND order_id = $2
		`, it.ID, o.ID, it.Status); err != nil {
			return fmt.Errorf("update item status: %w", err)
		}
	}
	return r.appendHistory(ctx, exec, o)
}

// appendHistory is idempotent: rows are keyed by their position in the timeline.
func (r *OrderRepo) appendHistory(ctx context.Context, exec execer, o *domain.Order) error {
	for seq, h := range o.History {
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO order_status_history (order_id, seq, status, item_id, item_status, changed_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
			ON CONFLICT (order_id, seq) DO NOTHING
		`, o.ID, seq, h.Status, h.ItemID, h.ItemState, h.At); err != nil {
			return fmt.Errorf("insert status history: %w", err)
		}
	}
	return nil
}

func (r *OrderRepo) items(ctx context.Context, exec execer, orderID string) ([]domain.OrderItem, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, product_id, name, quantity, unit_price, status
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice, &it.Status); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderRepo) history(ctx context.Context, exec execer, orderID string) ([]domain.StatusChange, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT status, COALESCE(item_id, ''), COALESCE(item_status, ''), changed_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY seq ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hist []domain.StatusChange
	for rows.Next() {
		var h domain.StatusChange
		if err := rows.Scan(&h.Status, &h.ItemID, &h.ItemState, &h.At); err != nil {
			return nil, err
		}
		hist = append(hist, h)
	}
	return hist, rows.Err()
}
