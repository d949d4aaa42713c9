package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is a single line of an order with its own kitchen lifecycle.
type OrderItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Status    ItemStatus      `json:"status"`
}

// StatusChange is one entry of the order timeline.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	ItemID    string      `json:"itemId,omitempty"`
	ItemState ItemStatus  `json:"itemStatus,omitempty"`
	At        time.Time   `json:"at"`
}

// Order is owned by the order-processing layer; the core only moves statuses.
type Order struct {
	ID         string          `json:"id"`
	Number     string          `json:"orderNumber"`
	BranchID   string          `json:"branchId"`
	TableID    string          `json:"tableId"`
	CustomerID string          `json:"customerId,omitempty"`
	Items      []OrderItem     `json:"items"`
	Status     OrderStatus     `json:"status"`
	History    []StatusChange  `json:"history"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// NewItem is a line requested by a customer.
type NewItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// NewOrderParams carries everything needed to place an order.
type NewOrderParams struct {
	BranchID   string          `json:"branchId"`
	TableID    string          `json:"tableId"`
	CustomerID string          `json:"customerId,omitempty"`
	Items      []NewItem       `json:"items"`
	Discount   decimal.Decimal `json:"discount"`
}

// NewOrder validates params, prices the order and places it in pending.
func NewOrder(p NewOrderParams, taxRate decimal.Decimal, now time.Time) (Order, error) {
	p.BranchID = strings.TrimSpace(p.BranchID)
	p.TableID = strings.TrimSpace(p.TableID)
	p.CustomerID = strings.TrimSpace(p.CustomerID)
	if p.BranchID == "" {
		return Order{}, fmt.Errorf("%w: branch id is required", ErrInvalidOrder)
	}
	if IsPlaceholderTableID(p.TableID) {
		return Order{}, fmt.Errorf("%w: table id %q is not a real table", ErrInvalidOrder, p.TableID)
	}
	if len(p.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}
	if p.Discount.IsNegative() {
		return Order{}, fmt.Errorf("%w: negative discount", ErrInvalidOrder)
	}

	items := make([]OrderItem, 0, len(p.Items))
	subtotal := decimal.Zero
	for i, in := range p.Items {
		if in.ProductID == "" {
			return Order{}, fmt.Errorf("%w: item %d has no product id", ErrInvalidOrder, i)
		}
		if in.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidOrder, i)
		}
		if in.UnitPrice.IsNegative() {
			return Order{}, fmt.Errorf("%w: item %d has a negative price", ErrInvalidOrder, i)
		}
		subtotal = subtotal.Add(in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))))
		items = append(items, OrderItem{
			ID:        uuid.NewString(),
			ProductID: in.ProductID,
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			Status:    ItemPending,
		})
	}
	if p.Discount.GreaterThan(subtotal) {
		return Order{}, fmt.Errorf("%w: discount exceeds subtotal", ErrInvalidOrder)
	}
	tax := subtotal.Sub(p.Discount).Mul(taxRate).Round(2)

	now = now.UTC()
	id := uuid.New()
	return Order{
		ID:         id.String(),
		Number:     orderNumber(id, now),
		BranchID:   p.BranchID,
		TableID:    p.TableID,
		CustomerID: p.CustomerID,
		Items:      items,
		Status:     StatusPending,
		History:    []StatusChange{{Status: StatusPending, At: now}},
		Subtotal:   subtotal,
		Discount:   p.Discount,
		Tax:        tax,
		Total:      subtotal.Sub(p.Discount).Add(tax),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// orderNumber follows ORD-YYYYMMDD-XXXXXX; display only, never used as identity.
func orderNumber(id uuid.UUID, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
	return "ORD-" + at.Format("20060102") + "-" + suffix
}

// Item returns the item with the given id.
func (o Order) Item(itemID string) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return OrderItem{}, false
}

// StatusAt reports when the order last entered status s.
func (o Order) StatusAt(s OrderStatus) (time.Time, bool) {
	for i := len(o.History) - 1; i >= 0; i-- {
		h := o.History[i]
		if h.ItemID == "" && h.Status == s {
			return h.At, true
		}
	}
	return time.Time{}, false
}

func (o Order) clone() Order {
	c := o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.History = append([]StatusChange(nil), o.History...)
	return c
}

var placeholderTableIDs = map[string]struct{}{
	"":            {},
	"null":        {},
	"undefined":   {},
	"0":           {},
	":tableId":    {},
	"{tableId}":   {},
	"[tableId]":   {},
	"table_id":    {},
	"placeholder": {},
}

// IsPlaceholderTableID reports ids left behind by stale client state or unfilled QR templates.
func IsPlaceholderTableID(id string) bool {
	_, ok := placeholderTableIDs[strings.TrimSpace(id)]
	return ok
}
