package domain

import "time"

// OrderStatus is the aggregate lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// ItemStatus is the kitchen lifecycle of a single dish.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemCancelled ItemStatus = "cancelled"
)

var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusPreparing: true, StatusCancelled: true},
	StatusPreparing: {StatusReady: true, StatusCancelled: true},
	StatusReady:     {StatusCompleted: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

var itemTransitions = map[ItemStatus]map[ItemStatus]bool{
	ItemPending:   {ItemPreparing: true, ItemCancelled: true},
	ItemPreparing: {ItemReady: true, ItemCancelled: true},
	ItemReady:     {},
	ItemCancelled: {},
}

// CanTransition checks if from->to is allowed for an order.
func CanTransition(from, to OrderStatus) bool {
	return orderTransitions[from][to]
}

// CanTransitionItem checks if from->to is allowed for an item.
func CanTransitionItem(from, to ItemStatus) bool {
	return itemTransitions[from][to]
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	_, ok := itemTransitions[s]
	return ok
}

// Transition returns a copy of o moved to status to. The receiver is never modified;
// callers persist the returned value.
func (o Order) Transition(to OrderStatus, at time.Time) (Order, error) {
	if !CanTransition(o.Status, to) {
		return o, &TransitionError{Entity: "order", ID: o.ID, From: string(o.Status), To: string(to)}
	}
	if to == StatusCompleted {
		if pending := o.unfinishedItems(); len(pending) > 0 {
			return o, &ItemsNotReadyError{OrderID: o.ID, ItemIDs: pending}
		}
	}
	at = at.UTC()
	next := o.clone()
	next.Status = to
	next.UpdatedAt = at
	next.History = append(next.History, StatusChange{Status: to, At: at})
	return next, nil
}

// IsTerminal reports whether no further order transitions exist from s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TransitionItem returns a copy of o with one item moved to status to.
// The order-level status is left alone. Items of a completed or cancelled
// order are frozen.
func (o Order) TransitionItem(itemID string, to ItemStatus, at time.Time) (Order, error) {
	if o.Status.IsTerminal() {
		return o, &OrderClosedError{OrderID: o.ID, Status: o.Status}
	}
	idx := -1
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return o, &ItemNotFoundError{OrderID: o.ID, ItemID: itemID}
	}
	from := o.Items[idx].Status
	if !CanTransitionItem(from, to) {
		return o, &TransitionError{Entity: "item", ID: itemID, From: string(from), To: string(to)}
	}
	at = at.UTC()
	next := o.clone()
	next.Items[idx].Status = to
	next.UpdatedAt = at
	next.History = append(next.History, StatusChange{Status: o.Status, ItemID: itemID, ItemState: to, At: at})
	return next, nil
}

// ItemsSettled reports whether every item is ready or cancelled.
func (o Order) ItemsSettled() bool {
	return len(o.unfinishedItems()) == 0
}

func (o Order) unfinishedItems() []string {
	var ids []string
	for _, it := range o.Items {
		if it.Status != ItemReady && it.Status != ItemCancelled {
			ids = append(ids, it.ID)
		}
	}
	return ids
}
