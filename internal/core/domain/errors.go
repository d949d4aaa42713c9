package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrItemsNotReady      = errors.New("order items not ready")
	ErrInvalidAudience    = errors.New("invalid audience")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrOrderNotFound      = errors.New("order not found")
	ErrItemNotFound       = errors.New("order item not found")
	ErrClientClosed       = errors.New("client closed")
	ErrClientBackpressure = errors.New("client send buffer full")
)

// TransitionError is returned when a status change is not in the adjacency table.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %q to %q", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ItemsNotReadyError lists the items blocking completion.
type ItemsNotReadyError struct {
	OrderID string
	ItemIDs []string
}

func (e *ItemsNotReadyError) Error() string {
	return fmt.Sprintf("order %s: items not ready: %s", e.OrderID, strings.Join(e.ItemIDs, ", "))
}

func (e *ItemsNotReadyError) Is(target error) bool { return target == ErrItemsNotReady }

// ItemNotFoundError is returned for item transitions on an unknown item id.
type ItemNotFoundError struct {
	OrderID string
	ItemID  string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("order %s: item %s not found", e.OrderID, e.ItemID)
}

func (e *ItemNotFoundError) Is(target error) bool { return target == ErrItemNotFound }

// OrderClosedError is returned for item changes on a completed or cancelled order.
type OrderClosedError struct {
	OrderID string
	Status  OrderStatus
}

func (e *OrderClosedError) Error() string {
	return fmt.Sprintf("order %s is %s: items can no longer change", e.OrderID, e.Status)
}

func (e *OrderClosedError) Is(target error) bool { return target == ErrInvalidTransition }

// AudienceError describes a malformed or unrecognized room request.
type AudienceError struct {
	Type   string
	ID     string
	Reason string
}

func (e *AudienceError) Error() string {
	return fmt.Sprintf("invalid audience {type:%q id:%q}: %s", e.Type, e.ID, e.Reason)
}

func (e *AudienceError) Is(target error) bool { return target == ErrInvalidAudience }
