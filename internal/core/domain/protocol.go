package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind is the name an event is emitted under.
type EventKind string

const (
	EventKitchenNewOrder   EventKind = "kitchen:new_order"
	EventOrderStatusUpdate EventKind = "order:status_update"
	EventOrderItemReady    EventKind = "order:item_ready"
	EventNotificationNew   EventKind = "notification:new"

	// Direct replies to a single connection.
	EventJoined  EventKind = "joined"
	EventError   EventKind = "error"
	EventSession EventKind = "session"
)

// Inbound message names.
const (
	MessageJoin  = "join"
	MessageLeave = "leave"
)

// Envelope is the serialized form of every outbound event. EmittedAt is shared by
// all recipients of one publish.
type Envelope struct {
	Event     EventKind `json:"event"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emittedAt"`
}

// ClientMessage is an inbound frame: {"event": "join", "data": ...}.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomRequest is the {type, id} body of join/leave. It also decodes the legacy
// "{type}_{id}" string form.
type RoomRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (r *RoomRequest) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var room string
		if err := json.Unmarshal(b, &room); err != nil {
			return err
		}
		a, err := ParseLegacyRoom(room)
		if err != nil {
			return err
		}
		r.Type, r.ID = string(a.Kind), a.ID
		return nil
	}
	var raw struct {
		Type string          `json:"type"`
		ID   json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Type = raw.Type
	r.ID = RawID(raw.ID)
	return nil
}

// RawID accepts both "42" and 42.
func RawID(b json.RawMessage) string {
	if len(b) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		return n.String()
	}
	return ""
}

// Audience validates the request.
func (r RoomRequest) Audience() (Audience, error) {
	return NewAudience(r.Type, r.ID)
}

// JoinAck answers a successful join.
type JoinAck struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

// SessionInfo is sent once on connect.
type SessionInfo struct {
	ConnectionID string   `json:"connectionId"`
	Rooms        []string `json:"rooms"`
}

// ErrorMessage is WS-safe error
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewOrderEvent is sent to the kitchen of the branch that received the order.
type NewOrderEvent struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	BranchID    string          `json:"branchId"`
	TableID     string          `json:"tableId"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Timestamp   time.Time       `json:"timestamp"`
}

// StatusUpdateEvent reports an order-level transition.
type StatusUpdateEvent struct {
	OrderID        string      `json:"orderId"`
	OrderNumber    string      `json:"orderNumber"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previousStatus"`
	Timestamp      time.Time   `json:"timestamp"`
}

// ItemReadyEvent reports a dish marked ready.
type ItemReadyEvent struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	ItemID      string    `json:"itemId"`
	ProductID   string    `json:"productId"`
	Name        string    `json:"name,omitempty"`
	AllReady    bool      `json:"allReady"`
	Timestamp   time.Time `json:"timestamp"`
}

// NoticeTarget selects who receives a notification.
type NoticeTarget string

const (
	NoticeToAdmin    NoticeTarget = "admin"
	NoticeToCustomer NoticeTarget = "customer"
)

// Notice is an admin or customer notification.
type Notice struct {
	Target     NoticeTarget   `json:"target"`
	BranchID   string         `json:"branchId,omitempty"`
	CustomerID string         `json:"customerId,omitempty"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	OrderID    string         `json:"orderId,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Audience resolves the recipient of n.
func (n Notice) Audience() (Audience, error) {
	switch n.Target {
	case NoticeToAdmin:
		return NewAudience(string(AudienceAdmin), n.BranchID)
	case NoticeToCustomer:
		return NewAudience(string(AudienceCustomer), n.CustomerID)
	default:
		return Audience{}, &AudienceError{Type: string(n.Target), Reason: "unknown notice target"}
	}
}
