package domain

import "strings"

// AudienceKind names who an event is for.
type AudienceKind string

const (
	AudienceKitchen  AudienceKind = "kitchen"
	AudienceOrder    AudienceKind = "order"
	AudienceTable    AudienceKind = "table"
	AudienceCustomer AudienceKind = "customer"
	AudienceAdmin    AudienceKind = "admin"
)

// Audience is a logical recipient set; it is resolved to exactly one group name.
type Audience struct {
	Kind AudienceKind
	ID   string
}

func ForKitchen(branchID string) Audience    { return Audience{Kind: AudienceKitchen, ID: branchID} }
func ForOrder(orderID string) Audience       { return Audience{Kind: AudienceOrder, ID: orderID} }
func ForTable(tableID string) Audience       { return Audience{Kind: AudienceTable, ID: tableID} }
func ForCustomer(customerID string) Audience { return Audience{Kind: AudienceCustomer, ID: customerID} }
func ForAdmin(branchID string) Audience      { return Audience{Kind: AudienceAdmin, ID: branchID} }

// Group name prefixes. Deployed clients hardcode these, including the
// hyphen after "kitchen"; do not normalize.
var groupPrefixes = map[AudienceKind]string{
	AudienceKitchen:  "kitchen-",
	AudienceOrder:    "order:",
	AudienceTable:    "table:",
	AudienceCustomer: "customer:",
	AudienceAdmin:    "admin:",
}

// ParseAudienceKind maps a wire type to a kind.
func ParseAudienceKind(s string) (AudienceKind, bool) {
	k := AudienceKind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := groupPrefixes[k]
	return k, ok
}

// Resolve maps an audience to its group name. Surrounding whitespace in the id
// is ignored and a blank id is rejected.
func Resolve(a Audience) (string, error) {
	prefix, ok := groupPrefixes[a.Kind]
	if !ok {
		return "", &AudienceError{Type: string(a.Kind), ID: a.ID, Reason: "unknown type"}
	}
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return "", &AudienceError{Type: string(a.Kind), ID: a.ID, Reason: "empty id"}
	}
	return prefix + id, nil
}

// Group is Resolve as a method.
func (a Audience) Group() (string, error) { return Resolve(a) }

// AudienceOf maps a group name back to its audience.
func AudienceOf(group string) (Audience, bool) {
	for kind, prefix := range groupPrefixes {
		if id, ok := strings.CutPrefix(group, prefix); ok && id != "" {
			return Audience{Kind: kind, ID: id}, true
		}
	}
	return Audience{}, false
}

// NewAudience builds an audience from a wire {type, id} pair.
func NewAudience(typ, id string) (Audience, error) {
	kind, ok := ParseAudienceKind(typ)
	if !ok {
		return Audience{}, &AudienceError{Type: typ, ID: id, Reason: "unknown type"}
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Audience{}, &AudienceError{Type: typ, ID: id, Reason: "empty id"}
	}
	return Audience{Kind: kind, ID: id}, nil
}

// ParseLegacyRoom accepts "{type}_{id}" with exactly one underscore.
func ParseLegacyRoom(room string) (Audience, error) {
	if strings.Count(room, "_") != 1 {
		return Audience{}, &AudienceError{ID: room, Reason: "legacy room must be {type}_{id}"}
	}
	typ, id, _ := strings.Cut(room, "_")
	return NewAudience(typ, id)
}
