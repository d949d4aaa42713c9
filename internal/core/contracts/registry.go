package contracts

import (
	"context"
)

// Registry is the Subscription Registry: it owns live connections and their
// group memberships. All methods are safe for concurrent use.
type Registry interface {
	// Register makes a connection addressable by Emit.
	Register(c Client)
	// Unregister drops the connection from every group and forgets it.
	Unregister(c Client)
	// Join is idempotent.
	Join(connID, group string)
	// Leave is idempotent; leaving a group never joined is a no-op.
	Leave(connID, group string)
	// DropConnection removes connID from all groups and returns the groups it left.
	DropConnection(connID string) []string
	// MembersOf returns a snapshot; unknown groups yield an empty slice.
	MembersOf(group string) []string
	// GroupsOf returns a snapshot of the groups connID belongs to.
	GroupsOf(connID string) []string
	// Emit hands data to a single connection without waiting for the network write.
	Emit(ctx context.Context, connID string, data []byte) error
}

// Client represents the minimal interface required for the Registry to
// communicate with an individual WebSocket connection.
type Client interface {
	ID() string
	Send(ctx context.Context, data []byte) error
	Close()
}
