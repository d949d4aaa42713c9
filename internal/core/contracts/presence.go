package contracts

import (
	"context"
	"time"
)

// PresenceStore mirrors group membership into a shared store, one ZSET per group.
type PresenceStore interface {
	// Touch marks connID as online in group until ttl passes without another touch.
	Touch(ctx context.Context, group, connID string, ttl time.Duration) error
	// Remove drops connID from group immediately.
	Remove(ctx context.Context, group, connID string) error
	// Online returns connections seen in group within the last ttl.
	Online(ctx context.Context, group string, ttl time.Duration) ([]string, error)
}
