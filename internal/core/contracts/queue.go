package contracts

import (
	"context"
)

// CommandQueue carries order commands from the order-processing layer, which is
// the producer, to the command worker.
type CommandQueue interface {
	// Publish appends a raw command to the stream. This service only consumes;
	// Publish is the producer-side entry point for the order-processing layer.
	Publish(ctx context.Context, stream string, payload []byte) error
	// Subscribe reads the stream through a consumer group until ctx is done.
	Subscribe(ctx context.Context, stream, group string, handler func(ctx context.Context, messageID string, data []byte) error) error
	// Acknowledge removes the message from the group's pending list.
	Acknowledge(ctx context.Context, stream, group, messageID string) error
	// Delete removes the message from the stream.
	Delete(ctx context.Context, stream, messageID string) error
}
