package contracts

import "context"

type AsyncWorker interface {
	// Run starts the consumer loop and blocks until ctx is done.
	Run(ctx context.Context) error
	// ProcessMessage applies one raw command; a nil error means it can be acked.
	ProcessMessage(ctx context.Context, msgID string, rawData []byte) error
}
