package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"qrdine/internal/core/contracts"
	"qrdine/internal/core/domain"
	"qrdine/internal/core/services"
)

// OrderCommand is one status change requested by the order-processing layer
// through the command stream. ItemID selects an item transition.
type OrderCommand struct {
	OrderID string `json:"orderId"`
	ItemID  string `json:"itemId,omitempty"`
	Status  string `json:"status"`
}

type OrderCommandWorker struct {
	log      *slog.Logger
	queue    contracts.CommandQueue
	orders   services.IOrderService
	stream   string
	conGroup string
}

func NewOrderCommandWorker(
	log *slog.Logger,
	queue contracts.CommandQueue,
	orders services.IOrderService,
	stream string,
	conGroup string,
) *OrderCommandWorker {
	return &OrderCommandWorker{
		log:      log,
		queue:    queue,
		orders:   orders,
		stream:   stream,
		conGroup: conGroup,
	}
}

var _ contracts.AsyncWorker = (*OrderCommandWorker)(nil)

func (w *OrderCommandWorker) Run(ctx context.Context) error {
	w.log.InfoContext(ctx, "worker - run - subscribing", "stream", w.stream, "group", w.conGroup)
	return w.queue.Subscribe(ctx, w.stream, w.conGroup, w.ProcessMessage)
}

// ProcessMessage applies a command. Malformed commands and rejected transitions
// are acked and dropped; anything else stays pending for redelivery.
func (w *OrderCommandWorker) ProcessMessage(
	ctx context.Context,
	messageID string,
	raw []byte,
) error {
	err := w.apply(ctx, raw)
	switch {
	case err == nil:
		w.log.InfoContext(ctx, "worker - process message - applied", "message_id", messageID)
	case isPermanent(err):
		w.log.WarnContext(ctx, "worker - process message - dropped", "message_id", messageID, "err", err)
	default:
		w.log.ErrorContext(ctx, "worker - process message - apply failed", "message_id", messageID, "err", err)
		return err
	}
	if err := w.queue.Acknowledge(ctx, w.stream, w.conGroup, messageID); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - acknowledge failed", "message_id", messageID, "err", err)
		return err
	}
	// the command is already acked; a failed delete only costs stream memory
	if err := w.queue.Delete(ctx, w.stream, messageID); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - delete failed", "message_id", messageID, "err", err)
	}
	return nil
}

func (w *OrderCommandWorker) apply(ctx context.Context, raw []byte) error {
	var cmd OrderCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if cmd.OrderID == "" || cmd.Status == "" {
		return fmt.Errorf("%w: orderId and status are required", errMalformed)
	}
	if cmd.ItemID != "" {
		_, err := w.orders.TransitionItem(ctx, cmd.OrderID, cmd.ItemID, domain.ItemStatus(cmd.Status))
		return err
	}
	_, err := w.orders.TransitionOrder(ctx, cmd.OrderID, domain.OrderStatus(cmd.Status))
	return err
}

var errMalformed = errors.New("malformed command")

func isPermanent(err error) bool {
	return errors.Is(err, errMalformed) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrItemsNotReady) ||
		errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrItemNotFound)
}
