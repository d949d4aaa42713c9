package services

import (
	"context"
	"errors"
	"log/slog"
	"qrdine/internal/core/contracts"
	"qrdine/internal/core/domain"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("order-events")

type IOrderService interface {
	// CreateOrder prices and stores a new pending order, then tells the branch kitchen.
	CreateOrder(ctx context.Context, p domain.NewOrderParams) (domain.Order, error)
	// TransitionOrder moves the order status and notifies the order's watchers.
	TransitionOrder(ctx context.Context, orderID string, to domain.OrderStatus) (domain.Order, error)
	// TransitionItem moves one item; reaching ready notifies the order's watchers.
	TransitionItem(ctx context.Context, orderID, itemID string, to domain.ItemStatus) (domain.Order, error)
}

type OrderService struct {
	repo      domain.OrderRepository
	txManager contracts.Transactor
	publisher Publisher
	locks     *keyedMutex
	taxRate   decimal.Decimal
	now       func() time.Time
	log       *slog.Logger
}

func NewOrderService(
	log *slog.Logger,
	repo domain.OrderRepository,
	txManager contracts.Transactor,
	publisher Publisher,
	taxRate decimal.Decimal,
) *OrderService {
	return &OrderService{
		log:       log,
		repo:      repo,
		txManager: txManager,
		publisher: publisher,
		locks:     newKeyedMutex(),
		taxRate:   taxRate,
		now:       time.Now,
	}
}

var _ IOrderService = (*OrderService)(nil)

func (s *OrderService) CreateOrder(ctx context.Context, p domain.NewOrderParams) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("branch_id", p.BranchID),
		attribute.String("table_id", p.TableID),
		attribute.Int("items", len(p.Items)),
	))
	defer span.End()
	order, err := domain.NewOrder(p, s.taxRate, s.now())
	if err != nil {
		span.RecordError(err)
		s.log.WarnContext(ctx, "orders - create order - rejected", "branch_id", p.BranchID, "table_id", p.TableID, "err", err)
		return domain.Order{}, err
	}
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.CreateOrder(txCtx, &order)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order failed")
		s.log.ErrorContext(ctx, "orders - create order - persist failed", "order_id", order.ID, "err", err)
		return domain.Order{}, err
	}
	span.SetAttributes(attribute.String("order_id", order.ID))
	s.log.InfoContext(ctx, "orders - create order - success", "order_id", order.ID, "order_number", order.Number, "branch_id", order.BranchID)

	s.publish(ctx, domain.EventKitchenNewOrder, domain.NewOrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		BranchID:    order.BranchID,
		TableID:     order.TableID,
		Status:      order.Status,
		Items:       order.Items,
		Total:       order.Total,
		Timestamp:   order.CreatedAt,
	}, domain.ForKitchen(order.BranchID))
	return order, nil
}

func (s *OrderService) TransitionOrder(ctx context.Context, orderID string, to domain.OrderStatus) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.TransitionOrder", trace.WithAttributes(
		attribute.String("order_id", orderID),
		attribute.String("to", string(to)),
	))
	defer span.End()

	// Holding the lock through publish keeps status_update events in transition order.
	unlock := s.locks.Lock(orderID)
	defer unlock()

	var prev domain.OrderStatus
	var next domain.Order
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.repo.GetOrderByID(txCtx, orderID)
		if err != nil {
			return err
		}
		prev = cur.Status
		if next, err = cur.Transition(to, s.now()); err != nil {
			return err
		}
		return s.repo.UpdateStatus(txCtx, &next)
	}); err != nil {
		s.fail(ctx, span, "orders - transition order", orderID, err)
		return domain.Order{}, err
	}
	s.log.InfoContext(ctx, "orders - transition order - success", "order_id", orderID, "from", prev, "to", to)

	s.publish(ctx, domain.EventOrderStatusUpdate, domain.StatusUpdateEvent{
		OrderID:        next.ID,
		OrderNumber:    next.Number,
		Status:         next.Status,
		PreviousStatus: prev,
		Timestamp:      next.UpdatedAt,
	}, domain.ForOrder(next.ID))
	return next, nil
}

func (s *OrderService) TransitionItem(ctx context.Context, orderID, itemID string, to domain.ItemStatus) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.TransitionItem", trace.WithAttributes(
		attribute.String("order_id", orderID),
		attribute.String("item_id", itemID),
		attribute.String("to", string(to)),
	))
	defer span.End()

	unlock := s.locks.Lock(orderID)
	defer unlock()

	var next domain.Order
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.repo.GetOrderByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if next, err = cur.TransitionItem(itemID, to, s.now()); err != nil {
			return err
		}
		return s.repo.UpdateStatus(txCtx, &next)
	}); err != nil {
		s.fail(ctx, span, "orders - transition item", orderID, err)
		return domain.Order{}, err
	}
	s.log.InfoContext(ctx, "orders - transition item - success", "order_id", orderID, "item_id", itemID, "to", to)

	if to == domain.ItemReady {
		item, _ := next.Item(itemID)
		s.publish(ctx, domain.EventOrderItemReady, domain.ItemReadyEvent{
			OrderID:     next.ID,
			OrderNumber: next.Number,
			ItemID:      item.ID,
			ProductID:   item.ProductID,
			Name:        item.Name,
			AllReady:    next.ItemsSettled(),
			Timestamp:   next.UpdatedAt,
		}, domain.ForOrder(next.ID))
	}
	return next, nil
}

// publish never fails the caller: the state change is already committed.
func (s *OrderService) publish(ctx context.Context, kind domain.EventKind, payload any, audiences ...domain.Audience) {
	if _, err := s.publisher.Publish(ctx, kind, payload, audiences...); err != nil {
		s.log.ErrorContext(ctx, "orders - publish - failed", "event", kind, "err", err)
	}
}

func (s *OrderService) fail(ctx context.Context, span trace.Span, op, orderID string, err error) {
	span.RecordError(err)
	if isRejection(err) {
		s.log.WarnContext(ctx, op+" - rejected", "order_id", orderID, "err", err)
		return
	}
	span.SetStatus(codes.Error, "transition failed")
	s.log.ErrorContext(ctx, op+" - failed", "order_id", orderID, "err", err)
}

// isRejection reports caller mistakes, as opposed to infrastructure failures.
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrItemsNotReady) ||
		errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrItemNotFound) ||
		errors.Is(err, domain.ErrInvalidOrder)
}
