package services

import (
	"context"
	"log/slog"
	"qrdine/internal/core/domain"
	"time"
)

type INotificationService interface {
	Notify(ctx context.Context, n domain.Notice) (PublishResult, error)
}

type NotificationService struct {
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

func NewNotificationService(log *slog.Logger, publisher Publisher) *NotificationService {
	return &NotificationService{log: log, publisher: publisher, now: time.Now}
}

var _ INotificationService = (*NotificationService)(nil)

// Notify sends notification:new to the branch admins or to one customer.
func (s *NotificationService) Notify(ctx context.Context, n domain.Notice) (PublishResult, error) {
	aud, err := n.Audience()
	if err != nil {
		s.log.WarnContext(ctx, "notifications - notify - invalid target", "target", n.Target, "err", err)
		return PublishResult{}, err
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now().UTC()
	}
	res, err := s.publisher.Publish(ctx, domain.EventNotificationNew, n, aud)
	if err != nil {
		return PublishResult{}, err
	}
	s.log.InfoContext(ctx, "notifications - notify - published", "target", n.Target, "recipients", res.Recipients)
	return res, nil
}
