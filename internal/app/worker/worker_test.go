package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"qrdine/internal/core/domain"
	redisPlugin "qrdine/internal/plugins/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Publish(ctx context.Context, stream string, payload []byte) error {
	return m.Called(ctx, stream, payload).Error(0)
}

func (m *mockQueue) Subscribe(ctx context.Context, stream, group string, handler func(ctx context.Context, messageID string, data []byte) error) error {
	return m.Called(ctx, stream, group, handler).Error(0)
}

func (m *mockQueue) Acknowledge(ctx context.Context, stream, group, messageID string) error {
	return m.Called(ctx, stream, group, messageID).Error(0)
}

func (m *mockQueue) Delete(ctx context.Context, stream, messageID string) error {
	return m.Called(ctx, stream, messageID).Error(0)
}

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) CreateOrder(ctx context.Context, p domain.NewOrderParams) (domain.Order, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *mockOrders) TransitionOrder(ctx context.Context, orderID string, to domain.OrderStatus) (domain.Order, error) {
	args := m.Called(ctx, orderID, to)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *mockOrders) TransitionItem(ctx context.Context, orderID, itemID string, to domain.ItemStatus) (domain.Order, error) {
	args := m.Called(ctx, orderID, itemID, to)
	return args.Get(0).(domain.Order), args.Error(1)
}

func TestOrderCommandWorker_ProcessMessage(t *testing.T) {
	testCases := map[string]struct {
		raw           string
		setupOrders   func(m *mockOrders)
		expectAck     bool
		expectedError bool
	}{
		"should apply an order transition and ack": {
			raw: `{"orderId":"o1","status":"confirmed"}`,
			setupOrders: func(m *mockOrders) {
				m.On("TransitionOrder", mock.Anything, "o1", domain.StatusConfirmed).Return(domain.Order{}, nil)
			},
			expectAck: true,
		},
		"should apply an item transition and ack": {
			raw: `{"orderId":"o1","itemId":"i1","status":"ready"}`,
			setupOrders: func(m *mockOrders) {
				m.On("TransitionItem", mock.Anything, "o1", "i1", domain.ItemReady).Return(domain.Order{}, nil)
			},
			expectAck: true,
		},
		"should drop malformed json": {
			raw:       `{"orderId":`,
			expectAck: true,
		},
		"should drop a command without status": {
			raw:       `{"orderId":"o1"}`,
			expectAck: true,
		},
		"should drop a rejected transition": {
			raw: `{"orderId":"o1","status":"pending"}`,
			setupOrders: func(m *mockOrders) {
				m.On("TransitionOrder", mock.Anything, "o1", domain.StatusPending).
					Return(domain.Order{}, &domain.TransitionError{Entity: "order", ID: "o1", From: "ready", To: "pending"})
			},
			expectAck: true,
		},
		"should drop an item change on a closed order": {
			raw: `{"orderId":"o1","itemId":"i1","status":"ready"}`,
			setupOrders: func(m *mockOrders) {
				m.On("TransitionItem", mock.Anything, "o1", "i1", domain.ItemReady).
					Return(domain.Order{}, &domain.OrderClosedError{OrderID: "o1", Status: domain.StatusCancelled})
			},
			expectAck: true,
		},
		"should leave the command pending on infrastructure failure": {
			raw: `{"orderId":"o1","status":"confirmed"}`,
			setupOrders: func(m *mockOrders) {
				m.On("TransitionOrder", mock.Anything, "o1", domain.StatusConfirmed).Return(domain.Order{}, errors.New("db down"))
			},
			expectedError: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			q := &mockQueue{}
			orders := &mockOrders{}
			if tc.setupOrders != nil {
				tc.setupOrders(orders)
			}
			if tc.expectAck {
				q.On("Acknowledge", mock.Anything, "orders:commands", "workers", "1-0").Return(nil)
				q.On("Delete", mock.Anything, "orders:commands", "1-0").Return(nil)
			}
			w := NewOrderCommandWorker(slog.New(slog.NewTextHandler(io.Discard, nil)), q, orders, "orders:commands", "workers")

			err := w.ProcessMessage(context.Background(), "1-0", []byte(tc.raw))
			if tc.expectedError {
				assert.Error(t, err)
				q.AssertNotCalled(t, "Acknowledge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			} else {
				assert.NoError(t, err)
			}
			q.AssertExpectations(t)
			orders.AssertExpectations(t)
		})
	}
}

func TestOrderCommandWorker_Run(t *testing.T) {
	q := &mockQueue{}
	q.On("Subscribe", mock.Anything, "orders:commands", "workers", mock.Anything).Return(nil)
	w := NewOrderCommandWorker(slog.New(slog.NewTextHandler(io.Discard, nil)), q, &mockOrders{}, "orders:commands", "workers")

	assert.NoError(t, w.Run(context.Background()))
	q.AssertExpectations(t)
}

func TestOrderCommandWorker_RetriesAfterTransientFailure(t *testing.T) {
	testCases := map[string]struct {
		failures int
	}{
		"should apply the command once the store recovers": {
			failures: 1,
		},
		"should apply the command after repeated failures": {
			failures: 2,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			log := slog.New(slog.NewTextHandler(io.Discard, nil))
			q := redisPlugin.NewRedisCommandQueue(log, rdb, redisPlugin.QueueOptions{
				MaxLen:       100,
				Consumer:     "worker-a",
				ClaimMinIdle: 30 * time.Millisecond,
				Block:        20 * time.Millisecond,
			})

			orders := &mockOrders{}
			orders.On("TransitionOrder", mock.Anything, "o1", domain.StatusConfirmed).
				Return(domain.Order{}, errors.New("db down")).Times(tc.failures)
			orders.On("TransitionOrder", mock.Anything, "o1", domain.StatusConfirmed).
				Return(domain.Order{}, nil).Once()

			w := NewOrderCommandWorker(log, q, orders, "orders:commands", "workers")
			ctx, cancel := context.WithCancel(context.Background())
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, w.Run(ctx))
			}()
			t.Cleanup(func() {
				cancel()
				wg.Wait()
			})

			require.NoError(t, q.Publish(context.Background(), "orders:commands", []byte(`{"orderId":"o1","status":"confirmed"}`)))

			// applied commands are acked and removed from the stream
			assert.Eventually(t, func() bool {
				n, err := rdb.XLen(context.Background(), "orders:commands").Result()
				return err == nil && n == 0
			}, 2*time.Second, 5*time.Millisecond)
			p, err := rdb.XPending(context.Background(), "orders:commands", "workers").Result()
			require.NoError(t, err)
			assert.Zero(t, p.Count)
			orders.AssertNumberOfCalls(t, "TransitionOrder", tc.failures+1)
		})
	}
}
