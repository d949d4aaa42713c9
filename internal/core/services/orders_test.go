package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qrdine/internal/app/registry"
	"qrdine/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]domain.Order)}
}

func (r *memOrderRepo) CreateOrder(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = *o
	return nil
}

func (r *memOrderRepo) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = *o
	return nil
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepo) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Error(1)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func newTestOrderService(repo domain.OrderRepository, pub Publisher) *OrderService {
	svc := NewOrderService(discardLogger(), repo, passthroughTx{}, pub, decimal.RequireFromString("0.10"))
	base := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return svc
}

func placeTestOrder(t *testing.T, svc *OrderService, items int) domain.Order {
	t.Helper()
	p := domain.NewOrderParams{BranchID: "1", TableID: "T2"}
	for i := 0; i < items; i++ {
		p.Items = append(p.Items, domain.NewItem{ProductID: "dish", Name: "Dish", Quantity: 1, UnitPrice: decimal.NewFromInt(10)})
	}
	o, err := svc.CreateOrder(context.Background(), p)
	require.NoError(t, err)
	return o
}

func TestOrderService_CreateOrder(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestOrderService(newMemOrderRepo(), pub)

	o := placeTestOrder(t, svc, 2)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.True(t, decimal.NewFromInt(22).Equal(o.Total))

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventKitchenNewOrder, events[0].Kind)
	assert.Equal(t, []domain.Audience{domain.ForKitchen("1")}, events[0].Audiences)
	payload, ok := events[0].Payload.(domain.NewOrderEvent)
	require.True(t, ok)
	assert.Equal(t, o.ID, payload.OrderID)
	assert.Len(t, payload.Items, 2)
}

func TestOrderService_CreateOrder_PaddedBranchReachesKitchen(t *testing.T) {
	reg := registry.NewRegistry()
	log := discardLogger()
	session := NewSessionService(log, reg, nil, SessionConfig{})
	kitchen := newFakeClient("kitchen-conn")
	session.HandleConnect(context.Background(), kitchen)
	require.NoError(t, session.HandleMessage(context.Background(), "kitchen-conn", []byte(`{"event":"join","data":{"type":"kitchen","id":" 1"}}`)))

	svc := newTestOrderService(newMemOrderRepo(), NewDispatcher(log, reg))
	_, err := svc.CreateOrder(context.Background(), domain.NewOrderParams{
		BranchID: " 1",
		TableID:  "T2",
		Items:    []domain.NewItem{{ProductID: "dish", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.EventKind{domain.EventSession, domain.EventJoined, domain.EventKitchenNewOrder}, kitchen.events(t))
}

func TestOrderService_CreateOrder_Errors(t *testing.T) {
	testCases := map[string]struct {
		params        domain.NewOrderParams
		persistErr    error
		expectedError error
	}{
		"should reject an invalid order without persisting": {
			params:        domain.NewOrderParams{BranchID: "1", TableID: "undefined", Items: []domain.NewItem{{ProductID: "x", Quantity: 1}}},
			expectedError: domain.ErrInvalidOrder,
		},
		"should surface persistence failures": {
			params:        domain.NewOrderParams{BranchID: "1", TableID: "T1", Items: []domain.NewItem{{ProductID: "x", Quantity: 1}}},
			persistErr:    errors.New("connection reset"),
			expectedError: errors.New("connection reset"),
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := &mockOrderRepo{}
			if tc.persistErr != nil {
				repo.On("CreateOrder", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(tc.persistErr)
			}
			pub := &recordingPublisher{}
			svc := newTestOrderService(repo, pub)

			_, err := svc.CreateOrder(context.Background(), tc.params)
			require.Error(t, err)
			if errors.Is(tc.expectedError, domain.ErrInvalidOrder) {
				assert.ErrorIs(t, err, domain.ErrInvalidOrder)
			} else {
				assert.EqualError(t, err, tc.expectedError.Error())
			}
			assert.Empty(t, pub.published())
			repo.AssertExpectations(t)
		})
	}
}

func TestOrderService_TransitionOrder_PublishesInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestOrderService(newMemOrderRepo(), pub)
	o := placeTestOrder(t, svc, 1)

	for _, s := range []domain.OrderStatus{domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady} {
		_, err := svc.TransitionOrder(context.Background(), o.ID, s)
		require.NoError(t, err)
	}

	events := pub.published()[1:]
	require.Len(t, events, 3)
	expected := []struct{ prev, next domain.OrderStatus }{
		{domain.StatusPending, domain.StatusConfirmed},
		{domain.StatusConfirmed, domain.StatusPreparing},
		{domain.StatusPreparing, domain.StatusReady},
	}
	for i, ev := range events {
		assert.Equal(t, domain.EventOrderStatusUpdate, ev.Kind)
		assert.Equal(t, []domain.Audience{domain.ForOrder(o.ID)}, ev.Audiences)
		payload := ev.Payload.(domain.StatusUpdateEvent)
		assert.Equal(t, expected[i].prev, payload.PreviousStatus)
		assert.Equal(t, expected[i].next, payload.Status)
	}
}

func TestOrderService_TransitionOrder_Rejections(t *testing.T) {
	testCases := map[string]struct {
		path          []domain.OrderStatus
		to            domain.OrderStatus
		orderID       string
		expectedError error
	}{
		"should reject moving backwards": {
			path:          []domain.OrderStatus{domain.StatusConfirmed, domain.StatusPreparing},
			to:            domain.StatusPending,
			expectedError: domain.ErrInvalidTransition,
		},
		"should reject an unknown status": {
			to:            "served",
			expectedError: domain.ErrInvalidTransition,
		},
		"should reject completion with unfinished items": {
			path:          []domain.OrderStatus{domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady},
			to:            domain.StatusCompleted,
			expectedError: domain.ErrItemsNotReady,
		},
		"should report unknown orders": {
			orderID:       "missing",
			to:            domain.StatusConfirmed,
			expectedError: domain.ErrOrderNotFound,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := newMemOrderRepo()
			pub := &recordingPublisher{}
			svc := newTestOrderService(repo, pub)
			o := placeTestOrder(t, svc, 1)
			for _, s := range tc.path {
				_, err := svc.TransitionOrder(context.Background(), o.ID, s)
				require.NoError(t, err)
			}
			before := len(pub.published())
			id := o.ID
			if tc.orderID != "" {
				id = tc.orderID
			}

			_, err := svc.TransitionOrder(context.Background(), id, tc.to)
			assert.ErrorIs(t, err, tc.expectedError)
			assert.Len(t, pub.published(), before, "a rejected transition publishes nothing")

			stored, err := repo.GetOrderByID(context.Background(), o.ID)
			require.NoError(t, err)
			assert.Len(t, stored.History, 1+len(tc.path))
		})
	}
}

func TestOrderService_TransitionItem(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestOrderService(newMemOrderRepo(), pub)
	o := placeTestOrder(t, svc, 2)
	first, second := o.Items[0].ID, o.Items[1].ID

	_, err := svc.TransitionItem(context.Background(), o.ID, first, domain.ItemPreparing)
	require.NoError(t, err)
	assert.Len(t, pub.published(), 1, "only ready publishes")

	_, err = svc.TransitionItem(context.Background(), o.ID, first, domain.ItemReady)
	require.NoError(t, err)
	_, err = svc.TransitionItem(context.Background(), o.ID, second, domain.ItemCancelled)
	require.NoError(t, err)

	events := pub.published()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderItemReady, events[1].Kind)
	assert.Equal(t, []domain.Audience{domain.ForOrder(o.ID)}, events[1].Audiences)
	payload := events[1].Payload.(domain.ItemReadyEvent)
	assert.Equal(t, first, payload.ItemID)
	assert.False(t, payload.AllReady)

	_, err = svc.TransitionItem(context.Background(), o.ID, "nope", domain.ItemReady)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	_, err = svc.TransitionItem(context.Background(), o.ID, first, domain.ItemPreparing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Len(t, pub.published(), 2)
}

func TestOrderService_PublishFailureDoesNotFailTransition(t *testing.T) {
	repo := newMemOrderRepo()
	pub := &recordingPublisher{}
	svc := newTestOrderService(repo, pub)
	o := placeTestOrder(t, svc, 1)

	pub.err = errors.New("boom")
	next, err := svc.TransitionOrder(context.Background(), o.ID, domain.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, next.Status)
}

func TestOrderService_ConcurrentTransitionsStayOrdered(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestOrderService(newMemOrderRepo(), pub)
	o := placeTestOrder(t, svc, 1)

	var wg sync.WaitGroup
	for _, s := range []domain.OrderStatus{domain.StatusConfirmed, domain.StatusCancelled} {
		wg.Add(1)
		go func(s domain.OrderStatus) {
			defer wg.Done()
			_, _ = svc.TransitionOrder(context.Background(), o.ID, s)
		}(s)
	}
	wg.Wait()

	// whichever ran first, every published previousStatus matches the prior event
	prev := domain.StatusPending
	for _, ev := range pub.published()[1:] {
		payload := ev.Payload.(domain.StatusUpdateEvent)
		assert.Equal(t, prev, payload.PreviousStatus)
		prev = payload.Status
	}
}
