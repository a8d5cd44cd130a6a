package fulfillment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"glazing-backend/internal/activity"
	"glazing-backend/internal/ledger"
	"glazing-backend/internal/storage"
)

type MockOrderStorage struct {
	mock.Mock
}

func (m *MockOrderStorage) GetOrder(ctx context.Context, id string) (*storage.ProductionOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.ProductionOrder), args.Error(1)
}

func (m *MockOrderStorage) ListOrders(ctx context.Context) ([]*storage.ProductionOrder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.ProductionOrder), args.Error(1)
}

func (m *MockOrderStorage) InsertOrder(ctx context.Context, order *storage.ProductionOrder) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderStorage) UpdateOrder(ctx context.Context, order *storage.ProductionOrder) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderStorage) DeleteOrder(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOrderStorage) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Job), args.Error(1)
}

func (m *MockOrderStorage) FindPersonnel(ctx context.Context, id string) (*storage.Personnel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Personnel), args.Error(1)
}

func newTestService(st *MockOrderStorage) *Service {
	return NewService(st, activity.Noop{})
}

func twoLineOrder() *storage.ProductionOrder {
	return &storage.ProductionOrder{
		ID:     "ORD-1",
		JobID:  "JOB-1",
		Status: storage.OrderStatusPending,
		Items: []storage.OrderLine{
			{GlassName: "4mm clear", Quantity: 5, Unit: "pcs"},
			{GlassName: "6mm tinted", Quantity: 3, Unit: "pcs"},
		},
		Issues:          []ledger.Issue{},
		Delays:          []ledger.DelayRecord{},
		DeliveryHistory: []storage.DeliveryEvent{},
	}
}

func TestCreateOrder_UnknownJob(t *testing.T) {
	st := new(MockOrderStorage)
	st.On("GetJob", mock.Anything, "JOB-404").Return(nil, storage.ErrNotFound)

	svc := newTestService(st)
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		JobID:     "JOB-404",
		RoleID:    "R-1",
		OrderType: storage.OrderTypeGlass,
		Items:     []storage.OrderLine{{Quantity: 1, Unit: "pcs"}},
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateOrder_ZeroesReceipts(t *testing.T) {
	st := new(MockOrderStorage)
	st.On("GetJob", mock.Anything, "JOB-1").Return(&storage.Job{
		ID: "JOB-1", Title: "Facade", Roles: []storage.JobRole{{ID: "R-1", Name: "Glazing"}},
	}, nil)
	st.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(st)
	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		JobID:     "JOB-1",
		RoleID:    "R-1",
		OrderType: storage.OrderTypeGlass,
		Items:     []storage.OrderLine{{Quantity: 5, Unit: "pcs", ReceivedQty: 99}},
	})
	assert.NoError(t, err)
	assert.Equal(t, storage.OrderStatusPending, order.Status)
	assert.Equal(t, 0, order.Items[0].ReceivedQty)
	assert.Equal(t, "Glazing", order.RoleName)
}

func TestRecordDelivery_FullCompletes(t *testing.T) {
	order := twoLineOrder()
	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)

	svc := newTestService(st)
	out, err := svc.RecordDelivery(context.Background(), "ORD-1", DeliveryRequest{
		Deliveries: []DeliveryLine{
			{LineIndex: 0, ReceivedQty: 5},
			{LineIndex: 1, ReceivedQty: 3},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, storage.OrderStatusCompleted, out.Status)
	assert.Empty(t, out.Issues)
	assert.Len(t, out.DeliveryHistory, 1)
	assert.NotEmpty(t, out.FirstDeliveryAt)
	assert.NotEmpty(t, out.ProductionCompletedAt)
}

func TestRecordDelivery_PartialWithProblem(t *testing.T) {
	order := twoLineOrder()
	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)

	svc := newTestService(st)
	out, err := svc.RecordDelivery(context.Background(), "ORD-1", DeliveryRequest{
		Deliveries: []DeliveryLine{
			{LineIndex: 0, ReceivedQty: 5},
			{LineIndex: 1, ReceivedQty: 1, ProblemQty: 2, ProblemType: "broken"},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, storage.OrderStatusPartial, out.Status)
	assert.Len(t, out.Issues, 1)
	assert.Equal(t, ledger.IssueStatusPending, out.Issues[0].Status)
	assert.Equal(t, 2, out.Issues[0].Quantity)
	assert.Equal(t, 1, *out.Issues[0].LineIndex)
}

func TestRecordDelivery_RejectsBadLinesBeforeMutating(t *testing.T) {
	order := twoLineOrder()
	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)

	svc := newTestService(st)
	_, err := svc.RecordDelivery(context.Background(), "ORD-1", DeliveryRequest{
		Deliveries: []DeliveryLine{
			{LineIndex: 0, ReceivedQty: 5},
			{LineIndex: 7, ReceivedQty: 1},
		},
	})

	assert.True(t, storage.IsValidation(err))
	// nothing was applied, UpdateOrder never called
	assert.Equal(t, 0, order.Items[0].ReceivedQty)
	st.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything)
}

func TestRecordDelivery_ProblemNeedsType(t *testing.T) {
	order := twoLineOrder()
	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)

	svc := newTestService(st)
	_, err := svc.RecordDelivery(context.Background(), "ORD-1", DeliveryRequest{
		Deliveries: []DeliveryLine{{LineIndex: 0, ReceivedQty: 1, ProblemQty: 1}},
	})
	assert.True(t, storage.IsValidation(err))
}

func TestFirstDeliveryAtSticky(t *testing.T) {
	order := twoLineOrder()
	order.FirstDeliveryAt = "2026-02-01"
	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)

	svc := newTestService(st)
	out, err := svc.RecordDelivery(context.Background(), "ORD-1", DeliveryRequest{
		Date:       "2026-03-01",
		Deliveries: []DeliveryLine{{LineIndex: 0, ReceivedQty: 1}},
	})
	assert.NoError(t, err)
	assert.Equal(t, "2026-02-01", out.FirstDeliveryAt)
}

func TestResolveIssue_Chained(t *testing.T) {
	order := twoLineOrder()
	order.Items[1].ReceivedQty = 1
	idx := 1
	order.Issues = []ledger.Issue{{
		ID: "ISS-1", LineIndex: &idx, Type: "broken", Quantity: 2,
		Status: ledger.IssueStatusPending, History: []ledger.Resolution{},
	}}
	order.Status = storage.OrderStatusPartial

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)

	svc := newTestService(st)
	out, err := svc.ResolveIssue(context.Background(), "ORD-1", "ISS-1", ResolveIssueRequest{
		Resolution:   ledger.ResolutionReplaced,
		ResolvedQty:  2,
		NewIssueQty:  1,
		NewIssueType: "broken",
	})

	assert.NoError(t, err)
	// parent is partial, a child issue chained
	assert.Len(t, out.Issues, 2)
	assert.Equal(t, ledger.IssueStatusPartial, out.Issues[0].Status)
	assert.Equal(t, "ISS-1", out.Issues[1].ParentIssueID)
	// 2 replaced - 1 defective again = 1 effective receipt
	assert.Equal(t, 2, out.Items[1].ReceivedQty)
	assert.Equal(t, storage.OrderStatusPartial, out.Status)
}

func TestResolveIssue_CompletesOrder(t *testing.T) {
	order := twoLineOrder()
	order.Items[0].ReceivedQty = 5
	order.Items[1].ReceivedQty = 1
	idx := 1
	order.Issues = []ledger.Issue{{
		ID: "ISS-1", LineIndex: &idx, Type: "broken", Quantity: 2,
		Status: ledger.IssueStatusPending, History: []ledger.Resolution{},
	}}
	order.Status = storage.OrderStatusPartial

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)

	svc := newTestService(st)
	out, err := svc.ResolveIssue(context.Background(), "ORD-1", "ISS-1", ResolveIssueRequest{
		Resolution:  ledger.ResolutionReplaced,
		ResolvedQty: 2,
	})

	assert.NoError(t, err)
	assert.Equal(t, storage.OrderStatusCompleted, out.Status)
	assert.Equal(t, 3, out.Items[1].ReceivedQty)
}

func TestResolveIssue_RefundDoesNotRestock(t *testing.T) {
	order := twoLineOrder()
	idx := 0
	order.Issues = []ledger.Issue{{
		ID: "ISS-1", LineIndex: &idx, Type: "broken", Quantity: 1,
		Status: ledger.IssueStatusPending, History: []ledger.Resolution{},
	}}
	order.Status = storage.OrderStatusPartial

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)

	svc := newTestService(st)
	out, err := svc.ResolveIssue(context.Background(), "ORD-1", "ISS-1", ResolveIssueRequest{
		Resolution:  ledger.ResolutionRefunded,
		ResolvedQty: 1,
	})

	assert.NoError(t, err)
	assert.Equal(t, 0, out.Items[0].ReceivedQty)
}

func TestDeleteOrder_PendingOnly(t *testing.T) {
	t.Run("pending deletes", func(t *testing.T) {
		order := twoLineOrder()
		st := new(MockOrderStorage)
		st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
		st.On("DeleteOrder", mock.Anything, "ORD-1").Return(nil)

		svc := newTestService(st)
		assert.NoError(t, svc.DeleteOrder(context.Background(), "ORD-1"))
	})

	t.Run("with receipts rejects", func(t *testing.T) {
		order := twoLineOrder()
		order.Status = storage.OrderStatusPartial
		st := new(MockOrderStorage)
		st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)

		svc := newTestService(st)
		err := svc.DeleteOrder(context.Background(), "ORD-1")
		assert.True(t, storage.IsConflict(err))
	})
}

func TestStartProduction(t *testing.T) {
	order := twoLineOrder()
	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)

	svc := newTestService(st)
	out, err := svc.StartProduction(context.Background(), "ORD-1")
	assert.NoError(t, err)
	assert.Equal(t, storage.OrderStatusInProgress, out.Status)
	assert.NotEmpty(t, out.ProductionStartedAt)
}

func TestUpdatePlan_ForwardMoveNeedsJustification(t *testing.T) {
	order := twoLineOrder()
	order.EstimatedDelivery = "2026-03-01"

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)

	svc := newTestService(st)
	_, err := svc.UpdatePlan(context.Background(), "ORD-1", PlanUpdateRequest{
		EstimatedDelivery: ledger.PatchOf("2026-03-10"),
	})
	assert.True(t, storage.IsValidation(err))
}

func TestUpdatePlan_ForwardMoveRecordsDelay(t *testing.T) {
	order := twoLineOrder()
	order.EstimatedDelivery = "2026-03-01"

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)
	st.On("FindPersonnel", mock.Anything, "P-1").Return(&storage.Personnel{ID: "P-1", Name: "Ivan"}, nil)

	svc := newTestService(st)
	out, err := svc.UpdatePlan(context.Background(), "ORD-1", PlanUpdateRequest{
		EstimatedDelivery:   ledger.PatchOf("2026-03-10"),
		DelayReason:         "supplier shortage",
		ResponsiblePersonID: "P-1",
	})
	assert.NoError(t, err)
	assert.Len(t, out.Delays, 1)
	assert.Equal(t, 9, out.Delays[0].DelayDays)
	assert.Equal(t, "Ivan", out.Delays[0].ResponsiblePersonName)
	assert.Equal(t, 9, out.TotalDelayDays)
	assert.True(t, out.IsDelayed)
}

func TestUpdatePlan_BackwardMoveFree(t *testing.T) {
	order := twoLineOrder()
	order.EstimatedDelivery = "2026-03-10"

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)

	svc := newTestService(st)
	out, err := svc.UpdatePlan(context.Background(), "ORD-1", PlanUpdateRequest{
		EstimatedDelivery: ledger.PatchOf("2026-03-01"),
	})
	assert.NoError(t, err)
	assert.Empty(t, out.Delays)
	assert.Equal(t, "2026-03-01", out.EstimatedDelivery)
}

func TestReschedule_ForwardNeedsJustification(t *testing.T) {
	order := twoLineOrder()
	order.PlannedDate = "2026-03-01"

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)

	svc := newTestService(st)
	_, err := svc.Reschedule(context.Background(), "ORD-1", RescheduleRequest{
		NewDate: "2026-03-08",
	})
	assert.True(t, storage.IsValidation(err))
	st.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything)
}

func TestReschedule_WritesBothDates(t *testing.T) {
	order := twoLineOrder()
	order.PlannedDate = "2026-03-01"
	order.EstimatedDelivery = "2026-02-27"

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)
	st.On("FindPersonnel", mock.Anything, "P-1").Return(&storage.Personnel{ID: "P-1", Name: "Ivan"}, nil)

	svc := newTestService(st)
	out, err := svc.Reschedule(context.Background(), "ORD-1", RescheduleRequest{
		NewDate:             "2026-03-08",
		DelayReason:         "supplier shortage",
		ResponsiblePersonID: "P-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "2026-03-08", out.PlannedDate)
	assert.Equal(t, "2026-03-08", out.EstimatedDelivery)
	assert.Len(t, out.Delays, 1)
	assert.Equal(t, 7, out.Delays[0].DelayDays)
}

func TestReschedule_FallsBackToEstimatedDelivery(t *testing.T) {
	order := twoLineOrder()
	order.EstimatedDelivery = "2026-03-01"

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)
	st.On("FindPersonnel", mock.Anything, "P-1").Return(&storage.Personnel{ID: "P-1", Name: "Ivan"}, nil)

	svc := newTestService(st)
	out, err := svc.Reschedule(context.Background(), "ORD-1", RescheduleRequest{
		NewDate:             "2026-03-05",
		DelayReason:         "glass cracked in transit",
		ResponsiblePersonID: "P-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, 4, out.Delays[0].DelayDays)
	assert.Equal(t, "2026-03-05", out.PlannedDate)
}

func TestReschedule_BackwardMoveFree(t *testing.T) {
	order := twoLineOrder()
	order.PlannedDate = "2026-03-10"

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)
	st.On("UpdateOrder", mock.Anything, order).Return(nil)

	svc := newTestService(st)
	out, err := svc.Reschedule(context.Background(), "ORD-1", RescheduleRequest{
		NewDate: "2026-03-05",
	})
	assert.NoError(t, err)
	assert.Empty(t, out.Delays)
	assert.Equal(t, "2026-03-05", out.EstimatedDelivery)
}

func TestUpdateOrder_CompletedRejected(t *testing.T) {
	order := twoLineOrder()
	order.Status = storage.OrderStatusCompleted

	st := new(MockOrderStorage)
	st.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)

	svc := newTestService(st)
	_, err := svc.UpdateOrder(context.Background(), "ORD-1", UpdateOrderRequest{
		Notes: ledger.PatchOf("new note"),
	})
	assert.True(t, storage.IsConflict(err))
}

func TestCalculateStatus_Property(t *testing.T) {
	// completed demands every line fully received and zero pending issues
	order := twoLineOrder()
	order.Items[0].ReceivedQty = 5
	order.Items[1].ReceivedQty = 3
	assert.Equal(t, storage.OrderStatusCompleted, CalculateStatus(order))

	order.Issues = []ledger.Issue{{Status: ledger.IssueStatusPending}}
	assert.Equal(t, storage.OrderStatusPartial, CalculateStatus(order))

	order.Issues[0].Status = ledger.IssueStatusResolved
	assert.Equal(t, storage.OrderStatusCompleted, CalculateStatus(order))

	// over-delivery is legal and still completed
	order.Items[0].ReceivedQty = 7
	assert.Equal(t, storage.OrderStatusCompleted, CalculateStatus(order))
}

func TestCalculateStatus_PendingIssueWithoutReceipts(t *testing.T) {
	// a delivery of zero good pieces still opens an issue; the order is
	// partial, not pending, so it can no longer be deleted
	order := twoLineOrder()
	order.Issues = []ledger.Issue{{Status: ledger.IssueStatusPending}}
	assert.Equal(t, storage.OrderStatusPartial, CalculateStatus(order))
}

func TestIsOverdue(t *testing.T) {
	order := twoLineOrder()
	order.EstimatedDelivery = "2026-01-01"
	assert.True(t, IsOverdue(order, "2026-02-01"))

	order.Status = storage.OrderStatusCompleted
	assert.False(t, IsOverdue(order, "2026-02-01"))

	order.Status = storage.OrderStatusPending
	order.EstimatedDelivery = ""
	assert.False(t, IsOverdue(order, "2026-02-01"))
}
