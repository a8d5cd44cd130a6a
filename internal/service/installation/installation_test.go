package installation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"glazing-backend/internal/activity"
	"glazing-backend/internal/ledger"
	"glazing-backend/internal/storage"
)

type MockTaskStorage struct {
	mock.Mock
}

func (m *MockTaskStorage) GetTask(ctx context.Context, id string) (*storage.AssemblyTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AssemblyTask), args.Error(1)
}

func (m *MockTaskStorage) ListTasks(ctx context.Context) ([]*storage.AssemblyTask, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.AssemblyTask), args.Error(1)
}

func (m *MockTaskStorage) InsertTask(ctx context.Context, task *storage.AssemblyTask) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockTaskStorage) UpdateTask(ctx context.Context, task *storage.AssemblyTask) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockTaskStorage) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Job), args.Error(1)
}

func (m *MockTaskStorage) GetRoleConfig(ctx context.Context, roleID string) (*storage.RoleConfig, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.RoleConfig), args.Error(1)
}

func (m *MockTaskStorage) FindPersonnel(ctx context.Context, id string) (*storage.Personnel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Personnel), args.Error(1)
}

func (m *MockTaskStorage) InsertOrderWithTask(ctx context.Context, order *storage.ProductionOrder, task *storage.AssemblyTask) error {
	return m.Called(ctx, order, task).Error(0)
}

func newTestService(st *MockTaskStorage) *Service {
	return NewService(st, activity.Noop{})
}

func openTask(id string, order int) *storage.AssemblyTask {
	return &storage.AssemblyTask{
		ID:         id,
		JobID:      "JOB-1",
		JobTitle:   "Facade",
		RoleID:     "R-1",
		RoleName:   "Glazing",
		StageID:    "S-" + id,
		StageOrder: order,
		Status:     storage.TaskStatusPlanned,
		Photos:     storage.TaskPhotos{Before: []string{}, After: []string{}},
		Issues:     []ledger.Issue{},
		Delays:     []ledger.DelayRecord{},
	}
}

func TestCreateForJob_Idempotent(t *testing.T) {
	job := &storage.Job{
		ID:    "JOB-1",
		Title: "Facade",
		Roles: []storage.JobRole{{ID: "R-1", Name: "Glazing"}},
	}
	cfg := &storage.RoleConfig{
		ID: "R-1",
		AssemblyStages: []storage.RoleStage{
			{ID: "frame", Name: "Frame mount", Order: 1},
			{ID: "glass", Name: "Glass fitting", Order: 2},
		},
	}
	existing := openTask("T-1", 1)
	existing.StageID = "frame"

	st := new(MockTaskStorage)
	st.On("GetJob", mock.Anything, "JOB-1").Return(job, nil)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{existing}, nil)
	st.On("GetRoleConfig", mock.Anything, "R-1").Return(cfg, nil)
	st.On("InsertTask", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(st)
	created, err := svc.CreateForJob(context.Background(), "JOB-1")

	assert.NoError(t, err)
	// the frame stage already exists, only glass is generated
	assert.Len(t, created, 1)
	assert.Equal(t, "glass", created[0].StageID)
	assert.Equal(t, 2, created[0].StageOrder)
	st.AssertNumberOfCalls(t, "InsertTask", 1)
}

func TestCompleteTask_PhotoGates(t *testing.T) {
	t.Run("missing before photos", func(t *testing.T) {
		task := openTask("T-1", 1)
		st := new(MockTaskStorage)
		st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
		st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{task}, nil)

		svc := newTestService(st)
		_, err := svc.CompleteTask(context.Background(), "T-1", CompleteTaskRequest{
			PhotosAfter:       []string{"a.jpg"},
			CustomerSignature: "sig",
		})
		assert.True(t, storage.IsValidation(err))
		assert.Contains(t, err.Error(), "before photos")
		// task unchanged
		assert.Equal(t, storage.TaskStatusPlanned, task.Status)
		st.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything)
	})

	t.Run("missing after photos", func(t *testing.T) {
		task := openTask("T-1", 1)
		st := new(MockTaskStorage)
		st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
		st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{task}, nil)

		svc := newTestService(st)
		_, err := svc.CompleteTask(context.Background(), "T-1", CompleteTaskRequest{
			PhotosBefore:      []string{"b.jpg"},
			CustomerSignature: "sig",
		})
		assert.True(t, storage.IsValidation(err))
		assert.Contains(t, err.Error(), "after photos")
	})
}

func TestCompleteTask_LastStageNeedsSignature(t *testing.T) {
	task := openTask("T-2", 2)
	sibling := openTask("T-1", 1)
	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-2").Return(task, nil)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{sibling, task}, nil)

	svc := newTestService(st)
	_, err := svc.CompleteTask(context.Background(), "T-2", CompleteTaskRequest{
		PhotosBefore: []string{"b.jpg"},
		PhotosAfter:  []string{"a.jpg"},
	})
	assert.True(t, storage.IsValidation(err))
	assert.Contains(t, err.Error(), "signature")
}

func TestCompleteTask_MidStageNoSignature(t *testing.T) {
	task := openTask("T-1", 1)
	last := openTask("T-2", 2)
	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{task, last}, nil)
	st.On("UpdateTask", mock.Anything, task).Return(nil)

	svc := newTestService(st)
	out, err := svc.CompleteTask(context.Background(), "T-1", CompleteTaskRequest{
		PhotosBefore: []string{"b.jpg"},
		PhotosAfter:  []string{"a.jpg"},
	})
	assert.NoError(t, err)
	assert.Equal(t, storage.TaskStatusCompleted, out.Status)
	assert.NotEmpty(t, out.CompletedAt)
}

func TestCompleteTask_PhotosAppend(t *testing.T) {
	task := openTask("T-1", 1)
	task.Photos.Before = []string{"old.jpg"}
	task.CustomerSignature = "sig"
	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{task}, nil)
	st.On("UpdateTask", mock.Anything, task).Return(nil)

	svc := newTestService(st)
	out, err := svc.CompleteTask(context.Background(), "T-1", CompleteTaskRequest{
		PhotosBefore: []string{"new.jpg"},
		PhotosAfter:  []string{"a.jpg"},
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"old.jpg", "new.jpg"}, out.Photos.Before)
}

func TestCompleteTask_PendingIssueBlocks(t *testing.T) {
	task := openTask("T-1", 1)
	task.Issues = []ledger.Issue{{ID: "ISS-1", Status: ledger.IssueStatusPending}}
	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{task}, nil)

	svc := newTestService(st)
	_, err := svc.CompleteTask(context.Background(), "T-1", CompleteTaskRequest{
		PhotosBefore:      []string{"b.jpg"},
		PhotosAfter:       []string{"a.jpg"},
		CustomerSignature: "sig",
	})
	assert.True(t, storage.IsValidation(err))
}

func TestCompleteAll_AllOrNothing(t *testing.T) {
	t1 := openTask("T-1", 1)
	t2 := openTask("T-2", 2)
	t2.Issues = []ledger.Issue{{ID: "ISS-1", Status: ledger.IssueStatusPending}}

	st := new(MockTaskStorage)
	st.On("GetJob", mock.Anything, "JOB-1").Return(&storage.Job{ID: "JOB-1"}, nil)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{t1, t2}, nil)

	svc := newTestService(st)
	_, err := svc.CompleteAll(context.Background(), "JOB-1", CompleteTaskRequest{
		PhotosBefore:      []string{"b.jpg"},
		PhotosAfter:       []string{"a.jpg"},
		CustomerSignature: "sig",
	})

	// the blocked sibling rejects the whole call before any mutation
	assert.True(t, storage.IsValidation(err))
	assert.Equal(t, storage.TaskStatusPlanned, t1.Status)
	st.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything)
}

func TestCompleteAll_SharedTimestamp(t *testing.T) {
	t1 := openTask("T-1", 1)
	t2 := openTask("T-2", 2)

	st := new(MockTaskStorage)
	st.On("GetJob", mock.Anything, "JOB-1").Return(&storage.Job{ID: "JOB-1"}, nil)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{t1, t2}, nil)
	st.On("UpdateTask", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(st)
	done, err := svc.CompleteAll(context.Background(), "JOB-1", CompleteTaskRequest{
		PhotosBefore:      []string{"b.jpg"},
		PhotosAfter:       []string{"a.jpg"},
		CustomerSignature: "sig",
	})

	assert.NoError(t, err)
	assert.Len(t, done, 2)
	assert.Equal(t, done[0].CompletedAt, done[1].CompletedAt)
	assert.Equal(t, "sig", done[0].CustomerSignature)
	assert.Equal(t, storage.TaskStatusCompleted, done[1].Status)
}

func TestReportIssue_BlocksTask(t *testing.T) {
	task := openTask("T-1", 1)
	task.Status = storage.TaskStatusInProgress
	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
	st.On("UpdateTask", mock.Anything, task).Return(nil)

	svc := newTestService(st)
	out, err := svc.ReportIssue(context.Background(), "T-1", ReportIssueRequest{
		IssueType: "broken_glass",
		Quantity:  1,
	})

	assert.NoError(t, err)
	assert.Equal(t, storage.TaskStatusBlocked, out.Status)
	assert.Len(t, out.Issues, 1)
	st.AssertNotCalled(t, "InsertOrderWithTask", mock.Anything, mock.Anything, mock.Anything)
}

func TestReportIssue_SpawnsReplacementOrder(t *testing.T) {
	task := openTask("T-1", 1)
	task.Status = storage.TaskStatusInProgress

	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
	st.On("InsertOrderWithTask", mock.Anything, mock.Anything, task).Return(nil)

	svc := newTestService(st)
	out, err := svc.ReportIssue(context.Background(), "T-1", ReportIssueRequest{
		IssueType:              "broken_glass",
		Item:                   "4mm clear",
		Quantity:               2,
		GlassType:              "float",
		CreateReplacementOrder: true,
	})

	assert.NoError(t, err)
	assert.Len(t, out.Issues, 1)
	assert.NotEmpty(t, out.Issues[0].ReplacementOrderID)

	order := st.Calls[1].Arguments.Get(1).(*storage.ProductionOrder)
	assert.Equal(t, storage.OrderTypeGlass, order.OrderType)
	assert.Equal(t, "JOB-1", order.JobID)
	assert.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Items[0].IsReplacement)
	assert.Equal(t, out.Issues[0].ID, order.Items[0].OriginalIssueID)
	st.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything)
}

func TestResolveIssue_RevertsStatus(t *testing.T) {
	t.Run("back to in_progress when started", func(t *testing.T) {
		task := openTask("T-1", 1)
		task.Status = storage.TaskStatusBlocked
		task.StartedAt = "2026-03-01T08:00:00.000000"
		task.Issues = []ledger.Issue{{ID: "ISS-1", Quantity: 1, Status: ledger.IssueStatusPending}}

		st := new(MockTaskStorage)
		st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
		st.On("UpdateTask", mock.Anything, task).Return(nil)

		svc := newTestService(st)
		out, err := svc.ResolveIssue(context.Background(), "T-1", "ISS-1", "replaced on site")
		assert.NoError(t, err)
		assert.Equal(t, storage.TaskStatusInProgress, out.Status)
	})

	t.Run("back to planned when never started", func(t *testing.T) {
		task := openTask("T-1", 1)
		task.Status = storage.TaskStatusBlocked
		task.Issues = []ledger.Issue{{ID: "ISS-1", Quantity: 1, Status: ledger.IssueStatusPending}}

		st := new(MockTaskStorage)
		st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
		st.On("UpdateTask", mock.Anything, task).Return(nil)

		svc := newTestService(st)
		out, err := svc.ResolveIssue(context.Background(), "T-1", "ISS-1", "")
		assert.NoError(t, err)
		assert.Equal(t, storage.TaskStatusPlanned, out.Status)
	})

	t.Run("stays blocked while another issue pends", func(t *testing.T) {
		task := openTask("T-1", 1)
		task.Status = storage.TaskStatusBlocked
		task.Issues = []ledger.Issue{
			{ID: "ISS-1", Quantity: 1, Status: ledger.IssueStatusPending},
			{ID: "ISS-2", Quantity: 1, Status: ledger.IssueStatusPending},
		}

		st := new(MockTaskStorage)
		st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
		st.On("UpdateTask", mock.Anything, task).Return(nil)

		svc := newTestService(st)
		out, err := svc.ResolveIssue(context.Background(), "T-1", "ISS-1", "")
		assert.NoError(t, err)
		assert.Equal(t, storage.TaskStatusBlocked, out.Status)
	})
}

func TestReschedule_ForwardNeedsReason(t *testing.T) {
	task := openTask("T-1", 1)
	task.PlannedDate = "2026-03-01"

	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-1").Return(task, nil)

	svc := newTestService(st)
	_, err := svc.Reschedule(context.Background(), "T-1", RescheduleRequest{
		NewDate: "2026-03-10",
	})
	assert.True(t, storage.IsValidation(err))
}

func TestReschedule_ForwardRecordsDelay(t *testing.T) {
	task := openTask("T-1", 1)
	task.PlannedDate = "2026-03-01"

	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
	st.On("UpdateTask", mock.Anything, task).Return(nil)
	st.On("FindPersonnel", mock.Anything, "P-1").Return(&storage.Personnel{ID: "P-1", Name: "Ivan"}, nil)

	svc := newTestService(st)
	out, err := svc.Reschedule(context.Background(), "T-1", RescheduleRequest{
		NewDate:             "2026-03-04",
		DelayReason:         "customer unavailable",
		ResponsiblePersonID: "P-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "2026-03-04", out.PlannedDate)
	assert.Len(t, out.Delays, 1)
	assert.Equal(t, 3, out.Delays[0].DelayDays)
}

func TestRecordDelay_BackwardRejected(t *testing.T) {
	task := openTask("T-1", 1)
	task.PlannedDate = "2026-03-10"

	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
	st.On("FindPersonnel", mock.Anything, "P-1").Return(&storage.Personnel{ID: "P-1", Name: "Ivan"}, nil)

	svc := newTestService(st)
	for _, newDate := range []string{"2026-03-10", "2026-03-05"} {
		_, err := svc.RecordDelay(context.Background(), "T-1", RecordDelayRequest{
			OriginalDate:        "2026-03-10",
			NewDate:             newDate,
			Reason:              "supplier slipped",
			ResponsiblePersonID: "P-1",
		})
		assert.True(t, storage.IsValidation(err))
	}
	st.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything)
}

func TestRecordDelay_MovesPlannedDate(t *testing.T) {
	task := openTask("T-1", 1)
	task.Status = storage.TaskStatusPending

	st := new(MockTaskStorage)
	st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
	st.On("UpdateTask", mock.Anything, task).Return(nil)
	st.On("FindPersonnel", mock.Anything, "P-1").Return(&storage.Personnel{ID: "P-1", Name: "Ivan"}, nil)

	svc := newTestService(st)
	out, err := svc.RecordDelay(context.Background(), "T-1", RecordDelayRequest{
		OriginalDate:        "2026-03-01",
		NewDate:             "2026-03-06",
		Reason:              "supplier slipped",
		ResponsiblePersonID: "P-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "2026-03-06", out.PlannedDate)
	assert.Equal(t, storage.TaskStatusPlanned, out.Status)
	assert.Len(t, out.Delays, 1)
	assert.Equal(t, 5, out.Delays[0].DelayDays)
	assert.Equal(t, "Ivan", out.Delays[0].ResponsiblePersonName)
	assert.Equal(t, 5, out.TotalDelayDays)
	assert.True(t, out.IsDelayed)
}

func TestUpdateTask_PlannedDateFlips(t *testing.T) {
	t.Run("setting promotes pending", func(t *testing.T) {
		task := openTask("T-1", 1)
		task.Status = storage.TaskStatusPending

		st := new(MockTaskStorage)
		st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
		st.On("UpdateTask", mock.Anything, task).Return(nil)

		svc := newTestService(st)
		out, err := svc.UpdateTask(context.Background(), "T-1", UpdateTaskRequest{
			PlannedDate: ledger.PatchOf("2026-03-05"),
		})
		assert.NoError(t, err)
		assert.Equal(t, storage.TaskStatusPlanned, out.Status)
	})

	t.Run("null demotes planned", func(t *testing.T) {
		task := openTask("T-1", 1)
		task.PlannedDate = "2026-03-05"

		st := new(MockTaskStorage)
		st.On("GetTask", mock.Anything, "T-1").Return(task, nil)
		st.On("UpdateTask", mock.Anything, task).Return(nil)

		svc := newTestService(st)
		out, err := svc.UpdateTask(context.Background(), "T-1", UpdateTaskRequest{
			PlannedDate: ledger.NullPatch[string](),
		})
		assert.NoError(t, err)
		assert.Equal(t, storage.TaskStatusPending, out.Status)
		assert.Empty(t, out.PlannedDate)
	})
}
