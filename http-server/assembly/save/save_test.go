package save

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"glazing-backend/internal/service/installation"
	"glazing-backend/internal/storage"
)

type MockTaskWriter struct {
	mock.Mock
}

func (m *MockTaskWriter) CreateTask(ctx context.Context, req installation.CreateTaskRequest) (*storage.AssemblyTask, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AssemblyTask), args.Error(1)
}

func (m *MockTaskWriter) CreateForJob(ctx context.Context, jobID string) ([]*storage.AssemblyTask, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.AssemblyTask), args.Error(1)
}

func (m *MockTaskWriter) StartTask(ctx context.Context, id string) (*storage.AssemblyTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AssemblyTask), args.Error(1)
}

func (m *MockTaskWriter) CompleteTask(ctx context.Context, id string, req installation.CompleteTaskRequest) (*storage.AssemblyTask, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AssemblyTask), args.Error(1)
}

func (m *MockTaskWriter) CompleteAll(ctx context.Context, jobID string, req installation.CompleteTaskRequest) ([]*storage.AssemblyTask, error) {
	args := m.Called(ctx, jobID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.AssemblyTask), args.Error(1)
}

func (m *MockTaskWriter) ReportIssue(ctx context.Context, id string, req installation.ReportIssueRequest) (*storage.AssemblyTask, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AssemblyTask), args.Error(1)
}

func (m *MockTaskWriter) ResolveIssue(ctx context.Context, taskID, issueID, note string) (*storage.AssemblyTask, error) {
	args := m.Called(ctx, taskID, issueID, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AssemblyTask), args.Error(1)
}

func (m *MockTaskWriter) RecordDelay(ctx context.Context, id string, req installation.RecordDelayRequest) (*storage.AssemblyTask, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AssemblyTask), args.Error(1)
}

func TestRecordDelay_BackwardShiftIs400(t *testing.T) {
	writer := new(MockTaskWriter)
	writer.On("RecordDelay", mock.Anything, "T-1", mock.Anything).
		Return(nil, storage.Validationf("new date must be after the original date"))

	router := chi.NewRouter()
	router.Post("/api/assembly/tasks/{id}/delay", RecordDelay(slog.Default(), writer))

	body := `{"originalDate":"2026-03-10","newDate":"2026-03-05","reason":"x","responsiblePersonId":"P-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/assembly/tasks/T-1/delay", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecordDelay_Recorded(t *testing.T) {
	task := &storage.AssemblyTask{ID: "T-1", JobID: "JOB-1", PlannedDate: "2026-03-15", TotalDelayDays: 5}

	writer := new(MockTaskWriter)
	writer.On("RecordDelay", mock.Anything, "T-1", installation.RecordDelayRequest{
		OriginalDate:        "2026-03-10",
		NewDate:             "2026-03-15",
		Reason:              "team reassigned",
		ResponsiblePersonID: "P-1",
	}).Return(task, nil)

	router := chi.NewRouter()
	router.Post("/api/assembly/tasks/{id}/delay", RecordDelay(slog.Default(), writer))

	body := `{"originalDate":"2026-03-10","newDate":"2026-03-15","reason":"team reassigned","responsiblePersonId":"P-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/assembly/tasks/T-1/delay", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"totalDelayDays":5`)
}

func TestCompleteTask_MissingPhotosIs400(t *testing.T) {
	writer := new(MockTaskWriter)
	writer.On("CompleteTask", mock.Anything, "T-1", mock.Anything).
		Return(nil, storage.Validationf("before photos required"))

	router := chi.NewRouter()
	router.Post("/api/assembly/tasks/{id}/complete", CompleteTask(slog.Default(), writer))

	body := `{"photosAfter":["a.jpg"],"customerSignature":"sig"}`
	req := httptest.NewRequest(http.MethodPost, "/api/assembly/tasks/T-1/complete", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "before photos required")
}

func TestCompleteTask_Success(t *testing.T) {
	writer := new(MockTaskWriter)
	writer.On("CompleteTask", mock.Anything, "T-1", mock.Anything).Return(&storage.AssemblyTask{
		ID:     "T-1",
		Status: storage.TaskStatusCompleted,
	}, nil)

	router := chi.NewRouter()
	router.Post("/api/assembly/tasks/{id}/complete", CompleteTask(slog.Default(), writer))

	body := `{"photosBefore":["b.jpg"],"photosAfter":["a.jpg"],"customerSignature":"sig"}`
	req := httptest.NewRequest(http.MethodPost, "/api/assembly/tasks/T-1/complete", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), storage.TaskStatusCompleted)
}

func TestCreateForJob(t *testing.T) {
	writer := new(MockTaskWriter)
	writer.On("CreateForJob", mock.Anything, "JOB-1").
		Return([]*storage.AssemblyTask{{ID: "T-1"}, {ID: "T-2"}}, nil)

	router := chi.NewRouter()
	router.Post("/api/assembly/jobs/{jobId}/generate", CreateForJob(slog.Default(), writer))

	req := httptest.NewRequest(http.MethodPost, "/api/assembly/jobs/JOB-1/generate", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"created":2`)
}
