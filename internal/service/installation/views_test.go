package installation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"glazing-backend/internal/storage"
)

func TestToday_GroupingAndOrder(t *testing.T) {
	date := storage.Today()

	mk := func(id string, order int, status, teamID string) *storage.AssemblyTask {
		task := openTask(id, order)
		task.Status = status
		task.TeamID = teamID
		task.TeamName = "Team " + teamID
		task.PlannedDate = date
		return task
	}

	tasks := []*storage.AssemblyTask{
		mk("T-1", 2, storage.TaskStatusPlanned, "A"),
		mk("T-2", 1, storage.TaskStatusInProgress, "A"),
		mk("T-3", 1, storage.TaskStatusBlocked, "B"),
		mk("T-4", 1, storage.TaskStatusPlanned, ""),
	}
	other := openTask("T-5", 1)
	other.PlannedDate = "1999-01-01"

	st := new(MockTaskStorage)
	st.On("ListTasks", mock.Anything).Return(append(tasks, other), nil)

	svc := newTestService(st)
	board, err := svc.Today(context.Background(), "")

	assert.NoError(t, err)
	assert.Equal(t, 4, board.Total)
	assert.Len(t, board.Groups, 2)
	assert.Len(t, board.Unassigned, 1)

	// in_progress outranks planned within a team
	teamA := board.Groups[0]
	assert.Equal(t, "A", teamA.TeamID)
	assert.Equal(t, "T-2", teamA.Tasks[0].ID)
	assert.Equal(t, "T-1", teamA.Tasks[1].ID)
}

func TestTasksByJob_GroupsByRole(t *testing.T) {
	t1 := openTask("T-1", 1)
	t2 := openTask("T-2", 2)
	t2.Status = storage.TaskStatusCompleted
	t3 := openTask("T-3", 1)
	t3.RoleID = "R-2"
	t3.RoleName = "Railings"

	st := new(MockTaskStorage)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{t3, t2, t1}, nil)
	st.On("GetJob", mock.Anything, "JOB-1").Return(&storage.Job{ID: "JOB-1"}, nil)

	svc := newTestService(st)
	view, err := svc.TasksByJob(context.Background(), "JOB-1")

	assert.NoError(t, err)
	assert.Len(t, view.Roles, 2)
	assert.False(t, view.AllCompleted)

	for _, role := range view.Roles {
		if role.RoleID == "R-1" {
			assert.Equal(t, 1, role.Completed)
			assert.Equal(t, 2, role.Total)
			// stages come back in order
			assert.Equal(t, "T-1", role.Tasks[0].ID)
		}
	}
}

func TestSummaryCounts(t *testing.T) {
	t1 := openTask("T-1", 1)
	t1.Status = storage.TaskStatusBlocked
	t1.IsDelayed = true
	t1.TotalDelayDays = 4
	t2 := openTask("T-2", 2)

	st := new(MockTaskStorage)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{t1, t2}, nil)

	svc := newTestService(st)
	sum, err := svc.Summary(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Blocked)
	assert.Equal(t, 1, sum.Delayed)
	assert.Equal(t, 4, sum.TotalDelayDays)
}

func TestDelayReport_WorstFirst(t *testing.T) {
	t1 := openTask("T-1", 1)
	t1.IsDelayed = true
	t1.TotalDelayDays = 2
	t2 := openTask("T-2", 2)
	t2.IsDelayed = true
	t2.TotalDelayDays = 9
	t3 := openTask("T-3", 3)

	st := new(MockTaskStorage)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{t1, t2, t3}, nil)

	svc := newTestService(st)
	rows, err := svc.DelayReport(context.Background())

	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "T-2", rows[0].TaskID)
}

func TestTeamAvailability(t *testing.T) {
	date := storage.Today()
	t1 := openTask("T-1", 1)
	t1.TeamID, t1.TeamName, t1.PlannedDate = "A", "Team A", date
	t2 := openTask("T-2", 2)
	t2.TeamID, t2.TeamName = "A", "Team A"
	t3 := openTask("T-3", 1)
	t3.TeamID, t3.TeamName = "B", "Team B"
	t4 := openTask("T-4", 1)
	t4.TeamID = "A"
	t4.Status = storage.TaskStatusCompleted

	st := new(MockTaskStorage)
	st.On("ListTasks", mock.Anything).Return([]*storage.AssemblyTask{t1, t2, t3, t4}, nil)

	svc := newTestService(st)
	loads, err := svc.TeamAvailability(context.Background(), "")

	assert.NoError(t, err)
	assert.Len(t, loads, 2)
	// B has nothing today, A has one commitment
	assert.Equal(t, "B", loads[0].TeamID)
	assert.Equal(t, 2, loads[1].Open)
	assert.Equal(t, 1, loads[1].OnDate)
}
