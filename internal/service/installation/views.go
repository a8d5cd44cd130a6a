package installation

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"glazing-backend/internal/ledger"
	"glazing-backend/internal/storage"
)

// statusPriority orders the today board: active work first, blocked work
// surfaced above untouched tasks, finished work last.
var statusPriority = map[string]int{
	storage.TaskStatusInProgress: 0,
	storage.TaskStatusBlocked:    1,
	storage.TaskStatusPlanned:    2,
	storage.TaskStatusPending:    3,
	storage.TaskStatusCompleted:  4,
}

type ListFilter struct {
	JobID   string
	RoleID  string
	TeamID  string
	Status  string
	Date    string
	Delayed bool
}

func (s *Service) ListTasks(ctx context.Context, f ListFilter) ([]*storage.AssemblyTask, error) {
	tasks, err := s.storage.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*storage.AssemblyTask, 0, len(tasks))
	for _, t := range tasks {
		if f.JobID != "" && t.JobID != f.JobID {
			continue
		}
		if f.RoleID != "" && t.RoleID != f.RoleID {
			continue
		}
		if f.TeamID != "" && t.TeamID != f.TeamID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Date != "" && t.PlannedDate != f.Date {
			continue
		}
		if f.Delayed && !t.IsDelayed {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type TodayGroup struct {
	TeamID   string                  `json:"teamId"`
	TeamName string                  `json:"teamName"`
	Tasks    []*storage.AssemblyTask `json:"tasks"`
}

type TodayBoard struct {
	Date       string       `json:"date"`
	Groups     []TodayGroup `json:"groups"`
	Unassigned []*storage.AssemblyTask `json:"unassigned"`
	Total      int          `json:"total"`
}

// Today builds the field board: tasks planned for the given date (default
// today), grouped by team, each group sorted by status priority then stage
// order.
func (s *Service) Today(ctx context.Context, date string) (*TodayBoard, error) {
	if date == "" {
		date = storage.Today()
	}
	tasks, err := s.ListTasks(ctx, ListFilter{Date: date})
	if err != nil {
		return nil, err
	}

	sortTasks(tasks)

	board := &TodayBoard{Date: date, Total: len(tasks)}
	byTeam := map[string]*TodayGroup{}
	var order []string
	for _, t := range tasks {
		if t.TeamID == "" {
			board.Unassigned = append(board.Unassigned, t)
			continue
		}
		g, ok := byTeam[t.TeamID]
		if !ok {
			g = &TodayGroup{TeamID: t.TeamID, TeamName: t.TeamName}
			byTeam[t.TeamID] = g
			order = append(order, t.TeamID)
		}
		g.Tasks = append(g.Tasks, t)
	}
	for _, id := range order {
		board.Groups = append(board.Groups, *byTeam[id])
	}
	return board, nil
}

type RoleTasks struct {
	RoleID    string                  `json:"roleId"`
	RoleName  string                  `json:"roleName"`
	Tasks     []*storage.AssemblyTask `json:"tasks"`
	Completed int                     `json:"completed"`
	Total     int                     `json:"total"`
}

type JobTaskView struct {
	JobID        string      `json:"jobId"`
	Roles        []RoleTasks `json:"roles"`
	AllCompleted bool        `json:"allCompleted"`
	OpenIssues   int         `json:"openIssues"`
}

// TasksByJob groups a job's tasks by role, stages in order, for the job
// detail screen.
func (s *Service) TasksByJob(ctx context.Context, jobID string) (*JobTaskView, error) {
	var tasks []*storage.AssemblyTask
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.ListTasks(gctx, ListFilter{JobID: jobID})
		return err
	})
	g.Go(func() error {
		_, err := s.storage.GetJob(gctx, jobID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].RoleID != tasks[j].RoleID {
			return tasks[i].RoleID < tasks[j].RoleID
		}
		return tasks[i].StageOrder < tasks[j].StageOrder
	})

	view := &JobTaskView{JobID: jobID}
	byRole := map[string]*RoleTasks{}
	var order []string
	completed := 0
	for _, t := range tasks {
		r, ok := byRole[t.RoleID]
		if !ok {
			r = &RoleTasks{RoleID: t.RoleID, RoleName: t.RoleName}
			byRole[t.RoleID] = r
			order = append(order, t.RoleID)
		}
		r.Tasks = append(r.Tasks, t)
		r.Total++
		if t.Status == storage.TaskStatusCompleted {
			r.Completed++
			completed++
		}
		view.OpenIssues += ledger.PendingCount(t.Issues)
	}
	for _, id := range order {
		view.Roles = append(view.Roles, *byRole[id])
	}
	view.AllCompleted = len(tasks) > 0 && completed == len(tasks)
	return view, nil
}

type Summary struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"byStatus"`
	Blocked        int            `json:"blocked"`
	OpenIssues     int            `json:"openIssues"`
	Delayed        int            `json:"delayed"`
	TotalDelayDays int            `json:"totalDelayDays"`
	PlannedToday   int            `json:"plannedToday"`
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	tasks, err := s.storage.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	today := storage.Today()
	out := &Summary{ByStatus: map[string]int{}}
	for _, t := range tasks {
		out.Total++
		out.ByStatus[t.Status]++
		if t.Status == storage.TaskStatusBlocked {
			out.Blocked++
		}
		out.OpenIssues += ledger.PendingCount(t.Issues)
		out.TotalDelayDays += t.TotalDelayDays
		if t.IsDelayed {
			out.Delayed++
		}
		if t.PlannedDate == today {
			out.PlannedToday++
		}
	}
	return out, nil
}

type DelayReportRow struct {
	TaskID     string               `json:"taskId"`
	JobID      string               `json:"jobId"`
	JobTitle   string               `json:"jobTitle,omitempty"`
	RoleName   string               `json:"roleName,omitempty"`
	StageName  string               `json:"stageName,omitempty"`
	DelayDays  int                  `json:"delayDays"`
	Delays     []ledger.DelayRecord `json:"delays"`
}

// DelayReport lists delayed tasks, worst first.
func (s *Service) DelayReport(ctx context.Context) ([]DelayReportRow, error) {
	tasks, err := s.storage.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	var rows []DelayReportRow
	for _, t := range tasks {
		if !t.IsDelayed {
			continue
		}
		rows = append(rows, DelayReportRow{
			TaskID:    t.ID,
			JobID:     t.JobID,
			JobTitle:  t.JobTitle,
			RoleName:  t.RoleName,
			StageName: t.StageName,
			DelayDays: t.TotalDelayDays,
			Delays:    t.Delays,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DelayDays > rows[j].DelayDays
	})
	return rows, nil
}

type TeamLoad struct {
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	Open     int    `json:"open"`
	OnDate   int    `json:"onDate"`
}

// TeamAvailability reports each team's open workload and its commitments
// on a given date, least loaded first.
func (s *Service) TeamAvailability(ctx context.Context, date string) ([]TeamLoad, error) {
	if date == "" {
		date = storage.Today()
	}
	tasks, err := s.storage.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	byTeam := map[string]*TeamLoad{}
	var order []string
	for _, t := range tasks {
		if t.TeamID == "" || t.Status == storage.TaskStatusCompleted {
			continue
		}
		l, ok := byTeam[t.TeamID]
		if !ok {
			l = &TeamLoad{TeamID: t.TeamID, TeamName: t.TeamName}
			byTeam[t.TeamID] = l
			order = append(order, t.TeamID)
		}
		l.Open++
		if t.PlannedDate == date {
			l.OnDate++
		}
	}

	out := make([]TeamLoad, 0, len(order))
	for _, id := range order {
		out = append(out, *byTeam[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OnDate != out[j].OnDate {
			return out[i].OnDate < out[j].OnDate
		}
		return out[i].Open < out[j].Open
	})
	return out, nil
}

func sortTasks(tasks []*storage.AssemblyTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		pi, pj := statusPriority[tasks[i].Status], statusPriority[tasks[j].Status]
		if pi != pj {
			return pi < pj
		}
		return tasks[i].StageOrder < tasks[j].StageOrder
	})
}
