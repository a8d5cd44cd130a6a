// Package installation gates on-site completion of assembly stages with
// mandatory photographic evidence, customer signatures and issue/delay
// accounting.
package installation

import (
	"context"
	"fmt"

	"glazing-backend/internal/activity"
	"glazing-backend/internal/ledger"
	"glazing-backend/internal/lib/keylock"
	"glazing-backend/internal/middleware/auth"
	"glazing-backend/internal/storage"
)

type TaskStorage interface {
	GetTask(ctx context.Context, id string) (*storage.AssemblyTask, error)
	ListTasks(ctx context.Context) ([]*storage.AssemblyTask, error)
	InsertTask(ctx context.Context, task *storage.AssemblyTask) error
	UpdateTask(ctx context.Context, task *storage.AssemblyTask) error

	GetJob(ctx context.Context, id string) (*storage.Job, error)
	GetRoleConfig(ctx context.Context, roleID string) (*storage.RoleConfig, error)
	FindPersonnel(ctx context.Context, id string) (*storage.Personnel, error)

	// InsertOrderWithTask persists a replacement order and the updated
	// task in one transaction.
	InsertOrderWithTask(ctx context.Context, order *storage.ProductionOrder, task *storage.AssemblyTask) error
}

type Service struct {
	storage  TaskStorage
	activity activity.Recorder
	locks    *keylock.KeyLock
}

func NewService(st TaskStorage, rec activity.Recorder) *Service {
	return &Service{storage: st, activity: rec, locks: keylock.New()}
}

func (s *Service) GetTask(ctx context.Context, id string) (*storage.AssemblyTask, error) {
	return s.storage.GetTask(ctx, id)
}

type CreateTaskRequest struct {
	JobID         string   `json:"jobId"`
	RoleID        string   `json:"roleId"`
	StageID       string   `json:"stageId"`
	StageName     string   `json:"stageName,omitempty"`
	StageOrder    int      `json:"stageOrder"`
	EstimatedDate string   `json:"estimatedDate,omitempty"`
	PlannedDate   string   `json:"plannedDate,omitempty"`
	TeamID        string   `json:"teamId,omitempty"`
	TeamName      string   `json:"teamName,omitempty"`
	Personnel     []string `json:"personnel,omitempty"`
	Note          string   `json:"note,omitempty"`
	Location      string   `json:"location,omitempty"`
	CustomerPhone string   `json:"customerPhone,omitempty"`
}

func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (*storage.AssemblyTask, error) {
	if req.JobID == "" || req.RoleID == "" || req.StageID == "" {
		return nil, storage.Validationf("jobId, roleId and stageId are required")
	}

	job, err := s.storage.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, fmt.Errorf("look up job %s: %w", req.JobID, err)
	}

	task := s.newTask(job, req.RoleID, roleName(job, req.RoleID), req.StageID, req.StageName, req.StageOrder)
	task.EstimatedDate = req.EstimatedDate
	task.PlannedDate = req.PlannedDate
	task.TeamID = req.TeamID
	task.TeamName = req.TeamName
	task.Note = req.Note
	task.Location = req.Location
	task.CustomerPhone = req.CustomerPhone
	if req.Personnel != nil {
		task.AssignedPersonnel = req.Personnel
	}
	if req.PlannedDate != "" {
		task.Status = storage.TaskStatusPlanned
	}

	if err := s.storage.InsertTask(ctx, task); err != nil {
		return nil, err
	}

	actor := auth.ActorFrom(ctx)
	s.activity.Record(ctx, activity.Event{
		ActorID: actor.ID, ActorName: actor.Name,
		Action: "task_create", TargetType: "task", TargetID: task.ID,
		TargetName: job.Title,
		Details:    fmt.Sprintf("assembly task created: %s / %s", task.RoleName, task.StageName),
	})
	return task, nil
}

// CreateForJob generates tasks from the job's roles crossed with each
// role's configured stage sequence. Existing (job, role, stage) triples are
// skipped, so the call is idempotent.
func (s *Service) CreateForJob(ctx context.Context, jobID string) ([]*storage.AssemblyTask, error) {
	job, err := s.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	existing, err := s.storage.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, t := range existing {
		if t.JobID == jobID {
			seen[t.RoleID+"/"+t.StageID] = true
		}
	}

	var created []*storage.AssemblyTask
	for _, role := range job.Roles {
		cfg, err := s.storage.GetRoleConfig(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("role config %s: %w", role.ID, err)
		}
		for _, stage := range cfg.AssemblyStages {
			if seen[role.ID+"/"+stage.ID] {
				continue
			}
			task := s.newTask(job, role.ID, role.Name, stage.ID, stage.Name, stage.Order)
			if err := s.storage.InsertTask(ctx, task); err != nil {
				return nil, err
			}
			created = append(created, task)
		}
	}

	if len(created) > 0 {
		actor := auth.ActorFrom(ctx)
		s.activity.Record(ctx, activity.Event{
			ActorID: actor.ID, ActorName: actor.Name,
			Action: "task_bulk_create", TargetType: "job", TargetID: jobID,
			TargetName: job.Title,
			Details:    fmt.Sprintf("%d assembly tasks generated", len(created)),
		})
	}
	return created, nil
}

func (s *Service) newTask(job *storage.Job, roleID, roleName, stageID, stageName string, order int) *storage.AssemblyTask {
	now := storage.NowISO()
	return &storage.AssemblyTask{
		ID:                storage.NewID("TSK"),
		JobID:             job.ID,
		RoleID:            roleID,
		RoleName:          roleName,
		StageID:           stageID,
		StageName:         stageName,
		StageOrder:        order,
		JobTitle:          job.Title,
		CustomerName:      job.CustomerName,
		EstimatedDate:     estimatedDate(job),
		Status:            storage.TaskStatusPending,
		AssignedPersonnel: []string{},
		Photos:            storage.TaskPhotos{Before: []string{}, After: []string{}},
		Issues:            []ledger.Issue{},
		Delays:            []ledger.DelayRecord{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

type UpdateTaskRequest struct {
	PlannedDate ledger.Patch[string]   `json:"plannedDate"`
	TeamID      ledger.Patch[string]   `json:"teamId"`
	TeamName    ledger.Patch[string]   `json:"teamName"`
	Personnel   ledger.Patch[[]string] `json:"personnel"`
	Note        ledger.Patch[string]   `json:"note"`

	DelayReason         string `json:"delayReason,omitempty"`
	ResponsiblePersonID string `json:"responsiblePersonId,omitempty"`
}

// UpdateTask edits planning fields. Setting a planned date promotes a
// pending task to planned; clearing it demotes back. A forward date move is
// a delay and needs justification.
func (s *Service) UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*storage.AssemblyTask, error) {
	return s.mutate(ctx, id, func(task *storage.AssemblyTask) error {
		if task.Status == storage.TaskStatusCompleted {
			return storage.Conflictf("completed tasks cannot be edited")
		}

		if req.PlannedDate.Set() {
			newDate, ok := req.PlannedDate.Get()
			if ok && task.PlannedDate != "" && newDate > task.PlannedDate {
				if err := s.appendDelay(ctx, task, task.PlannedDate, newDate,
					req.DelayReason, req.ResponsiblePersonID, ""); err != nil {
					return err
				}
			}
			if ok {
				task.PlannedDate = newDate
				if task.Status == storage.TaskStatusPending {
					task.Status = storage.TaskStatusPlanned
				}
			} else {
				task.PlannedDate = ""
				if task.Status == storage.TaskStatusPlanned {
					task.Status = storage.TaskStatusPending
				}
			}
		}

		if req.TeamID.Set() {
			task.TeamID, _ = req.TeamID.Get()
		}
		if req.TeamName.Set() {
			task.TeamName, _ = req.TeamName.Get()
		}
		if req.Personnel.Set() {
			if v, ok := req.Personnel.Get(); ok {
				task.AssignedPersonnel = v
			} else {
				task.AssignedPersonnel = []string{}
			}
		}
		if req.Note.Set() {
			task.Note, _ = req.Note.Get()
		}
		return nil
	})
}

// StartTask marks work begun on site.
func (s *Service) StartTask(ctx context.Context, id string) (*storage.AssemblyTask, error) {
	return s.mutate(ctx, id, func(task *storage.AssemblyTask) error {
		switch task.Status {
		case storage.TaskStatusCompleted:
			return storage.Conflictf("task is already completed")
		case storage.TaskStatusBlocked:
			return storage.Conflictf("blocked tasks cannot start until their issues are resolved")
		}
		task.Status = storage.TaskStatusInProgress
		if task.StartedAt == "" {
			task.StartedAt = storage.NowISO()
		}
		return nil
	})
}

type CompleteTaskRequest struct {
	PhotosBefore      []string `json:"photosBefore"`
	PhotosAfter       []string `json:"photosAfter"`
	CustomerSignature string   `json:"customerSignature,omitempty"`
	CompletedByID     string   `json:"completedById,omitempty"`
	Note              string   `json:"note,omitempty"`
}

// CompleteTask closes one stage. Gates: no pending issue, before and after
// photos present, and the last stage of a (job, role) pair additionally
// needs the customer's signature. Photo arrays append, never replace.
func (s *Service) CompleteTask(ctx context.Context, id string, req CompleteTaskRequest) (*storage.AssemblyTask, error) {
	return s.mutate(ctx, id, func(task *storage.AssemblyTask) error {
		if task.Status == storage.TaskStatusCompleted {
			return storage.Conflictf("task is already completed")
		}

		last, err := s.isLastStage(ctx, task)
		if err != nil {
			return err
		}
		if err := completionGates(task, req, last); err != nil {
			return err
		}

		applyCompletion(task, req, storage.NowISO())

		actor := auth.ActorFrom(ctx)
		s.activity.Record(ctx, activity.Event{
			ActorID: actor.ID, ActorName: actor.Name,
			Action: "task_complete", TargetType: "task", TargetID: task.ID,
			TargetName: task.JobTitle,
			Details:    fmt.Sprintf("stage completed: %s / %s", task.RoleName, task.StageName),
		})
		return nil
	})
}

// CompleteAll is the retail shortcut closing every open task of a job at
// once. All gates are checked across all tasks before any task mutates;
// one bad task rejects the whole call.
func (s *Service) CompleteAll(ctx context.Context, jobID string, req CompleteTaskRequest) ([]*storage.AssemblyTask, error) {
	unlock := s.locks.Lock("job/" + jobID)
	defer unlock()

	if _, err := s.storage.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	all, err := s.storage.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	var open []*storage.AssemblyTask
	for _, t := range all {
		if t.JobID == jobID && t.Status != storage.TaskStatusCompleted {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return nil, storage.Conflictf("job has no open tasks")
	}

	for _, t := range open {
		if err := completionGates(t, req, true); err != nil {
			return nil, err
		}
	}

	now := storage.NowISO()
	for _, t := range open {
		applyCompletion(t, req, now)
		if err := s.storage.UpdateTask(ctx, t); err != nil {
			return nil, err
		}
	}

	actor := auth.ActorFrom(ctx)
	s.activity.Record(ctx, activity.Event{
		ActorID: actor.ID, ActorName: actor.Name,
		Action: "task_complete_all", TargetType: "job", TargetID: jobID,
		TargetName: open[0].JobTitle,
		Details:    fmt.Sprintf("%d assembly tasks completed", len(open)),
	})
	return open, nil
}

func completionGates(task *storage.AssemblyTask, req CompleteTaskRequest, needSignature bool) error {
	if ledger.PendingCount(task.Issues) > 0 {
		return storage.Validationf("task %s has unresolved issues", task.ID)
	}
	if len(task.Photos.Before)+len(req.PhotosBefore) == 0 {
		return storage.Validationf("before photos required")
	}
	if len(task.Photos.After)+len(req.PhotosAfter) == 0 {
		return storage.Validationf("after photos required")
	}
	if needSignature && task.CustomerSignature == "" && req.CustomerSignature == "" {
		return storage.Validationf("customer signature required")
	}
	return nil
}

func applyCompletion(task *storage.AssemblyTask, req CompleteTaskRequest, now string) {
	task.Photos.Before = append(task.Photos.Before, req.PhotosBefore...)
	task.Photos.After = append(task.Photos.After, req.PhotosAfter...)
	if req.CustomerSignature != "" {
		task.CustomerSignature = req.CustomerSignature
	}
	if req.CompletedByID != "" {
		task.CompletedByPersonID = req.CompletedByID
	}
	if req.Note != "" {
		task.Note = req.Note
	}
	if task.StartedAt == "" {
		task.StartedAt = now
	}
	task.Status = storage.TaskStatusCompleted
	task.CompletedAt = now
	task.UpdatedAt = now
}

// isLastStage reports whether no sibling task of the same (job, role) pair
// has a higher stage order.
func (s *Service) isLastStage(ctx context.Context, task *storage.AssemblyTask) (bool, error) {
	all, err := s.storage.ListTasks(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range all {
		if t.JobID == task.JobID && t.RoleID == task.RoleID && t.StageOrder > task.StageOrder {
			return false, nil
		}
	}
	return true, nil
}

type ReportIssueRequest struct {
	IssueType           string `json:"issueType"`
	Quantity            int    `json:"quantity"`
	Item                string `json:"item,omitempty"`
	FaultSource         string `json:"faultSource,omitempty"`
	ResponsiblePersonID string `json:"responsiblePersonId,omitempty"`
	PhotoURL            string `json:"photoUrl,omitempty"`
	Note                string `json:"note,omitempty"`

	// CreateReplacementOrder spawns a glass production order pre-filled
	// with the defective quantity, linked back to this issue.
	CreateReplacementOrder bool   `json:"createReplacementOrder,omitempty"`
	GlassType              string `json:"glassType,omitempty"`
	Unit                   string `json:"unit,omitempty"`
}

// ReportIssue appends an issue and blocks the task. When a replacement
// order is requested, the order insert and the task update commit in one
// transaction.
func (s *Service) ReportIssue(ctx context.Context, id string, req ReportIssueRequest) (*storage.AssemblyTask, error) {
	if req.IssueType == "" {
		return nil, storage.Validationf("issueType is required")
	}
	if req.CreateReplacementOrder && req.Quantity <= 0 {
		return nil, storage.Validationf("a replacement order needs a positive quantity")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	task, err := s.storage.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == storage.TaskStatusCompleted {
		return nil, storage.Conflictf("completed tasks cannot take new issues")
	}

	now := storage.NowISO()
	issue := ledger.Issue{
		ID:                  storage.NewID("ISS"),
		Type:                req.IssueType,
		Item:                req.Item,
		Quantity:            req.Quantity,
		FaultSource:         req.FaultSource,
		ResponsiblePersonID: req.ResponsiblePersonID,
		PhotoURL:            req.PhotoURL,
		Note:                req.Note,
		Status:              ledger.IssueStatusPending,
		History:             []ledger.Resolution{},
		CreatedAt:           now,
	}

	var order *storage.ProductionOrder
	if req.CreateReplacementOrder {
		order = &storage.ProductionOrder{
			ID:           storage.NewID("ORD"),
			JobID:        task.JobID,
			JobTitle:     task.JobTitle,
			CustomerName: task.CustomerName,
			RoleID:       task.RoleID,
			RoleName:     task.RoleName,
			OrderType:    storage.OrderTypeGlass,
			Items: []storage.OrderLine{{
				GlassType:       req.GlassType,
				GlassName:       req.Item,
				Quantity:        req.Quantity,
				Unit:            orDefault(req.Unit, "pcs"),
				Notes:           req.Note,
				IsReplacement:   true,
				OriginalIssueID: issue.ID,
			}},
			Status:          storage.OrderStatusPending,
			Notes:           fmt.Sprintf("replacement for assembly issue %s", issue.ID),
			Delays:          []ledger.DelayRecord{},
			Issues:          []ledger.Issue{},
			DeliveryHistory: []storage.DeliveryEvent{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		issue.ReplacementOrderID = order.ID
	}

	task.Issues = append(task.Issues, issue)
	task.Status = storage.TaskStatusBlocked
	task.UpdatedAt = now

	if order != nil {
		err = s.storage.InsertOrderWithTask(ctx, order, task)
	} else {
		err = s.storage.UpdateTask(ctx, task)
	}
	if err != nil {
		return nil, err
	}

	actor := auth.ActorFrom(ctx)
	details := fmt.Sprintf("issue reported: %s", req.IssueType)
	if order != nil {
		details += ", replacement order " + order.ID
	}
	s.activity.Record(ctx, activity.Event{
		ActorID: actor.ID, ActorName: actor.Name,
		Action: "task_issue", TargetType: "task", TargetID: task.ID,
		TargetName: task.JobTitle, Details: details,
	})
	return task, nil
}

// ResolveIssue marks a task issue resolved. When no pending issue remains
// the task reverts to where it was before blocking, never straight to
// completed.
func (s *Service) ResolveIssue(ctx context.Context, taskID, issueID, note string) (*storage.AssemblyTask, error) {
	return s.mutate(ctx, taskID, func(task *storage.AssemblyTask) error {
		issue := ledger.FindIssue(task.Issues, issueID)
		if issue == nil {
			return storage.ErrNotFound
		}
		if issue.Status == ledger.IssueStatusResolved {
			return storage.Conflictf("issue %s is already resolved", issueID)
		}

		now := storage.NowISO()
		issue.Status = ledger.IssueStatusResolved
		issue.ResolvedAt = now
		issue.History = append(issue.History, ledger.Resolution{
			Date:        now,
			Resolution:  ledger.ResolutionReplaced,
			ResolvedQty: issue.Quantity,
			Note:        note,
		})

		if task.Status == storage.TaskStatusBlocked && ledger.PendingCount(task.Issues) == 0 {
			if task.StartedAt != "" {
				task.Status = storage.TaskStatusInProgress
			} else {
				task.Status = storage.TaskStatusPlanned
			}
		}
		return nil
	})
}

type RescheduleRequest struct {
	NewDate             string `json:"newDate"`
	DelayReason         string `json:"delayReason,omitempty"`
	ResponsiblePersonID string `json:"responsiblePersonId,omitempty"`
	Note                string `json:"note,omitempty"`
}

// Reschedule moves the planned date. Forward moves go through the delay
// ledger, backward moves pass freely.
func (s *Service) Reschedule(ctx context.Context, id string, req RescheduleRequest) (*storage.AssemblyTask, error) {
	if req.NewDate == "" {
		return nil, storage.Validationf("newDate is required")
	}

	return s.mutate(ctx, id, func(task *storage.AssemblyTask) error {
		if task.Status == storage.TaskStatusCompleted {
			return storage.Conflictf("completed tasks cannot be rescheduled")
		}

		if task.PlannedDate != "" && req.NewDate > task.PlannedDate {
			if err := s.appendDelay(ctx, task, task.PlannedDate, req.NewDate,
				req.DelayReason, req.ResponsiblePersonID, req.Note); err != nil {
				return err
			}
		}
		task.PlannedDate = req.NewDate
		if task.Status == storage.TaskStatusPending {
			task.Status = storage.TaskStatusPlanned
		}
		return nil
	})
}

type RecordDelayRequest struct {
	OriginalDate        string `json:"originalDate"`
	NewDate             string `json:"newDate"`
	Reason              string `json:"reason"`
	ResponsiblePersonID string `json:"responsiblePersonId"`
	Note                string `json:"note,omitempty"`
}

// RecordDelay appends a justified delay against an explicit date pair and
// moves the planned date. The new date must fall after the original one.
func (s *Service) RecordDelay(ctx context.Context, id string, req RecordDelayRequest) (*storage.AssemblyTask, error) {
	return s.mutate(ctx, id, func(task *storage.AssemblyTask) error {
		if task.Status == storage.TaskStatusCompleted {
			return storage.Conflictf("completed tasks cannot be rescheduled")
		}

		if err := s.appendDelay(ctx, task, req.OriginalDate, req.NewDate,
			req.Reason, req.ResponsiblePersonID, req.Note); err != nil {
			return err
		}
		task.PlannedDate = req.NewDate
		if task.Status == storage.TaskStatusPending {
			task.Status = storage.TaskStatusPlanned
		}
		return nil
	})
}

func (s *Service) appendDelay(ctx context.Context, task *storage.AssemblyTask, oldDate, newDate, reason, personID, note string) error {
	personName := ""
	if personID != "" {
		if p, err := s.storage.FindPersonnel(ctx, personID); err == nil {
			personName = p.Name
		}
	}

	rec, err := ledger.NewDelayRecord(storage.NewID("DLY"), oldDate, newDate,
		reason, personID, personName, note, storage.NowISO())
	if err != nil {
		return storage.Validationf("%s", err.Error())
	}
	task.Delays = append(task.Delays, rec)
	task.TotalDelayDays = ledger.TotalDelayDays(task.Delays)
	task.IsDelayed = true

	actor := auth.ActorFrom(ctx)
	s.activity.Record(ctx, activity.Event{
		ActorID: actor.ID, ActorName: actor.Name,
		Action: "task_delay", TargetType: "task", TargetID: task.ID,
		TargetName: task.JobTitle,
		Details:    fmt.Sprintf("rescheduled %d days later: %s", rec.DelayDays, rec.Reason),
	})
	return nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*storage.AssemblyTask) error) (*storage.AssemblyTask, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	task, err := s.storage.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(task); err != nil {
		return nil, err
	}
	task.UpdatedAt = storage.NowISO()
	if err := s.storage.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func roleName(job *storage.Job, roleID string) string {
	for _, r := range job.Roles {
		if r.ID == roleID {
			return r.Name
		}
	}
	return ""
}

func estimatedDate(job *storage.Job) string {
	if job.EstimatedAssembly != nil {
		return job.EstimatedAssembly.Date
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
