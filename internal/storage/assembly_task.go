package storage

import "glazing-backend/internal/ledger"

// Task statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusPlanned    = "planned"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusBlocked    = "blocked"
)

// AssemblyTask is one on-site installation stage of one role of one job.
// Completion is gated on photographic proof, resolved issues and, for the
// last stage of a role, the customer signature.
type AssemblyTask struct {
	ID         string `json:"id"`
	JobID      string `json:"jobId"`
	RoleID     string `json:"roleId"`
	RoleName   string `json:"roleName,omitempty"`
	StageID    string `json:"stageId"`
	StageName  string `json:"stageName,omitempty"`
	StageOrder int    `json:"stageOrder"`

	JobTitle      string `json:"jobTitle,omitempty"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	Location      string `json:"location,omitempty"`

	EstimatedDate string `json:"estimatedDate,omitempty"`
	PlannedDate   string `json:"plannedDate,omitempty"`
	StartedAt     string `json:"startedAt,omitempty"`
	CompletedAt   string `json:"completedAt,omitempty"`

	TeamID            string   `json:"teamId,omitempty"`
	TeamName          string   `json:"teamName,omitempty"`
	AssignedPersonnel []string `json:"assignedPersonnel"`

	Status string `json:"status"`
	Note   string `json:"note,omitempty"`

	CompletedByPersonID string `json:"completedByPersonId,omitempty"`

	Photos            TaskPhotos `json:"photos"`
	CustomerSignature string     `json:"customerSignature,omitempty"`

	Issues         []ledger.Issue       `json:"issues"`
	Delays         []ledger.DelayRecord `json:"delays"`
	TotalDelayDays int                  `json:"totalDelayDays"`
	IsDelayed      bool                 `json:"isDelayed"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`

	Version int64 `json:"-"`
}

type TaskPhotos struct {
	Before []string `json:"before"`
	After  []string `json:"after"`
}
