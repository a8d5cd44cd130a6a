package storage

import "glazing-backend/internal/ledger"

// Order types.
const (
	OrderTypeInternal = "internal"
	OrderTypeExternal = "external"
	OrderTypeGlass    = "glass"
)

// Order statuses. Except for the explicit in_progress marker set by the
// start-production action, status is always derived from line receipts and
// open issues.
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusPartial    = "partial"
	OrderStatusCompleted  = "completed"
)

// ProductionOrder tracks receipt of ordered quantities for one role of one
// job, with defect and delay ledgers.
type ProductionOrder struct {
	ID           string `json:"id"`
	JobID        string `json:"jobId"`
	JobTitle     string `json:"jobTitle,omitempty"`
	CustomerName string `json:"customerName,omitempty"`
	RoleID       string `json:"roleId"`
	RoleName     string `json:"roleName,omitempty"`
	OrderType    string `json:"orderType"`
	SupplierID   string `json:"supplierId,omitempty"`
	SupplierName string `json:"supplierName,omitempty"`

	Items []OrderLine `json:"items"`

	DocumentURL       string `json:"documentUrl,omitempty"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
	PlannedDate       string `json:"plannedDate,omitempty"`
	Notes             string `json:"notes,omitempty"`

	Status string `json:"status"`

	ProductionStartedAt   string `json:"productionStartedAt,omitempty"`
	ProductionCompletedAt string `json:"productionCompletedAt,omitempty"`
	FirstDeliveryAt       string `json:"firstDeliveryAt,omitempty"`

	Delays         []ledger.DelayRecord `json:"delays"`
	TotalDelayDays int                  `json:"totalDelayDays"`
	IsDelayed      bool                 `json:"isDelayed"`

	Issues          []ledger.Issue  `json:"issues"`
	DeliveryHistory []DeliveryEvent `json:"deliveryHistory"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`

	Version int64 `json:"-"`
}

// OrderLine is one ordered item. ReceivedQty may legally exceed Quantity
// when a replacement resolution over-delivers.
type OrderLine struct {
	GlassType       string `json:"glassType,omitempty"`
	GlassName       string `json:"glassName,omitempty"`
	Quantity        int    `json:"quantity"`
	Unit            string `json:"unit"`
	Combination     string `json:"combination,omitempty"`
	Notes           string `json:"notes,omitempty"`
	ReceivedQty     int    `json:"receivedQty"`
	ProblemQty      int    `json:"problemQty"`
	IsReplacement   bool   `json:"isReplacement,omitempty"`
	OriginalIssueID string `json:"originalIssueId,omitempty"`
}

// DeliveryEvent is one delivery touching one or more lines.
type DeliveryEvent struct {
	ID          string              `json:"id"`
	Date        string              `json:"date"`
	Note        string              `json:"note,omitempty"`
	DocumentURL string              `json:"documentUrl,omitempty"`
	Items       []DeliveryEventItem `json:"items"`
	CreatedAt   string              `json:"createdAt"`
}

type DeliveryEventItem struct {
	LineIndex   int    `json:"lineIndex"`
	ReceivedQty int    `json:"receivedQty"`
	ProblemQty  int    `json:"problemQty"`
	ProblemType string `json:"problemType,omitempty"`
	ProblemNote string `json:"problemNote,omitempty"`
}
