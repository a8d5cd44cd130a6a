package storage

import "glazing-backend/internal/ledger"

// Job start types.
const (
	StartTypeMeasure         = "MEASURE"
	StartTypeCustomerMeasure = "CUSTOMER_MEASURE"
	StartTypeService         = "SERVICE"
	StartTypeArchive         = "ARCHIVE"
)

// Job statuses. The status field only moves through the stage endpoints;
// entry state depends on startType.
const (
	StatusMeasureAppointmentPending = "MEASURE_APPOINTMENT_PENDING"
	StatusMeasureScheduled          = "MEASURE_SCHEDULED"
	StatusMeasureDone               = "MEASURE_DONE"
	StatusCustomerMeasurePending    = "CUSTOMER_MEASURE_PENDING"
	StatusServiceAppointmentPending = "SERVICE_APPOINTMENT_PENDING"
	StatusServiceScheduled          = "SERVICE_SCHEDULED"
	StatusOfferDraft                = "OFFER_DRAFT"
	StatusAgreementComplete         = "AGREEMENT_COMPLETE"
	StatusReadyForProduction        = "READY_FOR_PRODUCTION"
	StatusProduceLater              = "PRODUCE_LATER"
	StatusInProduction              = "IN_PRODUCTION"
	StatusReadyForAssembly          = "READY_FOR_ASSEMBLY"
	StatusReadyForDelivery          = "READY_FOR_DELIVERY"
	StatusInAgreement               = "IN_AGREEMENT"
	StatusAssemblyScheduled         = "ASSEMBLY_SCHEDULED"
	StatusFinancePending            = "FINANCE_PENDING"
	StatusClosed                    = "CLOSED"
	StatusCancelled                 = "CANCELLED"
	StatusNoAgreement               = "NO_AGREEMENT"
	StatusWithdrawn                 = "WITHDRAWN"
	StatusInquiryApproved           = "INQUIRY_APPROVED"
	StatusInquiryRejected           = "INQUIRY_REJECTED"
)

// DeliveryTypeDisassembled marks factory pickup; the assembly stage becomes
// skippable downstream.
const (
	DeliveryTypeAssembled    = "assembled"
	DeliveryTypeDisassembled = "demonte"
)

// Job is one customer fabrication/installation order carrying a single
// status through the full lifecycle. Sub-documents are exclusively owned by
// the job; logs are append-only.
type Job struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
	Status       string `json:"status"`
	StartType    string `json:"startType"`

	Roles []JobRole `json:"roles"`

	Measure    Measure       `json:"measure"`
	Offer      Offer         `json:"offer"`
	Approval   Approval      `json:"approval"`
	Stock      Stock         `json:"stock"`
	Production JobProduction `json:"production"`
	Assembly   Assembly      `json:"assembly"`
	Finance    Finance       `json:"finance"`

	Service map[string]any `json:"service,omitempty"`
	Inquiry *Inquiry       `json:"inquiry,omitempty"`

	EstimatedAssembly        *EstimatedAssembly         `json:"estimatedAssembly,omitempty"`
	EstimatedAssemblyHistory []EstimatedAssemblyChange  `json:"estimatedAssemblyHistory,omitempty"`

	DeliveryType string `json:"deliveryType,omitempty"`

	CancelReason string         `json:"cancelReason,omitempty"`
	CancelNote   string         `json:"cancelNote,omitempty"`
	CancelledAt  string         `json:"cancelledAt,omitempty"`
	Rejection    map[string]any `json:"rejection,omitempty"`

	IsArchive            bool   `json:"isArchive,omitempty"`
	ArchiveDate          string `json:"archiveDate,omitempty"`
	ArchiveCompletedDate string `json:"archiveCompletedDate,omitempty"`
	Notes                string `json:"notes,omitempty"`

	Logs []LogEntry `json:"logs"`

	CreatedAt string `json:"createdAt"`

	// Version is the optimistic-concurrency token kept by the record
	// store, not part of the document.
	Version int64 `json:"-"`
}

type JobRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type LogEntry struct {
	At        string `json:"at"`
	Action    string `json:"action"`
	Note      string `json:"note,omitempty"`
	ActorID   string `json:"actorId,omitempty"`
	ActorName string `json:"actorName,omitempty"`
}

type Measure struct {
	Measurements map[string]any `json:"measurements,omitempty"`
	Appointment  map[string]any `json:"appointment,omitempty"`
	Issues       []ledger.Issue `json:"issues,omitempty"`
	Completed    bool           `json:"completed,omitempty"`
}

type Offer struct {
	Lines              []map[string]any `json:"lines,omitempty"`
	Total              float64          `json:"total,omitempty"`
	Status             string           `json:"status,omitempty"`
	RolePrices         map[string]any   `json:"rolePrices,omitempty"`
	NotifiedDate       string           `json:"notifiedDate,omitempty"`
	AgreedDate         string           `json:"agreedDate,omitempty"`
	NegotiationHistory []map[string]any `json:"negotiationHistory,omitempty"`
	Completed          bool             `json:"completed,omitempty"`
}

// Approval.PaymentPlan values may be plain numbers or objects carrying an
// amount/total field; finance close reads both forms.
type Approval struct {
	Started     bool           `json:"started,omitempty"`
	Completed   bool           `json:"completed,omitempty"`
	PaymentPlan map[string]any `json:"paymentPlan,omitempty"`
	ContractURL string         `json:"contractUrl,omitempty"`
	StockNeeds  []map[string]any `json:"stockNeeds,omitempty"`
	TotalAmount float64        `json:"totalAmount,omitempty"`
	ArchiveDate string         `json:"archiveDate,omitempty"`
}

type Stock struct {
	Ready         bool        `json:"ready"`
	PurchaseNotes string      `json:"purchaseNotes,omitempty"`
	SkipStock     bool        `json:"skipStock,omitempty"`
	Items         []StockItem `json:"items,omitempty"`
	EstimatedDate string      `json:"estimatedDate,omitempty"`
	Completed     bool        `json:"completed,omitempty"`
}

type StockItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProductCode string `json:"productCode,omitempty"`
	ColorCode   string `json:"colorCode,omitempty"`
	Qty         int    `json:"qty"`
	Unit        string `json:"unit,omitempty"`
}

type JobProduction struct {
	Status        string `json:"status,omitempty"`
	Note          string `json:"note,omitempty"`
	AgreementDate string `json:"agreementDate,omitempty"`
	Completed     bool   `json:"completed,omitempty"`
}

type Assembly struct {
	Schedule  *AssemblySchedule   `json:"schedule,omitempty"`
	Complete  *AssemblyCompletion `json:"complete,omitempty"`
	Completed bool                `json:"completed,omitempty"`
	Date      string              `json:"date,omitempty"`
}

type AssemblySchedule struct {
	Date string `json:"date"`
	Note string `json:"note,omitempty"`
	Team string `json:"team,omitempty"`
}

type AssemblyCompletion struct {
	At    string         `json:"at"`
	Proof map[string]any `json:"proof,omitempty"`
}

type Finance struct {
	Closed        bool      `json:"closed,omitempty"`
	Total         float64   `json:"total,omitempty"`
	PrePayments   *Payments `json:"prePayments,omitempty"`
	FinalPayments *Payments `json:"finalPayments,omitempty"`
	Discount      *Discount `json:"discount,omitempty"`
	ClosedAt      string    `json:"closedAt,omitempty"`
}

type Payments struct {
	Cash   float64 `json:"cash"`
	Card   float64 `json:"card"`
	Cheque float64 `json:"cheque"`
}

func (p Payments) Sum() float64 { return p.Cash + p.Card + p.Cheque }

type Discount struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note,omitempty"`
}

type Inquiry struct {
	Decision     string `json:"decision"`
	DecidedAt    string `json:"decidedAt"`
	CancelReason string `json:"cancelReason,omitempty"`
	Note         string `json:"note,omitempty"`
}

// EstimatedAssembly is the date promised to the customer. It lives at the
// job root, not under approval; prior promises are kept in the history
// audit trail.
type EstimatedAssembly struct {
	Date  string `json:"date"`
	Note  string `json:"note,omitempty"`
	SetAt string `json:"setAt,omitempty"`
}

type EstimatedAssemblyChange struct {
	Date      string `json:"date"`
	Note      string `json:"note,omitempty"`
	ChangedAt string `json:"changedAt"`
}
