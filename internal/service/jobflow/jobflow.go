// Package jobflow owns the job status field and its stage sub-documents.
// Every transition is endpoint-driven, stage-gated, and appends one log
// entry; no transition is silently dropped.
package jobflow

import (
	"context"
	"fmt"
	"math"

	"glazing-backend/internal/activity"
	"glazing-backend/internal/ledger"
	"glazing-backend/internal/lib/keylock"
	"glazing-backend/internal/middleware/auth"
	"glazing-backend/internal/storage"
)

type JobStorage interface {
	GetJob(ctx context.Context, id string) (*storage.Job, error)
	ListJobs(ctx context.Context) ([]*storage.Job, error)
	InsertJob(ctx context.Context, job *storage.Job) error
	UpdateJob(ctx context.Context, job *storage.Job) error
}

type Service struct {
	storage  JobStorage
	activity activity.Recorder
	locks    *keylock.KeyLock
}

func NewService(st JobStorage, rec activity.Recorder) *Service {
	return &Service{storage: st, activity: rec, locks: keylock.New()}
}

var startStatuses = map[string]string{
	storage.StartTypeMeasure:         storage.StatusMeasureAppointmentPending,
	storage.StartTypeCustomerMeasure: storage.StatusCustomerMeasurePending,
	storage.StartTypeService:         storage.StatusServiceAppointmentPending,
}

// measureStatusOverrides is the fixed allow-list for the operator-driven
// status correction on the measure endpoint. The original honored any value
// here; restricting it keeps corrections inside the measure/offer window.
var measureStatusOverrides = map[string]bool{
	storage.StatusMeasureAppointmentPending: true,
	storage.StatusMeasureScheduled:          true,
	storage.StatusMeasureDone:               true,
	storage.StatusCustomerMeasurePending:    true,
	storage.StatusServiceAppointmentPending: true,
	storage.StatusServiceScheduled:          true,
	storage.StatusOfferDraft:                true,
}

var productionStatuses = map[string]bool{
	storage.StatusInProduction:     true,
	storage.StatusReadyForAssembly: true,
	storage.StatusReadyForDelivery: true,
	storage.StatusInAgreement:      true,
}

var cancelStatuses = map[string]bool{
	storage.StatusCancelled:   true,
	storage.StatusNoAgreement: true,
	storage.StatusWithdrawn:   true,
}

func (s *Service) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	return s.storage.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]*storage.Job, error) {
	return s.storage.ListJobs(ctx)
}

type CreateJobRequest struct {
	CustomerID   string            `json:"customerId"`
	CustomerName string            `json:"customerName"`
	Title        string            `json:"title"`
	StartType    string            `json:"startType"`
	Roles        []storage.JobRole `json:"roles"`

	ServiceNote     string  `json:"serviceNote,omitempty"`
	ServiceFixedFee float64 `json:"serviceFixedFee,omitempty"`

	IsArchive            bool    `json:"isArchive,omitempty"`
	ArchiveDate          string  `json:"archiveDate,omitempty"`
	ArchiveCompletedDate string  `json:"archiveCompletedDate,omitempty"`
	ArchiveTotalAmount   float64 `json:"archiveTotalAmount,omitempty"`
	ArchiveNote          string  `json:"archiveNote,omitempty"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*storage.Job, error) {
	if req.CustomerID == "" {
		return nil, storage.Validationf("customerId is required")
	}
	if req.Title == "" {
		return nil, storage.Validationf("title is required")
	}

	if req.IsArchive || req.StartType == storage.StartTypeArchive {
		return s.createArchiveJob(ctx, req)
	}

	entry, ok := startStatuses[req.StartType]
	if !ok {
		return nil, storage.Validationf("unknown start type %q", req.StartType)
	}

	actor := auth.ActorFrom(ctx)
	job := &storage.Job{
		ID:           storage.NewID("JOB"),
		Title:        req.Title,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Status:       entry,
		StartType:    req.StartType,
		Roles:        req.Roles,
		Logs:         []storage.LogEntry{},
		CreatedAt:    storage.NowISO(),
	}
	if req.StartType == storage.StartTypeService {
		job.Service = map[string]any{
			"note":      req.ServiceNote,
			"fixedFee":  req.ServiceFixedFee,
			"completed": false,
		}
	}
	appendLog(job, "created", fmt.Sprintf("startType=%s", req.StartType), actor)

	if err := s.storage.InsertJob(ctx, job); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Event{
		ActorID: actor.ID, ActorName: actor.Name,
		Action: "job_create", TargetType: "job", TargetID: job.ID,
		TargetName: job.Title,
		Details:    fmt.Sprintf("job created (%s) - customer: %s", req.StartType, req.CustomerName),
	})
	return job, nil
}

// createArchiveJob backfills a historical job: instantiated pre-closed with
// every stage marked complete, bypassing all gates.
func (s *Service) createArchiveJob(ctx context.Context, req CreateJobRequest) (*storage.Job, error) {
	actor := auth.ActorFrom(ctx)
	createdAt := req.ArchiveDate
	if createdAt == "" {
		createdAt = storage.NowISO()
	}

	job := &storage.Job{
		ID:           storage.NewID("JOB"),
		Title:        req.Title,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Status:       storage.StatusClosed,
		StartType:    storage.StartTypeArchive,
		Roles:        req.Roles,
		Measure:      storage.Measure{Completed: true},
		Offer:        storage.Offer{Completed: true, Total: req.ArchiveTotalAmount},
		Approval: storage.Approval{
			Started:     true,
			Completed:   true,
			TotalAmount: req.ArchiveTotalAmount,
			PaymentPlan: map[string]any{"type": "archive"},
			ArchiveDate: req.ArchiveDate,
		},
		Stock:      storage.Stock{Ready: true, Completed: true},
		Production: storage.JobProduction{Status: "completed", Completed: true},
		Assembly:   storage.Assembly{Completed: true, Date: req.ArchiveCompletedDate},
		Finance: storage.Finance{
			Closed: true,
			Total:  req.ArchiveTotalAmount,
		},
		IsArchive:            true,
		ArchiveDate:          req.ArchiveDate,
		ArchiveCompletedDate: req.ArchiveCompletedDate,
		Notes:                req.ArchiveNote,
		Logs:                 []storage.LogEntry{},
		CreatedAt:            createdAt,
	}
	appendLog(job, "archive_created",
		fmt.Sprintf("archive record, amount=%.2f", req.ArchiveTotalAmount), actor)

	if err := s.storage.InsertJob(ctx, job); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Event{
		ActorID: actor.ID, ActorName: actor.Name,
		Action: "job_create", TargetType: "job", TargetID: job.ID,
		TargetName: job.Title,
		Details:    "archive record created - customer: " + req.CustomerName,
	})
	return job, nil
}

type MeasureUpdateRequest struct {
	Measurements ledger.Patch[map[string]any] `json:"measurements"`
	Appointment  ledger.Patch[map[string]any] `json:"appointment"`
	Service      map[string]any               `json:"service,omitempty"`
	Status       string                       `json:"status,omitempty"`
}

// UpdateMeasure merges into the measure sub-document with explicit presence
// semantics: an absent field is untouched, an explicit null clears it.
func (s *Service) UpdateMeasure(ctx context.Context, jobID string, req MeasureUpdateRequest) (*storage.Job, error) {
	if req.Status != "" && !measureStatusOverrides[req.Status] {
		return nil, storage.Validationf("status %q cannot be set from the measure endpoint", req.Status)
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		if req.Measurements.Set() {
			if v, ok := req.Measurements.Get(); ok {
				job.Measure.Measurements = v
			} else {
				job.Measure.Measurements = nil
			}
		}
		if req.Appointment.Set() {
			if v, ok := req.Appointment.Get(); ok {
				job.Measure.Appointment = v
				s.activity.Record(ctx, activity.Event{
					ActorID: actor.ID, ActorName: actor.Name,
					Action: "job_measure_schedule", TargetType: "job", TargetID: job.ID,
					TargetName: job.Title,
					Details:    fmt.Sprintf("measure appointment: %v", v["date"]),
				})
			} else {
				job.Measure.Appointment = nil
			}
		}
		if req.Service != nil {
			job.Service = mergeMap(job.Service, req.Service)
		}

		if req.Status != "" {
			old := job.Status
			job.Status = req.Status
			appendLog(job, "status.updated", fmt.Sprintf("%s -> %s", old, req.Status), actor)
		} else {
			appendLog(job, "measure.updated", "", actor)
		}
		return nil
	})
}

type MeasureIssueRequest struct {
	IssueType           string `json:"issueType"`
	FaultSource         string `json:"faultSource"`
	Description         string `json:"description"`
	ResponsiblePersonID string `json:"responsiblePersonId,omitempty"`
	PhotoURL            string `json:"photoUrl,omitempty"`
}

// ReportMeasureIssue appends to measure.issues; job status is untouched.
func (s *Service) ReportMeasureIssue(ctx context.Context, jobID string, req MeasureIssueRequest) (*storage.Job, error) {
	if req.IssueType == "" {
		return nil, storage.Validationf("issueType is required")
	}
	if req.FaultSource == "" {
		return nil, storage.Validationf("faultSource is required")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		issue := ledger.Issue{
			ID:                  storage.NewID("MI"),
			Type:                req.IssueType,
			FaultSource:         req.FaultSource,
			Note:                req.Description,
			ResponsiblePersonID: req.ResponsiblePersonID,
			PhotoURL:            req.PhotoURL,
			Status:              ledger.IssueStatusPending,
			History:             []ledger.Resolution{},
			CreatedAt:           storage.NowISO(),
		}
		job.Measure.Issues = append(job.Measure.Issues, issue)
		appendLog(job, "measure.issue.reported",
			fmt.Sprintf("issue: %s - %s", req.IssueType, truncate(req.Description, 50)), actor)
		return nil
	})
}

func (s *Service) ResolveMeasureIssue(ctx context.Context, jobID, issueID string) (*storage.Job, error) {
	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		issue := ledger.FindIssue(job.Measure.Issues, issueID)
		if issue == nil {
			return storage.ErrNotFound
		}
		issue.Status = ledger.IssueStatusResolved
		issue.ResolvedAt = storage.NowISO()
		appendLog(job, "measure.issue.resolved", "issue resolved: "+issueID, actor)
		return nil
	})
}

type OfferUpdateRequest struct {
	Lines              []map[string]any `json:"lines"`
	Total              *float64         `json:"total"`
	Status             string           `json:"status,omitempty"`
	RolePrices         map[string]any   `json:"rolePrices,omitempty"`
	NotifiedDate       string           `json:"notifiedDate,omitempty"`
	AgreedDate         string           `json:"agreedDate,omitempty"`
	NegotiationHistory []map[string]any `json:"negotiationHistory,omitempty"`
}

// UpdateOffer replaces the offer wholesale and moves status to the
// caller-supplied offer status.
func (s *Service) UpdateOffer(ctx context.Context, jobID string, req OfferUpdateRequest) (*storage.Job, error) {
	if req.Lines == nil {
		return nil, storage.Validationf("offer lines are required")
	}
	if req.Total == nil {
		return nil, storage.Validationf("offer total is required")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		status := req.Status
		if status == "" {
			status = storage.StatusOfferDraft
		}
		job.Offer = storage.Offer{
			Lines:              req.Lines,
			Total:              *req.Total,
			Status:             status,
			RolePrices:         req.RolePrices,
			NotifiedDate:       req.NotifiedDate,
			AgreedDate:         req.AgreedDate,
			NegotiationHistory: req.NegotiationHistory,
		}
		job.Status = status
		appendLog(job, "offer.updated", "", actor)

		s.activity.Record(ctx, activity.Event{
			ActorID: actor.ID, ActorName: actor.Name,
			Action: "job_offer_update", TargetType: "job", TargetID: job.ID,
			TargetName: job.Title,
			Details:    fmt.Sprintf("offer updated - total: %.2f", *req.Total),
		})
		return nil
	})
}

type ApprovalStartRequest struct {
	PaymentPlan       map[string]any             `json:"paymentPlan"`
	ContractURL       string                     `json:"contractUrl,omitempty"`
	StockNeeds        []map[string]any           `json:"stockNeeds,omitempty"`
	EstimatedAssembly *storage.EstimatedAssembly `json:"estimatedAssembly,omitempty"`
}

// StartApproval requires a payment plan and completes the agreement. The
// estimated assembly date lives on the job root, with prior estimates kept
// in the history trail.
func (s *Service) StartApproval(ctx context.Context, jobID string, req ApprovalStartRequest) (*storage.Job, error) {
	if len(req.PaymentPlan) == 0 {
		return nil, storage.Validationf("paymentPlan is required")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		job.Approval = storage.Approval{
			Started:     true,
			PaymentPlan: req.PaymentPlan,
			ContractURL: req.ContractURL,
			StockNeeds:  req.StockNeeds,
		}
		if req.EstimatedAssembly != nil {
			setEstimatedAssembly(job, req.EstimatedAssembly.Date, req.EstimatedAssembly.Note)
		}
		job.Status = storage.StatusAgreementComplete
		appendLog(job, "approval.started", "", actor)
		return nil
	})
}

type PaymentUpdateRequest struct {
	PaymentPlan map[string]any `json:"paymentPlan"`
}

func (s *Service) UpdatePayment(ctx context.Context, jobID string, req PaymentUpdateRequest) (*storage.Job, error) {
	if len(req.PaymentPlan) == 0 {
		return nil, storage.Validationf("paymentPlan is required")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		job.Approval.PaymentPlan = req.PaymentPlan
		appendLog(job, "payment.updated", "", actor)
		return nil
	})
}

type EstimatedAssemblyRequest struct {
	Date string `json:"date"`
	Note string `json:"note,omitempty"`
}

func (s *Service) UpdateEstimatedAssembly(ctx context.Context, jobID string, req EstimatedAssemblyRequest) (*storage.Job, error) {
	if req.Date == "" {
		return nil, storage.Validationf("date is required")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		setEstimatedAssembly(job, req.Date, req.Note)
		appendLog(job, "estimatedAssembly.updated", req.Date, actor)
		return nil
	})
}

type StockUpdateRequest struct {
	Ready         *bool              `json:"ready"`
	PurchaseNotes string             `json:"purchaseNotes,omitempty"`
	Items         []storage.StockItem `json:"items,omitempty"`
	EstimatedDate string             `json:"estimatedDate,omitempty"`
	SkipStock     bool               `json:"skipStock,omitempty"`
}

// UpdateStock routes to READY_FOR_PRODUCTION (ready or the external
// production bypass) or PRODUCE_LATER (reserved for later).
func (s *Service) UpdateStock(ctx context.Context, jobID string, req StockUpdateRequest) (*storage.Job, error) {
	if req.Ready == nil {
		return nil, storage.Validationf("ready is required")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		job.Stock.Ready = *req.Ready
		job.Stock.PurchaseNotes = req.PurchaseNotes
		job.Stock.SkipStock = req.SkipStock
		if req.Items != nil {
			job.Stock.Items = req.Items
		}
		if req.EstimatedDate != "" {
			job.Stock.EstimatedDate = req.EstimatedDate
		}

		switch {
		case req.SkipStock:
			job.Status = storage.StatusReadyForProduction
			appendLog(job, "stock.skipped", "external production, continued without stock", actor)
		case *req.Ready:
			job.Status = storage.StatusReadyForProduction
			appendLog(job, "stock.updated",
				fmt.Sprintf("ready=true, items=%d", len(req.Items)), actor)
		default:
			job.Status = storage.StatusProduceLater
			appendLog(job, "stock.updated",
				fmt.Sprintf("ready=false, estimatedDate=%s", req.EstimatedDate), actor)
		}
		return nil
	})
}

type ProductionStatusRequest struct {
	Status        string `json:"status"`
	Note          string `json:"note,omitempty"`
	AgreementDate string `json:"agreementDate,omitempty"`
	DeliveryType  string `json:"deliveryType,omitempty"`
}

// UpdateProduction accepts only the production-window statuses.
// READY_FOR_DELIVERY forces disassembled factory pickup, which makes the
// assembly stage skippable downstream.
func (s *Service) UpdateProduction(ctx context.Context, jobID string, req ProductionStatusRequest) (*storage.Job, error) {
	if !productionStatuses[req.Status] {
		return nil, storage.Validationf("status %q is not a production status", req.Status)
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		job.Production = storage.JobProduction{
			Status:        req.Status,
			Note:          req.Note,
			AgreementDate: req.AgreementDate,
		}
		job.Status = req.Status
		if req.DeliveryType != "" {
			job.DeliveryType = req.DeliveryType
		}

		if req.Status == storage.StatusReadyForDelivery {
			job.DeliveryType = storage.DeliveryTypeDisassembled
			appendLog(job, "production.updated", req.Status+" - disassembled, factory pickup", actor)
		} else {
			appendLog(job, "production.updated", req.Status, actor)
		}
		return nil
	})
}

type AssemblyScheduleRequest struct {
	Date string `json:"date"`
	Note string `json:"note,omitempty"`
	Team string `json:"team,omitempty"`
}

func (s *Service) ScheduleAssembly(ctx context.Context, jobID string, req AssemblyScheduleRequest) (*storage.Job, error) {
	if req.Date == "" {
		return nil, storage.Validationf("date is required")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		job.Assembly.Schedule = &storage.AssemblySchedule{
			Date: req.Date,
			Note: req.Note,
			Team: req.Team,
		}
		job.Status = storage.StatusAssemblyScheduled
		appendLog(job, "assembly.scheduled", "", actor)
		return nil
	})
}

type AssemblyCompleteRequest struct {
	Date  string         `json:"date,omitempty"`
	Note  string         `json:"note,omitempty"`
	Team  string         `json:"team,omitempty"`
	Proof map[string]any `json:"proof,omitempty"`
}

// CompleteAssembly records the completion proof and hands the job to
// finance.
func (s *Service) CompleteAssembly(ctx context.Context, jobID string, req AssemblyCompleteRequest) (*storage.Job, error) {
	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		if job.Assembly.Schedule == nil {
			job.Assembly.Schedule = &storage.AssemblySchedule{}
		}
		if req.Date != "" {
			job.Assembly.Schedule.Date = req.Date
		}
		if req.Note != "" {
			job.Assembly.Schedule.Note = req.Note
		}
		if req.Team != "" {
			job.Assembly.Schedule.Team = req.Team
		}
		job.Assembly.Complete = &storage.AssemblyCompletion{
			At:    storage.NowISO(),
			Proof: req.Proof,
		}
		job.Status = storage.StatusFinancePending
		appendLog(job, "assembly.complete", "team="+req.Team, actor)
		return nil
	})
}

type FinanceCloseRequest struct {
	Total    *float64          `json:"total"`
	Payments *storage.Payments `json:"payments"`
	Discount *storage.Discount `json:"discount,omitempty"`
}

// FinanceClose validates the balance law: offer total minus pre-payments,
// final payments and discount must be zero within 0.01. A discount needs a
// note.
func (s *Service) FinanceClose(ctx context.Context, jobID string, req FinanceCloseRequest) (*storage.Job, error) {
	if req.Total == nil {
		return nil, storage.Validationf("total is required")
	}
	if req.Payments == nil {
		return nil, storage.Validationf("payments are required")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		offerTotal := job.Offer.Total

		pre := storage.Payments{
			Cash:   planAmount(job.Approval.PaymentPlan["cash"]),
			Card:   planAmount(job.Approval.PaymentPlan["card"]),
			Cheque: planAmount(job.Approval.PaymentPlan["cheque"]),
		}

		discountAmt := 0.0
		if req.Discount != nil {
			discountAmt = req.Discount.Amount
		}

		balance := round2(offerTotal - (pre.Sum() + req.Payments.Sum() + discountAmt))
		if math.Abs(balance) > 0.01 {
			return storage.Validationf("balance must be 0, difference: %.2f", balance)
		}
		if discountAmt > 0 && (req.Discount == nil || req.Discount.Note == "") {
			return storage.Validationf("discount note is required")
		}

		job.Finance = storage.Finance{
			Closed:        true,
			Total:         offerTotal,
			PrePayments:   &pre,
			FinalPayments: req.Payments,
			Discount:      req.Discount,
			ClosedAt:      storage.NowISO(),
		}
		job.Status = storage.StatusClosed
		appendLog(job, "finance.closed", fmt.Sprintf("balance=%.2f", balance), actor)

		s.activity.Record(ctx, activity.Event{
			ActorID: actor.ID, ActorName: actor.Name,
			Action: "job_complete", TargetType: "job", TargetID: job.ID,
			TargetName: job.Title,
			Details:    fmt.Sprintf("job closed - total: %.2f", offerTotal),
		})
		return nil
	})
}

type StatusUpdateRequest struct {
	Status       string         `json:"status"`
	Service      map[string]any `json:"service,omitempty"`
	Rejection    map[string]any `json:"rejection,omitempty"`
	CancelReason string         `json:"cancelReason,omitempty"`
	CancelNote   string         `json:"cancelNote,omitempty"`
}

// UpdateStatus is the free-form branch transition used for service jobs and
// cancellations. Cancellation statuses require a reason.
func (s *Service) UpdateStatus(ctx context.Context, jobID string, req StatusUpdateRequest) (*storage.Job, error) {
	if req.Status == "" {
		return nil, storage.Validationf("status is required")
	}
	if cancelStatuses[req.Status] && req.CancelReason == "" {
		return nil, storage.Validationf("cancel reason is required")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		old := job.Status

		if cancelStatuses[req.Status] {
			job.CancelReason = req.CancelReason
			job.CancelNote = req.CancelNote
			job.CancelledAt = storage.NowISO()
		}
		job.Status = req.Status

		if req.Service != nil {
			job.Service = mergeMap(job.Service, req.Service)
		}
		if req.Rejection != nil {
			job.Rejection = req.Rejection
		}

		appendLog(job, "status.updated", fmt.Sprintf("%s -> %s", old, req.Status), actor)

		action := "job_status_change"
		details := fmt.Sprintf("status changed: %s -> %s", old, req.Status)
		if cancelStatuses[req.Status] {
			action = "job_cancel"
			details = "job cancelled: " + req.CancelReason
		}
		s.activity.Record(ctx, activity.Event{
			ActorID: actor.ID, ActorName: actor.Name,
			Action: action, TargetType: "job", TargetID: job.ID,
			TargetName: job.Title, Details: details,
		})
		return nil
	})
}

const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

type InquiryDecisionRequest struct {
	Decision     string `json:"decision"`
	CancelReason string `json:"cancelReason,omitempty"`
	Note         string `json:"note,omitempty"`
}

// InquiryDecision records the customer's answer on a price inquiry. Only
// CUSTOMER_MEASURE jobs carry an inquiry, and a price must exist first.
func (s *Service) InquiryDecision(ctx context.Context, jobID string, req InquiryDecisionRequest) (*storage.Job, error) {
	if req.Decision != DecisionApprove && req.Decision != DecisionReject {
		return nil, storage.Validationf("decision must be APPROVE or REJECT")
	}

	return s.mutate(ctx, jobID, func(job *storage.Job, actor auth.Actor) error {
		if job.StartType != storage.StartTypeCustomerMeasure {
			return storage.Validationf("inquiry decisions apply only to customer-measure jobs")
		}
		if job.Offer.Total == 0 {
			return storage.Validationf("a price must be set before the inquiry decision")
		}

		now := storage.NowISO()
		if req.Decision == DecisionApprove {
			job.Status = storage.StatusInquiryApproved
			job.Inquiry = &storage.Inquiry{
				Decision:  DecisionApprove,
				DecidedAt: now,
				Note:      req.Note,
			}
			appendLog(job, "inquiry.approved", "price inquiry approved. "+req.Note, actor)
			return nil
		}

		if req.CancelReason == "" {
			return storage.Validationf("rejection reason is required")
		}
		job.Status = storage.StatusInquiryRejected
		job.Inquiry = &storage.Inquiry{
			Decision:     DecisionReject,
			DecidedAt:    now,
			CancelReason: req.CancelReason,
			Note:         req.Note,
		}
		appendLog(job, "inquiry.rejected",
			fmt.Sprintf("price inquiry rejected. reason: %s. %s", req.CancelReason, req.Note), actor)
		return nil
	})
}

// mutate runs one read-modify-write cycle under the per-job lock.
func (s *Service) mutate(ctx context.Context, jobID string, fn func(*storage.Job, auth.Actor) error) (*storage.Job, error) {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := fn(job, auth.ActorFrom(ctx)); err != nil {
		return nil, err
	}
	if err := s.storage.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func appendLog(job *storage.Job, action, note string, actor auth.Actor) {
	job.Logs = append(job.Logs, storage.LogEntry{
		At:        storage.NowISO(),
		Action:    action,
		Note:      note,
		ActorID:   actor.ID,
		ActorName: actor.Name,
	})
}

func setEstimatedAssembly(job *storage.Job, date, note string) {
	if prev := job.EstimatedAssembly; prev != nil && prev.Date != "" {
		job.EstimatedAssemblyHistory = append(job.EstimatedAssemblyHistory,
			storage.EstimatedAssemblyChange{
				Date:      prev.Date,
				Note:      prev.Note,
				ChangedAt: storage.NowISO(),
			})
	}
	job.EstimatedAssembly = &storage.EstimatedAssembly{
		Date:  date,
		Note:  note,
		SetAt: storage.NowISO(),
	}
}

func mergeMap(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// planAmount reads a payment plan value that may be a plain number or an
// object carrying amount/total.
func planAmount(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case int:
		return float64(val)
	case map[string]any:
		if a, ok := val["amount"]; ok {
			return planAmount(a)
		}
		if t, ok := val["total"]; ok {
			return planAmount(t)
		}
		return 0
	default:
		return 0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
