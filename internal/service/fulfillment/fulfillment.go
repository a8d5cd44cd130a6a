// Package fulfillment tracks receipt of ordered quantities against issued
// production and purchase orders, with defect handling and delay
// accounting. Order status is derived from line receipts and open issues;
// the stored field is only a cache refreshed on every write.
package fulfillment

import (
	"context"
	"fmt"

	"glazing-backend/internal/activity"
	"glazing-backend/internal/ledger"
	"glazing-backend/internal/lib/keylock"
	"glazing-backend/internal/middleware/auth"
	"glazing-backend/internal/storage"
)

type OrderStorage interface {
	GetOrder(ctx context.Context, id string) (*storage.ProductionOrder, error)
	ListOrders(ctx context.Context) ([]*storage.ProductionOrder, error)
	InsertOrder(ctx context.Context, order *storage.ProductionOrder) error
	UpdateOrder(ctx context.Context, order *storage.ProductionOrder) error
	DeleteOrder(ctx context.Context, id string) error

	GetJob(ctx context.Context, id string) (*storage.Job, error)
	FindPersonnel(ctx context.Context, id string) (*storage.Personnel, error)
}

type Service struct {
	storage  OrderStorage
	activity activity.Recorder
	locks    *keylock.KeyLock
}

func NewService(st OrderStorage, rec activity.Recorder) *Service {
	return &Service{storage: st, activity: rec, locks: keylock.New()}
}

var orderTypes = map[string]bool{
	storage.OrderTypeInternal: true,
	storage.OrderTypeExternal: true,
	storage.OrderTypeGlass:    true,
}

// CalculateStatus derives order status from the ledgers: pending while
// nothing has been received, completed only when every line is fully
// received and no issue is open, partial otherwise. A pending issue makes
// the order partial even with zero good pieces received, which also takes
// it out of the deletable set. The explicit in_progress marker survives
// until the first receipt.
func CalculateStatus(order *storage.ProductionOrder) string {
	received := 0
	missing := false
	for _, line := range order.Items {
		received += line.ReceivedQty
		if line.ReceivedQty < line.Quantity {
			missing = true
		}
	}

	if received == 0 && ledger.PendingCount(order.Issues) == 0 {
		if order.Status == storage.OrderStatusInProgress {
			return storage.OrderStatusInProgress
		}
		return storage.OrderStatusPending
	}
	if missing || ledger.PendingCount(order.Issues) > 0 {
		return storage.OrderStatusPartial
	}
	return storage.OrderStatusCompleted
}

type CreateOrderRequest struct {
	JobID             string              `json:"jobId"`
	RoleID            string              `json:"roleId"`
	OrderType         string              `json:"orderType"`
	SupplierID        string              `json:"supplierId,omitempty"`
	SupplierName      string              `json:"supplierName,omitempty"`
	Items             []storage.OrderLine `json:"items"`
	DocumentURL       string              `json:"documentUrl,omitempty"`
	EstimatedDelivery string              `json:"estimatedDelivery,omitempty"`
	PlannedDate       string              `json:"plannedDate,omitempty"`
	Notes             string              `json:"notes,omitempty"`
}

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*storage.ProductionOrder, error) {
	if req.JobID == "" || req.RoleID == "" {
		return nil, storage.Validationf("jobId and roleId are required")
	}
	if !orderTypes[req.OrderType] {
		return nil, storage.Validationf("unknown order type %q", req.OrderType)
	}
	if len(req.Items) == 0 {
		return nil, storage.Validationf("at least one item is required")
	}
	for i, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, storage.Validationf("item %d: quantity must be positive", i)
		}
	}

	job, err := s.storage.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, fmt.Errorf("look up job %s: %w", req.JobID, err)
	}

	roleName := ""
	for _, r := range job.Roles {
		if r.ID == req.RoleID {
			roleName = r.Name
		}
	}

	now := storage.NowISO()
	items := make([]storage.OrderLine, len(req.Items))
	copy(items, req.Items)
	for i := range items {
		items[i].ReceivedQty = 0
		items[i].ProblemQty = 0
	}

	order := &storage.ProductionOrder{
		ID:                storage.NewID("ORD"),
		JobID:             job.ID,
		JobTitle:          job.Title,
		CustomerName:      job.CustomerName,
		RoleID:            req.RoleID,
		RoleName:          roleName,
		OrderType:         req.OrderType,
		SupplierID:        req.SupplierID,
		SupplierName:      req.SupplierName,
		Items:             items,
		DocumentURL:       req.DocumentURL,
		EstimatedDelivery: req.EstimatedDelivery,
		PlannedDate:       req.PlannedDate,
		Notes:             req.Notes,
		Status:            storage.OrderStatusPending,
		Delays:            []ledger.DelayRecord{},
		Issues:            []ledger.Issue{},
		DeliveryHistory:   []storage.DeliveryEvent{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.storage.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	actor := auth.ActorFrom(ctx)
	s.activity.Record(ctx, activity.Event{
		ActorID: actor.ID, ActorName: actor.Name,
		Action: "order_create", TargetType: "order", TargetID: order.ID,
		TargetName: job.Title,
		Details:    fmt.Sprintf("%s order created, %d items", req.OrderType, len(items)),
	})
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*storage.ProductionOrder, error) {
	return s.storage.GetOrder(ctx, id)
}

type UpdateOrderRequest struct {
	SupplierID        ledger.Patch[string]              `json:"supplierId"`
	SupplierName      ledger.Patch[string]              `json:"supplierName"`
	Items             ledger.Patch[[]storage.OrderLine] `json:"items"`
	DocumentURL       ledger.Patch[string]              `json:"documentUrl"`
	EstimatedDelivery ledger.Patch[string]              `json:"estimatedDelivery"`
	Notes             ledger.Patch[string]              `json:"notes"`
}

// UpdateOrder edits head fields while the order is still editable. Once any
// receipt exists, items are frozen; completed orders reject every edit.
func (s *Service) UpdateOrder(ctx context.Context, id string, req UpdateOrderRequest) (*storage.ProductionOrder, error) {
	return s.mutate(ctx, id, func(order *storage.ProductionOrder) error {
		if order.Status == storage.OrderStatusCompleted {
			return storage.Conflictf("completed orders cannot be edited")
		}

		if req.Items.Set() {
			if order.Status != storage.OrderStatusPending && order.Status != storage.OrderStatusInProgress {
				return storage.Conflictf("items cannot change after the first delivery")
			}
			items, _ := req.Items.Get()
			if len(items) == 0 {
				return storage.Validationf("at least one item is required")
			}
			for i, line := range items {
				if line.Quantity <= 0 {
					return storage.Validationf("item %d: quantity must be positive", i)
				}
			}
			for i := range items {
				items[i].ReceivedQty = 0
				items[i].ProblemQty = 0
			}
			order.Items = items
		}

		applyString(&order.SupplierID, req.SupplierID)
		applyString(&order.SupplierName, req.SupplierName)
		applyString(&order.DocumentURL, req.DocumentURL)
		applyString(&order.EstimatedDelivery, req.EstimatedDelivery)
		applyString(&order.Notes, req.Notes)
		return nil
	})
}

// DeleteOrder removes an order that has no receipts yet.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	order, err := s.storage.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != storage.OrderStatusPending && order.Status != storage.OrderStatusInProgress {
		return storage.Conflictf("only orders without receipts can be deleted")
	}
	for _, line := range order.Items {
		if line.ReceivedQty > 0 {
			return storage.Conflictf("only orders without receipts can be deleted")
		}
	}

	if err := s.storage.DeleteOrder(ctx, id); err != nil {
		return err
	}

	actor := auth.ActorFrom(ctx)
	s.activity.Record(ctx, activity.Event{
		ActorID: actor.ID, ActorName: actor.Name,
		Action: "order_delete", TargetType: "order", TargetID: id,
		TargetName: order.JobTitle,
	})
	return nil
}

// StartProduction sets the explicit in_progress marker, the one status
// value a caller may set directly.
func (s *Service) StartProduction(ctx context.Context, id string) (*storage.ProductionOrder, error) {
	return s.mutate(ctx, id, func(order *storage.ProductionOrder) error {
		if order.Status != storage.OrderStatusPending {
			return storage.Conflictf("production can only start on a pending order")
		}
		order.Status = storage.OrderStatusInProgress
		order.ProductionStartedAt = storage.NowISO()
		return nil
	})
}

type PlanUpdateRequest struct {
	PlannedDate       ledger.Patch[string] `json:"plannedDate"`
	EstimatedDelivery ledger.Patch[string] `json:"estimatedDelivery"`
	Note              string               `json:"note,omitempty"`

	DelayReason         string `json:"delayReason,omitempty"`
	ResponsiblePersonID string `json:"responsiblePersonId,omitempty"`
}

// UpdatePlan moves the delivery/planning dates. A forward move is a delay
// and demands a reason plus a responsible person; backward moves and
// clears pass freely.
func (s *Service) UpdatePlan(ctx context.Context, id string, req PlanUpdateRequest) (*storage.ProductionOrder, error) {
	return s.mutate(ctx, id, func(order *storage.ProductionOrder) error {
		if req.EstimatedDelivery.Set() {
			newDate, ok := req.EstimatedDelivery.Get()
			if err := s.shiftDate(ctx, order, order.EstimatedDelivery, newDate, ok, req); err != nil {
				return err
			}
			order.EstimatedDelivery = newDate
		}
		if req.PlannedDate.Set() {
			newDate, ok := req.PlannedDate.Get()
			if err := s.shiftDate(ctx, order, order.PlannedDate, newDate, ok, req); err != nil {
				return err
			}
			order.PlannedDate = newDate
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

// Reschedule moves both planning dates to one new date. The shift is
// measured against the planned date, falling back to the estimated
// delivery; a forward shift goes through the delay ledger.
func (s *Service) Reschedule(ctx context.Context, id string, req RescheduleRequest) (*storage.ProductionOrder, error) {
	if req.NewDate == "" {
		return nil, storage.Validationf("newDate is required")
	}

	return s.mutate(ctx, id, func(order *storage.ProductionOrder) error {
		if order.Status == storage.OrderStatusCompleted {
			return storage.Conflictf("completed orders cannot be rescheduled")
		}

		oldDate := order.PlannedDate
		if oldDate == "" {
			oldDate = order.EstimatedDelivery
		}
		shift := PlanUpdateRequest{
			Note:                req.Note,
			DelayReason:         req.DelayReason,
			ResponsiblePersonID: req.ResponsiblePersonID,
		}
		if err := s.shiftDate(ctx, order, oldDate, req.NewDate, true, shift); err != nil {
			return err
		}
		order.PlannedDate = req.NewDate
		order.EstimatedDelivery = req.NewDate
		return nil
	})
}

// shiftDate appends a delay record when the move is forward from a set
// date.
func (s *Service) shiftDate(ctx context.Context, order *storage.ProductionOrder, oldDate, newDate string, set bool, req PlanUpdateRequest) error {
	if !set || oldDate == "" || newDate <= oldDate {
		return nil
	}

	personName := ""
	if req.ResponsiblePersonID != "" {
		if p, err := s.storage.FindPersonnel(ctx, req.ResponsiblePersonID); err == nil {
			personName = p.Name
		}
	}

	rec, err := ledger.NewDelayRecord(storage.NewID("DLY"), oldDate, newDate,
		req.DelayReason, req.ResponsiblePersonID, personName, req.Note, storage.NowISO())
	if err != nil {
		return storage.Validationf("%s", err.Error())
	}
	order.Delays = append(order.Delays, rec)
	order.TotalDelayDays = ledger.TotalDelayDays(order.Delays)
	order.IsDelayed = true

	actor := auth.ActorFrom(ctx)
	s.activity.Record(ctx, activity.Event{
		ActorID: actor.ID, ActorName: actor.Name,
		Action: "order_delay", TargetType: "order", TargetID: order.ID,
		TargetName: order.JobTitle,
		Details:    fmt.Sprintf("delivery delayed %d days: %s", rec.DelayDays, rec.Reason),
	})
	return nil
}

type DeliveryLine struct {
	LineIndex   int    `json:"lineIndex"`
	ReceivedQty int    `json:"receivedQty"`
	ProblemQty  int    `json:"problemQty,omitempty"`
	ProblemType string `json:"problemType,omitempty"`
	ProblemNote string `json:"problemNote,omitempty"`
}

type DeliveryRequest struct {
	Date        string         `json:"date,omitempty"`
	Note        string         `json:"note,omitempty"`
	DocumentURL string         `json:"documentUrl,omitempty"`
	Deliveries  []DeliveryLine `json:"deliveries"`
}

// RecordDelivery applies one delivery event across lines. The whole request
// is validated before any line mutates, so a bad line rejects the event
// without partial receipt.
func (s *Service) RecordDelivery(ctx context.Context, id string, req DeliveryRequest) (*storage.ProductionOrder, error) {
	if len(req.Deliveries) == 0 {
		return nil, storage.Validationf("at least one delivery line is required")
	}

	return s.mutate(ctx, id, func(order *storage.ProductionOrder) error {
		if order.Status == storage.OrderStatusCompleted {
			return storage.Conflictf("completed orders cannot receive deliveries")
		}

		for i, d := range req.Deliveries {
			if d.LineIndex < 0 || d.LineIndex >= len(order.Items) {
				return storage.Validationf("delivery %d: line index %d out of range", i, d.LineIndex)
			}
			if d.ReceivedQty < 0 || d.ProblemQty < 0 {
				return storage.Validationf("delivery %d: quantities cannot be negative", i)
			}
			if d.ReceivedQty == 0 && d.ProblemQty == 0 {
				return storage.Validationf("delivery %d: empty line", i)
			}
			if d.ProblemQty > 0 && d.ProblemType == "" {
				return storage.Validationf("delivery %d: problem type is required when problemQty > 0", i)
			}
		}

		date := req.Date
		if date == "" {
			date = storage.Today()
		}
		now := storage.NowISO()

		event := storage.DeliveryEvent{
			ID:          storage.NewID("DLV"),
			Date:        date,
			Note:        req.Note,
			DocumentURL: req.DocumentURL,
			Items:       make([]storage.DeliveryEventItem, 0, len(req.Deliveries)),
			CreatedAt:   now,
		}

		for _, d := range req.Deliveries {
			line := &order.Items[d.LineIndex]
			line.ReceivedQty += d.ReceivedQty
			line.ProblemQty += d.ProblemQty

			if d.ProblemQty > 0 {
				idx := d.LineIndex
				order.Issues = append(order.Issues, ledger.Issue{
					ID:        storage.NewID("ISS"),
					LineIndex: &idx,
					Type:      d.ProblemType,
					Item:      line.GlassName,
					Quantity:  d.ProblemQty,
					Note:      d.ProblemNote,
					Status:    ledger.IssueStatusPending,
					History:   []ledger.Resolution{},
					CreatedAt: now,
				})
			}

			event.Items = append(event.Items, storage.DeliveryEventItem{
				LineIndex:   d.LineIndex,
				ReceivedQty: d.ReceivedQty,
				ProblemQty:  d.ProblemQty,
				ProblemType: d.ProblemType,
				ProblemNote: d.ProblemNote,
			})
		}

		order.DeliveryHistory = append(order.DeliveryHistory, event)
		if order.FirstDeliveryAt == "" {
			order.FirstDeliveryAt = date
		}

		order.Status = CalculateStatus(order)
		if order.Status == storage.OrderStatusCompleted && order.ProductionCompletedAt == "" {
			order.ProductionCompletedAt = now
		}

		actor := auth.ActorFrom(ctx)
		s.activity.Record(ctx, activity.Event{
			ActorID: actor.ID, ActorName: actor.Name,
			Action: "order_delivery", TargetType: "order", TargetID: order.ID,
			TargetName: order.JobTitle,
			Details:    fmt.Sprintf("delivery recorded, %d lines, status=%s", len(req.Deliveries), order.Status),
		})
		return nil
	})
}

type ResolveIssueRequest struct {
	Resolution   string `json:"resolution"`
	ResolvedQty  int    `json:"resolvedQty"`
	Note         string `json:"note,omitempty"`
	NewIssueQty  int    `json:"newIssueQty,omitempty"`
	NewIssueType string `json:"newIssueType,omitempty"`
	NewIssueNote string `json:"newIssueNote,omitempty"`
}

// ResolveIssue records one resolution attempt. A defective replacement
// chains a child issue; replaced/credited quantities flow back onto the
// originating line as effective receipts.
func (s *Service) ResolveIssue(ctx context.Context, orderID, issueID string, req ResolveIssueRequest) (*storage.ProductionOrder, error) {
	if !ledger.ValidResolution(req.Resolution) {
		return nil, storage.Validationf("unknown resolution kind %q", req.Resolution)
	}
	if req.ResolvedQty <= 0 {
		return nil, storage.Validationf("resolvedQty must be positive")
	}
	if req.NewIssueQty > 0 && req.NewIssueType == "" {
		return nil, storage.Validationf("newIssueType is required when newIssueQty > 0")
	}

	return s.mutate(ctx, orderID, func(order *storage.ProductionOrder) error {
		issue := ledger.FindIssue(order.Issues, issueID)
		if issue == nil {
			return storage.ErrNotFound
		}
		if issue.Status == ledger.IssueStatusResolved {
			return storage.Conflictf("issue %s is already resolved", issueID)
		}

		lreq := ledger.ResolveRequest{
			Resolution:   req.Resolution,
			ResolvedQty:  req.ResolvedQty,
			Note:         req.Note,
			NewIssueQty:  req.NewIssueQty,
			NewIssueType: req.NewIssueType,
			NewIssueNote: req.NewIssueNote,
			Date:         storage.NowISO(),
			ChildIssueID: storage.NewID("ISS"),
		}
		child, err := ledger.Resolve(issue, lreq)
		if err != nil {
			return storage.Validationf("%s", err.Error())
		}
		if child != nil {
			order.Issues = append(order.Issues, *child)
		}

		if delta := ledger.EffectiveReceivedDelta(lreq); delta > 0 && issue.LineIndex != nil {
			if i := *issue.LineIndex; i >= 0 && i < len(order.Items) {
				order.Items[i].ReceivedQty += delta
			}
		}

		order.Status = CalculateStatus(order)
		if order.Status == storage.OrderStatusCompleted && order.ProductionCompletedAt == "" {
			order.ProductionCompletedAt = storage.NowISO()
		}

		actor := auth.ActorFrom(ctx)
		s.activity.Record(ctx, activity.Event{
			ActorID: actor.ID, ActorName: actor.Name,
			Action: "order_issue_resolve", TargetType: "order", TargetID: order.ID,
			TargetName: order.JobTitle,
			Details:    fmt.Sprintf("issue %s: %s x%d", issueID, req.Resolution, req.ResolvedQty),
		})
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*storage.ProductionOrder) error) (*storage.ProductionOrder, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	order, err := s.storage.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(order); err != nil {
		return nil, err
	}
	order.UpdatedAt = storage.NowISO()
	if err := s.storage.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func applyString(dst *string, p ledger.Patch[string]) {
	if !p.Set() {
		return
	}
	if v, ok := p.Get(); ok {
		*dst = v
	} else {
		*dst = ""
	}
}
