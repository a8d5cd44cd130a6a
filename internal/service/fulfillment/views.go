package fulfillment

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"glazing-backend/internal/ledger"
	"glazing-backend/internal/storage"
)

type ListFilter struct {
	JobID     string
	RoleID    string
	OrderType string
	Status    string
	Supplier  string
	Delayed   bool
	Overdue   bool
}

// ListOrders returns orders matching the filter, newest first.
func (s *Service) ListOrders(ctx context.Context, f ListFilter) ([]*storage.ProductionOrder, error) {
	orders, err := s.storage.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*storage.ProductionOrder, 0, len(orders))
	for _, o := range orders {
		if f.JobID != "" && o.JobID != f.JobID {
			continue
		}
		if f.RoleID != "" && o.RoleID != f.RoleID {
			continue
		}
		if f.OrderType != "" && o.OrderType != f.OrderType {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Supplier != "" && !strings.Contains(strings.ToLower(o.SupplierName), strings.ToLower(f.Supplier)) {
			continue
		}
		if f.Delayed && !o.IsDelayed {
			continue
		}
		if f.Overdue && !IsOverdue(o, storage.Today()) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// IsOverdue reports whether an open order has passed its estimated
// delivery date.
func IsOverdue(o *storage.ProductionOrder, today string) bool {
	if o.Status == storage.OrderStatusCompleted || o.EstimatedDelivery == "" {
		return false
	}
	due := o.EstimatedDelivery
	if len(due) > 10 {
		due = due[:10]
	}
	return due < today
}

type JobOrderSummary struct {
	JobID        string                     `json:"jobId"`
	Orders       []*storage.ProductionOrder `json:"orders"`
	TotalOrders  int                        `json:"totalOrders"`
	Completed    int                        `json:"completed"`
	Pending      int                        `json:"pending"`
	OpenIssues   int                        `json:"openIssues"`
	AllDelivered bool                       `json:"allDelivered"`
}

// OrdersByJob aggregates one job's orders for the job detail screen.
func (s *Service) OrdersByJob(ctx context.Context, jobID string) (*JobOrderSummary, error) {
	var (
		orders []*storage.ProductionOrder
		g, gctx = errgroup.WithContext(ctx)
	)
	g.Go(func() error {
		var err error
		orders, err = s.ListOrders(gctx, ListFilter{JobID: jobID})
		return err
	})
	g.Go(func() error {
		_, err := s.storage.GetJob(gctx, jobID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &JobOrderSummary{JobID: jobID, Orders: orders, TotalOrders: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case storage.OrderStatusCompleted:
			out.Completed++
		case storage.OrderStatusPending, storage.OrderStatusInProgress:
			out.Pending++
		}
		out.OpenIssues += ledger.PendingCount(o.Issues)
	}
	out.AllDelivered = len(orders) > 0 && out.Completed == len(orders)
	return out, nil
}

type Summary struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"byStatus"`
	ByType         map[string]int `json:"byType"`
	OpenIssues     int            `json:"openIssues"`
	Delayed        int            `json:"delayed"`
	Overdue        int            `json:"overdue"`
	TotalDelayDays int            `json:"totalDelayDays"`
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	orders, err := s.storage.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	today := storage.Today()
	out := &Summary{ByStatus: map[string]int{}, ByType: map[string]int{}}
	for _, o := range orders {
		out.Total++
		out.ByStatus[o.Status]++
		out.ByType[o.OrderType]++
		out.OpenIssues += ledger.PendingCount(o.Issues)
		out.TotalDelayDays += o.TotalDelayDays
		if o.IsDelayed {
			out.Delayed++
		}
		if IsOverdue(o, today) {
			out.Overdue++
		}
	}
	return out, nil
}

type Alert struct {
	OrderID      string `json:"orderId"`
	JobID        string `json:"jobId"`
	JobTitle     string `json:"jobTitle,omitempty"`
	Kind         string `json:"kind"`
	Detail       string `json:"detail"`
	SinceDate    string `json:"sinceDate,omitempty"`
	PendingCount int    `json:"pendingCount,omitempty"`
}

// Alerts lists orders needing attention: overdue deliveries and orders
// carrying open defect issues. Sorted overdue first, oldest date first.
func (s *Service) Alerts(ctx context.Context) ([]Alert, error) {
	orders, err := s.storage.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	today := storage.Today()
	var alerts []Alert
	for _, o := range orders {
		if IsOverdue(o, today) {
			alerts = append(alerts, Alert{
				OrderID:   o.ID,
				JobID:     o.JobID,
				JobTitle:  o.JobTitle,
				Kind:      "overdue",
				Detail:    "estimated delivery passed",
				SinceDate: o.EstimatedDelivery,
			})
		}
		if n := ledger.PendingCount(o.Issues); n > 0 {
			alerts = append(alerts, Alert{
				OrderID:      o.ID,
				JobID:        o.JobID,
				JobTitle:     o.JobTitle,
				Kind:         "open_issues",
				Detail:       "unresolved defect issues",
				PendingCount: n,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Kind != alerts[j].Kind {
			return alerts[i].Kind == "overdue"
		}
		return alerts[i].SinceDate < alerts[j].SinceDate
	})
	return alerts, nil
}
