package get

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"glazing-backend/http-server/respond"
	"glazing-backend/internal/service/fulfillment"
	"glazing-backend/internal/storage"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*storage.ProductionOrder, error)
	ListOrders(ctx context.Context, f fulfillment.ListFilter) ([]*storage.ProductionOrder, error)
	OrdersByJob(ctx context.Context, jobID string) (*fulfillment.JobOrderSummary, error)
	Summary(ctx context.Context) (*fulfillment.Summary, error)
	Alerts(ctx context.Context) ([]fulfillment.Alert, error)
}

type FormGenerator interface {
	Generate(ctx context.Context, orderID string) ([]byte, error)
}

func Order(log *slog.Logger, orders OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.get.Order"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.GetOrder(ctx, id)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, order)
	}
}

func Orders(log *slog.Logger, orders OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.get.Orders"

		q := r.URL.Query()
		filter := fulfillment.ListFilter{
			JobID:     q.Get("jobId"),
			RoleID:    q.Get("roleId"),
			OrderType: q.Get("orderType"),
			Status:    q.Get("status"),
			Supplier:  q.Get("supplier"),
			Delayed:   q.Get("delayed") == "true",
			Overdue:   q.Get("overdue") == "true",
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		out, err := orders.ListOrders(ctx, filter)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, out)
	}
}

func OrdersByJob(log *slog.Logger, orders OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.get.OrdersByJob"

		jobID := chi.URLParam(r, "jobId")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		summary, err := orders.OrdersByJob(ctx, jobID)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, summary)
	}
}

func Summary(log *slog.Logger, orders OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.get.Summary"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		summary, err := orders.Summary(ctx)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, summary)
	}
}

func Alerts(log *slog.Logger, orders OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.get.Alerts"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		alerts, err := orders.Alerts(ctx)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, alerts)
	}
}

// OrderForm streams the xlsx order form.
func OrderForm(log *slog.Logger, form FormGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.get.OrderForm"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		data, err := form.Generate(ctx, id)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=order-%s.xlsx", id))
		w.Write(data)
	}
}
