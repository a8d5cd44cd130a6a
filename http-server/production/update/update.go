package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"glazing-backend/http-server/respond"
	"glazing-backend/internal/service/fulfillment"
	"glazing-backend/internal/storage"
)

type OrderUpdater interface {
	UpdateOrder(ctx context.Context, id string, req fulfillment.UpdateOrderRequest) (*storage.ProductionOrder, error)
	UpdatePlan(ctx context.Context, id string, req fulfillment.PlanUpdateRequest) (*storage.ProductionOrder, error)
}

func Order(log *slog.Logger, orders OrderUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.update.Order"

		id := chi.URLParam(r, "id")

		var req fulfillment.UpdateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.UpdateOrder(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, order)
	}
}

// Plan moves the planning dates; forward moves must justify the delay.
func Plan(log *slog.Logger, orders OrderUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.update.Plan"

		id := chi.URLParam(r, "id")

		var req fulfillment.PlanUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.UpdatePlan(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, order)
	}
}
