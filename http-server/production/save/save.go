package save

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

type OrderWriter interface {
	CreateOrder(ctx context.Context, req fulfillment.CreateOrderRequest) (*storage.ProductionOrder, error)
	DeleteOrder(ctx context.Context, id string) error
	StartProduction(ctx context.Context, id string) (*storage.ProductionOrder, error)
	RecordDelivery(ctx context.Context, id string, req fulfillment.DeliveryRequest) (*storage.ProductionOrder, error)
	ResolveIssue(ctx context.Context, orderID, issueID string, req fulfillment.ResolveIssueRequest) (*storage.ProductionOrder, error)
	Reschedule(ctx context.Context, id string, req fulfillment.RescheduleRequest) (*storage.ProductionOrder, error)
}

func CreateOrder(log *slog.Logger, orders OrderWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.save.CreateOrder"

		var req fulfillment.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.CreateOrder(ctx, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusUnprocessableEntity)
			return
		}

		log.Info("order created", slog.String("id", order.ID), slog.String("jobId", order.JobID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, order)
	}
}

func DeleteOrder(log *slog.Logger, orders OrderWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.save.DeleteOrder"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := orders.DeleteOrder(ctx, id); err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		log.Info("order deleted", slog.String("id", id))

		render.JSON(w, r, map[string]any{"status": "deleted", "id": id})
	}
}

func StartProduction(log *slog.Logger, orders OrderWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.save.StartProduction"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.StartProduction(ctx, id)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, order)
	}
}

func RecordDelivery(log *slog.Logger, orders OrderWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.save.RecordDelivery"

		id := chi.URLParam(r, "id")

		var req fulfillment.DeliveryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.RecordDelivery(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		log.Info("delivery recorded",
			slog.String("id", id), slog.String("status", order.Status))

		render.JSON(w, r, order)
	}
}

func Reschedule(log *slog.Logger, orders OrderWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.save.Reschedule"

		id := chi.URLParam(r, "id")

		var req fulfillment.RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.Reschedule(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		log.Info("order rescheduled",
			slog.String("id", id), slog.String("newDate", req.NewDate))

		render.JSON(w, r, order)
	}
}

func ResolveIssue(log *slog.Logger, orders OrderWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.save.ResolveIssue"

		id := chi.URLParam(r, "id")
		issueID := chi.URLParam(r, "issueId")

		var req fulfillment.ResolveIssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.ResolveIssue(ctx, id, issueID, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, order)
	}
}
