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
	"glazing-backend/internal/service/installation"
	"glazing-backend/internal/storage"
)

type TaskUpdater interface {
	UpdateTask(ctx context.Context, id string, req installation.UpdateTaskRequest) (*storage.AssemblyTask, error)
	Reschedule(ctx context.Context, id string, req installation.RescheduleRequest) (*storage.AssemblyTask, error)
}

func Task(log *slog.Logger, tasks TaskUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.update.Task"

		id := chi.URLParam(r, "id")

		var req installation.UpdateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		task, err := tasks.UpdateTask(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, task)
	}
}

// Reschedule moves the planned date; a forward move must justify the
// delay.
func Reschedule(log *slog.Logger, tasks TaskUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.update.Reschedule"

		id := chi.URLParam(r, "id")

		var req installation.RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		task, err := tasks.Reschedule(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		log.Info("task rescheduled", slog.String("id", id), slog.String("newDate", req.NewDate))

		render.JSON(w, r, task)
	}
}
