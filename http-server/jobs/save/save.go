package save

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"glazing-backend/http-server/respond"
	"glazing-backend/internal/service/jobflow"
	"glazing-backend/internal/storage"
)

type JobCreator interface {
	CreateJob(ctx context.Context, req jobflow.CreateJobRequest) (*storage.Job, error)
}

func CreateJob(log *slog.Logger, jobs JobCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.jobs.save.CreateJob"

		var req jobflow.CreateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		job, err := jobs.CreateJob(ctx, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusUnprocessableEntity)
			return
		}

		log.Info("job created", slog.String("id", job.ID), slog.String("startType", job.StartType))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, job)
	}
}
