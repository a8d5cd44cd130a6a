package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"glazing-backend/http-server/respond"
	"glazing-backend/internal/storage"
)

type JobReader interface {
	GetJob(ctx context.Context, id string) (*storage.Job, error)
	ListJobs(ctx context.Context) ([]*storage.Job, error)
}

func Job(log *slog.Logger, jobs JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.jobs.get.Job"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		job, err := jobs.GetJob(ctx, id)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, job)
	}
}

func Jobs(log *slog.Logger, jobs JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.jobs.get.Jobs"

		status := r.URL.Query().Get("status")
		startType := r.URL.Query().Get("startType")
		customer := r.URL.Query().Get("customerId")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		all, err := jobs.ListJobs(ctx)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		out := make([]*storage.Job, 0, len(all))
		for _, j := range all {
			if status != "" && j.Status != status {
				continue
			}
			if startType != "" && j.StartType != startType {
				continue
			}
			if customer != "" && j.CustomerID != customer {
				continue
			}
			out = append(out, j)
		}

		render.JSON(w, r, out)
	}
}
