package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"glazing-backend/http-server/respond"
	"glazing-backend/internal/service/installation"
	"glazing-backend/internal/storage"
)

type TaskReader interface {
	GetTask(ctx context.Context, id string) (*storage.AssemblyTask, error)
	ListTasks(ctx context.Context, f installation.ListFilter) ([]*storage.AssemblyTask, error)
	Today(ctx context.Context, date string) (*installation.TodayBoard, error)
	TasksByJob(ctx context.Context, jobID string) (*installation.JobTaskView, error)
	Summary(ctx context.Context) (*installation.Summary, error)
	DelayReport(ctx context.Context) ([]installation.DelayReportRow, error)
	TeamAvailability(ctx context.Context, date string) ([]installation.TeamLoad, error)
}

func Task(log *slog.Logger, tasks TaskReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.get.Task"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		task, err := tasks.GetTask(ctx, id)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, task)
	}
}

func Tasks(log *slog.Logger, tasks TaskReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.get.Tasks"

		q := r.URL.Query()
		filter := installation.ListFilter{
			JobID:   q.Get("jobId"),
			RoleID:  q.Get("roleId"),
			TeamID:  q.Get("teamId"),
			Status:  q.Get("status"),
			Date:    q.Get("date"),
			Delayed: q.Get("delayed") == "true",
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		out, err := tasks.ListTasks(ctx, filter)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, out)
	}
}

func Today(log *slog.Logger, tasks TaskReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.get.Today"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		board, err := tasks.Today(ctx, r.URL.Query().Get("date"))
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, board)
	}
}

func TasksByJob(log *slog.Logger, tasks TaskReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.get.TasksByJob"

		jobID := chi.URLParam(r, "jobId")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		view, err := tasks.TasksByJob(ctx, jobID)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, view)
	}
}

func Summary(log *slog.Logger, tasks TaskReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.get.Summary"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		summary, err := tasks.Summary(ctx)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, summary)
	}
}

func DelayReport(log *slog.Logger, tasks TaskReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.get.DelayReport"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		rows, err := tasks.DelayReport(ctx)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, rows)
	}
}

func TeamAvailability(log *slog.Logger, tasks TaskReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.get.TeamAvailability"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		loads, err := tasks.TeamAvailability(ctx, r.URL.Query().Get("date"))
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, loads)
	}
}
