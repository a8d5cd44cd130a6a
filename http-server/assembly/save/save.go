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
	"glazing-backend/internal/service/installation"
	"glazing-backend/internal/storage"
)

type TaskWriter interface {
	CreateTask(ctx context.Context, req installation.CreateTaskRequest) (*storage.AssemblyTask, error)
	CreateForJob(ctx context.Context, jobID string) ([]*storage.AssemblyTask, error)
	StartTask(ctx context.Context, id string) (*storage.AssemblyTask, error)
	CompleteTask(ctx context.Context, id string, req installation.CompleteTaskRequest) (*storage.AssemblyTask, error)
	CompleteAll(ctx context.Context, jobID string, req installation.CompleteTaskRequest) ([]*storage.AssemblyTask, error)
	ReportIssue(ctx context.Context, id string, req installation.ReportIssueRequest) (*storage.AssemblyTask, error)
	ResolveIssue(ctx context.Context, taskID, issueID, note string) (*storage.AssemblyTask, error)
	RecordDelay(ctx context.Context, id string, req installation.RecordDelayRequest) (*storage.AssemblyTask, error)
}

func CreateTask(log *slog.Logger, tasks TaskWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.save.CreateTask"

		var req installation.CreateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		task, err := tasks.CreateTask(ctx, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusUnprocessableEntity)
			return
		}

		log.Info("task created", slog.String("id", task.ID), slog.String("jobId", task.JobID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, task)
	}
}

// CreateForJob bulk-generates tasks from the job's role and stage
// configuration; already existing stages are skipped.
func CreateForJob(log *slog.Logger, tasks TaskWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.save.CreateForJob"

		jobID := chi.URLParam(r, "jobId")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		created, err := tasks.CreateForJob(ctx, jobID)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		log.Info("tasks generated", slog.String("jobId", jobID), slog.Int("count", len(created)))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{"created": len(created), "tasks": created})
	}
}

func StartTask(log *slog.Logger, tasks TaskWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.save.StartTask"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		task, err := tasks.StartTask(ctx, id)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, task)
	}
}

func CompleteTask(log *slog.Logger, tasks TaskWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.save.CompleteTask"

		id := chi.URLParam(r, "id")

		var req installation.CompleteTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		task, err := tasks.CompleteTask(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		log.Info("task completed", slog.String("id", id))

		render.JSON(w, r, task)
	}
}

func CompleteAll(log *slog.Logger, tasks TaskWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.save.CompleteAll"

		jobID := chi.URLParam(r, "jobId")

		var req installation.CompleteTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		completed, err := tasks.CompleteAll(ctx, jobID, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		log.Info("all tasks completed", slog.String("jobId", jobID), slog.Int("count", len(completed)))

		render.JSON(w, r, map[string]any{"completed": len(completed), "tasks": completed})
	}
}

// RecordDelay books a delay against an explicit date pair; a zero or
// backward shift is rejected.
func RecordDelay(log *slog.Logger, tasks TaskWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.save.RecordDelay"

		id := chi.URLParam(r, "id")

		var req installation.RecordDelayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		task, err := tasks.RecordDelay(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		log.Info("delay recorded",
			slog.String("id", id), slog.Int("totalDelayDays", task.TotalDelayDays))

		render.JSON(w, r, task)
	}
}

func ReportIssue(log *slog.Logger, tasks TaskWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.save.ReportIssue"

		id := chi.URLParam(r, "id")

		var req installation.ReportIssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		task, err := tasks.ReportIssue(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, task)
	}
}

func ResolveIssue(log *slog.Logger, tasks TaskWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.assembly.save.ResolveIssue"

		id := chi.URLParam(r, "id")
		issueID := chi.URLParam(r, "issueId")

		var req struct {
			Note string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		task, err := tasks.ResolveIssue(ctx, id, issueID, req.Note)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, task)
	}
}
