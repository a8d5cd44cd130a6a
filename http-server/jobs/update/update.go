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
	"glazing-backend/internal/service/jobflow"
	"glazing-backend/internal/storage"
)

type JobMutator interface {
	UpdateMeasure(ctx context.Context, jobID string, req jobflow.MeasureUpdateRequest) (*storage.Job, error)
	ReportMeasureIssue(ctx context.Context, jobID string, req jobflow.MeasureIssueRequest) (*storage.Job, error)
	ResolveMeasureIssue(ctx context.Context, jobID, issueID string) (*storage.Job, error)
	UpdateOffer(ctx context.Context, jobID string, req jobflow.OfferUpdateRequest) (*storage.Job, error)
	StartApproval(ctx context.Context, jobID string, req jobflow.ApprovalStartRequest) (*storage.Job, error)
	UpdatePayment(ctx context.Context, jobID string, req jobflow.PaymentUpdateRequest) (*storage.Job, error)
	UpdateEstimatedAssembly(ctx context.Context, jobID string, req jobflow.EstimatedAssemblyRequest) (*storage.Job, error)
	UpdateStock(ctx context.Context, jobID string, req jobflow.StockUpdateRequest) (*storage.Job, error)
	UpdateProduction(ctx context.Context, jobID string, req jobflow.ProductionStatusRequest) (*storage.Job, error)
	ScheduleAssembly(ctx context.Context, jobID string, req jobflow.AssemblyScheduleRequest) (*storage.Job, error)
	CompleteAssembly(ctx context.Context, jobID string, req jobflow.AssemblyCompleteRequest) (*storage.Job, error)
	FinanceClose(ctx context.Context, jobID string, req jobflow.FinanceCloseRequest) (*storage.Job, error)
	UpdateStatus(ctx context.Context, jobID string, req jobflow.StatusUpdateRequest) (*storage.Job, error)
	InquiryDecision(ctx context.Context, jobID string, req jobflow.InquiryDecisionRequest) (*storage.Job, error)
}

// stage builds the common decode-call-respond handler shared by the stage
// endpoints.
func stage[R any](log *slog.Logger, op string, validationCode int,
	call func(ctx context.Context, jobID string, req R) (*storage.Job, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req R
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		job, err := call(ctx, id, req)
		if err != nil {
			respond.Err(w, r, log, op, err, validationCode)
			return
		}

		log.Info("job updated",
			slog.String("op", op), slog.String("id", id), slog.String("status", job.Status))

		render.JSON(w, r, job)
	}
}

func Measure(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.Measure", http.StatusBadRequest, jobs.UpdateMeasure)
}

func MeasureIssue(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.MeasureIssue", http.StatusBadRequest, jobs.ReportMeasureIssue)
}

func MeasureIssueResolve(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.jobs.update.MeasureIssueResolve"

		id := chi.URLParam(r, "id")
		issueID := chi.URLParam(r, "issueId")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		job, err := jobs.ResolveMeasureIssue(ctx, id, issueID)
		if err != nil {
			respond.Err(w, r, log, op, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, job)
	}
}

func Offer(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.Offer", http.StatusBadRequest, jobs.UpdateOffer)
}

func ApprovalStart(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.ApprovalStart", http.StatusBadRequest, jobs.StartApproval)
}

func Payment(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.Payment", http.StatusBadRequest, jobs.UpdatePayment)
}

func EstimatedAssembly(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.EstimatedAssembly", http.StatusBadRequest, jobs.UpdateEstimatedAssembly)
}

func Stock(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.Stock", http.StatusBadRequest, jobs.UpdateStock)
}

// Production uses 422 for enum violations.
func Production(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.Production", http.StatusUnprocessableEntity, jobs.UpdateProduction)
}

func AssemblySchedule(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.AssemblySchedule", http.StatusBadRequest, jobs.ScheduleAssembly)
}

func AssemblyComplete(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.AssemblyComplete", http.StatusBadRequest, jobs.CompleteAssembly)
}

func FinanceClose(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.FinanceClose", http.StatusBadRequest, jobs.FinanceClose)
}

func Status(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.Status", http.StatusBadRequest, jobs.UpdateStatus)
}

func InquiryDecision(log *slog.Logger, jobs JobMutator) http.HandlerFunc {
	return stage(log, "handlers.jobs.update.InquiryDecision", http.StatusBadRequest, jobs.InquiryDecision)
}
