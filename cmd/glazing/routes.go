package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	getassembly "glazing-backend/http-server/assembly/get"
	saveassembly "glazing-backend/http-server/assembly/save"
	upassembly "glazing-backend/http-server/assembly/update"
	getjobs "glazing-backend/http-server/jobs/get"
	savejobs "glazing-backend/http-server/jobs/save"
	upjobs "glazing-backend/http-server/jobs/update"
	getproduction "glazing-backend/http-server/production/get"
	saveproduction "glazing-backend/http-server/production/save"
	upproduction "glazing-backend/http-server/production/update"
	"glazing-backend/internal/config"
	"glazing-backend/internal/middleware/auth"
	"glazing-backend/internal/service/fulfillment"
	"glazing-backend/internal/service/installation"
	"glazing-backend/internal/service/jobflow"
	"glazing-backend/internal/service/orderform"
)

func routes(cfg config.Config, log *slog.Logger, sessions auth.SessionStore,
	jobs *jobflow.Service, orders *fulfillment.Service, tasks *installation.Service,
	forms *orderform.Service) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	router.Use(auth.WithActor(sessions))

	router.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", getjobs.Jobs(log, jobs))
		r.Post("/", savejobs.CreateJob(log, jobs))
		r.Get("/{id}", getjobs.Job(log, jobs))

		r.Put("/{id}/measure", upjobs.Measure(log, jobs))
		r.Post("/{id}/measure/issues", upjobs.MeasureIssue(log, jobs))
		r.Post("/{id}/measure/issues/{issueId}/resolve", upjobs.MeasureIssueResolve(log, jobs))
		r.Put("/{id}/offer", upjobs.Offer(log, jobs))
		r.Post("/{id}/approval/start", upjobs.ApprovalStart(log, jobs))
		r.Put("/{id}/payment", upjobs.Payment(log, jobs))
		r.Put("/{id}/estimated-assembly", upjobs.EstimatedAssembly(log, jobs))
		r.Put("/{id}/stock", upjobs.Stock(log, jobs))
		r.Put("/{id}/production", upjobs.Production(log, jobs))
		r.Put("/{id}/assembly/schedule", upjobs.AssemblySchedule(log, jobs))
		r.Put("/{id}/assembly/complete", upjobs.AssemblyComplete(log, jobs))
		r.Put("/{id}/finance/close", upjobs.FinanceClose(log, jobs))
		r.Put("/{id}/status", upjobs.Status(log, jobs))
		r.Put("/{id}/inquiry-decision", upjobs.InquiryDecision(log, jobs))
	})

	router.Route("/api/production", func(r chi.Router) {
		r.Get("/", getproduction.Orders(log, orders))
		r.Post("/", saveproduction.CreateOrder(log, orders))
		r.Get("/summary", getproduction.Summary(log, orders))
		r.Get("/alerts", getproduction.Alerts(log, orders))
		r.Get("/by-job/{jobId}", getproduction.OrdersByJob(log, orders))

		r.Get("/{id}", getproduction.Order(log, orders))
		r.Put("/{id}", upproduction.Order(log, orders))
		r.Delete("/{id}", saveproduction.DeleteOrder(log, orders))
		r.Get("/{id}/form", getproduction.OrderForm(log, forms))
		r.Post("/{id}/start", saveproduction.StartProduction(log, orders))
		r.Post("/{id}/delivery", saveproduction.RecordDelivery(log, orders))
		r.Put("/{id}/plan", upproduction.Plan(log, orders))
		r.Post("/{id}/reschedule", saveproduction.Reschedule(log, orders))
		r.Post("/{id}/issues/{issueId}/resolve", saveproduction.ResolveIssue(log, orders))
	})

	router.Route("/api/assembly", func(r chi.Router) {
		r.Get("/tasks", getassembly.Tasks(log, tasks))
		r.Post("/tasks", saveassembly.CreateTask(log, tasks))
		r.Get("/tasks/today", getassembly.Today(log, tasks))
		r.Get("/summary", getassembly.Summary(log, tasks))
		r.Get("/delay-report", getassembly.DelayReport(log, tasks))
		r.Get("/team-availability", getassembly.TeamAvailability(log, tasks))
		r.Get("/by-job/{jobId}", getassembly.TasksByJob(log, tasks))

		r.Post("/tasks/create-for-job/{jobId}", saveassembly.CreateForJob(log, tasks))
		r.Post("/tasks/complete-all/{jobId}", saveassembly.CompleteAll(log, tasks))

		r.Get("/tasks/{id}", getassembly.Task(log, tasks))
		r.Put("/tasks/{id}", upassembly.Task(log, tasks))
		r.Post("/tasks/{id}/start", saveassembly.StartTask(log, tasks))
		r.Post("/tasks/{id}/complete", saveassembly.CompleteTask(log, tasks))
		r.Post("/tasks/{id}/issues", saveassembly.ReportIssue(log, tasks))
		r.Post("/tasks/{id}/issues/{issueId}/resolve", saveassembly.ResolveIssue(log, tasks))
		r.Put("/tasks/{id}/reschedule", upassembly.Reschedule(log, tasks))
		r.Post("/tasks/{id}/delay", saveassembly.RecordDelay(log, tasks))
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	})

	return router
}
