package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// =============================================================================
// WARMUP HANDLERS
// =============================================================================
// HTTP handlers for the warmup API. Enables:
// - Plan provisioning and lifecycle control (start/pause/resume)
// - Plan status with health scores and recent activity
// - Job inspection and manual scheduling/execution triggers

// WarmupService handles warmup API endpoints
type WarmupService struct {
	plans      *warmup.PlanService
	generator  *warmup.Generator
	executor   *warmup.Executor
	planRepo   warmup.PlanRepository
	jobRepo    warmup.JobRepository
	activities warmup.ActivityRepository
}

// NewWarmupService creates a new warmup API service
func NewWarmupService(plans *warmup.PlanService, generator *warmup.Generator, executor *warmup.Executor,
	planRepo warmup.PlanRepository, jobRepo warmup.JobRepository, activities warmup.ActivityRepository) *WarmupService {
	return &WarmupService{
		plans:      plans,
		generator:  generator,
		executor:   executor,
		planRepo:   planRepo,
		jobRepo:    jobRepo,
		activities: activities,
	}
}

// RegisterRoutes registers the warmup API routes
func (svc *WarmupService) RegisterRoutes(r chi.Router) {
	r.Route("/warmup", func(r chi.Router) {
		r.Get("/strategies", svc.HandleListStrategies)

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", svc.HandleListPlans)
			r.Post("/", svc.HandleCreatePlan)

			r.Route("/{planId}", func(r chi.Router) {
				r.Get("/", svc.HandleGetPlan)
				r.Get("/status", svc.HandleGetPlanStatus)
				r.Get("/jobs", svc.HandleListPlanJobs)
				r.Post("/start", svc.HandleStartPlan)
				r.Post("/pause", svc.HandlePausePlan)
				r.Post("/resume", svc.HandleResumePlan)
				r.Post("/jobs/generate", svc.HandleGenerateJob)
			})
		})

		r.Post("/jobs/{jobId}/execute", svc.HandleExecuteJob)
	})
}

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CreatePlanRequest is the request body for creating a warmup plan
type CreatePlanRequest struct {
	AccountID string               `json:"account_id"`
	UserID    string               `json:"user_id"`
	Domain    string               `json:"domain"`
	Strategy  string               `json:"strategy"`
	Settings  *domain.PlanSettings `json:"settings,omitempty"`
}

// PausePlanRequest is the request body for pausing a plan
type PausePlanRequest struct {
	Reason string `json:"reason"`
}

// PlanStatusResponse summarizes a plan's progress and health
type PlanStatusResponse struct {
	Plan             *domain.WarmupPlan      `json:"plan"`
	ExpectedWeek     int                     `json:"expected_week"`
	WeeksRemaining   int                     `json:"weeks_remaining"`
	RecentActivities []domain.WarmupActivity `json:"recent_activities"`
}

// =============================================================================
// STRATEGY HANDLERS
// =============================================================================

// HandleListStrategies returns the available warmup strategy profiles
// GET /api/warmup/strategies
func (svc *WarmupService) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": warmup.Strategies(),
	})
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// HandleCreatePlan provisions a new warmup plan
// POST /api/warmup/plans
func (svc *WarmupService) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" || req.Domain == "" {
		writeJSONError(w, "account_id and domain are required", http.StatusBadRequest)
		return
	}

	plan, err := svc.plans.CreatePlan(r.Context(), warmup.CreatePlanInput{
		AccountID: req.AccountID,
		UserID:    req.UserID,
		Domain:    req.Domain,
		Strategy:  domain.WarmupStrategy(req.Strategy),
		Settings:  req.Settings,
	})
	if err != nil {
		writeWarmupError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

// HandleListPlans returns plans, optionally filtered by ?status=
// GET /api/warmup/plans
func (svc *WarmupService) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	status := domain.PlanStatus(r.URL.Query().Get("status"))

	plans, err := svc.planRepo.List(r.Context(), status)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
		"total": len(plans),
	})
}

// HandleGetPlan returns a single plan
// GET /api/warmup/plans/{planId}
func (svc *WarmupService) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := svc.planRepo.Get(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// HandleGetPlanStatus returns a plan with progress and recent activity
// GET /api/warmup/plans/{planId}/status
func (svc *WarmupService) HandleGetPlanStatus(w http.ResponseWriter, r *http.Request) {
	plan, err := svc.planRepo.Get(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		writeWarmupError(w, err)
		return
	}

	resp := PlanStatusResponse{Plan: plan}
	if plan.StartDate != nil {
		resp.ExpectedWeek = warmup.ExpectedWeek(*plan.StartDate, time.Now().UTC(), plan.TotalWeeks)
		if resp.ExpectedWeek <= plan.TotalWeeks {
			resp.WeeksRemaining = plan.TotalWeeks - resp.ExpectedWeek + 1
		}
	}

	activities, err := svc.activities.ListRecent(r.Context(), plan.ID, 14)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp.RecentActivities = activities

	writeJSON(w, http.StatusOK, resp)
}

// HandleStartPlan activates a pending plan
// POST /api/warmup/plans/{planId}/start
func (svc *WarmupService) HandleStartPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := svc.plans.StartPlan(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// HandlePausePlan pauses an active plan
// POST /api/warmup/plans/{planId}/pause
func (svc *WarmupService) HandlePausePlan(w http.ResponseWriter, r *http.Request) {
	var req PausePlanRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // reason is optional
	}
	if req.Reason == "" {
		req.Reason = "paused by user"
	}

	plan, err := svc.plans.PausePlan(r.Context(), chi.URLParam(r, "planId"), req.Reason)
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// HandleResumePlan resumes a paused plan
// POST /api/warmup/plans/{planId}/resume
func (svc *WarmupService) HandleResumePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := svc.plans.ResumePlan(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// =============================================================================
// JOB HANDLERS
// =============================================================================

// HandleListPlanJobs returns a plan's jobs, newest first
// GET /api/warmup/plans/{planId}/jobs
func (svc *WarmupService) HandleListPlanJobs(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planId")
	if _, err := svc.planRepo.Get(r.Context(), planID); err != nil {
		writeWarmupError(w, err)
		return
	}

	jobs, err := svc.jobRepo.ListByPlan(r.Context(), planID, 30)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// HandleGenerateJob creates today's job for a plan on demand, e.g. right
// after starting a plan instead of waiting for the hourly scheduler tick
// POST /api/warmup/plans/{planId}/jobs/generate
func (svc *WarmupService) HandleGenerateJob(w http.ResponseWriter, r *http.Request) {
	plan, err := svc.planRepo.Get(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	if plan.Status != domain.PlanActive {
		writeJSONError(w, "plan is not active", http.StatusConflict)
		return
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	job, err := svc.generator.GenerateDailyJob(r.Context(), plan, today)
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	if job == nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "job already exists for today"})
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// HandleExecuteJob runs a pending job immediately
// POST /api/warmup/jobs/{jobId}/execute
func (svc *WarmupService) HandleExecuteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := svc.executor.ExecuteJob(r.Context(), jobID); err != nil {
		writeWarmupError(w, err)
		return
	}

	job, err := svc.jobRepo.Get(r.Context(), jobID)
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// writeWarmupError maps the warmup package's sentinel errors onto HTTP codes
func writeWarmupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, warmup.ErrPlanNotFound),
		errors.Is(err, warmup.ErrJobNotFound),
		errors.Is(err, warmup.ErrEmailNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, warmup.ErrInvalidStrategy),
		errors.Is(err, warmup.ErrInvalidSettings):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, warmup.ErrInvalidTransition),
		errors.Is(err, warmup.ErrNoRecipients):
		writeJSONError(w, err.Error(), http.StatusConflict)
	default:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
