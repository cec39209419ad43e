package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"productshot/internal/compliance"
	"productshot/internal/domain"
	"productshot/internal/orchestrator"
)

const maxGenerationBody = 64 << 10

type generationRequest struct {
	ProjectID    string            `json:"project_id"`
	InputAssetID string            `json:"input_asset_id"`
	Mode         string            `json:"mode"`
	Inputs       compliance.Inputs `json:"inputs"`
}

type jobResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Mode          string     `json:"mode"`
	ProjectID     string     `json:"project_id"`
	InputAssetID  string     `json:"input_asset_id"`
	Error         string     `json:"error,omitempty"`
	CostUnits     int        `json:"cost_units"`
	OutputAssetID string     `json:"output_asset_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

func newJobResponse(job *domain.Job) jobResponse {
	return jobResponse{
		ID:            job.ID,
		Status:        string(job.Status),
		Mode:          string(job.Mode),
		ProjectID:     job.ProjectID,
		InputAssetID:  job.InputAssetID,
		Error:         job.Error,
		CostUnits:     job.CostUnits,
		OutputAssetID: job.OutputAssetID,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		StartedAt:     job.StartedAt,
	}
}

// CreateGeneration admits a generation request and returns the queued job.
func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	userID := a.requireUser(w, r)
	if userID == "" {
		return
	}
	var req generationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerationBody)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "invalid payload")
		return
	}
	job, err := a.Orchestrator.Submit(r.Context(), orchestrator.SubmitRequest{
		UserID:       userID,
		ProjectID:    req.ProjectID,
		InputAssetID: req.InputAssetID,
		Mode:         req.Mode,
		Inputs:       req.Inputs,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+job.ID)
	a.json(w, http.StatusAccepted, newJobResponse(job))
}

// GetJob returns the polled job resource.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	userID := a.requireUser(w, r)
	if userID == "" {
		return
	}
	job, err := a.Orchestrator.Get(r.Context(), userID, chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobResponse(job))
}
