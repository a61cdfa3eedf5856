package api

import (
	"errors"
	"net/http"

	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/storage"
	"github.com/contract-pulse/internal/syncerrors"
	"github.com/contract-pulse/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// CreateAnalysisRequest is the payload for registering a contract analysis
type CreateAnalysisRequest struct {
	UserID          string `json:"userId"`
	Chain           string `json:"chain"`
	ContractAddress string `json:"contractAddress"`
	Strategy        string `json:"strategy,omitempty"`
	Continuous      *bool  `json:"continuous,omitempty"`
}

// SyncStatusResponse is the polled view of a running or finished sync
type SyncStatusResponse struct {
	AnalysisID        string                     `json:"analysisId"`
	Status            types.SyncState            `json:"status"`
	CycleNumber       int                        `json:"cycleNumber"`
	Progress          int                        `json:"progress"`
	EmptyCycleStreak  int                        `json:"emptyCycleStreak"`
	AutoStoppedReason *string                    `json:"autoStoppedReason,omitempty"`
	Active            bool                       `json:"active"`
	Logs              []string                   `json:"logs,omitempty"`
	Snapshot          *models.AccumulatedMetrics `json:"snapshot,omitempty"`
}

// handleCreateAnalysis registers a new contract analysis and its sync run
func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req CreateAnalysisRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Chain == "" || req.ContractAddress == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "userId, chain and contractAddress are required")
		return
	}

	strategy := types.SyncStrategy(req.Strategy)
	if strategy == "" {
		strategy = types.StrategyStandard
	}
	if strategy != types.StrategyStandard && strategy != types.StrategyComprehensive {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "strategy must be standard or comprehensive")
		return
	}

	run := &models.SyncRun{
		AnalysisID:      uuid.New().String(),
		UserID:          req.UserID,
		Chain:           types.ChainID(req.Chain),
		ContractAddress: req.ContractAddress,
		Strategy:        strategy,
		Status:          types.SyncRunning,
		ContinuousFlag:  req.Continuous,
		CycleNumber:     1,
	}
	if err := s.analysisRepo.CreateSyncRun(r.Context(), run); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to create analysis")
		return
	}

	respondJSON(w, http.StatusCreated, run)
}

// handleGetAnalysis returns the full sync run record
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysisID := mux.Vars(r)["id"]

	run, err := s.analysisRepo.FindSyncRun(r.Context(), analysisID)
	if err != nil {
		if syncerrors.IsRecordMissing(err) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Analysis not found")
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to get analysis")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// handleStartSync launches the continuous sync loop for an analysis
func (s *Server) handleStartSync(w http.ResponseWriter, r *http.Request) {
	analysisID := mux.Vars(r)["id"]

	run, err := s.analysisRepo.FindSyncRun(r.Context(), analysisID)
	if err != nil {
		if syncerrors.IsRecordMissing(err) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Analysis not found")
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to get analysis")
		return
	}

	if s.syncService.IsActive(analysisID) {
		respondError(w, http.StatusConflict, ErrCodeConflict, "Sync already running for this analysis")
		return
	}

	if err := s.syncService.StartContinuousContractSync(r.Context(), analysisID, run.UserID); err != nil {
		respondError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"analysisId": analysisID,
		"status":     "started",
	})
}

// handleGetSyncStatus returns the current sync status, preferring the cached
// snapshot over a database round trip for the metrics detail
func (s *Server) handleGetSyncStatus(w http.ResponseWriter, r *http.Request) {
	analysisID := mux.Vars(r)["id"]

	run, err := s.analysisRepo.FindSyncRun(r.Context(), analysisID)
	if err != nil {
		if syncerrors.IsRecordMissing(err) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Analysis not found")
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to get sync status")
		return
	}

	response := &SyncStatusResponse{
		AnalysisID:        run.AnalysisID,
		Status:            run.Status,
		CycleNumber:       run.CycleNumber,
		Progress:          run.Progress,
		EmptyCycleStreak:  run.EmptyCycleStreak,
		AutoStoppedReason: run.AutoStoppedReason,
		Active:            s.syncService.IsActive(analysisID),
		Logs:              run.Logs,
	}

	if s.snapshots != nil {
		snapshot, err := s.snapshots.GetLatestSnapshot(r.Context(), analysisID)
		if err == nil {
			response.Snapshot = snapshot
		} else if !errors.Is(err, storage.ErrSnapshotNotFound) {
			s.logger.WithError(err).Warn("Failed to read cached snapshot")
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// handleStopSync revokes continuity and cancels the in-flight run. The loop
// observes the revoked flag at its next pre-cycle check even if the process
// holding the run is a different instance.
func (s *Server) handleStopSync(w http.ResponseWriter, r *http.Request) {
	analysisID := mux.Vars(r)["id"]

	continuous := false
	err := s.analysisRepo.UpdateSyncRun(r.Context(), analysisID, &models.SyncRunUpdate{
		ContinuousFlag: &continuous,
	})
	if err != nil {
		if syncerrors.IsRecordMissing(err) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Analysis not found")
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to stop sync")
		return
	}

	cancelled := s.syncService.StopContinuousContractSync(analysisID)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"analysisId": analysisID,
		"status":     "stopping",
		"cancelled":  cancelled,
	})
}
