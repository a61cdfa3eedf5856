package api

import (
	"net/http"

	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/syncerrors"
	"github.com/gorilla/mux"
)

// CreateUserRequest is the payload for registering a user
type CreateUserRequest struct {
	Email string `json:"email"`
}

// handleCreateUser registers a new user
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}

	user := &models.UserRecord{Email: req.Email}
	if err := s.userRepo.CreateUser(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// handleGetUser returns a user record with its onboarding projection
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	user, err := s.userRepo.FindUser(r.Context(), userID)
	if err != nil {
		if syncerrors.IsRecordMissing(err) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to get user")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
