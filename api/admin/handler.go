// Package admin serves operator login and credential changes.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/vending/api/respond"
	"github.com/kilianp07/vending/auth"
	"github.com/kilianp07/vending/core/logger"
	corestore "github.com/kilianp07/vending/core/store"
)

type Handler struct {
	auth *auth.Service
	log  logger.Logger
}

func NewHandler(svc *auth.Service, log logger.Logger) *Handler {
	return &Handler{auth: svc, log: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	AdminID  int    `json:"adminId"`
	Username string `json:"username"`
}

// Login serves POST /api/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	a, err := h.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		respond.Fail(w, http.StatusBadRequest, "Username and password are required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respond.Fail(w, http.StatusUnauthorized, "Invalid username or password")
	case err != nil:
		h.log.Errorf("login: %v", err)
		respond.Fail(w, http.StatusInternalServerError, "Server error during login: "+err.Error())
	default:
		respond.JSON(w, http.StatusOK, loginResponse{
			Success:  true,
			Message:  "Login successful",
			AdminID:  a.ID,
			Username: a.Username,
		})
	}
}

type updateRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewUsername     string `json:"newUsername"`
	NewPassword     string `json:"newPassword"`
}

// Update serves PUT /api/admin for the admin resolved by auth.RequireAdmin.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.AdminFromContext(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	err := h.auth.UpdateCredentials(r.Context(), a.ID, req.CurrentPassword, req.NewUsername, req.NewPassword)
	switch {
	case errors.Is(err, corestore.ErrNotFound):
		respond.Fail(w, http.StatusNotFound, "Admin not found")
	case errors.Is(err, auth.ErrWrongPassword):
		respond.Fail(w, http.StatusUnauthorized, "Current password is incorrect")
	case err != nil:
		h.log.Errorf("update admin %d: %v", a.ID, err)
		respond.Fail(w, http.StatusInternalServerError, "Failed to update admin credentials: "+err.Error())
	default:
		respond.JSON(w, http.StatusOK, respond.Result{Success: true, Message: "Admin credentials updated successfully"})
	}
}
