package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"library-system/internal/domain/user"
	"library-system/internal/metrics"
	"library-system/internal/platform/apperr"
	"library-system/internal/worker"
)

type changeRoleRequest struct {
	Role string `json:"role"`
}

type adjustFineRequest struct {
	Amount float64 `json:"amount"`
}

// @Summary     List users
// @Tags        users
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}   user.User
// @Failure     500  {object}  map[string]string  "server error"
// @Router      /api/v1/users [get]
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userSvc.List(r.Context())
	if err != nil {
		errorResponse(w, err)
		return
	}
	if users == nil {
		users = []user.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// @Summary     Change user role
// @Tags        users
// @Security    BearerAuth
// @Accept      json
// @Param       id       path     string             true  "User ID"
// @Param       request  body     changeRoleRequest  true  "New role"
// @Success     204
// @Failure     400      {object}  map[string]string  "invalid role"
// @Failure     403      {object}  map[string]string  "own account targeted"
// @Failure     404      {object}  map[string]string  "user not found"
// @Router      /api/v1/users/{id}/role [patch]
func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	if err := h.userSvc.ChangeRole(r.Context(), targetID, req.Role, userIDFromCtx(r)); err != nil {
		errorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary     Adjust fine balance
// @Description Positive amount assesses a fine, negative waives or pays one off.
// @Tags        users
// @Security    BearerAuth
// @Accept      json
// @Param       id       path     string             true  "User ID"
// @Param       request  body     adjustFineRequest  true  "Delta amount"
// @Success     204
// @Failure     404      {object}  map[string]string  "user not found"
// @Failure     409      {object}  map[string]string  "resulting balance negative"
// @Failure     503      {object}  map[string]string  "concurrent update conflict"
// @Router      /api/v1/users/{id}/fine [patch]
func (h *Handler) handleAdjustFine(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	var req adjustFineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	if err := h.userSvc.AdjustFine(r.Context(), targetID, req.Amount); err != nil {
		if errors.Is(err, user.ErrNegativeBalance) {
			metrics.IncFineAdjustment("rejected")
		}
		errorResponse(w, err)
		return
	}

	metrics.IncFineAdjustment("applied")

	if h.auditCh != nil {
		select {
		case h.auditCh <- worker.FineAdjustment{
			UserID:  targetID,
			AdminID: userIDFromCtx(r),
			Delta:   req.Amount,
		}:
		default:
			// audit channel full, drop rather than block the request
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary     Toggle user activation
// @Description Deactivation is refused while the user holds active loans.
// @Tags        users
// @Security    BearerAuth
// @Param       id   path  string  true  "User ID"
// @Success     204
// @Failure     404  {object}  map[string]string  "user not found"
// @Failure     409  {object}  map[string]string  "active loans present"
// @Router      /api/v1/users/{id}/activation [patch]
func (h *Handler) handleToggleActivation(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	if err := h.userSvc.ToggleActivation(r.Context(), targetID); err != nil {
		errorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
