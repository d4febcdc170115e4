package api

import (
	"net/http"

	"library-system/internal/platform/apperr"
)

// @Summary     Delinquent users
// @Description Users with a positive fine balance and their overdue loan counts.
// @Tags        reports
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}  report.DelinquentUser
// @Router      /api/v1/reports/delinquent-users [get]
func (h *Handler) handleDelinquentUsers(w http.ResponseWriter, r *http.Request) {
	result, err := h.reportSvc.DelinquentUsers(r.Context())
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// @Summary     Popular books
// @Description Top 10 books by loan count over the trailing 30 days.
// @Tags        reports
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}  report.PopularBook
// @Router      /api/v1/reports/popular-books [get]
func (h *Handler) handlePopularBooks(w http.ResponseWriter, r *http.Request) {
	result, err := h.reportSvc.PopularBooks(r.Context())
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// @Summary     Overdue loans
// @Tags        reports
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}  report.OverdueLoan
// @Router      /api/v1/reports/overdue-loans [get]
func (h *Handler) handleOverdueLoans(w http.ResponseWriter, r *http.Request) {
	result, err := h.reportSvc.OverdueLoans(r.Context())
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// @Summary     My loan history
// @Tags        reports
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}  report.HistoryEntry
// @Router      /api/v1/reports/my-history [get]
func (h *Handler) handleMyHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r)
	if userID == "" {
		errorResponse(w, apperr.Unauthorized("missing_identity", "caller identity missing", nil))
		return
	}

	result, err := h.reportSvc.History(r.Context(), userID)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// @Summary     System statistics
// @Tags        reports
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  report.Statistics
// @Router      /api/v1/statistics [get]
func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	result, err := h.reportSvc.Statistics(r.Context())
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
