package api

import (
	"database/sql"
	"errors"
	"net/http"

	"library-system/internal/domain/book"
	"library-system/internal/domain/user"
	"library-system/internal/platform/apperr"
)

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	writeJSON(w, appErr.StatusCode(), map[string]string{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}

func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("not_found", "resource not found", err)
	case errors.Is(err, user.ErrNotFound):
		return apperr.NotFound("user_not_found", "user not found", err)
	case errors.Is(err, book.ErrNotFound):
		return apperr.NotFound("book_not_found", "book not found", err)
	case errors.Is(err, user.ErrInvalidCredentials):
		return apperr.Unauthorized("invalid_credentials", "invalid credentials", err)
	case errors.Is(err, user.ErrInactiveUser):
		return apperr.Unauthorized("inactive_user", "user is inactive", err)
	case errors.Is(err, user.ErrInvalidRole):
		return apperr.BadRequest("invalid_role", "role must be user, librarian or admin", err)
	case errors.Is(err, user.ErrSelfRoleChange):
		return apperr.Forbidden("self_role_change", "you cannot change your own role", err)
	case errors.Is(err, user.ErrNegativeBalance):
		return apperr.Conflict("negative_balance", "total fine balance cannot be negative", err)
	case errors.Is(err, user.ErrActiveLoans):
		return apperr.Conflict("active_loans", "cannot deactivate a user with active loans", err)
	case errors.Is(err, user.ErrUpdateConflict):
		return apperr.Unavailable("store_conflict", "concurrent update conflict, try again", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
