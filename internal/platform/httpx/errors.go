package httpx

import (
	"errors"
	"net/http"

	"github.com/praxis-sec/praxis/internal/shared"
)

// RespondError maps domain errors onto RFC7807 responses. The taxonomy is
// preserved one-to-one: a Conflict is never reported as Forbidden and vice
// versa, since admin UIs need the distinction to render accurate messages.
func RespondError(w http.ResponseWriter, err error) {
	var conflict *shared.ConflictError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &conflict):
		Problem(w, http.StatusConflict, "Conflict", conflict.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "not permitted")
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
	case errors.Is(err, shared.ErrEvaluatorUnavailable), errors.Is(err, shared.ErrStoreFailure):
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
