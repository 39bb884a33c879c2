// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-erp/meridian/internal/ledger"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var vErr *ledger.ValidationFailedError
	switch {
	case errors.As(err, &vErr):
		ValidationProblem(w, vErr.Result)
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrEntryNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrDuplicateCode), errors.Is(err, ledger.ErrSourceAlreadyLinked):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ledger.ErrCyclicParent),
		errors.Is(err, ledger.ErrHasChildren),
		errors.Is(err, ledger.ErrHasPostedLines),
		errors.Is(err, ledger.ErrInvalidStatus),
		errors.Is(err, ledger.ErrUnknownAccountType):
		Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
