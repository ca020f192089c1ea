package controller

import (
	"errors"
	"net/http"

	"github.com/sharetube/watchparty/internal/service/account"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/rest"
)

var (
	ErrValidationError = errors.New("validation error")
	ErrFileTooLarge    = errors.New("file too large")
	ErrMissingFile     = errors.New("missing video file")
	ErrMissingToken    = errors.New("missing auth token")
)

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrValidationError), errors.Is(err, ErrMissingFile):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingToken), errors.Is(err, account.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, account.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, account.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, room.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, room.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes the error envelope. Unexpected
// errors are logged and reported without detail.
func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		c.logger.WarnContext(r.Context(), "request failed", "error", err)
		if !errors.Is(err, room.ErrStorageUnavailable) {
			message = "internal server error"
		}
	} else {
		c.logger.DebugContext(r.Context(), "request rejected", "status", status, "error", err)
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": message})
}

func (c controller) writeOK(w http.ResponseWriter, data rest.Envelope) {
	if data == nil {
		data = rest.Envelope{}
	}
	data["ok"] = true
	rest.WriteJSON(w, http.StatusOK, data)
}
