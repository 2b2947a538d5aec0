package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/realtime"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrInvalidTransaction),
		errors.Is(err, common.ErrInvalidGoal),
		errors.Is(err, common.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrAlreadyClaimed),
		errors.Is(err, common.ErrDecryption):
		return http.StatusConflict
	case errors.Is(err, common.ErrRetrieval),
		errors.Is(err, realtime.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = common.ErrorInternal.Error()
	}
	if status == http.StatusUnauthorized {
		msg = common.ErrorUnauthorized.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a single JSON object into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: request body must only contain a single JSON object", common.ErrInvalidInput)
	}
	return nil
}
