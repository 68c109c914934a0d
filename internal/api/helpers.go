package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/botflowhq/botflow/pkg/schema"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Logger.Error("encode response failed", "error", err)
	}
}

// respondError maps a FlowError code to an HTTP status and writes a JSON
// error body. Server-side failures are logged with their cause; the client
// only sees the code and message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var flowErr *schema.FlowError
	if !errors.As(err, &flowErr) {
		flowErr = schema.NewError(schema.ErrCodeExecution, err.Error())
	}

	status := statusForCode(flowErr.Code)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "code", flowErr.Code, "error", err)
	}

	s.respondJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]any{"code": flowErr.Code, "message": flowErr.Message},
	})
}

func statusForCode(code string) int {
	switch code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeValidation:
		return http.StatusBadRequest
	case schema.ErrCodeRunRefused:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeNotAwaitingInput, schema.ErrCodeConflict, schema.ErrCodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid request body: %s", err.Error()).WithCause(err)
	}
	return nil
}
