package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "credara/pkg/domain-errors"
)

// errorBody is the JSON error envelope. Fields is present only for
// validation failures.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError centralizes domain error translation to HTTP responses. Internal
// causes never reach the wire; callers see the stable code and message only.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{
		Error:   string(code),
		Message: dErrors.Message(err),
		Fields:  dErrors.FieldsOf(err),
	}
	if code == dErrors.CodeInternal {
		body.Message = "internal error"
	}
	writeJSON(w, statusOf(code), body)
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeInsufficientResource:
		// Payment-shaped denial: the request was well-formed but the
		// caller's balance or subscription does not cover it.
		return http.StatusPaymentRequired
	case dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
