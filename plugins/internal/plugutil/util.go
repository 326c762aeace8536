package plugutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/SnowzyTech/regime/validate"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 64 << 10

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DecodeJSON reads one JSON object from the body. Trailing data and bodies
// over MaxBodyBytes are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	WriteJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

func WriteValidationError(w http.ResponseWriter, errs validate.Errors) {
	WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", errs.First(), errs.Details())
}

func WriteInvalidJSON(w http.ResponseWriter) {
	WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
}

func ParsePositiveInt(v string, fallback int) int {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
