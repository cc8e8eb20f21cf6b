// Package common provides shared HTTP utility functions for API handlers.
package common

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: message, Status: "error"}, statusCode)
}

// GetAndValidateURLParam extracts a URL parameter, rejecting empty values and whitespace
func GetAndValidateURLParam(r *http.Request, paramName string) (string, error) {
	value := chi.URLParam(r, paramName)

	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s cannot be empty", paramName)
	}
	if strings.ContainsAny(value, " \t\n\r") {
		return "", fmt.Errorf("%s cannot contain whitespace", paramName)
	}

	return value, nil
}

// ParseEpochSecondsParam reads a non-negative epoch-seconds URL parameter
func ParseEpochSecondsParam(r *http.Request, paramName string) (uint64, error) {
	raw, err := GetAndValidateURLParam(r, paramName)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer number of seconds", paramName)
	}
	if value < 0 {
		return 0, fmt.Errorf("timestamp must be non-negative")
	}
	return uint64(value), nil
}
