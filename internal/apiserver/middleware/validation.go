// Package middleware provides HTTP middleware for request validation and
// engine resolution.
package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	chi "github.com/go-chi/chi/v5"
)

// MaxRequestBodySize is the maximum allowed request body size (1MB)
const MaxRequestBodySize = 1 * 1024 * 1024

// ValidationError represents a validation error response
type ValidationError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// IDValidator creates a middleware that validates deployment IDs in URL
// parameters.
func IDValidator(paramName string) func(http.Handler) http.Handler {
	validIDPattern := regexp.MustCompile(`^[a-zA-Z0-9-]{1,100}$`)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, paramName)

			if id == "" {
				writeValidationError(w, fmt.Sprintf("%s is required", paramName), paramName)
				return
			}
			if !validIDPattern.MatchString(id) {
				writeValidationError(w, fmt.Sprintf("%s contains invalid characters or is too long", paramName), paramName)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnvironmentValidator validates the environment field on modifying requests
func EnvironmentValidator() func(http.Handler) http.Handler {
	validEnvPattern := regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]{0,98}$`)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isModifyingRequest(r) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := parseAndRestoreBody(r)
			if err != nil {
				writeValidationError(w, err.Error(), "body")
				return
			}

			environment, ok := body["environment"].(string)
			if !ok || environment == "" {
				writeValidationError(w, "environment is required", "environment")
				return
			}
			if !validEnvPattern.MatchString(environment) {
				writeValidationError(w, "environment contains invalid characters or format", "environment")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeValidator ensures requests with a body declare application/json
func ContentTypeValidator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isModifyingRequest(r) {
				if r.ContentLength > 0 || r.Header.Get("Transfer-Encoding") != "" {
					if r.Header.Get("Content-Type") != "application/json" {
						writeValidationError(w, "Content-Type must be application/json", "header")
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isModifyingRequest checks if the request method modifies data
func isModifyingRequest(r *http.Request) bool {
	return r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch
}

// parseAndRestoreBody reads, parses, and restores the request body with a
// size limit.
func parseAndRestoreBody(r *http.Request) (map[string]interface{}, error) {
	limitedReader := io.LimitReader(r.Body, MaxRequestBodySize)
	bodyBytes, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body")
	}
	if n, _ := io.Copy(io.Discard, r.Body); n > 0 {
		return nil, fmt.Errorf("request body too large (max %d bytes)", MaxRequestBodySize)
	}
	_ = r.Body.Close()

	var body map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return nil, fmt.Errorf("invalid JSON in request body")
	}

	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	return body, nil
}

// writeValidationError writes a validation error response
func writeValidationError(w http.ResponseWriter, message, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	response := ValidationError{
		Error:   "validation_error",
		Message: message,
		Field:   field,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		_ = err
	}
}
