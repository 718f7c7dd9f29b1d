package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/rpc"

	"github.com/sirupsen/logrus"
)

// maxRequestBody bounds an RPC request body.
const maxRequestBody = 1 << 20

// respondJSON writes v as the JSON response body.
func (ps *PlaylistServer) respondJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ps.logger.WithError(err).Error("Failed to encode response")
	}
}

// respondResult sends a successful RPC result
func (ps *PlaylistServer) respondResult(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	ps.respondJSON(w, rpc.Response[interface{}]{Result: result})
}

// respondWithError sends the error envelope with the status matching err
func (ps *PlaylistServer) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := apperr.HTTPStatus(err)
	body := rpc.ErrorOf(err)

	logEntry := ps.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"code":        body.Code,
	}).WithError(err)

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	ps.respondJSON(w, rpc.ErrorResponse{Error: body})
}

// decodeRequest reads a JSON request body into dst. An empty body leaves
// dst untouched.
func decodeRequest(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Invalid("body", "INVALID_JSON", "Request body must be valid JSON")
	}
	return nil
}

// requireID checks that an identifier parameter is present
func requireID(field, value string) error {
	if sanitizeInput(value) == "" {
		return apperr.Invalid(field, "MISSING_ID", field+" is required")
	}
	return nil
}

// validateSearchQuery validates search query parameters
func validateSearchQuery(query string) error {
	if len(query) > 1000 {
		return apperr.Invalid("term", "SEARCH_QUERY_TOO_LONG", "Search query too long (max 1000 characters)")
	}

	// Check for potentially dangerous characters
	if strings.Contains(query, "\x00") {
		return apperr.Invalid("term", "INVALID_SEARCH_CHARACTERS", "Search query contains invalid characters")
	}

	return nil
}

// validateLimit rejects negative limits; zero selects the default
func validateLimit(limit int) error {
	if limit < 0 {
		return apperr.Invalid("limit", "INVALID_LIMIT", "Limit cannot be negative")
	}
	return nil
}

// sanitizeInput sanitizes user input to prevent injection attacks
func sanitizeInput(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}
