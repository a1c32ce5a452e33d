// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bugcatch/internal/logging"
	"github.com/tomtom215/bugcatch/internal/models"
)

// respondJSON writes v as the JSON response body with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Str("component", "api").Msg("Writing response failed")
	}
}

// respondError writes the wire-format error body. Status text is attached
// only on server errors, matching what existing clients parse.
func respondError(w http.ResponseWriter, status int, msg string) {
	body := models.ErrorResponse{Msg: msg}
	if status >= http.StatusInternalServerError {
		body.Status = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	respondJSON(w, status, body)
}

// respondServerError hides the failure detail behind the generic message and
// logs the cause.
func respondServerError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Err(err).
		Str("component", "api").
		Str("path", r.URL.Path).
		Msg("Request failed")
	respondError(w, http.StatusInternalServerError, "server error, please try again later")
}
