// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bugcatch/internal/logging"
	"github.com/tomtom215/bugcatch/internal/metrics"
)

// verifyToken gates the release endpoints behind the shared access token.
// The token is accepted from the Token header, the Authorization header
// (raw or Bearer form), or a JSON body field, in that order. Anything else
// is a uniform 401 with no detail about which check failed.
func (router *Router) verifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		supplied := tokenFromRequest(r)
		expected := router.cfg.API.Token

		if supplied == "" ||
			subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) != 1 {
			metrics.APIUnauthorized.WithLabelValues(r.URL.Path).Inc()
			logging.Warn().
				Str("component", "api").
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rejected release request")
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// tokenFromRequest extracts the access token from the request. The body is
// only consulted as a last resort; these are GET endpoints and the handlers
// never read it.
func tokenFromRequest(r *http.Request) string {
	if token := r.Header.Get("Token"); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Token
}
