// Package utils
package utils

import (
	"encoding/json"
	"net/http"
)

type Body map[string]any

func ReplyJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

func ReplyBadRequest(w http.ResponseWriter, msg string) error {
	return ReplyJSON(w, http.StatusBadRequest, Body{"error": msg})
}

func ReplyNotFound(w http.ResponseWriter, msg string) error {
	return ReplyJSON(w, http.StatusNotFound, Body{"error": msg})
}

func ReplyBadGateway(w http.ResponseWriter, msg string) error {
	return ReplyJSON(w, http.StatusBadGateway, Body{"error": msg})
}

func ReplyInternalServerError(w http.ResponseWriter) error {
	return ReplyJSON(w, http.StatusInternalServerError, Body{"error": "internal server error"})
}

// WithCORS allows read-only cross-origin access to the API.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
