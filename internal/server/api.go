package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/morezero/textcipher/pkg/dispatcher"
	"github.com/morezero/textcipher/pkg/registry"
)

const apiLogPrefix = "server:api"

const maxBodyBytes = 1 << 20

const payloadTooLarge = "PayloadTooLarge"

// Handler returns the HTTP API with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/encode", s.handleTransform(registry.Encode))
	mux.HandleFunc("POST /api/encrypt", s.handleTransform(registry.Encode))
	mux.HandleFunc("POST /api/decode", s.handleTransform(registry.Decode))
	mux.HandleFunc("POST /api/decrypt", s.handleTransform(registry.Decode))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/algorithms", s.handleAlgorithms)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/openapi.json", s.handleOpenAPI)
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	return withCORS(mux)
}

func (s *Server) handleTransform(dir registry.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registry.TransformRequest
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			slog.Debug(fmt.Sprintf("%s - bad %s body: %v", apiLogPrefix, dir, err))
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				// Not a business kind: callers treat it as a transport rejection.
				writeJSON(w, http.StatusRequestEntityTooLarge, &dispatcher.WireResponse{
					Success: false,
					Error:   fmt.Sprintf("%s: Request body exceeds %d bytes", payloadTooLarge, maxBodyBytes),
				})
				return
			}
			writeJSON(w, http.StatusBadRequest, dispatcher.ToWire(dispatcher.Failed(registry.ErrValidation, "Invalid JSON body"), dir))
			return
		}

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		res := s.disp.Transform(dispatcher.WithRequestID(r.Context(), requestID), &req, dir)
		writeJSON(w, dispatcher.HTTPStatus(res), dispatcher.ToWire(res, dir))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.disp.Health())
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"algorithms": s.disp.Algorithms(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"error":   "Audit is disabled (set AUDIT_ENABLED=true)",
		})
		return
	}

	stats, err := s.stats.TransformStats(r.Context())
	if err != nil {
		slog.Error(fmt.Sprintf("%s - stats query failed: %v", apiLogPrefix, err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to load stats",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildOpenAPISpec(s.disp.Algorithms()))
}

// withCORS allows any origin and answers preflight requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", apiLogPrefix, err))
	}
}
