package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.pgStore.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	if err := s.redisStore.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	isHealthy := healthStatus["postgres"] == "healthy" && healthStatus["redis"] == "healthy"
	if !isHealthy {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}

	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// handleStatusRequest reports the crawl currently occupying the worker's
// single slot, or idle.
func (s *Server) handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	jobID := s.controller.ActiveJobID()
	if jobID == 0 {
		s.respondWithJSON(w, http.StatusOK, map[string]any{"state": "idle"})
		return
	}

	job, err := s.pgStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.logger.Error("failed to load active job", zap.Int64("job_id", jobID), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve status")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"state":            "crawling",
		"job_id":           job.ID,
		"project_id":       job.ProjectID,
		"status":           job.Status,
		"pages_discovered": job.PagesDiscovered,
		"pages_crawled":    job.PagesCrawled,
		"pages_failed":     job.PagesFailed,
		"started_at":       job.StartedAt,
	})
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
