package api

import (
	"encoding/json"
	"net/http"

	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/service"
)

// statusCacheKeyAll caches the all-deployments status listing
const statusCacheKeyAll = "all"

// handleSync handles POST /api/sync. The body selects the target: a
// deployment address syncs that deployment, a user address discovers and
// syncs the user's deployments.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req service.SyncInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}

	result, err := s.syncService.Sync(r.Context(), &req)
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("Sync failed")
		respondServiceError(w, err)
		return
	}

	if s.statusCache != nil {
		keys := []string{statusCacheKeyAll}
		for _, run := range result.Runs {
			keys = append(keys, run.DeploymentAddress)
		}
		s.statusCache.InvalidateStatus(r.Context(), keys...)
	}

	respondJSON(w, http.StatusOK, result)
}

// handleSyncStatus handles GET /api/sync/status. Without a deployment query
// parameter it reports every synced deployment.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	deployment := r.URL.Query().Get("deployment")

	cacheKey := deployment
	if cacheKey == "" {
		cacheKey = statusCacheKeyAll
	}
	if s.statusCache != nil {
		if cached, ok := s.statusCache.GetStatus(r.Context(), cacheKey); ok {
			writeRawJSON(w, http.StatusOK, cached)
			return
		}
	}

	entries, err := s.syncService.Status(r.Context(), deployment)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"deployments": entries,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if s.statusCache != nil {
		s.statusCache.SetStatus(r.Context(), cacheKey, body)
	}

	writeRawJSON(w, http.StatusOK, body)
}

// handleListDeployments handles GET /api/deployments
func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := s.syncService.ListDeployments(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deployments": deployments,
	})
}
