package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleVolume handles GET /api/stats/volume?deployment=0x...
func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	deployment := r.URL.Query().Get("deployment")
	if deployment == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "deployment query parameter required")
		return
	}

	volumes, err := s.statsService.Volume(r.Context(), deployment)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deployment": deployment,
		"volumes":    volumes,
	})
}

// handleTVL handles GET /api/stats/tvl?deployment=0x...
func (s *Server) handleTVL(w http.ResponseWriter, r *http.Request) {
	deployment := r.URL.Query().Get("deployment")
	if deployment == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "deployment query parameter required")
		return
	}

	tvls, err := s.statsService.TVL(r.Context(), deployment)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deployment": deployment,
		"tvl":        tvls,
	})
}

// handleToken handles GET /api/tokens/{address}
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	token, err := s.statsService.TokenMetadata(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, token)
}
