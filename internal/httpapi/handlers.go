package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"unichat/internal/gateway"
)

func (s *Service) handleChat(w http.ResponseWriter, r *http.Request) {
	var req gateway.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, gateway.Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
		})
		return
	}

	// The gateway folds every failure into the response body; HTTP status
	// stays 200 so the client branches on the success flag only.
	resp := s.chatter.Chat(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models": s.catalog.Catalogs(),
	})
}

func (s *Service) handleUsage(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	counts, err := s.usage.Today(r.Context(), s.providerIDs(), now)
	if err != nil {
		s.logger.Error().Err(err).Msg("usage lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "usage unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  now.Format("2006-01-02"),
		"usage": counts,
	})
}

func (s *Service) handleRequests(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	recent, err := s.store.RecentRequests(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("recent requests lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "request log unavailable"})
		return
	}
	summary, err := s.store.SummarizeByProvider(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("request summary failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "request log unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": recent,
		"summary":  summary,
	})
}

func (s *Service) providerIDs() []string {
	catalogs := s.catalog.Catalogs()
	ids := make([]string, 0, len(catalogs))
	for id := range catalogs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
