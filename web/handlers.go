package web

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pgsleuth/pgsleuth/deadlock"
	"github.com/pgsleuth/pgsleuth/state"
	"github.com/pgsleuth/pgsleuth/templates"
)

type analyzeRequest struct {
	EventID string `json:"event_id"`
}

type analyzeResponse struct {
	Analysis    json.RawMessage `json:"analysis"`
	Explanation string          `json:"explanation,omitempty"`
	Error       string          `json:"error,omitempty"`
	Cached      bool            `json:"cached,omitempty"`
}

// handleAnalyze - Fetches the event text from the tracker, runs the
// analyzer and responds {analysis, error}. Analyzer outcomes are never a
// 5xx: a missing signature or failed parse is a null analysis with an
// error string, not a server error.
func (server *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if server.Events == nil {
		writeJSON(w, http.StatusServiceUnavailable, analyzeResponse{Error: "tracker not configured"})
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventID == "" {
		writeJSON(w, http.StatusBadRequest, analyzeResponse{Error: "event_id is required"})
		return
	}

	cacheKey := "analysis:" + req.EventID
	if server.Cache != nil {
		if cached, ok := server.Cache.Get(cacheKey); ok {
			writeJSON(w, http.StatusOK, analyzeResponse{Analysis: json.RawMessage(cached), Cached: true})
			return
		}
	}

	event, err := server.Events.GetEvent(req.EventID)
	if err != nil {
		server.Logger.PrintWarning("Failed to fetch event %s: %s", req.EventID, err)
		writeJSON(w, http.StatusBadGateway, analyzeResponse{Error: "failed to fetch event from tracker"})
		return
	}

	info := server.Analyzer.AnalyzeEvent(event.ToRecord())
	if info == nil {
		writeJSON(w, http.StatusOK, analyzeResponse{Error: "event does not contain an analyzable deadlock"})
		return
	}

	response := analyzeResponse{}
	if server.Explainer != nil && server.Explainer.Enabled() {
		explanation, err := server.Explainer.Explain(r.Context(), info)
		if err != nil {
			server.Logger.PrintWarning("Explanation unavailable for event %s: %s", req.EventID, err)
		} else {
			response.Explanation = explanation
		}
	}

	payload, err := json.Marshal(info)
	if err != nil {
		server.Logger.PrintError("Failed to marshal analysis for event %s: %s", req.EventID, err)
		writeJSON(w, http.StatusInternalServerError, analyzeResponse{Error: "failed to serialize analysis"})
		return
	}
	if server.Cache != nil {
		server.Cache.Put(cacheKey, string(payload))
	}

	response.Analysis = payload
	writeJSON(w, http.StatusOK, response)
}

// handleLockCompatibility - Static reference payload for documentation
// and the visualization legend
func (server *Server) handleLockCompatibility(w http.ResponseWriter, r *http.Request) {
	modes := make([]string, 0, len(state.KnownLockModes))
	for _, mode := range state.KnownLockModes {
		modes = append(modes, mode.String())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modes":  modes,
		"matrix": deadlock.CompatibilityMatrix(),
	})
}

type templateRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

func (server *Server) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	if server.Templates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "template store not configured"})
		return
	}
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and body are required"})
		return
	}
	template, err := server.Templates.CreateVersion(req.Name, req.Body)
	if err != nil {
		server.Logger.PrintError("Failed to create template version: %s", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store template"})
		return
	}
	writeJSON(w, http.StatusCreated, template)
}

func (server *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request) {
	if server.Templates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "template store not configured"})
		return
	}
	template, err := server.Templates.GetLatest(mux.Vars(r)["name"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, template)
}

func (server *Server) handleTemplateVersions(w http.ResponseWriter, r *http.Request) {
	if server.Templates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "template store not configured"})
		return
	}
	versions, err := server.Templates.ListVersions(mux.Vars(r)["name"])
	if err != nil {
		server.Logger.PrintError("Failed to list template versions: %s", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list versions"})
		return
	}
	if versions == nil {
		versions = []templates.Template{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (server *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	if server.Templates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "template store not configured"})
		return
	}
	if err := server.Templates.Delete(mux.Vars(r)["name"]); err != nil {
		server.Logger.PrintError("Failed to delete template: %s", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete template"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
