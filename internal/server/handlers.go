package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/promptlab/internal/llm"
	"github.com/ziadkadry99/promptlab/internal/project"
)

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.handleStartRun)
			r.Get("/", s.handleListRuns)
			r.Post("/{id}/cancel", s.handleCancelRun)
			r.Get("/{id}/events", s.handleRunEvents)
		})

		r.Route("/models", func(r chi.Router) {
			r.Get("/", s.handleListModels)
			r.Post("/{id}/test", s.handleTestModel)
			r.Post("/compare", s.handleCompareModels)
		})

		r.Get("/frameworks", s.handleListFrameworks)
		r.Route("/testcases", func(r chi.Router) {
			r.Get("/", s.handleListTestCases)
			r.Post("/", s.handleAddTestCase)
			r.Put("/{id}", s.handleUpdateTestCase)
			r.Delete("/{id}", s.handleRemoveTestCase)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Get("/{id}", s.handleHistoryRun)
			r.Get("/{id}/results", s.handleHistoryResults)
		})
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models := s.service.Registry().Models()
	if provider := r.URL.Query().Get("provider"); provider != "" {
		filtered := models[:0]
		for _, m := range models {
			if m.Provider == provider {
				filtered = append(filtered, m)
			}
		}
		models = filtered
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleTestModel(w http.ResponseWriter, r *http.Request) {
	result := s.service.TestModel(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, result)
}

type compareRequest struct {
	Models []string             `json:"models"`
	Prompt string               `json:"prompt"`
	Params llm.GenerationParams `json:"params,omitempty"`
}

func (s *Server) handleCompareModels(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Models) == 0 || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "models and prompt are required")
		return
	}

	messages := []llm.ChatMessage{llm.UserMessage(req.Prompt)}
	results := s.service.CompareModels(r.Context(), req.Models, messages, req.Params)
	writeJSON(w, http.StatusOK, results)
}

// loadProject reloads the workspace on every request so edits on disk
// show up without a server restart.
func (s *Server) loadProject(w http.ResponseWriter) (*project.Project, bool) {
	proj, err := project.Load(s.cfg.ProjectDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading project: "+err.Error())
		return nil, false
	}
	return proj, true
}

func (s *Server) handleListFrameworks(w http.ResponseWriter, r *http.Request) {
	proj, ok := s.loadProject(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, proj.Frameworks)
}

func (s *Server) handleListTestCases(w http.ResponseWriter, r *http.Request) {
	proj, ok := s.loadProject(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, proj.TestCases)
}

func (s *Server) handleAddTestCase(w http.ResponseWriter, r *http.Request) {
	var tc project.TestCase
	if err := json.NewDecoder(r.Body).Decode(&tc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if tc.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	proj, ok := s.loadProject(w)
	if !ok {
		return
	}
	created, err := proj.AddTestCase(tc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTestCase(w http.ResponseWriter, r *http.Request) {
	var tc project.TestCase
	if err := json.NewDecoder(r.Body).Decode(&tc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tc.ID = chi.URLParam(r, "id")

	proj, ok := s.loadProject(w)
	if !ok {
		return
	}
	if err := proj.UpdateTestCase(tc); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleRemoveTestCase(w http.ResponseWriter, r *http.Request) {
	proj, ok := s.loadProject(w)
	if !ok {
		return
	}
	if err := proj.RemoveTestCase(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return false
	}
	return true
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	runs, err := s.history.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleHistoryRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	run, err := s.history.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "unknown run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleHistoryResults(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	results, err := s.history.RunResults(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
