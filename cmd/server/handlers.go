package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/plantsight/pipevalidation/internal/logger"
	"github.com/plantsight/pipevalidation/validation"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"materials": validation.Materials(),
	})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.backend.GetTemplates(r.Context(), "")
	if err != nil {
		respondError(w, errorStatus(err), "failed to list templates", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ruleTemplates": templates})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.InsulationLow > req.InsulationHigh {
		respondError(w, http.StatusBadRequest, "insulation bounds are inverted", nil)
		return
	}
	if req.TempLow > req.TempHigh {
		respondError(w, http.StatusBadRequest, "temperature bounds are inverted", nil)
		return
	}

	material := req.Material
	// Accept a bare model value and resolve its label.
	if material.Label == "" {
		if known, ok := validation.MaterialByValue(material.Value); ok {
			material = known
		}
	}
	if material.Value == "" {
		respondError(w, http.StatusBadRequest, "material is required", nil)
		return
	}

	rule, err := s.builder.CreateInsulationRule(r.Context(), validation.InsulationRuleParams{
		InsulationLow:  req.InsulationLow,
		InsulationHigh: req.InsulationHigh,
		TempLow:        req.TempLow,
		TempHigh:       req.TempHigh,
		Material:       material,
	})
	if err != nil {
		respondError(w, errorStatus(err), "failed to create rule", err)
		return
	}

	s.catalog.Invalidate()
	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Refresh(r.Context()); err != nil {
		respondError(w, errorStatus(err), "failed to refresh catalog", err)
		return
	}

	rules := s.catalog.Rules()
	views := make([]RuleView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, newRuleView(rule))
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": views})
}

func (s *Server) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	var req CreateTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.DisplayName == "" || len(req.RuleIDs) == 0 {
		respondError(w, http.StatusBadRequest, "displayName and ruleIds are required", nil)
		return
	}

	description := req.Description
	if description == "" {
		description = req.DisplayName
	}

	test, err := s.backend.CreateTest(r.Context(), validation.TestCreateParams{
		ProjectID:   s.builder.ProjectID(),
		DisplayName: req.DisplayName,
		Description: description,
		RuleIDs:     req.RuleIDs,
		// Every rule always evaluates.
		StopOnFailure: false,
	})
	if err != nil {
		respondError(w, errorStatus(err), "failed to create test", err)
		return
	}
	respondJSON(w, http.StatusCreated, test)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	activities, err := s.tracker.Refresh(r.Context())
	if err != nil {
		respondError(w, errorStatus(err), "failed to refresh activity", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tests": activities})
}

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "testId")

	run, err := s.tracker.SubmitRun(r.Context(), testID)
	if err != nil {
		respondError(w, errorStatus(err), "failed to run test", err)
		return
	}

	// One background polling loop at a time; it ends once nothing is
	// pending.
	if s.polling.CompareAndSwap(false, true) {
		go func() {
			defer s.polling.Store(false)
			if err := s.tracker.PollUntilSettled(context.Background()); err != nil {
				logger.Warn("polling stopped", "error", err)
				return
			}
			logger.Info("all runs settled")
		}()
	}

	respondJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "resultId")

	resultSet, err := s.backend.GetResult(r.Context(), resultID)
	if err != nil {
		respondError(w, errorStatus(err), "failed to fetch result", err)
		return
	}

	if err := s.catalog.Refresh(r.Context()); err != nil {
		respondError(w, errorStatus(err), "failed to refresh catalog", err)
		return
	}

	pipelines, err := s.pipelines.GetPipelines(r.Context(), s.modelID)
	if err != nil {
		respondError(w, errorStatus(err), "failed to fetch pipelines", err)
		return
	}

	correlation, err := s.correlator.Correlate(r.Context(), resultSet, s.catalog.RuleIndex(), pipelines)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to correlate result", err)
		return
	}
	respondJSON(w, http.StatusOK, correlation)
}
