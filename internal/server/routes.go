package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/telos-app/telos/internal/engine"
	"github.com/telos-app/telos/internal/match"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, engine.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func actionJSON(a match.Action) map[string]any {
	return map[string]any{
		"id":           a.ID,
		"title":        a.Title,
		"description":  a.Description,
		"logged_at":    a.LoggedAt.UTC().Format(time.RFC3339),
		"measurements": a.Measurements,
	}
}

func goalJSON(g match.Goal) map[string]any {
	out := map[string]any{
		"id":            g.ID,
		"title":         g.Title,
		"target_unit":   g.TargetUnit,
		"target_value":  g.TargetValue,
		"actionability": g.Actionability,
	}
	if g.StartDate != nil {
		out["start_date"] = g.StartDate.UTC().Format(time.RFC3339)
	}
	if g.TargetDate != nil {
		out["target_date"] = g.TargetDate.UTC().Format(time.RFC3339)
	}
	return out
}

func relationshipJSON(rel match.Relationship) map[string]any {
	return map[string]any{
		"id":           rel.ID,
		"action_id":    rel.ActionID,
		"goal_id":      rel.GoalID,
		"contribution": rel.Contribution,
		"method":       rel.Method,
		"confidence":   rel.Confidence,
		"matched_on":   rel.MatchedOn,
	}
}

func relationshipsJSON(rels []match.Relationship) []map[string]any {
	out := make([]map[string]any, 0, len(rels))
	for _, rel := range rels {
		out = append(out, relationshipJSON(rel))
	}
	return out
}

func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string             `json:"title"`
		Description  string             `json:"description"`
		LoggedAt     string             `json:"logged_at"`
		Measurements map[string]float64 `json:"measurements"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title required"})
		return
	}

	loggedAt := time.Now()
	if req.LoggedAt != "" {
		ts, err := time.Parse(time.RFC3339, req.LoggedAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "logged_at must be RFC3339"})
			return
		}
		loggedAt = ts
	}

	action := match.Action{
		Title:        req.Title,
		Description:  req.Description,
		LoggedAt:     loggedAt,
		Measurements: req.Measurements,
	}
	if err := s.db.CreateAction(&action); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, actionJSON(action))
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.db.ListActions()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActionSuggestions(w http.ResponseWriter, r *http.Request) {
	actionID := chi.URLParam(r, "actionID")

	rels, err := s.engine.InferForAction(r.Context(), actionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, relationshipsJSON(rels))
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title         string  `json:"title"`
		StartDate     string  `json:"start_date"`
		TargetDate    string  `json:"target_date"`
		TargetUnit    string  `json:"target_unit"`
		TargetValue   float64 `json:"target_value"`
		Actionability string  `json:"actionability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title required"})
		return
	}

	goal := match.Goal{
		Title:         req.Title,
		TargetUnit:    req.TargetUnit,
		TargetValue:   req.TargetValue,
		Actionability: req.Actionability,
	}
	for name, pair := range map[string]struct {
		raw  string
		dest **time.Time
	}{
		"start_date":  {req.StartDate, &goal.StartDate},
		"target_date": {req.TargetDate, &goal.TargetDate},
	} {
		if pair.raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, pair.raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": name + " must be RFC3339"})
			return
		}
		*pair.dest = &ts
	}

	if err := s.db.CreateGoal(&goal); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, goalJSON(goal))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.db.ListGoals()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalJSON(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	goalID := chi.URLParam(r, "goalID")

	progress, err := s.engine.GoalProgress(r.Context(), goalID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"goal_id":      progress.GoalID,
		"title":        progress.Title,
		"target_unit":  progress.TargetUnit,
		"target_value": progress.TargetValue,
		"contributed":  progress.Contributed,
		"percent":      progress.Percent,
	})
}

func (s *Server) handleGoalRelationships(w http.ResponseWriter, r *http.Request) {
	goalID := chi.URLParam(r, "goalID")

	rels, err := s.db.ListRelationshipsForGoal(goalID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(rels))
	for _, rel := range rels {
		out = append(out, relationshipJSON(rel.Relationship))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start  string `json:"start"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be RFC3339"})
		return
	}
	target, err := time.Parse(time.RFC3339, req.Target)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target must be RFC3339"})
		return
	}

	session, err := s.engine.InferForPeriod(r.Context(), start, target)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   session.Summary(),
		"confident": relationshipsJSON(session.Confident),
		"ambiguous": relationshipsJSON(session.Ambiguous),
	})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.PendingReview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(pending))
	for _, rel := range pending {
		out = append(out, relationshipJSON(rel.Relationship))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActionID     string   `json:"action_id"`
		GoalID       string   `json:"goal_id"`
		Contribution *float64 `json:"contribution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ActionID == "" || req.GoalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action_id and goal_id required"})
		return
	}

	rel, err := s.engine.ManualAssign(r.Context(), req.ActionID, req.GoalID, req.Contribution)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, relationshipJSON(rel))
}

func (s *Server) handleConfirmRelationship(w http.ResponseWriter, r *http.Request) {
	relationshipID := chi.URLParam(r, "relationshipID")

	confirmed, err := s.engine.ConfirmSuggestion(r.Context(), relationshipID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, relationshipJSON(confirmed))
}

func (s *Server) handleRejectRelationship(w http.ResponseWriter, r *http.Request) {
	relationshipID := chi.URLParam(r, "relationshipID")

	if err := s.engine.RejectSuggestion(r.Context(), relationshipID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}
