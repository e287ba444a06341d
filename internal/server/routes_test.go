package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telos-app/telos/internal/engine"
	"github.com/telos-app/telos/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, engine.New(db), "test")
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func doJSONList(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, []map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec, body := doJSON(t, s, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["db"])
}

func TestCreateActionValidation(t *testing.T) {
	s := newTestServer(t)

	rec, _ := doJSON(t, s, http.MethodPost, "/api/actions", map[string]any{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, s, http.MethodPost, "/api/actions", map[string]any{
		"title": "run", "logged_at": "yesterday-ish",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewFlow(t *testing.T) {
	s := newTestServer(t)

	// Ambiguity comes from pooling sources with a stricter threshold.
	s.engine.Threshold = 0.95

	rec, goal := doJSON(t, s, http.MethodPost, "/api/goals", map[string]any{
		"title":        "Run 120km",
		"start_date":   "2025-03-01T00:00:00Z",
		"target_date":  "2025-03-31T00:00:00Z",
		"target_unit":  "km",
		"target_value": 120,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	goalID := goal["id"].(string)

	rec, action := doJSON(t, s, http.MethodPost, "/api/actions", map[string]any{
		"title":        "Morning run",
		"logged_at":    "2025-03-10T07:00:00Z",
		"measurements": map[string]float64{"km": 5.2},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, action["id"])

	rec, inferred := doJSON(t, s, http.MethodPost, "/api/infer", map[string]any{
		"start":  "2025-03-01T00:00:00Z",
		"target": "2025-03-31T23:59:59Z",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	ambiguous := inferred["ambiguous"].([]any)
	require.Len(t, ambiguous, 1)

	rec, review := doJSONList(t, s, http.MethodGet, "/api/review")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, review, 1)
	relID := review[0]["id"].(string)

	rec, confirmed := doJSON(t, s, http.MethodPost, "/api/relationships/"+relID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user_confirmed", confirmed["method"])
	assert.Equal(t, 1.0, confirmed["confidence"])

	rec, progress := doJSON(t, s, http.MethodGet, "/api/goals/"+goalID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 5.2, progress["contributed"].(float64), 1e-9)

	rec, rels := doJSONList(t, s, http.MethodGet, "/api/goals/"+goalID+"/relationships")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rels, 1)
}

func TestRejectFlow(t *testing.T) {
	s := newTestServer(t)
	s.engine.Threshold = 0.95

	_, goal := doJSON(t, s, http.MethodPost, "/api/goals", map[string]any{
		"title": "Run 120km", "target_unit": "km",
	})
	_, _ = doJSON(t, s, http.MethodPost, "/api/actions", map[string]any{
		"title": "Morning run", "logged_at": "2025-03-10T07:00:00Z",
		"measurements": map[string]float64{"km": 5.2},
	})
	_, _ = doJSON(t, s, http.MethodPost, "/api/infer", map[string]any{
		"start": "2025-03-01T00:00:00Z", "target": "2025-03-31T23:59:59Z",
	})

	_, review := doJSONList(t, s, http.MethodGet, "/api/review")
	require.Len(t, review, 1)
	relID := review[0]["id"].(string)

	rec, body := doJSON(t, s, http.MethodDelete, "/api/relationships/"+relID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "discarded", body["status"])

	_, review = doJSONList(t, s, http.MethodGet, "/api/review")
	assert.Empty(t, review)

	// Rejection leaves no trace on progress.
	rec, progress := doJSON(t, s, http.MethodGet, "/api/goals/"+goal["id"].(string)+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, progress["contributed"].(float64))

	rec, _ = doJSON(t, s, http.MethodDelete, "/api/relationships/"+relID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManualRelationshipEndpoint(t *testing.T) {
	s := newTestServer(t)

	_, goal := doJSON(t, s, http.MethodPost, "/api/goals", map[string]any{
		"title": "Move more", "target_unit": "minutes", "target_value": 600,
	})
	_, action := doJSON(t, s, http.MethodPost, "/api/actions", map[string]any{
		"title": "Yoga class", "measurements": map[string]float64{"minutes": 30},
	})

	rec, rel := doJSON(t, s, http.MethodPost, "/api/relationships", map[string]any{
		"action_id": action["id"], "goal_id": goal["id"], "contribution": 45.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "manual", rel["method"])
	assert.Equal(t, 45.0, rel["contribution"])

	rec, _ = doJSON(t, s, http.MethodPost, "/api/relationships", map[string]any{
		"action_id": "missing", "goal_id": goal["id"],
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, s, http.MethodPost, "/api/relationships", map[string]any{
		"goal_id": goal["id"],
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualRelationshipKeepsExistingRowID(t *testing.T) {
	s := newTestServer(t)
	s.engine.Threshold = 0.95

	_, goal := doJSON(t, s, http.MethodPost, "/api/goals", map[string]any{
		"title": "Run 120km", "target_unit": "km",
	})
	_, action := doJSON(t, s, http.MethodPost, "/api/actions", map[string]any{
		"title": "Morning run", "logged_at": "2025-03-10T07:00:00Z",
		"measurements": map[string]float64{"km": 5.2},
	})
	_, _ = doJSON(t, s, http.MethodPost, "/api/infer", map[string]any{
		"start": "2025-03-01T00:00:00Z", "target": "2025-03-31T23:59:59Z",
	})

	_, review := doJSONList(t, s, http.MethodGet, "/api/review")
	require.Len(t, review, 1)
	suggestionID := review[0]["id"].(string)

	// A manual assignment over the staged pair must answer with the row that
	// actually exists, so the follow-up confirm by that ID works.
	rec, rel := doJSON(t, s, http.MethodPost, "/api/relationships", map[string]any{
		"action_id": action["id"], "goal_id": goal["id"],
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, suggestionID, rel["id"])

	rec, _ = doJSON(t, s, http.MethodPost, "/api/relationships/"+rel["id"].(string)+"/confirm", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActionSuggestionsEndpoint(t *testing.T) {
	s := newTestServer(t)

	_, action := doJSON(t, s, http.MethodPost, "/api/actions", map[string]any{
		"title": "Morning run", "measurements": map[string]float64{"km": 5},
	})
	_, _ = doJSON(t, s, http.MethodPost, "/api/goals", map[string]any{
		"title": "Run 120km", "target_unit": "km",
	})

	rec, suggestions := doJSONList(t, s, http.MethodGet, "/api/actions/"+action["id"].(string)+"/suggestions")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "auto_inferred", suggestions[0]["method"])

	req := httptest.NewRequest(http.MethodGet, "/api/actions/missing/suggestions", nil)
	recorder := httptest.NewRecorder()
	s.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
