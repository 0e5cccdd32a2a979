package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nex2i/Polygloss/internal/hub"
	"github.com/Nex2i/Polygloss/internal/lessons"
	"github.com/Nex2i/Polygloss/internal/store"
)

func newTestServer(t *testing.T, provider lessons.Provider) *Server {
	t.Helper()
	if provider == nil {
		provider = lessons.NewDefaultProvider()
	}
	return NewServer(hub.NewHub(), store.NewMemoryStore(), provider)
}

func doRequest(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := doRequest(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["connections"])
	assert.Contains(t, body, "store")
}

func TestHandleChatProbe(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := doRequest(t, s, "/api/chat")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Chat WebSocket endpoint is available.", body["message"])
}

func TestGetLessonPlan(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := doRequest(t, s, "/api/lesson-plans?skill_level=3")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["skill_level"])
	assert.NotEmpty(t, data["phrases"])
}

func TestGetLessonPlanFallsBackToHighest(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := doRequest(t, s, "/api/lesson-plans?skill_level=9")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(5), data["skill_level"])
}

func TestGetLessonPlanInvalidLevel(t *testing.T) {
	s := newTestServer(t, nil)

	for _, query := range []string{"", "skill_level=abc", "skill_level=0", "skill_level=11"} {
		rec, body := doRequest(t, s, "/api/lesson-plans?"+query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
		assert.Equal(t, "Skill level must be a number between 1 and 10", body["message"])
	}
}

func TestGetLessonPlanNotFound(t *testing.T) {
	sparse := lessons.NewStaticProvider(map[int]*lessons.Plan{
		1: {SkillLevel: 1, Title: "Basics"},
		3: {SkillLevel: 3, Title: "Travel"},
	})
	s := newTestServer(t, sparse)

	rec, body := doRequest(t, s, "/api/lesson-plans?skill_level=2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Lesson plan not found", body["error"])
}

func TestGetLessonLevels(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := doRequest(t, s, "/api/lesson-plans/levels")
	assert.Equal(t, http.StatusOK, rec.Code)
	levels := body["levels"].([]interface{})
	assert.Equal(t, []interface{}{float64(1), float64(2), float64(3), float64(4), float64(5)}, levels)
}
