package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/overseer/internal/events"
	"github.com/aristath/overseer/internal/modules/agents"
)

func setupRouter(t *testing.T) *chi.Mux {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, agents.InitSchema(db))
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewBus(zerolog.Nop())
	manager := events.NewManager(bus, zerolog.Nop())
	repo := agents.NewRepository(db, zerolog.Nop())
	service := agents.NewService(repo, manager, 1000000, zerolog.Nop())

	r := chi.NewRouter()
	NewHandler(service, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func createAgent(t *testing.T, r *chi.Mux, name string) string {
	req := httptest.NewRequest("POST", "/agents", strings.NewReader(`{"name":"`+name+`","mode":"TRADING"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var response struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.NotEmpty(t, response.Data.ID)
	return response.Data.ID
}

func TestHandleCreateAndGetAgent(t *testing.T) {
	r := setupRouter(t)
	id := createAgent(t, r, "momentum")

	req := httptest.NewRequest("GET", "/agents/"+id, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"data"`
		Metadata struct {
			Timestamp string `json:"timestamp"`
		} `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "momentum", response.Data.Name)
	assert.Equal(t, "INACTIVE", response.Data.Status)
	assert.NotEmpty(t, response.Metadata.Timestamp)
}

func TestHandleCreateAgentRejectsBadMode(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest("POST", "/agents", strings.NewReader(`{"name":"x","mode":"SPECULATION"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetAgentNotFound(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest("GET", "/agents/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListAgents(t *testing.T) {
	r := setupRouter(t)
	createAgent(t, r, "first")
	createAgent(t, r, "second")

	req := httptest.NewRequest("GET", "/agents", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 2, response.Data.Count)
}

func TestHandleSuspendAndResume(t *testing.T) {
	r := setupRouter(t)
	id := createAgent(t, r, "momentum")

	req := httptest.NewRequest("POST", "/agents/"+id+"/suspend", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "SUSPENDED", response.Data.Status)

	req = httptest.NewRequest("POST", "/agents/"+id+"/resume", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "INACTIVE", response.Data.Status)
}

func TestHandleDeleteAgent(t *testing.T) {
	r := setupRouter(t)
	id := createAgent(t, r, "momentum")

	req := httptest.NewRequest("DELETE", "/agents/"+id, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/agents/"+id, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
