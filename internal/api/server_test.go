package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/qrdar/internal/db"
	"github.com/banshee-data/qrdar/internal/marker"
	"github.com/banshee-data/qrdar/internal/monitoring"
	"github.com/banshee-data/qrdar/internal/survey"
)

func newTestServer(t *testing.T) (*httptest.Server, *db.DB) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	mux := http.NewServeMux()
	NewServer(database).ServeMux(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, database
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestShowRun(t *testing.T) {
	srv, database := newTestServer(t)
	ctx := context.Background()

	run, err := database.CreateRun(ctx, "survey", marker.DefaultParams())
	require.NoError(t, err)
	sink := database.RecordSink(run.ID)
	require.NoError(t, sink.SaveRecord(ctx, survey.Record{
		Target: survey.Located{ID: 0, Centroid: marker.Vec3{1, 2, 3}},
		Tiles:  []string{"a"},
		Points: 120,
		Result: &marker.MarkerResult{Code: 7, Confidence: 1, RMSE: 0.003, Method: "mean",
			Corners: []marker.Vec3{{1, 2, 3}, {1.1, 2, 3}, {1, 2, 3.2}}},
	}))
	require.NoError(t, sink.SaveRecord(ctx, survey.Record{
		Target: survey.Located{ID: 1, Centroid: marker.Vec3{4, 5, 6}},
		Result: &marker.MarkerResult{Code: -1, Confidence: 0.9375, Ambiguous: true, Candidates: []int{4, 9}},
	}))
	require.NoError(t, database.FinishRun(ctx, run.ID, 2))

	var got struct {
		RunJSON
		Results []ResultJSON `json:"results"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/runs/"+run.ID, &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 2, got.TargetCount)
	assert.NotNil(t, got.Finished)

	var params marker.Params
	require.NoError(t, json.Unmarshal(got.Params, &params))
	assert.Equal(t, marker.DefaultParams().MaxCandidates, params.MaxCandidates)

	require.Len(t, got.Results, 2)
	require.NotNil(t, got.Results[0].Code)
	assert.Equal(t, 7, *got.Results[0].Code)
	assert.Equal(t, [3]float64{1.1, 2, 3}, got.Results[0].Corners[1])
	assert.Equal(t, []string{"a"}, got.Results[0].Tiles)
	assert.Nil(t, got.Results[1].Code)
	assert.Equal(t, survey.StatusAmbiguous, got.Results[1].Status)
	assert.Equal(t, []int{4, 9}, got.Results[1].Candidates)
}

func TestShowRun_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/runs/nope", &body))
	assert.Equal(t, "run not found", body["error"])
}

func TestListRuns(t *testing.T) {
	srv, database := newTestServer(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		_, err := database.CreateRun(ctx, name, marker.DefaultParams())
		require.NoError(t, err)
	}

	var runs []RunJSON
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/runs", &runs))
	assert.Len(t, runs, 3)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/runs?limit=2", &runs))
	assert.Len(t, runs, 2)

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/runs?limit=0", &body))
}

func TestListRuns_Empty(t *testing.T) {
	srv, _ := newTestServer(t)
	var runs []RunJSON
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/runs", &runs))
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(302), colorYellow)
	assert.Contains(t, statusCodeColor(404), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}
