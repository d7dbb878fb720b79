// Package api serves stored decode runs as JSON.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/qrdar/internal/db"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const defaultRunLimit = 50

type Server struct {
	db *db.DB
}

func NewServer(db *db.DB) *Server {
	return &Server{db: db}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers the run endpoints on mux.
//
//	GET /api/runs?limit=N     most recent runs first
//	GET /api/runs/{id}        one run with its per-target results
func (s *Server) ServeMux(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
}

// RunJSON is the wire form of a run.
type RunJSON struct {
	ID          string          `json:"run_id"`
	Started     time.Time       `json:"started"`
	Finished    *time.Time      `json:"finished,omitempty"`
	Dictionary  string          `json:"dictionary"`
	Params      json.RawMessage `json:"params,omitempty"`
	TargetCount int             `json:"target_count"`
}

// ResultJSON is the wire form of one target's stored outcome.
type ResultJSON struct {
	TargetID   int          `json:"target_id"`
	Status     string       `json:"status"`
	Centroid   [3]float64   `json:"centroid"`
	Code       *int         `json:"code"`
	Candidates []int        `json:"candidates,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
	RMSE       *float64     `json:"rmse,omitempty"`
	Method     string       `json:"method,omitempty"`
	Corners    [][3]float64 `json:"corners,omitempty"`
	Tiles      []string     `json:"tiles,omitempty"`
	PointCount int          `json:"point_count"`
	Error      string       `json:"error,omitempty"`
}

func unixTime(sec float64) time.Time {
	return time.Unix(0, int64(sec*1e9)).UTC()
}

func toRunJSON(r db.Run) RunJSON {
	out := RunJSON{
		ID:          r.ID,
		Started:     unixTime(r.StartedUnix),
		Dictionary:  r.Dictionary,
		TargetCount: r.TargetCount,
	}
	if r.FinishedUnix != nil {
		f := unixTime(*r.FinishedUnix)
		out.Finished = &f
	}
	if json.Valid([]byte(r.ParamsJSON)) {
		out.Params = json.RawMessage(r.ParamsJSON)
	}
	return out
}

func toResultJSON(r db.StoredResult) ResultJSON {
	out := ResultJSON{
		TargetID:   r.TargetID,
		Status:     r.Status,
		Centroid:   r.Centroid,
		Code:       r.Code,
		Candidates: r.Candidates,
		Confidence: r.Confidence,
		RMSE:       r.RMSE,
		Method:     r.Method,
		Tiles:      r.Tiles,
		PointCount: r.PointCount,
		Error:      r.Error,
	}
	for _, c := range r.Corners {
		out.Corners = append(out.Corners, c)
	}
	return out
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.db.ListRuns(r.Context(), limit)
	if err != nil {
		log.Printf("list runs: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	out := make([]RunJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunJSON(run))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.db.GetRun(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		log.Printf("get run %s: %v", id, err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	results, err := s.db.Results(r.Context(), id)
	if err != nil {
		log.Printf("results of run %s: %v", id, err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load results")
		return
	}

	resp := struct {
		RunJSON
		Results []ResultJSON `json:"results"`
	}{RunJSON: toRunJSON(*run), Results: make([]ResultJSON, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, toResultJSON(res))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode json response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
