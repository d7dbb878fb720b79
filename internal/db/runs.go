package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/qrdar/internal/marker"
	"github.com/banshee-data/qrdar/internal/survey"
)

// Run is one pass of the decoder over a survey.
type Run struct {
	ID           string
	StartedUnix  float64
	FinishedUnix *float64
	Dictionary   string
	ParamsJSON   string
	TargetCount  int
}

// StoredResult is a marker_results row with its tied codes.
type StoredResult struct {
	RunID      string
	TargetID   int
	Status     string
	Centroid   marker.Vec3
	Code       *int
	Confidence *float64
	RMSE       *float64
	Method     string
	Corners    []marker.Vec3
	Tiles      []string
	PointCount int
	Error      string
	Candidates []int
}

// CreateRun records the start of a run and returns its id.
func (db *DB) CreateRun(ctx context.Context, dictionary string, params marker.Params) (*Run, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	run := &Run{
		ID:          uuid.NewString(),
		StartedUnix: float64(time.Now().UnixNano()) / 1e9,
		Dictionary:  dictionary,
		ParamsJSON:  string(paramsJSON),
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_unix, dictionary, params_json) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedUnix, run.Dictionary, run.ParamsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the finish time and the number of targets processed.
func (db *DB) FinishRun(ctx context.Context, runID string, targets int) error {
	res, err := db.ExecContext(ctx,
		`UPDATE runs SET finished_unix = ?, target_count = ? WHERE run_id = ?`,
		float64(time.Now().UnixNano())/1e9, targets, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun loads a run by id.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	var finished sql.NullFloat64
	err := db.QueryRowContext(ctx, `
		SELECT run_id, started_unix, finished_unix, dictionary, params_json, target_count
		FROM runs WHERE run_id = ?`, runID).
		Scan(&r.ID, &r.StartedUnix, &finished, &r.Dictionary, &r.ParamsJSON, &r.TargetCount)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedUnix = &finished.Float64
	}
	return &r, nil
}

// RecordSink returns a sink that stores survey records under runID.
func (db *DB) RecordSink(runID string) survey.RecordSink {
	return &runSink{db: db, runID: runID}
}

type runSink struct {
	db    *DB
	runID string
}

func (s *runSink) SaveRecord(ctx context.Context, rec survey.Record) error {
	return s.db.SaveRecord(ctx, s.runID, rec)
}

// SaveRecord stores one target's outcome and, for ambiguous decodes, its
// tied code ids.
func (db *DB) SaveRecord(ctx context.Context, runID string, rec survey.Record) error {
	var (
		code       sql.NullInt64
		confidence sql.NullFloat64
		rmse       sql.NullFloat64
		method     sql.NullString
		corners    sql.NullString
		errText    sql.NullString
	)
	if res := rec.Result; res != nil {
		if !res.Ambiguous {
			code = sql.NullInt64{Int64: int64(res.Code), Valid: true}
		}
		confidence = sql.NullFloat64{Float64: res.Confidence, Valid: true}
		rmse = sql.NullFloat64{Float64: res.RMSE, Valid: true}
		method = sql.NullString{String: res.Method, Valid: true}
		b, err := json.Marshal(res.Corners)
		if err != nil {
			return err
		}
		corners = sql.NullString{String: string(b), Valid: true}
	}
	if rec.Err != nil {
		errText = sql.NullString{String: rec.Err.Error(), Valid: true}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	c := rec.Target.Centroid
	_, err = tx.ExecContext(ctx, `
		INSERT INTO marker_results (
			run_id, target_id, status, centroid_x, centroid_y, centroid_z,
			code, confidence, rmse, method, corners_json, tiles, point_count, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Target.ID, rec.Status(), c[0], c[1], c[2],
		code, confidence, rmse, method, corners, strings.Join(rec.Tiles, ","), rec.Points, errText)
	if err != nil {
		return fmt.Errorf("failed to store target %d: %w", rec.Target.ID, err)
	}

	if rec.Result != nil && rec.Result.Ambiguous {
		for _, id := range rec.Result.Candidates {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ambiguous_codes (run_id, target_id, code_id) VALUES (?, ?, ?)`,
				runID, rec.Target.ID, id); err != nil {
				return fmt.Errorf("failed to store tied code %d: %w", id, err)
			}
		}
	}
	return tx.Commit()
}

// Results returns the stored results of a run ordered by target.
func (db *DB) Results(ctx context.Context, runID string) ([]StoredResult, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT target_id, status, centroid_x, centroid_y, centroid_z,
		       code, confidence, rmse, method, corners_json, tiles, point_count, error
		FROM marker_results WHERE run_id = ? ORDER BY target_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		var (
			r          = StoredResult{RunID: runID}
			code       sql.NullInt64
			confidence sql.NullFloat64
			rmse       sql.NullFloat64
			method     sql.NullString
			corners    sql.NullString
			tiles      string
			errText    sql.NullString
		)
		if err := rows.Scan(&r.TargetID, &r.Status, &r.Centroid[0], &r.Centroid[1], &r.Centroid[2],
			&code, &confidence, &rmse, &method, &corners, &tiles, &r.PointCount, &errText); err != nil {
			return nil, err
		}
		if code.Valid {
			v := int(code.Int64)
			r.Code = &v
		}
		if confidence.Valid {
			r.Confidence = &confidence.Float64
		}
		if rmse.Valid {
			r.RMSE = &rmse.Float64
		}
		r.Method = method.String
		r.Error = errText.String
		if tiles != "" {
			r.Tiles = strings.Split(tiles, ",")
		}
		if corners.Valid {
			if err := json.Unmarshal([]byte(corners.String), &r.Corners); err != nil {
				return nil, fmt.Errorf("target %d: bad corners: %w", r.TargetID, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Status != survey.StatusAmbiguous {
			continue
		}
		ids, err := db.tiedCodes(ctx, runID, out[i].TargetID)
		if err != nil {
			return nil, err
		}
		out[i].Candidates = ids
	}
	return out, nil
}

func (db *DB) tiedCodes(ctx context.Context, runID string, targetID int) ([]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT code_id FROM ambiguous_codes WHERE run_id = ? AND target_id = ? ORDER BY code_id`,
		runID, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, started_unix, finished_unix, dictionary, params_json, target_count
		FROM runs ORDER BY started_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.StartedUnix, &finished, &r.Dictionary, &r.ParamsJSON, &r.TargetCount); err != nil {
			return nil, err
		}
		if finished.Valid {
			v := finished.Float64
			r.FinishedUnix = &v
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
