package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/landcover.report/internal/change"
	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one committed training run with its accuracy report.
type Run struct {
	ID            string          `json:"run_id"`
	Family        classify.Family `json:"family"`
	ReferenceYear int             `json:"reference_year"`
	Bands         []string        `json:"bands"`
	TrainSamples  int             `json:"train_samples"`
	TestSamples   int             `json:"test_samples"`
	Dropped       int             `json:"dropped_samples"`
	Accuracy      float64         `json:"accuracy"`
	Kappa         float64         `json:"kappa"`
	Confusion     [][]int         `json:"confusion_matrix"`
	Years         []int           `json:"years"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RecordRun stores a committed run.
func (db *DB) RecordRun(ctx context.Context, runID string, createdAt time.Time, years []int, report *classify.Report) error {
	if report == nil {
		return fmt.Errorf("run %s has no report", runID)
	}
	bands, err := json.Marshal(report.Bands)
	if err != nil {
		return fmt.Errorf("failed to encode bands: %w", err)
	}
	confusion, err := json.Marshal(report.Confusion)
	if err != nil {
		return fmt.Errorf("failed to encode confusion matrix: %w", err)
	}
	yearsJSON, err := json.Marshal(years)
	if err != nil {
		return fmt.Errorf("failed to encode years: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, family, reference_year, bands, train_samples, test_samples,
			dropped_samples, accuracy, kappa, confusion_json, years, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, string(report.Family), report.ReferenceYear, string(bands),
		report.TrainSamples, report.TestSamples, report.Dropped,
		report.Accuracy, report.Kappa, string(confusion), string(yearsJSON),
		createdAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", runID, err)
	}
	return nil
}

// RecordZonal replaces the stored statistics for one run and year.
func (db *DB) RecordZonal(ctx context.Context, runID string, year int, res zonal.Result) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM zonal_stats WHERE run_id = ? AND year = ?`, runID, year); err != nil {
		return fmt.Errorf("failed to clear zonal stats: %w", err)
	}
	for _, class := range res.Classes() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO zonal_stats (run_id, year, class, area_ha) VALUES (?, ?, ?, ?)`,
			runID, year, class, res[class],
		); err != nil {
			return fmt.Errorf("failed to insert zonal stat: %w", err)
		}
	}
	return tx.Commit()
}

// RecordTransitions replaces the stored transition table and net delta for
// one run and year pair.
func (db *DB) RecordTransitions(ctx context.Context, runID string, report *change.Report) error {
	if report == nil {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"transitions", "net_delta"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE run_id = ? AND year1 = ? AND year2 = ?`,
			runID, report.Year1, report.Year2,
		); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	for _, tr := range report.Transitions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transitions (run_id, year1, year2, from_class, to_class, area_ha)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, report.Year1, report.Year2, tr.From, tr.To, tr.AreaHa,
		); err != nil {
			return fmt.Errorf("failed to insert transition: %w", err)
		}
	}
	for class, delta := range report.NetDelta {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO net_delta (run_id, year1, year2, class, delta_ha)
			VALUES (?, ?, ?, ?, ?)`,
			runID, report.Year1, report.Year2, class, delta,
		); err != nil {
			return fmt.Errorf("failed to insert net delta: %w", err)
		}
	}
	return tx.Commit()
}

const runColumns = `run_id, family, reference_year, bands, train_samples, test_samples,
	dropped_samples, accuracy, kappa, confusion_json, years, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (Run, error) {
	var r Run
	var family, bands, confusion, years string
	var createdAt int64
	if err := s.Scan(&r.ID, &family, &r.ReferenceYear, &bands, &r.TrainSamples, &r.TestSamples,
		&r.Dropped, &r.Accuracy, &r.Kappa, &confusion, &years, &createdAt); err != nil {
		return Run{}, err
	}
	r.Family = classify.Family(family)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(bands), &r.Bands); err != nil {
		return Run{}, fmt.Errorf("run %s bands: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(confusion), &r.Confusion); err != nil {
		return Run{}, fmt.Errorf("run %s confusion matrix: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(years), &r.Years); err != nil {
		return Run{}, fmt.Errorf("run %s years: %w", r.ID, err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (db *DB) GetRun(ctx context.Context, runID string) (Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return r, err
}

// ZonalStats returns the stored statistics of a run keyed by year.
func (db *DB) ZonalStats(ctx context.Context, runID string) (map[int]zonal.Result, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT year, class, area_ha FROM zonal_stats WHERE run_id = ? ORDER BY year, class`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query zonal stats: %w", err)
	}
	defer rows.Close()

	out := make(map[int]zonal.Result)
	for rows.Next() {
		var year, class int
		var area float64
		if err := rows.Scan(&year, &class, &area); err != nil {
			return nil, err
		}
		if out[year] == nil {
			out[year] = zonal.Result{}
		}
		out[year][class] = area
	}
	return out, rows.Err()
}

// Transitions returns the stored transition table for a year pair, largest
// area first.
func (db *DB) Transitions(ctx context.Context, runID string, year1, year2 int) ([]change.TransitionRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT from_class, to_class, area_ha FROM transitions
		WHERE run_id = ? AND year1 = ? AND year2 = ?
		ORDER BY area_ha DESC, from_class, to_class`,
		runID, year1, year2)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	out := []change.TransitionRecord{}
	for rows.Next() {
		var tr change.TransitionRecord
		if err := rows.Scan(&tr.From, &tr.To, &tr.AreaHa); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
