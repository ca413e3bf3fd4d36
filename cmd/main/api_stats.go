package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/charloom/charloom/pkg/ngram"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS stats_models (
    model_name    TEXT PRIMARY KEY,
    total_runs    INTEGER NOT NULL DEFAULT 1,
    total_chars   INTEGER NOT NULL DEFAULT 0,
    first_used    DATETIME NOT NULL,
    last_used     DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS stats_temperatures (
    temperature   REAL PRIMARY KEY,
    total_runs    INTEGER NOT NULL DEFAULT 1,
    first_used    DATETIME NOT NULL,
    last_used     DATETIME NOT NULL
);
`

// GenerationSummary provides a high-level overview of all generation activity.
type GenerationSummary struct {
	TotalRuns          int64  `json:"total_runs"`
	TotalChars         int64  `json:"total_chars"`
	UniqueModels       int64  `json:"unique_models"`
	UniqueTemperatures int64  `json:"unique_temperatures"`
	Uptime             string `json:"uptime"`
	DatabaseSize       string `json:"database_size"`
}

// StatsAPI holds the dependencies for the statistics handlers.
type StatsAPI struct {
	db        *sql.DB
	store     *ngram.Store
	dbPath    string
	startTime time.Time
	logger    *slog.Logger
}

func setupStatsSchema(db *sql.DB) error {
	_, err := db.Exec(statsSchema)
	return err
}

func NewStatsAPI(db *sql.DB, store *ngram.Store, dbPath string, logger *slog.Logger) *StatsAPI {
	return &StatsAPI{
		db:        db,
		store:     store,
		dbPath:    dbPath,
		startTime: time.Now(),
		logger:    logger,
	}
}

func (s *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats/summary", s.handleSummary)
	mux.HandleFunc("/api/stats/top_models", s.handleTopModels)
	mux.HandleFunc("/api/stats/top_temperatures", s.handleTopTemperatures)
	mux.HandleFunc("/api/stats/store", s.handleStoreStats)
}

// LogGeneration records one finished run. Both usage tables are updated in a
// single transaction so the counters never drift apart. Temperatures are
// bucketed to two decimals so near-identical requests share a row.
func (s *StatsAPI) LogGeneration(ctx context.Context, modelName string, temperature float64, chars int) error {
	now := time.Now()
	bucket := math.Round(temperature*100) / 100

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	_, err = tx.ExecContext(ctx, `
        INSERT INTO stats_models (model_name, total_chars, first_used, last_used) VALUES (?, ?, ?, ?)
        ON CONFLICT(model_name) DO UPDATE SET total_runs = total_runs + 1, total_chars = total_chars + ?, last_used = ?
    `, modelName, chars, now, now, chars, now)
	if err != nil {
		return fmt.Errorf("failed to upsert stats_models: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO stats_temperatures (temperature, first_used, last_used) VALUES (?, ?, ?)
        ON CONFLICT(temperature) DO UPDATE SET total_runs = total_runs + 1, last_used = ?
    `, bucket, now, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert stats_temperatures: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stats transaction: %w", err)
	}

	return nil
}

func (s *StatsAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "stats:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}
	var summary GenerationSummary
	_ = s.db.QueryRowContext(r.Context(), "SELECT COALESCE(SUM(total_runs), 0) FROM stats_models").Scan(&summary.TotalRuns)
	_ = s.db.QueryRowContext(r.Context(), "SELECT COALESCE(SUM(total_chars), 0) FROM stats_models").Scan(&summary.TotalChars)
	_ = s.db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM stats_models").Scan(&summary.UniqueModels)
	_ = s.db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM stats_temperatures").Scan(&summary.UniqueTemperatures)
	summary.Uptime = time.Since(s.startTime).Round(time.Second).String()
	if info, err := os.Stat(s.dbPath); err == nil {
		summary.DatabaseSize = humanize.Bytes(uint64(info.Size()))
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *StatsAPI) handleTopModels(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "stats:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}
	rows, err := s.db.QueryContext(r.Context(), "SELECT model_name, total_runs, total_chars, first_used, last_used FROM stats_models ORDER BY total_runs DESC LIMIT 100")
	if err != nil {
		s.logger.Error("Failed to query top models", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var results []map[string]any
	for rows.Next() {
		var name string
		var runs, chars int64
		var first, last time.Time
		err = rows.Scan(&name, &runs, &chars, &first, &last)
		if err != nil {
			s.logger.Error("Failed to scan top models", "error", err)
		}
		results = append(results, map[string]any{
			"model_name":  name,
			"total_runs":  runs,
			"total_chars": chars,
			"first_used":  first,
			"last_used":   last,
		})
	}
	respondWithJSON(w, http.StatusOK, results)
}

func (s *StatsAPI) handleTopTemperatures(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "stats:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}
	rows, err := s.db.QueryContext(r.Context(), "SELECT temperature, total_runs, first_used, last_used FROM stats_temperatures ORDER BY total_runs DESC LIMIT 100")
	if err != nil {
		s.logger.Error("Failed to query top temperatures", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var results []map[string]any
	for rows.Next() {
		var temperature float64
		var runs int64
		var first, last time.Time
		err = rows.Scan(&temperature, &runs, &first, &last)
		if err != nil {
			s.logger.Error("Failed to scan top temperatures", "error", err)
		}
		results = append(results, map[string]any{
			"temperature": temperature,
			"total_runs":  runs,
			"first_used":  first,
			"last_used":   last,
		})
	}
	respondWithJSON(w, http.StatusOK, results)
}

// handleStoreStats reports the size of every stored model, straight from the
// ngram store.
func (s *StatsAPI) handleStoreStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "stats:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}
	stats, err := s.store.GetStoreStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to get store stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
