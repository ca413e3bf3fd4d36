package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/charloom/charloom/pkg/ngram"
	"github.com/charloom/charloom/pkg/textgen"
)

// GenerateAPI holds the dependencies for the generation endpoints.
type GenerateAPI struct {
	store  *ngram.Store
	cm     *ConfigManager
	stats  *StatsAPI
	logger *slog.Logger
}

// NewGenerateAPI creates a new instance of the GenerateAPI.
func NewGenerateAPI(store *ngram.Store, cm *ConfigManager, stats *StatsAPI, logger *slog.Logger) *GenerateAPI {
	return &GenerateAPI{
		store:  store,
		cm:     cm,
		stats:  stats,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/generate endpoints.
func (g *GenerateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/generate", g.handleGenerate)
	mux.HandleFunc("/api/generate/sheet", g.handleSheet)
	mux.HandleFunc("/api/generate/stream", g.handleStream)
}

type GenerateRequest struct {
	Model       string  `json:"model"`
	Seed        string  `json:"seed,omitempty"`
	Length      int     `json:"length,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type GenerateResponse struct {
	ID          string  `json:"id"`
	Model       string  `json:"model"`
	Seed        string  `json:"seed"`
	Temperature float64 `json:"temperature"`
	Output      string  `json:"output"`
	Error       string  `json:"error,omitempty"`
}

type SheetRequest struct {
	Model        string    `json:"model"`
	Seed         string    `json:"seed,omitempty"`
	Length       int       `json:"length,omitempty"`
	Temperatures []float64 `json:"temperatures,omitempty"`
}

type SheetRowResponse struct {
	Temperature float64 `json:"temperature"`
	Output      string  `json:"output"`
}

type SheetResponse struct {
	ID    string             `json:"id"`
	Model string             `json:"model"`
	Seed  string             `json:"seed"`
	Rows  []SheetRowResponse `json:"rows"`
}

// generationRun is a resolved request: the model, its vocabulary, a ready
// generator, and the bounded parameters.
type generationRun struct {
	model       ngram.ModelInfo
	vocab       *textgen.Vocabulary
	generator   *textgen.Generator
	seed        string
	length      int
	temperature float64
	keepPartial bool
}

// resolveRun turns raw request fields into a runnable generation, writing the
// appropriate error response when it cannot. The boolean reports success.
// A missing model name falls back to the configured default model, a missing
// seed draws a stored context, and length and temperature are bounded by the
// generation config.
func (g *GenerateAPI) resolveRun(w http.ResponseWriter, r *http.Request, modelName, seed string, length int, temperature float64) (*generationRun, bool) {
	cfg := g.cm.Get()

	if modelName == "" {
		modelName = cfg.Showcase.DefaultModel
	}
	if modelName == "" {
		respondWithError(w, http.StatusBadRequest, "Model name is required (no default model configured)")
		return nil, false
	}

	model, err := g.store.GetModelInfo(r.Context(), modelName)
	if err != nil {
		if errors.Is(err, ngram.ErrModelNotFound) {
			respondWithError(w, http.StatusNotFound, "Model not found")
			return nil, false
		}
		g.logger.Error("Failed to get model info", "name", modelName, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return nil, false
	}

	vocab, err := g.store.LoadVocabulary(r.Context(), model)
	if err != nil {
		if errors.Is(err, ngram.ErrModelNotTrained) {
			respondWithError(w, http.StatusConflict, fmt.Sprintf("Model '%s' has not been trained yet", modelName))
			return nil, false
		}
		g.logger.Error("Failed to load vocabulary", "name", modelName, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return nil, false
	}

	if seed == "" {
		seed, err = g.store.RandomContext(r.Context(), model, vocab)
		if err != nil {
			if errors.Is(err, ngram.ErrModelNotTrained) {
				respondWithError(w, http.StatusConflict, fmt.Sprintf("Model '%s' has no stored contexts to seed from", modelName))
				return nil, false
			}
			g.logger.Error("Failed to draw random context", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
			return nil, false
		}
	} else if utf8.RuneCountInString(seed) != model.WindowLen {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Seed must be exactly %d characters for this model", model.WindowLen))
		return nil, false
	}

	if length <= 0 {
		length = cfg.Generation.DefaultLength
	}
	if length > cfg.Generation.MaxLength {
		length = cfg.Generation.MaxLength
	}
	if temperature <= 0 {
		temperature = cfg.Generation.DefaultTemperature
	}

	gen := textgen.NewGenerator(vocab, g.store.Predictor(model, vocab))
	gen.SetLogger(g.logger)

	return &generationRun{
		model:       model,
		vocab:       vocab,
		generator:   gen,
		seed:        seed,
		length:      length,
		temperature: temperature,
		keepPartial: cfg.Generation.KeepPartial,
	}, true
}

// handleGenerate runs one generation and returns the full output at once.
func (g *GenerateAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "generate:run") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'generate:run' scope")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	run, ok := g.resolveRun(w, r, req.Model, req.Seed, req.Length, req.Temperature)
	if !ok {
		return
	}

	resp := GenerateResponse{
		ID:          uuid.NewString(),
		Model:       run.model.Name,
		Seed:        run.seed,
		Temperature: run.temperature,
	}

	output, err := run.generator.Generate(r.Context(), run.seed, run.length,
		textgen.WithTemperature(run.temperature), textgen.WithKeepPartial(run.keepPartial))
	if err != nil {
		if !run.keepPartial || output == "" {
			g.logger.Error("Generation failed", "model", run.model.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Generation failed: %v", err))
			return
		}
		// The config opted in to partial output, so hand back what exists
		// together with the failure.
		g.logger.Warn("Generation ended early, returning partial output", "model", run.model.Name, "error", err)
		resp.Error = err.Error()
	}
	resp.Output = output

	if err = g.stats.LogGeneration(r.Context(), run.model.Name, run.temperature, utf8.RuneCountInString(output)); err != nil {
		g.logger.Warn("Failed to record generation stats", "error", err)
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// handleSheet runs the same seed across several temperatures, the classic
// way to eyeball how diversity changes with sampling heat.
func (g *GenerateAPI) handleSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "generate:run") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'generate:run' scope")
		return
	}

	var req SheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	temps := req.Temperatures
	if len(temps) == 0 {
		cfg := g.cm.Get()
		temps = cfg.Generation.SheetTemperatures
	}
	if len(temps) == 0 {
		respondWithError(w, http.StatusBadRequest, "No temperatures given and none configured")
		return
	}
	for _, temp := range temps {
		if temp <= 0 {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Temperature %v is not positive", temp))
			return
		}
	}

	run, ok := g.resolveRun(w, r, req.Model, req.Seed, req.Length, 0)
	if !ok {
		return
	}

	rows := make([]SheetRowResponse, 0, len(temps))
	for _, temp := range temps {
		output, err := run.generator.Generate(r.Context(), run.seed, run.length,
			textgen.WithTemperature(temp), textgen.WithKeepPartial(run.keepPartial))
		if err != nil && (!run.keepPartial || output == "") {
			g.logger.Error("Sheet row failed", "model", run.model.Name, "temperature", temp, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Generation failed at temperature %v: %v", temp, err))
			return
		}
		if err = g.stats.LogGeneration(r.Context(), run.model.Name, temp, utf8.RuneCountInString(output)); err != nil {
			g.logger.Warn("Failed to record generation stats", "error", err)
		}
		rows = append(rows, SheetRowResponse{Temperature: temp, Output: output})
	}

	respondWithJSON(w, http.StatusOK, SheetResponse{
		ID:    uuid.NewString(),
		Model: run.model.Name,
		Seed:  run.seed,
		Rows:  rows,
	})
}

// handleStream writes characters to the client as they are drawn, flushing
// each one, so callers can watch the text grow.
func (g *GenerateAPI) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "generate:run") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'generate:run' scope")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	run, ok := g.resolveRun(w, r, req.Model, req.Seed, req.Length, req.Temperature)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Streaming not supported by this connection")
		return
	}

	stream, err := run.generator.GenerateStream(r.Context(), run.seed, run.length,
		textgen.WithTemperature(run.temperature))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Generation failed to start: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, no-cache")
	w.WriteHeader(http.StatusOK)

	var written int
	for sc := range stream {
		if sc.Err != nil {
			// Headers are long gone, so all that is left is to cut the body short.
			g.logger.Error("Generation stream failed", "model", run.model.Name, "error", sc.Err)
			break
		}
		if _, err = io.WriteString(w, string(sc.Char)); err != nil {
			g.logger.Debug("Client disconnected from stream", "error", err)
			break
		}
		flusher.Flush()
		written++
	}

	if err = g.stats.LogGeneration(r.Context(), run.model.Name, run.temperature, written); err != nil {
		g.logger.Warn("Failed to record generation stats", "error", err)
	}
}
