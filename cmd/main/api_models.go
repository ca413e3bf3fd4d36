package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/charloom/charloom/pkg/ngram"
	"github.com/charloom/charloom/pkg/showcase"
	"github.com/charloom/charloom/pkg/textgen"
)

// ModelsAPI holds the dependencies for the model management API handlers.
type ModelsAPI struct {
	store  *ngram.Store
	sm     *showcase.Manager
	cm     *ConfigManager
	logger *slog.Logger
}

// NewModelsAPI creates a new instance of the ModelsAPI.
func NewModelsAPI(store *ngram.Store, sm *showcase.Manager, cm *ConfigManager, logger *slog.Logger) *ModelsAPI {
	return &ModelsAPI{
		store:  store,
		sm:     sm,
		cm:     cm,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/models endpoints.
func (m *ModelsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/models", m.handleListAndCreateModels)
	mux.HandleFunc("/api/models/", m.handleModelByName)
	mux.HandleFunc("/api/models/import", m.handleImport)
}

type CreateModelRequest struct {
	Name         string `json:"name"`
	WindowLength int    `json:"window_length"`
}

type PruneRequest struct {
	MinFreq int `json:"min_freq"`
}

// handleListAndCreateModels handles GET for listing and POST for creating models.
func (m *ModelsAPI) handleListAndCreateModels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, "models:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'models:read' scope")
			return
		}
		models, err := m.store.GetModelInfos(r.Context())
		if err != nil {
			m.logger.Error("Failed to get model infos", "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve models: %v", err))
			return
		}
		// Convert map to slice for consistent JSON output
		modelList := make([]ngram.ModelInfo, 0, len(models))
		for _, model := range models {
			modelList = append(modelList, model)
		}
		respondWithJSON(w, http.StatusOK, modelList)

	case http.MethodPost:
		if !hasScope(r, "models:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'models:write' scope")
			return
		}
		var req CreateModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if req.WindowLength <= 0 {
			cfg := m.cm.Get()
			req.WindowLength = cfg.Generation.WindowLength
		}
		if req.Name == "" || req.WindowLength <= 0 {
			respondWithError(w, http.StatusBadRequest, "Model name and a positive window length are required")
			return
		}

		model := ngram.ModelInfo{Name: req.Name, WindowLen: req.WindowLength}
		if err := m.store.InsertModel(r.Context(), model); err != nil {
			m.logger.Error("Failed to insert new model", "name", req.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create model: %v", err))
			return
		}
		newModel, err := m.store.GetModelInfo(r.Context(), req.Name)
		if err != nil {
			m.logger.Error("Failed to retrieve newly created model", "name", req.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to verify model creation: %v", err))
			return
		}
		respondWithJSON(w, http.StatusCreated, newModel)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleModelByName routes actions for a specific model: train, prune,
// stats, vocabulary, export, and delete.
func (m *ModelsAPI) handleModelByName(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimPrefix(r.URL.Path, "/api/models/")
	parts := strings.Split(path, "/")
	modelName := parts[0]

	if modelName == "" {
		respondWithError(w, http.StatusBadRequest, "Model name not specified")
		return
	}

	model, err := m.store.GetModelInfo(r.Context(), modelName)
	if err != nil {
		if errors.Is(err, ngram.ErrModelNotFound) {
			respondWithError(w, http.StatusNotFound, "Model not found")
			return
		}
		m.logger.Error("Failed to get model info by name", "name", modelName, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	if len(parts) == 1 { // Path is just /api/models/{name}
		if r.Method == http.MethodDelete {
			if !hasScope(r, "models:write") {
				respondWithError(w, http.StatusForbidden, "Forbidden: requires 'models:write' scope")
				return
			}
			if err = m.store.RemoveModel(r.Context(), model); err != nil {
				m.logger.Error("Failed to remove model", "name", modelName, "error", err)
				respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to remove model: %v", err))
				return
			}
			_ = m.sm.Refresh()
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.Header().Set("Allow", "DELETE")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	action := parts[1]
	switch action {
	case "train":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "models:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'models:write' scope")
			return
		}

		cfg := m.cm.Get()
		corpus, err := textgen.LoadCorpus(r.Body, cfg.Generation.separatorRune())
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read corpus body: %v", err))
			return
		}
		if err = m.store.Train(r.Context(), model, corpus); err != nil {
			if errors.Is(err, textgen.ErrUnknownChar) {
				respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Training rejected: %v", err))
				return
			}
			m.logger.Error("Failed to train model", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Training failed: %v", err))
			return
		}
		// New or retrained models change what the showcase can serve.
		_ = m.sm.Refresh()
		w.WriteHeader(http.StatusAccepted)

	case "prune":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "models:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'models:write' scope")
			return
		}
		var req PruneRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		removed, err := m.store.PruneTransitions(r.Context(), model, req.MinFreq)
		if err != nil {
			m.logger.Error("Failed to prune model", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Pruning failed: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]int64{"removed": removed})

	case "stats":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "models:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'models:read' scope")
			return
		}
		stats, err := m.store.GetModelStats(r.Context(), model)
		if err != nil {
			m.logger.Error("Failed to get model stats", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, stats)

	case "vocabulary":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "models:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'models:read' scope")
			return
		}
		vocab, err := m.store.LoadVocabulary(r.Context(), model)
		if err != nil {
			if errors.Is(err, ngram.ErrModelNotTrained) {
				respondWithError(w, http.StatusConflict, fmt.Sprintf("Model '%s' has not been trained yet", modelName))
				return
			}
			m.logger.Error("Failed to load vocabulary", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
			return
		}
		chars := make([]string, 0, vocab.Size())
		for _, c := range vocab.Runes() {
			chars = append(chars, string(c))
		}
		respondWithJSON(w, http.StatusOK, chars)

	case "export":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "models:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'models:read' scope")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", modelName))
		if err = m.store.ExportModel(r.Context(), model, w); err != nil {
			m.logger.Error("Failed to export model", "name", modelName, "error", err)
		}

	default:
		respondWithError(w, http.StatusNotFound, "Action not found")
	}
}

// handleImport imports a model from an uploaded JSON export.
func (m *ModelsAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "models:write") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'models:write' scope")
		return
	}

	if err := m.store.ImportModel(r.Context(), r.Body); err != nil {
		m.logger.Error("Failed to import model", "error", err)
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}

	_ = m.sm.Refresh()
	w.WriteHeader(http.StatusAccepted)
}
