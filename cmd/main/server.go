package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/charloom/charloom/pkg/ngram"
	"github.com/charloom/charloom/pkg/showcase"
)

// Server wires the model store, the showcase manager, and every API
// together behind the two HTTP muxes.
type Server struct {
	cm          *ConfigManager
	db          *sql.DB
	logger      *slog.Logger
	store       *ngram.Store
	sm          *showcase.Manager
	authAPI     *AuthAPI
	modelsAPI   *ModelsAPI
	generateAPI *GenerateAPI
	statsAPI    *StatsAPI
	serverAPI   *ServerAPI
	showcaseAPI *ShowcaseAPI
	showcaseMux *http.ServeMux
	apiMux      *http.ServeMux
}

func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {
	cfg := cm.Get()

	// store initialization
	store, err := ngram.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("error creating ngram store: %w", err)
	}
	store.SetLogger(logger)

	sm, err := showcase.NewManager(logger, store, *cfg.Showcase, cfg.Server.TemplatePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create showcase manager: %w", err)
	}
	cm.SetShowcaseManager(sm)

	// api initialization
	authAPI := NewAuthAPI(db, logger)
	statsAPI := NewStatsAPI(db, store, cfg.Server.DatabasePath, logger)
	modelsAPI := NewModelsAPI(store, sm, cm, logger)
	generateAPI := NewGenerateAPI(store, cm, statsAPI, logger)
	serverAPI := NewServerAPI(cm, actionChan, logger)
	showcaseAPI := NewShowcaseAPI(sm, logger)

	// create object, register routes to the mux, and return it
	server := &Server{
		cm:          cm,
		db:          db,
		logger:      logger,
		store:       store,
		sm:          sm,
		authAPI:     authAPI,
		modelsAPI:   modelsAPI,
		generateAPI: generateAPI,
		statsAPI:    statsAPI,
		serverAPI:   serverAPI,
		showcaseAPI: showcaseAPI,
		showcaseMux: http.NewServeMux(),
		apiMux:      http.NewServeMux(),
	}

	apiMux := http.NewServeMux()

	server.authAPI.RegisterRoutes(apiMux)
	server.modelsAPI.RegisterRoutes(apiMux)
	server.generateAPI.RegisterRoutes(apiMux)
	server.statsAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)
	server.showcaseAPI.RegisterRoutes(apiMux)

	// Make sure api functions must pass through authentication first...
	authedAPI := server.authAPI.Authenticate(apiMux)
	// ...except for the health check, which is unauthed so something like docker can use it
	server.apiMux.HandleFunc("/api/health", server.serverAPI.handleHealthCheck)

	server.apiMux.Handle("/api/", authedAPI)

	server.showcaseMux.HandleFunc("/favicon.ico", handleFavicon)
	server.showcaseMux.HandleFunc("/", server.handleShowcase)

	return server, nil
}

// Close releases the prepared statements held by the store. The database
// itself is closed by the run loop that opened it.
func (s *Server) Close() {
	s.store.Close()
}

// handleShowcase renders a sample-sheet template on every request, so each
// page load shows freshly generated text. A template can be pinned with the
// "template" query parameter; otherwise one is picked at random.
func (s *Server) handleShowcase(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	templateName := r.URL.Query().Get("template")
	if templateName == "" {
		templateName = s.sm.GetRandomTemplate()
	}
	if templateName == "" {
		http.Error(w, "No templates installed", http.StatusServiceUnavailable)
		return
	}

	s.logger.Info(
		"Serving sample page",
		"template", templateName,
		"remote_addr", r.RemoteAddr)

	var buf bytes.Buffer
	if err := s.sm.Execute(&buf, templateName, nil); err != nil {
		s.logger.Error("Failed to execute template", "template", templateName, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.setShowcaseHeaders(w)
	_, _ = buf.WriteTo(w)
}

func (s *Server) setShowcaseHeaders(w http.ResponseWriter) {
	// Every hit regenerates its samples; never let a cache freeze one.
	w.Header().Set("Cache-Control", "no-store, no-cache")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}

// handleFavicon returns no content so browser favicon probes don't show up
// as failed page renders in the logs.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
