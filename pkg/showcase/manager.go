package showcase

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charloom/charloom/pkg/ngram"
	"github.com/charloom/charloom/pkg/textgen"
)

// modelEntry caches everything needed to generate from one model: its
// registry info, its vocabulary, and a generator wired to the store.
type modelEntry struct {
	info      ngram.ModelInfo
	vocab     *textgen.Vocabulary
	generator *textgen.Generator
}

// Manager is the central controller of the showcase engine. It manages the
// template set, the configuration, the function map, and a cached generator
// for every trained model in the store. All methods are safe for concurrent
// use.
type Manager struct {
	logger         *slog.Logger
	config         ShowcaseConfig
	store          *ngram.Store
	entries        map[string]modelEntry
	templates      *template.Template
	cleanTemplates *template.Template
	templateNames  []string
	funcMap        template.FuncMap
	templateDir    string
	mu             sync.RWMutex
}

// NewManager creates a Manager over the given store and template directory
// and performs an initial Refresh to load templates and models.
func NewManager(logger *slog.Logger, store *ngram.Store, config ShowcaseConfig, templateDir string) (*Manager, error) {
	m := &Manager{
		logger:      logger,
		config:      config,
		store:       store,
		entries:     map[string]modelEntry{},
		templateDir: templateDir,
	}
	m.funcMap = m.makeFuncMap()

	if err := m.Refresh(); err != nil {
		return nil, err
	}

	logger.Info("Showcase manager initialized")
	return m, nil
}

func (m *Manager) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		// Generation (from funcs_generate.go)
		"sample":       m.sample,
		"sampleSheet":  m.sampleSheet,
		"seedFor":      m.seedFor,
		"models":       m.models,
		"modelStats":   m.modelStats,
		"vocabSize":    m.vocabSize,
		"defaultModel": m.defaultModel,

		// Helpers (from funcs_simple.go)
		"add":          add,
		"sub":          sub,
		"mult":         mult,
		"div":          div,
		"mod":          mod,
		"inc":          inc,
		"dec":          dec,
		"percent":      percent,
		"repeat":       repeat,
		"list":         list,
		"randomChoice": randomChoice,
		"randomInt":    randomInt,
	}
}

// SetConfig applies a new configuration. Limits take effect on the next
// template function call.
func (m *Manager) SetConfig(config ShowcaseConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

// GetConfig returns a copy of the current configuration.
func (m *Manager) GetConfig() ShowcaseConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Refresh reloads all templates from the filesystem and rebuilds the cached
// generators from the store's current models. It allows template and model
// updates without restarting the application.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePattern := filepath.Join(m.templateDir, "*.tmpl.html")
	m.logger.Info("Loading template files...")

	parsedFiles, err := template.New("").Funcs(m.funcMap).ParseGlob(filePattern)
	var names []string
	if err != nil {
		if !strings.Contains(err.Error(), "pattern matches no files") {
			m.logger.Error("failed to parse template files", "error", err)
			return err
		}
		// No template files, so start from an empty set.
		parsedFiles = template.New("").Funcs(m.funcMap)
	} else {
		for _, t := range parsedFiles.Templates() {
			// The unnamed root template is not executable on its own.
			if strings.Contains(t.Name(), ".tmpl.html") {
				names = append(names, t.Name())
			}
		}
	}

	filePattern = filepath.Join(m.templateDir, "*.part.html")
	m.logger.Info("Loading partial files...")

	newParsedFiles, err := parsedFiles.ParseGlob(filePattern)
	if err != nil {
		if !strings.Contains(err.Error(), "pattern matches no files") {
			m.logger.Error("failed to parse partial files", "error", err)
			return err
		}
		newParsedFiles = parsedFiles
	}

	if len(names) == 0 {
		m.logger.Warn("No template files found", "dir", m.templateDir)
	}

	m.templates = newParsedFiles
	m.templateNames = names

	// A clean clone for string executions, made after all parsing is done.
	m.cleanTemplates, err = m.templates.Clone()
	if err != nil {
		m.logger.Error("failed to clone the template set", "error", err)
		return err
	}

	return m.refreshModels()
}

// refreshModels rebuilds the generator cache from the store. The caller
// must hold the write lock. Untrained models are skipped; they appear on
// the Refresh after their first training run.
func (m *Manager) refreshModels() error {
	ctx := context.Background()

	models, err := m.store.GetModelInfos(ctx)
	if err != nil {
		m.logger.Error("failed to load models", "error", err)
		return err
	}

	entries := make(map[string]modelEntry, len(models))
	for _, model := range models {
		vocab, err := m.store.LoadVocabulary(ctx, model)
		if errors.Is(err, ngram.ErrModelNotTrained) {
			m.logger.Warn("Skipping untrained model", slog.String("model_name", model.Name))
			continue
		}
		if err != nil {
			return err
		}
		entries[model.Name] = modelEntry{
			info:      model,
			vocab:     vocab,
			generator: textgen.NewGenerator(vocab, m.store.Predictor(model, vocab)),
		}
	}

	m.entries = entries
	m.logger.Info("Loaded models", "count", len(entries))
	return nil
}

// Execute renders a template by name into w. The data argument is passed
// through to the template. Rendering happens on a snapshot of the template
// set, so a concurrent Refresh never blocks behind a slow page.
func (m *Manager) Execute(w io.Writer, name string, data interface{}) error {
	if name == "" {
		return nil
	}
	m.mu.RLock()
	templates := m.templates
	m.mu.RUnlock()
	return templates.ExecuteTemplate(w, name, data)
}

// ExecuteTemplateString parses and executes a raw template string with the
// manager's function map. It exists for previewing templates without
// saving them to disk.
func (m *Manager) ExecuteTemplateString(w io.Writer, content string, data interface{}) error {
	m.mu.RLock()
	clean := m.cleanTemplates
	m.mu.RUnlock()

	// Clone the clean, never-executed set so parsing the preview cannot
	// disturb the live templates.
	tempSet, err := clean.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone templates for string execution: %w", err)
	}

	t, err := tempSet.Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}

	return t.Execute(w, data)
}

// GetRandomTemplate returns the name of a randomly selected full template,
// or an empty string when none are loaded.
func (m *Manager) GetRandomTemplate() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.templateNames) == 0 {
		return ""
	}
	return m.templateNames[rand.IntN(len(m.templateNames))]
}

// GetTemplateNames returns the names of every loaded template, partials
// included.
func (m *Manager) GetTemplateNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for _, t := range m.templates.Templates() {
		if strings.Contains(t.Name(), ".html") {
			names = append(names, t.Name())
		}
	}
	return names
}

// GetTemplateDir returns the directory the Manager loads templates from.
func (m *Manager) GetTemplateDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.templateDir
}
