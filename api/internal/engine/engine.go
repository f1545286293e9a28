package engine

import (
	"fmt"
	"strings"
	"sync"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/config"
	"workflow-architect/api/internal/engine/gemini"
	"workflow-architect/api/internal/engine/openai"
)

// Engines holds the configured generators; nil means not configured.
type Engines struct {
	Gemini analysis.Generator
	OpenAI analysis.Generator
}

// FromConfig builds every engine that has an API key.
func FromConfig(cfg *config.Config) Engines {
	var e Engines
	if cfg.GeminiAPIKey != "" {
		e.Gemini = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if cfg.OpenAIAPIKey != "" {
		e.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}
	return e
}

// GetEngine resolves an llm_name as accepted by the bot and the API.
func (e *Engines) GetEngine(llmName string) (analysis.Generator, error) {
	var g analysis.Generator
	switch strings.ToLower(strings.TrimSpace(llmName)) {
	case "gemini":
		g = e.Gemini
	case "gpt", "openai":
		g = e.OpenAI
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use 'gemini' or 'gpt'", llmName)
	}
	if g == nil {
		return nil, fmt.Errorf("engine %q is not configured", llmName)
	}
	return g, nil
}

// Default picks the configured default, falling back to whatever is present.
func (e *Engines) Default(name string) analysis.Generator {
	if g, err := e.GetEngine(name); err == nil {
		return g
	}
	if e.Gemini != nil {
		return e.Gemini
	}
	return e.OpenAI
}

// WithModel returns gen bound to another model; the shared engine itself is
// not modified. ok is false when the engine has no model to switch.
func WithModel(gen analysis.Generator, model string) (analysis.Generator, bool) {
	switch g := gen.(type) {
	case *gemini.Engine:
		return g.WithModel(model), true
	case *openai.Engine:
		return g.WithModel(model), true
	}
	return gen, false
}

// Manager remembers the engine chosen per chat.
type Manager struct {
	def analysis.Generator
	m   sync.Map // chatID -> analysis.Generator
}

func NewManager(defaultEngine analysis.Generator) *Manager {
	return &Manager{def: defaultEngine}
}

func (m *Manager) Get(chatID int64) analysis.Generator {
	if v, ok := m.m.Load(chatID); ok {
		return v.(analysis.Generator)
	}
	return m.def
}

func (m *Manager) Set(chatID int64, g analysis.Generator) {
	m.m.Store(chatID, g)
}

func (m *Manager) Reset(chatID int64) {
	m.m.Delete(chatID)
}
