package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/felixgeelhaar/mnemo/internal/config"
	"github.com/felixgeelhaar/mnemo/internal/plugin"
)

// ErrNoEmbedding is returned when a backend answers without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// Embedder turns text into a vector.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider identifier (e.g., "stub", "openai").
	Name() string
}

// Settings reads persisted configuration values. A missing key yields "".
type Settings interface {
	GetConfig(key string) (string, error)
}

// New builds the embedder selected by cfg. API keys and base URLs not present
// in cfg are looked up in settings, then in the environment.
func New(cfg config.EmbeddingConfig, settings Settings) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch cfg.Provider {
	case "stub":
		e = NewStubProvider(cfg.Dimensions)
	case "ollama":
		baseURL := lookup(settings, cfg.BaseURL, "ollama.base_url", "OLLAMA_HOST")
		e, err = NewOllamaProvider(baseURL, cfg.Model)
	case "openai":
		apiKey := lookup(settings, "", "openai.api_key", "OPENAI_API_KEY")
		baseURL := lookup(settings, cfg.BaseURL, "openai.base_url", "")
		e, err = NewOpenAIProvider(apiKey, baseURL, cfg.Model)
	case "gemini":
		apiKey := lookup(settings, "", "gemini.api_key", "GEMINI_API_KEY")
		e, err = NewGeminiProvider(apiKey, cfg.Model)
	case "command":
		e, err = NewCommandProvider(cfg.Command, cfg.Args)
	case "plugin":
		e, err = plugin.Launch(cfg.PluginPath, cfg.Args...)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Provider, err)
	}

	if cfg.CacheSize > 0 {
		return NewCached(e, cfg.CacheSize)
	}
	return e, nil
}

// Close releases resources held by e, if any.
func Close(e Embedder) error {
	if c, ok := e.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func lookup(settings Settings, explicit, key, env string) string {
	if explicit != "" {
		return explicit
	}
	if settings != nil {
		if v, err := settings.GetConfig(key); err == nil && v != "" {
			return v
		}
	}
	if env != "" {
		return os.Getenv(env)
	}
	return ""
}
