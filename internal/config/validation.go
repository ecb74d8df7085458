package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// validSSLModes are the sslmode values libpq and pgx accept.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks the configuration and fails fast with sentinel errors.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProvider() error {
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: provider %q requires GEMINI_API_KEY", ErrInvalidProvider, c.Provider)
		}
	case ProviderOllama:
		u, err := url.Parse(c.OllamaHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q must be a full URL like http://localhost:11434", ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (supported: gemini, googleai, ollama)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	return nil
}

func (c *Config) validateSearch() error {
	switch c.SearchBackend {
	case BackendPgvector, BackendScan:
	default:
		return fmt.Errorf("%w: %q (supported: pgvector, scan)", ErrInvalidSearchBackend, c.SearchBackend)
	}
	if c.IngestRatePerSecond < 0 || c.IngestRatePerSecond > 1000 {
		return fmt.Errorf("%w: %v must be between 0 and 1000", ErrInvalidIngestRate, c.IngestRatePerSecond)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d must be between 1 and 65535", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%w: listen address must not be empty", ErrInvalidHTTPAddr)
	}
	return nil
}
