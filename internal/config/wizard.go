package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
}

// NewWizard creates a new configuration wizard
func NewWizard() *Wizard {
	return &Wizard{
		reader: bufio.NewReader(os.Stdin),
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Println("=== chatrelay Configuration Wizard ===")
	fmt.Println()

	cfg := DefaultConfig()
	validator := NewValidator()

	// Provider
	fmt.Println("Provider options: gemini, openai, anthropic")
	fmt.Print("Provider [gemini]: ")
	provider, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if provider == "" {
		provider = "gemini"
	}
	if err := validator.ValidateProvider(provider); err != nil {
		return nil, err
	}
	cfg.Provider.Name = provider

	// API key
	for {
		fmt.Printf("%s API key: ", provider)
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateAPIKey(key, provider); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		cfg.Provider.APIKey = key
		break
	}

	// Model
	defaultModel := defaultModelFor(provider)
	fmt.Printf("Model [%s]: ", defaultModel)
	model, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = defaultModel
	}
	cfg.Provider.Model = model

	fmt.Println()

	// Persistence
	fmt.Println("Snapshot backend options:")
	fmt.Println("  file   - single JSON snapshot file (default)")
	fmt.Println("  sqlite - SQLite database")
	fmt.Print("Backend [file]: ")
	backend, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if backend == "" {
		backend = "file"
	}
	if err := validator.ValidateStoreBackend(backend); err != nil {
		fmt.Printf("Warning: %v, using default (file)\n", err)
		backend = "file"
	}
	cfg.Store.Backend = backend

	fmt.Println()

	// Log level
	fmt.Print("Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Printf("Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Println()
	fmt.Println("Configuration complete!")

	return cfg, nil
}

func defaultModelFor(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-sonnet-4-20250514"
	default:
		return "gemini-2.0-flash"
	}
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
