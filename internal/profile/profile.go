package profile

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is configuration to start the learning service.
type Profile struct {
	// Server
	Mode string // "prod", "dev", or "demo"
	Addr string
	Port int

	// Experience store
	Driver string // "postgres" or "inmem"
	DSN    string

	// Generative capability (OpenAI-compatible protocol)
	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
	LLMTimeout  int // seconds

	// Learning defaults applied to new sessions
	DomainTag      string
	InitialEpsilon float64
	Temperature    float64
	AutoLearn      bool

	Version string
}

// Provider default configurations for the generative capability.
// Used when LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsGenerationEnabled returns true if a generative backend is configured.
func (p *Profile) IsGenerationEnabled() bool {
	return p.LLMAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("GRIDSENSE_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("GRIDSENSE_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("GRIDSENSE_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("GRIDSENSE_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("GRIDSENSE_LLM_TIMEOUT_SECONDS", 60)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		p.LLMProvider = "openai"
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.DomainTag = getEnvOrDefault("GRIDSENSE_DOMAIN_TAG", "grid")
	p.InitialEpsilon = getEnvOrDefaultFloat("GRIDSENSE_INITIAL_EPSILON", 0.3)
	p.Temperature = getEnvOrDefaultFloat("GRIDSENSE_TEMPERATURE", 1.0)
	p.AutoLearn = getEnvOrDefault("GRIDSENSE_AUTO_LEARN", "true") == "true"
}

// Validate checks the profile and normalizes derived fields.
func (p *Profile) Validate() error {
	switch p.Mode {
	case "prod", "dev", "demo":
	default:
		p.Mode = "demo"
	}
	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	switch p.Driver {
	case "postgres":
		if p.DSN == "" {
			return errors.New("postgres driver requires a DSN")
		}
	case "inmem", "":
	default:
		return errors.Errorf("unknown store driver %q", p.Driver)
	}
	if p.InitialEpsilon < 0.05 || p.InitialEpsilon > 0.5 {
		p.InitialEpsilon = 0.3
	}
	if p.Temperature <= 0 {
		p.Temperature = 1.0
	}
	return nil
}
