package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for every tunable of the OCR pipeline.
const (
	DefaultTempDir = "tmp_ocr_images"
	DefaultZoom    = 2.0
	DefaultFormat  = "png"
	DefaultModel   = "gemini-2.0-flash"
	DefaultEngine  = "gemini"
)

// Config carries every setting of one OCR run. Values are resolved in order:
// built-in defaults, optional YAML file, process environment (credential),
// then CLI flags applied by the caller.
type Config struct {
	// APIKey is the recognition service credential, read from GOOGLE_API_KEY.
	APIKey string `yaml:"-"`
	// Model is the Gemini model used for recognition.
	Model string `yaml:"model"`
	// Engine selects the recognition backend: "gemini" or "tesseract".
	Engine string `yaml:"engine"`
	// TempDir holds intermediate page images.
	TempDir string `yaml:"temp_dir"`
	// Zoom is the linear scale applied to both page axes before rendering.
	Zoom float64 `yaml:"zoom"`
	// Format is the intermediate image format, "png" or "jpeg".
	Format string `yaml:"format"`
	// PromptSuffix is appended to the fixed recognition instruction.
	PromptSuffix string `yaml:"prompt_suffix"`
	// CachePath enables the bbolt recognition-result cache when non-empty.
	CachePath string `yaml:"cache_path"`
}

// Load resolves the configuration. A missing .env file is not an error; an
// unreadable or malformed YAML file at yamlPath is.
func Load(yamlPath string) (*Config, error) {
	// Credentials may live in a local .env file instead of the environment.
	godotenv.Load()

	cfg := &Config{
		Model:   DefaultModel,
		Engine:  DefaultEngine,
		TempDir: DefaultTempDir,
		Zoom:    DefaultZoom,
		Format:  DefaultFormat,
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", yamlPath, err)
		}
	}

	cfg.APIKey = os.Getenv("GOOGLE_API_KEY")

	if cfg.Zoom <= 0 {
		return nil, fmt.Errorf("zoom factor must be positive, got %g", cfg.Zoom)
	}
	return cfg, nil
}
