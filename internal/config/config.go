package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	FFmpeg        FFmpegConfig        `yaml:"ffmpeg"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Storage       StorageConfig       `yaml:"storage"`
	Cleanup       CleanupConfig       `yaml:"cleanup"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Limits        LimitsConfig        `yaml:"limits"`
	GoogleDrive   GoogleDriveConfig   `yaml:"google_drive"`
	Logging       LoggingConfig       `yaml:"logging"`

	// Provider credentials are only read from the environment.
	Keys APIKeys `yaml:"-"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type FFmpegConfig struct {
	BinaryPath     string `yaml:"binary_path"`
	DefaultThreads int    `yaml:"default_threads"`
	MaxThreads     int    `yaml:"max_threads"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type TranscriptionConfig struct {
	Backend          string   `yaml:"backend"` // whisper | whisper-cpp | openai
	PythonPath       string   `yaml:"python_path"`
	WhisperCppBinary string   `yaml:"whisper_cpp_binary"`
	ModelsDir        string   `yaml:"models_dir"`
	OpenAIModel      string   `yaml:"openai_model"`
	DefaultModel     string   `yaml:"default_model"`
	DefaultLanguage  string   `yaml:"default_language"`
	Languages        []string `yaml:"languages"`
	Threads          int      `yaml:"threads"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
}

type SummarizationConfig struct {
	DefaultModel    string       `yaml:"default_model"`
	Models          []ModelEntry `yaml:"models"`
	SystemPrompt    string       `yaml:"system_prompt"`
	DefaultPrompt   string       `yaml:"default_prompt"`
	Cue             string       `yaml:"cue"`
	Encoding        string       `yaml:"encoding"`
	ChunkTokens     int          `yaml:"chunk_tokens"`
	MaxPartials     int          `yaml:"max_partials"`
	MaxDepth        int          `yaml:"max_depth"`
	Temperature     *float64     `yaml:"temperature"` // nil means the default; 0 is deterministic
	MaxOutputTokens int          `yaml:"max_output_tokens"`
	TimeoutSeconds  int          `yaml:"timeout_seconds"`
}

// ModelEntry maps a user-facing summary model name to a provider model.
type ModelEntry struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"` // openai | anthropic | gemini
	ModelID  string `yaml:"model_id"`
	Endpoint string `yaml:"endpoint"`
}

type StorageConfig struct {
	TempDir string `yaml:"temp_dir"`
	Ledger  string `yaml:"ledger"`
}

type CleanupConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	MaxAgeHours     int `yaml:"max_age_hours"`
}

type SessionsConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

type LimitsConfig struct {
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type GoogleDriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderName      string `yaml:"folder_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type APIKeys struct {
	OpenAI    string
	Anthropic string
	Gemini    string
}

const (
	defaultSystemPrompt = "Eres un asistente experto en resumir texto. Proporciona resúmenes concisos pero informativos."
	defaultTemperature  = 0.7
	defaultPrompt       = "Resuma el siguiente texto, identificando los puntos clave y ejemplos importantes. El resumen debe ser conciso pero informativo."
)

// Load reads the YAML file at path, overlays environment credentials and validates the result.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.LoadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.LoadEnv()
	_ = cfg.Validate()
	return cfg
}

// LoadEnv reads provider keys, loading a .env file first when one exists.
func (c *Config) LoadEnv() {
	_ = godotenv.Load()

	c.Keys.OpenAI = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	c.Keys.Anthropic = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	c.Keys.Gemini = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
}

// Validate fills defaults and rejects inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.FFmpeg.BinaryPath == "" {
		c.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.FFmpeg.MaxThreads == 0 {
		c.FFmpeg.MaxThreads = runtime.NumCPU()
	}
	if c.FFmpeg.DefaultThreads == 0 {
		c.FFmpeg.DefaultThreads = min(4, c.FFmpeg.MaxThreads)
	}
	if c.FFmpeg.DefaultThreads < 0 || c.FFmpeg.DefaultThreads > c.FFmpeg.MaxThreads {
		return fmt.Errorf("ffmpeg.default_threads must be between 1 and %d", c.FFmpeg.MaxThreads)
	}

	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSummarization(); err != nil {
		return err
	}

	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "temp"
	}
	if c.Storage.Ledger == "" {
		c.Storage.Ledger = "data/ledger.db"
	}
	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 30
	}
	if c.Cleanup.MaxAgeHours == 0 {
		c.Cleanup.MaxAgeHours = 24
	}
	if c.Sessions.TTLMinutes == 0 {
		c.Sessions.TTLMinutes = 60
	}
	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 500
	}
	if len(c.Limits.AllowedExtensions) == 0 {
		c.Limits.AllowedExtensions = []string{".mp4"}
	}
	for i, ext := range c.Limits.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Limits.AllowedExtensions[i] = ext
	}
	if c.GoogleDrive.TokenFile == "" {
		c.GoogleDrive.TokenFile = "config/token.json"
	}
	if c.GoogleDrive.FolderName == "" {
		c.GoogleDrive.FolderName = "Video Summaries"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}

func (c *Config) validateTranscription() error {
	t := &c.Transcription
	if t.Backend == "" {
		t.Backend = "whisper"
	}
	switch t.Backend {
	case "whisper", "whisper-cpp", "openai":
	default:
		return fmt.Errorf("transcription.backend %q is not supported", t.Backend)
	}
	if t.PythonPath == "" {
		t.PythonPath = "python"
	}
	if t.WhisperCppBinary == "" {
		t.WhisperCppBinary = "whisper-cli"
	}
	if t.ModelsDir == "" {
		t.ModelsDir = "models"
	}
	if t.OpenAIModel == "" {
		t.OpenAIModel = "whisper-1"
	}
	if t.DefaultModel == "" {
		t.DefaultModel = "small"
	}
	if t.DefaultLanguage == "" {
		t.DefaultLanguage = "es"
	}
	if len(t.Languages) == 0 {
		t.Languages = []string{"es", "en", "fr", "de", "it", "pt"}
	}
	if t.Threads == 0 {
		t.Threads = c.FFmpeg.DefaultThreads
	}
	if t.Backend == "openai" && c.Keys.OpenAI == "" {
		return fmt.Errorf("transcription.backend openai requires OPENAI_API_KEY")
	}
	return nil
}

func (c *Config) validateSummarization() error {
	s := &c.Summarization
	if len(s.Models) == 0 {
		s.Models = []ModelEntry{
			{Name: "gpt-4o-mini", Provider: "openai", ModelID: "gpt-4o-mini"},
			{Name: "claude-haiku", Provider: "anthropic", ModelID: "claude-haiku-4-5-20251001"},
		}
	}
	seen := make(map[string]bool, len(s.Models))
	for i := range s.Models {
		m := &s.Models[i]
		if m.Name == "" {
			return fmt.Errorf("summarization.models[%d].name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("summarization model %q declared twice", m.Name)
		}
		seen[m.Name] = true
		m.Provider = strings.ToLower(strings.TrimSpace(m.Provider))
		switch m.Provider {
		case "openai", "anthropic", "gemini":
		default:
			return fmt.Errorf("summarization model %q: unknown provider %q", m.Name, m.Provider)
		}
		if m.ModelID == "" {
			m.ModelID = m.Name
		}
	}
	if s.DefaultModel == "" {
		s.DefaultModel = s.Models[0].Name
	}
	if !seen[s.DefaultModel] {
		return fmt.Errorf("summarization.default_model %q is not in summarization.models", s.DefaultModel)
	}
	if s.SystemPrompt == "" {
		s.SystemPrompt = defaultSystemPrompt
	}
	if s.DefaultPrompt == "" {
		s.DefaultPrompt = defaultPrompt
	}
	if s.Cue == "" {
		s.Cue = "Resumen:"
	}
	if s.Encoding == "" {
		s.Encoding = "cl100k_base"
	}
	if s.ChunkTokens == 0 {
		s.ChunkTokens = 1000
	}
	if s.MaxPartials == 0 {
		s.MaxPartials = 4
	}
	if s.MaxDepth == 0 {
		s.MaxDepth = 6
	}
	if s.Temperature == nil {
		temp := defaultTemperature
		s.Temperature = &temp
	}
	if *s.Temperature < 0 || *s.Temperature > 2 {
		return fmt.Errorf("summarization.temperature %v must be between 0 and 2", *s.Temperature)
	}
	if s.MaxOutputTokens == 0 {
		s.MaxOutputTokens = 500
	}
	if s.ChunkTokens < 0 || s.MaxPartials < 0 || s.MaxDepth < 0 {
		return fmt.Errorf("summarization chunk_tokens, max_partials and max_depth must be positive")
	}
	return nil
}

// Model looks up a summarization model entry by name.
func (s SummarizationConfig) Model(name string) (ModelEntry, bool) {
	for _, m := range s.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelEntry{}, false
}

// ModelNames returns the configured summary model names in declaration order.
func (s SummarizationConfig) ModelNames() []string {
	names := make([]string, 0, len(s.Models))
	for _, m := range s.Models {
		names = append(names, m.Name)
	}
	return names
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
