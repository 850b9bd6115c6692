package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty config gets defaults",
			config:  Config{},
			wantErr: false,
		},
		{
			name: "unknown transcription backend",
			config: Config{
				Transcription: TranscriptionConfig{Backend: "vosk"},
			},
			wantErr: true,
		},
		{
			name: "openai backend without key",
			config: Config{
				Transcription: TranscriptionConfig{Backend: "openai"},
			},
			wantErr: true,
		},
		{
			name: "openai backend with key",
			config: Config{
				Transcription: TranscriptionConfig{Backend: "openai"},
				Keys:          APIKeys{OpenAI: "sk-test"},
			},
			wantErr: false,
		},
		{
			name: "unknown summary provider",
			config: Config{
				Summarization: SummarizationConfig{
					Models: []ModelEntry{{Name: "local", Provider: "transformers"}},
				},
			},
			wantErr: true,
		},
		{
			name: "duplicate summary model",
			config: Config{
				Summarization: SummarizationConfig{
					Models: []ModelEntry{
						{Name: "a", Provider: "openai"},
						{Name: "a", Provider: "gemini"},
					},
				},
			},
			wantErr: true,
		},
		{
			name: "default model not declared",
			config: Config{
				Summarization: SummarizationConfig{
					DefaultModel: "missing",
					Models:       []ModelEntry{{Name: "a", Provider: "openai"}},
				},
			},
			wantErr: true,
		},
		{
			name: "port out of range",
			config: Config{
				Server: ServerConfig{Port: 70000},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.FFmpeg.BinaryPath != "ffmpeg" {
		t.Errorf("FFmpeg.BinaryPath = %q, want ffmpeg", cfg.FFmpeg.BinaryPath)
	}
	if cfg.Summarization.Cue != "Resumen:" {
		t.Errorf("Cue = %q, want Resumen:", cfg.Summarization.Cue)
	}
	if cfg.Summarization.ChunkTokens != 1000 {
		t.Errorf("ChunkTokens = %d, want 1000", cfg.Summarization.ChunkTokens)
	}
	if cfg.Summarization.Temperature == nil || *cfg.Summarization.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", cfg.Summarization.Temperature)
	}
	if len(cfg.Summarization.Models) != 2 {
		t.Errorf("expected 2 default summary models, got %d", len(cfg.Summarization.Models))
	}
	if cfg.Summarization.DefaultModel != cfg.Summarization.Models[0].Name {
		t.Errorf("DefaultModel = %q, want first model", cfg.Summarization.DefaultModel)
	}
	if got := cfg.Limits.AllowedExtensions; len(got) != 1 || got[0] != ".mp4" {
		t.Errorf("AllowedExtensions = %v, want [.mp4]", got)
	}
	if cfg.Transcription.Threads != cfg.FFmpeg.DefaultThreads {
		t.Errorf("Transcription.Threads = %d, want %d", cfg.Transcription.Threads, cfg.FFmpeg.DefaultThreads)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090

transcription:
  backend: "whisper-cpp"
  models_dir: "/opt/whisper/models"
  default_language: "en"

summarization:
  default_model: "gemini-flash"
  models:
    - name: "gemini-flash"
      provider: "Gemini"
      model_id: "gemini-2.5-flash"
    - name: "claude"
      provider: "anthropic"

limits:
  allowed_extensions: ["MP4", ".mov"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Transcription.Backend != "whisper-cpp" {
		t.Errorf("Backend = %q, want whisper-cpp", cfg.Transcription.Backend)
	}
	m, ok := cfg.Summarization.Model("gemini-flash")
	if !ok || m.Provider != "gemini" || m.ModelID != "gemini-2.5-flash" {
		t.Errorf("Model(gemini-flash) = %+v, %v", m, ok)
	}
	if m, _ := cfg.Summarization.Model("claude"); m.ModelID != "claude" {
		t.Errorf("ModelID should default to name, got %q", m.ModelID)
	}
	if got := cfg.Limits.AllowedExtensions; got[0] != ".mp4" || got[1] != ".mov" {
		t.Errorf("AllowedExtensions = %v", got)
	}
	if cfg.Keys.Anthropic != "ak-test" {
		t.Errorf("Keys.Anthropic = %q, want ak-test", cfg.Keys.Anthropic)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadKeepsZeroTemperature(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    float64
		wantErr bool
	}{
		{name: "unset uses default", yaml: "logging:\n  level: debug\n", want: 0.7},
		{name: "explicit zero", yaml: "summarization:\n  temperature: 0\n", want: 0},
		{name: "explicit value", yaml: "summarization:\n  temperature: 1.2\n", want: 1.2},
		{name: "out of range", yaml: "summarization:\n  temperature: 3\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load() should reject the temperature")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got := *cfg.Summarization.Temperature; got != tt.want {
				t.Errorf("Temperature = %v, want %v", got, tt.want)
			}
		})
	}
}
