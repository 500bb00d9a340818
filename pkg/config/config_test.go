package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.EventBufferSize <= 0 {
		t.Error("EventBufferSize not set")
	}

	if cfg.MoveDetector.Timeout <= 0 {
		t.Error("MoveDetector.Timeout not set")
	}

	if cfg.MoveDetector.MaxPendingEvents <= 0 {
		t.Error("MoveDetector.MaxPendingEvents not set")
	}

	if cfg.Store.DatabasePath == "" {
		t.Error("Store.DatabasePath not set")
	}

	if cfg.Logging.Level == "" {
		t.Error("Log level not set")
	}
}

func TestConfigValidate(t *testing.T) {
	validDetector := MoveDetectorConfig{
		Timeout:                1 * time.Second,
		ConfidenceThreshold:    0.7,
		WeightSize:             0.2,
		WeightTime:             0.15,
		WeightInode:            0.4,
		WeightHash:             0.15,
		WeightName:             0.1,
		MaxPendingEvents:       1000,
		ContentHashMaxFileSize: 1 << 20,
	}
	validStore := StoreConfig{
		DatabasePath: "/tmp/pathwatch-test.db",
		Retention:    24 * time.Hour,
	}
	validLogging := LoggingConfig{
		Level:  "info",
		Format: "text",
	}

	tests := []struct {
		name    string
		config  *WatcherConfig
		wantErr bool
	}{
		{
			name: "valid default config",
			config: &WatcherConfig{
				Path:            "/watch/me",
				Recursive:       true,
				EventBufferSize: 1024,
				MoveDetector:    validDetector,
				Store:           validStore,
				Logging:         validLogging,
			},
			wantErr: false,
		},
		{
			name: "no watch path",
			config: &WatcherConfig{
				Path:            "",
				EventBufferSize: 1024,
				MoveDetector:    validDetector,
				Store:           validStore,
				Logging:         validLogging,
			},
			wantErr: true,
		},
		{
			name: "invalid event buffer size",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 0,
				MoveDetector:    validDetector,
				Store:           validStore,
				Logging:         validLogging,
			},
			wantErr: true,
		},
		{
			name: "invalid move detector timeout",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 1024,
				MoveDetector: MoveDetectorConfig{
					Timeout:                0,
					ConfidenceThreshold:    0.7,
					WeightSize:             0.2,
					WeightTime:             0.15,
					WeightInode:            0.4,
					WeightHash:             0.15,
					WeightName:             0.1,
					MaxPendingEvents:       1000,
					ContentHashMaxFileSize: 1 << 20,
				},
				Store:   validStore,
				Logging: validLogging,
			},
			wantErr: true,
		},
		{
			name: "invalid confidence threshold",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 1024,
				MoveDetector: MoveDetectorConfig{
					Timeout:                1 * time.Second,
					ConfidenceThreshold:    1.5,
					WeightSize:             0.2,
					WeightTime:             0.15,
					WeightInode:            0.4,
					WeightHash:             0.15,
					WeightName:             0.1,
					MaxPendingEvents:       1000,
					ContentHashMaxFileSize: 1 << 20,
				},
				Store:   validStore,
				Logging: validLogging,
			},
			wantErr: true,
		},
		{
			name: "negative move detector weight",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 1024,
				MoveDetector: MoveDetectorConfig{
					Timeout:                1 * time.Second,
					ConfidenceThreshold:    0.7,
					WeightSize:             -0.1,
					WeightTime:             0.15,
					WeightInode:            0.4,
					WeightHash:             0.15,
					WeightName:             0.1,
					MaxPendingEvents:       1000,
					ContentHashMaxFileSize: 1 << 20,
				},
				Store:   validStore,
				Logging: validLogging,
			},
			wantErr: true,
		},
		{
			name: "invalid max pending events",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 1024,
				MoveDetector: MoveDetectorConfig{
					Timeout:                1 * time.Second,
					ConfidenceThreshold:    0.7,
					WeightSize:             0.2,
					WeightTime:             0.15,
					WeightInode:            0.4,
					WeightHash:             0.15,
					WeightName:             0.1,
					MaxPendingEvents:       0,
					ContentHashMaxFileSize: 1 << 20,
				},
				Store:   validStore,
				Logging: validLogging,
			},
			wantErr: true,
		},
		{
			name: "no store database path",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 1024,
				MoveDetector:    validDetector,
				Store: StoreConfig{
					DatabasePath: "",
					Retention:    24 * time.Hour,
				},
				Logging: validLogging,
			},
			wantErr: true,
		},
		{
			name: "invalid retention",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 1024,
				MoveDetector:    validDetector,
				Store: StoreConfig{
					DatabasePath: "/tmp/pathwatch-test.db",
					Retention:    -1 * time.Hour,
				},
				Logging: validLogging,
			},
			wantErr: true,
		},
		{
			name: "invalid exclude pattern",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 1024,
				ExcludePatterns: []string{"[unterminated"},
				MoveDetector:    validDetector,
				Store:           validStore,
				Logging:         validLogging,
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 1024,
				MoveDetector:    validDetector,
				Store:           validStore,
				Logging: LoggingConfig{
					Level:  "invalid",
					Format: "text",
				},
			},
			wantErr: true,
		},
		{
			name: "invalid log format",
			config: &WatcherConfig{
				Path:            "/watch/me",
				EventBufferSize: 1024,
				MoveDetector:    validDetector,
				Store:           validStore,
				Logging: LoggingConfig{
					Level:  "info",
					Format: "xml",
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("WatcherConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, cfg *WatcherConfig)
	}{
		{
			name: "valid config file",
			content: `
path: /watch/me
recursive: true
exclude_patterns:
  - "*.tmp"
event_buffer_size: 2048
move_detector:
  timeout: 2s
  confidence_threshold: 0.8
  weight_size: 0.2
  weight_time: 0.15
  weight_inode: 0.4
  weight_hash: 0.15
  weight_name: 0.1
  max_pending_events: 500
  content_hash_max_file_size: 65536
store:
  database_path: /tmp/test.db
  retention: 48h
logging:
  level: debug
  output: stdout
  format: json
`,
			wantErr: false,
			check: func(t *testing.T, cfg *WatcherConfig) {
				if cfg.Path != "/watch/me" {
					t.Errorf("Path = %s, want /watch/me", cfg.Path)
				}
				if cfg.MoveDetector.Timeout != 2*time.Second {
					t.Errorf("MoveDetector.Timeout = %v, want 2s", cfg.MoveDetector.Timeout)
				}
				if cfg.MoveDetector.MaxPendingEvents != 500 {
					t.Errorf("MoveDetector.MaxPendingEvents = %d, want 500", cfg.MoveDetector.MaxPendingEvents)
				}
				if cfg.Store.DatabasePath != "/tmp/test.db" {
					t.Errorf("Store.DatabasePath = %s, want /tmp/test.db", cfg.Store.DatabasePath)
				}
				if cfg.Logging.Level != "debug" {
					t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
				}
			},
		},
		{
			name:    "invalid yaml",
			content: `invalid: yaml: content: [`,
			wantErr: true,
		},
		{
			name:    "non-existent file",
			content: "", // Will not create file
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var filePath string

			if tt.name != "non-existent file" {
				filePath = filepath.Join(tmpDir, tt.name+".yaml")
				if err := os.WriteFile(filePath, []byte(tt.content), 0600); err != nil {
					t.Fatalf("Failed to create test file: %v", err)
				}
			} else {
				filePath = filepath.Join(tmpDir, "nonexistent.yaml")
			}

			loader := NewLoader(filePath)
			cfg, err := loader.Load()

			if tt.wantErr {
				if err == nil {
					t.Error("Load() error = nil, wantErr = true")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() error = %v, wantErr = false", err)
				return
			}

			if cfg == nil {
				t.Error("Load() returned nil config")
				return
			}

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	// Test default loading (no config file), with a watch path supplied
	// via env var since Default() leaves Path empty for the caller to fill.
	os.Setenv("PATHWATCH_PATH", "/env/watch") // nolint:errcheck
	defer os.Unsetenv("PATHWATCH_PATH")       // nolint:errcheck

	cfg, err := Load()
	if err != nil {
		t.Errorf("Load() error = %v, want nil", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil")
	}

	if cfg.Path == "" {
		t.Error("Load() returned config with no watch path")
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := Default()
	cfg.Path = "/watch/me"
	cfg.Logging.Level = "debug"

	// Save config
	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Verify file exists
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("Config file not created: %v", err)
	}

	// Load it back and verify
	loadedCfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if loadedCfg.Logging.Level != "debug" {
		t.Errorf("Loaded config Logging.Level = %s, want debug", loadedCfg.Logging.Level)
	}
}

func TestEnvVarOverrides(t *testing.T) {
	// Save original env vars
	originalPath := os.Getenv("PATHWATCH_PATH")
	originalDB := os.Getenv("PATHWATCH_DB")
	originalLogLevel := os.Getenv("PATHWATCH_LOG_LEVEL")

	// Restore env vars after test
	defer func() {
		if originalPath != "" {
			_ = os.Setenv("PATHWATCH_PATH", originalPath) // nolint:errcheck
		} else {
			_ = os.Unsetenv("PATHWATCH_PATH") // nolint:errcheck
		}
		if originalDB != "" {
			_ = os.Setenv("PATHWATCH_DB", originalDB) // nolint:errcheck
		} else {
			_ = os.Unsetenv("PATHWATCH_DB") // nolint:errcheck
		}
		if originalLogLevel != "" {
			_ = os.Setenv("PATHWATCH_LOG_LEVEL", originalLogLevel) // nolint:errcheck
		} else {
			_ = os.Unsetenv("PATHWATCH_LOG_LEVEL") // nolint:errcheck
		}
	}()

	// Set test env vars
	if err := os.Setenv("PATHWATCH_PATH", "/env/watch"); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("PATHWATCH_DB", "/env/db.db"); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("PATHWATCH_LOG_LEVEL", "DEBUG"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify env var overrides
	if cfg.Path != "/env/watch" {
		t.Errorf("Path = %s, want /env/watch", cfg.Path)
	}

	if cfg.Store.DatabasePath != "/env/db.db" {
		t.Errorf("Store.DatabasePath = %s, want /env/db.db", cfg.Store.DatabasePath)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
}

// Benchmark config loading.
func BenchmarkLoad(b *testing.B) {
	os.Setenv("PATHWATCH_PATH", "/bench/watch") // nolint:errcheck
	defer os.Unsetenv("PATHWATCH_PATH")         // nolint:errcheck

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := Load()
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkValidate(b *testing.B) {
	cfg := Default()
	cfg.Path = "/bench/watch"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := cfg.Validate(); err != nil {
			b.Fatal(err)
		}
	}
}
