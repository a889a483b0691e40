package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("civiclens-test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Telemetry.ServiceName != "civiclens-test" {
		t.Errorf("telemetry.service_name = %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Classifier.Prompt != DefaultPrompt {
		t.Errorf("classifier.prompt = %q", cfg.Classifier.Prompt)
	}
	if cfg.Sink.OutputPath != "output/output.json" {
		t.Errorf("sink.output_path = %q", cfg.Sink.OutputPath)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CIVICLENS_SERVER_PORT", "9090")
	t.Setenv("CIVICLENS_CLASSIFIER_BACKEND", "openai")
	t.Setenv("CIVICLENS_CLASSIFIER_MODEL", "qwen2-vl")

	cfg, err := Load("api")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Classifier.Backend != "openai" || cfg.Classifier.Model != "qwen2-vl" {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CIVICLENS_CLASSIFIER_BACKEND", "gemini")

	_, err := Load("api")
	if err == nil || !strings.Contains(err.Error(), "classifier.backend") {
		t.Fatalf("err = %v, want classifier.backend complaint", err)
	}
}

func validConfig() Config {
	return Config{
		Server:     ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10, BodyLimitMB: 20},
		Database:   DatabaseConfig{Host: "localhost", Port: 5432, User: "u", DBName: "d"},
		NATS:       NATSConfig{URL: "nats://localhost:4222"},
		Valkey:     ValkeyConfig{Addr: "localhost:6379"},
		Classifier: ClassifierConfig{Backend: "ollama", URL: "http://localhost:11434", Model: "llava", TimeoutSeconds: 30, JPEGQuality: 85},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no classifier model", func(c *Config) { c.Classifier.Model = "" }, "classifier.model"},
		{"classifier disabled", func(c *Config) { c.Classifier.Backend = "none"; c.Classifier.URL = "" }, ""},
		{"storage without bucket", func(c *Config) { c.Storage.Enabled = true; c.Storage.Endpoint = "minio:9000" }, "storage.bucket"},
		{"temporal without queue", func(c *Config) { c.Temporal.Enabled = true; c.Temporal.HostPort = "t:7233" }, "temporal.task_queue"},
		{"jpeg quality", func(c *Config) { c.Classifier.JPEGQuality = 101 }, "jpeg_quality"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = -1
	cfg.NATS.URL = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "nats.url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestMasked(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "hunter2"
	cfg.Storage.SecretKey = "s3cr3t"

	m := cfg.Masked()
	if m.Database.Password != "****" || m.Storage.SecretKey != "****" {
		t.Errorf("secrets not masked: %+v %+v", m.Database, m.Storage)
	}
	if m.Classifier.APIKey != "" {
		t.Errorf("empty key became %q", m.Classifier.APIKey)
	}
	if cfg.Database.Password != "hunter2" {
		t.Error("Masked modified the receiver")
	}
}
