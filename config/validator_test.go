package config

import (
	"errors"
	"strings"
	"testing"
)

type hostTestStruct struct {
	Host string `validate:"host"`
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected bool
	}{
		{"empty host (optional)", "", true},
		{"localhost", "localhost", true},
		{"IP address", "127.0.0.1", true},
		{"hostname with subdomain", "api.example.com", true},
		{"IPv6 address", "2001:db8::1", true},
		{"host with underscore", "my_server", true},
		{"invalid host with space", "invalid host", false},
		{"invalid host with newline", "invalid\nhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(hostTestStruct{Host: tt.host})
			if tt.expected && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tt.expected && err == nil {
				t.Errorf("expected invalid for host %q, got valid", tt.host)
			}
		})
	}
}

func TestValidateProviders(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"all none", func(*Config) {}, ""},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.Embedding.Provider = "openai"
			},
			wantErr: "openai_api_key",
		},
		{
			name: "openai with key",
			mutate: func(c *Config) {
				c.Embedding.Provider = "openai"
				c.Providers.OpenAIAPIKey = "sk-test"
			},
		},
		{
			name: "ollama without url",
			mutate: func(c *Config) {
				c.Reranker.Provider = "ollama"
				c.Providers.OllamaBaseURL = ""
			},
			wantErr: "ollama_base_url",
		},
		{
			name: "llm without model",
			mutate: func(c *Config) {
				c.LLM.Provider = "ollama"
				c.LLM.Model = ""
			},
			wantErr: "model name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := ValidateWithDetails(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			var details ValidationErrors
			if !errors.As(err, &details) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidateWithDetails_ReportsConfigKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.App.Environment = "qa"
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = ""

	var details ValidationErrors
	if !errors.As(ValidateWithDetails(cfg), &details) {
		t.Fatal("expected ValidationErrors")
	}

	keys := make(map[string]ConfigError)
	for _, ce := range details {
		keys[ce.Key] = ce
	}
	for _, want := range []string{"server.port", "app.environment", "llm.model"} {
		if _, ok := keys[want]; !ok {
			t.Errorf("expected an error for %s, got %v", want, details)
		}
	}
	if msg := keys["server.port"].Error(); !strings.Contains(msg, "MEMVAULT_SERVER__PORT") {
		t.Errorf("expected env var hint in %q", msg)
	}
}
