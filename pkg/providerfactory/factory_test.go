package providerfactory

import (
	"errors"
	"testing"

	"proxyllm-hq/relay/pkg/config"
	"proxyllm-hq/relay/pkg/providers"
)

func TestNewProviderTypes(t *testing.T) {
	tests := []struct {
		name     string
		cfg      providers.ProviderConfig
		wantType string
		wantErr  bool
	}{
		{
			name: "openai",
			cfg: providers.ProviderConfig{
				Name:    "deepseek",
				Type:    "openai",
				BaseURL: "https://api.deepseek.com/v1",
			},
			wantType: "openai",
		},
		{
			name: "empty type defaults to openai",
			cfg: providers.ProviderConfig{
				Name:    "local",
				BaseURL: "http://localhost:10003/v1",
			},
			wantType: "openai",
		},
		{
			name: "anthropic",
			cfg: providers.ProviderConfig{
				Name:    "claude",
				Type:    "anthropic",
				BaseURL: "https://api.anthropic.com",
				APIKey:  "sk-ant",
			},
			wantType: "anthropic",
		},
		{
			name: "gigachat",
			cfg: providers.ProviderConfig{
				Name:   "gigachat",
				Type:   "gigachat",
				APIKey: "client-id:client-secret",
			},
			wantType: "gigachat",
		},
		{
			name: "gigachat with malformed credential",
			cfg: providers.ProviderConfig{
				Name:   "gigachat",
				Type:   "gigachat",
				APIKey: "not-a-pair",
			},
			wantErr: true,
		},
		{
			name: "unsupported type",
			cfg: providers.ProviderConfig{
				Name: "weird",
				Type: "grpc",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider: %v", err)
			}
			defer p.Close()

			if p.Type() != tt.wantType {
				t.Errorf("type = %q, want %q", p.Type(), tt.wantType)
			}
			if p.Name() != tt.cfg.Name {
				t.Errorf("name = %q, want %q", p.Name(), tt.cfg.Name)
			}
		})
	}
}

func TestNewProviderUnsupportedTypeError(t *testing.T) {
	_, err := NewProvider(providers.ProviderConfig{Name: "weird", Type: "grpc"})

	var cfgErr *providers.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if cfgErr.Field != "type" {
		t.Errorf("field = %q, want type", cfgErr.Field)
	}
}

func TestBuildSkipsDisabledAndBroken(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"deepseek": {
				Type:    "openai",
				Enabled: true,
				BaseURL: "https://api.deepseek.com/v1",
				APIKey:  "sk-test",
				Models:  []config.ModelConfig{{ID: "deepseek-chat"}},
			},
			"disabled": {
				Type:    "openai",
				Enabled: false,
				BaseURL: "http://localhost:9999/v1",
			},
			"broken": {
				Type:    "gigachat",
				Enabled: true,
				APIKey:  "missing-separator",
			},
		},
	}

	built := Build(cfg)

	if len(built) != 1 {
		t.Fatalf("built %d providers, want 1", len(built))
	}

	p, ok := built["deepseek"]
	if !ok {
		t.Fatal("deepseek missing from built set")
	}
	defer p.Close()

	if got := p.GetConfig().Models; len(got) != 1 || got[0] != "deepseek-chat" {
		t.Errorf("models = %v", got)
	}
}
