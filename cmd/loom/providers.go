package main

import (
	"fmt"
	"os"
	"time"

	"github.com/loomrun/loom/internal/agent"
	"github.com/loomrun/loom/internal/agent/providers"
	"github.com/loomrun/loom/internal/auth"
	"github.com/loomrun/loom/internal/config"
)

// envAPIKeyVars mirrors internal/auth's provider->env var precedence for the
// secret itself; auth.Resolve only reports availability state, never the
// plaintext value, so the CLI keeps its own copy of this list to actually
// build a client.
var envAPIKeyVars = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"google":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
}

// resolveProviderSecret returns the API key for name per the same
// precedence the Auth Resolver uses for its status rows: config file, then
// environment, then the credential store's access token. It returns
// ("", false) when revoked, matching §7's fail-closed AuthFailure behavior.
func resolveProviderSecret(cfg config.LLMProviderConfig, name string, creds *auth.CredentialStoreData) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	for _, envVar := range envAPIKeyVars[name] {
		if v := os.Getenv(envVar); v != "" {
			return v, nil
		}
	}
	if creds != nil {
		if rec, ok := creds.Providers[name]; ok {
			if rec.Revoked {
				return "", fmt.Errorf("provider %s requires re-authentication: credential is revoked", name)
			}
			if rec.AccessToken != "" {
				return rec.AccessToken, nil
			}
		}
	}
	return "", fmt.Errorf("no credentials configured for provider %s", name)
}

// buildProviders constructs one agent.LLMProvider per entry in
// cfg.LLM.Providers, skipping (and logging to stderr) any provider whose
// secret cannot be resolved rather than failing the whole build — a single
// missing credential shouldn't prevent routing to the providers that are
// configured.
func buildProviders(cfg *config.Config, creds *auth.CredentialStoreData) (map[string]agent.LLMProvider, error) {
	out := make(map[string]agent.LLMProvider, len(cfg.LLM.Providers))
	for name, pc := range cfg.LLM.Providers {
		provider, err := buildProvider(name, pc, creds)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping provider %s: %v\n", name, err)
			continue
		}
		if provider != nil {
			out[name] = provider
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable LLM providers configured")
	}
	return out, nil
}

func buildProvider(name string, pc config.LLMProviderConfig, creds *auth.CredentialStoreData) (agent.LLMProvider, error) {
	switch name {
	case "anthropic":
		key, err := resolveProviderSecret(pc, name, creds)
		if err != nil {
			return nil, err
		}
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       key,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	case "openai":
		key, err := resolveProviderSecret(pc, name, creds)
		if err != nil {
			return nil, err
		}
		return providers.NewOpenAIProvider(key), nil
	case "google":
		key, err := resolveProviderSecret(pc, name, creds)
		if err != nil {
			return nil, err
		}
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:       key,
			DefaultModel: pc.DefaultModel,
		})
	case "openrouter":
		key, err := resolveProviderSecret(pc, name, creds)
		if err != nil {
			return nil, err
		}
		return providers.NewOpenRouterProvider(providers.OpenRouterConfig{
			APIKey:       key,
			DefaultModel: pc.DefaultModel,
		})
	case "azure":
		key, err := resolveProviderSecret(pc, name, creds)
		if err != nil {
			return nil, err
		}
		return providers.NewAzureOpenAIProvider(providers.AzureOpenAIConfig{
			Endpoint:     pc.BaseURL,
			APIKey:       key,
			APIVersion:   pc.APIVersion,
			DefaultModel: pc.DefaultModel,
		})
	case "ollama":
		baseURL := pc.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return providers.NewOllamaProvider(providers.OllamaConfig{
			BaseURL:      baseURL,
			DefaultModel: pc.DefaultModel,
			Timeout:      60 * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", name)
	}
}
