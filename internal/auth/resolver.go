package auth

import (
	"os"
	"os/exec"
	"strconv"
	"time"
)

// Provider identifies a model provider family for capability-matrix lookup.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Mode is an authentication mode a provider may or may not support.
type Mode string

const (
	ModeAPIKey       Mode = "api_key"
	ModeOAuthToken   Mode = "oauth_token"
	ModeSessionToken Mode = "session_token"
	ModeADC          Mode = "adc"
)

// capability marks whether a (provider, mode) pair is supported, and if so
// whether it requires a backend CLI to exercise.
type capability struct {
	supported       bool
	requiresBackend bool
}

var capabilityMatrix = map[Provider]map[Mode]capability{
	ProviderOpenAI: {
		ModeAPIKey:       {supported: true},
		ModeOAuthToken:   {supported: true},
		ModeSessionToken: {supported: true},
		ModeADC:          {supported: false},
	},
	ProviderAnthropic: {
		ModeAPIKey:       {supported: true},
		ModeOAuthToken:   {supported: true, requiresBackend: true},
		ModeSessionToken: {supported: true},
		ModeADC:          {supported: false},
	},
	ProviderGoogle: {
		ModeAPIKey:       {supported: true},
		ModeOAuthToken:   {supported: true, requiresBackend: true},
		ModeSessionToken: {supported: false},
		ModeADC:          {supported: true},
	},
}

// State is the resolved availability state of an (provider, mode) pair.
type State string

const (
	StateReady                 State = "ready"
	StateExpired                State = "expired"
	StateExpiredRefreshPending  State = "expired_refresh_pending"
	StateMissingAccessToken     State = "missing_access_token"
	StateMissingAPIKey          State = "missing_api_key"
	StateRevoked                State = "revoked"
	StateModeMismatch           State = "mode_mismatch"
	StateUnsupportedMode        State = "unsupported_mode"
	StateBackendDisabled        State = "backend_disabled"
	StateBackendUnavailable     State = "backend_unavailable"
	StateStoreError             State = "store_error"
	StateExpiredEnvAccessToken  State = "expired_env_access_token"
)

// SourceKind classifies where a credential value came from.
type SourceKind string

const (
	SourceKindFlag            SourceKind = "flag"
	SourceKindEnv             SourceKind = "env"
	SourceKindCredentialStore SourceKind = "credential_store"
	SourceKindNone            SourceKind = "none"
)

const (
	sourceNone       = "none"
	sourceStore      = "credential_store"
	sourceClaudeCLI  = "claude_cli"
	sourceGeminiCLI  = "gemini_cli"
)

// AuthStatusRow is the Auth Resolver's output for one (provider, mode) pair.
type AuthStatusRow struct {
	ModeSupported bool
	Available     bool
	State         State
	Source        string
	SourceKind    SourceKind
	Refreshable   bool
	Revoked       bool
	ExpiresUnix   *int64
}

func lookPathDefault(file string) (string, error) {
	return exec.LookPath(file)
}

func envInt64(name string) (int64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// envAPIKeyVars lists, in precedence order after the generic flag, the
// environment variables checked for api_key mode per provider family.
var envAPIKeyVars = map[Provider][]string{
	ProviderOpenAI: {
		"OPENAI_API_KEY", "OPENROUTER_API_KEY", "GROQ_API_KEY",
		"XAI_API_KEY", "MISTRAL_API_KEY", "AZURE_OPENAI_API_KEY",
	},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGoogle:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// envAccessTokenVar is the env var carrying a pre-minted access token for
// oauth_token/session_token resolution, keyed by provider.
var envAccessTokenVar = map[Provider]string{
	ProviderOpenAI:    "OPENAI_ACCESS_TOKEN",
	ProviderAnthropic: "ANTHROPIC_ACCESS_TOKEN",
	ProviderGoogle:    "GOOGLE_ACCESS_TOKEN",
}

// backendCLI maps a provider to the backend executable name consulted for
// oauth_token/session_token resolution, per the capability matrix.
var backendCLI = map[Provider]string{
	ProviderAnthropic: "claude",
	ProviderGoogle:    "gemini",
}

var backendCLISource = map[Provider]string{
	ProviderAnthropic: sourceClaudeCLI,
	ProviderGoogle:    sourceGeminiCLI,
}

// ResolveOptions carries the inputs the resolver needs beyond the credential
// store: flag-supplied values and whether the backend CLI path is enabled.
type ResolveOptions struct {
	ProviderFlag      string // value of a provider-specific CLI flag, if set
	GenericFlag       string // value of a generic --api-key style flag, if set
	BackendCLIEnabled bool
	LookPath          func(file string) (string, error)
	Now               func() time.Time
	RefreshAccessToken func(refreshToken string) (newAccessToken string, expiresUnix int64, err error)
}

func (o ResolveOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o ResolveOptions) lookPath(file string) (string, error) {
	if o.LookPath != nil {
		return o.LookPath(file)
	}
	return lookPathDefault(file)
}

// Resolve computes the AuthStatusRow for (provider, mode) against store,
// honoring the static capability matrix, source precedence, refresh, and
// fail-closed revocation semantics.
func Resolve(store *CredentialStoreData, provider Provider, mode Mode, opts ResolveOptions) AuthStatusRow {
	capInfo, known := capabilityMatrix[provider][mode]
	if !known || !capInfo.supported {
		return AuthStatusRow{ModeSupported: false, Available: false, State: StateUnsupportedMode, Source: sourceNone, SourceKind: SourceKindNone}
	}

	rec, hasRec := store.Providers[string(provider)]
	if hasRec && rec.AuthMethod != "" && rec.AuthMethod != AuthMethod(mode) {
		return AuthStatusRow{ModeSupported: true, Available: false, State: StateModeMismatch, Source: sourceNone, SourceKind: SourceKindNone}
	}

	if mode == ModeAPIKey {
		return resolveAPIKey(store, provider, opts)
	}
	return resolveTokenMode(store, provider, mode, capInfo, opts)
}

func resolveAPIKey(store *CredentialStoreData, provider Provider, opts ResolveOptions) AuthStatusRow {
	if opts.ProviderFlag != "" {
		return AuthStatusRow{ModeSupported: true, Available: true, State: StateReady, Source: "--" + string(provider) + "-api-key", SourceKind: SourceKindFlag}
	}
	if opts.GenericFlag != "" {
		return AuthStatusRow{ModeSupported: true, Available: true, State: StateReady, Source: "--api-key", SourceKind: SourceKindFlag}
	}
	for _, envVar := range envAPIKeyVars[provider] {
		if v := os.Getenv(envVar); v != "" {
			return AuthStatusRow{ModeSupported: true, Available: true, State: StateReady, Source: envVar, SourceKind: SourceKindEnv}
		}
	}
	if rec, ok := store.Providers[string(provider)]; ok && rec.AccessToken != "" {
		if rec.Revoked {
			return AuthStatusRow{ModeSupported: true, Available: false, State: StateRevoked, Source: sourceStore, SourceKind: SourceKindCredentialStore, Revoked: true}
		}
		return AuthStatusRow{ModeSupported: true, Available: true, State: StateReady, Source: sourceStore, SourceKind: SourceKindCredentialStore}
	}
	return AuthStatusRow{ModeSupported: true, Available: false, State: StateMissingAPIKey, Source: sourceNone, SourceKind: SourceKindNone}
}

func resolveTokenMode(store *CredentialStoreData, provider Provider, mode Mode, capInfo capability, opts ResolveOptions) AuthStatusRow {
	rec, hasRec := store.Providers[string(provider)]

	if hasRec && rec.Revoked {
		return AuthStatusRow{ModeSupported: true, Available: false, State: StateRevoked, Source: sourceStore, SourceKind: SourceKindCredentialStore, Revoked: true}
	}

	if hasRec && rec.AccessToken != "" {
		row := AuthStatusRow{
			ModeSupported: true,
			Source:        sourceStore,
			SourceKind:    SourceKindCredentialStore,
			Refreshable:   mode == ModeOAuthToken && rec.RefreshToken != "",
			ExpiresUnix:   rec.ExpiresUnix,
		}
		if rec.ExpiresUnix != nil && *rec.ExpiresUnix <= opts.now().Unix() {
			if rec.RefreshToken == "" {
				row.Available = false
				row.State = StateExpired
				return row
			}
			if opts.RefreshAccessToken == nil {
				row.Available = false
				row.State = StateExpiredRefreshPending
				return row
			}
			newToken, newExpiry, err := opts.RefreshAccessToken(rec.RefreshToken)
			if err != nil {
				row.Available = false
				row.Revoked = true
				row.State = StateRevoked
				store.Providers[string(provider)] = ProviderCredentialRecord{
					AuthMethod:   rec.AuthMethod,
					AccessToken:  rec.AccessToken,
					RefreshToken: rec.RefreshToken,
					ExpiresUnix:  rec.ExpiresUnix,
					Revoked:      true,
				}
				return row
			}
			expiry := newExpiry
			store.Providers[string(provider)] = ProviderCredentialRecord{
				AuthMethod:   rec.AuthMethod,
				AccessToken:  newToken,
				RefreshToken: rec.RefreshToken,
				ExpiresUnix:  &expiry,
			}
			row.Available = true
			row.State = StateReady
			row.ExpiresUnix = &expiry
			return row
		}
		row.Available = true
		row.State = StateReady
		return row
	}

	if capInfo.requiresBackend {
		if !opts.BackendCLIEnabled {
			return AuthStatusRow{ModeSupported: true, Available: false, State: StateBackendDisabled, Source: sourceNone, SourceKind: SourceKindNone}
		}
		binary, known := backendCLI[provider]
		if known {
			if _, err := opts.lookPath(binary); err != nil {
				return AuthStatusRow{ModeSupported: true, Available: false, State: StateBackendUnavailable, Source: sourceNone, SourceKind: SourceKindNone}
			}
			return AuthStatusRow{ModeSupported: true, Available: true, State: StateReady, Source: backendCLISource[provider], SourceKind: SourceKindCredentialStore}
		}
	}

	if envVar, ok := envAccessTokenVar[provider]; ok {
		if v := os.Getenv(envVar); v != "" {
			if expiresAt, hasExpiry := envInt64(envVar + "_EXPIRES_UNIX"); hasExpiry && expiresAt <= opts.now().Unix() {
				return AuthStatusRow{ModeSupported: true, Available: false, State: StateExpiredEnvAccessToken, Source: envVar, SourceKind: SourceKindEnv}
			}
			return AuthStatusRow{ModeSupported: true, Available: true, State: StateReady, Source: envVar, SourceKind: SourceKindEnv}
		}
	}

	return AuthStatusRow{ModeSupported: true, Available: false, State: StateMissingAccessToken, Source: sourceNone, SourceKind: SourceKindNone}
}
