// Package auth implements the Credential Store and Auth Resolver: durable
// provider/integration secrets and the (provider, mode) -> status
// resolution that the Provider Router consults before every client build.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EncryptionMode selects how ProviderCredentialRecord/IntegrationCredentialRecord
// secrets are persisted.
type EncryptionMode string

const (
	EncryptionAuto  EncryptionMode = "auto"
	EncryptionNone  EncryptionMode = "none"
	EncryptionKeyed EncryptionMode = "keyed"
)

// ResolveEncryptionMode turns "auto" into "keyed" iff a key is configured,
// else "none". A declared none/keyed mode passes through unchanged.
func ResolveEncryptionMode(declared EncryptionMode, key string) EncryptionMode {
	if declared != EncryptionAuto {
		return declared
	}
	if key != "" {
		return EncryptionKeyed
	}
	return EncryptionNone
}

// AuthMethod identifies how a provider credential was obtained.
type AuthMethod string

const (
	AuthAPIKey      AuthMethod = "api_key"
	AuthOAuthToken  AuthMethod = "oauth_token"
	AuthSessionToken AuthMethod = "session_token"
	AuthADC         AuthMethod = "adc"
)

// ProviderCredentialRecord is one provider's stored credential. AccessToken
// and RefreshToken may be plaintext or "enc:v1:<base64>" depending on the
// store's encryption mode at save time.
type ProviderCredentialRecord struct {
	AuthMethod   AuthMethod `json:"auth_method"`
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresUnix  *int64     `json:"expires_unix,omitempty"`
	Revoked      bool       `json:"revoked"`
}

// IntegrationCredentialRecord is one extension integration's stored secret.
type IntegrationCredentialRecord struct {
	Secret      string `json:"secret,omitempty"`
	Revoked     bool   `json:"revoked"`
	UpdatedUnix *int64 `json:"updated_unix,omitempty"`
}

// CredentialStoreData is the full on-disk payload, schema_version=1.
type CredentialStoreData struct {
	SchemaVersion int                                    `json:"schema_version"`
	Mode          EncryptionMode                         `json:"mode"`
	Providers     map[string]ProviderCredentialRecord     `json:"providers"`
	Integrations  map[string]IntegrationCredentialRecord  `json:"integrations"`
}

const credentialSchemaVersion = 1

func newCredentialStoreData(mode EncryptionMode) *CredentialStoreData {
	return &CredentialStoreData{
		SchemaVersion: credentialSchemaVersion,
		Mode:          mode,
		Providers:     map[string]ProviderCredentialRecord{},
		Integrations:  map[string]IntegrationCredentialRecord{},
	}
}

// Load reads the credential store at path. A missing file returns an empty
// store at declaredMode. detectedMode reflects what the payload actually
// contains ("none" vs "keyed"), which may differ from declaredMode. If the
// payload is keyed, every enc:v1: secret is decrypted with key; a wrong key
// surfaces as "integrity check failed". Legacy payloads missing
// "integrations" are accepted with an empty integrations map.
func Load(path string, declaredMode EncryptionMode, key string) (*CredentialStoreData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newCredentialStoreData(ResolveEncryptionMode(declaredMode, key)), nil
		}
		return nil, fmt.Errorf("failed to load %s: invalid or corrupted", filepath.Base(path))
	}

	var raw struct {
		SchemaVersion int                                   `json:"schema_version"`
		Mode          EncryptionMode                        `json:"mode"`
		Providers     map[string]ProviderCredentialRecord    `json:"providers"`
		Integrations  map[string]IntegrationCredentialRecord `json:"integrations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to load %s: invalid or corrupted", filepath.Base(path))
	}
	if raw.Integrations == nil {
		raw.Integrations = map[string]IntegrationCredentialRecord{}
	}
	if raw.Providers == nil {
		raw.Providers = map[string]ProviderCredentialRecord{}
	}

	store := &CredentialStoreData{
		SchemaVersion: credentialSchemaVersion,
		Mode:          raw.Mode,
		Providers:     raw.Providers,
		Integrations:  raw.Integrations,
	}

	if store.Mode == EncryptionKeyed {
		for id, rec := range store.Providers {
			decAccess, err := decryptField(rec.AccessToken, key)
			if err != nil {
				return nil, err
			}
			decRefresh, err := decryptField(rec.RefreshToken, key)
			if err != nil {
				return nil, err
			}
			rec.AccessToken = decAccess
			rec.RefreshToken = decRefresh
			store.Providers[id] = rec
		}
		for id, rec := range store.Integrations {
			dec, err := decryptField(rec.Secret, key)
			if err != nil {
				return nil, err
			}
			rec.Secret = dec
			store.Integrations[id] = rec
		}
	}

	return store, nil
}

// Save persists data to path atomically (temp-file + rename). Secrets are
// encrypted per data.Mode before being written.
func Save(path string, data *CredentialStoreData, key string) error {
	out := &CredentialStoreData{
		SchemaVersion: credentialSchemaVersion,
		Mode:          data.Mode,
		Providers:     make(map[string]ProviderCredentialRecord, len(data.Providers)),
		Integrations:  make(map[string]IntegrationCredentialRecord, len(data.Integrations)),
	}
	for id, rec := range data.Providers {
		rec.AccessToken = encryptField(rec.AccessToken, data.Mode, key)
		rec.RefreshToken = encryptField(rec.RefreshToken, data.Mode, key)
		out.Providers[id] = rec
	}
	for id, rec := range data.Integrations {
		rec.Secret = encryptField(rec.Secret, data.Mode, key)
		out.Integrations[id] = rec
	}

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential store: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp credential file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp credential file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp credential file: %w", err)
	}
	return nil
}

func encryptField(plaintext string, mode EncryptionMode, key string) string {
	if plaintext == "" || mode != EncryptionKeyed {
		return plaintext
	}
	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		// A key is present by construction whenever mode=keyed (see
		// ResolveEncryptionMode); Encrypt only errors on a missing key.
		return plaintext
	}
	return ciphertext
}

func decryptField(value, key string) (string, error) {
	if value == "" || !isEncryptedValue(value) {
		return value, nil
	}
	plaintext, err := Decrypt(value, key)
	if err != nil {
		return "", errors.New("integrity check failed")
	}
	return plaintext, nil
}
