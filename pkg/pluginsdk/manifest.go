package pluginsdk

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	ManifestFilename       = "loom.plugin.json"
	LegacyManifestFilename = "clawdbot.plugin.json"
)

// Manifest describes a plugin and its configuration schema.
type Manifest struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind,omitempty"`
	Name         string          `json:"name,omitempty"`
	Description  string          `json:"description,omitempty"`
	Version      string          `json:"version,omitempty"`
	Channels     []string        `json:"channels,omitempty"`
	Providers    []string        `json:"providers,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	UIHints      *UIHints        `json:"uiHints,omitempty"`

	// Tools lists tool names this extension declares, dispatched to the
	// entrypoint as "tool-call" frames.
	Tools []string `json:"tools,omitempty"`

	// Commands lists slash-command names this extension declares,
	// dispatched to the entrypoint as "command-call" frames.
	Commands []string `json:"commands,omitempty"`

	// Services lists background service ids this extension registers.
	Services []string `json:"services,omitempty"`

	// Hooks lists the hook names the host will deliver to this
	// extension (e.g. "pre-tool-call", "session.created"). Unlisted
	// hooks are never dispatched to the entrypoint.
	Hooks []string `json:"hooks,omitempty"`

	// Capabilities gates which channel/tool/cli/service/hook targets
	// this extension may register or be dispatched.
	Capabilities *Capabilities `json:"capabilities,omitempty"`

	// Runtime is the extension execution model. Only "process" is
	// supported today: the host spawns Entrypoint as a subprocess per
	// hook invocation, per tool call, and per command call.
	Runtime string `json:"runtime,omitempty"`

	// Entrypoint is the executable (plus leading args) the host spawns
	// for out-of-process hook/tool/command dispatch. Relative paths are
	// resolved against the extension's install directory.
	Entrypoint []string `json:"entrypoint,omitempty"`

	// Permissions lists coarse capability grants the host honors when
	// dispatching to this extension (e.g. "tools", "commands").
	Permissions []string `json:"permissions,omitempty"`

	// TimeoutMS bounds a single stdin/stdout round trip to the
	// extension process. Zero means the host's default applies.
	TimeoutMS int `json:"timeoutMs,omitempty"`
}

// Capabilities declares the targets a plugin is allowed to touch.
// Required capabilities must be granted by the host for the plugin to
// load; Optional ones degrade gracefully when absent.
type Capabilities struct {
	Required []string `json:"required,omitempty"`
	Optional []string `json:"optional,omitempty"`
}

// DeclaredCapabilities returns the union of required and optional
// capability patterns, trimmed and with blanks removed.
func (m *Manifest) DeclaredCapabilities() []string {
	if m == nil || m.Capabilities == nil {
		return nil
	}
	var out []string
	for _, group := range [][]string{m.Capabilities.Required, m.Capabilities.Optional} {
		for _, cap := range group {
			cap = strings.TrimSpace(cap)
			if cap == "" {
				continue
			}
			out = append(out, cap)
		}
	}
	return out
}

// HasCapability reports whether the manifest declares a pattern matching
// the requested capability.
func (m *Manifest) HasCapability(requested string) bool {
	for _, allowed := range m.DeclaredCapabilities() {
		if CapabilityMatches(allowed, requested) {
			return true
		}
	}
	return false
}

// CapabilityMatches reports whether allowed (possibly ending in "*", or
// exactly "*") covers requested.
func CapabilityMatches(allowed, requested string) bool {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" {
		return false
	}
	if allowed == "*" {
		return true
	}
	if strings.HasSuffix(allowed, "*") {
		return strings.HasPrefix(requested, strings.TrimSuffix(allowed, "*"))
	}
	return allowed == requested
}

// PermitsHook reports whether the manifest allows delivery of the named hook.
func (m *Manifest) PermitsHook(hook string) bool {
	if m == nil {
		return false
	}
	for _, h := range m.Hooks {
		if h == hook {
			return true
		}
	}
	return false
}

// EffectiveTimeout returns the manifest's configured hook timeout, falling
// back to def when unset or non-positive.
func (m *Manifest) EffectiveTimeout(def time.Duration) time.Duration {
	if m == nil || m.TimeoutMS <= 0 {
		return def
	}
	return time.Duration(m.TimeoutMS) * time.Millisecond
}

// UIHints carries presentation metadata for plugin configuration UIs. It
// has no bearing on plugin behavior.
type UIHints struct {
	ConfigFields map[string]*FieldHint `json:"configFields,omitempty"`
	SetupSteps   []*SetupStep          `json:"setupSteps,omitempty"`
	Requirements []*Requirement        `json:"requirements,omitempty"`
	Links        map[string]string     `json:"links,omitempty"`
}

// FieldHint describes how a single config field should be rendered.
type FieldHint struct {
	Label       string           `json:"label,omitempty"`
	Description string           `json:"description,omitempty"`
	Placeholder string           `json:"placeholder,omitempty"`
	HelpURL     string           `json:"helpUrl,omitempty"`
	InputType   string           `json:"inputType,omitempty"`
	Options     []FieldOption    `json:"options,omitempty"`
	Required    bool             `json:"required,omitempty"`
	Sensitive   bool             `json:"sensitive,omitempty"`
	EnvVar      string           `json:"envVar,omitempty"`
	Default     string           `json:"default,omitempty"`
	Validation  *FieldValidation `json:"validation,omitempty"`
}

// FieldOption is a selectable value for an enum-style config field.
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// FieldValidation constrains acceptable values for a config field.
type FieldValidation struct {
	Pattern   string   `json:"pattern,omitempty"`
	MinLength int      `json:"minLength,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

// SetupStep describes one step of a guided plugin setup flow.
type SetupStep struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Commands     []string `json:"commands,omitempty"`
	ConfigFields []string `json:"configFields,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// Requirement describes an external prerequisite (API key, bot account,
// etc.) needed before the plugin can run.
type Requirement struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

// GetFieldHint returns the hint for a config field path, or nil.
func (m *Manifest) GetFieldHint(path string) *FieldHint {
	if m == nil || m.UIHints == nil || m.UIHints.ConfigFields == nil {
		return nil
	}
	return m.UIHints.ConfigFields[path]
}

// GetSetupSteps returns the manifest's guided setup steps, or nil.
func (m *Manifest) GetSetupSteps() []*SetupStep {
	if m == nil || m.UIHints == nil {
		return nil
	}
	return m.UIHints.SetupSteps
}

// GetRequirements returns the manifest's external requirements, or nil.
func (m *Manifest) GetRequirements() []*Requirement {
	if m == nil || m.UIHints == nil {
		return nil
	}
	return m.UIHints.Requirements
}

// GetRequiredFields returns the config field paths marked required.
func (m *Manifest) GetRequiredFields() []string {
	if m == nil || m.UIHints == nil || m.UIHints.ConfigFields == nil {
		return nil
	}
	var out []string
	for path, hint := range m.UIHints.ConfigFields {
		if hint != nil && hint.Required {
			out = append(out, path)
		}
	}
	return out
}

// GetSensitiveFields returns the config field paths marked sensitive.
func (m *Manifest) GetSensitiveFields() []string {
	if m == nil || m.UIHints == nil || m.UIHints.ConfigFields == nil {
		return nil
	}
	var out []string
	for path, hint := range m.UIHints.ConfigFields {
		if hint != nil && hint.Sensitive {
			out = append(out, path)
		}
	}
	return out
}

func DecodeManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &manifest, nil
}

func DecodeManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return DecodeManifest(data)
}

func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("manifest is nil")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("manifest id is required")
	}
	if len(m.ConfigSchema) == 0 {
		return fmt.Errorf("manifest configSchema is required")
	}
	return nil
}
