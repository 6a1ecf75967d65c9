package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/loomrun/loom/internal/auth"
	"github.com/loomrun/loom/internal/config"
	"github.com/loomrun/loom/internal/doctor"
	"github.com/loomrun/loom/internal/skills"
)

// adminDeps names the context keys the admin command group reads its
// dependencies from. Each is optional per-invocation; a command reports a
// ValidationError-shaped result (not a panic) when its dependency is
// missing, the same way sessionRuntimeFrom does for /branch et al.
const (
	credentialStoreKey     = "credential_store"
	credentialStorePathKey = "credential_store_path"
	adminConfigKey         = "admin_config"
	skillsManagerKey       = "skills_manager"
	skillsDirKey           = "skills_dir"
	skillsLockfilePathKey  = "skills_lockfile_path"
)

// WithCredentialStore attaches the loaded credential store and the path it
// should be saved back to, for /auth and /integration-auth.
func WithCredentialStore(inv *Invocation, store *auth.CredentialStoreData, path string) {
	if inv.Context == nil {
		inv.Context = map[string]any{}
	}
	inv.Context[credentialStoreKey] = store
	inv.Context[credentialStorePathKey] = path
}

func credentialStoreFrom(inv *Invocation) (*auth.CredentialStoreData, string, error) {
	store, _ := inv.Context[credentialStoreKey].(*auth.CredentialStoreData)
	path, _ := inv.Context[credentialStorePathKey].(string)
	if store == nil || path == "" {
		return nil, "", fmt.Errorf("no credential store attached to this invocation")
	}
	return store, path, nil
}

// WithAdminConfig attaches the loaded runtime config, for /doctor.
func WithAdminConfig(inv *Invocation, cfg *config.Config) {
	if inv.Context == nil {
		inv.Context = map[string]any{}
	}
	inv.Context[adminConfigKey] = cfg
}

func adminConfigFrom(inv *Invocation) (*config.Config, error) {
	cfg, _ := inv.Context[adminConfigKey].(*config.Config)
	if cfg == nil {
		return nil, fmt.Errorf("no config attached to this invocation")
	}
	return cfg, nil
}

// WithSkillsManager attaches the skills manager plus the on-disk skills
// directory and lockfile path /skills-* commands operate on.
func WithSkillsManager(inv *Invocation, mgr *skills.Manager, skillsDir, lockfilePath string) {
	if inv.Context == nil {
		inv.Context = map[string]any{}
	}
	inv.Context[skillsManagerKey] = mgr
	inv.Context[skillsDirKey] = skillsDir
	inv.Context[skillsLockfilePathKey] = lockfilePath
}

func skillsManagerFrom(inv *Invocation) (*skills.Manager, string, string, error) {
	mgr, _ := inv.Context[skillsManagerKey].(*skills.Manager)
	dir, _ := inv.Context[skillsDirKey].(string)
	lockPath, _ := inv.Context[skillsLockfilePathKey].(string)
	if mgr == nil || dir == "" {
		return nil, "", "", fmt.Errorf("no skills manager attached to this invocation")
	}
	return mgr, dir, lockPath, nil
}

// RegisterAdminCommands registers the spec's admin command group: /auth,
// /integration-auth, /skills-list, /skills-show, /skills-check,
// /skills-prune, and /doctor. All are AdminOnly so Registry.Execute
// rejects them for a non-admin Invocation before the handler ever runs.
func RegisterAdminCommands(r *Registry) {
	mustRegister := func(cmd *Command) {
		if err := r.Register(cmd); err != nil {
			panic(fmt.Sprintf("failed to register builtin command %q: %v", cmd.Name, err))
		}
	}

	mustRegister(&Command{
		Name:        "auth",
		Usage:       "/auth <status|login|logout> [provider] [secret]",
		Description: "Inspect or mutate provider credentials",
		AcceptsArgs: true,
		AdminOnly:   true,
		Category:    "admin",
		Source:      "builtin",
		Handler:     authHandler,
	})

	mustRegister(&Command{
		Name:        "integration-auth",
		Usage:       "/integration-auth <status|login|logout> [integration] [secret]",
		Description: "Inspect or mutate integration credentials",
		AcceptsArgs: true,
		AdminOnly:   true,
		Category:    "admin",
		Source:      "builtin",
		Handler:     integrationAuthHandler,
	})

	mustRegister(&Command{
		Name:        "skills-list",
		Description: "List discovered skills and their eligibility",
		AcceptsArgs: true,
		AdminOnly:   true,
		Category:    "admin",
		Source:      "builtin",
		Handler:     skillsListHandler,
	})

	mustRegister(&Command{
		Name:        "skills-show",
		Usage:       "/skills-show <name>",
		Description: "Show a skill's metadata",
		AcceptsArgs: true,
		AdminOnly:   true,
		Category:    "admin",
		Source:      "builtin",
		Handler:     skillsShowHandler,
	})

	mustRegister(&Command{
		Name:        "skills-check",
		Usage:       "/skills-check <name>",
		Description: "Check a skill's eligibility and the reason if ineligible",
		AcceptsArgs: true,
		AdminOnly:   true,
		Category:    "admin",
		Source:      "builtin",
		Handler:     skillsCheckHandler,
	})

	mustRegister(&Command{
		Name:        "skills-prune",
		Usage:       "/skills-prune [--apply]",
		Description: "Report (or delete with --apply) skills not tracked by the lockfile",
		AcceptsArgs: true,
		AdminOnly:   true,
		Category:    "admin",
		Source:      "builtin",
		Handler:     skillsPruneHandler,
	})

	mustRegister(&Command{
		Name:        "doctor",
		Description: "Run channel policy checks and a security audit",
		AcceptsArgs: true,
		AdminOnly:   true,
		Category:    "admin",
		Source:      "builtin",
		Handler:     doctorHandler,
	})
}

func authHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	store, path, err := credentialStoreFrom(inv)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(inv.Args)
	if len(fields) == 0 {
		return nil, fmt.Errorf("auth: expected status, login, or logout")
	}

	switch fields[0] {
	case "status":
		return &Result{Text: formatAuthStatus(store), Markdown: true}, nil
	case "login":
		if len(fields) < 3 {
			return nil, fmt.Errorf("auth login: usage /auth login <provider> <api-key>")
		}
		provider := fields[1]
		store.Providers[provider] = auth.ProviderCredentialRecord{
			AuthMethod:  auth.AuthAPIKey,
			AccessToken: fields[2],
		}
		if err := auth.Save(path, store, ""); err != nil {
			return nil, fmt.Errorf("auth login: %w", err)
		}
		return &Result{Text: fmt.Sprintf("Stored api_key credential for %s.", provider)}, nil
	case "logout":
		if len(fields) < 2 {
			return nil, fmt.Errorf("auth logout: usage /auth logout <provider>")
		}
		provider := fields[1]
		rec, ok := store.Providers[provider]
		if !ok {
			return nil, fmt.Errorf("auth logout: no stored credential for %s", provider)
		}
		rec.Revoked = true
		store.Providers[provider] = rec
		if err := auth.Save(path, store, ""); err != nil {
			return nil, fmt.Errorf("auth logout: %w", err)
		}
		return &Result{Text: fmt.Sprintf("Revoked credential for %s.", provider)}, nil
	default:
		return nil, fmt.Errorf("auth: unknown subcommand %q", fields[0])
	}
}

func formatAuthStatus(store *auth.CredentialStoreData) string {
	providers := []auth.Provider{auth.ProviderAnthropic, auth.ProviderOpenAI, auth.ProviderGoogle}
	modes := []auth.Mode{auth.ModeAPIKey, auth.ModeOAuthToken, auth.ModeSessionToken, auth.ModeADC}
	opts := auth.ResolveOptions{BackendCLIEnabled: true}

	var b strings.Builder
	for _, provider := range providers {
		for _, mode := range modes {
			row := auth.Resolve(store, provider, mode, opts)
			if !row.ModeSupported {
				continue
			}
			fmt.Fprintf(&b, "%s %s available=%v state=%s source=%s\n", provider, mode, row.Available, row.State, row.Source)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func integrationAuthHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	store, path, err := credentialStoreFrom(inv)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(inv.Args)
	if len(fields) == 0 {
		return nil, fmt.Errorf("integration-auth: expected status, login, or logout")
	}

	switch fields[0] {
	case "status":
		names := make([]string, 0, len(store.Integrations))
		for name := range store.Integrations {
			names = append(names, name)
		}
		sort.Strings(names)
		var b strings.Builder
		for _, name := range names {
			rec := store.Integrations[name]
			fmt.Fprintf(&b, "%s revoked=%v\n", name, rec.Revoked)
		}
		if b.Len() == 0 {
			return &Result{Text: "No integrations configured."}, nil
		}
		return &Result{Text: strings.TrimRight(b.String(), "\n")}, nil
	case "login":
		if len(fields) < 3 {
			return nil, fmt.Errorf("integration-auth login: usage /integration-auth login <integration> <secret>")
		}
		name := fields[1]
		if store.Integrations == nil {
			store.Integrations = map[string]auth.IntegrationCredentialRecord{}
		}
		store.Integrations[name] = auth.IntegrationCredentialRecord{Secret: fields[2]}
		if err := auth.Save(path, store, ""); err != nil {
			return nil, fmt.Errorf("integration-auth login: %w", err)
		}
		return &Result{Text: fmt.Sprintf("Stored credential for integration %s.", name)}, nil
	case "logout":
		if len(fields) < 2 {
			return nil, fmt.Errorf("integration-auth logout: usage /integration-auth logout <integration>")
		}
		name := fields[1]
		rec, ok := store.Integrations[name]
		if !ok {
			return nil, fmt.Errorf("integration-auth logout: no stored credential for %s", name)
		}
		rec.Revoked = true
		store.Integrations[name] = rec
		if err := auth.Save(path, store, ""); err != nil {
			return nil, fmt.Errorf("integration-auth logout: %w", err)
		}
		return &Result{Text: fmt.Sprintf("Revoked credential for integration %s.", name)}, nil
	default:
		return nil, fmt.Errorf("integration-auth: unknown subcommand %q", fields[0])
	}
}

func skillsListHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	mgr, _, _, err := skillsManagerFrom(inv)
	if err != nil {
		return nil, err
	}
	all := strings.Contains(inv.Args, "--all")
	entries := mgr.ListEligible()
	if all {
		entries = mgr.ListAll()
	}
	if len(entries) == 0 {
		return &Result{Text: "No skills discovered."}, nil
	}
	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s (%s) - %s\n", entry.Name, entry.Source, entry.Description)
	}
	return &Result{Text: strings.TrimRight(b.String(), "\n")}, nil
}

func skillsShowHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	mgr, _, _, err := skillsManagerFrom(inv)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(inv.Args)
	if name == "" {
		return nil, fmt.Errorf("skills-show: a skill name is required")
	}
	entry, ok := mgr.GetSkill(name)
	if !ok {
		return nil, fmt.Errorf("skills-show: unknown skill %q", name)
	}
	return &Result{
		Text: fmt.Sprintf("%s\nSource: %s\nPath: %s\n%s", entry.Name, entry.Source, entry.Path, entry.Description),
		Data: map[string]any{"name": entry.Name, "source": string(entry.Source), "path": entry.Path},
	}, nil
}

func skillsCheckHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	mgr, _, _, err := skillsManagerFrom(inv)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(inv.Args)
	if name == "" {
		return nil, fmt.Errorf("skills-check: a skill name is required")
	}
	result, err := mgr.CheckEligibility(name)
	if err != nil {
		return nil, fmt.Errorf("skills-check: %w", err)
	}
	return &Result{
		Text: fmt.Sprintf("%s eligible=%v reason=%s", name, result.Eligible, result.Reason),
		Data: map[string]any{"eligible": result.Eligible, "reason": result.Reason},
	}, nil
}

func skillsPruneHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	_, dir, lockPath, err := skillsManagerFrom(inv)
	if err != nil {
		return nil, err
	}
	apply := strings.Contains(inv.Args, "--apply")

	lock, err := skills.LoadLockfile(lockPath)
	if err != nil {
		return nil, fmt.Errorf("skills-prune: %w", err)
	}
	result, err := skills.Prune(dir, lock, apply)
	if err != nil {
		return nil, fmt.Errorf("skills-prune: %w", err)
	}
	return &Result{
		Text: skills.FormatPruneReport(result, apply),
		Data: map[string]any{
			"would_delete": len(result.WouldDelete),
			"deleted":      len(result.Deleted),
			"applied":      apply,
		},
	}, nil
}

func doctorHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	cfg, err := adminConfigFrom(inv)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, issue := range doctor.CheckChannelPolicies(cfg) {
		fmt.Fprintf(&b, "policy: %s\n", issue)
	}
	audit := doctor.AuditSecurity(cfg, "")
	for _, finding := range audit.Findings {
		fmt.Fprintf(&b, "[%s] %s\n", finding.Severity, finding.Message)
	}
	if b.Len() == 0 {
		return &Result{Text: "No issues found."}, nil
	}
	return &Result{Text: strings.TrimRight(b.String(), "\n")}, nil
}
