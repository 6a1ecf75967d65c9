package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/loomrun/loom/internal/agent"
	"github.com/loomrun/loom/internal/auth"
	"github.com/loomrun/loom/internal/config"
	"github.com/loomrun/loom/internal/jobs"
	"github.com/loomrun/loom/internal/sessions"
	"github.com/loomrun/loom/internal/skills"
	"github.com/loomrun/loom/internal/tools/exec"
	"github.com/loomrun/loom/internal/tools/files"
	"github.com/loomrun/loom/internal/tools/policy"
)

// runtime bundles everything an agent run needs: the loaded config, the
// provider router, the tool registry, and the session store backing it.
// buildRunCmd and buildServeCmd both assemble one of these from the same
// --config/--workspace/--policy flags rather than duplicating the wiring.
type runtime struct {
	cfg     *config.Config
	creds   *auth.CredentialStoreData
	loop    *agent.AgenticLoop
	runtime *sessions.SessionRuntime
}

// loadConfig reads path, seeding a minimal default document first if the
// file does not exist yet (a brand new ~/.loom has nothing to read).
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if werr := os.WriteFile(path, []byte("{}\n"), 0o600); werr != nil {
			return nil, fmt.Errorf("seed default config at %s: %w", path, werr)
		}
	}
	return config.Load(path)
}

// buildToolRegistry wires the workspace file/exec tools through the named
// policy preset, the same hardened/balanced/permissive gate §4.4 defines,
// then layers in any tools contributed by eligible skills.
func buildToolRegistry(ctx context.Context, workspace string, presetName string, skillsCfg *skills.SkillsConfig) *agent.ToolRegistry {
	preset := policy.PolicyPreset(presetName)
	switch preset {
	case policy.PresetHardened, policy.PresetBalanced, policy.PresetPermissive:
	default:
		preset = policy.PresetBalanced
	}
	toolPolicy := policy.NewToolPolicy(preset, workspace)

	registry := agent.NewToolRegistry()
	fileCfg := files.Config{Workspace: workspace, Policy: toolPolicy}
	registry.Register(files.NewReadTool(fileCfg))
	registry.Register(files.NewWriteTool(fileCfg))
	registry.Register(files.NewEditTool(fileCfg))
	registry.Register(files.NewApplyPatchTool(fileCfg))

	manager := exec.NewManager(workspace).WithPolicy(toolPolicy)
	registry.Register(exec.NewExecTool("exec", manager))
	registry.Register(exec.NewProcessTool(manager))

	mgr, err := skills.NewManager(skillsCfg, workspace, nil)
	if err != nil {
		slog.Warn("skills manager unavailable", "error", err)
		return registry
	}
	if err := mgr.Discover(ctx); err != nil {
		slog.Warn("skill discovery failed", "error", err)
		return registry
	}
	for _, entry := range mgr.ListEligible() {
		for _, tool := range skills.BuildSkillTools(entry, manager) {
			registry.Register(tool)
		}
	}

	return registry
}

// buildRuntime assembles the provider router, tool registry, and session
// runtime shared by `loom run` and `loom serve`.
func buildRuntime(ctx context.Context, cfg *config.Config, sessionPath, workspace, policyPreset string) (*runtime, error) {
	credPath := defaultCredentialStorePath()
	encKey := os.Getenv("LOOM_CREDENTIAL_KEY")
	creds, err := auth.Load(credPath, auth.ResolveEncryptionMode(auth.EncryptionAuto, encKey), encKey)
	if err != nil {
		return nil, fmt.Errorf("load credential store: %w", err)
	}

	providerMap, err := buildProviders(cfg, creds)
	if err != nil {
		return nil, err
	}

	var primary agent.LLMProvider
	order := cfg.LLM.FallbackChain
	if cfg.LLM.DefaultProvider != "" {
		order = append([]string{cfg.LLM.DefaultProvider}, order...)
	}
	seen := make(map[string]bool, len(order))
	var chain []agent.LLMProvider
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		if p, ok := providerMap[name]; ok {
			chain = append(chain, p)
		}
	}
	if len(chain) == 0 {
		// No configured ordering; fall back to map iteration order so a
		// single-provider config still works without fallback_chain set.
		for _, p := range providerMap {
			chain = append(chain, p)
		}
	}
	primary = chain[0]

	orchestrator := agent.NewFailoverOrchestrator(primary, agent.DefaultFailoverConfig())
	for _, p := range chain[1:] {
		orchestrator.AddProvider(p)
	}
	emitter := agent.NewEventEmitter("cli", nil)
	orchestrator.SetEmitter(emitter)

	store, _, err := sessions.Load(sessionPath, sessions.DefaultLockConfig())
	if err != nil {
		return nil, fmt.Errorf("load session store: %w", err)
	}
	head := store.HeadID()
	sessionRuntime := &sessions.SessionRuntime{Store: store, ActiveHead: head}

	registry := buildToolRegistry(ctx, workspace, policyPreset, &cfg.Skills)

	loopCfg := agent.DefaultLoopConfig()
	loopCfg.Sessions = sessionRuntime
	loopCfg.JobStore = jobs.NewMemoryStore()
	if execCfg := cfg.Tools.Execution; execCfg.MaxIterations > 0 {
		loopCfg.MaxIterations = execCfg.MaxIterations
	}
	if cfg.Tools.Execution.MaxToolCalls > 0 {
		loopCfg.MaxToolCalls = cfg.Tools.Execution.MaxToolCalls
	}
	loopCfg.DisableToolEvents = cfg.Tools.Execution.DisableEvents
	loopCfg.AsyncTools = cfg.Tools.Execution.Async
	loopCfg.RequireApproval = cfg.Tools.Execution.RequireApproval

	loop := agent.NewAgenticLoop(orchestrator, registry, sessionRuntime, loopCfg)
	if cfg.LLM.DefaultProvider != "" {
		if pc, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; ok && pc.DefaultModel != "" {
			loop.SetDefaultModel(pc.DefaultModel)
		}
	}

	return &runtime{cfg: cfg, creds: creds, loop: loop, runtime: sessionRuntime}, nil
}

func (r *runtime) Close() error {
	if r.runtime != nil && r.runtime.Store != nil {
		return r.runtime.Store.Close()
	}
	return nil
}

