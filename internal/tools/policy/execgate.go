package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BashProfile selects how aggressively the bash gate restricts commands.
type BashProfile string

const (
	// BashProfileStrict only allows programs matching AllowedCommands.
	BashProfileStrict BashProfile = "strict"
	// BashProfileBalanced applies a built-in destructive-command deny-list.
	BashProfileBalanced BashProfile = "balanced"
	// BashProfilePermissive performs no allow/deny check on the program name.
	BashProfilePermissive BashProfile = "permissive"
)

// SandboxMode controls whether bash commands are wrapped by an OS sandbox.
type SandboxMode string

const (
	SandboxOff   SandboxMode = "off"
	SandboxAuto  SandboxMode = "auto"
	SandboxForce SandboxMode = "force"
)

// PolicyPreset names one of the three built-in tool policy presets.
type PolicyPreset string

const (
	PresetHardened   PolicyPreset = "hardened"
	PresetBalanced   PolicyPreset = "balanced"
	PresetPermissive PolicyPreset = "permissive"
)

// builtinDenyList backs BashProfileBalanced: programs considered destructive
// enough to block even without an explicit allow-list.
var builtinDenyList = []string{
	"rm", "rmdir", "mkfs", "mkfs.ext4", "mkfs.xfs", "dd", "shutdown", "reboot",
	"halt", "poweroff", "init", "shred", "fdisk", "parted", "mount", "umount",
	"kill", "killall", "pkill",
}

// ToolPolicy gates filesystem and bash tool invocations per the runtime's
// configured limits. The zero value is the "balanced" preset.
type ToolPolicy struct {
	// AllowedRoots is the ordered set of absolute paths a path argument must
	// canonicalize under. The workspace root is always implicitly included.
	AllowedRoots []string

	BashProfile     BashProfile
	AllowedCommands []string

	MaxCommandLength      int
	MaxCommandOutputBytes int
	MaxFileReadBytes      int
	MaxFileWriteBytes     int
	BashTimeoutMS         int
	AllowCommandNewlines  bool

	OSSandboxMode    SandboxMode
	OSSandboxCommand string

	EnforceRegularFiles bool
	PolicyPreset        PolicyPreset
	BashDryRun          bool
	ToolPolicyTrace     bool

	ExtensionPolicyOverrideRoot string

	// WorkspaceRoot is always appended to AllowedRoots by the path gate.
	WorkspaceRoot string
}

// NewToolPolicy builds a ToolPolicy from one of the three named presets.
func NewToolPolicy(preset PolicyPreset, workspaceRoot string) *ToolPolicy {
	switch preset {
	case PresetHardened:
		return &ToolPolicy{
			WorkspaceRoot:         workspaceRoot,
			BashProfile:           BashProfileStrict,
			MaxCommandLength:      1024,
			MaxCommandOutputBytes: 4000,
			MaxFileReadBytes:      1 << 20,
			MaxFileWriteBytes:     1 << 19,
			BashTimeoutMS:         30_000,
			OSSandboxMode:         SandboxForce,
			EnforceRegularFiles:   true,
			PolicyPreset:          PresetHardened,
		}
	case PresetPermissive:
		return &ToolPolicy{
			WorkspaceRoot:         workspaceRoot,
			BashProfile:           BashProfilePermissive,
			MaxCommandLength:      65536,
			MaxCommandOutputBytes: 200_000,
			MaxFileReadBytes:      10 << 20,
			MaxFileWriteBytes:     10 << 20,
			BashTimeoutMS:         120_000,
			OSSandboxMode:         SandboxOff,
			EnforceRegularFiles:   false,
			PolicyPreset:          PresetPermissive,
		}
	default:
		return &ToolPolicy{
			WorkspaceRoot:         workspaceRoot,
			BashProfile:           BashProfileBalanced,
			MaxCommandLength:      16384,
			MaxCommandOutputBytes: 64_000,
			MaxFileReadBytes:      5 << 20,
			MaxFileWriteBytes:     5 << 20,
			BashTimeoutMS:         60_000,
			OSSandboxMode:         SandboxOff,
			EnforceRegularFiles:   true,
			PolicyPreset:          PresetBalanced,
		}
	}
}

// roots returns AllowedRoots with WorkspaceRoot always included.
func (p *ToolPolicy) roots() ([]string, error) {
	roots := append([]string{}, p.AllowedRoots...)
	if strings.TrimSpace(p.WorkspaceRoot) != "" {
		roots = append(roots, p.WorkspaceRoot)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no allowed roots configured")
	}
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolve allowed root %q: %w", r, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// GatePath canonicalizes path and verifies it falls under one of the
// configured allowed roots. When EnforceRegularFiles is set, symlinks
// pointing outside the allowed roots are rejected and non-regular files
// are refused for read/write.
func (p *ToolPolicy) GatePath(path string) (string, error) {
	roots, err := p.roots()
	if err != nil {
		return "", err
	}

	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}

	var candidate string
	if filepath.IsAbs(clean) {
		candidate = filepath.Clean(clean)
	} else {
		candidate = filepath.Join(roots[len(roots)-1], clean)
	}

	resolved := candidate
	if info, err := os.Lstat(candidate); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if target, err := filepath.EvalSymlinks(candidate); err == nil {
			resolved = target
		}
	}

	for _, root := range roots {
		if withinRoot(resolved, root) && withinRoot(candidate, root) {
			if p.EnforceRegularFiles {
				if info, err := os.Lstat(candidate); err == nil {
					if info.Mode()&os.ModeSymlink != 0 && !withinRoot(resolved, root) {
						return "", fmt.Errorf("path %q is a symlink escaping allowed roots", path)
					}
				}
			}
			return candidate, nil
		}
	}
	return "", fmt.Errorf("path %q is outside allowed roots", path)
}

func withinRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") || rel == "..")
}

// GateRead enforces MaxFileReadBytes.
func (p *ToolPolicy) GateRead(size int64) error {
	if p.MaxFileReadBytes > 0 && size > int64(p.MaxFileReadBytes) {
		return fmt.Errorf("content is too large")
	}
	return nil
}

// GateWrite enforces MaxFileWriteBytes.
func (p *ToolPolicy) GateWrite(size int64) error {
	if p.MaxFileWriteBytes > 0 && size > int64(p.MaxFileWriteBytes) {
		return fmt.Errorf("content is too large")
	}
	return nil
}

// BashDecision is the result of gating a bash command, before execution.
type BashDecision struct {
	Command     string
	Program     string
	Wrapped     bool
	WrappedArgv []string
	DryRun      bool
}

// GateBash applies the bash gate steps from the spec in order: length,
// newline policy, program allow/deny check, and sandbox wrapping decision.
// It does not execute anything; the caller executes Command/WrappedArgv.
func (p *ToolPolicy) GateBash(command, cwd, shell string, sandboxBinaryExists func(string) bool) (*BashDecision, error) {
	if p.MaxCommandLength > 0 && len(command) > p.MaxCommandLength {
		return nil, fmt.Errorf("command is too long")
	}
	if !p.AllowCommandNewlines && strings.Contains(command, "\n") {
		return nil, fmt.Errorf("command contains newlines, which are not allowed")
	}

	program := firstShellWord(command)
	if err := p.checkProgram(program); err != nil {
		return nil, err
	}

	decision := &BashDecision{Command: command, Program: program, DryRun: p.BashDryRun}

	switch p.OSSandboxMode {
	case SandboxAuto, SandboxForce:
		wrapperBin := firstShellWord(p.OSSandboxCommand)
		exists := wrapperBin != "" && (sandboxBinaryExists == nil || sandboxBinaryExists(wrapperBin))
		if p.OSSandboxMode == SandboxForce && !exists {
			return nil, fmt.Errorf("os sandbox wrapper %q is not available", wrapperBin)
		}
		if exists {
			expanded := expandSandboxTemplate(p.OSSandboxCommand, cwd, shell, command)
			decision.Wrapped = true
			decision.WrappedArgv = splitTemplateArgv(expanded)
		}
	}

	return decision, nil
}

func (p *ToolPolicy) checkProgram(program string) error {
	switch p.BashProfile {
	case BashProfileStrict:
		for _, allowed := range p.AllowedCommands {
			if matchCommandGlob(allowed, program) {
				return nil
			}
		}
		return fmt.Errorf("command %q is not in the allowed command list", program)
	case BashProfilePermissive:
		return nil
	default: // balanced
		for _, denied := range builtinDenyList {
			if program == denied {
				return fmt.Errorf("command %q is blocked by the balanced bash profile", program)
			}
		}
		return nil
	}
}

// matchCommandGlob supports a trailing "*" wildcard, e.g. "git*".
func matchCommandGlob(pattern, program string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(program, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == program
}

func firstShellWord(command string) string {
	trimmed := strings.TrimSpace(command)
	idx := strings.IndexFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == '\t'
	})
	if idx < 0 {
		return trimmed
	}
	return trimmed[:idx]
}

func expandSandboxTemplate(template, cwd, shell, command string) string {
	replacer := strings.NewReplacer(
		"{cwd}", cwd,
		"{shell}", shell,
		"{command}", command,
	)
	return replacer.Replace(template)
}

func splitTemplateArgv(expanded string) []string {
	return strings.Fields(expanded)
}

// TruncateOutput truncates combined stdout+stderr bytes to
// MaxCommandOutputBytes, matching the spec's output-byte cap.
func (p *ToolPolicy) TruncateOutput(output []byte) []byte {
	if p.MaxCommandOutputBytes <= 0 || len(output) <= p.MaxCommandOutputBytes {
		return output
	}
	return output[:p.MaxCommandOutputBytes]
}
