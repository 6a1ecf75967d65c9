package exthost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/loomrun/loom/pkg/pluginsdk"
)

// DefaultTimeout bounds a frame round trip when a manifest sets no
// timeout_ms of its own.
const DefaultTimeout = 10 * time.Second

// Extension is an installed, out-of-process extension: its manifest plus
// the directory relative paths in the manifest resolve against.
type Extension struct {
	ID       string
	Manifest *pluginsdk.Manifest
	Dir      string
}

func (e *Extension) argv() ([]string, error) {
	if e.Manifest == nil || len(e.Manifest.Entrypoint) == 0 {
		return nil, fmt.Errorf("extension %q declares no entrypoint", e.ID)
	}
	argv := make([]string, len(e.Manifest.Entrypoint))
	copy(argv, e.Manifest.Entrypoint)
	if !filepath.IsAbs(argv[0]) && e.Dir != "" {
		candidate := filepath.Join(e.Dir, argv[0])
		argv[0] = candidate
	}
	return argv, nil
}

// Host spawns extension entrypoints and speaks the one-shot
// stdin/stdout JSON frame protocol described by §4.5: each hook, tool
// call, and command call gets its own process, a single frame written
// to stdin, and a single JSON response read from stdout.
type Host struct {
	logger *slog.Logger
}

// NewHost creates a Host. A nil logger falls back to slog.Default().
func NewHost(logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{logger: logger}
}

// DispatchHook invokes a lifecycle hook (pre-tool-call, post-tool-call,
// run-start, run-end, ...) on ext. Hook failure is fail-isolated: any
// error is returned to the caller for logging but must never fail the
// tool call or run it guards.
func (h *Host) DispatchHook(ctx context.Context, ext *Extension, hook string, data any) (*HookResponse, error) {
	if ext == nil || ext.Manifest == nil || !ext.Manifest.PermitsHook(hook) {
		return nil, nil
	}
	var resp HookResponse
	if err := h.roundTrip(ctx, ext, hook, KindLifecycleHook, data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DispatchToolCall invokes a tool the extension declares in its manifest.
func (h *Host) DispatchToolCall(ctx context.Context, ext *Extension, toolName string, arguments json.RawMessage) (*ToolCallResponse, error) {
	if ext == nil {
		return nil, fmt.Errorf("extension is nil")
	}
	if !stringsContain(ext.Manifest.Tools, toolName) {
		return nil, fmt.Errorf("extension %q does not declare tool %q", ext.ID, toolName)
	}
	data := ToolCallData{Tool: ToolCallRequest{Name: toolName, Arguments: arguments}}
	var resp ToolCallResponse
	if err := h.roundTrip(ctx, ext, "tool-call", KindToolCall, data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DispatchCommandCall invokes a slash command the extension declares.
func (h *Host) DispatchCommandCall(ctx context.Context, ext *Extension, commandName string, args []string) (*CommandCallResponse, error) {
	if ext == nil {
		return nil, fmt.Errorf("extension is nil")
	}
	if !stringsContain(ext.Manifest.Commands, commandName) {
		return nil, fmt.Errorf("extension %q does not declare command %q", ext.ID, commandName)
	}
	data := CommandCallData{Command: CommandCallRequest{Name: commandName, Args: args}}
	var resp CommandCallResponse
	if err := h.roundTrip(ctx, ext, "command-call", KindCommandCall, data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func stringsContain(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// roundTrip spawns ext's entrypoint, writes one frame to stdin, and
// decodes one JSON response from stdout into out, all within the
// manifest's effective timeout.
func (h *Host) roundTrip(ctx context.Context, ext *Extension, hookName, kind string, data any, out any) error {
	argv, err := ext.argv()
	if err != nil {
		return err
	}

	timeout := ext.Manifest.EffectiveTimeout(DefaultTimeout)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if probeErr := probeEntrypoint(argv, ext.Dir); probeErr != nil {
		h.logger.Debug("extension entrypoint health probe failed, attempting dispatch anyway",
			"extension", ext.ID, "error", probeErr)
	}

	payloadData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode frame payload: %w", err)
	}
	frame := Frame{
		SchemaVersion: FrameSchemaVersion,
		Hook:          hookName,
		Payload: Payload{
			Kind:        kind,
			EmittedAtMS: time.Now().UnixMilli(),
			Data:        payloadData,
		},
	}
	frameBytes, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = ext.Dir
	cmd.Stdin = bytes.NewReader(frameBytes)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("extension %q hook %q timed out after %s", ext.ID, hookName, timeout)
		}
		return fmt.Errorf("extension %q hook %q exited with error: %w (stderr: %s)", ext.ID, hookName, err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil
	}
	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("extension %q hook %q returned invalid JSON: %w", ext.ID, hookName, err)
	}
	return nil
}
