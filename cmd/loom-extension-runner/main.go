// Command loom-extension-runner is a reference extension entrypoint: it
// speaks the Tool Host's one-shot stdin/stdout JSON frame protocol
// (§4.5) so extension authors have a working example to copy instead of
// reverse-engineering the wire format from the host side. Real
// extensions are free to implement the same contract in any language.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

func main() {
	logger := newStderrLogger()

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		writeError(fmt.Errorf("read frame: %w", err))
	}

	var frame frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		writeError(fmt.Errorf("decode frame: %w", err))
	}
	if frame.SchemaVersion != 1 {
		writeError(fmt.Errorf("unsupported schema_version %d", frame.SchemaVersion))
	}

	logger.Debug("dispatching frame", "hook", frame.Hook, "kind", frame.Payload.Kind)

	switch frame.Payload.Kind {
	case "tool-call":
		handleToolCall(frame)
	case "command-call":
		handleCommandCall(frame)
	case "lifecycle-hook":
		writeJSON(map[string]any{})
	default:
		writeError(fmt.Errorf("unknown payload kind %q", frame.Payload.Kind))
	}
}

// frame mirrors internal/exthost.Frame. It is redeclared rather than
// imported so this binary can be built and shipped independently of the
// loom module, matching how a third-party extension would depend only
// on the wire contract, not on loom's internal packages.
type frame struct {
	SchemaVersion int     `json:"schema_version"`
	Hook          string  `json:"hook"`
	Payload       payload `json:"payload"`
}

type payload struct {
	Kind        string          `json:"kind"`
	EmittedAtMS int64           `json:"emitted_at_ms"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type toolCallData struct {
	Tool struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"tool"`
}

type commandCallData struct {
	Command struct {
		Name string   `json:"name"`
		Args []string `json:"args"`
	} `json:"command"`
}

// exampleTools is the reference extension's tool set: "ping" and
// "echo", enough to exercise the host's dispatch path end to end.
var exampleTools = map[string]func(json.RawMessage) (string, bool){
	"ping": func(json.RawMessage) (string, bool) {
		return "pong", false
	},
	"echo": func(args json.RawMessage) (string, bool) {
		var input struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(args, &input); err != nil {
			return fmt.Sprintf("invalid arguments: %v", err), true
		}
		return input.Text, false
	},
}

func handleToolCall(f frame) {
	var data toolCallData
	if err := json.Unmarshal(f.Payload.Data, &data); err != nil {
		writeError(fmt.Errorf("decode tool-call data: %w", err))
		return
	}
	handler, ok := exampleTools[data.Tool.Name]
	if !ok {
		writeError(fmt.Errorf("tool %q not registered", data.Tool.Name))
		return
	}
	content, isError := handler(data.Tool.Arguments)
	writeJSON(map[string]any{"content": content, "is_error": isError})
}

var exampleCommands = map[string]func([]string) (string, string){
	"extension.status": func(args []string) (string, string) {
		return "ok", "none"
	},
}

func handleCommandCall(f frame) {
	var data commandCallData
	if err := json.Unmarshal(f.Payload.Data, &data); err != nil {
		writeError(fmt.Errorf("decode command-call data: %w", err))
		return
	}
	handler, ok := exampleCommands[data.Command.Name]
	if !ok {
		writeError(fmt.Errorf("command %q not registered", data.Command.Name))
		return
	}
	output, action := handler(data.Command.Args)
	writeJSON(map[string]any{"output": output, "action": action})
}

func newStderrLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func writeJSON(payload any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func writeError(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
