package exthost

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	plugin "github.com/hashicorp/go-plugin"
)

// maxProbeTime caps how long the health probe may run regardless of the
// caller's context deadline, so a slow or hung entrypoint can never eat
// into the real frame-dispatch timeout budget.
const maxProbeTime = 500 * time.Millisecond

// handshakeConfig is never satisfied by a real extension entrypoint --
// extensions speak the one-shot stdin/stdout frame protocol, not
// go-plugin's RPC handshake. probeEntrypoint reuses go-plugin purely for
// its process supervision (spawn, wait for first output or exit,
// guaranteed Kill) to catch a missing binary, bad permissions, or an
// entrypoint that exits immediately, before the host commits a full
// dispatch timeout to it. A probe failure is never fatal: the caller
// logs it and proceeds with the real frame dispatch regardless.
var handshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "LOOM_EXTENSION",
	MagicCookieValue: "loom-extension-v1",
}

func probeEntrypoint(argv []string, dir string) error {
	if len(argv) == 0 {
		return fmt.Errorf("extension entrypoint is empty")
	}

	probeCtx, cancel := context.WithTimeout(context.Background(), maxProbeTime)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, argv[0], argv[1:]...)
	cmd.Dir = dir

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  handshakeConfig,
		Plugins:          map[string]plugin.Plugin{},
		Cmd:              cmd,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC, plugin.ProtocolGRPC},
		Logger:           hclog.NewNullLogger(),
		SkipHostEnv:      true,
		StartTimeout:     maxProbeTime,
	})
	defer client.Kill()

	if _, err := client.Client(); err != nil {
		return fmt.Errorf("entrypoint %v failed launch probe: %w", argv, err)
	}
	return nil
}
