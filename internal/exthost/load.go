package exthost

import (
	"fmt"
	"path/filepath"

	"github.com/loomrun/loom/pkg/pluginsdk"
)

// LoadExtension reads an extension's manifest file out of dir (its
// install directory) and returns the Extension the Host dispatches
// hook/tool/command frames to. It accepts both the current and legacy
// manifest filenames.
func LoadExtension(id, dir string) (*Extension, error) {
	path := filepath.Join(dir, pluginsdk.ManifestFilename)
	manifest, err := pluginsdk.DecodeManifestFile(path)
	if err != nil {
		legacyPath := filepath.Join(dir, pluginsdk.LegacyManifestFilename)
		manifest, err = pluginsdk.DecodeManifestFile(legacyPath)
		if err != nil {
			return nil, fmt.Errorf("load manifest for extension %q: %w", id, err)
		}
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest for extension %q: %w", id, err)
	}
	if manifest.Runtime != "" && manifest.Runtime != "process" {
		return nil, fmt.Errorf("extension %q declares unsupported runtime %q", id, manifest.Runtime)
	}
	return &Extension{ID: id, Manifest: manifest, Dir: dir}, nil
}
