package extensions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/loomrun/loom/internal/config"
	"github.com/loomrun/loom/pkg/pluginsdk"
)

func writeManifest(t *testing.T, dir string, m pluginsdk.Manifest) {
	t.Helper()
	path := filepath.Join(dir, pluginsdk.ManifestFilename)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("encode manifest: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestLoadDispatchable_SkipsDisabledAndMissing(t *testing.T) {
	goodDir := t.TempDir()
	writeManifest(t, goodDir, pluginsdk.Manifest{
		ID:           "good",
		ConfigSchema: []byte(`{"type":"object"}`),
		Runtime:      "process",
		Entrypoint:   []string{"run.sh"},
		Tools:        []string{"search"},
	})

	missingDir := t.TempDir()

	cfg := &config.Config{}
	cfg.Plugins.Entries = map[string]config.PluginEntryConfig{
		"good":     {Enabled: true, Path: goodDir},
		"disabled": {Enabled: false, Path: goodDir},
		"broken":   {Enabled: true, Path: missingDir},
		"nopath":   {Enabled: true, Path: ""},
	}

	extensions, loadErrors := LoadDispatchable(cfg)
	if len(extensions) != 1 || extensions[0].ID != "good" {
		t.Fatalf("expected only 'good' extension loaded, got %+v", extensions)
	}
	if _, ok := loadErrors["broken"]; !ok {
		t.Fatal("expected load error for 'broken'")
	}
	if _, ok := loadErrors["nopath"]; !ok {
		t.Fatal("expected load error for 'nopath'")
	}
	if _, ok := loadErrors["disabled"]; ok {
		t.Fatal("disabled entries should not be attempted")
	}
}

func TestLoadDispatchable_NilConfig(t *testing.T) {
	extensions, loadErrors := LoadDispatchable(nil)
	if extensions != nil || len(loadErrors) != 0 {
		t.Fatalf("expected empty result for nil config, got %+v %+v", extensions, loadErrors)
	}
}
