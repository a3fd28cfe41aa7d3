package convo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrompts_EmptyPathUsesDefaults(t *testing.T) {
	got, err := LoadPrompts("")
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	def := DefaultPrompts()
	if got.Journal != def.Journal || got.Detail != def.Detail || got.Yaml != def.Yaml {
		t.Fatal("empty path must return defaults")
	}
}

func TestLoadPrompts_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "prompts:\n  journal: |\n    You are a terse journaling companion.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := LoadPrompts(path)
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	if !strings.Contains(got.Journal, "terse journaling companion") {
		t.Fatalf("journal prompt not overridden: %q", got.Journal)
	}
	if got.Detail != DefaultPrompts().Detail {
		t.Fatal("unset keys must keep their defaults")
	}
}

func TestLoadPrompts_MissingFile(t *testing.T) {
	if _, err := LoadPrompts("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultPrompts_NonEmpty(t *testing.T) {
	def := DefaultPrompts()
	for name, p := range map[string]string{"journal": def.Journal, "detail": def.Detail, "yaml": def.Yaml} {
		if strings.TrimSpace(p) == "" {
			t.Fatalf("default %s prompt is empty", name)
		}
	}
}
