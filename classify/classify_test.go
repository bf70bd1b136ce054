package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if !tables.IsUnsupportedAPI("save") {
		t.Errorf("save should be unsupported")
	}
	if tables.IsUnsupportedAPI("add") {
		t.Errorf("add should be traceable")
	}
	if !tables.IsUnsupportedTensorMethod("item") {
		t.Errorf("item should be unsupported")
	}
	if tables.IsUnsupportedTensorMethod("sum") {
		t.Errorf("sum should be traceable")
	}
}

func TestMagicMethodOrder(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	got := tables.MagicMethods("add")
	want := []MagicMethod{
		{Name: "__add__"},
		{Name: "__radd__", Reflected: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("add candidates (-want +got):\n%s", diff)
	}
	if got := tables.MagicMethods("no_such_builtin"); got != nil {
		t.Errorf("unknown builtin: got %v, want nil", got)
	}
}

func TestLoadOverlayAddsWithoutRemoving(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	overlay := `
unsupported_apis:
  - custom_io
unsupported_tensor_methods:
  - numpy
magic:
  - builtin: pow
    methods:
      - name: __pow__
      - name: __rpow__
        reflected: true
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}

	tables, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if err := tables.LoadOverlay(path); err != nil {
		t.Fatal(err)
	}

	if !tables.IsUnsupportedAPI("custom_io") {
		t.Errorf("overlay api not merged")
	}
	if !tables.IsUnsupportedAPI("save") {
		t.Errorf("default api lost after overlay")
	}
	if !tables.IsUnsupportedTensorMethod("numpy") {
		t.Errorf("overlay tensor method not merged")
	}
	want := []MagicMethod{{Name: "__pow__"}, {Name: "__rpow__", Reflected: true}}
	if diff := cmp.Diff(want, tables.MagicMethods("pow")); diff != "" {
		t.Errorf("pow candidates (-want +got):\n%s", diff)
	}
}

func TestLoadOverlayMissingFile(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if err := tables.LoadOverlay(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("missing overlay should error")
	}
}
