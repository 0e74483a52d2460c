package assetdb

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	if !o.MergeSkins || !o.ElideDummyTracks || !o.KeepCustomProperties {
		t.Errorf("default flags = %v %v %v, want all set",
			o.MergeSkins, o.ElideDummyTracks, o.KeepCustomProperties)
	}
	if o.RawPropertiesOnly {
		t.Error("raw-only mode must default off")
	}
	if o.DefaultTicksPerSecond != 25 {
		t.Errorf("default tick rate = %g, want 25", o.DefaultTicksPerSecond)
	}
	if o.MaxCustomAttrBytes != 512 {
		t.Errorf("attribute budget = %d, want 512", o.MaxCustomAttrBytes)
	}
}

func TestOptionsRoundTrip(t *testing.T) {
	o := DefaultOptions()
	o.MergeSkins = false
	o.DefaultTicksPerSecond = 30
	o.MaxCustomAttrBytes = 64

	path := filepath.Join(t.TempDir(), "options.yml")
	if err := o.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.MergeSkins || got.DefaultTicksPerSecond != 30 || got.MaxCustomAttrBytes != 64 {
		t.Errorf("round trip lost values: %+v", got)
	}
	if !got.ElideDummyTracks || !got.KeepCustomProperties {
		t.Errorf("untouched flags changed: %+v", got)
	}
}

func TestLoadOptionsPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yml")
	if err := os.WriteFile(path, []byte("merge_skins: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.MergeSkins {
		t.Error("merge_skins not applied")
	}
	// absent keys keep their defaults
	if got.DefaultTicksPerSecond != 25 || got.MaxCustomAttrBytes != 512 {
		t.Errorf("defaults lost: %+v", got)
	}
}

func TestLoadOptionsMissingFile(t *testing.T) {
	got, err := LoadOptions(filepath.Join(t.TempDir(), "absent.yml"))
	if err == nil {
		t.Fatal("missing file must report an error")
	}
	// the caller still receives a usable policy
	if got.DefaultTicksPerSecond != 25 {
		t.Errorf("fallback options = %+v, want defaults", got)
	}
}

func TestNormalizedFillsZeroValues(t *testing.T) {
	var o Options
	n := o.normalized()
	if n.DefaultTicksPerSecond != 25 || n.MaxCustomAttrBytes != 512 {
		t.Errorf("normalized = %g tps, %d bytes", n.DefaultTicksPerSecond, n.MaxCustomAttrBytes)
	}
	if n.Loader == nil {
		t.Error("normalized loader still nil")
	}
	if _, ok := n.Loader.(FileLoader); !ok {
		t.Errorf("loader = %T, want FileLoader", n.Loader)
	}
}
