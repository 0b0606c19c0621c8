package niches

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	n, ok := c.Lookup("medspas")
	if !ok {
		t.Fatal("expected medspas in embedded catalog")
	}
	if n.Label != "Medical Spas" || len(n.CommonServices) == 0 {
		t.Errorf("unexpected entry %+v", n)
	}
	if _, ok := c.Public()[DefaultKey]; ok {
		t.Error("default entry must not be public")
	}
	for _, k := range c.Keys() {
		if k == DefaultKey {
			t.Error("default key must not be listed")
		}
	}
}

func TestLookupFallsBack(t *testing.T) {
	c := Default()
	n, ok := c.Lookup("Pet Groomers")
	if ok {
		t.Error("expected unknown niche")
	}
	if n.Label != "Pet Groomers" {
		t.Errorf("expected label from key, got %q", n.Label)
	}
	if n.CommonServices == nil {
		t.Error("expected non-nil services")
	}
}

func TestSearchTerm(t *testing.T) {
	c := Default()
	if got := c.SearchTerm("dental"); got != "dentist" {
		t.Errorf("expected dentist, got %q", got)
	}
	if got := c.SearchTerm(" tattoo parlors "); got != "tattoo parlors" {
		t.Errorf("expected verbatim term, got %q", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "niches.yaml")
	os.WriteFile(path, []byte(`
Bakeries:
  common_services: [Cakes, Bread]
default:
  label: Other
`), 0o644)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := c.Lookup("bakeries")
	if !ok {
		t.Fatal("expected keys to be case-insensitive")
	}
	if n.Label != "bakeries" || len(n.CommonServices) != 2 {
		t.Errorf("unexpected entry %+v", n)
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != "bakeries" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error")
	}
}
