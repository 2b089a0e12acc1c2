package testsupport

import (
	"testing"

	"hopper/internal/catalog"
	"hopper/internal/config"
	"hopper/internal/logging"
)

// MustOpenCatalog opens the catalog at cfg.CatalogPath and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg.CatalogPath(), logging.NewNop())
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
