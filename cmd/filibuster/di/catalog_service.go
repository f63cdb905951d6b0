package di

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/samber/do/v2"

	"github.com/filibuster-io/filibuster-go/internal/catalog"
)

// CatalogService wraps the fault catalog with optional hot-reload. Get reads
// through an atomic.Pointer so a reload never blocks or races a concurrent
// Get. The orchestrator calls Get once, at construction, and keeps that
// catalog, so a reload does not reach an orchestrator already built.
type CatalogService struct {
	catalog atomic.Pointer[catalog.Catalog]
	watcher *catalog.Watcher
}

// Get returns the current catalog.
func (s *CatalogService) Get() *catalog.Catalog {
	return s.catalog.Load()
}

// StartWatching begins watching the catalog file for changes, if hot-reload
// is enabled and a watcher was created. Call once, after container wiring.
func (s *CatalogService) StartWatching(ctx context.Context) {
	if s.watcher == nil {
		return
	}
	go func() {
		_ = s.watcher.Watch(ctx)
	}()
}

// Shutdown implements do.Shutdowner.
func (s *CatalogService) Shutdown() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// NewCatalog loads the fault catalog named by CatalogConfig.Path and, if
// HotReload is set, creates a watcher that swaps the atomic pointer on
// every clean reload.
func NewCatalog(i do.Injector) (*CatalogService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	cc := cfgSvc.Config.Catalog

	cat, err := catalog.Load(cc.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog from %s: %w", cc.Path, err)
	}

	svc := &CatalogService{}
	svc.catalog.Store(cat)

	if !cc.HotReload {
		return svc, nil
	}

	watcher, err := catalog.NewWatcher(cc.Path)
	if err != nil {
		// Hot-reload is a convenience, not a requirement; the catalog
		// already loaded fine above.
		return svc, nil
	}
	watcher.OnReload(func(newCat *catalog.Catalog) error {
		svc.catalog.Store(newCat)
		return nil
	})
	svc.watcher = watcher

	return svc, nil
}
