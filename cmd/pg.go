package cmd

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/choiway/photomerge/catalog"
	"github.com/choiway/photomerge/config"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openCatalog opens the local catalog and, when a Postgres URL is
// configured, mirrors records there as well.
func openCatalog(ctx context.Context, cfg *config.Config, log *zap.Logger) (*catalog.Store, catalog.Recorder, io.Closer, error) {
	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.Catalog.PostgresURL == "" {
		return store, store, store, nil
	}

	mirror, err := catalog.ConnectPg(ctx, cfg.Catalog.PostgresURL)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	log.Info("mirroring catalog to postgres")

	closer := closerFunc(func() error {
		mirror.Close()
		return store.Close()
	})

	return store, catalog.Tee(store, mirror), closer, nil
}
