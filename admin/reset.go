package admin

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fabfab/docqa/archive"
	"github.com/fabfab/docqa/docstore"
	"github.com/fabfab/docqa/knowledge"
	"github.com/fabfab/docqa/logging"
)

// Resetter empties the shared vector store along with the catalog and
// archive that describe it.
type Resetter struct {
	store   docstore.Store
	catalog knowledge.Catalog
	archive archive.Store
	logger  *zap.Logger
}

func NewResetter(store docstore.Store, catalog knowledge.Catalog, files archive.Store, logger *zap.Logger) *Resetter {
	return &Resetter{store: store, catalog: catalog, archive: files, logger: logging.OrNop(logger)}
}

// Reset deletes every vector of every document. If the vector store fails
// nothing else is touched.
func (r *Resetter) Reset(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("document store is not configured")
	}
	if err := r.store.DeleteAll(ctx); err != nil {
		r.logger.Error("failed to delete all vectors", zap.Error(err))
		return fmt.Errorf("delete all vectors: %w", err)
	}

	var errs []error
	if r.catalog != nil {
		if err := r.catalog.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear catalog: %w", err))
		}
	}
	if r.archive != nil {
		if err := r.archive.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear archive: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		r.logger.Error("vectors deleted but cleanup failed", zap.Error(err))
		return err
	}

	r.logger.Info("all vectors have been deleted")
	return nil
}
