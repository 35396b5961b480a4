package service

import (
	"context"
	"fmt"

	"ddbstream/domain/changelog"
)

// Enricher turns a raw change record into a broadcast event carrying the
// item's current stored state. The record's images are never used: the
// store is queried every time, so two records for the same key may both
// carry the newest value.
type Enricher struct {
	store   changelog.ItemStore
	keyAttr string
}

func NewEnricher(store changelog.ItemStore, keyAttr string) *Enricher {
	return &Enricher{store: store, keyAttr: keyAttr}
}

// Enrich parses rec, resolves the item and serializes it. Errors are
// tagged with their changelog.ErrorKind.
func (e *Enricher) Enrich(ctx context.Context, rec changelog.Record) (changelog.Event, error) {
	key, err := changelog.ParseKey(rec.Data, e.keyAttr)
	if err != nil {
		return changelog.Event{}, fmt.Errorf("record %s: %w", rec.Sequence, err)
	}

	item, err := e.store.GetItem(ctx, key)
	if err != nil {
		return changelog.Event{}, fmt.Errorf("record %s key %q: %w", rec.Sequence, key, err)
	}

	return changelog.Broadcast(item)
}
