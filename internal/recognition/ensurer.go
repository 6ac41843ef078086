package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// CollectionEnsurer makes sure a recognition collection exists before
// faces are indexed into it. Confirmed ids are memoized for the life of
// the process; the check-then-create sequence is serialized per id so
// concurrent first uses of the same collection cannot race, while
// different collections proceed fully in parallel.
type CollectionEnsurer struct {
	provider Provider

	mu       sync.Mutex
	ensured  map[string]bool
	inFlight map[string]*sync.Mutex
}

func NewCollectionEnsurer(provider Provider) *CollectionEnsurer {
	return &CollectionEnsurer{
		provider: provider,
		ensured:  make(map[string]bool),
		inFlight: make(map[string]*sync.Mutex),
	}
}

// EnsureCollection checks the provider for the collection and creates
// it when absent. Idempotent; provider errors other than not-found
// propagate to the caller.
func (e *CollectionEnsurer) EnsureCollection(ctx context.Context, collectionID string) error {
	if collectionID == "" {
		return fmt.Errorf("collection id must not be blank")
	}

	e.mu.Lock()
	if e.ensured[collectionID] {
		e.mu.Unlock()
		return nil
	}
	lock, ok := e.inFlight[collectionID]
	if !ok {
		lock = &sync.Mutex{}
		e.inFlight[collectionID] = lock
	}
	e.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	// A concurrent caller may have finished while we waited.
	e.mu.Lock()
	done := e.ensured[collectionID]
	e.mu.Unlock()
	if done {
		return nil
	}

	err := e.provider.DescribeCollection(ctx, collectionID)
	switch {
	case err == nil:
		slog.Debug("collection already exists", "collection", collectionID)
	case errors.Is(err, ErrCollectionNotFound):
		slog.Info("collection not found, creating it", "collection", collectionID)
		if err := e.provider.CreateCollection(ctx, collectionID); err != nil {
			return fmt.Errorf("create collection %s: %w", collectionID, err)
		}
	default:
		return fmt.Errorf("describe collection %s: %w", collectionID, err)
	}

	e.mu.Lock()
	e.ensured[collectionID] = true
	delete(e.inFlight, collectionID)
	e.mu.Unlock()
	return nil
}
