// Package audit holds administrative views over the photo catalog and
// the object store: prefix-level object counts, indexing progress
// summaries and prefix-scoped cleanup.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivan4oto/race-photos/internal/models"
)

// prefixCountWorkers bounds the accumulation fan-out per count call.
const prefixCountWorkers = 4

// KeyStreamer streams an event's object keys without loading the whole
// catalog into memory.
type KeyStreamer interface {
	EventExists(ctx context.Context, id uuid.UUID) (bool, error)
	StreamObjectKeys(ctx context.Context, eventID uuid.UUID, fn func(key string) error) error
}

type PrefixCounter struct {
	keys   KeyStreamer
	logger *slog.Logger
}

func NewPrefixCounter(keys KeyStreamer, logger *slog.Logger) *PrefixCounter {
	return &PrefixCounter{keys: keys, logger: logger}
}

// CountObjectPrefixes counts, for every directory-like prefix, how many
// of the event's object keys live under it. A key with N path segments
// contributes to its N-1 ancestor prefixes, each ending in "/". Keys
// without a directory component contribute nothing.
func (p *PrefixCounter) CountObjectPrefixes(ctx context.Context, eventID uuid.UUID) (map[string]int64, error) {
	exists, err := p.keys.EventExists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("check event %s: %w", eventID, err)
	}
	if !exists {
		return nil, fmt.Errorf("event %s: %w", eventID, models.ErrEventNotFound)
	}

	start := time.Now()
	counters := make(map[string]int64)
	var mu sync.Mutex
	keys := make(chan string, prefixCountWorkers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < prefixCountWorkers; i++ {
		g.Go(func() error {
			for key := range keys {
				mu.Lock()
				accumulatePrefixes(strings.TrimSpace(key), counters)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(keys)
		return p.keys.StreamObjectKeys(gctx, eventID, func(key string) error {
			select {
			case keys <- key:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stream object keys for event %s: %w", eventID, err)
	}

	p.logger.Debug("counted object prefixes",
		"event_id", eventID,
		"prefixes", len(counters),
		"duration", time.Since(start))
	return counters, nil
}

func accumulatePrefixes(objectKey string, counters map[string]int64) {
	if objectKey == "" {
		return
	}
	var segments []string
	for _, raw := range strings.Split(objectKey, "/") {
		if s := strings.TrimSpace(raw); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) <= 1 {
		return
	}
	var prefix strings.Builder
	for i := 0; i < len(segments)-1; i++ {
		prefix.WriteString(segments[i])
		prefix.WriteByte('/')
		counters[prefix.String()]++
	}
}
