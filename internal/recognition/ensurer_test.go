package recognition

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeProvider struct {
	mu            sync.Mutex
	existing      map[string]bool
	describeCalls int
	createCalls   int
	describeErr   error
	createErr     error
}

func newFakeProvider(existing ...string) *fakeProvider {
	m := make(map[string]bool)
	for _, id := range existing {
		m[id] = true
	}
	return &fakeProvider{existing: m}
}

func (f *fakeProvider) DescribeCollection(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeCalls++
	if f.describeErr != nil {
		return f.describeErr
	}
	if !f.existing[id] {
		return ErrCollectionNotFound
	}
	return nil
}

func (f *fakeProvider) CreateCollection(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.existing[id] = true
	return nil
}

func (f *fakeProvider) IndexFaces(context.Context, string, ImageRef, string) ([]IndexedFace, error) {
	return nil, nil
}

func (f *fakeProvider) SearchByImage(context.Context, string, ImageRef, SearchOptions) ([]RawMatch, error) {
	return nil, nil
}

func (f *fakeProvider) DeleteFaces(context.Context, string, []string) error { return nil }

func (f *fakeProvider) CompareFaces(context.Context, ImageRef, ImageRef, float64) (float64, error) {
	return 0, nil
}

func TestEnsureCollection_CreatesWhenAbsent(t *testing.T) {
	provider := newFakeProvider()
	ensurer := NewCollectionEnsurer(provider)

	if err := ensurer.EnsureCollection(context.Background(), "event-faces-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.createCalls != 1 {
		t.Errorf("expected 1 create call, got %d", provider.createCalls)
	}
}

func TestEnsureCollection_NoopWhenPresent(t *testing.T) {
	provider := newFakeProvider("event-faces-1")
	ensurer := NewCollectionEnsurer(provider)

	if err := ensurer.EnsureCollection(context.Background(), "event-faces-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.createCalls != 0 {
		t.Errorf("expected no create calls, got %d", provider.createCalls)
	}
}

func TestEnsureCollection_MemoizesAfterFirstCall(t *testing.T) {
	provider := newFakeProvider()
	ensurer := NewCollectionEnsurer(provider)

	for i := 0; i < 3; i++ {
		if err := ensurer.EnsureCollection(context.Background(), "event-faces-1"); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}
	if provider.describeCalls != 1 {
		t.Errorf("expected 1 describe call, got %d", provider.describeCalls)
	}
	if provider.createCalls != 1 {
		t.Errorf("expected 1 create call, got %d", provider.createCalls)
	}
}

func TestEnsureCollection_ConcurrentSameID(t *testing.T) {
	provider := newFakeProvider()
	ensurer := NewCollectionEnsurer(provider)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ensurer.EnsureCollection(context.Background(), "event-faces-1")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: unexpected error: %v", i, err)
		}
	}
	if provider.createCalls != 1 {
		t.Errorf("expected exactly 1 create call under contention, got %d", provider.createCalls)
	}
}

func TestEnsureCollection_ConcurrentDistinctIDs(t *testing.T) {
	provider := newFakeProvider()
	ensurer := NewCollectionEnsurer(provider)

	ids := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := ensurer.EnsureCollection(context.Background(), id); err != nil {
				t.Errorf("ensure %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if provider.createCalls != len(ids) {
		t.Errorf("expected %d create calls, got %d", len(ids), provider.createCalls)
	}
}

func TestEnsureCollection_ProviderErrorPropagates(t *testing.T) {
	provider := newFakeProvider()
	provider.describeErr = errors.New("throttled")
	ensurer := NewCollectionEnsurer(provider)

	err := ensurer.EnsureCollection(context.Background(), "event-faces-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if provider.createCalls != 0 {
		t.Errorf("expected no create attempt on describe failure, got %d", provider.createCalls)
	}

	// The failure must not poison the cache: a later call retries.
	provider.describeErr = nil
	if err := ensurer.EnsureCollection(context.Background(), "event-faces-1"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestEnsureCollection_BlankID(t *testing.T) {
	ensurer := NewCollectionEnsurer(newFakeProvider())
	if err := ensurer.EnsureCollection(context.Background(), ""); err == nil {
		t.Fatal("expected error for blank collection id")
	}
}
