package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/models"
)

type fakePresigner struct {
	putKeys []string
}

func (f *fakePresigner) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	f.putKeys = append(f.putKeys, key)
	return "https://put.example/" + key, nil
}

func (f *fakePresigner) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://get.example/" + key, nil
}

func newUploadURLService(p Presigner) *UploadURLService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUploadURLService(p, config.PresignConfig{}, logger)
}

func TestCreatePutURLs(t *testing.T) {
	presigner := &fakePresigner{}
	svc := newUploadURLService(presigner)

	entries, err := svc.CreatePutURLs(context.Background(), "berlin-2025", "ana", []string{"one.jpg", "two.jpg"}, "")
	if err != nil {
		t.Fatalf("CreatePutURLs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Name != "one.jpg" {
		t.Errorf("name = %q", entries[0].Name)
	}
	wantKey := "in/berlin-2025/ana/raw/one.jpg"
	if presigner.putKeys[0] != wantKey {
		t.Errorf("key = %q, want %q", presigner.putKeys[0], wantKey)
	}
	if !strings.HasSuffix(entries[0].URL, wantKey) {
		t.Errorf("url = %q", entries[0].URL)
	}
}

func TestCreatePutURLsWithFolder(t *testing.T) {
	presigner := &fakePresigner{}
	svc := newUploadURLService(presigner)

	_, err := svc.CreatePutURLs(context.Background(), "berlin-2025", "ana", []string{"a.jpg"}, "/day-1//finish/")
	if err != nil {
		t.Fatalf("CreatePutURLs: %v", err)
	}
	want := "in/berlin-2025/ana/raw/day-1/finish/a.jpg"
	if presigner.putKeys[0] != want {
		t.Errorf("key = %q, want %q", presigner.putKeys[0], want)
	}
}

func TestCreatePutURLsSanitizesSlugsAndNames(t *testing.T) {
	presigner := &fakePresigner{}
	svc := newUploadURLService(presigner)

	_, err := svc.CreatePutURLs(context.Background(), "берлин 2025", "ana", []string{"../../etc/passwd"}, "")
	if err != nil {
		t.Fatalf("CreatePutURLs: %v", err)
	}
	key := presigner.putKeys[0]
	if strings.Contains(key, "..") {
		t.Errorf("key %q carries traversal sequence", key)
	}
	if !strings.HasSuffix(key, "/passwd") {
		t.Errorf("key = %q, want path-stripped filename", key)
	}
}

func TestCreatePutURLsValidation(t *testing.T) {
	svc := newUploadURLService(&fakePresigner{})
	ctx := context.Background()

	tests := []struct {
		name             string
		eventSlug        string
		photographerSlug string
		names            []string
	}{
		{"blank event slug", "", "ana", []string{"a.jpg"}},
		{"blank photographer slug", "berlin", "", []string{"a.jpg"}},
		{"empty names", "berlin", "ana", nil},
		{"too many names", "berlin", "ana", make([]string, maxUploadURLBatch+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePutURLs(ctx, tt.eventSlug, tt.photographerSlug, tt.names, "")
			if !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateGetURL(t *testing.T) {
	svc := newUploadURLService(&fakePresigner{})

	url, err := svc.CreateGetURL(context.Background(), "in/berlin/ana/raw/a.jpg")
	if err != nil {
		t.Fatalf("CreateGetURL: %v", err)
	}
	if url != "https://get.example/in/berlin/ana/raw/a.jpg" {
		t.Errorf("url = %q", url)
	}

	url, err = svc.CreateGetURL(context.Background(), "")
	if err != nil || url != "" {
		t.Errorf("blank key = (%q, %v), want empty and nil", url, err)
	}
}
