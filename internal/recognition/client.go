package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/ivan4oto/race-photos/internal/config"
	"github.com/ivan4oto/race-photos/internal/models"
	"github.com/ivan4oto/race-photos/internal/observability"
)

// Client talks to the recognizer's REST API. Every call waits on a
// shared rate limiter first, since the provider throttles aggressively
// under bulk indexing load.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg config.RecognitionConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("recognition endpoint is not configured")
	}
	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse recognition endpoint: %w", err)
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
	}, nil
}

func (c *Client) DescribeCollection(ctx context.Context, collectionID string) error {
	var resp struct {
		CollectionID string `json:"collection_id"`
	}
	err := c.do(ctx, "describe_collection", http.MethodGet, "collections/"+url.PathEscape(collectionID), nil, &resp)
	if isNotFound(err) {
		return ErrCollectionNotFound
	}
	return err
}

func (c *Client) CreateCollection(ctx context.Context, collectionID string) error {
	body := map[string]string{"collection_id": collectionID}
	var resp struct {
		CollectionID string `json:"collection_id"`
	}
	return c.do(ctx, "create_collection", http.MethodPost, "collections", body, &resp)
}

func (c *Client) IndexFaces(ctx context.Context, collectionID string, image ImageRef, externalImageID string) ([]IndexedFace, error) {
	body := struct {
		Image           ImageRef `json:"image"`
		ExternalImageID string   `json:"external_image_id,omitempty"`
		QualityFilter   string   `json:"quality_filter"`
	}{Image: image, ExternalImageID: externalImageID, QualityFilter: "auto"}

	var resp struct {
		Faces []IndexedFace `json:"faces"`
	}
	endpoint := "collections/" + url.PathEscape(collectionID) + "/faces"
	if err := c.do(ctx, "index_faces", http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

func (c *Client) SearchByImage(ctx context.Context, collectionID string, image ImageRef, opts SearchOptions) ([]RawMatch, error) {
	body := struct {
		Image               ImageRef `json:"image"`
		MaxFaces            *int     `json:"max_faces,omitempty"`
		SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	}{Image: image, MaxFaces: opts.MaxFaces, SimilarityThreshold: opts.SimilarityThreshold}

	var resp struct {
		Matches []RawMatch `json:"matches"`
	}
	endpoint := "collections/" + url.PathEscape(collectionID) + "/search"
	if err := c.do(ctx, "search_by_image", http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

func (c *Client) DeleteFaces(ctx context.Context, collectionID string, faceIDs []string) error {
	if len(faceIDs) == 0 {
		return nil
	}
	body := map[string][]string{"face_ids": faceIDs}
	var resp struct {
		Deleted []string `json:"deleted"`
	}
	endpoint := "collections/" + url.PathEscape(collectionID) + "/faces/delete"
	return c.do(ctx, "delete_faces", http.MethodPost, endpoint, body, &resp)
}

func (c *Client) CompareFaces(ctx context.Context, source, target ImageRef, threshold float64) (float64, error) {
	body := struct {
		Source    ImageRef `json:"source"`
		Target    ImageRef `json:"target"`
		Threshold float64  `json:"threshold"`
	}{Source: source, Target: target, Threshold: threshold}

	var resp struct {
		Matches []struct {
			Similarity float64 `json:"similarity"`
		} `json:"matches"`
	}
	if err := c.do(ctx, "compare_faces", http.MethodPost, "compare", body, &resp); err != nil {
		return 0, err
	}

	var best float64
	for _, m := range resp.Matches {
		if m.Similarity > best {
			best = m.Similarity
		}
	}
	return best, nil
}

// statusError carries the HTTP status of a failed provider call.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider request failed with status %d: %s", e.status, e.body)
}

func (e *statusError) Unwrap() error {
	return models.ErrProvider
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, operation, method, endpoint string, requestBody, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	var bodyReader io.Reader
	if requestBody != nil {
		payload, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	u := c.baseURL.JoinPath(endpoint).String()
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.ProviderCalls.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("send request: %v: %w", err, models.ErrProvider)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.ProviderCalls.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.ProviderCalls.WithLabelValues(operation, "error").Inc()
		return &statusError{status: resp.StatusCode, body: string(data)}
	}
	observability.ProviderCalls.WithLabelValues(operation, "ok").Inc()

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
