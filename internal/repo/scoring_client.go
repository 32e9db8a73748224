package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/miradorstack/mirador-forecast/internal/cache"
)

// ScoringClient calls a remote sales model over HTTP. It satisfies
// engine.Model; the remote model is expected to return log1p-scale values.
type ScoringClient struct {
	baseURL     string
	predictPath string
	columns     []string
	httpClient  *http.Client
	cache       cache.Provider
	cacheTTL    time.Duration
}

// NewScoringClient constructs a client for the scorer at baseURL. columns
// names the feature matrix columns sent with every request.
func NewScoringClient(baseURL, predictPath string, columns []string, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration) *ScoringClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &ScoringClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		predictPath: predictPath,
		columns:     append([]string(nil), columns...),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:    cacheProvider,
		cacheTTL: cacheTTL,
	}
}

type scoreRequest struct {
	Columns []string    `json:"columns"`
	Data    [][]float64 `json:"data"`
}

type scoreResponse struct {
	Predictions []float64 `json:"predictions"`
}

// Predict posts the matrix and returns one prediction per row. Identical
// matrices are served from the cache while the TTL holds.
func (c *ScoringClient) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	if c == nil {
		return nil, fmt.Errorf("scoring client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("scoring endpoint not configured")
	}

	rows, cols := X.Dims()
	if len(c.columns) != 0 && len(c.columns) != cols {
		return nil, fmt.Errorf("feature matrix has %d columns, client configured for %d", cols, len(c.columns))
	}
	payload := scoreRequest{Columns: c.columns, Data: make([][]float64, rows)}
	for i := range payload.Data {
		row := make([]float64, cols)
		mat.Row(row, i, X)
		payload.Data[i] = row
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	cacheKey := ""
	if c.cacheTTL > 0 {
		cacheKey = cacheScoreKey(body)
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			var cached []float64
			if err := json.Unmarshal(data, &cached); err == nil && len(cached) == rows {
				return cached, nil
			}
		}
	}

	var response scoreResponse
	if err := c.postJSON(ctx, c.resolvePath(c.predictPath), body, &response); err != nil {
		return nil, fmt.Errorf("scoring request failed: %w", err)
	}
	if len(response.Predictions) != rows {
		return nil, fmt.Errorf("scorer returned %d predictions for %d rows", len(response.Predictions), rows)
	}

	if cacheKey != "" {
		if data, err := json.Marshal(response.Predictions); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, c.cacheTTL)
		}
	}
	return response.Predictions, nil
}

func cacheScoreKey(body []byte) string {
	sum := sha256.Sum256(body)
	return "forecast:score:" + hex.EncodeToString(sum[:])
}

func (c *ScoringClient) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *ScoringClient) postJSON(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scorer returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
