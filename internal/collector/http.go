package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/miradorstack/mirador-ids/internal/utils"
)

// HTTPAgent pulls snapshots from a node agent over HTTP.
type HTTPAgent struct {
	baseURL      string
	snapshotPath string
	node         string
	httpClient   *http.Client
	now          func() time.Time
}

// NewHTTPAgent constructs a collector targeting baseURL + snapshotPath.
func NewHTTPAgent(baseURL, snapshotPath, node string, timeout time.Duration) *HTTPAgent {
	return &HTTPAgent{
		baseURL:      strings.TrimRight(baseURL, "/"),
		snapshotPath: snapshotPath,
		node:         node,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// Collect requests one snapshot from the agent.
func (c *HTTPAgent) Collect(ctx context.Context) (Snapshot, error) {
	if c.baseURL == "" {
		return Snapshot{}, utils.NewAppError(utils.OpCollectHTTP, "agent base URL not configured", nil)
	}

	payload := map[string]any{
		"node": c.node,
		"at":   c.now().UTC().Format(time.RFC3339),
	}

	var response struct {
		Logs    []LogEvent         `json:"logs"`
		Metrics map[string]float64 `json:"metrics"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.snapshotPath), payload, &response); err != nil {
		return Snapshot{}, utils.NewAppError(utils.OpCollectHTTP, "agent snapshot request failed", err)
	}
	if len(response.Logs) == 0 && len(response.Metrics) == 0 {
		return Snapshot{}, utils.NewAppError(utils.OpCollectHTTP, "agent returned an empty snapshot", ErrNoSnapshot)
	}

	return Snapshot{
		Logs:        response.Logs,
		Metrics:     response.Metrics,
		CollectedAt: c.now(),
	}, nil
}

// Close releases idle connections.
func (c *HTTPAgent) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPAgent) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *HTTPAgent) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
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
		return fmt.Errorf("agent returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
