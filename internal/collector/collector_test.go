package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-ids/internal/utils"
)

func TestSimulatedRanges(t *testing.T) {
	sim := NewSimulated(42)
	for i := 0; i < 200; i++ {
		snap, err := sim.Collect(context.Background())
		require.NoError(t, err)
		require.Len(t, snap.Logs, 2)

		for _, ev := range snap.Logs {
			switch ev.Event {
			case EventLoginFail:
				assert.True(t, ev.Count >= 0 && ev.Count <= 5, "login_fail=%d", ev.Count)
			case EventHTTPError:
				assert.True(t, ev.Count >= 0 && ev.Count <= 3, "http_error=%d", ev.Count)
			default:
				t.Fatalf("unexpected event %q", ev.Event)
			}
		}
		assert.True(t, snap.Metrics[MetricCPU] >= 0 && snap.Metrics[MetricCPU] < 100)
		assert.True(t, snap.Metrics[MetricMemory] >= 0 && snap.Metrics[MetricMemory] < 100)
		conn := snap.Metrics[MetricNetworkConn]
		assert.True(t, conn >= 50 && conn <= 200, "network_conn=%v", conn)
		assert.Equal(t, conn, float64(int(conn)))
	}
}

func TestSimulatedIsReproducibleForSeed(t *testing.T) {
	a, b := NewSimulated(7), NewSimulated(7)
	for i := 0; i < 10; i++ {
		sa, err := a.Collect(context.Background())
		require.NoError(t, err)
		sb, err := b.Collect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, sa.Logs, sb.Logs)
		assert.Equal(t, sa.Metrics, sb.Metrics)
	}
}

func TestSimulatedHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulated(1).Collect(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHTTPAgentCollect(t *testing.T) {
	agent := NewHTTPAgent("https://agent.local/base/", "/v1/snapshot", "node-a", time.Second)
	agent.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", req.Method)
		}
		if req.URL.Path != "/base/v1/snapshot" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["node"] != "node-a" {
			t.Fatalf("unexpected node: %v", payload["node"])
		}
		body := `{"logs":[{"event":"login_fail","count":4}],"metrics":{"cpu":91.5,"memory":40}}`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte(body))),
			Header:     make(http.Header),
		}, nil
	}))

	snap, err := agent.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []LogEvent{{Event: "login_fail", Count: 4}}, snap.Logs)
	assert.Equal(t, 91.5, snap.Metrics["cpu"])
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestHTTPAgentErrors(t *testing.T) {
	agent := NewHTTPAgent("", "/v1/snapshot", "", time.Second)
	_, err := agent.Collect(context.Background())
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, utils.OpCollectHTTP, appErr.Op)

	agent = NewHTTPAgent("https://agent.local", "/v1/snapshot", "", time.Second)
	agent.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Status:     "502 Bad Gateway",
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     make(http.Header),
		}, nil
	}))
	_, err = agent.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	agent.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte(`{}`))),
			Header:     make(http.Header),
		}, nil
	}))
	_, err = agent.Collect(context.Background())
	require.ErrorIs(t, err, ErrNoSnapshot)
	assert.ErrorIs(t, err, &utils.AppError{Op: utils.OpCollectHTTP, Msg: "agent returned an empty snapshot"})
	assert.NotErrorIs(t, err, &utils.AppError{Op: utils.OpCollectRedis})
}

func TestNewRedisQueueRequiresKey(t *testing.T) {
	_, err := NewRedisQueue(RedisConfig{})
	require.Error(t, err)
}

func TestRedisQueueUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	q := newRedisQueue(client, "ids:snapshots", 100*time.Millisecond)
	defer q.Close()

	_, err := q.Collect(context.Background())
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "pop snapshot", appErr.Msg)
}
