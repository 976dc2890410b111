package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type logEvent struct {
	Event string `json:"event"`
	Count int    `json:"count"`
}

type snapshotRequest struct {
	Node string `json:"node"`
	At   string `json:"at"`
}

type snapshotResponse struct {
	Logs    []logEvent         `json:"logs"`
	Metrics map[string]float64 `json:"metrics"`
}

// agent hands out synthetic windows; every spikeEvery-th window looks like an intrusion.
type agent struct {
	mu         sync.Mutex
	rng        *rand.Rand
	served     int
	spikeEvery int
	logger     *log.Logger
}

func (a *agent) next() snapshotResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.served++

	if a.spikeEvery > 0 && a.served%a.spikeEvery == 0 {
		return snapshotResponse{
			Logs: []logEvent{
				{Event: "login_fail", Count: 40 + a.rng.Intn(20)},
				{Event: "http_error", Count: 25 + a.rng.Intn(10)},
			},
			Metrics: map[string]float64{
				"cpu":          95 + a.rng.Float64()*5,
				"memory":       90 + a.rng.Float64()*10,
				"network_conn": float64(900 + a.rng.Intn(300)),
			},
		}
	}

	return snapshotResponse{
		Logs: []logEvent{
			{Event: "login_fail", Count: a.rng.Intn(6)},
			{Event: "http_error", Count: a.rng.Intn(4)},
		},
		Metrics: map[string]float64{
			"cpu":          a.rng.Float64() * 100,
			"memory":       a.rng.Float64() * 100,
			"network_conn": float64(50 + a.rng.Intn(151)),
		},
	}
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	spikeEvery := flag.Int("spike-every", 25, "emit an intrusion-like window every N requests (0 disables)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	a := &agent{
		rng:        rand.New(rand.NewSource(*seed)),
		spikeEvery: *spikeEvery,
		logger:     log.New(log.Writer(), "agent-mock ", log.LstdFlags|log.Lmicroseconds),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/v1/ids/snapshot", a.snapshot)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           a.logged(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.logger.Printf("listening on %s (spike every %d requests)", *addr, *spikeEvery)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.logger.Fatalf("server error: %v", err)
	}
}

func (a *agent) snapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	resp := a.next()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		a.logger.Printf("encode snapshot for node %q: %v", req.Node, err)
	}
}

// logged prints one line per request.
func (a *agent) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Printf("%s %s from %s -> %d in %s", r.Method, r.URL.Path, r.RemoteAddr, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
