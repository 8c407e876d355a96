// Command gosession-loadtest measures authenticated request throughput across many
// sessions sharing one Redis, then expires every access token at once and checks that
// no session refreshes more than once.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/internal/fakebackend"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 200, "number of logged-in sessions")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "requests per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gsload", "redis key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	backend := fakebackend.New()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	fmt.Printf("logging in %d sessions...\n", *sessions)
	startLogin := time.Now()
	pool, err := loginAll(ctx, srv.URL, client, backend, *prefix, *sessions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, o := range pool {
			_ = o.Close()
		}
	}()
	fmt.Printf("logged in in %s\n", time.Since(startLogin).Round(time.Millisecond))

	steady := runPhase(ctx, pool, *ops, *concurrency)

	before := backend.RefreshCalls()
	backend.ExpireAccessTokens()
	storm := runPhase(ctx, pool, *ops, *concurrency)
	refreshes := backend.RefreshCalls() - before

	var shared, reused uint64
	for _, o := range pool {
		m := o.Metrics()
		shared += m.Value(goSession.MetricRefreshShared)
		reused += m.Value(goSession.MetricRefreshReused)
	}

	fmt.Println("---- results ----")
	steady.print("steady")
	storm.print("401-storm")
	fmt.Printf("refresh: backend_calls=%d sessions=%d shared=%d reused=%d\n", refreshes, len(pool), shared, reused)
	if refreshes > int64(len(pool)) {
		fmt.Fprintf(os.Stderr, "expected at most one refresh per session, got %d for %d sessions\n", refreshes, len(pool))
		os.Exit(1)
	}
}

// loginAll registers one account per session and logs each in with its own key prefix.
func loginAll(ctx context.Context, baseURL string, client redis.UniversalClient, backend *fakebackend.Backend, prefix string, n int) ([]*goSession.Orchestrator, error) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{MaxIdleConnsPerHost: 256},
	}

	pool := make([]*goSession.Orchestrator, 0, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("load-%d@example.com", i)
		backend.AddUser(api.User{ID: int64(1000 + i), Email: email, FullName: "Load User", Role: "member", IsActive: true}, fakebackend.Password, "")

		cfg := goSession.DefaultConfig()
		cfg.Backend.BaseURL = baseURL
		cfg.Storage.Driver = goSession.StorageRedis
		cfg.Storage.Redis.Prefix = fmt.Sprintf("%s:%d", prefix, i)
		cfg.Metrics.Enabled = true

		o, err := goSession.New().
			WithConfig(cfg).
			WithRedis(client).
			WithHTTPClient(httpClient).
			WithLogger(quiet).
			Build()
		if err != nil {
			return pool, err
		}
		pool = append(pool, o)
		if _, err := o.Login(ctx, email, fakebackend.Password); err != nil {
			return pool, fmt.Errorf("%s: %w", email, err)
		}
	}
	return pool, nil
}

// runPhase spreads ops requests over the pool from concurrency workers.
func runPhase(ctx context.Context, pool []*goSession.Orchestrator, ops, concurrency int) report {
	var (
		wg       sync.WaitGroup
		next     atomic.Int64
		failures atomic.Int64
	)
	perWorker := make([][]time.Duration, concurrency)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(worker)*7919 + time.Now().UnixNano()))
			for next.Add(1) <= int64(ops) {
				o := pool[r.Intn(len(pool))]
				t0 := time.Now()
				if err := o.MakeAuthenticatedRequest(ctx, fakebackend.PathResource, goSession.RequestOptions{}, nil); err != nil {
					failures.Add(1)
				}
				perWorker[worker] = append(perWorker[worker], time.Since(t0))
			}
		}(w)
	}
	wg.Wait()

	var samples []time.Duration
	for _, s := range perWorker {
		samples = append(samples, s...)
	}
	return newReport(time.Since(start), samples, failures.Load())
}

type report struct {
	elapsed  time.Duration
	samples  []time.Duration
	failures int64
}

func newReport(elapsed time.Duration, samples []time.Duration, failures int64) report {
	slices.Sort(samples)
	return report{elapsed: elapsed, samples: samples, failures: failures}
}

// quantile returns the sample at q in [0, 1] of the sorted latencies.
func (r report) quantile(q float64) time.Duration {
	if len(r.samples) == 0 {
		return 0
	}
	return r.samples[int(q*float64(len(r.samples)-1))]
}

func (r report) print(name string) {
	rate := 0.0
	if r.elapsed > 0 {
		rate = float64(len(r.samples)) / r.elapsed.Seconds()
	}
	fmt.Printf("%-10s requests=%d failures=%d elapsed=%s req/s=%.0f p50=%s p95=%s p99=%s\n",
		name,
		len(r.samples),
		r.failures,
		r.elapsed.Round(time.Millisecond),
		rate,
		r.quantile(0.50).Round(time.Microsecond),
		r.quantile(0.95).Round(time.Microsecond),
		r.quantile(0.99).Round(time.Microsecond),
	)
}
