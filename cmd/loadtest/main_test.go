package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/service/customers"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/products"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.NewStore()
	router := httpapi.NewRouter(httpapi.Services{
		Products:  products.NewService(store),
		Customers: customers.NewService(store, nil),
		Orders:    orders.NewService(store),
	}, httpapi.WithIdempotency(memory.NewIdempotencyRepository(), time.Hour))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string, mode loadMode) config {
	return config{
		baseURL:     baseURL + "/api/v1",
		total:       6,
		concurrency: 3,
		connections: 3,
		timeout:     2 * time.Second,
		mode:        mode,
		products:    2,
		itemsPerOrd: 2,
		price:       "4.50",
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    loadMode
		wantErr string
	}{
		{name: "create", input: "create", want: modeCreate},
		{name: "create-edit", input: " create-edit ", want: modeCreateEdit},
		{name: "create-edit-delete", input: "create-edit-delete", want: modeCreateEditDelete},
		{name: "unsupported", input: "create-pay", wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMode(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := testConfig("http://localhost:8080", modeCreate)
	require.NoError(t, valid.validate())

	tests := []struct {
		name    string
		mutate  func(*config)
		wantErr string
	}{
		{name: "empty url", mutate: func(c *config) { c.baseURL = " " }, wantErr: "url is required"},
		{name: "negative duration", mutate: func(c *config) { c.duration = -time.Second }, wantErr: "duration must be >= 0"},
		{name: "zero total", mutate: func(c *config) { c.total = 0 }, wantErr: "total must be > 0"},
		{name: "explicit zero total with duration", mutate: func(c *config) {
			c.duration = time.Second
			c.total = 0
			c.totalSet = true
		}, wantErr: "explicitly set"},
		{name: "zero concurrency", mutate: func(c *config) { c.concurrency = 0 }, wantErr: "concurrency"},
		{name: "zero connections", mutate: func(c *config) { c.connections = 0 }, wantErr: "connections"},
		{name: "zero timeout", mutate: func(c *config) { c.timeout = 0 }, wantErr: "timeout"},
		{name: "zero products", mutate: func(c *config) { c.products = 0 }, wantErr: "products"},
		{name: "zero items", mutate: func(c *config) { c.itemsPerOrd = 0 }, wantErr: "items"},
		{name: "bad price", mutate: func(c *config) { c.price = "cheap" }, wantErr: "price must be a decimal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(context.Background(), jobs, config{total: 5})

		var got []int
		for v := range jobs {
			got = append(got, v)
		}
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Fatalf("unexpected jobs sequence: %v", got)
		}
	})

	t.Run("duration mode", func(t *testing.T) {
		jobs := make(chan int, 32)
		done := make(chan struct{})
		go func() {
			dispatchJobs(context.Background(), jobs, config{duration: 20 * time.Millisecond})
			close(done)
		}()

		count := 0
		for range jobs {
			count++
		}
		<-done
		if count == 0 {
			t.Fatalf("expected non-zero jobs for duration mode")
		}
	})

	t.Run("duration with explicit max total", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(context.Background(), jobs, config{duration: time.Second, total: 3, totalSet: true})
		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs, got %d", count)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		jobs := make(chan int)
		dispatchJobs(ctx, jobs, config{total: 100})
		_, open := <-jobs
		assert.False(t, open)
	})
}

func TestCollectorAndReport(t *testing.T) {
	c := newCollector()
	c.record(scenarioMetric, 10*time.Millisecond, "ok", true)
	c.record(scenarioMetric, 20*time.Millisecond, "failed", false)
	c.record("CreateOrder", 15*time.Millisecond, "201", true)
	c.record("CreateOrder", 5*time.Millisecond, transportError, false)

	r := c.buildReport(time.Now(), 2*time.Second)
	if r.TotalScenarios != 2 || r.FailedScenarios != 1 || r.SuccessScenarios != 1 {
		t.Fatalf("unexpected report totals: %+v", r)
	}
	assert.InDelta(t, 0.5, r.ErrorRate, 1e-9)
	assert.InDelta(t, 1.0, r.RPS, 1e-9)

	create, ok := r.Operations["CreateOrder"]
	require.True(t, ok, "expected CreateOrder stats in report")
	assert.Equal(t, int64(2), create.Calls)
	assert.Equal(t, int64(1), create.Statuses["201"])
	assert.Equal(t, int64(1), create.Statuses[transportError])
	assert.InDelta(t, 15.0, create.LatencyMs.Max, 1e-9)
}

func TestUtilityFunctions(t *testing.T) {
	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	values := []float64{10, 20, 30, 40}
	summary := buildLatencySummary(values)
	if summary.P50 <= 0 || summary.P95 <= 0 || summary.Max != 40 || summary.Min != 10 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}
	assert.InDelta(t, 25.0, summary.Avg, 1e-9)
	assert.InDelta(t, 25.0, percentile(values, 50), 1e-9)
	assert.Equal(t, latencySummary{}, buildLatencySummary(nil))
	assert.Equal(t, 7.0, percentile([]float64{7}, 99))

	if got := runTarget(config{total: 50}); got != "count:50" {
		t.Fatalf("unexpected run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second}); got != "duration:2s" {
		t.Fatalf("unexpected duration run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second, total: 10, totalSet: true}); got != "duration:2s,max-total:10" {
		t.Fatalf("unexpected capped duration run target: %s", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	sample := report{TotalScenarios: 2, SuccessScenarios: 2}
	require.NoError(t, writeJSONReport(path, sample))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded report
	require.NoError(t, json.Unmarshal(data, &decoded))
	if decoded.TotalScenarios != 2 || decoded.SuccessScenarios != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}

	assert.Error(t, writeJSONReport(".", sample))
	assert.Error(t, writeJSONReport("../escape.json", sample))
}

func TestRunLoad_AgainstRouter(t *testing.T) {
	srv := newAPIServer(t)

	for _, mode := range []loadMode{modeCreate, modeCreateEdit, modeCreateEditDelete} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := testConfig(srv.URL, mode)
			result, err := runLoad(context.Background(), cfg, newHTTPClient(cfg))
			require.NoError(t, err)

			assert.Equal(t, int64(cfg.total), result.TotalScenarios)
			assert.Zero(t, result.FailedScenarios, "operations: %+v", result.Operations)
			assert.Equal(t, int64(cfg.products), result.Operations["CreateProduct"].Statuses["201"])
			assert.Equal(t, int64(cfg.total), result.Operations["CreateOrder"].Statuses["201"])

			_, edited := result.Operations["PatchOrderItem"]
			_, deleted := result.Operations["DeleteOrder"]
			assert.Equal(t, mode != modeCreate, edited)
			assert.Equal(t, mode == modeCreateEditDelete, deleted)
		})
	}
}

func TestRunScenario_SendsIdempotencyKeys(t *testing.T) {
	var keyed atomic.Int32
	upstream := newAPIServer(t)
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/orders/") &&
			strings.HasPrefix(r.Header.Get(idempotencyHeader), "lt-") {
			keyed.Add(1)
		}
		req, err := http.NewRequestWithContext(r.Context(), r.Method, upstream.URL+r.URL.Path, r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		req.Header = r.Header.Clone()
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.WriteHeader(resp.StatusCode)
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(proxy.Close)

	cfg := testConfig(proxy.URL, modeCreateEdit)
	cfg.total = 2
	result, err := runLoad(context.Background(), cfg, newHTTPClient(cfg))
	require.NoError(t, err)
	assert.Zero(t, result.FailedScenarios)
	assert.Equal(t, int32(4), keyed.Load(), "create order and add item carry a key per scenario")
}

func TestRunLoad_ReportsFailures(t *testing.T) {
	srv := newAPIServer(t)
	cfg := testConfig(srv.URL, modeCreate)
	cfg.total = 2

	api := &apiClient{http: newHTTPClient(cfg), baseURL: cfg.baseURL, col: newCollector()}
	err := runScenario(context.Background(), api, cfg, []int64{999}, "missing", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CreateOrder")

	r := api.col.buildReport(time.Now(), time.Second)
	assert.Equal(t, int64(1), r.FailedScenarios)
	assert.Equal(t, int64(1), r.Operations["CreateOrder"].Failed)
}

func TestRunLoad_SeedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL, modeCreate)
	_, err := runLoad(context.Background(), cfg, newHTTPClient(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed products")
}

func TestPrintReport(t *testing.T) {
	r := report{
		TotalScenarios:   2,
		SuccessScenarios: 2,
		Operations: map[string]operationReport{
			scenarioMetric: {Calls: 2, Success: 2},
			"CreateOrder":  {Calls: 2, Success: 2},
		},
	}

	var out bytes.Buffer
	printReport(&out, r, config{mode: modeCreate, total: 2})

	assert.Contains(t, out.String(), "Load test summary")
	assert.Contains(t, out.String(), "CreateOrder: calls=2")
	assert.NotContains(t, out.String(), scenarioMetric+": calls")
}

func TestRootCommand(t *testing.T) {
	srv := newAPIServer(t)
	reportPath := filepath.Join(t.TempDir(), "loadtest.json")

	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs([]string{
		"--url", srv.URL + "/api/v1",
		"--total", "3",
		"--concurrency", "2",
		"--products", "2",
		"--mode", "create-edit-delete",
		"--output", reportPath,
	})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "mode=create-edit-delete run=count:3")

	_, err := os.Stat(reportPath)
	require.NoError(t, err)

	bad := newRootCommand(&out)
	bad.SetArgs([]string{"--mode", "create-pay"})
	err = bad.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}
