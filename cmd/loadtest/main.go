// Команда loadtest нагружает REST API storefront сценариями над заказами и печатает отчёт по латентности.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	idempotencyHeader = "Idempotency-Key"
	scenarioMetric    = "scenario"
	transportError    = "transport_error"
)

type loadMode string

const (
	modeCreate           loadMode = "create"
	modeCreateEdit       loadMode = "create-edit"
	modeCreateEditDelete loadMode = "create-edit-delete"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	products    int
	itemsPerOrd int
	price       string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type operationReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time                  `json:"started_at"`
	DurationSeconds   float64                    `json:"duration_seconds"`
	TotalScenarios    int64                      `json:"total_scenarios"`
	SuccessScenarios  int64                      `json:"success_scenarios"`
	FailedScenarios   int64                      `json:"failed_scenarios"`
	ErrorRate         float64                    `json:"error_rate"`
	RPS               float64                    `json:"rps"`
	ScenarioLatencyMs latencySummary             `json:"scenario_latency_ms"`
	Operations        map[string]operationReport `json:"operations"`
}

type operationStats struct {
	calls     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

// collector копит латентности по операциям; безопасен для конкурентных воркеров.
type collector struct {
	mu         sync.Mutex
	operations map[string]*operationStats
}

func newCollector() *collector {
	return &collector{operations: make(map[string]*operationStats)}
}

func (c *collector) record(operation string, latency time.Duration, status string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, found := c.operations[operation]
	if !found {
		stats = &operationStats{statuses: make(map[string]int64)}
		c.operations[operation] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.statuses[status]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (s *operationStats) report() operationReport {
	statuses := make(map[string]int64, len(s.statuses))
	for status, count := range s.statuses {
		statuses[status] = count
	}
	return operationReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Statuses:  statuses,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Operations:      make(map[string]operationReport, len(c.operations)),
	}
	for name, stats := range c.operations {
		result.Operations[name] = stats.report()
	}

	if scenario, ok := result.Operations[scenarioMetric]; ok {
		result.TotalScenarios = scenario.Calls
		result.SuccessScenarios = scenario.Success
		result.FailedScenarios = scenario.Failed
		result.ErrorRate = scenario.ErrorRate
		result.ScenarioLatencyMs = scenario.LatencyMs
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}
	return result
}

func newRootCommand(out io.Writer) *cobra.Command {
	var (
		cfg       config
		modeValue string
	)
	cmd := &cobra.Command{
		Use:           "loadtest",
		Short:         "drive order scenarios against the storefront REST API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.totalSet = cmd.Flags().Changed("total")
			mode, err := parseMode(modeValue)
			if err != nil {
				return err
			}
			cfg.mode = mode
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			result, err := runLoad(cmd.Context(), cfg, newHTTPClient(cfg))
			if err != nil {
				return err
			}
			printReport(out, result, cfg)
			if cfg.outputPath != "" {
				if err := writeJSONReport(cfg.outputPath, result); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			if result.FailedScenarios > 0 {
				return fmt.Errorf("%d of %d scenarios failed", result.FailedScenarios, result.TotalScenarios)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.baseURL, "url", "http://localhost:8080/api/v1", "REST API base URL")
	flags.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with --duration acts as an upper bound when set")
	flags.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	flags.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flags.IntVar(&cfg.connections, "connections", 20, "max open connections to the API")
	flags.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	flags.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-edit | create-edit-delete")
	flags.IntVar(&cfg.products, "products", 10, "number of products to seed before the run")
	flags.IntVar(&cfg.itemsPerOrd, "items", 2, "order items per created order")
	flags.StringVar(&cfg.price, "price", "9.99", "price of seeded products")
	flags.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	return cmd
}

func (cfg config) validate() error {
	switch {
	case strings.TrimSpace(cfg.baseURL) == "":
		return errors.New("url is required")
	case cfg.duration < 0:
		return errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return errors.New("timeout must be > 0")
	case cfg.products <= 0:
		return errors.New("products must be > 0")
	case cfg.itemsPerOrd <= 0:
		return errors.New("items must be > 0")
	}
	if _, err := strconv.ParseFloat(cfg.price, 64); err != nil {
		return fmt.Errorf("price must be a decimal: %w", err)
	}
	return nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeCreate, modeCreateEdit, modeCreateEditDelete:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func newHTTPClient(cfg config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = cfg.connections
	transport.MaxIdleConnsPerHost = cfg.connections
	return &http.Client{Transport: transport, Timeout: cfg.timeout}
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

// apiClient выполняет запросы и пишет каждый вызов в collector.
type apiClient struct {
	http    *http.Client
	baseURL string
	col     *collector
}

func (c *apiClient) call(ctx context.Context, operation, method, path string, body any, idempotencyKey string, want int, dst any) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", operation, err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, payload)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.col.record(operation, time.Since(start), transportError, false)
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()
	raw, readErr := io.ReadAll(resp.Body)
	c.col.record(operation, time.Since(start), strconv.Itoa(resp.StatusCode), resp.StatusCode == want && readErr == nil)

	if readErr != nil {
		return fmt.Errorf("%s: read body: %w", operation, readErr)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s: unexpected status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%s: decode body: %w", operation, err)
		}
	}
	return nil
}

type entityID struct {
	ID int64 `json:"id"`
}

type orderWithItems struct {
	ID    int64      `json:"id"`
	Items []entityID `json:"items"`
}

// seedProducts создаёт товары, на которые ссылаются заказы сценариев.
func seedProducts(ctx context.Context, api *apiClient, cfg config, runID string) ([]int64, error) {
	ids := make([]int64, 0, cfg.products)
	for i := 0; i < cfg.products; i++ {
		var created entityID
		err := api.call(ctx, "CreateProduct", http.MethodPost, "/products/", map[string]any{
			"name":      fmt.Sprintf("loadtest-%s-%d", runID, i),
			"price":     cfg.price,
			"available": true,
		}, "", http.StatusCreated, &created)
		if err != nil {
			return nil, fmt.Errorf("seed products: %w", err)
		}
		ids = append(ids, created.ID)
	}
	return ids, nil
}

func runLoad(ctx context.Context, cfg config, httpClient *http.Client) (report, error) {
	api := &apiClient{http: httpClient, baseURL: cfg.baseURL, col: newCollector()}
	runID := uuid.NewString()[:8]

	productIDs, err := seedProducts(ctx, api, cfg, runID)
	if err != nil {
		return report{}, err
	}

	startedAt := time.Now()
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for worker := 0; worker < cfg.concurrency; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				_ = runScenario(ctx, api, cfg, productIDs, runID, index)
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()

	return api.col.buildReport(startedAt, time.Since(startedAt)), nil
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; ; i++ {
		if (cfg.duration <= 0 || cfg.totalSet) && i >= cfg.total {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func orderLines(productIDs []int64, index, count int) []map[string]any {
	lines := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		lines = append(lines, map[string]any{
			"product_id": productIDs[(index+i)%len(productIDs)],
			"qty":        1 + (index+i)%3,
		})
	}
	return lines
}

func address(index int) map[string]string {
	return map[string]string{
		"street":  fmt.Sprintf("%d Benchmark Way", index+1),
		"city":    "Perfville",
		"state":   "CA",
		"zip":     "90001",
		"country": "US",
	}
}

func runScenario(ctx context.Context, api *apiClient, cfg config, productIDs []int64, runID string, index int) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		api.col.record(scenarioMetric, time.Since(start), status, err == nil)
	}()

	var order orderWithItems
	if err := api.call(ctx, "CreateOrder", http.MethodPost, "/orders/", map[string]any{
		"billing_address":  address(index),
		"shipping_address": address(index),
		"items":            orderLines(productIDs, index, cfg.itemsPerOrd),
	}, fmt.Sprintf("lt-create-%s-%d", runID, index), http.StatusCreated, &order); err != nil {
		return err
	}
	if order.ID == 0 || len(order.Items) == 0 {
		return errors.New("create order returned an empty aggregate")
	}
	if cfg.mode == modeCreate {
		return nil
	}

	orderPath := fmt.Sprintf("/orders/%d", order.ID)
	if err := api.call(ctx, "CreateOrderItem", http.MethodPost, orderPath+"/items/",
		orderLines(productIDs, index+1, 1)[0],
		fmt.Sprintf("lt-item-%s-%d", runID, index), http.StatusCreated, nil); err != nil {
		return err
	}
	itemPath := fmt.Sprintf("%s/items/%d", orderPath, order.Items[0].ID)
	if err := api.call(ctx, "PatchOrderItem", http.MethodPatch, itemPath, map[string]any{"qty": 5}, "", http.StatusOK, nil); err != nil {
		return err
	}
	if err := api.call(ctx, "GetOrder", http.MethodGet, orderPath, nil, "", http.StatusOK, nil); err != nil {
		return err
	}
	if cfg.mode == modeCreateEdit {
		return nil
	}

	return api.call(ctx, "DeleteOrder", http.MethodDelete, orderPath, nil, "", http.StatusOK, nil)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(out io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(out, "Load test summary")
	_, _ = fmt.Fprintf(out, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg), result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	_, _ = fmt.Fprintf(out, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(out, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	names := make([]string, 0, len(result.Operations))
	for name := range result.Operations {
		if name != scenarioMetric {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Operations[name]
		_, _ = fmt.Fprintf(out, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
