package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/klear-exec/internal/auth"
	"github.com/ksred/klear-exec/internal/database"
	"github.com/ksred/klear-exec/internal/execution"
	"github.com/ksred/klear-exec/internal/metrics"
	"github.com/ksred/klear-exec/internal/notify"
	"github.com/ksred/klear-exec/internal/trading"
	"github.com/ksred/klear-exec/internal/types"
	"github.com/ksred/klear-exec/pkg/middleware"
)

const (
	minOrders     = 15
	maxOrders     = 150
	numWorkers    = 5
	serverPort    = "8081"
	serverAddress = "http://localhost:" + serverPort
	jwtSecret     = "klear-simulation-secret"
)

var (
	symbols     = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}
	directions  = []string{"LONG", "SHORT"}
	orderTypes  = []string{"market", "limit", "stop", "stop limit"}
	basePrices  = map[string]float64{"AAPL": 189.5, "GOOGL": 141.2, "MSFT": 402.7, "AMZN": 178.3, "META": 486.1}
	nextOrderID atomic.Int64
)

func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	gin.SetMode(gin.ReleaseMode)
}

// routeStats tracks latency for one API endpoint
type routeStats struct {
	name       string
	mu         sync.Mutex
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
	if err != nil {
		rs.failures++
	}
}

// calculate returns min, max, mean, median, p95 and p99 latencies
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient drives the API as a trading client and a broker
type simulationClient struct {
	baseURL     string
	clientToken string
	brokerToken string
	client      *http.Client
	stats       map[string]*routeStats
}

func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":   {name: "Authentication"},
			"create": {name: "Create Order"},
			"submit": {name: "Submit Order"},
			"fills":  {name: "Record Fills"},
			"report": {name: "Get Report"},
		},
	}

	var err error
	if sc.clientToken, err = sc.authenticate(auth.TestAPIKey, auth.TestAPISecret); err != nil {
		return nil, fmt.Errorf("failed to authenticate client: %w", err)
	}
	if sc.brokerToken, err = sc.authenticate(auth.TestBrokerKey, auth.TestBrokerSecret); err != nil {
		return nil, fmt.Errorf("failed to authenticate broker: %w", err)
	}
	return sc, nil
}

// do sends a JSON request and decodes the data field of the envelope
func (sc *simulationClient) do(route, method, path, token string, headers map[string]string, in, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		sc.stats[route].addDuration(time.Since(start), err)
	}()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("route", route).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}

	envelope := struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(envelope.Data, out)
}

func (sc *simulationClient) authenticate(key, secret string) (string, error) {
	var token auth.TokenResponse
	creds := auth.Credentials{APIKey: key, APISecret: secret}
	if err := sc.do("auth", http.MethodPost, "/api/v1/auth/token", "", nil, creds, &token); err != nil {
		return "", err
	}
	return token.Token, nil
}

func (sc *simulationClient) createOrder(req types.CreateOrderRequest) (*types.OrderView, error) {
	var order types.OrderView
	if err := sc.do("create", http.MethodPost, "/api/v1/orders", sc.clientToken, nil, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (sc *simulationClient) submitOrder(orderID int64) error {
	return sc.do("submit", http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/submit", orderID), sc.clientToken, nil, nil, nil)
}

func (sc *simulationClient) recordFills(orderID int64, key string, req types.RecordFillsRequest) (*types.RecordFillsResponse, error) {
	var res types.RecordFillsResponse
	path := fmt.Sprintf("/api/v1/internal/orders/%d/fills", orderID)
	headers := map[string]string{"Idempotency-Key": key}
	if err := sc.do("fills", http.MethodPost, path, sc.brokerToken, headers, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (sc *simulationClient) getReport(orderID int64) (*types.ReportView, error) {
	var report types.ReportView
	path := fmt.Sprintf("/api/v1/orders/%d/report", orderID)
	if err := sc.do("report", http.MethodGet, path, sc.clientToken, nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, key := range []string{"auth", "create", "submit", "fills", "report"} {
		stats := sc.stats[key]
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Microsecond),
			max.Round(time.Microsecond),
			mean.Round(time.Microsecond),
			median.Round(time.Microsecond),
			p95.Round(time.Microsecond),
			p99.Round(time.Microsecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// simulationStats aggregates outcomes across workers
type simulationStats struct {
	mu            sync.Mutex
	created       int
	failedCreate  int
	batches       int
	failedBatches int
	replays       int
	filled        int
	partial       int
	totalValue    decimal.Decimal
	symbols       map[string]int
}

// main starts a local server and drives orders and broker fills through it
func main() {
	dir, err := os.MkdirTemp("", "klear-exec-sim")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create temp dir")
	}
	defer os.RemoveAll(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notifications atomic.Int64
	go func() {
		err := startServer(ctx, filepath.Join(dir, "sim.db"), execution.ListenerFunc(func(execution.Notification) {
			notifications.Add(1)
		}))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	time.Sleep(time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	stats := &simulationStats{totalValue: decimal.Zero, symbols: make(map[string]int)}
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runWorker(workerID, targetOrders/numWorkers, simClient, stats)
		}(i)
	}
	wg.Wait()

	// Give the dispatcher a moment to drain
	time.Sleep(200 * time.Millisecond)
	duration := time.Since(start)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("EXECUTION SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Orders created:     %d
Create failures:    %d
Fill batches:       %d
Batch failures:     %d
Replayed batches:   %d
Filled orders:      %d
Partially filled:   %d
Notifications:      %d
Total value:        %s
Duration:           %v

Symbol Distribution
-------------------
`, stats.created, stats.failedCreate, stats.batches, stats.failedBatches, stats.replays,
		stats.filled, stats.partial, notifications.Load(), stats.totalValue.StringFixed(2),
		duration.Round(time.Millisecond))

	maxCount := 0
	for _, count := range stats.symbols {
		if count > maxCount {
			maxCount = count
		}
	}
	for _, symbol := range symbols {
		count := stats.symbols[symbol]
		barLength := 0
		if maxCount > 0 {
			barLength = int(float64(count) / float64(maxCount) * 20)
		}
		fmt.Printf("%-6s: %s (%d)\n", symbol, strings.Repeat("#", barLength), count)
	}
	fmt.Println("\n" + strings.Repeat("=", 80))

	simClient.printPerformanceStats()
}

// runWorker creates, submits and fills numOrders random orders
func runWorker(workerID, numOrders int, sc *simulationClient, stats *simulationStats) {
	logger := log.With().Int("worker_id", workerID).Logger()

	for i := 0; i < numOrders; i++ {
		req := randomOrder()
		order, err := sc.createOrder(req)
		if err != nil {
			logger.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to create order")
			stats.mu.Lock()
			stats.failedCreate++
			stats.mu.Unlock()
			continue
		}
		stats.mu.Lock()
		stats.created++
		stats.symbols[order.Symbol]++
		stats.mu.Unlock()

		if err := sc.submitOrder(order.OrderID); err != nil {
			logger.Error().Err(err).Int64("order_id", order.OrderID).Msg("Failed to submit order")
			continue
		}

		var last *types.RecordFillsResponse
		for _, batch := range randomBatches(req) {
			key := uuid.New().String()
			res, err := sc.recordFills(order.OrderID, key, batch)
			stats.mu.Lock()
			if err != nil {
				stats.failedBatches++
			} else {
				stats.batches++
			}
			stats.mu.Unlock()
			if err != nil {
				logger.Error().Err(err).Int64("order_id", order.OrderID).Msg("Failed to record fills")
				break
			}
			last = res

			// Brokers retry; a repeated key must not double count
			if rand.Intn(10) == 0 {
				replay, err := sc.recordFills(order.OrderID, key, batch)
				if err == nil && replay.Replayed {
					stats.mu.Lock()
					stats.replays++
					stats.mu.Unlock()
				}
			}
		}
		if last == nil {
			continue
		}

		report, err := sc.getReport(order.OrderID)
		if err != nil {
			logger.Error().Err(err).Int64("order_id", order.OrderID).Msg("Failed to get report")
			continue
		}

		stats.mu.Lock()
		stats.totalValue = stats.totalValue.Add(report.TotalValue.Abs())
		if report.RemainingSize == 0 {
			stats.filled++
		} else {
			stats.partial++
		}
		stats.mu.Unlock()

		event := logger.Info().
			Int64("order_id", order.OrderID).
			Str("symbol", order.Symbol).
			Int64("filled", report.TotalSize).
			Str("status", report.Status)
		if report.AveragePrice != nil {
			event = event.Str("average_price", report.AveragePrice.String())
		}
		event.Msg("Order executed")

		time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
	}
}

func randomOrder() types.CreateOrderRequest {
	symbol := symbols[rand.Intn(len(symbols))]
	base := decimal.NewFromFloat(basePrices[symbol])

	req := types.CreateOrderRequest{
		OrderID:   nextOrderID.Add(1),
		Symbol:    symbol,
		Exchange:  "XNAS",
		Currency:  "USD",
		OrderType: orderTypes[rand.Intn(len(orderTypes))],
		Direction: directions[rand.Intn(len(directions))],
		Size:      int64(rand.Intn(500) + 1),
		Attributes: []types.AttributeRequest{
			{Name: "strategy", Kind: "string", Value: "sim"},
		},
	}
	stop := base.Mul(decimal.NewFromFloat(0.98)).Round(2)
	limit := base.Mul(decimal.NewFromFloat(1.01)).Round(2)
	switch req.OrderType {
	case "limit":
		req.LimitPrice = &limit
	case "stop":
		req.StopPrice = &stop
	case "stop limit":
		req.StopPrice, req.LimitPrice = &stop, &limit
	}
	return req
}

// randomBatches splits the order into one to three batches. One in five
// orders is left partially filled.
func randomBatches(order types.CreateOrderRequest) []types.RecordFillsRequest {
	remaining := order.Size
	if rand.Intn(5) == 0 && remaining > 1 {
		remaining = remaining / 2
	}
	base := basePrices[order.Symbol]

	var out []types.RecordFillsRequest
	for batches := rand.Intn(3) + 1; batches > 0 && remaining > 0; batches-- {
		var req types.RecordFillsRequest
		for fills := rand.Intn(3) + 1; fills > 0 && remaining > 0; fills-- {
			size := remaining
			if fills > 1 || batches > 1 {
				size = int64(rand.Int63n(remaining) + 1)
			}
			remaining -= size
			price := decimal.NewFromFloat(base * (1 + (rand.Float64()-0.5)/100)).Round(4)
			req.Fills = append(req.Fills, types.FillRequest{
				Direction: order.Direction,
				Size:      size,
				Price:     price.String(),
			})
		}
		out = append(out, req)
	}
	return out
}

// startServer runs the API with a notification counter attached
func startServer(ctx context.Context, dbPath string, counter execution.Listener) error {
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.New()
	dispatcher := notify.NewDispatcher(1024, m)
	dispatcher.Subscribe(counter)
	go dispatcher.Run(ctx)

	authService := auth.NewService(jwtSecret)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)
	authService.RegisterAPICredentials(auth.TestBrokerKey, auth.TestBrokerSecret,
		auth.PermissionTrade, auth.PermissionInternal)

	tradingService := trading.NewService(db, trading.Options{
		Source:   "klear-exec-sim",
		Listener: dispatcher,
		Metrics:  m,
	})

	router := gin.New()
	router.Use(gin.Recovery())

	authHandlers := auth.NewGinHandlers(authService)
	tradingHandlers := trading.NewGinHandlers(tradingService)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

	client := v1.Group("/orders")
	client.Use(middleware.JWTAuth(jwtSecret))
	internal := v1.Group("/internal")
	internal.Use(middleware.InternalAuth(jwtSecret))
	tradingHandlers.RegisterRoutes(client, internal)

	return router.Run(":" + serverPort)
}
