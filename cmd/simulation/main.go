package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/tradejournal-api/internal/config"
	"github.com/ksred/tradejournal-api/internal/database"
	"github.com/ksred/tradejournal-api/internal/database/migrations"
	"github.com/ksred/tradejournal-api/internal/server"
)

const (
	numAccounts     = 3
	tradesPerWorker = 20
	numWorkers      = 5
	initialBalance  = 10000.0
)

var (
	instruments = []string{"XAUUSD", "XAGUSD"}
	directions  = []string{"long", "short"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	mu         sync.Mutex
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) record(d time.Duration, failed bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
	if failed {
		rs.failures++
	}
}

// calculate computes min, max, mean, median, 95th and 99th percentile durations
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

// simulationClient drives the journal API over HTTP and times every call
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
	order     []string
}

func newSimulationClient(baseURL string) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"register": {name: "Register"},
			"account":  {name: "Create Account"},
			"open":     {name: "Open Trade"},
			"close":    {name: "Close Trade"},
			"delete":   {name: "Delete Trade"},
			"balance":  {name: "Get Account"},
			"summary":  {name: "Analytics Summary"},
		},
		order: []string{"register", "account", "open", "close", "delete", "balance", "summary"},
	}

	username := "sim_" + uuid.NewString()[:8]
	var registered struct {
		AccessToken string `json:"access_token"`
	}
	err := sc.call("register", http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    username + "@simulation.local",
		"password": "simulation-password",
	}, &registered)
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	sc.authToken = registered.AccessToken
	return sc, nil
}

// call sends body as JSON and decodes the envelope's data into out
func (sc *simulationClient) call(route, method, path string, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		sc.stats[route].record(time.Since(start), err != nil)
	}()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
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
	log.Debug().Str("route", route).Str("response", string(respBody)).Msg("Response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s failed with status %d: %s", route, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(result.Data, out)
}

type account struct {
	ID             string  `json:"id"`
	CurrentBalance float64 `json:"current_balance"`
}

type trade struct {
	ID     string   `json:"id"`
	Result *float64 `json:"result"`
}

// ledger is the simulation's own running total per account
type ledger struct {
	mu       sync.Mutex
	expected map[string]float64
}

func (l *ledger) add(accountID string, delta float64) {
	l.mu.Lock()
	l.expected[accountID] += delta
	l.mu.Unlock()
}

// runWorker opens and closes trades on random accounts. Roughly one closed
// trade in five is deleted again, which must revert its result.
func runWorker(workerID int, sc *simulationClient, accounts []account, book *ledger) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	for i := 0; i < tradesPerWorker; i++ {
		acc := accounts[rng.Intn(len(accounts))]
		entry := 1900 + rng.Float64()*200

		var opened trade
		err := sc.call("open", http.MethodPost, "/api/trades?account_id="+acc.ID, map[string]interface{}{
			"instrument":    instruments[rng.Intn(len(instruments))],
			"entry_price":   math.Round(entry*100) / 100,
			"position_size": float64(rng.Intn(5) + 1),
			"direction":     directions[rng.Intn(len(directions))],
		}, &opened)
		if err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to open trade")
			continue
		}

		exit := math.Round((entry+rng.NormFloat64()*15)*100) / 100
		var closed trade
		err = sc.call("close", http.MethodPatch, "/api/trades/"+opened.ID+"/close", map[string]interface{}{
			"exit_price": exit,
		}, &closed)
		if err != nil || closed.Result == nil {
			log.Error().Err(err).Str("trade_id", opened.ID).Msg("Failed to close trade")
			continue
		}
		book.add(acc.ID, *closed.Result)

		if rng.Intn(5) == 0 {
			if err := sc.call("delete", http.MethodDelete, "/api/trades/"+opened.ID, nil, nil); err != nil {
				log.Error().Err(err).Str("trade_id", opened.ID).Msg("Failed to delete trade")
				continue
			}
			book.add(acc.ID, -*closed.Result)
		}

		log.Info().
			Int("worker_id", workerID).
			Str("trade_id", opened.ID).
			Float64("result", *closed.Result).
			Msg("Trade journaled")
	}
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, key := range sc.order {
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

// main journals trades from concurrent workers and then checks that every
// account balance equals its initial balance plus the surviving results.
// SIM_TARGET points it at a running server; otherwise one is started in-process.
func main() {
	baseURL := os.Getenv("SIM_TARGET")
	if baseURL == "" {
		var err error
		baseURL, err = startServer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}

	simClient, err := newSimulationClient(baseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	accounts := make([]account, 0, numAccounts)
	for i := 0; i < numAccounts; i++ {
		var acc account
		err := simClient.call("account", http.MethodPost, "/api/accounts", map[string]interface{}{
			"account_name":    fmt.Sprintf("Simulation %d", i+1),
			"broker_name":     "Simulated Broker",
			"initial_balance": initialBalance,
		}, &acc)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create account")
		}
		accounts = append(accounts, acc)
	}

	book := &ledger{expected: make(map[string]float64)}
	start := time.Now()
	log.Info().Int("workers", numWorkers).Int("trades_per_worker", tradesPerWorker).Msg("Starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runWorker(workerID, simClient, accounts, book)
		}(i)
	}
	wg.Wait()
	duration := time.Since(start)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BALANCE RECONCILIATION")
	fmt.Println(strings.Repeat("=", 80))

	mismatches := 0
	for _, acc := range accounts {
		var current account
		if err := simClient.call("balance", http.MethodGet, "/api/accounts/"+acc.ID, nil, &current); err != nil {
			log.Error().Err(err).Str("account_id", acc.ID).Msg("Failed to read account")
			mismatches++
			continue
		}
		want := initialBalance + book.expected[acc.ID]
		ok := math.Abs(current.CurrentBalance-want) < 1e-6
		if !ok {
			mismatches++
		}
		fmt.Printf("%-38s expected %12.2f  actual %12.2f  %v\n", acc.ID, want, current.CurrentBalance, ok)
	}

	var summary struct {
		ClosedTrades  int     `json:"closed_trades"`
		WinRate       float64 `json:"win_rate"`
		NetProfitLoss float64 `json:"net_profit_loss"`
		ProfitFactor  float64 `json:"profit_factor"`
	}
	if err := simClient.call("summary", http.MethodGet, "/api/analytics/summary", nil, &summary); err != nil {
		log.Error().Err(err).Msg("Failed to fetch analytics summary")
	}

	fmt.Printf(`
Closed trades:    %d
Win rate:         %.2f%%
Net P/L:          %.2f
Profit factor:    %.2f
Duration:         %v
`, summary.ClosedTrades, summary.WinRate, summary.NetProfitLoss, summary.ProfitFactor, duration.Round(time.Millisecond))

	simClient.printPerformanceStats()

	if mismatches > 0 {
		log.Error().Int("mismatches", mismatches).Msg("Simulation found balance drift")
		os.Exit(1)
	}
	log.Info().Dur("duration", duration).Msg("Simulation completed, all balances reconcile")
}

// startServer runs the API on a random local port over a throwaway SQLite file
func startServer() (string, error) {
	gin.SetMode(gin.ReleaseMode)

	dir, err := os.MkdirTemp("", "journal-sim-")
	if err != nil {
		return "", err
	}
	db, err := database.NewDatabase(database.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("%s/sim.db?_foreign_keys=on&_busy_timeout=5000", dir),
	})
	if err != nil {
		return "", fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		return "", err
	}

	cfg := &config.Config{
		JWTSecret:     "simulation-secret",
		TokenTTL:      time.Hour,
		RateLimitAuth: 0,
		RateLimitAPI:  0,
	}
	srv := server.New(cfg, db, nil)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	go func() {
		if err := http.Serve(listener, srv.Router); err != nil {
			log.Error().Err(err).Msg("Simulation server stopped")
		}
	}()

	return "http://" + listener.Addr().String(), nil
}
