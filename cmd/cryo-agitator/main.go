// Package main - cryo-agitator
// Load generator: many WebSocket clients spamming chamber commands.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Chambers       []string
	ResultsPath    string
}

// Stats tracks performance metrics
type Stats struct {
	CommandsSent int64
	Accepted     int64 // COMMAND_RESULT with ok
	Rejected     int64 // COMMAND_RESULT with an error, rate limits included
	RateLimited  int64
	Broadcasts   int64
	Errors       int64

	mu        sync.Mutex
	latencies []time.Duration // Send to COMMAND_RESULT
}

func (s *Stats) addLatency(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

type commandResult struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 100*time.Millisecond, "Command interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	chambers := flag.String("chambers", "C1,C2", "Comma separated chamber IDs to target")
	results := flag.String("out", "agitator_results.json", "Where to write the JSON results")
	flag.Parse()

	config := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		Chambers:       strings.Split(*chambers, ","),
		ResultsPath:    *results,
	}

	fmt.Println("=========================================")
	fmt.Println("CRYO AGITATOR - Stress Test Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("Clients:  %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Printf("Chambers: %s\n", strings.Join(config.Chambers, ", "))
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := runStressTest(ctx, config, os.Stdout)
	printResults(os.Stdout, stats, config)
}

func runStressTest(ctx context.Context, config Config, progress io.Writer) *Stats {
	stats := &Stats{latencies: make([]time.Duration, 0, 10000)}
	var wg sync.WaitGroup

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Fprintf(progress, "All %d clients started\n", config.NumClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprintf(progress, "Progress: sent=%d ok=%d rejected=%d errors=%d\n",
					atomic.LoadInt64(&stats.CommandsSent), atomic.LoadInt64(&stats.Accepted),
					atomic.LoadInt64(&stats.Rejected), atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	var pending sync.Map // command ID -> send time
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var res commandResult
			if json.Unmarshal(data, &res) != nil || res.Type != "COMMAND_RESULT" {
				atomic.AddInt64(&stats.Broadcasts, 1)
				continue
			}
			if sent, ok := pending.LoadAndDelete(res.ID); ok {
				stats.addLatency(time.Since(sent.(time.Time)))
			}
			switch {
			case res.OK:
				atomic.AddInt64(&stats.Accepted, 1)
			case res.Error == "rate limit exceeded":
				atomic.AddInt64(&stats.RateLimited, 1)
				atomic.AddInt64(&stats.Rejected, 1)
			default:
				atomic.AddInt64(&stats.Rejected, 1)
			}
		}
	}()

	rng := rand.New(rand.NewSource(int64(clientID) + time.Now().UnixNano()))
	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			cmd := generateCommand(rng, config.Chambers)
			cmd["id"] = fmt.Sprintf("%d-%d", clientID, seq)
			pending.Store(cmd["id"], time.Now())
			if err := conn.WriteJSON(cmd); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			atomic.AddInt64(&stats.CommandsSent, 1)
		}
	}
}

// generateCommand picks a harmless command: refuels and power toggles.
func generateCommand(rng *rand.Rand, chambers []string) map[string]interface{} {
	chamber := chambers[rng.Intn(len(chambers))]
	if rng.Intn(2) == 0 {
		return map[string]interface{}{"type": "REFUEL", "chamber_id": chamber, "amount": 1 + rng.Float64()*4}
	}
	return map[string]interface{}{"type": "POWER", "chamber_id": chamber, "on": rng.Intn(4) != 0}
}

func printResults(out io.Writer, stats *Stats, config Config) {
	sent := atomic.LoadInt64(&stats.CommandsSent)
	errs := atomic.LoadInt64(&stats.Errors)
	throughput := float64(sent) / config.TestDuration.Seconds()

	fmt.Fprintln(out, "\n=========================================")
	fmt.Fprintln(out, "STRESS TEST RESULTS")
	fmt.Fprintln(out, "=========================================")
	fmt.Fprintf(out, "Commands Sent:  %s\n", humanize.Comma(sent))
	fmt.Fprintf(out, "Accepted:       %s\n", humanize.Comma(atomic.LoadInt64(&stats.Accepted)))
	fmt.Fprintf(out, "Rejected:       %s (%s rate limited)\n", humanize.Comma(atomic.LoadInt64(&stats.Rejected)), humanize.Comma(atomic.LoadInt64(&stats.RateLimited)))
	fmt.Fprintf(out, "Broadcasts:     %s\n", humanize.Comma(atomic.LoadInt64(&stats.Broadcasts)))
	fmt.Fprintf(out, "Errors:         %s\n", humanize.Comma(errs))
	fmt.Fprintf(out, "Throughput:     %s cmd/sec\n", humanize.FtoaWithDigits(throughput, 2))

	min, avg, max := latencySummary(stats)
	if max > 0 {
		fmt.Fprintf(out, "\nRound trip:\n  Min: %v\n  Avg: %v\n  Max: %v\n", min, avg, max)
	}

	fmt.Fprintln(out, "\n-----------------------------------------")
	switch {
	case errs == 0:
		fmt.Fprintln(out, "TEST PASSED: System handled the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Fprintln(out, "TEST WARNING: Some errors detected")
	default:
		fmt.Fprintln(out, "TEST FAILED: High error rate")
	}

	if config.ResultsPath == "" {
		return
	}
	results := map[string]interface{}{
		"commands_sent":      sent,
		"accepted":           atomic.LoadInt64(&stats.Accepted),
		"rejected":           atomic.LoadInt64(&stats.Rejected),
		"rate_limited":       atomic.LoadInt64(&stats.RateLimited),
		"errors":             errs,
		"throughput_per_sec": throughput,
		"latency_avg_ms":     float64(avg) / float64(time.Millisecond),
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
			"chambers": config.Chambers,
		},
	}
	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile(config.ResultsPath, jsonData, 0644); err != nil {
		fmt.Fprintf(out, "Failed to save results: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Results saved to %s\n", config.ResultsPath)
}

func latencySummary(stats *Stats) (min, avg, max time.Duration) {
	stats.mu.Lock()
	defer stats.mu.Unlock()
	if len(stats.latencies) == 0 {
		return 0, 0, 0
	}
	var total time.Duration
	min, max = stats.latencies[0], stats.latencies[0]
	for _, l := range stats.latencies {
		total += l
		if l < min {
			min = l
		}
		if l > max {
			max = l
		}
	}
	return min, total / time.Duration(len(stats.latencies)), max
}
