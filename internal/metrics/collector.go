package metrics

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// Collector accumulates per-link probe outcomes for the tuning report.
type Collector struct {
	mu sync.Mutex

	// Latency tracking (successes only)
	latencies []time.Duration

	// Error tracking
	errorCounts map[string]int
	totalErrors int

	// Network saturation heuristic
	timeoutErrors int
}

func New() *Collector {
	return &Collector{
		errorCounts: make(map[string]int),
	}
}

func (c *Collector) RecordSuccess(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latencies = append(c.latencies, latency)
}

func (c *Collector) RecordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalErrors++

	msg := err.Error()
	errType := "Unknown"

	// Categorize errors for the saturation heuristic
	if strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout") {
		errType = "Timeout (Slow)"
		c.timeoutErrors++
	} else if strings.Contains(msg, "refused") {
		errType = "Conn Refused (Fast)"
	} else if strings.Contains(msg, "reset") {
		errType = "Conn Reset (Fast)"
	} else if strings.Contains(msg, "EOF") {
		errType = "EOF / Empty"
	} else if strings.Contains(msg, "no such host") {
		errType = "DNS Error"
	} else if strings.Contains(msg, "status") {
		errType = "Bad HTTP Status"
	}

	c.errorCounts[errType]++
}

// PrintReport renders the latency and error breakdown with tuning
// suggestions against the probe settings that produced it.
func (c *Collector) PrintReport(currentTimeout time.Duration, currentConcurrency int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Println("\n📊 \033[1mPROBE TUNING REPORT\033[0m")
	fmt.Println("────────────────────────────────────────")

	// 1. Latency / Timeout Tuning
	if len(c.latencies) > 0 {
		sort.Slice(c.latencies, func(i, j int) bool { return c.latencies[i] < c.latencies[j] })

		p50 := c.latencies[len(c.latencies)/2]
		p90 := c.latencies[int(float64(len(c.latencies))*0.9)]

		fmt.Fprintln(w, "\033[1;36m[ LATENCY (Alive Profiles) ]\033[0m")
		fmt.Fprintf(w, "  Alive:\t%d\n", len(c.latencies))
		fmt.Fprintf(w, "  Avg Duration:\t%v\n", average(c.latencies))
		fmt.Fprintf(w, "  p50 (Median):\t%v\n", p50)
		fmt.Fprintf(w, "  p90 (Slowest 10%%):\t%v\n", p90)

		recTimeout := p90 + (500 * time.Millisecond)
		fmt.Fprintf(w, "  💡 Recommendation:\tSet 'timeout_seconds' to ~%s (Current: %s)\n", recTimeout.Round(time.Second), currentTimeout)
		fmt.Fprintln(w, "")
	}

	// 2. Network Saturation (The Limit Check)
	fmt.Fprintln(w, "\033[1;36m[ NETWORK HEALTH / ERRORS ]\033[0m")
	fmt.Fprintf(w, "  Total Failures:\t%d\n", c.totalErrors)

	if c.totalErrors > 0 {
		timeoutPct := float64(c.timeoutErrors) / float64(c.totalErrors) * 100
		fmt.Fprintf(w, "  Timeouts (Potential Congestion):\t%d (%.1f%%)\n", c.timeoutErrors, timeoutPct)

		for k, v := range c.errorCounts {
			if k != "Timeout (Slow)" {
				fmt.Fprintf(w, "  %s:\t%d\n", k, v)
			}
		}

		fmt.Fprintln(w, "  --------------------------------")
		if timeoutPct > 70 {
			fmt.Fprintln(w, "  ⚠️  \033[1;31mHIGH SATURATION DETECTED\033[0m")
			fmt.Fprintln(w, "  >70% of failures are timeouts. Either most servers are truly dead,")
			fmt.Fprintln(w, "  or the local uplink is choked by parallel probes.")
			fmt.Fprintf(w, "  💡 Recommendation: \033[1mDECREASE 'concurrency'\033[0m (Current: %d)\n", currentConcurrency)
		} else {
			fmt.Fprintln(w, "  ✅ Network seems stable (failures are mostly active rejections).")
		}
	}

	w.Flush()
	fmt.Println("")
}

func average(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return time.Duration(int64(sum) / int64(len(d)))
}
