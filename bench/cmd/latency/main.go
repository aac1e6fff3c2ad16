// Package main — bench/cmd/latency/main.go
//
// Round-trip latency measurement tool for a running llm-osd.
//
// Method:
//  1. Dials the daemon's Unix socket repeatedly, sending a single-action
//     ping ActionPlan each time.
//  2. Measures the wall-clock time from dial to the final byte of the
//     response.
//  3. Results are written to a CSV file and summarized as p50/p95/p99.
//
// Output CSV columns:
//
//	iteration, latency_us, ok
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/llm-osd/llm-osd/internal/client"
	"github.com/llm-osd/llm-osd/internal/protocol"
)

func main() {
	iterations := flag.Int("iterations", 10000, "Number of ping round trips to measure")
	outputFile := flag.String("output", "latency_raw.csv", "Output CSV file path")
	socketPath := flag.String("socket-path", "/tmp/llm-osd.sock", "Path to the daemon's Unix socket")
	timeout := flag.Duration("timeout", 2*time.Second, "Per-request timeout")
	flag.Parse()

	// Lock to OS thread to minimise scheduling jitter.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	f, err := os.Create(*outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	_ = w.Write([]string{"iteration", "latency_us", "ok"})

	var (
		totalFailed int
		histogram   [1_000_001]int // microsecond buckets, 0-1s
	)

	for i := 0; i < *iterations; i++ {
		plan := &protocol.ActionPlan{
			RequestID: fmt.Sprintf("bench-%d", i),
			Version:   "0.1",
			Mode:      protocol.ModeExecute,
			Actions: []protocol.Action{
				{Type: protocol.ActionPing, Ping: &protocol.PingAction{}},
			},
		}

		start := time.Now()
		result, err := client.Send(*socketPath, plan, *timeout)
		latency := time.Since(start)

		ok := err == nil && result.Error == nil && len(result.Results) == 1 &&
			result.Results[0].Ping != nil && result.Results[0].Ping.OK
		if !ok {
			totalFailed++
		}

		latencyUs := int(latency.Microseconds())
		if latencyUs >= 0 && latencyUs < len(histogram) {
			histogram[latencyUs]++
		}

		_ = w.Write([]string{
			strconv.Itoa(i),
			strconv.Itoa(latencyUs),
			strconv.FormatBool(ok),
		})
	}

	p50, p95, p99 := computePercentiles(histogram[:], *iterations)

	fmt.Printf("Round-Trip Latency Results (%d iterations)\n", *iterations)
	fmt.Printf("  Failed: %d/%d (%.1f%%)\n", totalFailed, *iterations,
		float64(totalFailed)/float64(*iterations)*100)
	fmt.Printf("  p50: %dµs\n", p50)
	fmt.Printf("  p95: %dµs\n", p95)
	fmt.Printf("  p99: %dµs\n", p99)
	fmt.Printf("  Output: %s\n", *outputFile)

	if totalFailed > 0 {
		os.Exit(1)
	}
}

func computePercentiles(hist []int, total int) (p50, p95, p99 int) {
	targets := []struct {
		pct float64
		out *int
	}{
		{0.50, &p50},
		{0.95, &p95},
		{0.99, &p99},
	}
	cumulative := 0
	ti := 0
	for i, count := range hist {
		cumulative += count
		for ti < len(targets) && float64(cumulative) >= targets[ti].pct*float64(total) {
			*targets[ti].out = i
			ti++
		}
		if ti == len(targets) {
			break
		}
	}
	return
}
