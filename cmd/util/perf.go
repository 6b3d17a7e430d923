package util

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Benchmark is one named test of a perf command
type Benchmark struct {
	Name string
	// Setup runs once before the operations (optional)
	Setup func() error
	// Op is called Ops times with the operation number, concurrently from Threads workers
	Op func(i int) error
	// Cleanup runs once after the operations (optional)
	Cleanup func() error
}

// PerfOptions configures RunBenchmarks
type PerfOptions struct {
	Threads int
	Ops     int
	Skip    []string
}

// PerfResult holds the measurements of one benchmark
type PerfResult struct {
	Name    string
	Skipped bool
	Ops     int64
	Errors  int64
	Elapsed time.Duration
	Mean    time.Duration
	P50     time.Duration
	P99     time.Duration
	Max     time.Duration
}

// OpsPerSec is the throughput over the whole run
func (r PerfResult) OpsPerSec() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds()
}

// SetupPerfFlags adds the flags read by GetPerfOptions to cmd
func SetupPerfFlags(cmd *cobra.Command) {
	key := "skip"
	cmd.Flags().String(key, "", WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	cmd.Flags().Int(key, 10, WrapString("Number of workers issuing requests concurrently"))
	key = "ops"
	cmd.Flags().Int(key, 1000, WrapString("Number of operations per benchmark"))
	key = "csv"
	cmd.Flags().String(key, "", WrapString("Optional path to save benchmark results as CSV"))
}

// GetPerfOptions reads the perf flags from viper
func GetPerfOptions() PerfOptions {
	var skip []string
	for _, s := range strings.Split(viper.GetString("skip"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			skip = append(skip, s)
		}
	}
	return PerfOptions{
		Threads: max(viper.GetInt("threads"), 1),
		Ops:     max(viper.GetInt("ops"), 1),
		Skip:    skip,
	}
}

// RunBenchmarks runs every benchmark not listed in opts.Skip and prints each result as it completes
func RunBenchmarks(benchmarks []Benchmark, opts PerfOptions) ([]PerfResult, error) {
	pool, err := ants.NewPool(opts.Threads)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	registry := gometrics.NewRegistry()
	results := make([]PerfResult, 0, len(benchmarks))

	for _, b := range benchmarks {
		if shouldSkip(b.Name, opts.Skip) {
			r := PerfResult{Name: b.Name, Skipped: true}
			printResult(r)
			results = append(results, r)
			continue
		}

		r, err := runBenchmark(pool, registry, b, opts.Ops)
		if err != nil {
			return results, fmt.Errorf("(%s) %w", b.Name, err)
		}
		printResult(r)
		results = append(results, r)
	}
	return results, nil
}

func runBenchmark(pool *ants.Pool, registry gometrics.Registry, b Benchmark, ops int) (PerfResult, error) {
	if b.Setup != nil {
		if err := b.Setup(); err != nil {
			return PerfResult{}, fmt.Errorf("setup failed: %w", err)
		}
	}

	timer := gometrics.GetOrRegisterTimer(b.Name+".latency", registry)
	errCount := gometrics.GetOrRegisterCounter(b.Name+".errors", registry)

	var (
		wg       sync.WaitGroup
		firstErr error
		errOnce  sync.Once
	)
	start := time.Now()
	for i := 0; i < ops; i++ {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			opStart := time.Now()
			if err := b.Op(i); err != nil {
				errCount.Inc(1)
				errOnce.Do(func() { firstErr = err })
				return
			}
			timer.UpdateSince(opStart)
		})
		if err != nil {
			wg.Done()
			return PerfResult{}, err
		}
	}
	wg.Wait()
	elapsed := time.Since(start)

	if firstErr != nil {
		fmt.Printf("(%s) - %d errors, first: %v\n", b.Name, errCount.Count(), firstErr)
	}

	if b.Cleanup != nil {
		if err := b.Cleanup(); err != nil {
			fmt.Printf("(%s) - cleanup failed: %v\n", b.Name, err)
		}
	}

	return PerfResult{
		Name:    b.Name,
		Ops:     timer.Count(),
		Errors:  errCount.Count(),
		Elapsed: elapsed,
		Mean:    time.Duration(timer.Mean()),
		P50:     time.Duration(timer.Percentile(0.5)),
		P99:     time.Duration(timer.Percentile(0.99)),
		Max:     time.Duration(timer.Max()),
	}, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string, skip []string) bool {
	for _, s := range skip {
		if test == s {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(r PerfResult) {
	if r.Skipped {
		fmt.Printf("%-20sskipped\n", r.Name)
		return
	}
	fmt.Printf("%-20s%8.0f ops/sec\tmean %s\tp50 %s\tp99 %s\tmax %s\terrors %d\n",
		r.Name, r.OpsPerSec(), r.Mean, r.P50, r.P99, r.Max, r.Errors)
}

// WriteResultsToCSV writes benchmark results together with the connection they ran on to a CSV file
func WriteResultsToCSV(csvPath string, results []PerfResult, conn *Connection, opts PerfOptions) error {
	config := conn.Config

	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write header
	header := []string{
		"Test", "Skipped", "Ops", "Errors", "OpsPerSec", "MeanNs", "P50Ns", "P99Ns", "MaxNs",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport", "Threads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		row := []string{
			r.Name,
			strconv.FormatBool(r.Skipped),
			strconv.FormatInt(r.Ops, 10),
			strconv.FormatInt(r.Errors, 10),
			fmt.Sprintf("%.0f", r.OpsPerSec()),
			strconv.FormatInt(r.Mean.Nanoseconds(), 10),
			strconv.FormatInt(r.P50.Nanoseconds(), 10),
			strconv.FormatInt(r.P99.Nanoseconds(), 10),
			strconv.FormatInt(r.Max.Nanoseconds(), 10),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(conn.ShardId, 10),
			conn.Serializer.Name(),
			conn.Transport.Name(),
			strconv.Itoa(opts.Threads),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.Name, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
