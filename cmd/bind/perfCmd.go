package bind

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dBind/cmd/util"
	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dBind servers",
		Long:    "Runs parallel benchmarks of the binding operations against a server. All bindings the benchmarks create belong to users with the prefix __perf and are deleted afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfPrefix     = "__perf"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)

	// perfRun makes ids unique across runs against the same server
	perfRun = strconv.FormatInt(time.Now().UnixNano(), 36)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. new,query)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "channels"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different channel ids (and users) to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(1, viper.GetInt("channels"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dBind servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	benchmarks := []struct {
		name string
		fn   func(b *testing.B)
	}{
		{"new", benchNew},
		{"resend", benchResend},
		{"query", benchQuery},
		{"del", benchDel},
		{"mixed", benchMixed},
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		if shouldSkip(bm.name) {
			printResult(bm.name, testing.BenchmarkResult{})
			continue
		}
		result := testing.Benchmark(bm.fn)
		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

// benchNew binds a fresh channel id on every operation
func benchNew(b *testing.B) {
	var seq atomic.Int64
	user := fmt.Sprintf("%s-%s-new", perfPrefix, perfRun)

	b.Cleanup(func() {
		for i := int64(0); i < seq.Load(); i++ {
			if err := bindClient.Delete(user, fmt.Sprintf("%s-new-%d", perfRun, i)); err != nil {
				log.Printf("(new) - error deleting binding: %v\n", err)
			}
		}
	})

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			channel := fmt.Sprintf("%s-new-%d", perfRun, seq.Add(1)-1)
			if _, err := bindClient.New(user, channel); err != nil {
				log.Printf("(new) - error creating binding: %v\n", err)
			}
		}
	})
}

// benchResend reissues codes of existing pending bindings
func benchResend(b *testing.B) {
	getChannel, getUser, iter := getBindings("resend")

	iter(func(user, channel string) {
		if _, err := bindClient.New(user, channel); err != nil {
			log.Printf("(resend) - error preparing binding: %v\n", err)
		}
	})
	b.Cleanup(func() { deleteAll("resend", iter) })

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			// concurrent resends of the same channel may conflict, that is part of the measurement
			if _, err := bindClient.New(getUser(counter), getChannel(counter)); err != nil && !isConflict(err) {
				log.Printf("(resend) - error reissuing code: %v\n", err)
			}
			counter++
		}
	})
}

// benchQuery asks for all users of the key spread, half of them have a binding
func benchQuery(b *testing.B) {
	getChannel, getUser, iter := getBindings("query")

	users := make([]string, 0, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		users = append(users, getUser(i))
		if i%2 == 0 {
			if _, err := bindClient.New(getUser(i), getChannel(i)); err != nil {
				log.Printf("(query) - error preparing binding: %v\n", err)
			}
		}
	}
	b.Cleanup(func() { deleteAll("query", iter) })

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := bindClient.Query(users); err != nil {
				log.Printf("(query) - error querying users: %v\n", err)
			}
		}
	})
}

// benchDel deletes bindings that were never created (the no-op path of del)
func benchDel(b *testing.B) {
	getChannel, getUser, _ := getBindings("del")

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := bindClient.Delete(getUser(counter), getChannel(counter)); err != nil && !isConflict(err) {
				log.Printf("(del) - error deleting binding: %v\n", err)
			}
			counter++
		}
	})
}

// benchMixed cycles through new, resend, query and del
func benchMixed(b *testing.B) {
	getChannel, getUser, iter := getBindings("mixed")
	b.Cleanup(func() { deleteAll("mixed", iter) })

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			user, channel := getUser(counter/4), getChannel(counter/4)

			var err error
			switch counter % 4 {
			case 0, 1: // new, then resend
				_, err = bindClient.New(user, channel)
			case 2: // query
				_, err = bindClient.Query([]string{user})
			case 3: // del
				err = bindClient.Delete(user, channel)
			}

			if err != nil && !isConflict(err) {
				log.Printf("(mixed) - error performing operation (%d): %v\n", counter%4, err)
			}
			counter++
		}
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// getBindings creates test users and channel ids and functions to work with them.
// Channel i belongs to user i.
func getBindings(prefix string) (channel func(int) string, user func(int) string, iter func(func(user, channel string))) {
	users := make([]string, perfKeySpread)
	channels := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		users[i] = fmt.Sprintf("%s-%s-%s-%d", perfPrefix, perfRun, prefix, i)
		channels[i] = fmt.Sprintf("%s-%s-gcm-%d", perfRun, prefix, i)
	}

	// Functions to get an id by index (with wraparound)
	channel = func(i int) string { return channels[i%perfKeySpread] }
	user = func(i int) string { return users[i%perfKeySpread] }

	// Function to iterate over all bindings and apply a function to each
	iter = func(fn func(user, channel string)) {
		for i := range users {
			fn(users[i], channels[i])
		}
	}

	return channel, user, iter
}

func deleteAll(test string, iter func(func(user, channel string))) {
	iter(func(user, channel string) {
		if err := bindClient.Delete(user, channel); err != nil {
			log.Printf("(%s) - error deleting binding: %v\n", test, err)
		}
	})
}

func isConflict(err error) bool {
	return errors.Is(err, binding.ErrConflict)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec",
		"Endpoints", "TimeoutSec", "RetryCount", "ShardID", "Serializer",
		"Threads", "Channels",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		nsPerOp := math.Max(float64(result.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.FormatUint(config.ShardID, 10),
			viper.GetString("serializer"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return writer.Error()
}
