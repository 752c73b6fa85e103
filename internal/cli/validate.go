package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/pipeline"
	"github.com/ppiankov/almanac/internal/worker"
	"github.com/spf13/cobra"
)

var (
	outJSON      string
	workers      int
	batchTimeout time.Duration
	strategy     string
	digestScope  string
	lineScoped   bool
	cacheDir     string
	noCache      bool
	noRobots     bool
	httpProxy    string
	httpsProxy   string
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <events-file>",
	Short: "Validate a batch of candidate events",
	Long: `Validate reads candidate events from a YAML or JSON file and runs each
through the evidence tiers. Accepted events keep or correct their year;
the rest are rejected with the method and reason that decided them.

The events file is a list, or a mapping with an "events" key:

  - title: First pulsar observed
    claimed_date: {month: 11, day: 28}
    year: 1967
    search_terms: [pulsar, Bell]
  - title: Eiffel Tower opens
    date: March 31, 1889

Example:
  almanac validate events.yaml
  almanac validate events.yaml --json results.json --workers 4
  almanac validate events.json --strategy trust-scored --cache-dir ~/.almanac/cache`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: stdout)")
	validateCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent workers (default: config)")
	validateCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
	validateCmd.Flags().StringVar(&strategy, "strategy", "", "search strategy (differential, trust-scored)")
	validateCmd.Flags().StringVar(&digestScope, "digest-scope", "", "day digest scope (all, persons)")
	validateCmd.Flags().BoolVar(&lineScoped, "digest-line-scoped", false, "require year and title on the same digest line")
	validateCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "persist the result cache under this directory")
	validateCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")
	validateCmd.Flags().BoolVar(&noRobots, "no-robots", false, "ignore robots.txt when fetching source pages")
	validateCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	validateCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyValidateFlags(cmd, cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Almanac Validation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Strategy:     %s\n", cfg.Pipeline.SearchStrategy)
	fmt.Fprintf(os.Stderr, "  Digest scope: %s\n", cfg.Pipeline.DigestScope)
	fmt.Fprintf(os.Stderr, "  Oracle:       %s/%s\n", cfg.Oracle.Provider, cfg.Oracle.Model)
	fmt.Fprintf(os.Stderr, "  Checker:      %s/%s\n", cfg.Checker.Provider, cfg.Checker.Model)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	logger := slog.Default()
	p, store, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers, logger.With("component", "batch"))
	report, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	if err := writeReport(report, outJSON); err != nil {
		return err
	}

	hits, misses := store.Stats()
	printSummary(os.Stderr, report, hits, misses)
	return nil
}

// applyValidateFlags overrides configuration with the flags the user set
func applyValidateFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	if cfg.Concurrency.Workers < 1 {
		cfg.Concurrency.Workers = 1
	}
	if flags.Changed("strategy") {
		cfg.Pipeline.SearchStrategy = strategy
	}
	if flags.Changed("digest-scope") {
		cfg.Pipeline.DigestScope = digestScope
	}
	if lineScoped {
		cfg.Pipeline.DigestLineScoped = true
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.PersistDir = cacheDir
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noRobots {
		cfg.HTTP.RespectRobots = false
	}
	if httpProxy != "" {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
}

// writeReport writes the JSON report to path, or stdout when path is empty
func writeReport(report *worker.Report, path string) (err error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Report written: %s\n", path)
	return nil
}

// printSummary writes the human tally of a batch
func printSummary(w io.Writer, report *worker.Report, hits, misses int64) {
	s := report.Stats

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Validation Complete\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Run:        %s\n", report.RunID)
	fmt.Fprintf(w, "  Total:      %d events\n", s.Total)
	fmt.Fprintf(w, "  Accepted:   %d (%d corrected)\n", s.Accepted, s.Corrected)
	fmt.Fprintf(w, "  Rejected:   %d\n", s.Rejected)
	fmt.Fprintf(w, "  Invalid:    %d\n", s.Invalid)
	fmt.Fprintf(w, "  Elapsed:    %v\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  Cache:      %d hits, %d misses\n", hits, misses)

	if len(s.ByMethod) > 0 {
		fmt.Fprintf(w, "\n  By method:\n")
		for _, k := range sortedKeys(s.ByMethod) {
			fmt.Fprintf(w, "    %-14s %d\n", k, s.ByMethod[k])
		}
	}
	if len(s.ByReason) > 0 {
		fmt.Fprintf(w, "\n  By reason:\n")
		for _, k := range sortedKeys(s.ByReason) {
			fmt.Fprintf(w, "    %-26s %d\n", k, s.ByReason[k])
		}
	}
	fmt.Fprintf(w, "\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
