package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/heapgraph-analysis/internal/service"
)

var (
	// Analyze command flags
	inputFile  string
	objectKey  string
	outputDir  string
	format     string
	strictMode bool
	minPercent float64
	publishKey string
	workers    int
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a heap dump stream",
	Long: `Analyze a heap dump stream and generate retained-memory flame graphs.

The analyze command reads line-delimited JSON heap graph records from a
local file or from object storage, reconstructs the reference graph per
snapshot and writes one flame graph file per snapshot.

Output formats:
  - json    : flame graph tree as JSON (default)
  - json.gz : gzipped JSON
  - folded  : collapsed class paths with self sizes, one per line

When result persistence is enabled in the configuration, each snapshot
summary and its flamegraph rows are stored in the database as well.

Additional dump files can be passed as positional arguments; they are
analyzed concurrently.`,
	Args: cobra.ArbitraryArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Set dynamic example using actual binary name
	binName := BinName()
	analyzeCmd.Example = `  # Analyze a local heap dump stream
  ` + binName + ` analyze -i ./heap_dump.jsonl -o ./output

  # Analyze a dump stored in the configured object storage
  ` + binName + ` analyze -c ./config.yaml --key dumps/heap_dump.jsonl

  # Fail on the first malformed record
  ` + binName + ` analyze -i ./heap_dump.jsonl --strict

  # Drop flame graph nodes below 0.5% of retained size
  ` + binName + ` analyze -i ./heap_dump.jsonl --min-percent 0.5

  # Upload results back to object storage after analysis
  ` + binName + ` analyze --key dumps/heap_dump.jsonl --publish results/`

	// Input/Output flags
	analyzeCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input heap dump stream file")
	analyzeCmd.Flags().StringVar(&objectKey, "key", "", "Object storage key of the heap dump stream")
	analyzeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides config)")
	analyzeCmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json, json.gz, folded (overrides config)")

	// Analysis configuration flags
	analyzeCmd.Flags().BoolVar(&strictMode, "strict", false, "Fail on the first malformed record")
	analyzeCmd.Flags().Float64Var(&minPercent, "min-percent", 0, "Drop nodes below this percentage of retained size")
	analyzeCmd.Flags().StringVar(&publishKey, "publish", "", "Object storage key prefix to upload results to")
	analyzeCmd.Flags().IntVar(&workers, "workers", 4, "Concurrent analyses when multiple files are given")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	conf := GetConfig()

	if inputFile == "" && objectKey == "" && len(args) == 0 {
		return fmt.Errorf("either --input or --key is required")
	}
	if inputFile != "" && objectKey != "" {
		return fmt.Errorf("--input and --key are mutually exclusive")
	}

	// Apply command line overrides
	if outputDir != "" {
		conf.Analysis.OutputDir = outputDir
	}
	if format != "" {
		conf.Analysis.OutputFormat = format
	}
	if strictMode {
		conf.Analysis.StrictMode = true
	}
	if minPercent > 0 {
		conf.Analysis.MinPercent = minPercent
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	svc, err := service.New(conf, log)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	ctx := cmd.Context()
	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer svc.Close()

	log.Info("=== Heap Graph Analysis ===")
	if inputFile != "" {
		log.Info("Input file:    %s", inputFile)
	} else {
		log.Info("Input key:     %s", objectKey)
	}
	log.Info("Output dir:    %s", conf.Analysis.OutputDir)
	log.Info("Output format: %s", conf.Analysis.OutputFormat)
	log.Info("")

	startTime := time.Now()
	var results []*service.AnalysisResult
	switch {
	case objectKey != "":
		var result *service.AnalysisResult
		result, err = svc.AnalyzeObject(ctx, objectKey)
		results = append(results, result)
	case len(args) > 0:
		paths := args
		if inputFile != "" {
			paths = append([]string{inputFile}, paths...)
		}
		results, err = svc.AnalyzeFiles(ctx, paths, workers)
	default:
		var result *service.AnalysisResult
		result, err = svc.AnalyzeFile(ctx, inputFile)
		results = append(results, result)
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	analysisTime := time.Since(startTime)

	for _, result := range results {
		printResults(log, result)

		if publishKey != "" {
			for _, snap := range result.Snapshots {
				key := publishKey + filepath.Base(snap.OutputPath)
				if err := svc.PublishOutput(ctx, key, snap.OutputPath); err != nil {
					return err
				}
				log.Info("Published %s", key)
			}
		}
	}

	saveSummary(results, conf.Analysis.OutputDir, analysisTime)

	log.Info("")
	log.Info("=== Analysis Complete ===")
	log.Info("Output files are in: %s", conf.Analysis.OutputDir)

	return nil
}

func printResults(log interface {
	Info(format string, args ...interface{})
}, result *service.AnalysisResult) {
	log.Info("=== Analysis Results ===")
	log.Info("Source:    %s", result.Source)
	log.Info("Records:   %d (%d skipped)", result.Records, result.Skipped)
	log.Info("Snapshots: %d", len(result.Snapshots))
	log.Info("")

	for _, snap := range result.Snapshots {
		log.Info("Snapshot upid=%d ts=%d", snap.Upid, snap.GraphSampleTS)
		log.Info("  Retained size: %d bytes across %d rows", snap.TotalRetained, snap.Rows)
		log.Info("  Output:        %s", snap.OutputPath)
		if snap.SnapshotID != 0 {
			log.Info("  Snapshot ID:   %d", snap.SnapshotID)
		}
	}

	// Surface soft-failure counters when any fired
	for name, count := range result.Stats {
		if count > 0 {
			log.Info("  stat %s: %d", name, count)
		}
	}
}

func saveSummary(results []*service.AnalysisResult, outputDir string, analysisTime time.Duration) {
	summary := map[string]interface{}{
		"results":          results,
		"created_at":       time.Now().Format(time.RFC3339),
		"analysis_time_ms": analysisTime.Milliseconds(),
	}

	summaryFile := filepath.Join(outputDir, "summary.json")
	data, _ := json.MarshalIndent(summary, "", "  ")
	os.WriteFile(summaryFile, data, 0644)
}
