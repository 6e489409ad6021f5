// Package service wires storage, ingestion and flamegraph generation into
// the heap-graph analysis pipeline.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heapgraph-analysis/internal/flamegraph"
	"github.com/heapgraph-analysis/internal/heapgraph"
	"github.com/heapgraph-analysis/internal/ingest"
	"github.com/heapgraph-analysis/internal/repository"
	"github.com/heapgraph-analysis/internal/storage"
	"github.com/heapgraph-analysis/pkg/compression"
	"github.com/heapgraph-analysis/pkg/config"
	apperrors "github.com/heapgraph-analysis/pkg/errors"
	"github.com/heapgraph-analysis/pkg/filter"
	"github.com/heapgraph-analysis/pkg/parallel"
	"github.com/heapgraph-analysis/pkg/utils"
)

// tracerName identifies spans emitted by this package.
const tracerName = "heapgraph-analyzer/service"

// Service runs the analysis pipeline: fetch a heap dump stream, ingest it
// into a tracker, build per-snapshot flamegraphs and publish the results.
type Service struct {
	config  *config.Config
	logger  utils.Logger
	repos   *repository.Repositories
	storage storage.Storage
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger) (*Service, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "config is required")
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	return &Service{
		config: cfg,
		logger: logger,
	}, nil
}

// Initialize initializes storage and, when enabled, the result database.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("Initializing service components...")

	if err := s.config.EnsureDataDir(); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to create data directories", err)
	}

	if err := s.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if s.config.Database.Enabled {
		if err := s.initDatabase(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
	} else {
		s.logger.Info("Result persistence disabled, writing output files only")
	}

	s.logger.Info("Service components initialized")
	return nil
}

// initStorage initializes the object storage.
func (s *Service) initStorage() error {
	s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}

	s.storage = store
	return nil
}

// initDatabase initializes the database connection and repositories.
func (s *Service) initDatabase() error {
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)

	dbConfig := &repository.DBConfig{
		Type:     s.config.Database.Type,
		Host:     s.config.Database.Host,
		Port:     s.config.Database.Port,
		Database: s.config.Database.Database,
		User:     s.config.Database.User,
		Password: s.config.Database.Password,
		Path:     s.config.Database.Path,
		MaxConns: s.config.Database.MaxConns,
	}

	gormDB, err := repository.NewGormDB(dbConfig)
	if err != nil {
		return err
	}
	if err := repository.AutoMigrate(gormDB); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to migrate schema", err)
	}

	s.repos = repository.NewRepositories(gormDB, s.config.Database.Type)
	s.logger.Info("Database connection established")

	return nil
}

// Close releases service resources.
func (s *Service) Close() error {
	if s.repos != nil {
		if err := s.repos.Close(); err != nil {
			s.logger.Error("Failed to close database connection: %v", err)
			return err
		}
	}
	return nil
}

// Repositories exposes the result repositories, or nil when persistence is
// disabled.
func (s *Service) Repositories() *repository.Repositories {
	return s.repos
}

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.repos != nil {
		if err := s.repos.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// SnapshotResult describes one analyzed snapshot.
type SnapshotResult struct {
	Upid          uint32 `json:"upid"`
	GraphSampleTS int64  `json:"graph_sample_ts"`
	Rows          int    `json:"rows"`
	TotalRetained int64  `json:"total_retained"`
	// Categories breaks the retained size down by class category, for
	// example jdk vs application code.
	Categories map[string]int64 `json:"categories,omitempty"`
	OutputPath string           `json:"output_path,omitempty"`
	// SnapshotID is the persisted snapshot id, zero when persistence is
	// disabled.
	SnapshotID int64 `json:"snapshot_id,omitempty"`
}

// AnalysisResult is the outcome of one analysis run.
type AnalysisResult struct {
	Source    string           `json:"source"`
	Records   int              `json:"records"`
	Skipped   int              `json:"skipped"`
	Stats     map[string]int64 `json:"stats,omitempty"`
	Snapshots []SnapshotResult `json:"snapshots"`
}

// AnalyzeFile analyzes a heap dump stream from a local file. Compressed
// dumps (gzip or zstd, by file suffix) are decompressed transparently.
func (s *Service) AnalyzeFile(ctx context.Context, path string) (*AnalysisResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("cannot open %s", path), err)
	}
	defer f.Close()

	name := filepath.Base(path)
	reader, name, err := maybeDecompress(name, f)
	if err != nil {
		return nil, err
	}

	return s.Analyze(ctx, name, reader)
}

// AnalyzeFiles analyzes several heap dump files concurrently. Results come
// back in input order; the first failure aborts the batch.
func (s *Service) AnalyzeFiles(ctx context.Context, paths []string, workers int) ([]*AnalysisResult, error) {
	if workers <= 0 {
		workers = len(paths)
	}

	pool := parallel.NewWorkerPool[string, *AnalysisResult](
		parallel.DefaultPoolConfig().WithWorkers(workers))
	taskResults := pool.ExecuteFunc(ctx, paths,
		func(ctx context.Context, path string) (*AnalysisResult, error) {
			return s.AnalyzeFile(ctx, path)
		})

	results := make([]*AnalysisResult, len(taskResults))
	for i, tr := range taskResults {
		if tr.Error != nil {
			return nil, fmt.Errorf("analysis of %s failed: %w", paths[i], tr.Error)
		}
		results[i] = tr.Result
	}
	return results, nil
}

// maybeDecompress unwraps a compressed dump stream based on its file
// suffix and strips the suffix from the name.
func maybeDecompress(name string, r io.Reader) (io.Reader, string, error) {
	switch {
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".zst"):
	default:
		return r, name, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("cannot read %s", name), err)
	}
	decompressed, err := compression.AutoDecompress(data)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("cannot decompress %s", name), err)
	}

	return bytes.NewReader(decompressed), strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".zst"), nil
}

// AnalyzeObject downloads a heap dump stream from object storage and
// analyzes it.
func (s *Service) AnalyzeObject(ctx context.Context, key string) (*AnalysisResult, error) {
	if s.storage == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "storage is not initialized")
	}

	rc, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDownloadError, fmt.Sprintf("cannot download %s", key), err)
	}
	defer rc.Close()

	reader, name, err := maybeDecompress(filepath.Base(key), rc)
	if err != nil {
		return nil, err
	}

	return s.Analyze(ctx, name, reader)
}

// Analyze runs the full pipeline on one heap dump stream. The name is used
// for output file naming and log context only.
func (s *Service) Analyze(ctx context.Context, name string, r io.Reader) (*AnalysisResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "heapgraph.analyze")
	defer span.End()
	span.SetAttributes(attribute.String("heapgraph.source", name))

	timer := utils.NewTimer("HeapGraphAnalysis", utils.WithLogger(s.logger))

	store := heapgraph.NewStore()
	tracker := heapgraph.NewTracker(store)
	tracker.SetLogger(s.logger)
	for prefix, pkg := range s.config.Analysis.KnownLocations {
		tracker.AddKnownLocation(prefix, pkg)
	}

	decoder := ingest.NewDecoder(&ingest.DecoderOptions{
		StrictMode: s.config.Analysis.StrictMode,
	})
	decoder.SetLogger(s.logger)

	ingestPhase := timer.Start("ingest")
	decoded, err := decoder.Decode(ctx, r, tracker)
	ingestPhase.Stop()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Ingested %d records from %s (%d skipped, %d objects)",
		decoded.Records, name, decoded.Skipped, store.ObjectCount())

	if len(decoded.Snapshots) == 0 {
		return nil, apperrors.New(apperrors.CodeEmptyFile, fmt.Sprintf("no heap snapshots in %s", name))
	}

	result := &AnalysisResult{
		Source:  name,
		Records: decoded.Records,
		Skipped: decoded.Skipped,
		Stats:   store.Stats().Snapshot(),
	}

	buildPhase := timer.Start("flamegraphs")
	for _, snap := range decoded.Snapshots {
		snapResult, err := s.analyzeSnapshot(ctx, name, tracker, snap)
		if err != nil {
			buildPhase.Stop()
			return nil, err
		}
		result.Snapshots = append(result.Snapshots, *snapResult)
	}
	buildPhase.Stop()

	timer.PrintSummary()
	span.SetAttributes(attribute.Int("heapgraph.snapshots", len(result.Snapshots)))

	return result, nil
}

// analyzeSnapshot builds, writes and optionally persists the flamegraph of
// one snapshot.
func (s *Service) analyzeSnapshot(ctx context.Context, name string, tracker *heapgraph.Tracker, snap heapgraph.Snapshot) (*SnapshotResult, error) {
	rows := tracker.BuildFlamegraph(snap.GraphSampleTS, snap.Upid)
	if rows == nil {
		return nil, apperrors.New(apperrors.CodeAnalysisError,
			fmt.Sprintf("snapshot (upid=%d, ts=%d) has no flamegraph", snap.Upid, snap.GraphSampleTS))
	}

	generator := flamegraph.NewGenerator(&flamegraph.GeneratorOptions{
		MinPercent: s.config.Analysis.MinPercent,
	})
	fg, err := generator.Generate(ctx, snap.Upid, snap.GraphSampleTS, rows)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAnalysisError, "failed to generate flamegraph", err)
	}

	snapResult := &SnapshotResult{
		Upid:          uint32(snap.Upid),
		GraphSampleTS: snap.GraphSampleTS,
		Rows:          len(rows),
		TotalRetained: fg.TotalSize,
		Categories:    categorizeRows(rows),
	}

	outputPath, err := s.writeOutput(name, snap, fg)
	if err != nil {
		return nil, err
	}
	snapResult.OutputPath = outputPath

	if s.repos != nil {
		summary := &repository.SnapshotSummary{
			Upid:          uint32(snap.Upid),
			GraphSampleTS: snap.GraphSampleTS,
			ObjectCount:   int64(tracker.Store().ObjectCount()),
			RootCount:     int64(len(tracker.Roots(snap.Upid, snap.GraphSampleTS))),
			TotalRetained: fg.TotalSize,
			Stats:         tracker.Store().Stats().Snapshot(),
		}
		id, err := s.repos.Snapshot.SaveSnapshot(ctx, summary, rows)
		if err != nil {
			return nil, err
		}
		snapResult.SnapshotID = id
		s.logger.Info("Persisted snapshot %d (upid=%d, ts=%d, %d rows)",
			id, snap.Upid, snap.GraphSampleTS, len(rows))
	}

	return snapResult, nil
}

// writeOutput writes the flamegraph to the configured output directory and
// returns the file path.
func (s *Service) writeOutput(name string, snap heapgraph.Snapshot, fg *flamegraph.FlameGraph) (string, error) {
	w, ext := s.outputWriter()

	base := strings.TrimSuffix(name, filepath.Ext(name))
	fileName := fmt.Sprintf("%s_%d_%d.%s", base, snap.Upid, snap.GraphSampleTS, ext)
	outputPath := s.config.GetOutputPath(fileName)

	f, err := os.Create(outputPath)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUploadError, fmt.Sprintf("cannot create %s", outputPath), err)
	}
	defer f.Close()

	if err := w.Write(fg, f); err != nil {
		return "", apperrors.Wrap(apperrors.CodeUploadError, fmt.Sprintf("cannot write %s", outputPath), err)
	}

	s.logger.Info("Wrote flamegraph to %s", outputPath)
	return outputPath, nil
}

// outputWriter selects the flamegraph writer for the configured format.
func (s *Service) outputWriter() (flamegraph.Writer, string) {
	switch s.config.Analysis.OutputFormat {
	case "json.gz":
		return flamegraph.NewGzipWriter(), "json.gz"
	case "folded":
		return flamegraph.NewFoldedWriter(), "folded"
	default:
		return flamegraph.NewJSONWriter(), "json"
	}
}

// categorizeRows sums self sizes per class category.
func categorizeRows(rows []heapgraph.FlamegraphRow) map[string]int64 {
	f := filter.NewClassFilter()
	categories := make(map[string]int64)
	for i := range rows {
		if rows[i].Size == 0 {
			continue
		}
		categories[f.Classify(rows[i].Name).String()] += rows[i].Size
	}
	return categories
}

// PublishOutput uploads a written output file back to object storage under
// the given key.
func (s *Service) PublishOutput(ctx context.Context, key, localPath string) error {
	if s.storage == nil {
		return apperrors.New(apperrors.CodeConfigError, "storage is not initialized")
	}
	if err := s.storage.UploadFile(ctx, key, localPath); err != nil {
		return apperrors.Wrap(apperrors.CodeUploadError, fmt.Sprintf("cannot upload %s", key), err)
	}
	return nil
}
