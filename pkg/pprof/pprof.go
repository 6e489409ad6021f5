// Package pprof captures runtime profiles of the analyzer itself.
// Ingesting a multi-gigabyte dump keeps the process busy for minutes;
// periodic snapshots show where that time and memory go without
// attaching anything to the process.
//
// Two modes are supported. File mode writes profile snapshots to a
// directory at a fixed interval, which suits one-shot CLI runs. HTTP
// mode serves the standard /debug/pprof endpoints for on-demand
// collection from a long-lived process.
package pprof

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"
	"time"
)

// Mode selects how profiles are collected.
type Mode string

const (
	// ModeFile writes periodic snapshots into an output directory.
	ModeFile Mode = "file"
	// ModeHTTP serves the /debug/pprof endpoints.
	ModeHTTP Mode = "http"
)

// ProfileType names one runtime profile.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes lists every supported profile.
func AllProfileTypes() []ProfileType {
	return []ProfileType{
		ProfileCPU, ProfileHeap, ProfileGoroutine,
		ProfileBlock, ProfileMutex, ProfileAllocs,
	}
}

// DefaultProfileTypes is the set collected when none are named.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap, ProfileGoroutine}
}

// ParseProfileTypes parses a comma-separated list of profile names. An
// empty string yields the defaults.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if s == "" {
		return DefaultProfileTypes(), nil
	}

	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	var types []ProfileType
	for _, part := range strings.Split(s, ",") {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(part)))
		if !valid[pt] {
			return nil, fmt.Errorf("unknown profile type: %q", part)
		}
		types = append(types, pt)
	}
	return types, nil
}

// Config configures the collector.
type Config struct {
	Mode     Mode
	Profiles []ProfileType

	// OutputDir receives snapshot files in file mode.
	OutputDir string

	// Interval between snapshots in file mode.
	Interval time.Duration

	// CPUDuration is how long each CPU snapshot samples. Must be
	// shorter than Interval.
	CPUDuration time.Duration

	// Addr is the listen address in HTTP mode.
	Addr string
}

// DefaultConfig returns file-mode defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:        ModeFile,
		Profiles:    DefaultProfileTypes(),
		OutputDir:   "./pprof",
		Interval:    30 * time.Second,
		CPUDuration: 10 * time.Second,
		Addr:        ":6060",
	}
}

// Validate checks the configuration for the selected mode.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFile:
		if len(c.Profiles) == 0 {
			return fmt.Errorf("at least one profile type is required")
		}
		if c.OutputDir == "" {
			return fmt.Errorf("output directory is required")
		}
		if c.Interval < time.Second {
			return fmt.Errorf("interval must be at least 1 second")
		}
		if c.CPUDuration < time.Second {
			return fmt.Errorf("CPU duration must be at least 1 second")
		}
		if c.CPUDuration >= c.Interval {
			return fmt.Errorf("CPU duration must be less than interval")
		}
	case ModeHTTP:
		if c.Addr == "" {
			return fmt.Errorf("listen address is required")
		}
	default:
		return fmt.Errorf("invalid pprof mode: %q (valid: file, http)", c.Mode)
	}
	return nil
}

// Collector runs the configured collection mode.
type Collector struct {
	cfg *Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
	server *httpServer

	mu      sync.Mutex
	running bool
	lastErr error
}

// NewCollector validates the config and builds a collector.
func NewCollector(cfg *Config) (*Collector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Collector{cfg: cfg}, nil
}

// OutputDir returns the snapshot directory.
func (c *Collector) OutputDir() string {
	return c.cfg.OutputDir
}

// LastError returns the most recent snapshot failure, if any.
func (c *Collector) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start begins collection in the background.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("collector is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	switch c.cfg.Mode {
	case ModeHTTP:
		srv, err := startHTTPServer(c.cfg.Addr)
		if err != nil {
			cancel()
			return err
		}
		c.server = srv
	default:
		if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
			cancel()
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		c.wg.Add(1)
		go c.fileLoop(ctx)
	}

	c.running = true
	return nil
}

// Stop ends collection. In file mode a final snapshot of the non-CPU
// profiles is written so short runs still produce data.
func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	if c.server != nil {
		return c.server.shutdown()
	}

	for _, pt := range c.cfg.Profiles {
		if pt == ProfileCPU {
			continue
		}
		c.snapshotToFile(pt)
	}
	return nil
}

func (c *Collector) fileLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pt := range c.cfg.Profiles {
				if pt == ProfileCPU {
					c.snapshotCPUToFile(ctx)
				} else {
					c.snapshotToFile(pt)
				}
			}
		}
	}
}

func (c *Collector) snapshotToFile(pt ProfileType) {
	data, err := captureProfile(pt)
	if err != nil {
		c.recordError(err)
		return
	}
	c.writeSnapshot(pt, data)
}

func (c *Collector) snapshotCPUToFile(ctx context.Context) {
	var buf bytes.Buffer
	if err := pprof.StartCPUProfile(&buf); err != nil {
		c.recordError(fmt.Errorf("failed to start CPU profile: %w", err))
		return
	}
	select {
	case <-time.After(c.cfg.CPUDuration):
	case <-ctx.Done():
	}
	pprof.StopCPUProfile()
	c.writeSnapshot(ProfileCPU, buf.Bytes())
}

func (c *Collector) writeSnapshot(pt ProfileType, data []byte) {
	name := fmt.Sprintf("%s_%s.pprof", pt, time.Now().Format("20060102T150405"))
	path := filepath.Join(c.cfg.OutputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		c.recordError(fmt.Errorf("failed to write %s snapshot: %w", pt, err))
	}
}

func (c *Collector) recordError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// captureProfile snapshots one of the lookup-based runtime profiles.
func captureProfile(pt ProfileType) ([]byte, error) {
	var buf bytes.Buffer
	if pt == ProfileHeap {
		// A GC beforehand makes the heap profile reflect live objects.
		runtime.GC()
		if err := pprof.WriteHeapProfile(&buf); err != nil {
			return nil, fmt.Errorf("failed to write heap profile: %w", err)
		}
		return buf.Bytes(), nil
	}

	p := pprof.Lookup(string(pt))
	if p == nil {
		return nil, fmt.Errorf("unknown profile type: %s", pt)
	}
	if err := p.WriteTo(&buf, 0); err != nil {
		return nil, fmt.Errorf("failed to write %s profile: %w", pt, err)
	}
	return buf.Bytes(), nil
}
