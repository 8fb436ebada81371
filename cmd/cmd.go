// Package cmd provides CLI command implementations for Sentinel.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/sentinel-go/internal/config"
	"github.com/Benny93/sentinel-go/internal/ingestion"
	"github.com/Benny93/sentinel-go/internal/logging"
	"github.com/Benny93/sentinel-go/internal/metrics"
	"github.com/Benny93/sentinel-go/internal/pipeline"
	"github.com/Benny93/sentinel-go/internal/server"
	"github.com/Benny93/sentinel-go/internal/storage"
	"github.com/Benny93/sentinel-go/internal/topology"
	"github.com/Benny93/sentinel-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Globals are the flags shared by every command.
type Globals struct {
	Config  string           `short:"c" default:"sentinel.yaml" type:"path" help:"Path to the YAML config file"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`
	Version kong.VersionFlag `help:"Show version information"`

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

func (g *Globals) out() io.Writer {
	if g.stdout == nil {
		return os.Stdout
	}
	return g.stdout
}

func (g *Globals) errOut() io.Writer {
	if g.stderr == nil {
		return os.Stderr
	}
	return g.stderr
}

func (g *Globals) in() io.Reader {
	if g.stdin == nil {
		return os.Stdin
	}
	return g.stdin
}

// app is the per-invocation state built from Globals.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Registry
	out     io.Writer
}

func (g *Globals) app() (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Quiet:   g.Quiet,
		Verbose: g.Verbose,
	}, g.errOut())
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: log, metrics: metrics.NewRegistry(), out: g.out()}, nil
}

func (a *app) loader() *ingestion.FileLoader {
	var news *ingestion.NewsClient
	if a.cfg.News.APIKey != "" {
		news = ingestion.NewNewsClient(ingestion.NewsOptions{
			APIKey:      a.cfg.News.APIKey,
			BaseURL:     a.cfg.News.BaseURL,
			Query:       a.cfg.News.Query,
			MaxArticles: a.cfg.News.MaxArticles,
			Timeout:     a.cfg.News.Timeout,
			Logger:      a.log,
		})
	}
	return &ingestion.FileLoader{
		RosterPath:        a.cfg.RosterPath,
		SignalsPath:       a.cfg.SignalsPath,
		News:              news,
		DefaultRelevance:  a.cfg.Relevance.DefaultScore,
		EstimateRelevance: a.cfg.Relevance.Estimate,
		Logger:            a.log,
		Metrics:           a.metrics,
	}
}

func (a *app) runner(rec pipeline.Recorder, progress pipeline.ProgressCallback) *pipeline.Runner {
	return pipeline.NewRunner(a.loader(), rec, pipeline.Options{
		TopN:     a.cfg.Simulation.TopN,
		Workers:  a.cfg.Simulation.Workers,
		Logger:   a.log,
		Metrics:  a.metrics,
		Progress: progress,
	})
}

// openStore opens the snapshot store for writing, creating it if needed.
func (a *app) openStore(persist bool) (storage.SnapshotStore, error) {
	store, err := storage.Open(a.cfg.DataDir, persist)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	return store, nil
}

// loadStore opens an existing snapshot store.
func (a *app) loadStore() (storage.SnapshotStore, error) {
	if _, err := os.Stat(filepath.Join(a.cfg.DataDir, "snapshots")); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no snapshots found at %s. Run 'sentinel analyze' first", a.cfg.DataDir)
	}
	return a.openStore(true)
}

// AnalyzeCmd runs a single monitoring cycle.
type AnalyzeCmd struct {
	NoPersist bool `help:"Do not record the cycle in the snapshot store"`
	JSON      bool `help:"Print the full cycle result as JSON"`
}

// Run executes the analyze command.
func (c *AnalyzeCmd) Run(g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	var progress pipeline.ProgressCallback
	if !g.Quiet && !c.JSON {
		progress = func(stage string, pct float64) {
			fmt.Fprintf(g.errOut(), "\r\033[K%s (%.0f%%)", stage, pct*100)
		}
	}

	res, err := a.runner(nil, progress).RunOnce(ctx)
	if progress != nil {
		fmt.Fprintln(g.errOut())
	}
	if err != nil {
		return fmt.Errorf("running cycle: %w", err)
	}

	var meta storage.SnapshotMeta
	if !c.NoPersist {
		if meta, err = a.save(ctx, res); err != nil {
			return err
		}
	}

	// JSON mode keeps stdout parseable.
	if c.JSON {
		if err := writeJSON(a.out, res); err != nil {
			return err
		}
		if !c.NoPersist && !g.Quiet {
			fmt.Fprintf(g.errOut(), "Saved cycle %s (%d bytes)\n", meta.ID, meta.SizeBytes)
		}
		return nil
	}

	printCycle(a.out, res)
	if !c.NoPersist {
		color.New(color.FgGreen).Fprintf(a.out, "\n✓ Saved cycle %s (%d bytes)\n", meta.ID, meta.SizeBytes)
	}
	return nil
}

// save records res in the persistent snapshot store.
func (a *app) save(ctx context.Context, res *pipeline.CycleResult) (storage.SnapshotMeta, error) {
	store, err := a.openStore(true)
	if err != nil {
		return storage.SnapshotMeta{}, err
	}
	defer func() { _ = store.Close() }()

	meta, err := store.Save(ctx, res)
	if err != nil {
		return storage.SnapshotMeta{}, fmt.Errorf("saving snapshot: %w", err)
	}
	return meta, nil
}

// RunCmd runs cycles continuously.
type RunCmd struct {
	Interval  time.Duration `help:"Time between cycles (overrides monitor.interval)"`
	Serve     bool          `help:"Also serve the HTTP read API"`
	NoPersist bool          `help:"Keep snapshots in memory only"`
}

// Run executes the run command.
func (c *RunCmd) Run(g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	interval := a.cfg.Monitor.Interval
	if c.Interval > 0 {
		interval = c.Interval
	}

	store, err := a.openStore(!c.NoPersist)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sigCtx, stop := signalContext()
	defer stop()

	runner := a.runner(storage.NewRecorder(store, a.log), nil)
	color.New(color.FgGreen).Fprintf(a.out, "Monitoring every %s (Ctrl+C to stop)\n", interval)

	eg, ctx := errgroup.WithContext(sigCtx)
	eg.Go(func() error {
		return runner.Monitor(ctx, interval, func(res *pipeline.CycleResult, err error) {
			if err == nil {
				printCycleLine(a.out, res)
			}
		})
	})
	if c.Serve {
		eg.Go(func() error {
			return server.New(store, a.metrics, a.log).ListenAndServe(ctx, a.cfg.Server.Addr)
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Monitoring stopped.")
	return nil
}

// WatchCmd re-runs a cycle whenever the input files change.
type WatchCmd struct {
	NoPersist bool `help:"Keep snapshots in memory only"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}

	store, err := a.openStore(!c.NoPersist)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signalContext()
	defer stop()

	runner := a.runner(storage.NewRecorder(store, a.log), nil)
	runCycle := func(ctx context.Context) {
		res, err := runner.RunOnce(ctx)
		if err != nil {
			a.log.Error("cycle failed", "error", err)
			return
		}
		printCycleLine(a.out, res)
	}

	files := []string{a.cfg.RosterPath}
	if a.cfg.SignalsPath != "" {
		files = append(files, a.cfg.SignalsPath)
	}

	fmt.Fprintln(a.out, "## Watch Mode")
	fmt.Fprintf(a.out, "Watching %s for changes (Ctrl+C to stop)\n\n", strings.Join(files, ", "))

	runCycle(ctx)
	err = ingestion.Watch(ctx, files, ingestion.DefaultDebounce, func(ctx context.Context, changed []string) {
		fmt.Fprintf(a.out, "Changed: %s\n", strings.Join(changed, ", "))
		runCycle(ctx)
	}, a.log)
	if err != nil {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Fprintln(a.out, "Watch mode stopped.")
	return nil
}

// HistoryCmd lists recorded cycles.
type HistoryCmd struct {
	Limit int `short:"n" default:"20" help:"Maximum cycles to list"`
}

// Run executes the history command.
func (c *HistoryCmd) Run(g *Globals) error {
	a, store, err := g.withStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	metas, err := store.List(context.Background(), c.Limit)
	if err != nil {
		return fmt.Errorf("listing cycles: %w", err)
	}
	if len(metas) == 0 {
		fmt.Fprintln(a.out, "No cycles recorded")
		return nil
	}
	printMetas(a.out, metas)
	return nil
}

// ShowCmd prints one recorded cycle.
type ShowCmd struct {
	ID   string `arg:"" optional:"" default:"latest" help:"Snapshot ID or 'latest'"`
	JSON bool   `help:"Print the stored snapshot as JSON"`
}

// Run executes the show command.
func (c *ShowCmd) Run(g *Globals) error {
	a, store, err := g.withStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap, err := loadSnapshot(context.Background(), store, c.ID)
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(a.out, snap)
	}

	fmt.Fprintf(a.out, "Snapshot %s (%d bytes)\n\n", snap.Meta.ID, snap.Meta.SizeBytes)
	printCycle(a.out, snap.Cycle)
	return nil
}

// DeleteCmd removes a recorded cycle.
type DeleteCmd struct {
	ID    string `arg:"" help:"Snapshot ID"`
	Force bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the delete command.
func (c *DeleteCmd) Run(g *Globals) error {
	a, store, err := g.withStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if !c.Force {
		fmt.Fprintf(a.out, "Delete cycle %s? [y/N] ", c.ID)
		var response string
		_, _ = fmt.Fscanln(g.in(), &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(a.out, "Aborted")
			return nil
		}
	}

	if err := store.Delete(context.Background(), c.ID); err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			return fmt.Errorf("cycle %s not found", c.ID)
		}
		return fmt.Errorf("deleting cycle: %w", err)
	}
	color.New(color.FgGreen).Fprintf(a.out, "Deleted cycle %s\n", c.ID)
	return nil
}

// StatsCmd prints snapshot store statistics.
type StatsCmd struct{}

// Run executes the stats command.
func (c *StatsCmd) Run(g *Globals) error {
	a, store, err := g.withStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	st, err := store.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	printStats(a.out, a.cfg.DataDir, st)
	return nil
}

// ExportCmd writes a recorded cycle as CSV files.
type ExportCmd struct {
	ID  string `arg:"" optional:"" default:"latest" help:"Snapshot ID or 'latest'"`
	Out string `short:"o" default:"exports" type:"path" help:"Output directory"`
}

// Run executes the export command.
func (c *ExportCmd) Run(g *Globals) error {
	a, store, err := g.withStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap, err := loadSnapshot(context.Background(), store, c.ID)
	if err != nil {
		return err
	}
	files, err := storage.ExportCSV(snap, c.Out)
	if err != nil {
		return fmt.Errorf("exporting cycle: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintf(a.out, "Cycle %s has no risks, scenarios or decisions to export\n", snap.Meta.ID)
		return nil
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ Exported cycle %s\n", snap.Meta.ID)
	for _, f := range files {
		fmt.Fprintf(a.out, "  %s\n", f)
	}
	return nil
}

// SearchCmd finds cycles by signal title.
type SearchCmd struct {
	Query string `arg:"" help:"Words that must all appear in a signal title"`
	Limit int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the search command.
func (c *SearchCmd) Run(g *Globals) error {
	a, store, err := g.withStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	metas, err := store.Search(context.Background(), c.Query, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(metas) == 0 {
		fmt.Fprintln(a.out, "No results found")
		return nil
	}
	printMetas(a.out, metas)
	return nil
}

// SimulateCmd runs a what-if disruption on a recorded topology.
type SimulateCmd struct {
	NodeID   string  `arg:"" help:"ID of the node to disrupt"`
	Severity float64 `short:"s" help:"Severity in (0,1]; defaults to the node's recorded risk score"`
	Cycle    string  `default:"latest" help:"Snapshot whose topology is used"`
	JSON     bool    `help:"Print the result as JSON"`
}

// Run executes the simulate command.
func (c *SimulateCmd) Run(g *Globals) error {
	a, store, err := g.withStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap, err := loadSnapshot(context.Background(), store, c.Cycle)
	if err != nil {
		return err
	}
	out, err := pipeline.WhatIf(snap.Cycle, c.NodeID, c.Severity, time.Now())
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(a.out, out)
	}
	printWhatIf(a.out, snap.Meta.ID, out)
	return nil
}

// GraphCmd builds the topology from the roster and prints its structure.
type GraphCmd struct {
	JSON bool `help:"Print nodes and edges as JSON"`
}

// Run executes the graph command.
func (c *GraphCmd) Run(g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}

	roster, err := ingestion.LoadRoster(a.cfg.RosterPath)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}
	sg, dropped := topology.Build(roster.Sources)
	if c.JSON {
		return writeJSON(a.out, sg.Snapshot())
	}

	longest, err := sg.LongestPath()
	if err != nil {
		longest = nil
	}
	printGraph(a.out, sg, longest, len(dropped)+len(roster.Dropped))
	return nil
}

// ServeCmd serves the HTTP read API.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	addr := a.cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}

	store, err := a.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signalContext()
	defer stop()

	fmt.Fprintf(g.errOut(), "Serving on %s\n", addr)
	return server.New(store, a.metrics, a.log).ListenAndServe(ctx, addr)
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run(g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	store, err := a.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signalContext()
	defer stop()

	// Note: No output to stdout - MCP server uses stdio for JSON-RPC only
	return mcp.NewServer(store, Version).Run(ctx)
}

// ConfigCmd prints the effective configuration.
type ConfigCmd struct{}

// Run executes the config command.
func (c *ConfigCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	if cfg.News.APIKey != "" {
		cfg.News.APIKey = "********"
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	_, err = g.out().Write(data)
	return err
}

// Helper functions

func (g *Globals) withStore() (*app, storage.SnapshotStore, error) {
	a, err := g.app()
	if err != nil {
		return nil, nil, err
	}
	store, err := a.loadStore()
	if err != nil {
		return nil, nil, err
	}
	return a, store, nil
}

func loadSnapshot(ctx context.Context, store storage.SnapshotStore, id string) (*storage.Snapshot, error) {
	var (
		snap *storage.Snapshot
		err  error
	)
	if id == "" || id == "latest" {
		snap, err = store.Latest(ctx)
	} else {
		snap, err = store.Load(ctx, id)
	}
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		if id == "" || id == "latest" {
			return nil, errors.New("no cycles recorded. Run 'sentinel analyze' first")
		}
		return nil, fmt.Errorf("cycle %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading cycle: %w", err)
	}
	return snap, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	// Commands
	Analyze    AnalyzeCmd  `cmd:"" help:"Run one monitoring cycle and record it"`
	Run        RunCmd      `cmd:"" help:"Run monitoring cycles continuously"`
	Watch      WatchCmd    `cmd:"" help:"Re-run a cycle when the roster or signals change"`
	History    HistoryCmd  `cmd:"" help:"List recorded cycles"`
	Show       ShowCmd     `cmd:"" help:"Show a recorded cycle"`
	Delete     DeleteCmd   `cmd:"" help:"Delete a recorded cycle"`
	Stats      StatsCmd    `cmd:"" help:"Show snapshot store statistics"`
	Export     ExportCmd   `cmd:"" help:"Export a recorded cycle as CSV"`
	Search     SearchCmd   `cmd:"" help:"Find cycles by signal title"`
	Simulate   SimulateCmd `cmd:"" help:"What-if disruption of one node"`
	Graph      GraphCmd    `cmd:"" help:"Show the supply network built from the roster"`
	Serve      ServeCmd    `cmd:"" help:"Serve the HTTP read API"`
	MCP        MCPCmd      `cmd:"" help:"Start MCP server (stdio transport)"`
	Setup      SetupCmd    `cmd:"" help:"Configure MCP clients (Qwen, Claude, Cursor)"`
	ShowConfig ConfigCmd   `cmd:"" name:"config" help:"Print the effective configuration"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("sentinel"),
		kong.Description("Supply chain risk sentinel: monitor signals, simulate disruptions, recommend actions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run(&c.Globals)
}
