// Package main implements the spanql CLI: run query scripts against a
// trace dump or a SQLite trace export. A single script comes from
// -query or -query-file; positional arguments are script files executed
// as a batch with the configured parallelism.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tracekit/spanql/internal/config"
	"github.com/tracekit/spanql/internal/module"
	"github.com/tracekit/spanql/internal/observability"
	"github.com/tracekit/spanql/internal/query/executor"
	"github.com/tracekit/spanql/internal/stdlib"
	"github.com/tracekit/spanql/internal/store"
	"github.com/tracekit/spanql/pkg/types"
)

type flags struct {
	tracePath  string
	sqlitePath string
	query      string
	queryFile  string
	configPath string
	format     string
}

func main() {
	var f flags
	flag.StringVar(&f.tracePath, "trace", "", "Path to a snappy trace dump")
	flag.StringVar(&f.sqlitePath, "trace-db", "", "Path to a SQLite trace export")
	flag.StringVar(&f.query, "query", "", "Query script to execute")
	flag.StringVar(&f.queryFile, "query-file", "", "File containing the query script")
	flag.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&f.format, "format", "", "Output format: csv or json (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("spanql: %v", err)
	}

	scripts, err := loadScripts(f, flag.Args())
	if err != nil {
		log.Fatalf("spanql: %v", err)
	}

	events, err := loadEvents(f)
	if err != nil {
		log.Fatalf("spanql: %v", err)
	}

	handle, err := store.Load(events)
	if err != nil {
		log.Fatalf("spanql: loading events: %v", err)
	}
	if cfg.LogQueries {
		log.Printf("spanql: loaded %d events, fingerprint %016x", handle.NumEvents(), handle.Fingerprint())
	}

	registry := module.NewRegistry()
	if err := stdlib.RegisterBuiltins(registry); err != nil {
		log.Fatalf("spanql: registering builtin modules: %v", err)
	}

	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = observability.NewMetrics(reg)
		go serveMetrics(cfg.MetricsAddr, reg)
	}

	exec := executor.New(registry, metrics)
	if len(scripts) > 1 {
		if failures := runBatch(exec, handle, scripts, cfg, os.Stdout); failures > 0 {
			os.Exit(1)
		}
		return
	}

	res, err := exec.Execute(context.Background(), handle, scripts[0])
	if err != nil {
		log.Fatalf("spanql: query failed (%s): %v", observability.ErrorKind(err), err)
	}
	if cfg.LogQueries {
		log.Printf("spanql: query %s: %d rows, %d scanned, %d tables, %s",
			res.QueryID, len(res.Rows), res.Stats.RowsScanned, res.Stats.TablesMaterialized, res.Stats.Elapsed)
	}

	if err := writeResult(os.Stdout, res, cfg); err != nil {
		log.Fatalf("spanql: writing output: %v", err)
	}
}

// runBatch executes the scripts with the configured parallelism and
// writes results to w in input order. It returns the number of failed
// scripts; failures are logged, not fatal, so the rest of the batch
// still produces output.
func runBatch(exec *executor.Executor, handle *store.Handle, scripts []string, cfg *config.Config, w io.Writer) int {
	failures := 0
	for i, item := range exec.ExecuteBatch(context.Background(), handle, scripts, cfg.Parallelism) {
		if item.Err != nil {
			log.Printf("spanql: script %d failed (%s): %v", i+1, observability.ErrorKind(item.Err), item.Err)
			failures++
			continue
		}
		if err := writeResult(w, item.Result, cfg); err != nil {
			log.Printf("spanql: writing output for script %d: %v", i+1, err)
			failures++
		}
	}
	return failures
}

func writeResult(w io.Writer, res *executor.Result, cfg *config.Config) error {
	if cfg.MaxRows > 0 && len(res.Rows) > cfg.MaxRows {
		res.Rows = res.Rows[:cfg.MaxRows]
	}
	if cfg.Output == config.FormatJSON {
		return executor.WriteJSON(w, res)
	}
	return executor.WriteCSV(w, res)
}

func loadConfig(f flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.LoadFromFile(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if f.format != "" {
		cfg.Output = config.Format(f.format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadScripts resolves the scripts to run: one from -query or
// -query-file, or a batch read from positional script files.
func loadScripts(f flags, args []string) ([]string, error) {
	if len(args) > 0 {
		if f.query != "" || f.queryFile != "" {
			return nil, fmt.Errorf("use either -query/-query-file or script file arguments, not both")
		}
		scripts := make([]string, len(args))
		for i, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading script %s: %w", path, err)
			}
			scripts[i] = string(data)
		}
		return scripts, nil
	}

	switch {
	case f.query != "" && f.queryFile != "":
		return nil, fmt.Errorf("use either -query or -query-file, not both")
	case f.query != "":
		return []string{f.query}, nil
	case f.queryFile != "":
		data, err := os.ReadFile(f.queryFile)
		if err != nil {
			return nil, fmt.Errorf("reading query file: %w", err)
		}
		return []string{string(data)}, nil
	}
	return nil, fmt.Errorf("no query given: use -query, -query-file or script file arguments")
}

func loadEvents(f flags) ([]types.Event, error) {
	switch {
	case f.tracePath != "" && f.sqlitePath != "":
		return nil, fmt.Errorf("use either -trace or -trace-db, not both")
	case f.tracePath != "":
		return store.ReadDumpFile(f.tracePath)
	case f.sqlitePath != "":
		return store.LoadSQLite(f.sqlitePath)
	}
	return nil, fmt.Errorf("no input given: use -trace or -trace-db")
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Printf("spanql: metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("spanql: metrics server error: %v", err)
	}
}
