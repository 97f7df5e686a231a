package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dnswlt/apicsync/internal/apic"
	"github.com/dnswlt/apicsync/internal/cache"
	"github.com/dnswlt/apicsync/internal/config"
	"github.com/dnswlt/apicsync/internal/gitclient"
	"github.com/dnswlt/apicsync/internal/metrics"
	"github.com/dnswlt/apicsync/internal/provider"
	"github.com/dnswlt/apicsync/internal/sink"
	"github.com/dnswlt/apicsync/internal/store"
	"github.com/dnswlt/apicsync/internal/web"
	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

var (
	// Version is the application version.
	// It is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
)

// Options contains program options that can be set via command-line flags or environment variables.
type Options struct {
	ConfigFile string
	OutDir     string
	GitCommit  bool
	DryRun     bool
	CacheSize  int
	Provider   string
	Addr       string
	LogLevel   string
	LogFormat  string
}

func (o *Options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "config", "apicsync.yml", "Path to the configuration YAML file")
	fs.StringVar(&o.OutDir, "out-dir", "", "Directory receiving the entity YAML files (overrides sink.dir)")
	fs.BoolVar(&o.GitCommit, "git-commit", false, "Commit the output directory after each run (overrides sink.gitCommit)")
	fs.BoolVar(&o.DryRun, "dry-run", false, "Only log mutations, do not write any files")
	fs.IntVar(&o.CacheSize, "cache-size", 4096, "Max. number of entries in the in-memory lookup cache")
	fs.StringVar(&o.Provider, "provider", "", "Only ingest from the provider with this id")
	fs.StringVar(&o.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&o.LogFormat, "log-format", "console", "Log format (console or json)")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: apicsync <sync|serve> [flags]\n")
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "sync":
		err = runSync(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "version":
		fmt.Println(Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q. Available commands: sync, serve, version\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "apicsync: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(name string, args []string, opts *Options, extra func(fs *flag.FlagSet)) error {
	fs := flag.NewFlagSet("apicsync "+name, flag.ExitOnError)
	opts.register(fs)
	if extra != nil {
		extra(fs)
	}
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("APICSYNC")); err != nil {
		return fmt.Errorf("flag error: %w", err)
	}
	return nil
}

// app holds the components shared by the sync and serve commands.
type app struct {
	log       *zap.SugaredLogger
	bundle    *config.Bundle
	providers []*provider.Provider
	registry  *prometheus.Registry
}

func newApp(opts *Options) (*app, error) {
	logger, err := newLogger(opts.LogLevel, opts.LogFormat)
	if err != nil {
		return nil, err
	}
	log := logger.Sugar()

	bundle, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.OutDir != "" {
		bundle.Sink.Dir = opts.OutDir
	}
	if opts.GitCommit {
		bundle.Sink.GitCommit = true
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	snk, err := createSink(bundle.Sink, opts.DryRun, log)
	if err != nil {
		return nil, err
	}
	lookups, err := cache.NewLRU(opts.CacheSize, 0)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	m := metrics.New()
	m.MustRegister(registry)
	tokens := apic.NewTokenCache()

	a := &app{log: log, bundle: bundle, registry: registry}
	for _, id := range bundle.ProviderIDs() {
		if opts.Provider != "" && id != opts.Provider {
			continue
		}
		p, err := provider.New(provider.Options{
			ID:      id,
			Config:  bundle.Providers[id],
			Tokens:  tokens,
			Cache:   lookups,
			Sink:    snk,
			Metrics: m,
			Log:     log,
		})
		if err != nil {
			return nil, err
		}
		a.providers = append(a.providers, p)
	}
	if len(a.providers) == 0 {
		return nil, fmt.Errorf("unknown provider %q", opts.Provider)
	}
	log.Infow("Configuration loaded", "config", opts.ConfigFile, "providers", providerIDs(a.providers), "version", Version)
	return a, nil
}

func providerIDs(ps []*provider.Provider) string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID()
	}
	return strings.Join(ids, ",")
}

func createSink(cfg config.Sink, dryRun bool, log *zap.SugaredLogger) (sink.Sink, error) {
	switch {
	case dryRun || cfg.Dir == "":
		log.Info("Mutations are only logged")
		return sink.NewLogSink(log), nil
	case cfg.GitCommit:
		log.Infow("Writing entities to git working tree", "dir", cfg.Dir)
		gs, err := sink.NewGitSink(cfg.Dir, gitclient.DefaultAuthor)
		if err != nil {
			return nil, err
		}
		return gs, nil
	default:
		st := store.NewDiskStore(cfg.Dir)
		log.Infow("Writing entities to directory", "dir", st.RootDir())
		return sink.NewStoreSink(st), nil
	}
}

func runSync(args []string) error {
	var opts Options
	if err := parseFlags("sync", args, &opts, nil); err != nil {
		return err
	}
	a, err := newApp(&opts)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var errs []error
	for _, p := range a.providers {
		if err := p.Read(ctx); err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", p.ID(), err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

func runServe(args []string) error {
	var opts Options
	err := parseFlags("serve", args, &opts, func(fs *flag.FlagSet) {
		fs.StringVar(&opts.Addr, "addr", "localhost:8080", "Address to listen on")
	})
	if err != nil {
		return err
	}
	a, err := newApp(&opts)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	syncers := make([]web.Syncer, len(a.providers))
	for i, p := range a.providers {
		syncers[i] = p
		interval := a.bundle.Providers[p.ID()].Schedule
		if interval <= 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.RunEvery(ctx, interval)
		}()
	}

	server := web.NewServer(web.ServerOptions{
		Addr:     opts.Addr,
		Gatherer: a.registry,
	}, syncers, a.log)
	err = server.Serve(ctx)
	stop()
	wg.Wait()
	return err
}
