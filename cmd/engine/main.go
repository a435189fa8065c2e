package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"jobwatch-engine/internal/classify"
	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/httpapi"
	"jobwatch-engine/internal/poll"
	"jobwatch-engine/internal/scheduler"
	"jobwatch-engine/internal/state"
)

func main() {
	var (
		cfgFlag = flag.String("config", "", "config.yml path (default <data dir>/config.yml, created on first start)")
		once    = flag.Bool("once", false, "perform one run and exit (default)")
		serve   = flag.Bool("serve", false, "run on the configured schedule and serve the HTTP API")
		out     = flag.String("out", "", "write the run summary to this file instead of stdout (-once)")
	)
	flag.Parse()
	if *once && *serve {
		fmt.Fprintln(os.Stderr, "-once and -serve are mutually exclusive")
		os.Exit(2)
	}

	cfgPath := *cfgFlag
	if cfgPath == "" {
		dataDir := os.Getenv("JOBWATCH_DATA_DIR")
		if dataDir == "" {
			dataDir = "."
		}
		p, err := config.EnsureUserConfig(dataDir)
		if err != nil {
			log.Fatalf("config bootstrap failed: %v", err)
		}
		cfgPath = p
	}

	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return cfg, err
		}
		if err := config.OverlayCompanies(&cfg, filepath.Join(filepath.Dir(cfgPath), "companies.yml")); err != nil {
			return cfg, fmt.Errorf("companies.yml: %w", err)
		}
		return cfg, config.Validate(cfg)
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", cfgPath, err)
	}

	store, err := state.Open(cfg)
	if err != nil {
		log.Fatalf("state: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		err = runServe(ctx, stop, cfg, cfgPath, loadCfg, store)
	} else {
		err = runOnce(ctx, cfg, store, *out)
	}
	if err != nil {
		log.Printf("engine: %v", err)
		store.Close()
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, cfg config.Config, store state.Store, out string) error {
	cls, err := classify.New(cfg.Rules)
	if err != nil {
		return err
	}

	sum, err := poll.RunOnce(ctx, poll.Deps{
		Fetchers:      poll.Fetchers(cfg),
		Classifier:    cls,
		Store:         store,
		LockPath:      store.Path(),
		LockWait:      30 * time.Second,
		SourceTimeout: time.Duration(cfg.HTTP.SourceTimeout) * time.Second,
		SummaryPath:   cfg.SummaryPath(),
	})
	if err != nil {
		return err
	}

	if out != "" {
		return poll.WriteSummary(out, sum)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func runServe(ctx context.Context, stop func(), cfg config.Config, cfgPath string, loadCfg func() (config.Config, error), store state.Store) error {
	var cfgVal atomic.Value // stores config.Config
	cfgVal.Store(cfg)

	hub := events.NewHub()
	runner := poll.NewRunner(&cfgVal, store, hub)

	sched, err := scheduler.New(cfg.Schedule.Cron, cfg.Schedule.Timezone, "poll", func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		if errors.Is(err, poll.ErrRunning) || errors.Is(err, state.ErrLocked) {
			return fmt.Errorf("%w: %v", scheduler.ErrSkipped, err)
		}
		return err
	})
	if err != nil {
		return err
	}

	token := os.Getenv("JOBWATCH_SHUTDOWN_TOKEN")
	if token == "" {
		if token, err = randomToken(16); err != nil {
			return err
		}
	}

	mux := httpapi.NewMux(httpapi.Deps{
		Hub:         hub,
		CfgVal:      &cfgVal,
		UserCfgPath: cfgPath,
		LoadCfg:     loadCfg,
		Runner:      runner,
		Store:       store,
		BaseCtx:     ctx,
	})
	mux.HandleFunc("/shutdown", shutdownHandler(token, stop))

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           httpapi.Chain(mux, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog, httpapi.Cors),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	sched.Start(true)
	log.Printf("engine listening on http://%s (state=%s backend=%s schedule=%q next=%s)",
		addr, cfg.StatePath(), cfg.State.Backend, cfg.Schedule.Cron, sched.Next().Format(time.RFC3339))
	// a supervisor reads this line to learn the token
	fmt.Printf("JOBWATCH_SHUTDOWN_TOKEN=%s\n", token)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	log.Printf("engine shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := sched.Stop(shutCtx); err != nil {
		log.Printf("scheduler stop: %v", err)
	}
	return nil
}
