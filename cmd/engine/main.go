package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"econstats-engine/internal/config"
	"econstats-engine/internal/events"
	"econstats-engine/internal/httpapi"
	"econstats-engine/internal/pipeline"
	"econstats-engine/internal/scheduler"
	"econstats-engine/internal/secrets"
	"econstats-engine/internal/store"

	"github.com/joho/godotenv"
)

const (
	dbFile        = "econstats.db"
	runRetention  = 90 * 24 * time.Hour
	shutdownToken = "ECONSTATS_SHUTDOWN_TOKEN"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: engine [-config path] <command>

commands:
  %s
  serve            run the local HTTP API
  key set <bea|bls> [key]
                   store an API key in the OS keychain (reads stdin when key is omitted)
  key delete <bea|bls>
                   remove a stored API key
`, strings.Join(names(), " | "))
	flag.PrintDefaults()
}

func names() []string {
	out := make([]string, 0, len(pipeline.Names))
	for _, n := range pipeline.Names {
		out = append(out, string(n))
	}
	return out
}

func main() {
	cfgFlag := flag.String("config", "", "path to config.yml (default <data dir>/config.yml)")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[env] .env not loaded: %v", err)
	}

	if args[0] == "key" {
		if err := keyCmd(args[1:]); err != nil {
			log.Fatalf("[key] %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userCfgPath, err := resolveConfigPath(*cfgFlag)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}
	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		config.OverlayEnv(&cfg)
		cfg, vr := config.NormalizeAndValidate(cfg)
		for _, w := range vr.Warnings {
			log.Printf("[config] warning: %s", w)
		}
		if !vr.OK() {
			return cfg, fmt.Errorf("invalid config: %s", strings.Join(vr.Errors, "; "))
		}
		return cfg, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	var cfgVal atomic.Value // stores config.Config
	cfgVal.Store(cfg)

	if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
		log.Fatal(err)
	}
	dbPath := cfg.Path(dbFile)
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("open ledger %s: %v", dbPath, err)
	}
	defer db.Close()

	current := func() config.Config { return cfgVal.Load().(config.Config) }

	if args[0] == "serve" {
		if err := serve(ctx, stop, db, &cfgVal, userCfgPath, loadCfg); err != nil {
			log.Printf("[serve] %v", err)
			db.Close()
			os.Exit(1)
		}
		return
	}

	name, err := pipeline.Parse(args[0])
	if err != nil {
		usage()
		os.Exit(2)
	}
	runner := pipeline.New(current, db, nil)
	run, err := runner.Run(ctx, name)
	if err != nil {
		log.Printf("[%s] run=%s failed: %v", name, run.ID, err)
		db.Close()
		os.Exit(1)
	}
	log.Printf("[%s] run=%s status=%s %s", name, run.ID, run.Status, run.Summary)
	if run.Status == store.RunFailed {
		db.Close()
		os.Exit(1)
	}
}

func resolveConfigPath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	dataDir := strings.TrimSpace(os.Getenv(config.DataDirEnv))
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	return config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
}

func keyCmd(args []string) error {
	if len(args) < 2 || (args[0] != "set" && args[0] != "delete") {
		return errors.New("usage: engine key set <bea|bls> [key] | engine key delete <bea|bls>")
	}
	source := strings.ToLower(args[1])
	if args[0] == "delete" {
		if err := secrets.DeleteAPIKey(source); err != nil {
			return err
		}
		log.Printf("[key] deleted source=%s", source)
		return nil
	}

	var key string
	if len(args) > 2 {
		key = args[2]
	} else {
		fmt.Fprintf(os.Stderr, "%s key: ", source)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read key: %w", err)
		}
		key = line
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("empty key")
	}
	if err := secrets.SetAPIKey(source, key); err != nil {
		return err
	}
	log.Printf("[key] stored source=%s", source)
	return nil
}

func serve(ctx context.Context, stop context.CancelFunc, db *store.DB, cfgVal *atomic.Value, userCfgPath string, loadCfg func() (config.Config, error)) error {
	cfg := cfgVal.Load().(config.Config)
	current := func() config.Config { return cfgVal.Load().(config.Config) }

	if n, err := db.CleanupOldRuns(ctx, runRetention); err != nil {
		log.Printf("[ledger] cleanup failed: %v", err)
	} else if n > 0 {
		log.Printf("[ledger] removed old runs=%d", n)
	}

	hub := events.NewHub()
	runner := pipeline.New(current, db, hub)

	r := httpapi.NewRouter(httpapi.Deps{
		DB:           db,
		Hub:          hub,
		Runner:       runner,
		BaseCtx:      ctx,
		CfgVal:       cfgVal,
		UserCfgPath:  userCfgPath,
		LoadCfg:      loadCfg,
		SetAPIKey:    secrets.SetAPIKey,
		DeleteAPIKey: secrets.DeleteAPIKey,
	})

	token := strings.TrimSpace(os.Getenv(shutdownToken))
	if token == "" {
		var err error
		if token, err = randomToken(16); err != nil {
			return err
		}
		log.Printf("[serve] shutdown token=%s", token)
	}
	r.HandleFunc("/shutdown", shutdownHandler(token, stop)).Methods(http.MethodPost)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if hours := cfg.Schedule.QWIHours; hours > 0 {
		go scheduler.Every(ctx, time.Duration(hours)*time.Hour, "schedule:qwi", func(ctx context.Context) error {
			_, err := runner.Run(ctx, pipeline.QWI)
			if errors.Is(err, pipeline.ErrBusy) {
				log.Printf("[schedule:qwi] skipped: a run is active")
				return nil
			}
			return err
		})
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("engine listening on http://%s (db=%s)", addr, cfg.Path(dbFile))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("[serve] stopped")
	return nil
}
