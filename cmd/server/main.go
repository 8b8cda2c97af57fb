package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "buildnblocks.io/internal/persistence/log"
	"buildnblocks.io/internal/sim/tuning"
	"buildnblocks.io/internal/sim/world"
	"buildnblocks.io/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", defaultAddr(), "http listen address (default from PORT)")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the audit index")
		noJournal  = flag.Bool("disable_journal", false, "disable the audit journal")
		staticDir  = flag.String("static", "", "serve client files from this directory at / (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	w, err := world.New(world.ConfigFromTuning(tune), log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	// Optional read model; the journal is the operational record.
	idx, err := openRuntimeIndex(worldDir, *worldID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	sinks := world.MultiAudit{}
	if !*noJournal {
		auditLog := persistlog.NewAuditJournal(worldDir)
		defer auditLog.Close()
		sinks = append(sinks, auditLog)
	}
	if idx != nil {
		defer idx.Close()
		sinks = append(sinks, idx)
	}
	if len(sinks) > 0 {
		w.SetAuditLogger(sinks)
	}

	wsSrv, err := ws.NewServer(w, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds), ws.OptionsFromTuning(tune))
	if err != nil {
		logger.Fatalf("ws: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := newMux(httpDeps{
		WorldID:     *worldID,
		World:       w,
		WS:          wsSrv,
		Index:       idx,
		EnableAdmin: envBool("BNB_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		EnablePprof: envBool("BNB_ENABLE_PPROF_HTTP", false),
		StaticDir:   *staticDir,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s tuning=%s", *addr, *worldID, tp)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Let the world close client queues before the audit sinks flush.
	cancel()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		logger.Printf("world did not stop in time")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultAddr() string {
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		return ":" + p
	}
	return ":3001"
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
