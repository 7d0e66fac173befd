package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"Flashgrid/internal/auth"
	"Flashgrid/internal/calc/flashapi"
	"Flashgrid/internal/calc/stream"
	"Flashgrid/internal/config"
	"Flashgrid/internal/engine/remote"
	"Flashgrid/internal/engine/wilson"
	"Flashgrid/internal/flash"
	"Flashgrid/internal/grid"
	"Flashgrid/internal/logging"
	"Flashgrid/internal/phase"
	"Flashgrid/internal/repo"
)

var wg sync.WaitGroup

func CORS(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "X-Run-ID, Content-Disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newEngine(cfg config.Engine) flash.Engine {
	if cfg.Driver == "remote" {
		return remote.NewClient(cfg.URL, cfg.Secret, cfg.Timeout)
	}
	return wilson.New()
}

func defaults(cfg *config.Config, logger log.FieldLogger) flashapi.Defaults {
	strategy, err := grid.ParseStrategy(cfg.Grid.Strategy)
	if err != nil {
		logger.WithError(err).Warn("unknown grid strategy, using equidistant")
		strategy = grid.Equidistant
	}
	return flashapi.Defaults{
		Ranges: cfg.Grid.Defaults,
		Options: flash.Options{
			Strategy:          strategy,
			EnhancementFactor: cfg.Grid.EnhancementFactor,
			BoundaryZoneWidth: cfg.Grid.BoundaryZoneWidth,
			Traversal:         flash.Traversal(cfg.Flash.Traversal),
			Parallel:          cfg.Flash.Parallel,
			Workers:           cfg.Flash.Workers,
			ChunkSize:         cfg.Flash.ChunkSize,
			PointTimeout:      cfg.Flash.PointTimeout,
		},
		MaxPoints: cfg.Limits.MaxPoints,
	}
}

func HandleList(router *mux.Router, cfg *config.Config, engine flash.Engine, runs repo.Repository, logger log.FieldLogger) {
	locator := phase.New(engine, phase.Config{
		ProbesX:      cfg.Phase.ProbesX,
		ProbesY:      cfg.Phase.ProbesY,
		Workers:      cfg.Phase.Workers,
		ProbeTimeout: cfg.Phase.ProbeTimeout,
	}, logger)

	flashH := &flashapi.Handler{
		Orchestrator: flash.NewOrchestrator(engine, locator, logger),
		Repo:         runs,
		Defaults:     defaults(cfg, logger),
		MaxBodyBytes: cfg.Limits.MaxBodyBytes,
		HistoryLimit: cfg.Limits.HistoryLimit,
		Log:          logger,
	}
	streamH := &stream.Handler{
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		API:          flashH,
		WriteTimeout: 10 * time.Second,
		Log:          logger,
	}

	authEnv := &auth.Authenv{JWTkey: []byte(cfg.Server.TokenKey)}
	limiter := auth.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(limiter.LimitMiddleware)
	api.Use(authEnv.AuthMiddleware)

	for _, kind := range flash.Kinds() {
		api.HandleFunc("/"+string(kind), flashH.Calc(kind)).Methods("POST")
	}
	api.HandleFunc("/ph_flash_olga", flashH.PHFlashOLGA).Methods("POST")
	api.HandleFunc("/runs", flashH.Runs).Methods("GET")
	api.HandleFunc("/composition/import", flashH.ImportComposition).Methods("POST")

	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(limiter.LimitMiddleware)
	ws.Use(authEnv.AuthMiddleware)
	ws.HandleFunc("/flash", streamH.Serve).Methods("GET")
}

func openRuns(ctx context.Context, cfg config.Limits, logger log.FieldLogger) (repo.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not set, keeping run history in memory")
		return repo.NewMemoryRunDB(cfg.HistoryLimit), func() {}, nil
	}
	db, err := repo.InitDB(ctx, cfg.DatabaseURL, cfg.ConnectWindow, logger)
	if err != nil {
		return nil, nil, err
	}
	runs := repo.NewPostgresRunDB(db)
	if err := runs.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return runs, func() { db.Close() }, nil
}

func main() {
	confPath := flag.String("config", "", "path to the ini config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	runs, closeRuns, err := openRuns(ctx, cfg.Limits, logger)
	if err != nil {
		logger.WithError(err).Fatal("opening run history")
	}
	defer closeRuns()

	engine := newEngine(cfg.Engine)
	logger.WithField("driver", cfg.Engine.Driver).Info("flash engine ready")

	router := mux.NewRouter()
	HandleList(router, cfg, engine, runs, logger)
	handler := CORS(cfg.Server.AllowOrigin, logging.Middleware(logger)(router))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Infof("starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, closing active connections")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("stopping server")
	}
	wg.Wait()
	logger.Info("server stopped")
}
