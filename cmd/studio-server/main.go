package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"google.golang.org/grpc"

	"studioops/backend/internal/checkout"
	"studioops/backend/internal/config"
	"studioops/backend/internal/events"
	"studioops/backend/internal/observability/metrics"
	"studioops/backend/internal/payments/stripe"
	"studioops/backend/internal/planner"
	"studioops/backend/internal/service/appointments"
	"studioops/backend/internal/store"
	"studioops/backend/internal/store/postgres"
	redisstore "studioops/backend/internal/store/redis"
	"studioops/backend/internal/timegrid"
	grpcTransport "studioops/backend/internal/transport/grpc"
	"studioops/backend/internal/transport/ops"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "studio-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "studio-server"),
	)
	slog.SetDefault(log)

	grpcAddr := net.JoinHostPort(cfg.GRPCHost, strconv.Itoa(cfg.GRPCPort))
	log.Info("starting",
		slog.String("grpc_addr", grpcAddr),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	checks := map[string]ops.Check{
		"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewScheduleMetrics(reg)

	var locks store.ChargeLocks
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
			os.Exit(1)
		}
		defer rdb.Close()
		locks = redisstore.NewChargeLocks(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var provider checkout.Provider
	if cfg.StripeSecretKey != "" {
		p, err := stripe.New(stripe.Config{
			SecretKey: cfg.StripeSecretKey,
			AccountID: cfg.StripeAccountID,
			Currency:  cfg.StripeCurrency,
			BaseURL:   cfg.StripeAPIURL,
		})
		if err != nil {
			log.Error("stripe setup failed", slog.Any("err", err))
			os.Exit(1)
		}
		provider = p
	}
	if provider == nil || locks == nil {
		log.Warn("card checkout disabled",
			slog.Bool("stripe_configured", provider != nil),
			slog.Bool("redis_configured", locks != nil),
		)
	}

	var publisher events.Publisher = events.Nop{}
	if brokers := events.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kp, err := events.NewKafkaPublisher(brokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka publisher setup failed", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := kp.Close(); err != nil {
				log.Warn("kafka publisher close failed", slog.Any("err", err))
			}
		}()
		publisher = kp
		checks["kafka"] = events.ReadyCheck(brokers)
	}

	if cfg.JWTSecret == "" {
		log.Warn("auth.jwt_secret is empty; all calls run anonymously and cannot override working hours")
	}

	svc, err := newService(db, cfg, appointments.Deps{
		Provider: provider,
		Locks:    locks,
		Events:   publisher,
		Metrics:  m,
		Logger:   log,
	})
	if err != nil {
		log.Error("service setup failed", slog.Any("err", err))
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcTransport.DefaultRequestTimeout(cfg.GRPCRequestTimeout),
		grpcTransport.Metrics(m),
		grpcTransport.Auth(cfg.JWTSecret, log),
	))
	grpcTransport.RegisterScheduleServiceServer(grpcServer, grpcTransport.NewScheduleServer(svc, log))

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", grpcAddr))
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           ops.New(ops.Config{Checks: checks, Gatherer: reg, Logger: log}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("servers started", slog.String("grpc_addr", grpcAddr), slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
			os.Exit(1)
		}
	}
	shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
}

func newService(db *bun.DB, cfg config.Config, deps appointments.Deps) (*appointments.Service, error) {
	grid, err := timegrid.New(cfg.SlotMinutes)
	if err != nil {
		return nil, err
	}
	deps.Appointments = postgres.NewAppointmentRepo(db)
	deps.Payments = postgres.NewPaymentRepo(db)
	deps.Resources = postgres.NewResourceRepo(db)

	return appointments.NewService(deps, appointments.Config{
		Grid:      grid,
		ShopHours: cfg.ShopHours,
		Planner: planner.Config{
			DefaultDurationMinutes: cfg.DefaultDurationMinutes,
			DefaultHourlyRate:      cfg.DefaultHourlyRate,
		},
		Checkout: checkout.Config{
			Peer:    checkout.PeerHandles{CashApp: cfg.CashAppHandle, Venmo: cfg.VenmoHandle},
			LockTTL: cfg.ChargeLockTTL,
		},
	}), nil
}

func shutdown(log *slog.Logger, s *grpc.Server, h *http.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
