package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	pgloader "live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/metrics"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	verifier := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	if cfg.Auth.RequireHost && !verifier.Enabled() {
		return fmt.Errorf("auth.require_host needs auth.secret")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			// marker writes and cache reads carry their own deadlines
			ContextTimeoutEnabled: true,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := quizLoader(cfg, pool)
	if err != nil {
		return err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var (
		store      app.RoomRepository
		redisRooms *redisstore.RoomStore
	)
	if redisClient != nil {
		redisRooms = redisstore.NewRoomStore(redisClient, redisTTL, log)
		store = redisRooms
	} else {
		store = memory.NewRoomStore()
	}

	coord := app.NewCoordinator(store, quizRepo, log, m, app.Options{RequireHost: cfg.Auth.RequireHost})
	wsHandler := transport.NewWSHandler(coord, verifier, log, transport.Options{
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		SendBuffer:      cfg.WebSocket.SendBuffer,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
		WriteWait:       config.TTLDuration(cfg.WebSocket.WriteWait, 10*time.Second),
		PongWait:        config.TTLDuration(cfg.WebSocket.PongWait, 60*time.Second),
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewMux(wsHandler, coord, reg),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting quiz service", "port", finalPort, "redis", redisClient != nil, "postgres", pool != nil, "require_host", cfg.Auth.RequireHost)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	if redisRooms != nil {
		g.Go(func() error {
			return redisRooms.Heartbeat(gctx, redisTTL/3)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// quizLoader picks the quiz source: Postgres when configured, else a directory of quiz files,
// else the built-in sample.
func quizLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuizLoader, error) {
	if pool != nil {
		return pgloader.NewQuizLoader(pool), nil
	}
	if cfg.Quiz.Dir != "" {
		quizzes, err := memory.LoadQuizDir(cfg.Quiz.Dir)
		if err != nil {
			return nil, fmt.Errorf("load quiz dir: %w", err)
		}
		return memory.NewStaticQuizLoader(quizzes), nil
	}
	return memory.NewStaticQuizLoader(sampleQuizzes()), nil
}

// sampleQuizzes provides a minimal quiz so a fresh checkout can run a room without a database.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:   "quiz-1",
			Code: "DEMO",
			Name: "Warm-up",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Question:      "What is 2 + 2?",
					Options:       []string{"3", "4", "5"},
					CorrectAnswer: []int{1},
					Points:        1,
				},
				{
					ID:            "q2",
					Question:      "Which planet is the largest?",
					Options:       []string{"Mars", "Jupiter", "Venus"},
					CorrectAnswer: []int{1},
					Points:        1,
				},
			},
		},
	}
}
