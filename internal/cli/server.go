package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/app"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/config"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/infra/memory"
	pginfra "github.com/knowandlove/animal-genius-backend-sub004/internal/infra/postgres"
	redisinfra "github.com/knowandlove/animal-genius-backend-sub004/internal/infra/redis"
	transport "github.com/knowandlove/animal-genius-backend-sub004/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game engine",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleQuestionBank())
	if pool != nil {
		loader = pginfra.NewBankLoader(pool)
	}
	bankTTL := config.TTLDuration(cfg.Game.BankTTL, 10*time.Minute)
	bank := memory.NewQuestionBank(loader, bankTTL)

	var tickets app.TicketStore = memory.NewTicketStore()
	if redisClient != nil {
		tickets = redisinfra.NewTicketStore(redisClient)
	}

	var mirror app.Mirror
	var pgMirror *pginfra.Mirror
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bundb := bun.NewDB(sqldb, pgdialect.New())
		defer bundb.Close()
		pgMirror = pginfra.NewMirror(bundb, 256)
		mirror = pgMirror
	}

	engine := app.NewEngine(memory.NewRegistry(), bank, tickets, mirror, app.Options{
		MaxPlayers:                cfg.Game.MaxPlayers,
		AnswerAttempts:            cfg.Game.AnswerAttempts,
		TicketTTL:                 config.TTLDuration(cfg.Redis.TicketTTL, 2*time.Minute),
		ReapInterval:              config.TTLDuration(cfg.Game.ReapInterval, 30*time.Minute),
		FinishedGrace:             config.TTLDuration(cfg.Game.FinishedGrace, 30*time.Minute),
		IdleGrace:                 config.TTLDuration(cfg.Game.IdleGrace, 15*time.Minute),
		DefaultQuestionCount:      cfg.Game.DefaultQuestionCount,
		DefaultSecondsPerQuestion: cfg.Game.DefaultSecondsPerQuestion,
	})
	engine.StartReaper()

	heartbeat := config.TTLDuration(cfg.Game.Heartbeat, 3*time.Minute)
	wsHandler := transport.NewWSHandler(engine, heartbeat)
	sessionHandler := transport.NewSessionHandler(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	sessionHandler.Register(mux)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting game engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	engine.Shutdown()
	if pgMirror != nil {
		pgMirror.Stop()
	}
	return err
}

// sampleQuestionBank seeds a small bank for running without Postgres.
func sampleQuestionBank() []domain.GameQuestion {
	return []domain.GameQuestion{
		{
			ID:            "q-otter",
			Prompt:        "Which of these animals holds hands while sleeping so the group doesn't drift apart?",
			Choices:       []string{"Sea otters", "Beavers", "Penguins", "Seals"},
			CorrectChoice: 0,
		},
		{
			ID:            "q-owl",
			Prompt:        "How far can an owl rotate its head?",
			Choices:       []string{"90 degrees", "180 degrees", "270 degrees", "360 degrees"},
			CorrectChoice: 2,
		},
		{
			ID:            "q-elephant",
			Prompt:        "What do elephants use their ears for besides hearing?",
			Choices:       []string{"Swimming", "Cooling down", "Digging", "Signaling rain"},
			CorrectChoice: 1,
		},
		{
			ID:            "q-octopus",
			Prompt:        "How many hearts does an octopus have?",
			Choices:       []string{"One", "Two", "Three", "Eight"},
			CorrectChoice: 2,
		},
		{
			ID:            "q-cheetah",
			Prompt:        "Which animal is the fastest sprinter on land?",
			Choices:       []string{"Pronghorn", "Cheetah", "Greyhound", "Ostrich"},
			CorrectChoice: 1,
		},
	}
}
