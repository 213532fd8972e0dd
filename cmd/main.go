package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"github.com/duffymelancholic/diabetes-management-app/internal/api"
	"github.com/duffymelancholic/diabetes-management-app/internal/cache"
	"github.com/duffymelancholic/diabetes-management-app/internal/config"
	"github.com/duffymelancholic/diabetes-management-app/internal/credential"
	"github.com/duffymelancholic/diabetes-management-app/internal/events"
	"github.com/duffymelancholic/diabetes-management-app/internal/repository"
	"github.com/duffymelancholic/diabetes-management-app/internal/service"
	"github.com/duffymelancholic/diabetes-management-app/migrations"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		envFile string
		cfg     *config.Config
	)

	rootCmd := &cobra.Command{
		Use:           "diabetes-service",
		Short:         "Diabetes management API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			loaded, err := config.Load(files...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			zerolog.SetGlobalLevel(cfg.Level())
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: .env)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create any missing tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connectDB(cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()
			return migrations.AutoMigrate(cmd.Context(), db, cfg.DB.Retries)
		},
	}

	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Operator commands for accounts",
	}
	usersCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user with all readings, medications and meal links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return deleteUser(cmd.Context(), cfg, id)
		},
	})

	rootCmd.AddCommand(serveCmd, migrateCmd, usersCmd)
	return rootCmd
}

func connectDB(dbc config.Database) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error
	for i := 0; i < max(dbc.Retries, 1); i++ {
		db, err = sqlx.Open("mysql", dbc.DSN())
		if err == nil {
			err = db.Ping()
			if err == nil {
				logger.Info().Msgf("Connected to DB %s", dbc.Name)
				return db, nil
			}
			db.Close()
		}
		logger.Warn().Err(err).Msgf("Retry %d: Failed to connect to DB %s (%s:%s)", i+1, dbc.Name, dbc.Host, dbc.Port)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %w", dbc.Name, dbc.Host, dbc.Port, err)
}

func newPublisher(cfg *config.Config) (events.Publisher, func()) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Info().Msg("KAFKA_BROKERS not set, domain events disabled")
		return events.Nop{}, func() {}
	}

	writer := config.NewKafkaWriter(brokers, cfg.KafkaTopic)
	return events.NewKafkaPublisher(writer), func() { closeWriter(writer) }
}

func closeWriter(w *kafka.Writer) {
	if err := w.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing kafka writer")
	}
}

func newMealCache(cfg *config.Config) (service.MealCache, func()) {
	rdb := config.NewRedisClient(cfg.RedisAddr)
	if rdb == nil {
		logger.Info().Msg("REDIS_ADDR not set, meal cache disabled")
		return nil, func() {}
	}
	return cache.NewMealCache(rdb, cfg.MealCacheTTL), func() { rdb.Close() }
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.RequireSecret(); err != nil {
		return err
	}

	db, err := connectDB(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.AutoMigrate(ctx, db, cfg.DB.Retries); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()
	mealCache, closeCache := newMealCache(cfg)
	defer closeCache()

	creds := credential.New(cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost)

	e := api.NewServer(api.Services{
		Users:       service.NewUserService(repository.NewUserRepository(db), creds, publisher),
		Readings:    service.NewReadingService(repository.NewReadingRepository(db), publisher),
		Medications: service.NewMedicationService(repository.NewMedicationRepository(db), publisher),
		Meals:       service.NewMealService(repository.NewMealRepository(db), mealCache, publisher),
	}, creds, api.Options{RateLimit: cfg.RateLimit, RateBurst: cfg.RateBurst})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("Starting HTTP server")
		errCh <- e.Start(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func deleteUser(ctx context.Context, cfg *config.Config, id int64) error {
	db, err := connectDB(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	// Deletion issues no tokens, so the secret may be empty here.
	creds := credential.New(cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost)
	users := service.NewUserService(repository.NewUserRepository(db), creds, publisher)
	if err := users.Delete(ctx, id); err != nil {
		return err
	}

	logger.Info().Int64("user_id", id).Msg("User deleted")
	return nil
}
