package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pharmacy-service/handlers"
	"pharmacy-service/internal/addresses"
	"pharmacy-service/internal/auth"
	"pharmacy-service/internal/cart"
	"pharmacy-service/internal/categories"
	"pharmacy-service/internal/orders"
	"pharmacy-service/internal/prescriptions"
	"pharmacy-service/internal/products"
	"pharmacy-service/internal/stores/kafka"
	"pharmacy-service/internal/stores/postgres"
	"pharmacy-service/internal/users"
	"pharmacy-service/pkg/logkey"

	"github.com/joho/godotenv"
)

func main() {
	setupSlog()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	if err := startApp(); err != nil {
		slog.Error("service shut down with error", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	slog.Info("migrating and connecting to database")
	db, err := postgres.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.RunMigrations(db); err != nil {
		return err
	}

	privatePEM, err := os.ReadFile(getEnv("AUTH_PRIVATE_KEY_PATH", "private.pem"))
	if err != nil {
		return err
	}
	keys, err := auth.LoadKeys(privatePEM)
	if err != nil {
		return err
	}

	slog.Info("connecting to kafka")
	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	producer, err := kafka.NewConf(brokers)
	if err != nil {
		return err
	}
	defer producer.Close()

	u, err := users.NewConf(db)
	if err != nil {
		return err
	}
	p, err := products.NewConf(db)
	if err != nil {
		return err
	}
	cat, err := categories.NewConf(db)
	if err != nil {
		return err
	}
	crt, err := cart.NewConf(db)
	if err != nil {
		return err
	}
	addr, err := addresses.NewConf(db)
	if err != nil {
		return err
	}
	rx, err := prescriptions.NewConf(db)
	if err != nil {
		return err
	}
	o, err := orders.NewConf(db)
	if err != nil {
		return err
	}

	h := handlers.NewHandler(u, p, cat, crt, addr, rx, o, producer, keys)
	prefix := getEnv("SERVICE_ENDPOINT_PREFIX", "/api/v1")

	api := http.Server{
		Addr:         ":" + getEnv("APP_PORT", "8080"),
		Handler:      handlers.API(prefix, keys, h),
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", api.Addr))
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-shutdown:
		slog.Info("shutdown started", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := api.Shutdown(ctx); err != nil {
			_ = api.Close()
			return err
		}
	}

	return nil
}

func setupSlog() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	})
	slog.SetDefault(slog.New(handler))
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
