// Command gatehouse-sweep runs the engine's housekeeping loop as a
// standalone process: it deletes expired refresh tokens, sessions, MFA
// challenges and stale lockout rows from the durable store, and sweeps the
// revocation registry. Deployments embedding the engine in-process don't
// need it; it exists for setups where cleanup should run on its own box.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-dev/gatehouse/internal/engine"
	"github.com/gatehouse-dev/gatehouse/internal/revocation"
	"github.com/gatehouse-dev/gatehouse/internal/store/drivers/sqlite"
	"github.com/gatehouse-dev/gatehouse/pkg/slogx"
)

const buildVersion = "v0.1.0"

func main() {
	cfg := engine.LoadConfig()

	logger := slogx.New(slogx.Config{
		Service: "gatehouse-sweep",
		Version: buildVersion,
		Env:     envOrDefault("ENV", "dev"),
		Level:   envOrDefault("LOG_LEVEL", "info"),
		Format:  envOrDefault("LOG_FORMAT", "json"),
	})

	st, err := sqlite.NewStore(envOrDefault("GATEHOUSE_DATABASE_FILE", "gatehouse.db"))
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.ApplyMigrations(); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	registry := newRegistry(logger)
	defer registry.Close()

	housekeeper := engine.NewHousekeeper(cfg, st, registry, logger)
	housekeeper.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	housekeeper.Stop()
}

// newRegistry connects to Redis when an address is configured, otherwise
// falls back to the in-process registry (which only matters for the memory
// sweep; revoked keys in Redis expire on their own).
func newRegistry(logger *slog.Logger) revocation.Registry {
	addr := os.Getenv("GATEHOUSE_REDIS_ADDR")
	if addr == "" {
		return revocation.NewMemoryRegistry()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("GATEHOUSE_REDIS_PASSWORD"),
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to redis at %s: %v", addr, err)
	}

	logger.Info("using redis revocation registry", slog.String("addr", addr))
	return revocation.NewRedisRegistry(client)
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
