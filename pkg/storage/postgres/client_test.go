package postgres_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/joho/godotenv"

	"github.com/oceanbase/agentmem-go/pkg/storage"
	"github.com/oceanbase/agentmem-go/pkg/storage/postgres"
	"github.com/oceanbase/agentmem-go/pkg/storage/storagetest"
)

const dims = 8

func configFromEnv(t *testing.T) *postgres.Config {
	_ = godotenv.Load(filepath.Join("..", "..", "..", ".env"))

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		t.Skip("Skipping PostgreSQL test: POSTGRES_PASSWORD not set")
	}

	port := 5432
	if s := os.Getenv("POSTGRES_PORT"); s != "" {
		p, err := strconv.Atoi(s)
		if err != nil {
			t.Skipf("Skipping PostgreSQL test: invalid POSTGRES_PORT: %s", s)
		}
		port = p
	}

	return &postgres.Config{
		Host:               envOr("POSTGRES_HOST", "127.0.0.1"),
		Port:               port,
		User:               envOr("POSTGRES_USER", "postgres"),
		Password:           password,
		DBName:             envOr("POSTGRES_DATABASE", "agentmem_test"),
		EmbeddingModelDims: dims,
		SSLMode:            os.Getenv("POSTGRES_SSLMODE"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestClient_Conformance(t *testing.T) {
	base := configFromEnv(t)
	n := 0

	storagetest.Run(t, dims, func(t *testing.T) storage.RecordStore {
		n++
		cfg := *base
		cfg.CollectionName = fmt.Sprintf("test_records_%d_%d", os.Getpid(), n)

		store, err := postgres.NewClient(&cfg)
		if err != nil {
			t.Skipf("Skipping PostgreSQL test: failed to connect: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestConfig_DSN(t *testing.T) {
	cfg := &postgres.Config{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "agents"}
	dsn := cfg.DSN()
	for _, part := range []string{"host=db", "port=5433", "dbname=agents", "sslmode=disable"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN %q missing %q", dsn, part)
		}
	}
}
