package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"motolucro/internal/storage/storagetest"
)

// Runs only against a disposable database named by MOTOLUCRO_TEST_DATABASE_URL.
func TestRepoContract(t *testing.T) {
	dsn := os.Getenv("MOTOLUCRO_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MOTOLUCRO_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer repo.Close()

	if _, err := repo.Pool.Exec(ctx, `TRUNCATE transactions, users`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	storagetest.Run(t, repo)
}
