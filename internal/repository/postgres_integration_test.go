//go:build integration

package repository_test

import (
	"context"
	"testing"

	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/prperemyshlev/clavis-auth/migrations"
	"github.com/prperemyshlev/clavis-auth/pkg/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("clavis_auth"),
		postgres.WithUsername("clavis"),
		postgres.WithPassword("clavis_password"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := database.NewMigrator(migrations.FS, url)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	db, err := database.NewPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	runContract(t, func(t *testing.T) *repository.Repositories {
		_, err := db.DB.ExecContext(ctx, "TRUNCATE users CASCADE")
		require.NoError(t, err)
		return repository.NewRepositories(db)
	})
}
