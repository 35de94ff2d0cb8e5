//go:build integration

package statestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/model"
	"github.com/BlackLotus/nomad/pkg/statestore"
)

// TestPostgresUploadRoundTrip exercises the Postgres-backed Store against
// a real database, grounded on the teacher's testcontainers-go/modules/postgres
// usage (pkg/compliance/storage/postgres test helpers in the pack): spin up
// postgres:16-alpine, run the embedded migrations, then round-trip an
// upload the way pkg/controller does against SQLite in every other test.
func TestPostgresUploadRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("nomad_test"),
		postgres.WithUsername("nomad_test"),
		postgres.WithPassword("nomad_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dbCfg := &config.DatabaseConfig{
		Type: config.DatabaseTypePostgres,
		Postgres: config.PostgresConfig{
			Host:         host,
			Port:         port.Int(),
			Database:     "nomad_test",
			User:         "nomad_test",
			Password:     "nomad_test",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
	}

	require.NoError(t, statestore.RunMigrations(dbCfg))

	store, err := statestore.Open(dbCfg)
	require.NoError(t, err)

	upload := &model.Upload{
		UploadID:     "upload-pg-1",
		MainAuthorID: "author-1",
	}
	require.NoError(t, store.CreateUpload(ctx, upload))

	got, err := store.GetUpload(ctx, "upload-pg-1")
	require.NoError(t, err)
	require.Equal(t, "author-1", got.MainAuthorID)
}
