package database_test

import (
	"context"
	"tcav-panel/internal/database"
	"tcav-panel/pkg/api"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func checkExamples(t *testing.T, databaseURL string) {
	db, err := database.NewDatabase(databaseURL)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, database.SaveExamples(ctx, db, "sst_dev", []api.IndexedInput{
		{Id: "e1", Data: map[string]any{"sentence": "fine"}},
		{Id: "e2"},
	}))

	// Saving an existing id updates it in place.
	require.NoError(t, database.SaveExamples(ctx, db, "sst_dev", []api.IndexedInput{
		{Id: "e1", Data: map[string]any{"sentence": "changed"}},
	}))

	inputs, err := database.LoadExamples(ctx, db, "sst_dev")
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	ids := []string{inputs[0].Id, inputs[1].Id}
	assert.ElementsMatch(t, []string{"e1", "e2"}, ids)
	for _, input := range inputs {
		if input.Id == "e1" {
			assert.Equal(t, "changed", input.Data["sentence"])
		}
	}

	// Migrating an already migrated database is a no-op.
	require.NoError(t, database.GetMigrator(db).Migrate())
}

func TestSqliteDatabase(t *testing.T) {
	checkExamples(t, "sqlite://"+t.TempDir()+"/panel.db")
}

func TestPostgresDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	checkExamples(t, setupPostgresContainer(t, context.Background()))
}
