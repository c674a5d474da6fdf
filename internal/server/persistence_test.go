package server

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"puzzle-server/internal/database"
)

// setupTestDB starts a throwaway postgres container, runs migrations, and
// hands back a connected pool. Skipped in -short mode and when docker is
// unavailable.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("puzzle"),
		postgres.WithUsername("puzzle"),
		postgres.WithPassword("puzzle"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("could not start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func TestPersistence_CreateAndLookupUser(t *testing.T) {
	db := setupTestDB(t)
	pm := NewPersistenceManager(db)
	ctx := context.Background()

	id, err := pm.CreateUser(ctx, "Budi", "budi@example.com", "hashed-password")
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	byEmail, err := pm.UserByEmail(ctx, "budi@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, "Budi", byEmail.Nama)
	assert.Equal(t, "hashed-password", byEmail.Password)
	assert.Equal(t, 0, byEmail.TotalSkor)
	assert.False(t, byEmail.TerakhirLogin.Valid)

	byName, err := pm.UserByName(ctx, "Budi")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)

	_, err = pm.UserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPersistence_DuplicateUserRejected(t *testing.T) {
	db := setupTestDB(t)
	pm := NewPersistenceManager(db)
	ctx := context.Background()

	_, err := pm.CreateUser(ctx, "Budi", "budi@example.com", "x")
	require.NoError(t, err)

	_, err = pm.CreateUser(ctx, "Budi", "other@example.com", "x")
	assert.Error(t, err, "duplicate name should be rejected")

	_, err = pm.CreateUser(ctx, "Other", "budi@example.com", "x")
	assert.Error(t, err, "duplicate email should be rejected")
}

func TestPersistence_TouchLastLogin(t *testing.T) {
	db := setupTestDB(t)
	pm := NewPersistenceManager(db)
	ctx := context.Background()

	id, err := pm.CreateUser(ctx, "Budi", "budi@example.com", "x")
	require.NoError(t, err)

	require.NoError(t, pm.TouchLastLogin(ctx, id))

	user, err := pm.UserByEmail(ctx, "budi@example.com")
	require.NoError(t, err)
	require.True(t, user.TerakhirLogin.Valid)
	assert.WithinDuration(t, time.Now(), user.TerakhirLogin.Time, time.Minute)
}

func TestPersistence_LeaderboardOrdering(t *testing.T) {
	db := setupTestDB(t)
	pm := NewPersistenceManager(db)
	ctx := context.Background()

	budi, err := pm.CreateUser(ctx, "Budi", "budi@example.com", "x")
	require.NoError(t, err)
	siti, err := pm.CreateUser(ctx, "Siti", "siti@example.com", "x")
	require.NoError(t, err)

	scores := []ScoreRecord{
		{UserID: budi, Skor: 90, TingkatKesulitan: "mudah", UkuranGrid: 3, WaktuDetik: 45},
		{UserID: siti, Skor: 160, TingkatKesulitan: "sedang", UkuranGrid: 4, WaktuDetik: 120},
		{UserID: budi, Skor: 250, TingkatKesulitan: "sulit", UkuranGrid: 5, WaktuDetik: 300},
	}
	for _, rec := range scores {
		require.NoError(t, pm.SaveScore(ctx, rec))
	}

	entries, err := pm.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Highest score first, ranks assigned in order
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Budi", entries[0].NamaPemain)
	assert.Equal(t, 250, entries[0].Skor)
	assert.Equal(t, "sulit", entries[0].TingkatKesulitan)
	assert.Equal(t, 5, entries[0].UkuranGrid)

	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "Siti", entries[1].NamaPemain)
	assert.Equal(t, 160, entries[1].Skor)

	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, 90, entries[2].Skor)

	// Limit caps the result set
	top, err := pm.Leaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 250, top[0].Skor)
}

func TestPersistence_LeaderboardTieBreak(t *testing.T) {
	db := setupTestDB(t)
	pm := NewPersistenceManager(db)
	ctx := context.Background()

	budi, err := pm.CreateUser(ctx, "Budi", "budi@example.com", "x")
	require.NoError(t, err)
	siti, err := pm.CreateUser(ctx, "Siti", "siti@example.com", "x")
	require.NoError(t, err)

	require.NoError(t, pm.SaveScore(ctx, ScoreRecord{UserID: budi, Skor: 90, TingkatKesulitan: "mudah", UkuranGrid: 3, WaktuDetik: 45}))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pm.SaveScore(ctx, ScoreRecord{UserID: siti, Skor: 90, TingkatKesulitan: "mudah", UkuranGrid: 3, WaktuDetik: 50}))

	entries, err := pm.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Equal scores rank the most recent game first
	assert.Equal(t, "Siti", entries[0].NamaPemain)
	assert.Equal(t, "Budi", entries[1].NamaPemain)
}

func TestPersistence_RecalcTotalScore(t *testing.T) {
	db := setupTestDB(t)
	pm := NewPersistenceManager(db)
	ctx := context.Background()

	id, err := pm.CreateUser(ctx, "Budi", "budi@example.com", "x")
	require.NoError(t, err)

	require.NoError(t, pm.SaveScore(ctx, ScoreRecord{UserID: id, Skor: 90, TingkatKesulitan: "mudah", UkuranGrid: 3, WaktuDetik: 45}))
	require.NoError(t, pm.SaveScore(ctx, ScoreRecord{UserID: id, Skor: 160, TingkatKesulitan: "sedang", UkuranGrid: 4, WaktuDetik: 100}))

	total, err := pm.RecalcTotalScore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 250, total)

	user, err := pm.UserByEmail(ctx, "budi@example.com")
	require.NoError(t, err)
	assert.Equal(t, 250, user.TotalSkor)
}

func TestPersistence_RecalcWithNoScores(t *testing.T) {
	db := setupTestDB(t)
	pm := NewPersistenceManager(db)
	ctx := context.Background()

	id, err := pm.CreateUser(ctx, "Budi", "budi@example.com", "x")
	require.NoError(t, err)

	total, err := pm.RecalcTotalScore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
