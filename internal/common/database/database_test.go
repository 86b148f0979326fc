package database

import (
	"context"
	"errors"
	"testing"

	"readiness-workers/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Postgres Tests
// ==========================

func TestQueryMaps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"org_id", "fit_score_0_to_100", "investor_profile"}).
		AddRow("org-1", int64(81), []byte(`{"name":"Seed Fund"}`)).
		AddRow("org-1", nil, nil)
	mock.ExpectQuery(`SELECT \* FROM startup_investor_matches WHERE org_id = \$1`).
		WithArgs("org-1").
		WillReturnRows(rows)

	got, err := QueryMaps(context.Background(), db,
		`SELECT * FROM startup_investor_matches WHERE org_id = $1`, "org-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "org-1", got[0]["org_id"])
	assert.Equal(t, int64(81), got[0]["fit_score_0_to_100"])
	assert.Equal(t, `{"name":"Seed Fund"}`, got[0]["investor_profile"])
	assert.Nil(t, got[1]["fit_score_0_to_100"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryMaps_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("permission denied for table"))

	_, err = QueryMaps(context.Background(), db, `SELECT 1`)
	assert.EqualError(t, err, "permission denied for table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryMaps_RowError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"org_id"}).
		AddRow("a").
		RowError(0, errors.New("broken row"))
	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	_, err = QueryMaps(context.Background(), db, `SELECT org_id FROM t`)
	assert.Error(t, err)
}

func TestPostgresClient_CloseNil(t *testing.T) {
	c := &PostgresClient{}
	assert.NoError(t, c.Close())
}

// ==========================
// Redis Tests
// ==========================

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, &RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
}

func TestRedisClient_Ping(t *testing.T) {
	mr, rc := newMiniRedis(t)
	require.NoError(t, rc.Ping(context.Background()))

	mr.Close()
	err := rc.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)

	rc, err := NewRedis(config.RedisConfig{Address: "localhost:6379"})
	require.NoError(t, err)
	assert.NoError(t, rc.Close())
}
