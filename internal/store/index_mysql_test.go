package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"swfdiff/internal/common/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set SWFDIFF_TEST_MYSQL_DSN (with parseTime=true) to run against a server.
func TestMySQLIndex(t *testing.T) {
	dsn := os.Getenv("SWFDIFF_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SWFDIFF_TEST_MYSQL_DSN not set")
	}
	database, err := db.NewMySQL(dsn)
	require.NoError(t, err)
	ctx := context.Background()
	idx, err := NewMySQLIndex(ctx, database)
	require.NoError(t, err)
	defer idx.Close()

	sum := sha256.Sum256([]byte(t.Name() + time.Now().String()))
	fp := hex.EncodeToString(sum[:])
	t0 := time.Now().UTC().Truncate(time.Microsecond)

	rec, created, err := idx.Insert(ctx, record(fp, t0))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), rec.Duplicates)

	rec, created, err = idx.Insert(ctx, record(fp, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(2), rec.Duplicates)
	assert.True(t, rec.LastSeen.Equal(t0.Add(time.Minute)))

	got, err := idx.Get(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = database.Exec(ctx, `DELETE FROM swfdiff_failures WHERE fingerprint = ?`, fp)
	require.NoError(t, err)
}
