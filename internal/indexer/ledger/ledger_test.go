package ledger

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
)

// openTestDB connects to QI_TEST_POSTGRES_DSN inside a private schema, or
// skips the test when the variable is unset or the server is unreachable.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("QI_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QI_TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("postgres unreachable: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`DROP TABLE IF EXISTS index_builds`)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec(`DROP TABLE IF EXISTS index_builds`)
		db.Close()
	})
	return db
}

func TestRecordAndLatest(t *testing.T) {
	db := openTestDB(t)
	l := New(db)
	ctx := context.Background()
	require.NoError(t, l.EnsureSchema(ctx))

	_, err := l.Latest(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	first := time.Date(2021, 5, 27, 9, 0, 0, 0, time.UTC)
	_, err = l.RecordBuild(ctx, Build{TraceID: "a", IndexKey: "index-2021-05-27--09:00.json", WordIDsKey: "word-ids-2021-05-27--09:00.json", Words: 3, FinishedAt: first})
	require.NoError(t, err)
	id, err := l.RecordBuild(ctx, Build{TraceID: "b", IndexKey: "index-2021-05-28--09:00.json", WordIDsKey: "word-ids-2021-05-28--09:00.json", Words: 5, Duration: 1500 * time.Millisecond, FinishedAt: first.Add(24 * time.Hour)})
	require.NoError(t, err)

	latest, err := l.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, "index-2021-05-28--09:00.json", latest.IndexKey)
	assert.Equal(t, 5, latest.Words)
	assert.Equal(t, 1500*time.Millisecond, latest.Duration)
}
