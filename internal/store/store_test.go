package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/your-org/execmon/internal/model"
)

func TestInsertAndCount(t *testing.T) {
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	ev := model.Event{
		Timestamp: time.Now().UTC(),
		Pid:       42,
		Ppid:      1,
		Comm:      "true",
		Filename:  "/bin/true",
	}
	require.NoError(t, db.InsertExecEvent(ev))
	require.NoError(t, db.InsertExecEvent(ev))

	n, err := db.CountExecEvents()
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestNewDBIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	db, err := NewDB(dir)
	require.NoError(t, err)
	require.NoError(t, db.InsertExecEvent(model.Event{Timestamp: time.Now(), Comm: "a"}))
	require.NoError(t, db.Close())

	// Reopening must keep the existing data.
	db, err = NewDB(dir)
	require.NoError(t, err)
	defer db.Close()

	n, err := db.CountExecEvents()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
