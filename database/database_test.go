package database

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStmtCache(t *testing.T) {
	db, err := OpenSQLite(MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE kv (key TEXT PRIMARY KEY, value TEXT NOT NULL);`)
	require.NoError(t, err)

	sc := NewStmtCache(db)
	defer sc.Clear()

	insert := `INSERT INTO kv (key, value) VALUES (?, ?)`
	first, err := sc.Prepare(insert)
	require.NoError(t, err)
	second := sc.MustPrepare(insert)
	assert.Same(t, first, second)

	_, err = first.Exec("a", "1")
	require.NoError(t, err)

	var value string
	require.NoError(t, sc.MustPrepare(`SELECT value FROM kv WHERE key = ?`).QueryRow("a").Scan(&value))
	assert.Equal(t, "1", value)

	_, err = sc.Prepare(`SELECT nothing FROM nowhere`)
	assert.Error(t, err)
}

func TestKeyedMutex(t *testing.T) {
	km := NewKeyedMutex()

	var inside atomic.Int32
	var maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("swap-1")
			defer unlock()
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, km.Len())

	// other keys are not blocked
	unlock := km.Lock("a")
	done := make(chan struct{})
	go func() {
		km.Lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated key blocked")
	}
	unlock()
}
