package database

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/seatshield/ticket-fraud-backend/internal/testutil"
)

func TestMonitor_Observe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	db := testutil.NewTestDB(t)
	pool := newTestConnectionPool(t, db)
	ctx := testutil.TestContext(t)

	core, logs := observer.New(zap.DebugLevel)
	monitor := NewMonitor(pool, 0, zap.New(core))

	monitor.observe()
	require.Equal(t, 1, logs.FilterMessage("database pool stats").Len())
	assert.Equal(t, 0, logs.FilterMessage("database pool saturated").Len())

	// Hold every connection so the next sample sees a saturated pool.
	conns := make([]*pgxpool.Conn, 0, 5)
	for i := 0; i < 5; i++ {
		conn, err := pool.Pool().Acquire(ctx)
		require.NoError(t, err)
		conns = append(conns, conn)
	}

	monitor.observe()
	saturated := logs.FilterMessage("database pool saturated").All()
	require.Len(t, saturated, 1)
	assert.Equal(t, int32(5), saturated[0].ContextMap()["max_conns"])

	for _, conn := range conns {
		conn.Release()
	}
}

func TestMonitor_StartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	db := testutil.NewTestDB(t)
	pool := newTestConnectionPool(t, db)

	core, logs := observer.New(zap.DebugLevel)
	monitor := NewMonitor(pool, 5*time.Millisecond, zap.New(core))

	monitor.Start()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("database pool stats").Len() > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Stop returns only once the sampling goroutine has exited.
	monitor.Stop()
}
