package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/infra/store/storetest"
	"github.com/kilianp07/carbonlane/test/util"
)

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestStoreContract(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container test skipped in short mode")
	}
	ctx := context.Background()
	dsn, cleanup, err := util.StartPostgres(ctx)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(cleanup)

	storetest.Run(t, func(t *testing.T) lane.Store {
		s, err := New(ctx, Config{DSN: dsn, MaxOpenConns: 16})
		require.NoError(t, err)
		_, err = s.DB().ExecContext(ctx, `TRUNCATE car_entries RESTART IDENTITY`)
		require.NoError(t, err)
		return s
	})
}
