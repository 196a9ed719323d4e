package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: newGormLogger(log)})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := NewWithConn(conn, log)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBlacklistInsertIfAbsent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	listed, entry, err := db.IsBlacklisted(ctx, "mint1")
	require.NoError(t, err)
	assert.False(t, listed)
	assert.Nil(t, entry)

	require.NoError(t, db.AddToBlacklist(ctx, "mint1", CategoryContract, "unsafe contract"))
	require.NoError(t, db.AddToBlacklist(ctx, "mint1", CategoryVolume, "fake volume"))

	listed, entry, err = db.IsBlacklisted(ctx, "mint1")
	require.NoError(t, err)
	assert.True(t, listed)
	require.NotNil(t, entry)
	assert.Equal(t, "unsafe contract", entry.Reason, "first write wins")
	assert.NotZero(t, entry.AddedTS)

	count, err := db.CountBlacklist(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBlacklistConcurrentDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.AddToBlacklist(ctx, "racer", CategoryContract, "unsafe contract")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	count, err := db.CountBlacklist(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSnapshotFirstWriteWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inserted, err := db.InsertSnapshotIfAbsent(ctx, &AssetSnapshot{
		Address:  "mint1",
		Metadata: datatypes.JSON(`{"volume_24h":1}`),
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = db.InsertSnapshotIfAbsent(ctx, &AssetSnapshot{
		Address:  "mint1",
		Metadata: datatypes.JSON(`{"volume_24h":2}`),
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	snap, err := db.GetSnapshot(ctx, "mint1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"volume_24h":1}`, string(snap.Metadata))
}

func TestRecentSnapshotsOldestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, addr := range []string{"a", "b", "c"} {
		_, err := db.InsertSnapshotIfAbsent(ctx, &AssetSnapshot{
			Address:     addr,
			Metadata:    datatypes.JSON(`{}`),
			FirstSeenTS: int64(100 + i),
		})
		require.NoError(t, err)
	}

	snaps, err := db.RecentSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "b", snaps[0].Address)
	assert.Equal(t, "c", snaps[1].Address)
}

func TestAppendOnlyLogs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertSecurityCheck(ctx, &SecurityCheck{Address: "mint1", RiskScore: 80, IsSafe: true}))
	require.NoError(t, db.InsertSecurityCheck(ctx, &SecurityCheck{Address: "mint1", RiskScore: 81, IsSafe: true}))
	require.NoError(t, db.InsertVolumeCheck(ctx, &VolumeCheck{Address: "mint1", VolumeUSD: 150000, IsFake: true, Source: "local"}))
	require.NoError(t, db.InsertTrade(ctx, &TradeRecord{Address: "mint1", Action: "buy", Amount: 0.05, Slippage: 0.11, Status: "executed"}))

	id1, err := db.InsertAlert(ctx, &AlertRecord{AlertType: "pump", Message: "m", Address: "mint1"})
	require.NoError(t, err)
	id2, err := db.InsertAlert(ctx, &AlertRecord{AlertType: "safe", Message: "m", Address: "mint1"})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	alerts, err := db.AlertsForAddress(ctx, "mint1")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "pump", alerts[0].AlertType)
	assert.NotZero(t, alerts[0].CreatedTS)

	var checks int64
	require.NoError(t, db.conn.Model(&SecurityCheck{}).Count(&checks).Error)
	assert.Equal(t, int64(2), checks)
}
