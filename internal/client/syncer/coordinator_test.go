package syncer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/snapsync/internal/client/gateway"
	"github.com/avolkov/snapsync/internal/client/models"
	"github.com/avolkov/snapsync/internal/client/store"
	"github.com/avolkov/snapsync/internal/common"
	"github.com/avolkov/snapsync/internal/logging"

	_ "modernc.org/sqlite"
)

type fakeProbe struct{ online atomic.Bool }

func (p *fakeProbe) Online(context.Context) bool { return p.online.Load() }

// fakeGateway implements gateway.Gateway with overridable behavior and call
// counters.
type fakeGateway struct {
	listFiles  func(setName string, p gateway.ListParams) ([]models.FileRecord, error)
	createFile func(setName string, rec *models.FileRecord) (string, string, error)
	updateFile func(setName string, rec *models.FileRecord) error
	deleteFile func(setName string, rec *models.FileRecord) error

	listCalls   atomic.Int64
	createCalls atomic.Int64
	updateCalls atomic.Int64
	deleteCalls atomic.Int64
}

func (g *fakeGateway) Ping(context.Context) error { return nil }

func (g *fakeGateway) ListSets(context.Context, gateway.SetListParams) ([]models.SetOverview, error) {
	return nil, nil
}

func (g *fakeGateway) ListFiles(_ context.Context, setName string, p gateway.ListParams) ([]models.FileRecord, error) {
	g.listCalls.Add(1)
	if g.listFiles == nil {
		return nil, nil
	}
	return g.listFiles(setName, p)
}

func (g *fakeGateway) CreateFile(_ context.Context, setName string, rec *models.FileRecord) (string, string, error) {
	g.createCalls.Add(1)
	if g.createFile == nil {
		return "r-" + rec.LocalID, "owner/" + setName + "/files/" + rec.LocalID, nil
	}
	return g.createFile(setName, rec)
}

func (g *fakeGateway) UpdateFile(_ context.Context, setName string, rec *models.FileRecord) error {
	g.updateCalls.Add(1)
	if g.updateFile == nil {
		return nil
	}
	return g.updateFile(setName, rec)
}

func (g *fakeGateway) DeleteFile(_ context.Context, setName string, rec *models.FileRecord) error {
	g.deleteCalls.Add(1)
	if g.deleteFile == nil {
		return nil
	}
	return g.deleteFile(setName, rec)
}

func setupCoordinator(t *testing.T, gw *fakeGateway, probe *fakeProbe) (*Coordinator, *store.SQLiteStore) {
	t.Helper()
	st, db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := New(st, gw, probe, logging.NewDefault(), 20*time.Millisecond)
	t.Cleanup(c.Close)
	return c, st
}

func captured(localID string, updatedAt int64) *models.FileRecord {
	return &models.FileRecord{
		LocalID:     localID,
		Payload:     []byte("img"),
		ContentType: "image/jpeg",
		Size:        3,
		Filename:    localID + ".jpg",
		Version:     1,
		CreatedAt:   updatedAt,
		UpdatedAt:   updatedAt,
		ShouldPush:  true,
	}
}

func TestSyncSet_Offline_NothingLeavesTheDevice(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, "trip", captured("f1", 100)))

	c.SyncSet(ctx, "trip")

	assert.Zero(t, gw.listCalls.Load())
	assert.Zero(t, gw.createCalls.Load())

	got, err := st.GetByID(ctx, "trip", "f1")
	require.NoError(t, err)
	assert.True(t, got.ShouldPush)
}

func TestSyncSet_PushesCapturedRecord(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, "trip", captured("f1", 100)))

	c.SyncSet(ctx, "trip")

	assert.Equal(t, int64(1), gw.createCalls.Load())

	got, err := st.GetByID(ctx, "trip", "f1")
	require.NoError(t, err)
	assert.Equal(t, "r-f1", got.RemoteID)
	assert.Equal(t, "owner/trip/files/f1", got.StorageKey)
	assert.False(t, got.ShouldPush)
	assert.True(t, c.Online())
}

func TestSyncSet_PushesOldestFirst_UntilNonePending(t *testing.T) {
	gw := &fakeGateway{}
	var order []string
	gw.createFile = func(setName string, rec *models.FileRecord) (string, string, error) {
		order = append(order, rec.LocalID)
		return "r-" + rec.LocalID, "k-" + rec.LocalID, nil
	}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, "trip", captured("newer", 300)))
	require.NoError(t, st.Create(ctx, "trip", captured("older", 100)))

	c.SyncSet(ctx, "trip")

	assert.Equal(t, []string{"older", "newer"}, order)
}

func TestSyncSet_PushFailure_LeavesRecordPending(t *testing.T) {
	gw := &fakeGateway{}
	gw.createFile = func(string, *models.FileRecord) (string, string, error) {
		return "", "", common.ErrUnavailable
	}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, "trip", captured("f1", 100)))

	c.SyncSet(ctx, "trip")

	got, err := st.GetByID(ctx, "trip", "f1")
	require.NoError(t, err)
	assert.True(t, got.ShouldPush)
	assert.Empty(t, got.RemoteID)
}

func TestSyncSet_PullFailureIsNonFatal_PushStillRuns(t *testing.T) {
	gw := &fakeGateway{}
	gw.listFiles = func(string, gateway.ListParams) ([]models.FileRecord, error) {
		return nil, common.ErrUnavailable
	}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, "trip", captured("f1", 100)))

	c.SyncSet(ctx, "trip")

	assert.Equal(t, int64(1), gw.createCalls.Load())
}

func TestPushOne_TombstonePropagatesThenPurges(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	rec := captured("f1", 100)
	rec.RemoteID = "r1"
	require.NoError(t, st.Create(ctx, "trip", rec))

	upd := rec.Clone()
	upd.Tombstone(200)
	require.NoError(t, st.Update(ctx, "trip", upd))

	pushed, err := c.PushOne(ctx, "trip")
	require.NoError(t, err)
	assert.True(t, pushed)
	assert.Equal(t, int64(1), gw.deleteCalls.Load())

	_, err = st.GetByID(ctx, "trip", "f1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPushOne_RegisteredRecordGoesThroughUpdate(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	rec := captured("f1", 100)
	rec.RemoteID = "r1"
	rec.StorageKey = "k1"
	require.NoError(t, st.Create(ctx, "trip", rec))

	pushed, err := c.PushOne(ctx, "trip")
	require.NoError(t, err)
	assert.True(t, pushed)
	assert.Equal(t, int64(1), gw.updateCalls.Load())
	assert.Zero(t, gw.createCalls.Load())

	got, err := st.GetByID(ctx, "trip", "f1")
	require.NoError(t, err)
	assert.False(t, got.ShouldPush)
}

func TestPushOne_EditLandingMidPushIsNotReverted(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	rec := captured("f1", 100)
	rec.RemoteID = "r1"
	rec.StorageKey = "k1"
	rec.Version = 2
	require.NoError(t, st.Create(ctx, "trip", rec))

	// a rename lands while the update is on the wire
	gw.updateFile = func(string, *models.FileRecord) error {
		got, err := st.GetByID(ctx, "trip", "f1")
		require.NoError(t, err)
		edit := got.Clone()
		edit.Filename = "renamed.jpg"
		edit.Touch(900)
		require.NoError(t, st.Update(ctx, "trip", edit))
		return nil
	}

	pushed, err := c.PushOne(ctx, "trip")
	require.NoError(t, err)
	assert.True(t, pushed)

	got, err := st.GetByID(ctx, "trip", "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, "renamed.jpg", got.Filename)
	assert.True(t, got.ShouldPush)
}

func TestPushOne_EditLandingMidCreateStaysPending(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, "trip", captured("f1", 100)))

	gw.createFile = func(string, *models.FileRecord) (string, string, error) {
		got, err := st.GetByID(ctx, "trip", "f1")
		require.NoError(t, err)
		edit := got.Clone()
		edit.Filename = "renamed.jpg"
		edit.Touch(900)
		require.NoError(t, st.Update(ctx, "trip", edit))
		return "r-f1", "k-f1", nil
	}

	pushed, err := c.PushOne(ctx, "trip")
	require.NoError(t, err)
	assert.True(t, pushed)

	// the server ids stick, the concurrent edit keeps the record pending
	got, err := st.GetByID(ctx, "trip", "f1")
	require.NoError(t, err)
	assert.Equal(t, "r-f1", got.RemoteID)
	assert.Equal(t, "k-f1", got.StorageKey)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, got.ShouldPush)
}

func TestPushOne_ConflictOnUpdate_SettlesRecord(t *testing.T) {
	gw := &fakeGateway{}
	gw.updateFile = func(string, *models.FileRecord) error {
		return common.ErrVersionConflict
	}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	rec := captured("f1", 100)
	rec.RemoteID = "r1"
	rec.StorageKey = "k1"
	require.NoError(t, st.Create(ctx, "trip", rec))

	pushed, err := c.PushOne(ctx, "trip")
	require.NoError(t, err)
	assert.True(t, pushed)

	// the server kept its newer copy; the local record stops pushing and
	// waits for the pull to bring the winner
	got, err := st.GetByID(ctx, "trip", "f1")
	require.NoError(t, err)
	assert.False(t, got.ShouldPush)
	assert.Equal(t, int64(1), got.Version)
}

func TestPushOne_ConflictOnTombstone_IsNotPurged(t *testing.T) {
	gw := &fakeGateway{}
	gw.deleteFile = func(string, *models.FileRecord) error {
		return common.ErrVersionConflict
	}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	rec := captured("f1", 100)
	rec.RemoteID = "r1"
	require.NoError(t, st.Create(ctx, "trip", rec))

	upd := rec.Clone()
	upd.Tombstone(200)
	require.NoError(t, st.Update(ctx, "trip", upd))

	pushed, err := c.PushOne(ctx, "trip")
	require.NoError(t, err)
	assert.True(t, pushed)

	// rejected tombstone: the record survives until the pull merges the
	// newer remote copy back in
	got, err := st.GetByID(ctx, "trip", "f1")
	require.NoError(t, err)
	assert.True(t, got.Tombstoned())
	assert.False(t, got.ShouldPush)
}

func TestPushOne_UnregisteredWithoutPayloadIsNotEligible(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	rec := captured("f1", 100)
	rec.Payload = nil
	require.NoError(t, st.Create(ctx, "trip", rec))

	pushed, err := c.PushOne(ctx, "trip")
	require.NoError(t, err)
	assert.False(t, pushed)
	assert.Zero(t, gw.createCalls.Load())
}

func TestSelectCandidate_InflightRecordIsSkipped(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	c, _ := setupCoordinator(t, gw, probe)

	recs := []models.FileRecord{*captured("f1", 100)}

	first := c.selectCandidate(recs)
	require.NotNil(t, first)
	assert.Equal(t, "f1", first.LocalID)

	// the slot is claimed until release
	assert.Nil(t, c.selectCandidate(recs))

	c.release("f1")
	assert.NotNil(t, c.selectCandidate(recs))
}

func TestPull_MergesRemoteAndAdvancesMarker(t *testing.T) {
	gw := &fakeGateway{}
	remote := *captured("f2", 500)
	remote.RemoteID = "r2"
	remote.ShouldPush = false
	remote.FetchedAt = 600
	gw.listFiles = func(string, gateway.ListParams) ([]models.FileRecord, error) {
		return []models.FileRecord{remote}, nil
	}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	require.NoError(t, c.Pull(ctx, "trip"))

	got, err := st.GetByID(ctx, "trip", "f2")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RemoteID)

	sets, err := st.Sets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, int64(500), sets[0].SyncMarker)

	proj := c.Set("trip")
	require.NotNil(t, proj)
	assert.Len(t, proj.Files, 1)
	assert.Equal(t, int64(500), proj.SyncMarker)
}

func TestPull_AcknowledgedTombstoneIsPurgedLocally(t *testing.T) {
	gw := &fakeGateway{}
	tomb := *captured("f1", 300)
	tomb.RemoteID = "r1"
	tomb.Payload = nil
	tomb.DeletedAt = 300
	tomb.ShouldPush = false
	tomb.FetchedAt = 400
	gw.listFiles = func(string, gateway.ListParams) ([]models.FileRecord, error) {
		return []models.FileRecord{tomb}, nil
	}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	rec := captured("f1", 100)
	rec.RemoteID = "r1"
	rec.ShouldPush = false
	require.NoError(t, st.Create(ctx, "trip", rec))

	require.NoError(t, c.Pull(ctx, "trip"))

	_, err := st.GetByID(ctx, "trip", "f1")
	require.ErrorIs(t, err, common.ErrNotFound)

	proj := c.Set("trip")
	require.NotNil(t, proj)
	assert.Empty(t, proj.Files)
}

func TestPull_PassesWatermarkToGateway(t *testing.T) {
	gw := &fakeGateway{}
	var gotParams gateway.ListParams
	gw.listFiles = func(_ string, p gateway.ListParams) ([]models.FileRecord, error) {
		gotParams = p
		return nil, nil
	}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	rec := captured("f1", 700)
	rec.ShouldPush = false
	rec.FetchedAt = 800
	require.NoError(t, st.Create(ctx, "trip", rec))

	require.NoError(t, c.Pull(ctx, "trip"))

	assert.Equal(t, int64(700), gotParams.UpdatedAfter)
	assert.True(t, gotParams.IncludeDeleted)
}

func TestSchedule_CollapsesBurstIntoOnePass(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, _ := setupCoordinator(t, gw, probe)

	for i := 0; i < 10; i++ {
		c.Schedule("trip")
	}

	assert.Eventually(t, func() bool {
		return gw.listCalls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// no second pass fires after the window
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), gw.listCalls.Load())
}

func TestSchedule_AfterClose_IsIgnored(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	probe.online.Store(true)
	c, _ := setupCoordinator(t, gw, probe)

	c.Close()
	c.Schedule("trip")

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, gw.listCalls.Load())
}

func TestStartWatcher_OfflineToOnline_TriggersPass(t *testing.T) {
	gw := &fakeGateway{}
	probe := &fakeProbe{}
	c, st := setupCoordinator(t, gw, probe)
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, "trip", captured("f1", 100)))

	c.StartWatcher(10 * time.Millisecond)

	// stays quiet while offline
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, gw.listCalls.Load())

	probe.online.Store(true)

	assert.Eventually(t, func() bool {
		return gw.createCalls.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWatermark(t *testing.T) {
	tests := []struct {
		name string
		recs []models.FileRecord
		want int64
	}{
		{
			name: "empty snapshot fetches everything",
			recs: nil,
			want: 0,
		},
		{
			name: "newest fetched record wins",
			recs: []models.FileRecord{
				{UpdatedAt: 100, FetchedAt: 1},
				{UpdatedAt: 300, FetchedAt: 1},
				{UpdatedAt: 500, ShouldPush: true},
			},
			want: 300,
		},
		{
			name: "never fetched falls back to newest synced",
			recs: []models.FileRecord{
				{UpdatedAt: 100},
				{UpdatedAt: 200, ShouldPush: true},
			},
			want: 100,
		},
		{
			name: "all pending falls back to oldest",
			recs: []models.FileRecord{
				{UpdatedAt: 400, ShouldPush: true},
				{UpdatedAt: 200, ShouldPush: true},
			},
			want: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Watermark(tt.recs))
		})
	}
}
