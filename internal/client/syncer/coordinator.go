package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avolkov/snapsync/internal/client/gateway"
	"github.com/avolkov/snapsync/internal/client/models"
	"github.com/avolkov/snapsync/internal/client/store"
	"github.com/avolkov/snapsync/internal/common"
	"github.com/avolkov/snapsync/internal/logging"
)

// DefaultDebounce is the window that batches bursts of captures and edits
// into a single sync pass.
const DefaultDebounce = time.Second

// Probe reports whether the remote system is reachable. The coordinator
// consults it before every network operation; when offline, pending work
// accumulates durably in the local store.
type Probe interface {
	Online(ctx context.Context) bool
}

// PingProbe implements Probe on top of the gateway's ping endpoint.
type PingProbe struct {
	gw      gateway.Gateway
	timeout time.Duration
}

func NewPingProbe(gw gateway.Gateway) *PingProbe {
	return &PingProbe{gw: gw, timeout: 3 * time.Second}
}

func (p *PingProbe) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.gw.Ping(ctx) == nil
}

// Coordinator orchestrates directional sync between the local store and the
// remote gateway: debounced push/pull passes, an in-flight set guaranteeing
// at most one network operation per record, and an online gate.
//
// A coordinator is constructed once per session with injected store and
// gateway implementations and keeps an in-memory projection of the synced
// sets.
type Coordinator struct {
	store    store.Store
	gw       gateway.Gateway
	probe    Probe
	log      logging.Logger
	debounce time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	pulling  map[string]struct{}
	timers   map[string]*time.Timer
	sets     map[string]*models.ImageSet
	online   bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a coordinator ready to schedule passes. A non-positive
// debounce falls back to DefaultDebounce.
func New(st store.Store, gw gateway.Gateway, probe Probe, log logging.Logger, debounce time.Duration) *Coordinator {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:    st,
		gw:       gw,
		probe:    probe,
		log:      log,
		debounce: debounce,
		inflight: make(map[string]struct{}),
		pulling:  make(map[string]struct{}),
		timers:   make(map[string]*time.Timer),
		sets:     make(map[string]*models.ImageSet),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close cancels outstanding network calls and waits for running passes.
// Cancelled pulls cannot corrupt local state: merges are whole-record
// last-write-wins and idempotent.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	for name, t := range c.timers {
		t.Stop()
		delete(c.timers, name)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// Schedule requests a sync pass for the set after the debounce window.
// Repeated calls within the window collapse into one pass.
func (c *Coordinator) Schedule(setName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if t, ok := c.timers[setName]; ok {
		t.Reset(c.debounce)
		return
	}
	c.timers[setName] = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		delete(c.timers, setName)
		c.mu.Unlock()
		c.runPass(setName)
	})
}

func (c *Coordinator) runPass(setName string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	c.SyncSet(c.ctx, setName)
}

// SyncSet runs one full pass for a set: pull, then push until nothing is
// eligible. Pull failures are non-fatal; push failures stop the pass and
// leave the record pending for the next one.
func (c *Coordinator) SyncSet(ctx context.Context, setName string) {
	if !c.probe.Online(ctx) {
		c.setOnline(false)
		c.log.Debug(ctx, "offline, pass skipped", "set", setName)
		return
	}
	c.setOnline(true)

	if err := c.Pull(ctx, setName); err != nil {
		c.log.Error(ctx, "pull failed", "set", setName, "error", err.Error())
	}

	for {
		pushed, err := c.PushOne(ctx, setName)
		if err != nil {
			c.log.Error(ctx, "push failed", "set", setName, "error", err.Error())
			return
		}
		if !pushed {
			return
		}
	}
}

// Watermark computes the pull watermark from a local snapshot: the newest
// fetched record if any, else the newest record not pending push, else the
// oldest record's updatedAt. An empty snapshot yields zero (fetch all).
func Watermark(recs []models.FileRecord) int64 {
	var fetched, synced, oldest int64
	for _, r := range recs {
		if r.FetchedAt > 0 && r.UpdatedAt > fetched {
			fetched = r.UpdatedAt
		}
		if !r.ShouldPush && r.UpdatedAt > synced {
			synced = r.UpdatedAt
		}
		if oldest == 0 || r.UpdatedAt < oldest {
			oldest = r.UpdatedAt
		}
	}
	if fetched > 0 {
		return fetched
	}
	if synced > 0 {
		return synced
	}
	return oldest
}

func (c *Coordinator) tryBeginPull(setName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pulling[setName]; ok {
		return false
	}
	c.pulling[setName] = struct{}{}
	return true
}

func (c *Coordinator) endPull(setName string) {
	c.mu.Lock()
	delete(c.pulling, setName)
	c.mu.Unlock()
}

// Pull fetches remote changes at or after the watermark and merges them into
// the local store. At most one pull is active per set; a second call while
// one is running is a no-op. A failed pull leaves local state unchanged.
func (c *Coordinator) Pull(ctx context.Context, setName string) error {
	if !c.tryBeginPull(setName) {
		return nil
	}
	defer c.endPull(setName)

	if !c.probe.Online(ctx) {
		return nil
	}

	local, err := c.store.GetAll(ctx, setName)
	if err != nil {
		return fmt.Errorf("local snapshot: %w", err)
	}

	remote, err := c.gw.ListFiles(ctx, setName, gateway.ListParams{
		UpdatedAfter:   Watermark(local),
		IncludeDeleted: true,
	})
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	merged, err := c.store.Merge(ctx, setName, remote, Resolve)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	// A tombstone with the pending flag clear has been acknowledged on both
	// sides; only then is the record removed physically.
	kept := merged[:0]
	for i := range merged {
		r := &merged[i]
		if r.Tombstoned() && !r.ShouldPush {
			if err := c.store.Delete(ctx, setName, r.LocalID); err != nil {
				c.log.Warn(ctx, "tombstone purge failed", "set", setName, "localId", r.LocalID, "error", err.Error())
			}
			continue
		}
		kept = append(kept, *r)
	}

	var marker int64
	for i := range remote {
		if remote[i].UpdatedAt > marker {
			marker = remote[i].UpdatedAt
		}
	}
	if marker > 0 {
		if err := c.store.SetSyncMarker(ctx, setName, marker); err != nil {
			c.log.Warn(ctx, "sync marker update failed", "set", setName, "error", err.Error())
		}
	}

	c.project(setName, kept, marker)
	c.log.Debug(ctx, "pull done", "set", setName, "remote", len(remote), "local", len(kept))
	return nil
}

// eligible reports whether a record can be selected for push: pending, and
// carrying a usable payload when it still needs registration.
func eligible(r *models.FileRecord) bool {
	if !r.ShouldPush {
		return false
	}
	if r.Tombstoned() || r.Registered() {
		return true
	}
	return len(r.Payload) > 0
}

// selectCandidate picks the oldest-updatedAt eligible record not already in
// flight and claims its slot atomically.
func (c *Coordinator) selectCandidate(recs []models.FileRecord) *models.FileRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cand *models.FileRecord
	for i := range recs {
		r := &recs[i]
		if !eligible(r) {
			continue
		}
		if _, busy := c.inflight[r.LocalID]; busy {
			continue
		}
		if cand == nil || r.UpdatedAt < cand.UpdatedAt {
			cand = r
		}
	}
	if cand != nil {
		c.inflight[cand.LocalID] = struct{}{}
	}
	return cand
}

func (c *Coordinator) release(localID string) {
	c.mu.Lock()
	delete(c.inflight, localID)
	c.mu.Unlock()
}

// PushOne pushes the single oldest eligible record of the set. It returns
// whether a record was pushed; a failed push leaves the record pending and
// is retried by the same oldest-first selection on the next pass.
func (c *Coordinator) PushOne(ctx context.Context, setName string) (bool, error) {
	if !c.probe.Online(ctx) {
		return false, nil
	}

	recs, err := c.store.GetAll(ctx, setName)
	if err != nil {
		return false, fmt.Errorf("local snapshot: %w", err)
	}

	cand := c.selectCandidate(recs)
	if cand == nil {
		return false, nil
	}
	defer c.release(cand.LocalID)

	switch {
	case cand.Tombstoned():
		err := c.gw.DeleteFile(ctx, setName, cand)
		switch {
		case errors.Is(err, common.ErrVersionConflict):
			// a newer remote edit beat the tombstone; stop pushing it and
			// let the next pull merge the winner back in
			if err := c.store.ClearPending(ctx, setName, cand.LocalID, cand.Version); err != nil {
				return false, fmt.Errorf("write back %s: %w", cand.LocalID, err)
			}
		case err != nil:
			return false, fmt.Errorf("delete %s: %w", cand.LocalID, err)
		default:
			if err := c.store.Delete(ctx, setName, cand.LocalID); err != nil {
				return false, fmt.Errorf("purge %s: %w", cand.LocalID, err)
			}
		}

	case cand.Registered() && cand.Version > 0:
		err := c.gw.UpdateFile(ctx, setName, cand)
		if err != nil && !errors.Is(err, common.ErrVersionConflict) {
			return false, fmt.Errorf("update %s: %w", cand.LocalID, err)
		}
		// on conflict the server kept its newer copy; either way this
		// revision is settled. The clear is version-guarded so an edit that
		// landed mid-push stays pending.
		if err := c.store.ClearPending(ctx, setName, cand.LocalID, cand.Version); err != nil {
			return false, fmt.Errorf("write back %s: %w", cand.LocalID, err)
		}

	default:
		remoteID, storageKey, err := c.gw.CreateFile(ctx, setName, cand)
		if err != nil {
			return false, fmt.Errorf("create %s: %w", cand.LocalID, err)
		}
		if err := c.store.MarkUploaded(ctx, setName, cand.LocalID, remoteID, storageKey, cand.Version); err != nil {
			return false, fmt.Errorf("write back %s: %w", cand.LocalID, err)
		}
	}

	c.refreshProjection(ctx, setName)
	c.log.Debug(ctx, "push done", "set", setName, "localId", cand.LocalID)
	return true, nil
}

func (c *Coordinator) refreshProjection(ctx context.Context, setName string) {
	recs, err := c.store.GetAll(ctx, setName)
	if err != nil {
		c.log.Warn(ctx, "projection refresh failed", "set", setName, "error", err.Error())
		return
	}
	c.project(setName, recs, 0)
}

func (c *Coordinator) project(setName string, files []models.FileRecord, marker int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[setName]
	if !ok {
		s = &models.ImageSet{Name: setName, Status: models.SetStatusDraft}
		c.sets[setName] = s
	}
	s.Files = files
	if marker > s.SyncMarker {
		s.SyncMarker = marker
	}
}

// Set returns a snapshot of the in-memory projection for a set, or nil if
// the set has not been touched this session.
func (c *Coordinator) Set(setName string) *models.ImageSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[setName]
	if !ok {
		return nil
	}
	cp := *s
	cp.Files = append([]models.FileRecord(nil), s.Files...)
	return &cp
}

// setOnline records the connectivity state and reports whether it changed.
func (c *Coordinator) setOnline(online bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online == online {
		return false
	}
	c.online = online
	return true
}

// Online reports the last observed connectivity state.
func (c *Coordinator) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// StartWatcher launches a background probe loop. An offline-to-online
// transition triggers an immediate pass over every locally known set.
func (c *Coordinator) StartWatcher(interval time.Duration) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				online := c.probe.Online(c.ctx)
				if c.setOnline(online) && online {
					c.passAll()
				}
			}
		}
	}()
}

func (c *Coordinator) passAll() {
	sets, err := c.store.Sets(c.ctx)
	if err != nil {
		c.log.Warn(c.ctx, "set listing failed", "error", err.Error())
		return
	}
	for _, s := range sets {
		go c.runPass(s.Name)
	}
}
