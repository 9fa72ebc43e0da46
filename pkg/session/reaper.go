package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/sessionfolder/file"
	"github.com/dmitrymomot/sessionfolder/pkg/logger"
)

// ReaperState is the sweep state of a Reaper.
type ReaperState int32

const (
	StateIdle ReaperState = iota
	StateSweeping
)

func (s ReaperState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSweeping:
		return "sweeping"
	default:
		return "unknown"
	}
}

// SweepStats summarizes one sweep. Scanned, Skipped and Failed count
// directories; Expired and Orphaned count destroyed sessions, including
// record file owners that were no longer in the index.
type SweepStats struct {
	Scanned  int
	Expired  int
	Orphaned int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Reaper periodically sweeps the session directories and destroys those
// whose session expired or is no longer in the index. Removal goes through
// the store's destroy path, so shared directories stay while referenced.
type Reaper struct {
	store  *FolderStore
	logger *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc

	state   atomic.Int32
	errMu   sync.RWMutex
	lastErr error
	last    SweepStats
}

func newReaper(s *FolderStore, l *slog.Logger) *Reaper {
	return &Reaper{
		store:  s,
		logger: l.With(logger.Component("session.reaper")),
	}
}

// Start schedules sweeps by Config.ReapSchedule, or every
// Config.ReapInterval when no schedule is set. A negative interval without
// a schedule leaves the timer disabled; SweepNow still works.
func (r *Reaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return ErrReaperRunning
	}

	cfg := r.store.cfg
	var schedule cron.Schedule
	switch {
	case cfg.ReapSchedule != "":
		sched, err := cron.ParseStandard(cfg.ReapSchedule)
		if err != nil {
			return errors.Join(ErrInvalidSchedule, err)
		}
		schedule = sched
	case cfg.ReapInterval < 0:
		r.logger.Debug("reaper timer disabled")
		return nil
	case cfg.ReapInterval == 0:
		schedule = cron.Every(DefaultReapInterval)
	default:
		schedule = cron.Every(cfg.ReapInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{l: r.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(schedule, cron.FuncJob(func() {
		if _, err := r.SweepNow(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
			r.logger.WarnContext(ctx, "sweep failed", logger.Error(err))
		}
	}))
	c.Start()

	r.cron = c
	r.cancel = cancel
	r.logger.Info("reaper started")
	return nil
}

// Stop cancels the timer and waits for a running sweep to finish or ctx to end.
func (r *Reaper) Stop(ctx context.Context) error {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.cancel = nil, nil
	r.mu.Unlock()

	if c == nil {
		return ErrReaperStopped
	}

	cancel()
	select {
	case <-c.Stop().Done():
		r.logger.Info("reaper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the timer is scheduled.
func (r *Reaper) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cron != nil
}

func (r *Reaper) State() ReaperState {
	return ReaperState(r.state.Load())
}

// LastError returns the listing error of the latest sweep, nil if it listed fine.
func (r *Reaper) LastError() error {
	r.errMu.RLock()
	defer r.errMu.RUnlock()
	return r.lastErr
}

// LastStats returns the statistics of the latest completed sweep.
func (r *Reaper) LastStats() SweepStats {
	r.errMu.RLock()
	defer r.errMu.RUnlock()
	return r.last
}

// SweepNow runs one sweep synchronously. It returns ErrSweepInProgress if
// another sweep is running. Only a failure to list storage is returned as
// an error; per-directory failures are logged and counted.
func (r *Reaper) SweepNow(ctx context.Context) (SweepStats, error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateSweeping)) {
		return SweepStats{}, ErrSweepInProgress
	}
	defer r.state.Store(int32(StateIdle))

	start := time.Now()
	var stats SweepStats

	keys, err := r.store.storage.List(ctx)
	if err != nil {
		r.setResult(err, stats)
		r.logger.ErrorContext(ctx, "sweep: failed to list session folders", logger.Error(err))
		return stats, err
	}

	pending := queue.New()
	for _, key := range keys {
		pending.Add(sweepItem{key: key})
		stats.Scanned++
	}

	// a directory whose record file could not be read goes back to the end
	// of the queue until it runs out of attempts
	for pending.Length() > 0 {
		if ctx.Err() != nil {
			break
		}
		item := pending.Remove().(sweepItem)
		item.attempt++
		if r.sweepOne(ctx, item, &stats) {
			pending.Add(item)
		}
	}

	stats.Duration = time.Since(start)
	r.setResult(nil, stats)
	r.logger.DebugContext(ctx, "sweep finished",
		logger.Count("scanned", stats.Scanned),
		logger.Count("expired", stats.Expired),
		logger.Count("orphaned", stats.Orphaned),
		logger.Count("skipped", stats.Skipped),
		logger.Count("failed", stats.Failed),
		logger.Duration(stats.Duration),
	)
	return stats, nil
}

// sweepReadAttempts bounds how often one sweep reads a record file that
// failed with a transient error.
const sweepReadAttempts = 2

type sweepItem struct {
	key     string
	attempt int
}

// sweepOne checks every session referencing the directory, then falls back
// to the "sid" of its record file for directories nobody references. It
// reports whether the item should be retried.
func (r *Reaper) sweepOne(ctx context.Context, item sweepItem, stats *SweepStats) (retry bool) {
	s := r.store
	key := item.key

	referenced := s.refs.sessions(key)
	for _, sid := range referenced {
		if r.reapSession(ctx, sid, key, stats) {
			return false
		}
	}

	data, err := s.storage.Read(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, file.ErrRecordNotFound):
			stats.Skipped++
		case item.attempt < sweepReadAttempts:
			r.logger.DebugContext(ctx, "sweep: retrying record", logger.StorageKey(key), logger.Error(err))
			return true
		default:
			stats.Failed++
		}
		r.logger.WarnContext(ctx, "sweep: unreadable record", logger.StorageKey(key), logger.Error(err))
		return false
	}

	rec, err := decodeRecordFile(data)
	if err != nil {
		stats.Skipped++
		r.logger.WarnContext(ctx, "sweep: corrupt record", logger.StorageKey(key), logger.Error(err))
		return false
	}

	sid := rec.SessionID()
	if sid == "" {
		stats.Skipped++
		return false
	}
	if slices.Contains(referenced, sid) {
		return false
	}

	_, live, err := s.index.Get(ctx, sid)
	if err != nil {
		stats.Failed++
		r.logger.WarnContext(ctx, "sweep: index lookup failed", logger.SessionID(sid), logger.Error(err))
		return false
	}
	if live {
		r.reapSession(ctx, sid, key, stats)
		return false
	}

	// the record file's own expiry only classifies the removal
	expired, _ := rec.ExpiredAt(s.now())
	removed, err := s.destroy(ctx, sid, key)
	switch {
	case err != nil:
		stats.Failed++
		r.logger.WarnContext(ctx, "sweep: failed to remove orphan", logger.StorageKey(key), logger.Error(err))
	case !removed:
		stats.Skipped++
	case expired:
		stats.Expired++
	default:
		stats.Orphaned++
	}
	return false
}

// reapSession destroys sid when it is expired or missing from the index and
// reports whether the directory of key was removed with it.
func (r *Reaper) reapSession(ctx context.Context, sid, key string, stats *SweepStats) (removed bool) {
	s := r.store

	data, live, err := s.index.Get(ctx, sid)
	if err != nil {
		stats.Failed++
		r.logger.WarnContext(ctx, "sweep: index lookup failed", logger.SessionID(sid), logger.Error(err))
		return false
	}

	if !live {
		removed, err := s.destroy(ctx, sid, key)
		if err != nil {
			stats.Failed++
			r.logger.WarnContext(ctx, "sweep: failed to drop orphan session", logger.SessionID(sid), logger.Error(err))
			return false
		}
		stats.Orphaned++
		return removed
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return false
	}
	if expired, err := rec.ExpiredAt(s.now()); err != nil || !expired {
		return false
	}

	renewed, removed, err := s.expire(ctx, sid)
	switch {
	case err != nil:
		stats.Failed++
		r.logger.WarnContext(ctx, "sweep: failed to destroy expired session", logger.SessionID(sid), logger.Error(err))
	case renewed == nil:
		stats.Expired++
	}
	return removed
}

func (r *Reaper) setResult(err error, stats SweepStats) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.lastErr = err
	r.last = stats
}

// cronLogger routes cron's logr-style calls to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{logger.Error(err)}, keysAndValues...)...)
}
