package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/clock"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/observe"
)

type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
)

// Config tunes the engine's timers.
type Config struct {
	FlushInterval time.Duration
	CommitTimeout time.Duration
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	EchoTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		FlushInterval: 50 * time.Millisecond,
		CommitTimeout: 10 * time.Second,
		BackoffBase:   time.Second,
		BackoffMax:    30 * time.Second,
		EchoTTL:       10 * time.Second,
	}
}

// RemoteChange is emitted after a delivery has been applied to the
// replica. Events excludes suppressed echoes.
type RemoteChange struct {
	BoardID  string
	Snapshot bool
	Events   []domain.SyncEvent
}

// FlushResult reports one flush of the write buffer.
type FlushResult struct {
	BoardID  string
	Written  int
	Requeued int
	Err      error
}

// Engine synchronizes one board at a time between a Replica and a Remote.
// Local writes enter through Publish; remote changes are applied to the
// Replica from a background goroutine. Safe for concurrent use.
//
// The engine never holds its own lock while calling into the Replica, so a
// Replica may call Publish while holding its lock.
type Engine struct {
	remote  Remote
	replica Replica
	clock   clock.Clock
	cfg     Config

	flushMu sync.Mutex // one flush at a time

	mu         sync.Mutex
	status     Status
	boardID    string
	gen        uint64
	attempts   int
	cancelFeed context.CancelFunc
	feedDone   chan struct{}
	retry      clock.Timer
	stopFlush  context.CancelFunc
	flushDone  chan struct{}
	buffer     *writeBuffer
	echoes     *echoTracker

	statusObs observe.List[Status]
	remoteObs observe.List[RemoteChange]
	flushObs  observe.List[FlushResult]
}

func NewEngine(remote Remote, replica Replica, clk clock.Clock, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = def.CommitTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.EchoTTL <= 0 {
		cfg.EchoTTL = def.EchoTTL
	}

	return &Engine{
		remote:  remote,
		replica: replica,
		clock:   clk,
		cfg:     cfg,
		status:  StatusIdle,
		buffer:  newWriteBuffer(),
		echoes:  newEchoTracker(cfg.EchoTTL),
	}
}

// Connect starts following boardID. It returns once the subscription has
// been started; the first snapshot arrives asynchronously and is announced
// through OnRemoteChange. Connecting to the board that is already connected
// is a no-op. Switching boards drops writes buffered for the old one.
func (e *Engine) Connect(ctx context.Context, boardID string) error {
	if boardID == "" {
		return fmt.Errorf("syncer.Engine.Connect: %w", ErrNoBoard)
	}

	e.mu.Lock()
	if e.boardID == boardID && e.status == StatusConnected {
		e.mu.Unlock()
		return nil
	}

	feedDone := e.stopFeedLocked()
	if e.boardID != boardID {
		e.buffer = newWriteBuffer()
		e.echoes.clear()
	}
	e.boardID = boardID
	e.attempts = 0
	e.gen++
	gen := e.gen

	if e.stopFlush == nil {
		e.startFlushLoopLocked(ctx)
	}
	changed := e.setStatusLocked(StatusConnecting)
	e.mu.Unlock()

	if feedDone != nil {
		<-feedDone
	}
	if changed {
		e.statusObs.Emit(StatusConnecting)
	}

	log.Info().Str("board_id", boardID).Msg("syncer: connecting")

	e.mu.Lock()
	if e.gen == gen {
		e.startFeedLocked(ctx, gen, boardID)
	}
	e.mu.Unlock()
	return nil
}

// Disconnect stops following the current board, cancels any pending
// reconnect, and discards buffered writes without flushing them. It waits
// for the feed and flush goroutines to exit.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	e.gen++
	feedDone := e.stopFeedLocked()

	var flushDone chan struct{}
	if e.stopFlush != nil {
		e.stopFlush()
		e.stopFlush = nil
		flushDone = e.flushDone
		e.flushDone = nil
	}

	e.buffer = newWriteBuffer()
	e.echoes.clear()
	boardID := e.boardID
	e.boardID = ""
	e.attempts = 0
	changed := e.setStatusLocked(StatusIdle)
	e.mu.Unlock()

	if changed {
		e.statusObs.Emit(StatusIdle)
	}
	if boardID != "" {
		log.Info().Str("board_id", boardID).Msg("syncer: disconnected")
	}

	for _, done := range []chan struct{}{feedDone, flushDone} {
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("syncer.Engine.Disconnect: %w", ctx.Err())
		}
	}
	return nil
}

// Publish queues a local write for objectID; a nil data deletes it. The
// write's echo on the change feed will be suppressed. Replacing a write
// that is still buffered does not expect a second echo, since only one
// write reaches the remote.
func (e *Engine) Publish(objectID string, data *domain.Object) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.boardID == "" {
		log.Warn().Str("object_id", objectID).Msg("syncer: publish without a board")
		return
	}

	now := e.clock.Now()
	if e.buffer.has(objectID) {
		e.echoes.refresh(objectID, now)
	} else {
		e.echoes.expect(objectID, now)
	}
	if data != nil {
		data = data.Clone()
	}
	e.buffer.put(domain.Write{ObjectID: objectID, Data: data})
}

// Flush commits everything buffered so far in chunks of at most MaxBatch
// writes. Chunks that fail go back into the buffer unless a newer write
// for the same object arrived in the meantime, along with every chunk not
// yet attempted.
func (e *Engine) Flush(ctx context.Context) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	boardID := e.boardID
	buf := e.buffer
	writes := buf.drain()
	e.echoes.sweep(e.clock.Now())
	e.mu.Unlock()

	if boardID == "" || len(writes) == 0 {
		return nil
	}

	res := FlushResult{BoardID: boardID}
	chunks := chunk(writes, e.remote.MaxBatch())
	for i, c := range chunks {
		if err := e.remote.Commit(ctx, boardID, c); err != nil {
			var rest []domain.Write
			for _, r := range chunks[i:] {
				rest = append(rest, r...)
			}

			e.mu.Lock()
			res.Requeued = buf.restore(rest)
			e.mu.Unlock()

			res.Err = fmt.Errorf("syncer.Engine.Flush: %w", err)
			log.Warn().Err(err).Str("board_id", boardID).Int("written", res.Written).Int("requeued", res.Requeued).Msg("syncer: flush failed")
			e.flushObs.Emit(res)
			return res.Err
		}
		res.Written += len(c)
	}

	e.flushObs.Emit(res)
	return nil
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) BoardID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boardID
}

// Buffered returns the number of writes waiting for the next flush.
func (e *Engine) Buffered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.len()
}

// PendingEchoes returns how many unexpired echoes are expected for id.
func (e *Engine) PendingEchoes(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.echoes.pending(id, e.clock.Now())
}

func (e *Engine) ObserveStatus(cb func(Status)) func() {
	return e.statusObs.Add(cb)
}

func (e *Engine) OnRemoteChange(cb func(RemoteChange)) func() {
	return e.remoteObs.Add(cb)
}

func (e *Engine) ObserveFlush(cb func(FlushResult)) func() {
	return e.flushObs.Add(cb)
}

// keepLocal reports whether the local version of id must survive a
// snapshot: either a write is still buffered or its echo is outstanding.
func (e *Engine) keepLocal(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.has(id) || e.echoes.pending(id, e.clock.Now()) > 0
}

func (e *Engine) setStatusLocked(s Status) bool {
	if e.status == s {
		return false
	}
	e.status = s
	return true
}

// stopFeedLocked cancels the current subscription and retry timer and
// returns a channel closed when the feed goroutine has exited.
func (e *Engine) stopFeedLocked() chan struct{} {
	if e.retry != nil {
		e.retry.Stop()
		e.retry = nil
	}
	if e.cancelFeed != nil {
		e.cancelFeed()
		e.cancelFeed = nil
	}
	done := e.feedDone
	e.feedDone = nil
	return done
}

func (e *Engine) startFeedLocked(ctx context.Context, gen uint64, boardID string) {
	feedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	e.cancelFeed = cancel
	e.feedDone = done

	go func() {
		defer close(done)
		e.follow(feedCtx, gen, boardID)
	}()
}

func (e *Engine) follow(ctx context.Context, gen uint64, boardID string) {
	ch, cleanup, err := e.remote.Subscribe(ctx, boardID)
	if err != nil {
		if ctx.Err() == nil {
			e.fail(ctx, gen, err)
		}
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-ch:
			if ctx.Err() != nil {
				return
			}
			if !ok {
				e.fail(ctx, gen, ErrFeedClosed)
				return
			}
			if d.Err != nil {
				e.fail(ctx, gen, d.Err)
				return
			}
			e.deliver(gen, boardID, d)
		}
	}
}

func (e *Engine) deliver(gen uint64, boardID string, d Delivery) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.attempts = 0
	changed := e.setStatusLocked(StatusConnected)

	var apply []domain.SyncEvent
	if !d.Snapshot {
		now := e.clock.Now()
		for _, ev := range d.Events {
			if e.echoes.consume(ev.ObjectID, now) {
				continue
			}
			apply = append(apply, ev)
		}
	}
	e.mu.Unlock()

	if changed {
		log.Info().Str("board_id", boardID).Msg("syncer: connected")
		e.statusObs.Emit(StatusConnected)
	}

	if d.Snapshot {
		objs := make([]*domain.Object, 0, len(d.Events))
		for _, ev := range d.Events {
			if ev.Data == nil {
				continue
			}
			o := ev.Data.Clone()
			o.ID = ev.ObjectID
			objs = append(objs, o)
		}
		e.replica.Reconcile(objs, e.keepLocal)
		apply = d.Events
	} else {
		for _, ev := range apply {
			e.replica.ApplyRemote(ev)
		}
	}

	e.remoteObs.Emit(RemoteChange{BoardID: boardID, Snapshot: d.Snapshot, Events: apply})
}

func (e *Engine) fail(ctx context.Context, gen uint64, err error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	if e.cancelFeed != nil {
		e.cancelFeed()
		e.cancelFeed = nil
	}
	e.feedDone = nil

	if e.boardID == "" || permanent(err) {
		changed := e.setStatusLocked(StatusDisconnected)
		e.mu.Unlock()

		log.Error().Err(err).Msg("syncer: change feed failed")
		if changed {
			e.statusObs.Emit(StatusDisconnected)
		}
		return
	}

	e.attempts++
	delay := backoff(e.cfg.BackoffBase, e.cfg.BackoffMax, e.attempts)
	boardID := e.boardID
	changed := e.setStatusLocked(StatusReconnecting)
	e.retry = e.clock.AfterFunc(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.gen {
			return
		}
		e.retry = nil
		e.startFeedLocked(ctx, gen, boardID)
	})
	attempt := e.attempts
	e.mu.Unlock()

	log.Warn().Err(err).Str("board_id", boardID).Int("attempt", attempt).Dur("delay", delay).Msg("syncer: change feed failed, reconnecting")
	if changed {
		e.statusObs.Emit(StatusReconnecting)
	}
}

// backoff returns base*2^attempt capped at limit.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for range attempt {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return min(d, limit)
}

func (e *Engine) startFlushLoopLocked(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	e.stopFlush = cancel
	e.flushDone = done

	ticker := e.clock.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				flushCtx, cancelFlush := context.WithTimeout(loopCtx, e.cfg.CommitTimeout)
				_ = e.Flush(flushCtx) // failures are requeued and reported to flush observers
				cancelFlush()
			}
		}
	}()
}
