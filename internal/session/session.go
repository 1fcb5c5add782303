// Package session drives the lifecycle of the board a client has open:
// entering connects the sync engine and waits for the first snapshot,
// leaving flushes, disconnects and empties the local board.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/objects"
	"github.com/gosuda/boardsync/internal/observe"
	"github.com/gosuda/boardsync/internal/syncer"
)

type State string

const (
	StateIdle     State = "idle"
	StateEntering State = "entering"
	StateActive   State = "active"
	StateLeaving  State = "leaving"
)

// DefaultFlushTimeout bounds the flush attempted before leaving a board.
const DefaultFlushTimeout = 3 * time.Second

var ErrEnterAborted = errors.New("board entry aborted") //nolint:gochecknoglobals // sentinel error

// Identity reports who is signed in.
type Identity interface {
	CurrentUser() (string, error)
}

// Engine is the part of the sync engine a session drives.
type Engine interface {
	Connect(ctx context.Context, boardID string) error
	Disconnect(ctx context.Context) error
	Flush(ctx context.Context) error
	Publish(objectID string, data *domain.Object)
	OnRemoteChange(cb func(syncer.RemoteChange)) func()
	ObserveStatus(cb func(syncer.Status)) func()
}

// Board is the local replica a session fills and empties.
type Board interface {
	Reset()
	SetPublisher(p objects.Publisher)
}

// Session serializes entering and leaving boards. Enter waits for an
// in-flight Leave so a stale disconnect cannot tear down the new board's
// subscription.
type Session struct {
	engine       Engine
	board        Board
	identity     Identity
	flushTimeout time.Duration

	mu           sync.Mutex
	state        State
	boardID      string
	remoteUnsub  func()
	pendingLeave chan struct{}
	abortEnter   chan struct{}

	observers observe.List[State]
}

func New(engine Engine, board Board, identity Identity, flushTimeout time.Duration) *Session {
	if flushTimeout <= 0 {
		flushTimeout = DefaultFlushTimeout
	}
	return &Session{
		engine:       engine,
		board:        board,
		identity:     identity,
		flushTimeout: flushTimeout,
		state:        StateIdle,
	}
}

// Enter opens boardID and returns once its first snapshot has been
// applied. Entering the board that is already active is a no-op; entering
// another board leaves the current one first.
func (s *Session) Enter(ctx context.Context, boardID string) error {
	for {
		s.mu.Lock()
		pending := s.pendingLeave
		if pending == nil {
			break
		}
		s.mu.Unlock()

		select {
		case <-pending:
		case <-ctx.Done():
			return fmt.Errorf("session.Session.Enter: %w", ctx.Err())
		}
	}

	if s.boardID == boardID && s.state == StateActive {
		s.mu.Unlock()
		return nil
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		if err := s.Leave(ctx); err != nil {
			return fmt.Errorf("session.Session.Enter: %w", err)
		}
		return s.Enter(ctx, boardID)
	}

	if _, err := s.identity.CurrentUser(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("session.Session.Enter: %w", errors.Join(domain.ErrUnauthenticated, err))
	}

	ready := make(chan struct{})
	failed := make(chan struct{})
	abort := make(chan struct{})
	var readyOnce, failedOnce sync.Once

	s.state = StateEntering
	s.boardID = boardID
	s.abortEnter = abort
	s.remoteUnsub = s.engine.OnRemoteChange(func(c syncer.RemoteChange) {
		if c.Snapshot && c.BoardID == boardID {
			readyOnce.Do(func() { close(ready) })
		}
	})
	s.mu.Unlock()

	s.observers.Emit(StateEntering)
	log.Info().Str("board_id", boardID).Msg("session: entering")

	unsubStatus := s.engine.ObserveStatus(func(st syncer.Status) {
		if st == syncer.StatusDisconnected {
			failedOnce.Do(func() { close(failed) })
		}
	})
	defer unsubStatus()

	s.board.SetPublisher(s.engine)
	if err := s.engine.Connect(ctx, boardID); err != nil {
		s.abort(ctx)
		return fmt.Errorf("session.Session.Enter: %w", err)
	}

	select {
	case <-ready:
	case <-failed:
		s.abort(ctx)
		return fmt.Errorf("session.Session.Enter: %w", domain.ErrNotConnected)
	case <-abort:
		return fmt.Errorf("session.Session.Enter: %w", ErrEnterAborted)
	case <-ctx.Done():
		s.abort(ctx)
		return fmt.Errorf("session.Session.Enter: %w", ctx.Err())
	}

	s.mu.Lock()
	if s.abortEnter != abort {
		s.mu.Unlock()
		return fmt.Errorf("session.Session.Enter: %w", ErrEnterAborted)
	}
	s.abortEnter = nil
	s.state = StateActive
	s.mu.Unlock()

	s.observers.Emit(StateActive)
	log.Info().Str("board_id", boardID).Msg("session: active")
	return nil
}

// abort undoes a failed Enter.
func (s *Session) abort(ctx context.Context) {
	if err := s.Leave(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("session: cleanup after failed enter")
	}
}

// Leave closes the current board. Buffered writes are flushed first, with
// a bounded wait; then the engine disconnects and the local board is
// emptied along with its undo history. Leave from idle is a no-op; a
// concurrent Leave waits for the first to finish.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	if pending := s.pendingLeave; pending != nil {
		s.mu.Unlock()
		select {
		case <-pending:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("session.Session.Leave: %w", ctx.Err())
		}
	}

	done := make(chan struct{})
	s.pendingLeave = done
	s.state = StateLeaving
	boardID := s.boardID
	unsub := s.remoteUnsub
	s.remoteUnsub = nil
	if s.abortEnter != nil {
		close(s.abortEnter)
		s.abortEnter = nil
	}
	s.mu.Unlock()

	s.observers.Emit(StateLeaving)

	if unsub != nil {
		unsub()
	}

	flushCtx, cancel := context.WithTimeout(ctx, s.flushTimeout)
	if err := s.engine.Flush(flushCtx); err != nil {
		log.Warn().Err(err).Str("board_id", boardID).Msg("session: flush before leave failed, unsaved edits dropped")
	}
	cancel()

	s.board.SetPublisher(nil)
	disconnectErr := s.engine.Disconnect(ctx)
	s.board.Reset()

	s.mu.Lock()
	s.boardID = ""
	s.state = StateIdle
	s.pendingLeave = nil
	close(done)
	s.mu.Unlock()

	s.observers.Emit(StateIdle)
	log.Info().Str("board_id", boardID).Msg("session: left")

	if disconnectErr != nil {
		return fmt.Errorf("session.Session.Leave: %w", disconnectErr)
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BoardID returns the board being entered or active, or "" when idle.
func (s *Session) BoardID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardID
}

// ObserveState registers cb for every state transition.
func (s *Session) ObserveState(cb func(State)) func() {
	return s.observers.Add(cb)
}
