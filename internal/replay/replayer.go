// Package replay navigates a recorded session backward and forward in time.
// The replayer never re-executes anything: every operation is a cursor move
// over the session's immutable snapshot timeline.
package replay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/pulsedev/retrace/internal/breakpoint"
	"github.com/pulsedev/retrace/internal/events"
	"github.com/pulsedev/retrace/internal/session"
)

// baseRate is the continuous-playback speed at multiplier 1.0, in snapshots
// per second.
const baseRate = 10.0

// Direction labels how the cursor reached its position.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionJump     Direction = "jump"
)

// Position is emitted after every cursor move.
type Position struct {
	Snapshot  *session.Snapshot
	Index     int
	Direction Direction
}

// Replayer walks a loaded session's timeline. Continuous playback runs one
// task at a time; step and jump operations are safe to call between plays.
type Replayer struct {
	mu          sync.Mutex
	session     *session.Session
	breakpoints *breakpoint.Manager
	cursor      int
	speed       float64
	emitter     *events.Emitter[Position]
	// playing admits a single continuous playback task at a time.
	playing  *semaphore.Weighted
	stopFlag atomic.Bool
}

// NewReplayer returns a replayer with nothing loaded. The breakpoint manager
// may be nil; breakpoints are then ignored during playback.
func NewReplayer(breakpoints *breakpoint.Manager) *Replayer {
	return &Replayer{
		breakpoints: breakpoints,
		cursor:      -1,
		speed:       1.0,
		emitter:     events.NewEmitter[Position](),
		playing:     semaphore.NewWeighted(1),
	}
}

// Load attaches a session and positions the cursor on its first snapshot.
func (r *Replayer) Load(s *session.Session) error {
	if s == nil {
		return fmt.Errorf("load: nil session")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if s.Len() == 0 {
		return fmt.Errorf("load: session %s has no snapshots", s.ID)
	}
	r.mu.Lock()
	r.session = s
	r.cursor = 0
	s.Status = session.StatusReplaying
	r.mu.Unlock()
	r.emit(DirectionJump)
	return nil
}

// Unload detaches the current session.
func (r *Replayer) Unload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		r.session.Status = session.StatusCompleted
	}
	r.session = nil
	r.cursor = -1
}

// Session returns the loaded session, nil when none is loaded.
func (r *Replayer) Session() *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Current returns the snapshot under the cursor, nil when nothing is loaded.
func (r *Replayer) Current() *session.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentLocked()
}

func (r *Replayer) currentLocked() *session.Snapshot {
	if r.session == nil {
		return nil
	}
	return r.session.At(r.cursor)
}

// Cursor returns the timeline index under the cursor, -1 when unloaded.
func (r *Replayer) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// SetSpeed sets the continuous-playback multiplier. The multiplier must be
// positive; 2.0 plays twice as fast as 1.0.
func (r *Replayer) SetSpeed(speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("playback speed must be positive, got %g", speed)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speed = speed
	return nil
}

// Speed returns the playback multiplier.
func (r *Replayer) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// Subscribe registers a callback fired after every cursor move. The returned
// function unregisters it.
func (r *Replayer) Subscribe(fn func(Position)) func() {
	return r.emitter.Subscribe(fn)
}

// StepForward moves one snapshot later in time. At the end of the timeline
// the cursor stays put and moved is false.
func (r *Replayer) StepForward() (*session.Snapshot, bool) {
	return r.step(1, DirectionForward)
}

// StepBackward moves one snapshot earlier in time. At the start of the
// timeline the cursor stays put and moved is false.
func (r *Replayer) StepBackward() (*session.Snapshot, bool) {
	return r.step(-1, DirectionBackward)
}

func (r *Replayer) step(delta int, direction Direction) (*session.Snapshot, bool) {
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return nil, false
	}
	next := r.cursor + delta
	if next < 0 || next >= r.session.Len() {
		snap := r.currentLocked()
		r.mu.Unlock()
		return snap, false
	}
	r.cursor = next
	snap := r.currentLocked()
	r.mu.Unlock()
	r.emit(direction)
	return snap, true
}

// GoToSequence jumps the cursor to the snapshot with the given sequence
// number.
func (r *Replayer) GoToSequence(seq int64) (*session.Snapshot, error) {
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("no session loaded")
	}
	idx := r.session.IndexOfSequence(seq)
	if idx < 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("no snapshot with sequence %d", seq)
	}
	r.cursor = idx
	snap := r.currentLocked()
	r.mu.Unlock()
	r.emit(DirectionJump)
	return snap, nil
}

// GoToTimestamp jumps to the latest snapshot at or before t. A timestamp
// earlier than the whole recording lands on the first snapshot.
func (r *Replayer) GoToTimestamp(t time.Time) (*session.Snapshot, error) {
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("no session loaded")
	}
	idx := r.session.IndexAtOrBeforeTime(t)
	if idx < 0 {
		idx = 0
	}
	r.cursor = idx
	snap := r.currentLocked()
	r.mu.Unlock()
	r.emit(DirectionJump)
	return snap, nil
}

// StepOverForward moves forward to the next snapshot at the current stack
// depth or shallower, skipping everything inside calls made at this level.
// If the rest of the timeline only goes deeper, the cursor lands on the last
// snapshot.
func (r *Replayer) StepOverForward() (*session.Snapshot, bool) {
	return r.scan(1, DirectionForward, func(depth, current int) bool {
		return depth <= current
	}, nil, true)
}

// StepOverBackward is the mirror of StepOverForward, moving earlier in time.
func (r *Replayer) StepOverBackward() (*session.Snapshot, bool) {
	return r.scan(-1, DirectionBackward, func(depth, current int) bool {
		return depth <= current
	}, nil, true)
}

// StepOutForward moves forward to the first snapshot strictly shallower than
// the current depth: the moment after the current function returned. The
// cursor stays put when no such snapshot exists.
func (r *Replayer) StepOutForward() (*session.Snapshot, bool) {
	return r.scan(1, DirectionForward, func(depth, current int) bool {
		return depth < current
	}, nil, false)
}

// StepOutBackward moves backward to the call event that created the current
// frame: a strictly shallower snapshot whose event is a function call.
func (r *Replayer) StepOutBackward() (*session.Snapshot, bool) {
	return r.scan(-1, DirectionBackward, func(depth, current int) bool {
		return depth < current
	}, func(snap *session.Snapshot) bool {
		return snap.Event == events.EventFunctionCall
	}, false)
}

// scan walks the timeline in one direction looking for the first snapshot
// whose depth satisfies accept relative to the current depth, optionally
// also filtered by extra. landAtEdge controls whether running off the end
// parks the cursor on the edge snapshot or leaves it where it was.
func (r *Replayer) scan(delta int, direction Direction, accept func(depth, current int) bool, extra func(*session.Snapshot) bool, landAtEdge bool) (*session.Snapshot, bool) {
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return nil, false
	}
	current := r.currentLocked()
	if current == nil {
		r.mu.Unlock()
		return nil, false
	}
	depth := current.Depth()
	last := -1
	for i := r.cursor + delta; i >= 0 && i < r.session.Len(); i += delta {
		snap := r.session.At(i)
		last = i
		if accept(snap.Depth(), depth) && (extra == nil || extra(snap)) {
			r.cursor = i
			found := r.currentLocked()
			r.mu.Unlock()
			r.emit(direction)
			return found, true
		}
	}
	if landAtEdge && last >= 0 {
		r.cursor = last
		found := r.currentLocked()
		r.mu.Unlock()
		r.emit(direction)
		return found, true
	}
	snap := r.currentLocked()
	r.mu.Unlock()
	return snap, false
}

// ContinueForward plays snapshots forward at the configured speed until a
// breakpoint line matches, Stop is called, the context is canceled, or the
// timeline ends. Only one continuous playback task may run at a time.
func (r *Replayer) ContinueForward(ctx context.Context) (*session.Snapshot, error) {
	return r.play(ctx, 1, DirectionForward)
}

// ContinueBackward plays snapshots backward at the configured speed with the
// same stop conditions as ContinueForward.
func (r *Replayer) ContinueBackward(ctx context.Context) (*session.Snapshot, error) {
	return r.play(ctx, -1, DirectionBackward)
}

func (r *Replayer) play(ctx context.Context, delta int, direction Direction) (*session.Snapshot, error) {
	if !r.playing.TryAcquire(1) {
		return nil, fmt.Errorf("playback already running")
	}
	defer r.playing.Release(1)
	r.stopFlag.Store(false)

	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("no session loaded")
	}
	limiter := rate.NewLimiter(rate.Limit(baseRate*r.speed), 1)
	r.mu.Unlock()

	for {
		if err := limiter.Wait(ctx); err != nil {
			return r.Current(), err
		}
		if r.stopFlag.Load() {
			return r.Current(), nil
		}
		snap, moved := r.step(delta, direction)
		if !moved {
			return snap, nil
		}
		// Replay breakpoints match on file and line only; recorded column
		// positions rarely line up with where the marker was set.
		if r.breakpoints != nil {
			if bp := r.breakpoints.EnabledAtLine(snap.Location); bp != nil && bp.LogMessage == "" {
				return snap, nil
			}
		}
	}
}

// Stop interrupts a running ContinueForward or ContinueBackward. The flag is
// polled once per snapshot, so the playback task stops at the next tick.
func (r *Replayer) Stop() {
	r.stopFlag.Store(true)
}

func (r *Replayer) emit(direction Direction) {
	r.mu.Lock()
	snap := r.currentLocked()
	idx := r.cursor
	r.mu.Unlock()
	if snap == nil {
		return
	}
	r.emitter.Emit(Position{Snapshot: snap, Index: idx, Direction: direction})
}
