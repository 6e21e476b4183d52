// Package control implements live execution control: the call stack
// visualizer and the step executor driving a debug target.
package control

import (
	"sync"

	"github.com/pulsedev/retrace/internal/events"
	"github.com/pulsedev/retrace/internal/types"
)

// FrameSelection is delivered to stack subscribers whenever the selected
// frame changes.
type FrameSelection struct {
	Frame *types.CallFrame
	Index int
}

// StackView holds the ordered frames of the paused debuggee plus a single
// selection cursor. Index 0 is the innermost (top) frame.
type StackView struct {
	mu       sync.Mutex
	frames   []*types.CallFrame
	cursor   int
	notifier *events.Emitter[FrameSelection]
}

// NewStackView returns an empty stack view.
func NewStackView() *StackView {
	return &StackView{notifier: events.NewEmitter[FrameSelection]()}
}

// Subscribe registers a selection callback. Subscribers fire synchronously
// after every successful cursor move, including the implicit move performed
// by SetFrames.
func (s *StackView) Subscribe(fn func(FrameSelection)) func() {
	return s.notifier.Subscribe(fn)
}

// SetFrames replaces the stack and resets the cursor to the top frame.
func (s *StackView) SetFrames(frames []*types.CallFrame) {
	s.mu.Lock()
	s.frames = frames
	s.cursor = 0
	selection, ok := s.selectionLocked()
	s.mu.Unlock()
	if ok {
		s.notifier.Emit(selection)
	}
}

// SelectFrame moves the cursor to index, clamped to bounds. Subscribers are
// notified when the cursor actually moved.
func (s *StackView) SelectFrame(index int) {
	s.moveTo(index)
}

// NextFrame moves the cursor one frame outward (toward the caller).
func (s *StackView) NextFrame() {
	s.mu.Lock()
	target := s.cursor + 1
	s.mu.Unlock()
	s.moveTo(target)
}

// PreviousFrame moves the cursor one frame inward (toward the top).
func (s *StackView) PreviousFrame() {
	s.mu.Lock()
	target := s.cursor - 1
	s.mu.Unlock()
	s.moveTo(target)
}

// Current returns the selected frame and its index; nil and -1 when empty.
func (s *StackView) Current() (*types.CallFrame, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, -1
	}
	return s.frames[s.cursor], s.cursor
}

// Frames returns the stack, top frame first.
func (s *StackView) Frames() []*types.CallFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.CallFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Depth returns the stack depth.
func (s *StackView) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *StackView) moveTo(index int) {
	s.mu.Lock()
	if len(s.frames) == 0 {
		s.mu.Unlock()
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= len(s.frames) {
		index = len(s.frames) - 1
	}
	if index == s.cursor {
		s.mu.Unlock()
		return
	}
	s.cursor = index
	selection, _ := s.selectionLocked()
	s.mu.Unlock()
	s.notifier.Emit(selection)
}

func (s *StackView) selectionLocked() (FrameSelection, bool) {
	if len(s.frames) == 0 {
		return FrameSelection{Index: -1}, false
	}
	return FrameSelection{Frame: s.frames[s.cursor], Index: s.cursor}, true
}
