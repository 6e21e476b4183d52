package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedev/retrace/internal/breakpoint"
)

// Status is the lifecycle state of a recorded session.
type Status string

const (
	StatusRecording Status = "recording"
	StatusReplaying Status = "replaying"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// IsValid returns true if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusRecording, StatusReplaying, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// Session is one recorded execution: an ordered timeline of snapshots plus
// the breakpoint registry that was active while recording. The session owns
// its snapshots exclusively; callers navigate by sequence number, never by
// holding references into the slice.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    Status     `json:"status"`
	// Snapshots are ordered by strictly increasing sequence number.
	Snapshots []*Snapshot `json:"snapshots"`
	// Breakpoints is the registry captured alongside the timeline so an
	// exported session replays with the same stop set it recorded under.
	Breakpoints []*breakpoint.Breakpoint `json:"breakpoints,omitempty"`
}

// NewSession returns an empty session in the recording state.
func NewSession() *Session {
	return &Session{
		ID:        "session-" + uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Status:    StatusRecording,
		Snapshots: []*Snapshot{},
	}
}

// Len returns the number of snapshots in the timeline.
func (s *Session) Len() int {
	return len(s.Snapshots)
}

// At returns the snapshot at timeline index i, nil when out of range.
func (s *Session) At(i int) *Snapshot {
	if i < 0 || i >= len(s.Snapshots) {
		return nil
	}
	return s.Snapshots[i]
}

// IndexOfSequence returns the timeline index of the snapshot with the given
// sequence number, or -1 when no such snapshot exists.
func (s *Session) IndexOfSequence(seq int64) int {
	i := sort.Search(len(s.Snapshots), func(i int) bool {
		return s.Snapshots[i].Sequence >= seq
	})
	if i < len(s.Snapshots) && s.Snapshots[i].Sequence == seq {
		return i
	}
	return -1
}

// IndexAtOrBeforeTime returns the index of the latest snapshot whose
// timestamp does not exceed t, or -1 when the session starts after t.
func (s *Session) IndexAtOrBeforeTime(t time.Time) int {
	i := sort.Search(len(s.Snapshots), func(i int) bool {
		return s.Snapshots[i].Timestamp.After(t)
	})
	return i - 1
}

// Summaries returns the timeline descriptors for every snapshot in order.
func (s *Session) Summaries() []Summary {
	out := make([]Summary, len(s.Snapshots))
	for i, snap := range s.Snapshots {
		out[i] = snap.Summarize()
	}
	return out
}

// Duration returns the recorded wall time. A session that is still
// recording measures up to now.
func (s *Session) Duration() time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// Validate checks the timeline's structural invariants: strictly increasing
// gapless sequence numbers starting at 1, and a known status.
func (s *Session) Validate() error {
	if !s.Status.IsValid() {
		return fmt.Errorf("session %s: unknown status %q", s.ID, s.Status)
	}
	for i, snap := range s.Snapshots {
		want := int64(i + 1)
		if snap.Sequence != want {
			return fmt.Errorf("session %s: snapshot at index %d has sequence %d, want %d", s.ID, i, snap.Sequence, want)
		}
	}
	return nil
}
