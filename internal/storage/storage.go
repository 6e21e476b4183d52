// Package storage defines the persistence interface for recorded sessions,
// named captures and breakpoints.
package storage

import (
	"context"
	"time"

	"github.com/pulsedev/retrace/internal/breakpoint"
	"github.com/pulsedev/retrace/internal/session"
	"github.com/pulsedev/retrace/internal/snapshot"
)

// SessionInfo is the listing row for a stored session; the full timeline is
// only decoded on GetSession.
type SessionInfo struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Status        string     `json:"status"`
	SnapshotCount int        `json:"snapshot_count"`
}

// CaptureInfo is the listing row for a stored named capture.
type CaptureInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	ObjectCount int       `json:"object_count"`
}

// Storage is the persistence backend. The sqlite subpackage is the only
// implementation; the interface exists so tests and future backends can
// swap in.
type Storage interface {
	// Sessions
	SaveSession(ctx context.Context, s *session.Session) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	ListSessions(ctx context.Context) ([]SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error

	// Named captures
	SaveCapture(ctx context.Context, c *snapshot.Capture) error
	GetCapture(ctx context.Context, id string) (*snapshot.Capture, error)
	ListCaptures(ctx context.Context) ([]CaptureInfo, error)
	DeleteCapture(ctx context.Context, id string) error

	// Breakpoints persist across engine restarts. SaveBreakpoint upserts.
	SaveBreakpoint(ctx context.Context, bp *breakpoint.Breakpoint) error
	ListBreakpoints(ctx context.Context) ([]*breakpoint.Breakpoint, error)
	DeleteBreakpoint(ctx context.Context, id string) error

	Close() error
}
